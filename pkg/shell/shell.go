// Package shell implements the kiosk's restricted command interpreter: a
// closed whitelist of commands, shell-style tokenization, privilege gating,
// bounded history, and an audit trail for every invocation. External
// programs only ever run through the sandbox session.
package shell

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/securegui/secshell/pkg/audit"
	"github.com/securegui/secshell/pkg/auth"
	"github.com/securegui/secshell/pkg/plugin"
	"github.com/securegui/secshell/pkg/sandbox"
)

// Sentinel outputs. The engine never acts on these itself; the caller owns
// the corresponding UI action.
const (
	ClearScreen    = "CLEAR_SCREEN"
	ExitTerminal   = "EXIT_TERMINAL"
	ShutdownSystem = "SHUTDOWN_SYSTEM"
	RestartSystem  = "RESTART_SYSTEM"
)

// Tier is a command's privilege requirement.
type Tier int

const (
	TierPublic Tier = iota
	TierAdmin
)

func (t Tier) String() string {
	if t == TierAdmin {
		return "admin"
	}
	return "public"
}

// Handler runs one command. Returning an error marks the invocation as
// failed; the engine formats it for the user and audits the detail.
type Handler func(args []string) (string, error)

// CommandSpec is one whitelist entry. Specs are registered during engine
// construction and immutable afterwards.
type CommandSpec struct {
	Name     string
	Help     string
	Category string
	Tier     Tier
	Handler  Handler
}

// ConfigStore is the configuration collaborator consumed by the config and
// log commands.
type ConfigStore interface {
	Get(section, key string, def any) any
	Set(section, key string, value any) error
	Sections() []string
	Keys(section string) ([]string, bool)
}

// AuditQuerier is the optional read side of an audit sink, used by the
// log view command.
type AuditQuerier interface {
	Recent(ctx context.Context, limit int) ([]audit.Record, error)
}

// Options wires the engine's collaborators. Session is required; the rest
// degrade gracefully when absent.
type Options struct {
	Session *sandbox.Session
	Auth    auth.Authorizer
	Config  ConfigStore
	Plugins plugin.Registry
	Sink    audit.Sink
	Querier AuditQuerier

	// HistorySize bounds the command history; 0 means DefaultHistorySize.
	HistorySize int
	// CommandTimeout bounds each sandboxed execution; 0 means the
	// sandbox default.
	CommandTimeout time.Duration
}

// Engine dispatches single command lines. It holds no internal locking:
// the caller contract is at most one in-flight Execute per engine.
type Engine struct {
	commands map[string]CommandSpec
	order    []string

	session *sandbox.Session
	authz   auth.Authorizer
	store   ConfigStore
	plugins plugin.Registry
	sink    audit.Sink
	querier AuditQuerier

	history *HistoryLog
	timeout time.Duration
}

type discardSink struct{}

func (discardSink) Write(audit.Record) error { return nil }

// New builds an engine with the full built-in catalogue registered.
func New(opts Options) (*Engine, error) {
	if opts.Session == nil {
		return nil, fmt.Errorf("shell: sandbox session is required")
	}
	if opts.Auth == nil {
		opts.Auth = &auth.Static{}
	}
	if opts.Sink == nil {
		opts.Sink = discardSink{}
	}

	e := &Engine{
		commands: make(map[string]CommandSpec),
		session:  opts.Session,
		authz:    opts.Auth,
		store:    opts.Config,
		plugins:  opts.Plugins,
		sink:     opts.Sink,
		querier:  opts.Querier,
		history:  NewHistoryLog(opts.HistorySize),
		timeout:  opts.CommandTimeout,
	}

	if err := e.registerBuiltins(); err != nil {
		return nil, err
	}
	return e, nil
}

// Register adds a command to the whitelist. Construction-time only; a name
// collision is an error.
func (e *Engine) Register(spec CommandSpec) error {
	name := strings.ToLower(spec.Name)
	if name == "" {
		return fmt.Errorf("shell: command name is required")
	}
	if spec.Handler == nil {
		return fmt.Errorf("shell: command %s has no handler", name)
	}
	if _, exists := e.commands[name]; exists {
		return fmt.Errorf("shell: duplicate command: %s", name)
	}
	spec.Name = name
	e.commands[name] = spec
	e.order = append(e.order, name)
	return nil
}

// History exposes the engine's history log.
func (e *Engine) History() *HistoryLog { return e.history }

// Session exposes the sandbox session, mainly so callers can show the
// working directory in a prompt.
func (e *Engine) Session() *sandbox.Session { return e.session }

// Commands returns the whitelist in registration order.
func (e *Engine) Commands() []CommandSpec {
	out := make([]CommandSpec, 0, len(e.order))
	for _, name := range e.order {
		out = append(out, e.commands[name])
	}
	return out
}

// Execute runs one command line and returns its output, an error string, or
// a sentinel. Every non-empty line lands in history and in the audit trail
// exactly once, whatever the outcome.
func (e *Engine) Execute(line string) string {
	if strings.TrimSpace(line) == "" {
		return ""
	}

	e.history.Append(line)

	tokens, err := Tokenize(line)
	if err != nil {
		rec := audit.NewRecord(e.identity(), "", nil)
		e.emit(rec.WithOutcome(audit.OutcomeFailure, "parse error: "+err.Error()))
		return fmt.Sprintf("Parse error: %s", err)
	}
	if len(tokens) == 0 {
		return ""
	}

	name := strings.ToLower(tokens[0])
	args := tokens[1:]

	spec, ok := e.commands[name]
	if !ok {
		rec := audit.NewRecord(e.identity(), name, args)
		e.emit(rec.WithOutcome(audit.OutcomeFailure, "not found"))
		return fmt.Sprintf("Command not found: %s", name)
	}

	if spec.Tier == TierAdmin && !e.authz.IsAuthorized() {
		rec := audit.NewRecord(e.identity(), name, args)
		e.emit(rec.WithOutcome(audit.OutcomeFailure, "unauthorized"))
		return "Error: This command requires administrative privileges"
	}

	rec := audit.NewRecord(e.identity(), name, args)
	e.emit(rec.WithOutcome(audit.OutcomePending, ""))

	out, err := e.invoke(spec, args)
	if err != nil {
		e.emit(rec.WithOutcome(audit.OutcomeFailure, err.Error()))
		return fmt.Sprintf("Error: %s", err)
	}

	e.emit(rec.WithOutcome(audit.OutcomeSuccess, ""))
	return out
}

// invoke runs the handler with a recovery barrier so a handler fault can
// never take the engine down.
func (e *Engine) invoke(spec CommandSpec, args []string) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler fault: %v", r)
		}
	}()
	return spec.Handler(args)
}

func (e *Engine) identity() string {
	return e.authz.CurrentIdentity()
}

// emit is fire-and-forget: sink delivery failure is not the shell's problem.
func (e *Engine) emit(rec audit.Record) {
	_ = e.sink.Write(rec)
}

// run executes argv through the sandbox with the engine's timeout.
func (e *Engine) run(argv ...string) sandbox.Result {
	return e.session.Execute(context.Background(), argv, e.timeout)
}
