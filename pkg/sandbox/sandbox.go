// Package sandbox runs external programs for the shell with a restricted
// environment, a confined working directory, and a hard wall-clock timeout.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	// TimeoutExitCode is reported when the child is killed at the deadline,
	// matching coreutils timeout(1).
	TimeoutExitCode = 124

	// DefaultTimeout bounds executions when the caller passes none.
	DefaultTimeout = 10 * time.Second

	defaultMaxOutput = 1 << 20

	restrictedPath = "/usr/local/bin:/usr/bin:/bin"
)

// ErrOutsideRoot is returned when a resolved path escapes the session root.
var ErrOutsideRoot = errors.New("path escapes sandbox root")

// Result contains the child's exit code and captured output. Failures to
// start or finish are encoded here, never surfaced as a fault to the caller.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Session is one shell's execution context: a confinement root, a working
// directory always inside that root, and a fixed restricted environment.
// Sessions are not safe for concurrent use; the shell serializes access.
type Session struct {
	root      string
	workDir   string
	env       map[string]string
	maxOutput int
}

// NewSession creates a session rooted and started at root, which must be an
// existing directory. root is resolved to an absolute path first.
func NewSession(root string) (*Session, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve sandbox root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("sandbox root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("sandbox root is not a directory: %s", abs)
	}

	s := &Session{
		root:      abs,
		workDir:   abs,
		maxOutput: defaultMaxOutput,
	}
	s.env = restrictedEnv(abs)
	return s, nil
}

// restrictedEnv builds the fixed environment: a minimal PATH, HOME pinned to
// the working directory, a marker variable, and a short allowlist of
// variables inherited from the parent process when present.
func restrictedEnv(workDir string) map[string]string {
	env := map[string]string{
		"PATH":     restrictedPath,
		"LANG":     "en_US.UTF-8",
		"HOME":     workDir,
		"TERM":     "xterm-256color",
		"SECSHELL": "1",
	}
	if lang := os.Getenv("LANG"); lang != "" {
		env["LANG"] = lang
	}
	for _, name := range []string{"TZ", "DISPLAY", "SHELL"} {
		if v, ok := os.LookupEnv(name); ok {
			env[name] = v
		}
	}
	return env
}

// SetMaxOutput caps captured stdout/stderr in bytes. Zero or negative
// restores the default.
func (s *Session) SetMaxOutput(n int) {
	if n <= 0 {
		n = defaultMaxOutput
	}
	s.maxOutput = n
}

// Root returns the confinement root.
func (s *Session) Root() string { return s.root }

// WorkDir returns the current working directory.
func (s *Session) WorkDir() string { return s.workDir }

// Environ renders the restricted environment in the form os/exec expects.
func (s *Session) Environ() []string {
	pairs := make([]string, 0, len(s.env))
	for k, v := range s.env {
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)
	return pairs
}

// Resolve turns a command argument into an absolute path inside the root.
// Relative arguments are taken against the working directory. The result is
// lexically cleaned and checked against the root, so ".." sequences cannot
// escape the sandbox.
func (s *Session) Resolve(path string) (string, error) {
	if path == "" {
		path = "."
	}
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(s.workDir, abs)
	}
	abs = filepath.Clean(abs)
	if abs != s.root && !strings.HasPrefix(abs, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}
	return abs, nil
}

// Chdir moves the working directory. The destination must resolve inside
// the root and be an existing directory; on success HOME follows it.
func (s *Session) Chdir(path string) error {
	abs, err := s.Resolve(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("directory '%s' not found", path)
		}
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("'%s' is not a directory", path)
	}
	s.workDir = abs
	s.env["HOME"] = abs
	return nil
}

// Execute runs argv as a single child process. argv is passed verbatim:
// the first element is the program, the rest are literal arguments, and no
// shell interpreter is ever involved. The child gets the restricted
// environment and the session working directory. After timeout the child is
// killed and TimeoutExitCode is reported.
func (s *Session) Execute(ctx context.Context, argv []string, timeout time.Duration) Result {
	if len(argv) == 0 {
		return Result{ExitCode: 1, Stderr: "empty command"}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	prog, err := s.lookPath(argv[0])
	if err != nil {
		return Result{ExitCode: 1, Stderr: err.Error()}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, prog, argv[1:]...)
	cmd.Dir = s.workDir
	cmd.Env = s.Environ()
	cmd.WaitDelay = 2 * time.Second

	stdout := &limitedBuffer{limit: s.maxOutput}
	stderr := &limitedBuffer{limit: s.maxOutput}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	runErr := cmd.Run()
	res := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if runErr == nil {
		return res
	}

	if ctx.Err() == context.DeadlineExceeded {
		res.ExitCode = TimeoutExitCode
		res.Stderr = fmt.Sprintf("command timed out after %s", timeout)
		return res
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res
	}

	res.ExitCode = 1
	if res.Stderr == "" {
		res.Stderr = runErr.Error()
	}
	return res
}

// lookPath finds the program on the restricted PATH. Arguments containing a
// separator are used as given (they are still subject to the caller's path
// gating before reaching the sandbox).
func (s *Session) lookPath(name string) (string, error) {
	if strings.ContainsRune(name, filepath.Separator) {
		return name, nil
	}
	for _, dir := range strings.Split(s.env["PATH"], ":") {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, name)
		info, err := os.Stat(candidate)
		if err != nil || info.IsDir() {
			continue
		}
		if info.Mode()&0o111 == 0 {
			continue
		}
		return candidate, nil
	}
	return "", fmt.Errorf("command not found: %s", name)
}
