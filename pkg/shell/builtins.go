package shell

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/securegui/secshell/pkg/sandbox"
	"github.com/securegui/secshell/pkg/version"
)

// errPathRestricted is the path gate failure for non-admin sessions.
var errPathRestricted = errors.New("Absolute paths are restricted")

const (
	categoryGeneral    = "General"
	categoryFileSystem = "File System"
	categorySystemInfo = "System Info"
	categoryAdmin      = "Administration"
)

// helpCategories fixes the listing order of the help command.
var helpCategories = []string{categoryGeneral, categoryFileSystem, categorySystemInfo, categoryAdmin}

func (e *Engine) registerBuiltins() error {
	specs := []CommandSpec{
		{Name: "help", Help: "Display help information", Category: categoryGeneral, Handler: e.cmdHelp},
		{Name: "echo", Help: "Display text", Category: categoryGeneral, Handler: e.cmdEcho},
		{Name: "version", Help: "Display system version", Category: categoryGeneral, Handler: e.cmdVersion},
		{Name: "info", Help: "Display system information", Category: categoryGeneral, Handler: e.cmdInfo},
		{Name: "clear", Help: "Clear the terminal screen", Category: categoryGeneral, Handler: e.cmdClear},
		{Name: "history", Help: "Display command history", Category: categoryGeneral, Handler: e.cmdHistory},

		{Name: "ls", Help: "List directory contents", Category: categoryFileSystem, Handler: e.cmdLs},
		{Name: "pwd", Help: "Show current directory", Category: categoryFileSystem, Handler: e.cmdPwd},
		{Name: "cd", Help: "Change directory", Category: categoryFileSystem, Handler: e.cmdCd},
		{Name: "cat", Help: "Display file contents", Category: categoryFileSystem, Handler: e.cmdCat},

		{Name: "date", Help: "Display current date and time", Category: categorySystemInfo, Handler: e.cmdDate},
		{Name: "uptime", Help: "Display system uptime", Category: categorySystemInfo, Handler: e.cmdUptime},
		{Name: "ps", Help: "List running processes", Category: categorySystemInfo, Handler: e.cmdPs},
		{Name: "df", Help: "Display disk usage", Category: categorySystemInfo, Handler: e.cmdDf},
		{Name: "free", Help: "Display memory usage", Category: categorySystemInfo, Handler: e.cmdFree},

		{Name: "log", Help: "View or modify log settings (admin)", Category: categoryAdmin, Tier: TierAdmin, Handler: e.cmdLog},
		{Name: "plugin", Help: "Manage plugins (admin)", Category: categoryAdmin, Tier: TierAdmin, Handler: e.cmdPlugin},
		{Name: "config", Help: "View or edit configuration settings (admin)", Category: categoryAdmin, Tier: TierAdmin, Handler: e.cmdConfig},
		{Name: "exit", Help: "Exit terminal mode", Category: categoryAdmin, Handler: e.cmdExit},
		{Name: "logout", Help: "Log out current user", Category: categoryAdmin, Handler: e.cmdLogout},
		{Name: "shutdown", Help: "Shut down the system (admin)", Category: categoryAdmin, Tier: TierAdmin, Handler: e.cmdShutdown},
		{Name: "restart", Help: "Restart the system (admin)", Category: categoryAdmin, Tier: TierAdmin, Handler: e.cmdRestart},
	}

	for _, spec := range specs {
		if err := e.Register(spec); err != nil {
			return err
		}
	}
	return nil
}

// gatePath applies the path restriction: an absolute argument needs an
// authorized session; everything is then confined under the sandbox root.
func (e *Engine) gatePath(path string) (string, error) {
	if filepath.IsAbs(path) && !e.authz.IsAuthorized() {
		return "", errPathRestricted
	}
	return e.session.Resolve(path)
}

// sandboxResult maps a sandbox result to the handler contract: stdout on
// success, stderr as the failure detail otherwise.
func sandboxResult(res sandbox.Result) (string, error) {
	if res.ExitCode == 0 {
		return res.Stdout, nil
	}
	detail := strings.TrimSpace(res.Stderr)
	if detail == "" {
		detail = fmt.Sprintf("exit code %d", res.ExitCode)
	}
	return "", errors.New(detail)
}

func (e *Engine) cmdHelp(args []string) (string, error) {
	if len(args) > 0 {
		name := strings.ToLower(args[0])
		if spec, ok := e.commands[name]; ok {
			return fmt.Sprintf("%s: %s", name, spec.Help), nil
		}
		return fmt.Sprintf("No help available for '%s'", name), nil
	}

	var b strings.Builder
	b.WriteString("Available commands:\n")
	b.WriteString("------------------\n")
	for _, category := range helpCategories {
		b.WriteString("\n" + category + ":\n")
		for _, name := range e.order {
			spec := e.commands[name]
			if spec.Category != category {
				continue
			}
			fmt.Fprintf(&b, "  %-10s - %s\n", spec.Name, spec.Help)
		}
	}
	return b.String(), nil
}

func (e *Engine) cmdEcho(args []string) (string, error) {
	return strings.Join(args, " "), nil
}

func (e *Engine) cmdVersion(args []string) (string, error) {
	v := version.Version
	if e.store != nil {
		if stored, ok := e.store.Get("general", "version", v).(string); ok && stored != "" {
			v = stored
		}
	}
	return fmt.Sprintf("Secure GUI Platform v%s", v), nil
}

func (e *Engine) cmdInfo(args []string) (string, error) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	var b strings.Builder
	b.WriteString("System Information:\n")
	b.WriteString("------------------\n")
	fmt.Fprintf(&b, "Platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(&b, "Runtime: %s\n", runtime.Version())
	fmt.Fprintf(&b, "CPUs: %d\n", runtime.NumCPU())
	fmt.Fprintf(&b, "Process memory: %s\n", humanize.IBytes(mem.Sys))
	return b.String(), nil
}

func (e *Engine) cmdClear(args []string) (string, error) {
	return ClearScreen, nil
}

func (e *Engine) cmdHistory(args []string) (string, error) {
	limit := 10
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil && n > 0 {
			limit = n
		}
	}

	entries := e.history.Tail(limit)
	if len(entries) == 0 {
		return "No commands in history", nil
	}

	var b strings.Builder
	b.WriteString("Command History:\n")
	b.WriteString("----------------\n")
	for _, entry := range entries {
		fmt.Fprintf(&b, "%d: %s\n", entry.Index, entry.Line)
	}
	return b.String(), nil
}

func (e *Engine) cmdLs(args []string) (string, error) {
	path := "."
	if len(args) > 0 {
		path = args[0]
	}
	abs, err := e.gatePath(path)
	if err != nil {
		return "", err
	}
	return sandboxResult(e.run("ls", "-la", abs))
}

func (e *Engine) cmdPwd(args []string) (string, error) {
	out, err := sandboxResult(e.run("pwd"))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (e *Engine) cmdCd(args []string) (string, error) {
	path := "."
	if len(args) > 0 {
		path = args[0]
	}
	if filepath.IsAbs(path) && !e.authz.IsAuthorized() {
		return "", errPathRestricted
	}
	if err := e.session.Chdir(path); err != nil {
		return "", err
	}
	return fmt.Sprintf("Current directory: %s", e.session.WorkDir()), nil
}

func (e *Engine) cmdCat(args []string) (string, error) {
	if len(args) == 0 {
		return "Usage: cat <filename>", nil
	}
	abs, err := e.gatePath(args[0])
	if err != nil {
		return "", err
	}
	return sandboxResult(e.run("cat", abs))
}

func (e *Engine) cmdDate(args []string) (string, error) {
	out, err := sandboxResult(e.run("date"))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (e *Engine) cmdUptime(args []string) (string, error) {
	out, err := sandboxResult(e.run("uptime"))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (e *Engine) cmdPs(args []string) (string, error) {
	return sandboxResult(e.run("ps", "-eo", "user,pid,ppid,cmd"))
}

func (e *Engine) cmdDf(args []string) (string, error) {
	return sandboxResult(e.run("df", "-h"))
}

func (e *Engine) cmdFree(args []string) (string, error) {
	if out, err := sandboxResult(e.run("free", "-h")); err == nil {
		return out, nil
	}
	// free is absent on macOS; vm_stat is the closest equivalent.
	if out, err := sandboxResult(e.run("vm_stat")); err == nil {
		return out, nil
	}
	return "Memory usage information not available", nil
}

func (e *Engine) cmdLog(args []string) (string, error) {
	if len(args) == 0 {
		return "Usage: log <view|level> [args]", nil
	}

	switch strings.ToLower(args[0]) {
	case "view":
		if e.querier == nil {
			return "Audit log viewing is not available", nil
		}
		limit := 10
		if len(args) > 1 {
			if n, err := strconv.Atoi(args[1]); err == nil && n > 0 {
				limit = n
			}
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		records, err := e.querier.Recent(ctx, limit)
		if err != nil {
			return "", fmt.Errorf("query audit log: %w", err)
		}
		if len(records) == 0 {
			return "No audit events recorded", nil
		}
		var b strings.Builder
		b.WriteString("Recent audit events:\n")
		for _, rec := range records {
			line := rec.Command
			if len(rec.Args) > 0 {
				line += " " + strings.Join(rec.Args, " ")
			}
			fmt.Fprintf(&b, "%s  %-8s  %-8s  %s\n",
				rec.Timestamp.Format(time.RFC3339), rec.User, rec.Outcome, line)
		}
		return b.String(), nil

	case "level":
		if len(args) < 2 {
			return "Usage: log level <debug|info|warning|error|critical>", nil
		}
		level := strings.ToUpper(args[1])
		valid := []string{"DEBUG", "INFO", "WARNING", "ERROR", "CRITICAL"}
		ok := false
		for _, v := range valid {
			if level == v {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Sprintf("Invalid log level. Valid levels are: %s", strings.Join(valid, ", ")), nil
		}
		if e.store == nil {
			return "", errors.New("configuration store not available")
		}
		if err := e.store.Set("general", "log_level", level); err != nil {
			return "", err
		}
		return fmt.Sprintf("Log level set to %s", level), nil

	default:
		return "", fmt.Errorf("unknown log action: %s", args[0])
	}
}

func (e *Engine) cmdPlugin(args []string) (string, error) {
	if len(args) == 0 {
		return "Usage: plugin <list|info|enable|disable> [args]", nil
	}
	if e.plugins == nil {
		return "", errors.New("plugin management not available")
	}

	switch strings.ToLower(args[0]) {
	case "list":
		infos := e.plugins.List()
		if len(infos) == 0 {
			return "No plugins installed", nil
		}
		var b strings.Builder
		b.WriteString("Plugins:\n")
		for _, info := range infos {
			state := "disabled"
			if info.Enabled {
				state = "enabled"
			}
			fmt.Fprintf(&b, "  %-16s [%s] %s\n", info.Name, state, info.Description)
		}
		return b.String(), nil

	case "info":
		if len(args) < 2 {
			return "Usage: plugin info <plugin_name>", nil
		}
		info, ok := e.plugins.Describe(args[1])
		if !ok {
			return "", fmt.Errorf("plugin '%s' not found", args[1])
		}
		state := "disabled"
		if info.Enabled {
			state = "enabled"
		}
		return fmt.Sprintf("%s (%s)\n%s", info.Name, state, info.Description), nil

	case "enable":
		if len(args) < 2 {
			return "Usage: plugin enable <plugin_name>", nil
		}
		if err := e.plugins.Enable(args[1]); err != nil {
			return "", err
		}
		return fmt.Sprintf("Plugin '%s' enabled", args[1]), nil

	case "disable":
		if len(args) < 2 {
			return "Usage: plugin disable <plugin_name>", nil
		}
		if err := e.plugins.Disable(args[1]); err != nil {
			return "", err
		}
		return fmt.Sprintf("Plugin '%s' disabled", args[1]), nil

	default:
		return "", fmt.Errorf("unknown plugin action: %s", args[0])
	}
}

func (e *Engine) cmdConfig(args []string) (string, error) {
	const usage = "Usage: config <get|set|list> [section.key] [value]"
	if len(args) == 0 {
		return usage, nil
	}
	if e.store == nil {
		return "", errors.New("configuration store not available")
	}

	switch strings.ToLower(args[0]) {
	case "get":
		if len(args) < 2 {
			return "Usage: config get <section.key>", nil
		}
		section, key, ok := splitConfigKey(args[1])
		if !ok {
			return "Usage: config get <section.key>", nil
		}
		value := e.store.Get(section, key, nil)
		if value == nil {
			return "", fmt.Errorf("configuration %s.%s not found", section, key)
		}
		return fmt.Sprintf("%s.%s = %v", section, key, value), nil

	case "set":
		if len(args) < 3 {
			return "Usage: config set <section.key> <value>", nil
		}
		section, key, ok := splitConfigKey(args[1])
		if !ok {
			return "Usage: config set <section.key> <value>", nil
		}
		value := coerceValue(args[2])
		if err := e.store.Set(section, key, value); err != nil {
			return "", err
		}
		return fmt.Sprintf("Configuration %s.%s set to %v", section, key, value), nil

	case "list":
		if len(args) < 2 {
			sections := e.store.Sections()
			if len(sections) == 0 {
				return "No configuration sections found", nil
			}
			var b strings.Builder
			b.WriteString("Configuration Sections:\n")
			for _, section := range sections {
				fmt.Fprintf(&b, "- %s\n", section)
			}
			return b.String(), nil
		}
		section := args[1]
		keys, ok := e.store.Keys(section)
		if !ok {
			return "", fmt.Errorf("section '%s' not found", section)
		}
		if len(keys) == 0 {
			return fmt.Sprintf("No keys found in section '%s'", section), nil
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Configuration Keys in '%s':\n", section)
		for _, key := range keys {
			fmt.Fprintf(&b, "- %s = %v\n", key, e.store.Get(section, key, nil))
		}
		return b.String(), nil

	default:
		return "", fmt.Errorf("unknown config action: %s", args[0])
	}
}

// splitConfigKey parses the dotted section.key form.
func splitConfigKey(arg string) (section, key string, ok bool) {
	section, key, found := strings.Cut(arg, ".")
	if !found || section == "" || key == "" {
		return "", "", false
	}
	return section, key, true
}

// coerceValue turns unambiguous booleans and unsigned integers into typed
// values; everything else stays a string. Best effort, never fails.
func coerceValue(raw string) any {
	switch strings.ToLower(raw) {
	case "true":
		return true
	case "false":
		return false
	}
	if raw != "" {
		digits := true
		for _, r := range raw {
			if r < '0' || r > '9' {
				digits = false
				break
			}
		}
		if digits {
			if n, err := strconv.Atoi(raw); err == nil {
				return n
			}
		}
	}
	return raw
}

func (e *Engine) cmdExit(args []string) (string, error) {
	return ExitTerminal, nil
}

func (e *Engine) cmdLogout(args []string) (string, error) {
	e.authz.Logout()
	return "User logged out successfully", nil
}

func (e *Engine) cmdShutdown(args []string) (string, error) {
	if len(args) > 0 && args[0] == "--force" {
		return ShutdownSystem, nil
	}
	return "System shutdown requires confirmation. Use 'shutdown --force' to confirm.", nil
}

func (e *Engine) cmdRestart(args []string) (string, error) {
	if len(args) > 0 && args[0] == "--force" {
		return RestartSystem, nil
	}
	return "System restart requires confirmation. Use 'restart --force' to confirm.", nil
}
