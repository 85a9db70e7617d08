package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/securegui/secshell/pkg/audit"
	"github.com/securegui/secshell/pkg/auth"
	"github.com/securegui/secshell/pkg/config"
	"github.com/securegui/secshell/pkg/configstore"
	"github.com/securegui/secshell/pkg/logging"
	"github.com/securegui/secshell/pkg/plugin"
	"github.com/securegui/secshell/pkg/sandbox"
	"github.com/securegui/secshell/pkg/shell"
	"github.com/securegui/secshell/pkg/version"
)

var cfgFile string

// knownPlugins mirrors the plugins shipped with the kiosk build. The shell
// only toggles their enablement; the platform loader does the loading.
var knownPlugins = map[string]string{
	"hello_world":    "Example plugin that greets the user",
	"system_monitor": "Dashboard widget showing live system metrics",
	"log_panel":      "Dashboard widget streaming platform logs",
}

func main() {
	root := &cobra.Command{
		Use:   "secshell",
		Short: "Restricted command shell for the secure kiosk platform",
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.secshell/config.yaml)")

	root.AddCommand(replCmd())
	root.AddCommand(execCmd())
	root.AddCommand(loginCmd())
	root.AddCommand(auditCmd())
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// app bundles everything a subcommand needs to drive the shell.
type app struct {
	cfg     *config.Config
	store   *configstore.Store
	manager *auth.Manager
	engine  *shell.Engine
	db      *audit.SQLiteSink
}

func (r *app) close() {
	if r.db != nil {
		r.db.Close()
	}
}

func buildRuntime() (*app, error) {
	cfg, err := config.LoadConfig(configPath())
	if err != nil {
		return nil, err
	}

	store, err := configstore.Open(cfg.StorePath)
	if err != nil {
		return nil, err
	}

	session, err := sandbox.NewSession(cfg.Sandbox.Root)
	if err != nil {
		return nil, err
	}
	if cfg.Sandbox.MaxOutput > 0 {
		session.SetMaxOutput(cfg.Sandbox.MaxOutput)
	}

	manager := auth.NewManager(store)

	logger := logging.NewWriter(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	sinks := audit.MultiSink{audit.LogSink{Logger: logger}}

	var db *audit.SQLiteSink
	if cfg.Audit.DBPath != "" {
		db, err = audit.OpenSQLite(cfg.Audit.DBPath)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, db)
	}

	timeout, err := time.ParseDuration(cfg.Sandbox.Timeout)
	if err != nil {
		timeout = sandbox.DefaultTimeout
	}

	opts := shell.Options{
		Session:        session,
		Auth:           manager,
		Config:         store,
		Plugins:        plugin.NewStoreRegistry(store, knownPlugins),
		Sink:           sinks,
		HistorySize:    cfg.History.Size,
		CommandTimeout: timeout,
	}
	if db != nil {
		opts.Querier = db
	}

	engine, err := shell.New(opts)
	if err != nil {
		return nil, err
	}

	return &app{cfg: cfg, store: store, manager: manager, engine: engine, db: db}, nil
}

func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if _, err := os.Stat(config.DefaultConfigPath()); err == nil {
		return config.DefaultConfigPath()
	}
	return ""
}

func replCmd() *cobra.Command {
	var login bool
	var user string

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Interactive shell session",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			if login {
				if err := authenticate(rt.manager, user); err != nil {
					return err
				}
			}

			fmt.Printf("Secure GUI Platform shell %s\n", version.Version)
			fmt.Println("Type 'help' for available commands, 'exit' to leave.")

			scanner := bufio.NewScanner(os.Stdin)
			for {
				fmt.Printf("%s$ ", rt.engine.Session().WorkDir())
				if !scanner.Scan() {
					break
				}

				result := rt.engine.Execute(scanner.Text())
				switch result {
				case "":
				case shell.ClearScreen:
					fmt.Print("\033[2J\033[H")
				case shell.ExitTerminal:
					return nil
				case shell.ShutdownSystem:
					fmt.Println("System shutdown initiated")
					return nil
				case shell.RestartSystem:
					fmt.Println("System restart initiated")
					return nil
				default:
					fmt.Println(result)
				}
			}
			return scanner.Err()
		},
	}

	cmd.Flags().BoolVar(&login, "login", false, "authenticate before starting the session")
	cmd.Flags().StringVar(&user, "user", "admin", "identity to authenticate as")
	return cmd
}

func execCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exec <line>",
		Short: "Run a single shell line and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			result := rt.engine.Execute(args[0])
			if result != "" {
				fmt.Println(result)
			}
			return nil
		},
	}
}

func loginCmd() *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Verify the admin password (sets it on first run)",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			if err := authenticate(rt.manager, user); err != nil {
				return err
			}
			fmt.Println("Authentication successful")
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "admin", "identity to authenticate as")
	return cmd
}

func authenticate(manager *auth.Manager, user string) error {
	fmt.Printf("Password for %s: ", user)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	if !manager.Authenticate(user, string(password)) {
		return fmt.Errorf("authentication failed")
	}
	return nil
}

func auditCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "audit", Short: "Inspect the audit trail"}
	cmd.AddCommand(auditTailCmd())
	return cmd
}

func auditTailCmd() *cobra.Command {
	var limit int
	var user string

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show the most recent audit events",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath())
			if err != nil {
				return err
			}
			if cfg.Audit.DBPath == "" {
				return fmt.Errorf("no audit database configured")
			}

			db, err := audit.OpenSQLite(cfg.Audit.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			var records []audit.Record
			if user != "" {
				records, err = db.ByUser(ctx, user, limit)
			} else {
				records, err = db.Recent(ctx, limit)
			}
			if err != nil {
				return err
			}

			for _, rec := range records {
				line := rec.Command
				if len(rec.Args) > 0 {
					line += " " + strings.Join(rec.Args, " ")
				}
				fmt.Printf("%s\t%s\t%s\t%s\n",
					rec.Timestamp.Format(time.RFC3339), rec.User, rec.Outcome, line)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of events to show")
	cmd.Flags().StringVar(&user, "user", "", "filter by acting user")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version.String())
		},
	}
}
