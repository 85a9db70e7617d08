package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config defines runtime settings for the secure shell.
type Config struct {
	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"`

	// StorePath is the section/key configuration store consumed by the
	// config and log commands.
	StorePath string `yaml:"storePath"`

	History HistoryConfig `yaml:"history"`
	Sandbox SandboxConfig `yaml:"sandbox"`
	Audit   AuditConfig   `yaml:"audit"`
}

type HistoryConfig struct {
	Size int `yaml:"size"`
}

type SandboxConfig struct {
	// Root confines every path the shell will touch. Defaults to the
	// user home directory.
	Root string `yaml:"root"`
	// Timeout is a duration string, e.g. "10s".
	Timeout   string `yaml:"timeout"`
	MaxOutput int    `yaml:"maxOutput"`
}

type AuditConfig struct {
	// DBPath enables the durable SQLite sink when non-empty.
	DBPath string `yaml:"dbPath"`
}

// LoadConfig loads configuration from a YAML file and environment overrides.
func LoadConfig(path string) (*Config, error) {
	home, _ := os.UserHomeDir()
	cfg := &Config{
		LogLevel:  "info",
		LogFormat: "text",
		StorePath: filepath.Join(home, ".secshell", "store.yaml"),
		History:   HistoryConfig{Size: 100},
		Sandbox: SandboxConfig{
			Root:      home,
			Timeout:   "10s",
			MaxOutput: 1 << 20,
		},
		Audit: AuditConfig{
			DBPath: filepath.Join(home, ".secshell", "audit.db"),
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if logLevel := os.Getenv("SECSHELL_LOG_LEVEL"); logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFormat := os.Getenv("SECSHELL_LOG_FORMAT"); logFormat != "" {
		cfg.LogFormat = logFormat
	}
	if root := os.Getenv("SECSHELL_ROOT"); root != "" {
		cfg.Sandbox.Root = root
	}
	if dbPath := os.Getenv("SECSHELL_AUDIT_DB"); dbPath != "" {
		cfg.Audit.DBPath = dbPath
	}
	if size := os.Getenv("SECSHELL_HISTORY_SIZE"); size != "" {
		if n, err := strconv.Atoi(size); err == nil && n > 0 {
			cfg.History.Size = n
		}
	}

	return cfg, nil
}

// DefaultConfigPath returns the default location for the CLI config file.
func DefaultConfigPath() string {
	if path := os.Getenv("SECSHELL_CONFIG"); path != "" {
		return path
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".secshell", "config.yaml")
}
