package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.History.Size != 100 {
		t.Errorf("History.Size = %d, want 100", cfg.History.Size)
	}
	if cfg.Sandbox.Timeout != "10s" {
		t.Errorf("Sandbox.Timeout = %q", cfg.Sandbox.Timeout)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("logLevel: debug\nhistory:\n  size: 25\nsandbox:\n  timeout: 3s\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.LogLevel != "debug" || cfg.History.Size != 25 || cfg.Sandbox.Timeout != "3s" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SECSHELL_LOG_LEVEL", "error")
	t.Setenv("SECSHELL_HISTORY_SIZE", "7")
	t.Setenv("SECSHELL_ROOT", "/tmp")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.LogLevel != "error" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.History.Size != 7 {
		t.Errorf("History.Size = %d", cfg.History.Size)
	}
	if cfg.Sandbox.Root != "/tmp" {
		t.Errorf("Sandbox.Root = %q", cfg.Sandbox.Root)
	}
}

func TestDefaultConfigPath(t *testing.T) {
	t.Setenv("SECSHELL_CONFIG", "/etc/secshell.yaml")
	if got := DefaultConfigPath(); got != "/etc/secshell.yaml" {
		t.Errorf("DefaultConfigPath = %q", got)
	}
}
