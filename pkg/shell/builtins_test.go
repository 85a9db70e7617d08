package shell

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/securegui/secshell/pkg/audit"
	"github.com/securegui/secshell/pkg/auth"
	"github.com/securegui/secshell/pkg/configstore"
	"github.com/securegui/secshell/pkg/sandbox"
)

func TestCdRelative(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)

	root := f.engine.Session().Root()
	if err := os.Mkdir(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	got := f.engine.Execute("cd sub")
	if !strings.HasPrefix(got, "Current directory: ") {
		t.Fatalf("cd = %q", got)
	}
	if want := filepath.Join(root, "sub"); f.engine.Session().WorkDir() != want {
		t.Errorf("WorkDir = %q, want %q", f.engine.Session().WorkDir(), want)
	}
}

func TestCdMissingDirectory(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)

	before := f.engine.Session().WorkDir()
	got := f.engine.Execute("cd nowhere")
	if !strings.HasPrefix(got, "Error:") || !strings.Contains(got, "not found") {
		t.Errorf("cd nowhere = %q, want a not-found error", got)
	}
	if f.engine.Session().WorkDir() != before {
		t.Errorf("working dir changed on failed cd")
	}
}

func TestCdAbsolutePathRestricted(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)

	before := f.engine.Session().WorkDir()
	got := f.engine.Execute("cd /etc")
	if !strings.Contains(got, "Absolute paths are restricted") {
		t.Errorf("cd /etc = %q", got)
	}
	if f.engine.Session().WorkDir() != before {
		t.Errorf("working dir changed on restricted cd")
	}
}

func TestCdTraversalConfined(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)

	before := f.engine.Session().WorkDir()
	got := f.engine.Execute("cd ../../..")
	if !strings.HasPrefix(got, "Error:") {
		t.Errorf("traversal cd = %q, want an error", got)
	}
	if f.engine.Session().WorkDir() != before {
		t.Errorf("traversal escaped the sandbox root")
	}
}

func TestLsAbsolutePathRestricted(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)

	got := f.engine.Execute("ls /etc")
	if !strings.Contains(got, "Absolute paths are restricted") {
		t.Errorf("ls /etc = %q", got)
	}
}

func TestCatUsage(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)

	if got := f.engine.Execute("cat"); got != "Usage: cat <filename>" {
		t.Errorf("cat = %q", got)
	}
}

func TestCatReadsFile(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)

	root := f.engine.Session().Root()
	if err := os.WriteFile(filepath.Join(root, "note.txt"), []byte("hello\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	if got := f.engine.Execute("cat note.txt"); got != "hello\n" {
		t.Errorf("cat note.txt = %q", got)
	}
}

func TestHelpListing(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)

	got := f.engine.Execute("help")
	for _, category := range helpCategories {
		if !strings.Contains(got, category+":") {
			t.Errorf("help output missing category %q", category)
		}
	}
	if !strings.Contains(got, "echo") || !strings.Contains(got, "shutdown") {
		t.Errorf("help output missing commands:\n%s", got)
	}
}

func TestHelpForCommand(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)

	if got := f.engine.Execute("help echo"); got != "echo: Display text" {
		t.Errorf("help echo = %q", got)
	}
	if got := f.engine.Execute("help bogus"); got != "No help available for 'bogus'" {
		t.Errorf("help bogus = %q", got)
	}
}

func TestVersionCommand(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)

	got := f.engine.Execute("version")
	if !strings.HasPrefix(got, "Secure GUI Platform v") {
		t.Errorf("version = %q", got)
	}
}

func TestInfoCommand(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)

	got := f.engine.Execute("info")
	if !strings.Contains(got, "Platform:") || !strings.Contains(got, "Runtime:") {
		t.Errorf("info = %q", got)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)

	if got := f.engine.Execute("config set app.x 42"); !strings.Contains(got, "set to 42") {
		t.Fatalf("config set = %q", got)
	}
	if got := f.engine.Execute("config get app.x"); got != "app.x = 42" {
		t.Errorf("config get = %q", got)
	}
	if v, ok := f.store.Get("app", "x", nil).(int); !ok || v != 42 {
		t.Errorf("stored value = %#v, want int 42", f.store.Get("app", "x", nil))
	}
}

func TestConfigCoercion(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)

	cases := []struct {
		raw  string
		want any
	}{
		{"true", true},
		{"False", false},
		{"42", 42},
		{"42.5", "42.5"},
		{"-1", "-1"},
		{"hello", "hello"},
	}
	for _, tc := range cases {
		if got := coerceValue(tc.raw); got != tc.want {
			t.Errorf("coerceValue(%q) = %#v, want %#v", tc.raw, got, tc.want)
		}
	}

	f.engine.Execute("config set app.flag true")
	if v, ok := f.store.Get("app", "flag", nil).(bool); !ok || !v {
		t.Errorf("stored flag = %#v, want bool true", f.store.Get("app", "flag", nil))
	}
}

func TestConfigGetMissing(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)

	got := f.engine.Execute("config get app.missing")
	if !strings.HasPrefix(got, "Error:") || !strings.Contains(got, "not found") {
		t.Errorf("config get app.missing = %q", got)
	}
}

func TestConfigList(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)

	got := f.engine.Execute("config list")
	if !strings.Contains(got, "general") || !strings.Contains(got, "security") {
		t.Errorf("config list = %q", got)
	}

	got = f.engine.Execute("config list general")
	if !strings.Contains(got, "log_level") {
		t.Errorf("config list general = %q", got)
	}

	got = f.engine.Execute("config list nosuch")
	if !strings.HasPrefix(got, "Error:") {
		t.Errorf("config list nosuch = %q", got)
	}
}

func TestLogLevel(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)

	if got := f.engine.Execute("log level debug"); got != "Log level set to DEBUG" {
		t.Errorf("log level debug = %q", got)
	}
	if v := f.store.Get("general", "log_level", ""); v != "DEBUG" {
		t.Errorf("stored log_level = %#v", v)
	}

	got := f.engine.Execute("log level loud")
	if !strings.Contains(got, "Invalid log level") {
		t.Errorf("log level loud = %q", got)
	}
}

type fakeQuerier struct {
	records []audit.Record
}

func (q fakeQuerier) Recent(ctx context.Context, limit int) ([]audit.Record, error) {
	if limit < len(q.records) {
		return q.records[:limit], nil
	}
	return q.records, nil
}

func TestLogView(t *testing.T) {
	t.Parallel()

	session, err := sandbox.NewSession(t.TempDir())
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	querier := fakeQuerier{records: []audit.Record{
		audit.NewRecord("admin", "echo", []string{"hi"}).WithOutcome(audit.OutcomeSuccess, ""),
	}}

	engine, err := New(Options{
		Session: session,
		Auth:    &auth.Static{Authorized: true, Identity: "admin"},
		Config:  configstore.InMemory(),
		Querier: querier,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got := engine.Execute("log view")
	if !strings.Contains(got, "echo hi") || !strings.Contains(got, "success") {
		t.Errorf("log view = %q", got)
	}
}

func TestLogViewUnavailable(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)

	if got := f.engine.Execute("log view"); got != "Audit log viewing is not available" {
		t.Errorf("log view = %q", got)
	}
}

func TestPluginUnavailable(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)

	got := f.engine.Execute("plugin list")
	if !strings.HasPrefix(got, "Error:") {
		t.Errorf("plugin list without registry = %q", got)
	}
}
