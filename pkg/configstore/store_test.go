package configstore

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultsSeeded(t *testing.T) {
	t.Parallel()

	s := InMemory()
	if got := s.Get("security", "session_timeout", nil); got != 1800 {
		t.Errorf("session_timeout = %#v, want 1800", got)
	}
	if got := s.Get("general", "log_level", nil); got != "INFO" {
		t.Errorf("log_level = %#v", got)
	}
	if got := s.Get("nope", "missing", "fallback"); got != "fallback" {
		t.Errorf("missing key = %#v, want fallback", got)
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "store.yaml")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Set("app", "x", 42); err != nil {
		t.Fatalf("Set int: %v", err)
	}
	if err := s.Set("app", "flag", true); err != nil {
		t.Fatalf("Set bool: %v", err)
	}
	if err := s.Set("app", "name", "kiosk"); err != nil {
		t.Fatalf("Set string: %v", err)
	}

	// Reopen and check the types survived the YAML round trip.
	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got, ok := s2.Get("app", "x", nil).(int); !ok || got != 42 {
		t.Errorf("x = %#v, want int 42", s2.Get("app", "x", nil))
	}
	if got, ok := s2.Get("app", "flag", nil).(bool); !ok || !got {
		t.Errorf("flag = %#v, want bool true", s2.Get("app", "flag", nil))
	}
	if got, ok := s2.Get("app", "name", nil).(string); !ok || got != "kiosk" {
		t.Errorf("name = %#v, want string kiosk", s2.Get("app", "name", nil))
	}
}

func TestSectionsAndKeys(t *testing.T) {
	t.Parallel()

	s := InMemory()
	if err := s.Set("zeta", "k", 1); err != nil {
		t.Fatalf("Set: %v", err)
	}

	sections := s.Sections()
	if len(sections) == 0 {
		t.Fatal("no sections")
	}
	for i := 1; i < len(sections); i++ {
		if sections[i-1] > sections[i] {
			t.Errorf("sections not sorted: %v", sections)
		}
	}

	keys, ok := s.Keys("general")
	if !ok || len(keys) == 0 {
		t.Errorf("Keys(general) = %v, %v", keys, ok)
	}
	if _, ok := s.Keys("no-such-section"); ok {
		t.Error("Keys reported a missing section as present")
	}
}

func TestCorruptFileFallsBackToDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "store.yaml")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = s

	// Clobber the file and reopen.
	if err := os.WriteFile(path, []byte("{{{not yaml"), 0o600); err != nil {
		t.Fatalf("corrupt: %v", err)
	}
	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen corrupt: %v", err)
	}
	if got := s2.Get("general", "log_level", nil); got != "INFO" {
		t.Errorf("defaults not restored: %#v", got)
	}
}
