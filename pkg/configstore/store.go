// Package configstore holds the platform's section/key configuration. The
// shell's config and log commands read and write it; the rest of the kiosk
// consumes it through the same interface.
package configstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// Store is a two-level section/key configuration map persisted as YAML.
// Values keep their Go types (bool, int, string) across a save/load cycle.
type Store struct {
	mu       sync.Mutex
	path     string
	sections map[string]map[string]any
}

// Open loads the store at path, seeding defaults when the file does not
// exist yet. A corrupt file is replaced by the defaults rather than
// aborting startup.
func Open(path string) (*Store, error) {
	s := &Store{path: path, sections: defaultSections()}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if err := s.save(); err != nil {
			return nil, err
		}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config store: %w", err)
	}

	loaded := make(map[string]map[string]any)
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		if err := s.save(); err != nil {
			return nil, err
		}
		return s, nil
	}
	for name, section := range loaded {
		s.sections[name] = section
	}
	return s, nil
}

// InMemory returns a store that never touches disk, for tests and embedding.
func InMemory() *Store {
	return &Store{sections: defaultSections()}
}

func defaultSections() map[string]map[string]any {
	return map[string]map[string]any{
		"general": {
			"version":          "0.1.0",
			"development_mode": false,
			"log_level":        "INFO",
		},
		"appearance": {
			"theme":     "default",
			"font_size": 12,
		},
		"security": {
			"admin_password_hash": "",
			"session_timeout":     1800,
		},
		"plugins": {
			"enabled":     []any{},
			"auto_update": false,
		},
	}
}

// Get returns the value at section/key, or def when absent.
func (s *Store) Get(section, key string, def any) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sec, ok := s.sections[section]; ok {
		if v, ok := sec[key]; ok {
			return v
		}
	}
	return def
}

// Set stores the value at section/key and persists the store. The section
// is created on first use.
func (s *Store) Set(section, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sec, ok := s.sections[section]
	if !ok {
		sec = make(map[string]any)
		s.sections[section] = sec
	}
	sec[key] = value
	return s.save()
}

// Sections returns all section names, sorted.
func (s *Store) Sections() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.sections))
	for name := range s.sections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Keys returns the sorted key names of a section. ok is false when the
// section does not exist.
func (s *Store) Keys(section string) (keys []string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sec, ok := s.sections[section]
	if !ok {
		return nil, false
	}
	for key := range sec {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, true
}

// save writes the store out; callers hold s.mu. Stores opened with
// InMemory skip persistence.
func (s *Store) save() error {
	if s.path == "" {
		return nil
	}
	data, err := yaml.Marshal(s.sections)
	if err != nil {
		return fmt.Errorf("encode config store: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write config store: %w", err)
	}
	return os.Rename(tmp, s.path)
}
