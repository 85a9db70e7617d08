// Package plugin exposes plugin state to the shell's plugin command.
// Loading plugin code is the platform loader's concern, not the shell's;
// the shell only inspects and toggles the enablement state.
package plugin

import (
	"fmt"
	"sort"
)

// Info describes one known plugin.
type Info struct {
	Name        string
	Description string
	Enabled     bool
}

// Registry is the collaborator interface the plugin command drives.
type Registry interface {
	List() []Info
	Describe(name string) (Info, bool)
	Enable(name string) error
	Disable(name string) error
}

// Store is the slice of the configuration store the registry persists to.
type Store interface {
	Get(section, key string, def any) any
	Set(section, key string, value any) error
}

// StoreRegistry keeps the enabled set under plugins.enabled in the
// configuration store. The set of known plugins is fixed at construction,
// mirroring the whitelist discipline of the shell itself.
type StoreRegistry struct {
	store Store
	known map[string]string // name -> description
}

// NewStoreRegistry creates a registry over known, a map of plugin name to
// one-line description.
func NewStoreRegistry(store Store, known map[string]string) *StoreRegistry {
	k := make(map[string]string, len(known))
	for name, desc := range known {
		k[name] = desc
	}
	return &StoreRegistry{store: store, known: k}
}

func (r *StoreRegistry) List() []Info {
	enabled := r.enabledSet()
	infos := make([]Info, 0, len(r.known))
	for name, desc := range r.known {
		infos = append(infos, Info{Name: name, Description: desc, Enabled: enabled[name]})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

func (r *StoreRegistry) Describe(name string) (Info, bool) {
	desc, ok := r.known[name]
	if !ok {
		return Info{}, false
	}
	return Info{Name: name, Description: desc, Enabled: r.enabledSet()[name]}, true
}

func (r *StoreRegistry) Enable(name string) error {
	if _, ok := r.known[name]; !ok {
		return fmt.Errorf("unknown plugin: %s", name)
	}
	enabled := r.enabledSet()
	if enabled[name] {
		return nil
	}
	enabled[name] = true
	return r.saveEnabled(enabled)
}

func (r *StoreRegistry) Disable(name string) error {
	if _, ok := r.known[name]; !ok {
		return fmt.Errorf("unknown plugin: %s", name)
	}
	enabled := r.enabledSet()
	if !enabled[name] {
		return nil
	}
	delete(enabled, name)
	return r.saveEnabled(enabled)
}

func (r *StoreRegistry) enabledSet() map[string]bool {
	set := make(map[string]bool)
	raw, _ := r.store.Get("plugins", "enabled", []any{}).([]any)
	for _, v := range raw {
		if name, ok := v.(string); ok {
			set[name] = true
		}
	}
	return set
}

func (r *StoreRegistry) saveEnabled(set map[string]bool) error {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	list := make([]any, len(names))
	for i, name := range names {
		list[i] = name
	}
	return r.store.Set("plugins", "enabled", list)
}
