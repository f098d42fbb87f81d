package registry

import (
	"sync"

	"stronghold.gg/cms/internal/core/domain"
	"stronghold.gg/cms/internal/core/ports"
)

// ExtensionRegistry memoizes one scan of the plugin and theme roots for the
// lifetime of the process. Invalidate clears the memo; the next read
// re-scans. There is no cross-process coordination: installs are rare,
// admin-triggered and synchronous, so each process scans independently.
type ExtensionRegistry struct {
	scanner    ports.Scanner
	pluginRoot string
	themeRoot  string

	mu     sync.RWMutex
	byID   map[string]*domain.ExtensionDescriptor
	sorted []*domain.ExtensionDescriptor
	loaded bool
}

// NewExtensionRegistry creates a registry over the given roots. Nothing is
// scanned until the first read.
func NewExtensionRegistry(scanner ports.Scanner, pluginRoot, themeRoot string) *ExtensionRegistry {
	return &ExtensionRegistry{
		scanner:    scanner,
		pluginRoot: pluginRoot,
		themeRoot:  themeRoot,
	}
}

// Get returns the descriptor for id, scanning first if needed. Plugin ids
// take precedence over theme ids in the flat lookup; in practice ids are
// unique across kinds.
func (r *ExtensionRegistry) Get(id string) (*domain.ExtensionDescriptor, bool) {
	r.ensureLoaded()
	r.mu.RLock()
	defer r.mu.RUnlock()
	desc, ok := r.byID[id]
	return desc, ok
}

// All returns every discovered descriptor, plugins first, each group in
// scan order.
func (r *ExtensionRegistry) All() []*domain.ExtensionDescriptor {
	r.ensureLoaded()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.ExtensionDescriptor, len(r.sorted))
	copy(out, r.sorted)
	return out
}

// AllOfKind returns discovered descriptors of one kind in scan order.
func (r *ExtensionRegistry) AllOfKind(kind domain.Kind) []*domain.ExtensionDescriptor {
	r.ensureLoaded()
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.ExtensionDescriptor
	for _, desc := range r.sorted {
		if desc.Kind == kind {
			out = append(out, desc)
		}
	}
	return out
}

// Invalidate discards the memoized scan.
func (r *ExtensionRegistry) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID = nil
	r.sorted = nil
	r.loaded = false
}

func (r *ExtensionRegistry) ensureLoaded() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loaded {
		return
	}

	plugins := r.scanner.Scan(r.pluginRoot, domain.KindPlugin)
	themes := r.scanner.Scan(r.themeRoot, domain.KindTheme)

	r.byID = make(map[string]*domain.ExtensionDescriptor, len(plugins)+len(themes))
	r.sorted = make([]*domain.ExtensionDescriptor, 0, len(plugins)+len(themes))
	for _, desc := range append(plugins, themes...) {
		if _, exists := r.byID[desc.ID]; !exists {
			r.byID[desc.ID] = desc
		}
		r.sorted = append(r.sorted, desc)
	}
	r.loaded = true
}
