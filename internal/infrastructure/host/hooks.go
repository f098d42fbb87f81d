package host

import (
	"context"
	"fmt"
	"sync"

	"stronghold.gg/cms/internal/core/domain"
)

// RegistrationHook is a compiled-in registration unit an extension may name
// through its manifest's service_provider field. It is the escape hatch for
// legacy extensions needing bindings beyond the conventions; new-style
// extensions declare no handle.
type RegistrationHook func(ctx context.Context, h *Host, desc *domain.ExtensionDescriptor) error

// HookRegistry maps registration handle names to hooks. Handles resolve
// against code compiled into the host; nothing is loaded from extension
// directories.
type HookRegistry struct {
	mu    sync.RWMutex
	hooks map[string]RegistrationHook
}

// NewHookRegistry creates an empty hook registry.
func NewHookRegistry() *HookRegistry {
	return &HookRegistry{hooks: make(map[string]RegistrationHook)}
}

// Register adds a named hook. Registering a duplicate name is a programmer
// error and fails.
func (r *HookRegistry) Register(name string, hook RegistrationHook) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.hooks[name]; exists {
		return fmt.Errorf("registration hook %q already registered", name)
	}
	r.hooks[name] = hook
	return nil
}

// Resolve returns the hook for name, if compiled in.
func (r *HookRegistry) Resolve(name string) (RegistrationHook, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	hook, ok := r.hooks[name]
	return hook, ok
}
