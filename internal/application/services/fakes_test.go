package services

import (
	"context"
	"slices"
	"sync"

	"stronghold.gg/cms/internal/core/domain"
)

// memRegistry is an in-memory ports.ExtensionRegistry for service tests.
type memRegistry struct {
	mu          sync.Mutex
	descriptors []*domain.ExtensionDescriptor
	invalidated int
}

func (r *memRegistry) Get(id string) (*domain.ExtensionDescriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, desc := range r.descriptors {
		if desc.ID == id {
			return desc, true
		}
	}
	return nil, false
}

func (r *memRegistry) All() []*domain.ExtensionDescriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.descriptors)
}

func (r *memRegistry) AllOfKind(kind domain.Kind) []*domain.ExtensionDescriptor {
	var out []*domain.ExtensionDescriptor
	for _, desc := range r.All() {
		if desc.Kind == kind {
			out = append(out, desc)
		}
	}
	return out
}

func (r *memRegistry) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invalidated++
}

// memEnablement is an in-memory ports.EnablementStore.
type memEnablement struct {
	mu       sync.Mutex
	enabled  []string
	theme    string
	provider string
}

func (e *memEnablement) IsPluginEnabled(ctx context.Context, id string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Contains(e.enabled, id), nil
}

func (e *memEnablement) EnabledPlugins(ctx context.Context) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.enabled), nil
}

func (e *memEnablement) SetEnabledPlugins(ctx context.Context, ids []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enabled = slices.Clone(ids)
	return nil
}

func (e *memEnablement) ActiveTheme(ctx context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.theme == "" {
		return DefaultTheme, nil
	}
	return e.theme, nil
}

func (e *memEnablement) ActiveThemeProvider(ctx context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.provider, nil
}

func (e *memEnablement) SetActiveTheme(ctx context.Context, id, provider string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if id == DefaultTheme {
		id = ""
	}
	e.theme = id
	e.provider = provider
	return nil
}

// recordingBinder records bind calls and can fail selected ids.
type recordingBinder struct {
	mu     sync.Mutex
	bound  []string
	resets int
	fail   map[string]error
}

func (b *recordingBinder) Bind(ctx context.Context, desc *domain.ExtensionDescriptor) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err, ok := b.fail[desc.ID]; ok {
		return err
	}
	b.bound = append(b.bound, desc.ID)
	return nil
}

func (b *recordingBinder) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resets++
}

type recordingViews struct {
	mu   sync.Mutex
	dirs []string
}

func (v *recordingViews) SetThemeDir(dir string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.dirs = append(v.dirs, dir)
}

func (v *recordingViews) current() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.dirs) == 0 {
		return ""
	}
	return v.dirs[len(v.dirs)-1]
}

type recordingConfigs struct {
	mu        sync.Mutex
	evictions []string
}

func (c *recordingConfigs) UnregisterID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictions = append(c.evictions, id)
}
