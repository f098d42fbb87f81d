package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"stronghold.gg/cms/internal/core/ports"
)

// Persisted keys. Dangling extension ids in these values are tolerated
// everywhere: enablement references extensions by name only.
const (
	KeyEnabledPlugins      = "enabled_plugins"
	KeyActiveTheme         = "active_theme"
	KeyActiveThemeProvider = "active_theme_provider"
)

// DefaultTheme is the sentinel meaning "no custom theme, built-in styling".
const DefaultTheme = "default"

// Enablement persists which plugins are enabled and which theme is active,
// independently of what is discoverable on disk.
type Enablement struct {
	store ports.SettingsStore
}

// NewEnablement creates an enablement store over a settings store.
func NewEnablement(store ports.SettingsStore) *Enablement {
	return &Enablement{store: store}
}

// IsPluginEnabled reports whether id is in the enabled set.
func (e *Enablement) IsPluginEnabled(ctx context.Context, id string) (bool, error) {
	ids, err := e.EnabledPlugins(ctx)
	if err != nil {
		return false, err
	}
	for _, enabled := range ids {
		if enabled == id {
			return true, nil
		}
	}
	return false, nil
}

// EnabledPlugins returns the enabled plugin ids in sorted order.
func (e *Enablement) EnabledPlugins(ctx context.Context) ([]string, error) {
	raw, ok, err := e.store.Get(ctx, KeyEnabledPlugins)
	if err != nil {
		return nil, err
	}
	if !ok || raw == "" {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", KeyEnabledPlugins, err)
	}
	sort.Strings(ids)
	return ids, nil
}

// SetEnabledPlugins replaces the enabled set, deduplicated and sorted.
func (e *Enablement) SetEnabledPlugins(ctx context.Context, ids []string) error {
	seen := make(map[string]bool, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}
	sort.Strings(unique)

	raw, err := json.Marshal(unique)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", KeyEnabledPlugins, err)
	}
	return e.store.Set(ctx, KeyEnabledPlugins, string(raw))
}

// ActiveTheme returns the active theme id, or the default sentinel when no
// custom theme has been activated.
func (e *Enablement) ActiveTheme(ctx context.Context) (string, error) {
	id, ok, err := e.store.Get(ctx, KeyActiveTheme)
	if err != nil {
		return "", err
	}
	if !ok || id == "" {
		return DefaultTheme, nil
	}
	return id, nil
}

// ActiveThemeProvider returns the persisted registration handle of the
// active theme, if it declared one.
func (e *Enablement) ActiveThemeProvider(ctx context.Context) (string, error) {
	provider, _, err := e.store.Get(ctx, KeyActiveThemeProvider)
	return provider, err
}

// SetActiveTheme atomically records the active theme and its registration
// handle. Passing the default sentinel clears both keys, returning the host
// to built-in styling. At most one theme is ever recorded active.
func (e *Enablement) SetActiveTheme(ctx context.Context, id, provider string) error {
	if id == DefaultTheme || id == "" {
		if err := e.store.Delete(ctx, KeyActiveThemeProvider); err != nil {
			return err
		}
		return e.store.Delete(ctx, KeyActiveTheme)
	}

	if provider != "" {
		if err := e.store.Set(ctx, KeyActiveThemeProvider, provider); err != nil {
			return err
		}
	} else if err := e.store.Delete(ctx, KeyActiveThemeProvider); err != nil {
		return err
	}
	return e.store.Set(ctx, KeyActiveTheme, id)
}
