package settings

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "settings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "site_name", "Stronghold"))
	value, ok, err := store.Get(ctx, "site_name")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Stronghold", value)

	require.NoError(t, store.Set(ctx, "site_name", "Renamed"))
	value, _, err = store.Get(ctx, "site_name")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", value)

	require.NoError(t, store.Delete(ctx, "site_name"))
	_, ok, err = store.Get(ctx, "site_name")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEnablement_PluginSet(t *testing.T) {
	enablement := NewEnablement(openTestStore(t))
	ctx := context.Background()

	ids, err := enablement.EnabledPlugins(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, enablement.SetEnabledPlugins(ctx, []string{"shop", "votes", "shop", ""}))

	ids, err = enablement.EnabledPlugins(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"shop", "votes"}, ids, "deduplicated and sorted")

	enabled, err := enablement.IsPluginEnabled(ctx, "shop")
	require.NoError(t, err)
	assert.True(t, enabled)

	enabled, err = enablement.IsPluginEnabled(ctx, "docs")
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestEnablement_ActiveThemeDefaults(t *testing.T) {
	enablement := NewEnablement(openTestStore(t))
	ctx := context.Background()

	theme, err := enablement.ActiveTheme(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultTheme, theme)
}

func TestEnablement_SetActiveTheme(t *testing.T) {
	enablement := NewEnablement(openTestStore(t))
	ctx := context.Background()

	require.NoError(t, enablement.SetActiveTheme(ctx, "dark", "legacy.DarkProvider"))

	theme, err := enablement.ActiveTheme(ctx)
	require.NoError(t, err)
	assert.Equal(t, "dark", theme)

	provider, err := enablement.ActiveThemeProvider(ctx)
	require.NoError(t, err)
	assert.Equal(t, "legacy.DarkProvider", provider)

	// Switching themes replaces the previous selection entirely.
	require.NoError(t, enablement.SetActiveTheme(ctx, "light", ""))
	theme, err = enablement.ActiveTheme(ctx)
	require.NoError(t, err)
	assert.Equal(t, "light", theme)

	provider, err = enablement.ActiveThemeProvider(ctx)
	require.NoError(t, err)
	assert.Empty(t, provider, "stale provider of the previous theme is cleared")

	// Deactivating falls back to the default sentinel, never an undefined state.
	require.NoError(t, enablement.SetActiveTheme(ctx, DefaultTheme, ""))
	theme, err = enablement.ActiveTheme(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultTheme, theme)
}

func TestEnablement_DanglingIDsTolerated(t *testing.T) {
	enablement := NewEnablement(openTestStore(t))
	ctx := context.Background()

	// Enablement references extensions by name only; ids of deleted
	// extensions stay readable without error.
	require.NoError(t, enablement.SetEnabledPlugins(ctx, []string{"deleted-long-ago"}))
	enabled, err := enablement.IsPluginEnabled(ctx, "deleted-long-ago")
	require.NoError(t, err)
	assert.True(t, enabled)
}
