package services

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"stronghold.gg/cms/internal/core/domain"
)

func themeDesc(id string, requires map[string]string) *domain.ExtensionDescriptor {
	return &domain.ExtensionDescriptor{
		ID:       id,
		Kind:     domain.KindTheme,
		Name:     id,
		Version:  domain.DefaultVersion,
		RootPath: "/themes/" + id,
		Requires: requires,
	}
}

func pluginDesc(id string) *domain.ExtensionDescriptor {
	return &domain.ExtensionDescriptor{
		ID:       id,
		Kind:     domain.KindPlugin,
		Name:     id,
		Version:  domain.DefaultVersion,
		RootPath: "/plugins/" + id,
	}
}

func newThemeService(reg *memRegistry, en *memEnablement) (*ThemeService, *recordingViews, *recordingConfigs, *recordingBinder) {
	views := &recordingViews{}
	configs := &recordingConfigs{}
	binder := &recordingBinder{}
	logger := log.New(&bytes.Buffer{}, "", 0)
	return NewThemeService(reg, en, views, binder, configs, logger), views, configs, binder
}

func TestThemeActivate_Basic(t *testing.T) {
	reg := &memRegistry{descriptors: []*domain.ExtensionDescriptor{themeDesc("dark", nil)}}
	en := &memEnablement{}
	svc, views, _, binder := newThemeService(reg, en)
	ctx := context.Background()

	require.NoError(t, svc.Activate(ctx, "dark"))

	active, err := svc.ActiveTheme(ctx)
	require.NoError(t, err)
	assert.Equal(t, "dark", active)
	assert.Equal(t, filepath.Join("/themes/dark", "resources", "views"), views.current())
	assert.Equal(t, []string{"dark"}, binder.bound)
}

func TestThemeActivate_NotFound(t *testing.T) {
	svc, _, _, _ := newThemeService(&memRegistry{}, &memEnablement{})
	err := svc.Activate(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestThemeActivate_PluginIDIsNotATheme(t *testing.T) {
	reg := &memRegistry{descriptors: []*domain.ExtensionDescriptor{pluginDesc("shop")}}
	svc, _, _, _ := newThemeService(reg, &memEnablement{})
	err := svc.Activate(context.Background(), "shop")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestThemeActivate_UnmetRequirementBlocksActivation(t *testing.T) {
	reg := &memRegistry{descriptors: []*domain.ExtensionDescriptor{
		themeDesc("store-front", map[string]string{"shop": "*"}),
	}}
	en := &memEnablement{}
	svc, _, _, _ := newThemeService(reg, en)
	ctx := context.Background()

	err := svc.Activate(ctx, "store-front")

	var unmet *domain.UnmetRequirementError
	require.ErrorAs(t, err, &unmet)
	assert.Equal(t, "shop", unmet.Capability)

	active, aerr := svc.ActiveTheme(ctx)
	require.NoError(t, aerr)
	assert.Equal(t, DefaultTheme, active, "failed activation leaves the active theme unchanged")
}

func TestThemeActivate_RequirementNeedsEnabledPlugin(t *testing.T) {
	reg := &memRegistry{descriptors: []*domain.ExtensionDescriptor{
		themeDesc("store-front", map[string]string{"shop": "*"}),
		pluginDesc("shop"),
	}}
	en := &memEnablement{}
	svc, _, _, _ := newThemeService(reg, en)
	ctx := context.Background()

	// Installed but disabled does not satisfy the requirement.
	var unmet *domain.UnmetRequirementError
	assert.ErrorAs(t, svc.Activate(ctx, "store-front"), &unmet)

	require.NoError(t, en.SetEnabledPlugins(ctx, []string{"shop"}))
	assert.NoError(t, svc.Activate(ctx, "store-front"))
}

func TestThemeActivate_SwitchClearsPreviousConfig(t *testing.T) {
	reg := &memRegistry{descriptors: []*domain.ExtensionDescriptor{
		themeDesc("dark", nil), themeDesc("light", nil),
	}}
	svc, views, configs, _ := newThemeService(reg, &memEnablement{})
	ctx := context.Background()

	require.NoError(t, svc.Activate(ctx, "dark"))
	require.NoError(t, svc.Activate(ctx, "light"))

	assert.Equal(t, []string{"dark"}, configs.evictions)
	assert.Equal(t, filepath.Join("/themes/light", "resources", "views"), views.current())
}

func TestThemeDeactivate(t *testing.T) {
	reg := &memRegistry{descriptors: []*domain.ExtensionDescriptor{themeDesc("dark", nil)}}
	svc, views, configs, _ := newThemeService(reg, &memEnablement{})
	ctx := context.Background()

	require.NoError(t, svc.Activate(ctx, "dark"))
	require.NoError(t, svc.Deactivate(ctx))

	active, err := svc.ActiveTheme(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultTheme, active)
	assert.Empty(t, views.current())
	assert.Contains(t, configs.evictions, "dark")
}

func TestThemeApplyActive_DanglingIDFallsBack(t *testing.T) {
	en := &memEnablement{theme: "deleted-theme"}
	svc, views, _, _ := newThemeService(&memRegistry{}, en)

	require.NoError(t, svc.ApplyActive(context.Background()))
	assert.Empty(t, views.current(), "missing theme directory falls back to built-in views")
}

// Whatever sequence of activations and deactivations runs, exactly the
// last successful selection is active afterwards.
func TestThemeActivate_SingleSlotProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		themeIDs := []string{"alpha", "beta", "gamma", "delta"}
		descriptors := make([]*domain.ExtensionDescriptor, len(themeIDs))
		for i, id := range themeIDs {
			descriptors[i] = themeDesc(id, nil)
		}
		reg := &memRegistry{descriptors: descriptors}
		svc, _, _, _ := newThemeService(reg, &memEnablement{})
		ctx := context.Background()

		expected := DefaultTheme
		steps := rapid.IntRange(1, 12).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			if rapid.Bool().Draw(rt, fmt.Sprintf("deactivate-%d", i)) {
				if err := svc.Deactivate(ctx); err != nil {
					rt.Fatal(err)
				}
				expected = DefaultTheme
				continue
			}
			id := rapid.SampledFrom(themeIDs).Draw(rt, fmt.Sprintf("theme-%d", i))
			if err := svc.Activate(ctx, id); err != nil {
				rt.Fatal(err)
			}
			expected = id
		}

		active, err := svc.ActiveTheme(ctx)
		if err != nil {
			rt.Fatal(err)
		}
		if active != expected {
			rt.Fatalf("active theme %q, expected %q", active, expected)
		}

		statuses, err := svc.ListThemes(ctx)
		if err != nil {
			rt.Fatal(err)
		}
		activeCount := 0
		for _, status := range statuses {
			if status.Active {
				activeCount++
			}
		}
		if expected == DefaultTheme && activeCount != 0 {
			rt.Fatalf("no custom theme expected, found %d active", activeCount)
		}
		if expected != DefaultTheme && activeCount != 1 {
			rt.Fatalf("exactly one active theme expected, found %d", activeCount)
		}
	})
}
