package di

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stronghold.gg/cms/internal/infrastructure/host"
)

func routeFixture() []host.RouteDefinition {
	return []host.RouteDefinition{
		{Method: "GET", Path: "/settings", Redirect: "/admin"},
	}
}

func TestNewContainer_WiresEverything(t *testing.T) {
	container, err := NewContainer(t.TempDir())
	require.NoError(t, err)
	defer container.Shutdown(context.Background())

	assert.NotNil(t, container.Config)
	assert.NotNil(t, container.Registry)
	assert.NotNil(t, container.Host)
	assert.NotNil(t, container.Extensions)
	assert.NotNil(t, container.Themes)
	assert.NotNil(t, container.API)
	require.NotNil(t, container.CLIContainer)
	assert.NotNil(t, container.CLIContainer.Handler)
}

func TestNewContainer_CreatesDataLayout(t *testing.T) {
	dataDir := t.TempDir()
	container, err := NewContainer(dataDir)
	require.NoError(t, err)
	defer container.Shutdown(context.Background())

	assert.DirExists(t, container.Config.PluginsDir)
	assert.DirExists(t, container.Config.ThemesDir)
	assert.DirExists(t, container.Config.BackupsDir)
	assert.FileExists(t, container.Config.SettingsDBPath())
}

func writePlugin(t *testing.T, pluginsDir, id string, files map[string]string) {
	t.Helper()
	root := filepath.Join(pluginsDir, id)
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
}

func TestWatcherChangeResetsBindingState(t *testing.T) {
	container, err := NewContainer(t.TempDir())
	require.NoError(t, err)
	defer container.Shutdown(context.Background())

	ctx := context.Background()
	writePlugin(t, container.Config.PluginsDir, "shop", map[string]string{
		"plugin.json":     `{"id":"shop","name":"Shop"}`,
		"routes/web.json": `[{"path":"cart","redirect":"/cart"}]`,
	})
	require.NoError(t, container.Extensions.EnablePlugin(ctx, "shop"))
	require.Equal(t, 1, container.Extensions.BindEnabled(ctx))

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go container.Watcher.Watch(watchCtx, container.Config.PluginsDir)
	time.Sleep(100 * time.Millisecond)

	// Drop a plugin directory behind the running host's back.
	writePlugin(t, container.Config.PluginsDir, "news", map[string]string{
		"plugin.json": `{"id":"news","name":"News"}`,
	})
	assert.Eventually(t, func() bool {
		statuses, err := container.Extensions.ListPlugins(ctx)
		return err == nil && len(statuses) == 2
	}, 3*time.Second, 50*time.Millisecond)

	// The reload reset binding state along with the discovery cache, so
	// the next pass rebinds cleanly instead of hitting its own routes.
	assert.Equal(t, 1, container.Extensions.BindEnabled(ctx))
	assert.Equal(t, []string{"GET /plugins/shop/cart"}, container.Host.Router.Routes())
}

func TestAdminExtensionRoutesRequireToken(t *testing.T) {
	t.Setenv("STRONGHOLD_ADMIN_TOKEN", "hunter2")
	container, err := NewContainer(t.TempDir())
	require.NoError(t, err)
	defer container.Shutdown(context.Background())

	require.NoError(t, container.Host.Router.RegisterAdmin("shop", routeFixture()))

	rec := httptest.NewRecorder()
	container.CLIContainer.Handler.ServeHTTP(rec,
		httptest.NewRequest(http.MethodGet, "/admin/plugins/shop/settings", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/admin/plugins/shop/settings", nil)
	req.Header.Set("Authorization", "Bearer hunter2")
	rec = httptest.NewRecorder()
	container.CLIContainer.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusFound, rec.Code)
}

func TestAdminExtensionRoutesDisabledWithoutToken(t *testing.T) {
	container, err := NewContainer(t.TempDir())
	require.NoError(t, err)
	defer container.Shutdown(context.Background())

	require.NoError(t, container.Host.Router.RegisterAdmin("shop", routeFixture()))

	rec := httptest.NewRecorder()
	container.CLIContainer.Handler.ServeHTTP(rec,
		httptest.NewRequest(http.MethodGet, "/admin/plugins/shop/settings", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
