package di

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"stronghold.gg/cms/internal/application/services"
	"stronghold.gg/cms/internal/infrastructure/binding"
	"stronghold.gg/cms/internal/infrastructure/config"
	"stronghold.gg/cms/internal/infrastructure/discovery"
	"stronghold.gg/cms/internal/infrastructure/host"
	"stronghold.gg/cms/internal/infrastructure/install"
	"stronghold.gg/cms/internal/infrastructure/registry"
	"stronghold.gg/cms/internal/infrastructure/settings"
	"stronghold.gg/cms/internal/infrastructure/watcher"
	"stronghold.gg/cms/internal/interfaces/cli"
	"stronghold.gg/cms/internal/interfaces/httpapi"
)

// Container holds all application dependencies.
type Container struct {
	// Configuration
	Config *config.Config

	// Infrastructure
	Settings   *settings.SQLiteStore
	Enablement *settings.Enablement
	Registry   *registry.ExtensionRegistry
	Host       *host.Host
	Binder     *binding.Binder
	Backups    *install.BackupManager
	Pipeline   *install.Pipeline
	Watcher    *watcher.DirWatcher

	// Application services
	Extensions *services.ExtensionService
	Themes     *services.ThemeService

	// Interfaces
	API          *httpapi.Server
	CLIContainer *cli.CLIContainer

	// Logger
	Logger *log.Logger
}

// NewContainer creates and wires the dependency injection container.
func NewContainer(dataDir string) (*Container, error) {
	container := &Container{
		Logger: log.New(os.Stderr, "[stronghold] ", log.LstdFlags),
	}

	if err := container.initializeComponents(dataDir); err != nil {
		return nil, fmt.Errorf("failed to initialize components: %w", err)
	}
	return container, nil
}

func (c *Container) initializeComponents(dataDir string) error {
	cfg, err := config.Load(dataDir)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	c.Config = cfg

	store, err := settings.OpenSQLiteStore(cfg.SettingsDBPath())
	if err != nil {
		return err
	}
	c.Settings = store
	c.Enablement = settings.NewEnablement(store)

	scanner := discovery.NewFilesystemScanner(c.Logger)
	c.Registry = registry.NewExtensionRegistry(scanner, cfg.PluginsDir, cfg.ThemesDir)

	webChain := []host.Middleware{requestLogging(c.Logger)}
	adminChain := []host.Middleware{requestLogging(c.Logger), bearerAuth(cfg.AdminToken)}
	c.Host, err = host.New(store.DB(), cfg.ViewsDir, webChain, adminChain)
	if err != nil {
		store.Close()
		return err
	}

	c.Binder = binding.NewBinder(c.Host, c.Logger)
	c.Backups = install.NewBackupManager(cfg.BackupsDir)
	c.Pipeline = install.NewPipeline(cfg.PluginsDir, cfg.ThemesDir, cfg.StagingDir,
		c.Backups, c.Registry, c.Enablement, c.Host, c.Host.Migrations, c.Logger)

	c.Extensions = services.NewExtensionService(
		c.Registry, c.Enablement, c.Binder, c.Pipeline, c.Backups, c.Logger)
	c.Themes = services.NewThemeService(
		c.Registry, c.Enablement, c.Host.Views, c.Binder, c.Host.Config, c.Logger)

	// Out-of-band file changes reset binding state along with the
	// discovery cache, then rebind the enabled set and reapply the
	// active theme so the running host tracks the directories.
	c.Watcher = watcher.NewDirWatcher(reloadOnChange{c.Extensions, c.Themes, c.Logger}, c.Logger)

	c.API = httpapi.NewServer(c.Extensions, c.Themes, c.Host.Router,
		cfg.AdminToken, cfg.AllowedOrigins, c.Logger)

	c.CLIContainer = &cli.CLIContainer{
		Extensions: c.Extensions,
		Themes:     c.Themes,
		Watcher:    c.Watcher,
		Handler:    c.API.Handler(),
		Config:     cfg,
		Logger:     c.Logger,
	}
	return nil
}

// GetCLIContainer returns the CLI container for command execution.
func (c *Container) GetCLIContainer() *cli.CLIContainer {
	return c.CLIContainer
}

// Shutdown releases held resources.
func (c *Container) Shutdown(ctx context.Context) error {
	if c.Settings != nil {
		if err := c.Settings.Close(); err != nil {
			return fmt.Errorf("failed to close settings store: %w", err)
		}
	}
	return nil
}

// reloadOnChange adapts watcher invalidation to a full extension reload.
type reloadOnChange struct {
	extensions *services.ExtensionService
	themes     *services.ThemeService
	logger     *log.Logger
}

func (r reloadOnChange) Invalidate() {
	ctx := context.Background()
	r.extensions.Reload()
	bound := r.extensions.BindEnabled(ctx)
	if err := r.themes.ApplyActive(ctx); err != nil {
		r.logger.Printf("watch: failed to reapply active theme: %v", err)
	}
	r.logger.Printf("watch: reloaded, %d plugins bound", bound)
}

// requestLogging logs each request served through an extension route chain.
func requestLogging(logger *log.Logger) host.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.Printf("http: %s %s", r.Method, r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}
}

// bearerAuth guards the admin route chain. Admin extension routes are never
// served without it, even when the token is unset.
func bearerAuth(token string) host.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				http.Error(w, "admin access disabled: no admin token configured", http.StatusForbidden)
				return
			}
			header := r.Header.Get("Authorization")
			got, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
