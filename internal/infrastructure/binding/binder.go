package binding

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"stronghold.gg/cms/internal/core/domain"
	"stronghold.gg/cms/internal/infrastructure/host"
)

// Conventional sub-paths checked under an extension root. Every one of
// them is optional; absence is not an error.
const (
	viewsSubPath      = "resources/views"
	langSubPath       = "resources/lang"
	migrationsSubPath = "database/migrations"
	configSubPath     = "config"
	webRoutesFile     = "routes/web.json"
	adminRoutesFile   = "routes/admin.json"
)

// Binder registers one descriptor's resources into the host. Binding is
// guarded to run at most once per descriptor per process, so repeated
// boot-time passes cannot duplicate routes. A failure while binding one
// descriptor evicts its partial registrations and leaves every other
// descriptor untouched.
type Binder struct {
	host   *host.Host
	logger *log.Logger

	mu    sync.Mutex
	bound map[string]bool
}

// NewBinder creates a binder registering into h.
func NewBinder(h *host.Host, logger *log.Logger) *Binder {
	return &Binder{host: h, logger: logger, bound: make(map[string]bool)}
}

// Bind wires desc's views, translations, config, migrations and routes
// into the host, namespaced by the descriptor id.
func (b *Binder) Bind(ctx context.Context, desc *domain.ExtensionDescriptor) error {
	b.mu.Lock()
	if b.bound[desc.ID] {
		b.mu.Unlock()
		return nil
	}
	b.bound[desc.ID] = true
	b.mu.Unlock()

	if err := b.bind(ctx, desc); err != nil {
		// Roll back partial registrations so a broken extension leaves
		// no trace, then allow a retry after the next invalidation.
		b.host.Evict(desc.ID)
		b.mu.Lock()
		delete(b.bound, desc.ID)
		b.mu.Unlock()
		return err
	}
	return nil
}

// Reset forgets which descriptors were bound and evicts their
// registrations, so the next pass rebinds everything from a clean host.
// Called together with registry invalidation.
func (b *Binder) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id := range b.bound {
		b.host.Evict(id)
	}
	b.bound = make(map[string]bool)
}

func (b *Binder) bind(ctx context.Context, desc *domain.ExtensionDescriptor) error {
	if dir := b.existingDir(desc, viewsSubPath); dir != "" {
		b.host.Views.RegisterNamespace(desc.ID, dir)
	}

	if dir := b.existingDir(desc, langSubPath); dir != "" {
		if err := b.host.Translator.RegisterNamespace(desc.ID, dir); err != nil {
			return fmt.Errorf("translations for %s: %w", desc.ID, err)
		}
	}

	if dir := b.existingDir(desc, configSubPath); dir != "" {
		if err := b.host.Config.RegisterDir(desc.ID, dir); err != nil {
			return fmt.Errorf("config for %s: %w", desc.ID, err)
		}
	}

	if dir := b.existingDir(desc, migrationsSubPath); dir != "" {
		if _, err := b.host.Migrations.Run(ctx, desc.ID, dir); err != nil {
			return fmt.Errorf("migrations for %s: %w", desc.ID, err)
		}
	}

	// Route tables apply to plugins only; themes contribute views.
	if desc.Kind == domain.KindPlugin {
		if err := b.bindRoutes(desc); err != nil {
			return err
		}
	}

	if desc.RegistrationHandle != "" {
		hook, ok := b.host.Hooks.Resolve(desc.RegistrationHandle)
		if !ok {
			// Unresolvable handles are tolerated: the conventional
			// registrations above already happened.
			b.logger.Printf("bind: %s names unknown registration hook %q, skipping",
				desc.ID, desc.RegistrationHandle)
			return nil
		}
		if err := hook(ctx, b.host, desc); err != nil {
			return fmt.Errorf("registration hook %q for %s: %w", desc.RegistrationHandle, desc.ID, err)
		}
	}
	return nil
}

func (b *Binder) bindRoutes(desc *domain.ExtensionDescriptor) error {
	webPath := filepath.Join(desc.RootPath, webRoutesFile)
	if _, err := os.Stat(webPath); err == nil {
		defs, err := host.LoadRouteFile(webPath)
		if err != nil {
			return fmt.Errorf("web routes for %s: %w", desc.ID, err)
		}
		if err := b.host.Router.RegisterPublic(desc.ID, defs); err != nil {
			return fmt.Errorf("web routes for %s: %w", desc.ID, err)
		}
	}

	adminPath := filepath.Join(desc.RootPath, adminRoutesFile)
	if _, err := os.Stat(adminPath); err == nil {
		defs, err := host.LoadRouteFile(adminPath)
		if err != nil {
			return fmt.Errorf("admin routes for %s: %w", desc.ID, err)
		}
		if err := b.host.Router.RegisterAdmin(desc.ID, defs); err != nil {
			return fmt.Errorf("admin routes for %s: %w", desc.ID, err)
		}
	}
	return nil
}

func (b *Binder) existingDir(desc *domain.ExtensionDescriptor, subPath string) string {
	dir := filepath.Join(desc.RootPath, filepath.FromSlash(subPath))
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return ""
	}
	return dir
}
