package host

import "database/sql"

// Host aggregates the framework facilities extensions register into:
// routes, views, translations, config namespaces, migrations, and the
// compiled-in registration hooks.
type Host struct {
	Router     *Router
	Views      *ViewEngine
	Translator *Translator
	Config     *ConfigNamespaces
	Migrations *MigrationRunner
	Hooks      *HookRegistry
}

// New assembles a host around the shared database handle and built-in view
// directory.
func New(db *sql.DB, defaultViewDir string, web, admin []Middleware) (*Host, error) {
	views := NewViewEngine(defaultViewDir)
	migrations, err := NewMigrationRunner(db)
	if err != nil {
		return nil, err
	}
	return &Host{
		Router:     NewRouter(views, web, admin),
		Views:      views,
		Translator: NewTranslator(),
		Config:     NewConfigNamespaces(),
		Migrations: migrations,
		Hooks:      NewHookRegistry(),
	}, nil
}

// ClearCaches flushes derived registration state after a filesystem
// mutation. Route, view and translation registrations are rebuilt by the
// next full bind.
func (h *Host) ClearCaches() {
	h.Config.Clear()
}

// Evict removes every registration belonging to one extension.
func (h *Host) Evict(extensionID string) {
	h.Router.Unregister(extensionID)
	h.Views.UnregisterNamespace(extensionID)
	h.Translator.UnregisterNamespace(extensionID)
	h.Config.UnregisterID(extensionID)
}
