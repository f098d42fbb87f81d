package ports

import (
	"context"
	"io"
	"time"

	"stronghold.gg/cms/internal/core/domain"
)

// Scanner discovers extension descriptors under a root directory. Scans are
// deterministic: two scans of an unchanged tree yield equal slices.
type Scanner interface {
	Scan(root string, kind domain.Kind) []*domain.ExtensionDescriptor
}

// ExtensionRegistry is the process-scoped cache of discovered descriptors.
type ExtensionRegistry interface {
	Get(id string) (*domain.ExtensionDescriptor, bool)
	All() []*domain.ExtensionDescriptor
	AllOfKind(kind domain.Kind) []*domain.ExtensionDescriptor

	// Invalidate clears the memoized scan. The next read re-scans. Must be
	// called after any filesystem mutation of the extension directories.
	Invalidate()
}

// EnablementStore persists which plugins are enabled and which theme is
// active, independently of discovery. Dangling ids are tolerated.
type EnablementStore interface {
	IsPluginEnabled(ctx context.Context, id string) (bool, error)
	EnabledPlugins(ctx context.Context) ([]string, error)
	SetEnabledPlugins(ctx context.Context, ids []string) error

	ActiveTheme(ctx context.Context) (string, error)
	ActiveThemeProvider(ctx context.Context) (string, error)
	SetActiveTheme(ctx context.Context, id, provider string) error
}

// SettingsStore is the generic durable key-value store backing enablement
// and other host settings.
type SettingsStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// RegistrationBinder wires one descriptor's routes, views, translations,
// migrations and config into the host. Binding is side-effect only, safe to
// repeat per process boot, and isolated per descriptor: a failure binds
// nothing for that descriptor and must not affect others.
type RegistrationBinder interface {
	Bind(ctx context.Context, desc *domain.ExtensionDescriptor) error
}

// InstallResult describes a completed installation.
type InstallResult struct {
	Descriptor *domain.ExtensionDescriptor
	Replaced   bool
	BackupName string
	Enabled    bool
}

// Installer runs the archive install pipeline: stage, validate, back up,
// swap, invalidate. A failed install leaves the live directory untouched.
type Installer interface {
	Install(ctx context.Context, archive io.Reader, size int64, kind domain.Kind, autoEnable bool) (*InstallResult, error)
	Uninstall(ctx context.Context, id string, kind domain.Kind, backup bool) error
}

// BackupInfo describes one backup artifact on disk.
type BackupInfo struct {
	Name        string
	ExtensionID string
	CreatedAt   time.Time
	SizeBytes   int64
	Path        string
}

// BackupManager creates and lists timestamped extension backups.
type BackupManager interface {
	Backup(id, sourceDir string) (string, error)
	Restore(name, destDir string) error
	List() ([]BackupInfo, error)
	Archive(name string, w io.Writer) error
	Prune(keep int) (int, error)
}
