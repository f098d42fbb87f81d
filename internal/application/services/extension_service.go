package services

import (
	"context"
	"fmt"
	"io"
	"log"
	"slices"

	"stronghold.gg/cms/internal/core/domain"
	"stronghold.gg/cms/internal/core/ports"
)

// Binder is the binding surface the services drive: per-descriptor
// registration plus a reset when the registry is invalidated.
type Binder interface {
	Bind(ctx context.Context, desc *domain.ExtensionDescriptor) error
	Reset()
}

// PluginStatus joins a discovered plugin with its enablement state.
type PluginStatus struct {
	Descriptor *domain.ExtensionDescriptor
	Enabled    bool
}

// ExtensionService orchestrates discovery, enablement, binding and
// installation for plugins.
type ExtensionService struct {
	registry   ports.ExtensionRegistry
	enablement ports.EnablementStore
	binder     Binder
	installer  ports.Installer
	backups    ports.BackupManager
	logger     *log.Logger
}

// NewExtensionService wires the orchestration service.
func NewExtensionService(
	registry ports.ExtensionRegistry,
	enablement ports.EnablementStore,
	binder Binder,
	installer ports.Installer,
	backups ports.BackupManager,
	logger *log.Logger,
) *ExtensionService {
	return &ExtensionService{
		registry:   registry,
		enablement: enablement,
		binder:     binder,
		installer:  installer,
		backups:    backups,
		logger:     logger,
	}
}

// ListPlugins returns every discovered plugin with its enablement state,
// in scan order.
func (s *ExtensionService) ListPlugins(ctx context.Context) ([]PluginStatus, error) {
	enabled, err := s.enablement.EnabledPlugins(ctx)
	if err != nil {
		return nil, err
	}
	var out []PluginStatus
	for _, desc := range s.registry.AllOfKind(domain.KindPlugin) {
		out = append(out, PluginStatus{
			Descriptor: desc,
			Enabled:    slices.Contains(enabled, desc.ID),
		})
	}
	return out, nil
}

// EnablePlugin adds id to the enabled set. The plugin must be discovered
// on disk; enabling something that is not installed is a user error.
func (s *ExtensionService) EnablePlugin(ctx context.Context, id string) error {
	desc, ok := s.registry.Get(id)
	if !ok || desc.Kind != domain.KindPlugin {
		return domain.ErrNotFound
	}
	enabled, err := s.enablement.EnabledPlugins(ctx)
	if err != nil {
		return err
	}
	if slices.Contains(enabled, id) {
		return nil
	}
	return s.enablement.SetEnabledPlugins(ctx, append(enabled, id))
}

// DisablePlugin removes id from the enabled set. Dangling ids — enabled
// entries whose directory was deleted out-of-band — are still removable.
func (s *ExtensionService) DisablePlugin(ctx context.Context, id string) error {
	enabled, err := s.enablement.EnabledPlugins(ctx)
	if err != nil {
		return err
	}
	idx := slices.Index(enabled, id)
	if idx < 0 {
		return nil
	}
	return s.enablement.SetEnabledPlugins(ctx, slices.Delete(enabled, idx, idx+1))
}

// BindEnabled registers every enabled, discovered plugin into the host in
// scan order. One broken plugin never prevents the rest from binding: its
// failure is logged and skipped.
func (s *ExtensionService) BindEnabled(ctx context.Context) int {
	enabled, err := s.enablement.EnabledPlugins(ctx)
	if err != nil {
		s.logger.Printf("bind: failed to read enabled plugins: %v", err)
		return 0
	}

	bound := 0
	for _, desc := range s.registry.AllOfKind(domain.KindPlugin) {
		if !slices.Contains(enabled, desc.ID) {
			continue
		}
		if err := s.binder.Bind(ctx, desc); err != nil {
			s.logger.Printf("bind: plugin %s failed, skipping: %v", desc.ID, err)
			continue
		}
		bound++
	}
	return bound
}

// Install runs the install pipeline and rebinds on success. Reset evicts
// every live registration, so the whole enabled set is rebound, not just
// the fresh extension.
func (s *ExtensionService) Install(ctx context.Context, archive io.Reader, size int64, kind domain.Kind, autoEnable bool) (*ports.InstallResult, error) {
	result, err := s.installer.Install(ctx, archive, size, kind, autoEnable)
	if err != nil {
		return nil, err
	}
	s.binder.Reset()
	s.BindEnabled(ctx)
	if result.Enabled {
		if berr := s.binder.Bind(ctx, result.Descriptor); berr != nil {
			s.logger.Printf("bind: freshly installed %s failed: %v", result.Descriptor.ID, berr)
		}
	}
	return result, nil
}

// Uninstall removes an extension: disabled first, optionally backed up,
// then deleted. The surviving enabled set is rebound afterwards.
func (s *ExtensionService) Uninstall(ctx context.Context, id string, kind domain.Kind, backup bool) error {
	if err := s.installer.Uninstall(ctx, id, kind, backup); err != nil {
		return err
	}
	s.binder.Reset()
	s.BindEnabled(ctx)
	return nil
}

// Reload invalidates the discovery cache so the next read re-scans, and
// forgets per-process binding state.
func (s *ExtensionService) Reload() {
	s.registry.Invalidate()
	s.binder.Reset()
}

// Backups exposes the backup manager for listing and download.
func (s *ExtensionService) Backups() ports.BackupManager { return s.backups }

// Registry exposes read access to discovered descriptors.
func (s *ExtensionService) Registry() ports.ExtensionRegistry { return s.registry }

// Get returns one descriptor by id.
func (s *ExtensionService) Get(id string) (*domain.ExtensionDescriptor, error) {
	desc, ok := s.registry.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	return desc, nil
}
