package services

import (
	"context"
	"log"
	"path/filepath"
	"slices"
	"sync"

	"stronghold.gg/cms/internal/core/domain"
	"stronghold.gg/cms/internal/core/ports"
)

// DefaultTheme is the built-in fallback; it is always considered active
// when no custom theme is.
const DefaultTheme = "default"

// ViewPathResolver is the slice of the view engine the theme service
// drives: swapping the override directory ahead of the built-in views.
type ViewPathResolver interface {
	SetThemeDir(dir string)
}

// ThemeConfigCache is whatever derived theme configuration must be flushed
// when the active theme changes.
type ThemeConfigCache interface {
	UnregisterID(id string)
}

// ThemeStatus joins a discovered theme with its activation state.
type ThemeStatus struct {
	Descriptor *domain.ExtensionDescriptor
	Active     bool
}

// ThemeService enforces the single-active-theme invariant: at most one
// theme is active, switching replaces the previous one atomically, and the
// fallback is always the built-in default, never an undefined state.
type ThemeService struct {
	registry   ports.ExtensionRegistry
	enablement ports.EnablementStore
	views      ViewPathResolver
	binder     Binder
	configs    ThemeConfigCache
	logger     *log.Logger

	// Serializes activation so concurrent switches cannot interleave the
	// settings write and the view path swap.
	mu sync.Mutex
}

// NewThemeService wires the theme activation manager.
func NewThemeService(
	registry ports.ExtensionRegistry,
	enablement ports.EnablementStore,
	views ViewPathResolver,
	binder Binder,
	configs ThemeConfigCache,
	logger *log.Logger,
) *ThemeService {
	return &ThemeService{
		registry:   registry,
		enablement: enablement,
		views:      views,
		binder:     binder,
		configs:    configs,
		logger:     logger,
	}
}

// ListThemes returns every discovered theme with its activation state.
func (s *ThemeService) ListThemes(ctx context.Context) ([]ThemeStatus, error) {
	active, err := s.enablement.ActiveTheme(ctx)
	if err != nil {
		return nil, err
	}
	var out []ThemeStatus
	for _, desc := range s.registry.AllOfKind(domain.KindTheme) {
		out = append(out, ThemeStatus{Descriptor: desc, Active: desc.ID == active})
	}
	return out, nil
}

// ActiveTheme returns the id of the active theme, defaulting to the
// built-in sentinel.
func (s *ThemeService) ActiveTheme(ctx context.Context) (string, error) {
	return s.enablement.ActiveTheme(ctx)
}

// Activate makes id the single active theme. The theme must be discovered
// and all of its declared requirements must resolve to installed, enabled
// capabilities; otherwise the previous active theme stays untouched.
func (s *ThemeService) Activate(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	desc, ok := s.registry.Get(id)
	if !ok || desc.Kind != domain.KindTheme {
		return domain.ErrNotFound
	}

	if err := s.checkRequirements(ctx, desc); err != nil {
		return err
	}

	prev, err := s.enablement.ActiveTheme(ctx)
	if err != nil {
		return err
	}

	// Persist first: the durable single-slot value is the source of
	// truth; the in-process view order follows it.
	if err := s.enablement.SetActiveTheme(ctx, id, desc.RegistrationHandle); err != nil {
		return err
	}

	if prev != DefaultTheme && prev != id {
		s.configs.UnregisterID(prev)
	}
	s.views.SetThemeDir(filepath.Join(desc.RootPath, "resources", "views"))

	if err := s.binder.Bind(ctx, desc); err != nil {
		s.logger.Printf("theme: binding %s failed: %v", id, err)
	}
	return nil
}

// Deactivate returns the host to built-in styling.
func (s *ThemeService) Deactivate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, err := s.enablement.ActiveTheme(ctx)
	if err != nil {
		return err
	}
	if err := s.enablement.SetActiveTheme(ctx, DefaultTheme, ""); err != nil {
		return err
	}
	if prev != DefaultTheme {
		s.configs.UnregisterID(prev)
	}
	s.views.SetThemeDir("")
	return nil
}

// ApplyActive restores the persisted active theme at process boot. A
// dangling id — the theme directory was deleted while the setting stayed —
// falls back to the default instead of failing the boot.
func (s *ThemeService) ApplyActive(ctx context.Context) error {
	active, err := s.enablement.ActiveTheme(ctx)
	if err != nil {
		return err
	}
	if active == DefaultTheme {
		s.views.SetThemeDir("")
		return nil
	}

	desc, ok := s.registry.Get(active)
	if !ok || desc.Kind != domain.KindTheme {
		s.logger.Printf("theme: active theme %q not found on disk, using default", active)
		s.views.SetThemeDir("")
		return nil
	}

	s.views.SetThemeDir(filepath.Join(desc.RootPath, "resources", "views"))
	if err := s.binder.Bind(ctx, desc); err != nil {
		s.logger.Printf("theme: binding %s failed: %v", active, err)
	}
	return nil
}

// checkRequirements resolves each declared requirement against the
// installed-and-enabled capability set: enabled plugins that are present
// on disk. Requirement checking is presence only, no version resolution.
func (s *ThemeService) checkRequirements(ctx context.Context, desc *domain.ExtensionDescriptor) error {
	required := desc.RequiredCapabilities()
	if len(required) == 0 {
		return nil
	}

	enabled, err := s.enablement.EnabledPlugins(ctx)
	if err != nil {
		return err
	}
	for _, capability := range required {
		installed, ok := s.registry.Get(capability)
		if !ok || !slices.Contains(enabled, capability) || installed.Kind != domain.KindPlugin {
			return &domain.UnmetRequirementError{Extension: desc.ID, Capability: capability}
		}
	}
	return nil
}
