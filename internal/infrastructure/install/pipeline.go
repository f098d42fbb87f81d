package install

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"slices"

	"github.com/google/uuid"

	"stronghold.gg/cms/internal/core/domain"
	"stronghold.gg/cms/internal/core/ports"
	"stronghold.gg/cms/internal/infrastructure/discovery"
)

// MaxArchiveSize caps uploads before extraction is even attempted.
const MaxArchiveSize = 10 << 20 // 10 MB

// cacheFlusher is the slice of the host the pipeline needs: flushing
// derived registration caches after a filesystem mutation.
type cacheFlusher interface {
	ClearCaches()
	Evict(extensionID string)
}

// migrationRunner runs an extension's pending SQL migrations.
type migrationRunner interface {
	Run(ctx context.Context, extensionID, dir string) (int, error)
}

// Pipeline implements the archive install state machine: uploaded archives
// are extracted to an isolated staging directory, validated, and only then
// swapped into the live extensions path, with a backup taken before any
// destructive change. A failure at any stage purges staging and leaves the
// live directory exactly as it was.
//
// There is no cross-process locking around installs: two admin sessions
// installing the same id concurrently is an accepted race for this
// low-frequency operation.
type Pipeline struct {
	pluginsDir string
	themesDir  string
	stagingDir string

	backups    ports.BackupManager
	registry   ports.ExtensionRegistry
	enablement ports.EnablementStore
	caches     cacheFlusher
	migrations migrationRunner
	logger     *log.Logger

	// moveDir is swapped out in tests to inject move failures.
	moveDir func(src, dest string) error
}

// NewPipeline creates an installer writing live extensions under
// pluginsDir/themesDir and staging under stagingDir.
func NewPipeline(
	pluginsDir, themesDir, stagingDir string,
	backups ports.BackupManager,
	registry ports.ExtensionRegistry,
	enablement ports.EnablementStore,
	caches cacheFlusher,
	migrations migrationRunner,
	logger *log.Logger,
) *Pipeline {
	return &Pipeline{
		pluginsDir: pluginsDir,
		themesDir:  themesDir,
		stagingDir: stagingDir,
		backups:    backups,
		registry:   registry,
		enablement: enablement,
		caches:     caches,
		migrations: migrations,
		logger:     logger,
		moveDir:    moveDir,
	}
}

// Install runs the full pipeline for one uploaded archive.
func (p *Pipeline) Install(ctx context.Context, archive io.Reader, size int64, kind domain.Kind, autoEnable bool) (*ports.InstallResult, error) {
	if size > MaxArchiveSize {
		return nil, domain.ErrArchiveTooLarge
	}

	staging := filepath.Join(p.stagingDir, "staging-"+uuid.NewString())
	if err := os.MkdirAll(staging, 0755); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	// Spool the upload to disk; the zip reader needs random access.
	zipPath := filepath.Join(staging, "upload.zip")
	if err := p.spool(archive, zipPath); err != nil {
		return nil, err
	}

	contentDir := filepath.Join(staging, "content")
	if err := extractZip(zipPath, contentDir); err != nil {
		return nil, &domain.ArchiveError{Cause: err}
	}

	desc, extRoot, err := p.validate(contentDir, kind)
	if err != nil {
		return nil, err
	}

	liveRoot := p.liveRoot(kind)
	if err := os.MkdirAll(liveRoot, 0755); err != nil {
		return nil, fmt.Errorf("failed to create extensions directory: %w", err)
	}
	dest := filepath.Join(liveRoot, desc.ID)

	result := &ports.InstallResult{Descriptor: desc}

	// Backup strictly precedes any destructive mutation of the live path.
	if _, err := os.Stat(dest); err == nil {
		backupName, err := p.backups.Backup(desc.ID, dest)
		if err != nil {
			return nil, fmt.Errorf("failed to back up existing %s: %w", desc.ID, err)
		}
		result.Replaced = true
		result.BackupName = backupName

		if err := os.RemoveAll(dest); err != nil {
			return nil, fmt.Errorf("failed to remove existing %s: %w", desc.ID, err)
		}
	}

	if err := p.moveDir(extRoot, dest); err != nil {
		// Put the previous install back so the live directory never ends
		// up missing an extension it had before the call.
		os.RemoveAll(dest)
		if result.BackupName != "" {
			if rerr := p.backups.Restore(result.BackupName, dest); rerr != nil {
				p.logger.Printf("install: failed to restore %s after aborted swap: %v", desc.ID, rerr)
			}
		}
		return nil, fmt.Errorf("failed to move %s into place: %w", desc.ID, err)
	}
	desc.RootPath = dest

	p.caches.ClearCaches()
	p.caches.Evict(desc.ID)
	p.registry.Invalidate()

	if dir := filepath.Join(dest, "database", "migrations"); dirExists(dir) {
		if _, err := p.migrations.Run(ctx, desc.ID, dir); err != nil {
			// The files are installed; pending migrations re-run at the
			// next bind. Reported, not fatal.
			p.logger.Printf("install: migrations for %s failed: %v", desc.ID, err)
		}
	}

	if autoEnable && kind == domain.KindPlugin {
		enabled, err := p.enablement.EnabledPlugins(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read enabled plugins: %w", err)
		}
		if !slices.Contains(enabled, desc.ID) {
			enabled = append(enabled, desc.ID)
		}
		if err := p.enablement.SetEnabledPlugins(ctx, enabled); err != nil {
			return nil, fmt.Errorf("failed to enable %s: %w", desc.ID, err)
		}
		result.Enabled = true
	}

	p.logger.Printf("install: %s %s %s installed", kind, desc.ID, desc.Version)
	return result, nil
}

// Uninstall is the mirror operation: disable first, optionally back up,
// then delete and invalidate. Disabling first fails safe; a disabled but
// still-present extension is harmless, the reverse is not.
func (p *Pipeline) Uninstall(ctx context.Context, id string, kind domain.Kind, backup bool) error {
	desc, ok := p.registry.Get(id)
	if !ok || desc.Kind != kind {
		return domain.ErrNotFound
	}

	if kind == domain.KindPlugin {
		enabled, err := p.enablement.EnabledPlugins(ctx)
		if err != nil {
			return fmt.Errorf("failed to read enabled plugins: %w", err)
		}
		if idx := slices.Index(enabled, id); idx >= 0 {
			if err := p.enablement.SetEnabledPlugins(ctx, slices.Delete(enabled, idx, idx+1)); err != nil {
				return fmt.Errorf("failed to disable %s: %w", id, err)
			}
		}
	} else {
		active, err := p.enablement.ActiveTheme(ctx)
		if err != nil {
			return err
		}
		if active == id {
			if err := p.enablement.SetActiveTheme(ctx, "", ""); err != nil {
				return fmt.Errorf("failed to deactivate %s: %w", id, err)
			}
		}
	}

	if backup {
		if _, err := p.backups.Backup(id, desc.RootPath); err != nil {
			return fmt.Errorf("failed to back up %s before removal: %w", id, err)
		}
	}

	if err := os.RemoveAll(desc.RootPath); err != nil {
		return fmt.Errorf("failed to remove %s: %w", id, err)
	}

	p.caches.ClearCaches()
	p.caches.Evict(id)
	p.registry.Invalidate()
	p.logger.Printf("uninstall: %s %s removed", kind, id)
	return nil
}

func (p *Pipeline) spool(archive io.Reader, zipPath string) error {
	out, err := os.Create(zipPath)
	if err != nil {
		return fmt.Errorf("failed to create staging file: %w", err)
	}
	defer out.Close()

	written, err := io.Copy(out, io.LimitReader(archive, MaxArchiveSize+1))
	if err != nil {
		return fmt.Errorf("failed to store upload: %w", err)
	}
	if written > MaxArchiveSize {
		return domain.ErrArchiveTooLarge
	}
	return nil
}

// validate locates the extension inside the extracted staging content:
// manifest at top level, manifest one directory down (archives that wrap a
// top-level folder), or the structural heuristic for legacy extensions.
// Nothing recognizable means the install fails rather than guessing.
func (p *Pipeline) validate(contentDir string, kind domain.Kind) (*domain.ExtensionDescriptor, string, error) {
	manifestName := kind.ManifestFileName()

	if data, err := os.ReadFile(filepath.Join(contentDir, manifestName)); err == nil {
		manifest, perr := domain.ParseManifest(data)
		if perr != nil {
			return nil, "", perr
		}
		return manifest.Descriptor(kind, contentDir), contentDir, nil
	}

	entries, err := os.ReadDir(contentDir)
	if err != nil {
		return nil, "", fmt.Errorf("failed to inspect staging directory: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		subDir := filepath.Join(contentDir, entry.Name())
		if data, err := os.ReadFile(filepath.Join(subDir, manifestName)); err == nil {
			manifest, perr := domain.ParseManifest(data)
			if perr != nil {
				return nil, "", perr
			}
			return manifest.Descriptor(kind, subDir), subDir, nil
		}
		if discovery.HasCapabilityMarker(subDir, kind) {
			return domain.PlaceholderDescriptor(kind, entry.Name(), subDir), subDir, nil
		}
	}

	return nil, "", &domain.UnrecognizedStructureError{
		Detail: fmt.Sprintf("no %s or recognizable src/ layout found", manifestName),
	}
}

func (p *Pipeline) liveRoot(kind domain.Kind) string {
	if kind == domain.KindTheme {
		return p.themesDir
	}
	return p.pluginsDir
}

func dirExists(dir string) bool {
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}
