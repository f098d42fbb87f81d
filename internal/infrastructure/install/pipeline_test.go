package install

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stronghold.gg/cms/internal/core/domain"
	"stronghold.gg/cms/internal/core/ports"
	"stronghold.gg/cms/internal/infrastructure/discovery"
	"stronghold.gg/cms/internal/infrastructure/registry"
	"stronghold.gg/cms/internal/infrastructure/settings"
)

type fakeCaches struct {
	cleared int
	evicted []string
}

func (f *fakeCaches) ClearCaches()    { f.cleared++ }
func (f *fakeCaches) Evict(id string) { f.evicted = append(f.evicted, id) }

type fakeMigrations struct {
	runs []string
	err  error
}

func (f *fakeMigrations) Run(ctx context.Context, id, dir string) (int, error) {
	f.runs = append(f.runs, id)
	return 0, f.err
}

// failingBackups refuses every backup, for the ordering tests.
type failingBackups struct{}

func (failingBackups) Backup(id, sourceDir string) (string, error) {
	return "", errors.New("disk full")
}
func (failingBackups) Restore(name, destDir string) error     { return errors.New("disk full") }
func (failingBackups) List() ([]ports.BackupInfo, error)      { return nil, nil }
func (failingBackups) Archive(name string, w io.Writer) error { return errors.New("disk full") }
func (failingBackups) Prune(keep int) (int, error)            { return 0, nil }

type fixture struct {
	pipeline   *Pipeline
	pluginsDir string
	themesDir  string
	stagingDir string
	backupsDir string
	enablement *settings.Enablement
	caches     *fakeCaches
	migrations *fakeMigrations
	registry   *registry.ExtensionRegistry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	base := t.TempDir()
	pluginsDir := filepath.Join(base, "plugins")
	themesDir := filepath.Join(base, "themes")
	stagingDir := filepath.Join(base, "staging")
	backupsDir := filepath.Join(base, "backups")
	for _, dir := range []string{pluginsDir, themesDir, stagingDir} {
		require.NoError(t, os.MkdirAll(dir, 0755))
	}

	logger := log.New(&bytes.Buffer{}, "", 0)
	store, err := settings.OpenSQLiteStore(filepath.Join(base, "settings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	enablement := settings.NewEnablement(store)
	reg := registry.NewExtensionRegistry(discovery.NewFilesystemScanner(logger), pluginsDir, themesDir)
	caches := &fakeCaches{}
	migrations := &fakeMigrations{}

	pipeline := NewPipeline(pluginsDir, themesDir, stagingDir,
		NewBackupManager(backupsDir), reg, enablement, caches, migrations, logger)

	return &fixture{
		pipeline:   pipeline,
		pluginsDir: pluginsDir,
		themesDir:  themesDir,
		stagingDir: stagingDir,
		backupsDir: backupsDir,
		enablement: enablement,
		caches:     caches,
		migrations: migrations,
		registry:   reg,
	}
}

func makeZip(t *testing.T, files map[string]string) *bytes.Reader {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := zw.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return bytes.NewReader(buf.Bytes())
}

func (f *fixture) install(t *testing.T, files map[string]string, autoEnable bool) (*ports.InstallResult, error) {
	t.Helper()
	archive := makeZip(t, files)
	return f.pipeline.Install(context.Background(), archive, archive.Size(), domain.KindPlugin, autoEnable)
}

func TestInstall_EndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.install(t, map[string]string{
		"plugin.json": `{"id":"votes","name":"Votes","version":"2.0.0"}`,
	}, true)
	require.NoError(t, err)

	assert.Equal(t, "votes", result.Descriptor.ID)
	assert.Equal(t, "2.0.0", result.Descriptor.Version)
	assert.False(t, result.Replaced)
	assert.True(t, result.Enabled)

	enabled, err := f.enablement.EnabledPlugins(ctx)
	require.NoError(t, err)
	assert.Contains(t, enabled, "votes")

	desc, ok := f.registry.Get("votes")
	require.True(t, ok, "new extension discoverable after invalidation")
	assert.Equal(t, "2.0.0", desc.Version)

	assert.Equal(t, 1, f.caches.cleared)
	assertStagingEmpty(t, f.stagingDir)
}

func TestInstall_RejectsOversizedUpload(t *testing.T) {
	f := newFixture(t)
	_, err := f.pipeline.Install(context.Background(), bytes.NewReader(nil),
		MaxArchiveSize+1, domain.KindPlugin, false)
	assert.ErrorIs(t, err, domain.ErrArchiveTooLarge)
}

func TestInstall_CorruptArchive(t *testing.T) {
	f := newFixture(t)
	garbage := bytes.NewReader([]byte("this is not a zip file"))

	_, err := f.pipeline.Install(context.Background(), garbage, garbage.Size(), domain.KindPlugin, false)

	var archiveErr *domain.ArchiveError
	require.ErrorAs(t, err, &archiveErr)
	assertStagingEmpty(t, f.stagingDir)
	assertDirEmpty(t, f.pluginsDir)
}

func TestInstall_UnrecognizedStructure(t *testing.T) {
	f := newFixture(t)

	_, err := f.install(t, map[string]string{
		"readme.md": "no manifest, no src",
	}, false)

	var structErr *domain.UnrecognizedStructureError
	require.ErrorAs(t, err, &structErr)
	assertStagingEmpty(t, f.stagingDir)
	assertDirEmpty(t, f.pluginsDir)
}

func TestInstall_WrappedTopLevelFolder(t *testing.T) {
	f := newFixture(t)

	result, err := f.install(t, map[string]string{
		"votes-2.0/plugin.json": `{"id":"votes","name":"Votes","version":"2.0.0"}`,
		"votes-2.0/readme.md":   "wrapped",
	}, false)
	require.NoError(t, err)
	assert.Equal(t, "votes", result.Descriptor.ID)
	assert.DirExists(t, filepath.Join(f.pluginsDir, "votes"))
}

func TestInstall_HeuristicLegacyLayout(t *testing.T) {
	f := newFixture(t)

	result, err := f.install(t, map[string]string{
		"old-shop/src/Provider.php": "class Provider extends BasePlugin {}",
	}, false)
	require.NoError(t, err)
	assert.Equal(t, "old-shop", result.Descriptor.ID)
	assert.Equal(t, domain.DetectionHeuristic, result.Descriptor.Detection)
}

func TestInstall_BackupBeforeDelete(t *testing.T) {
	f := newFixture(t)

	// Seed an existing install.
	existing := filepath.Join(f.pluginsDir, "votes")
	require.NoError(t, os.MkdirAll(existing, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(existing, "plugin.json"),
		[]byte(`{"id":"votes","name":"Votes","version":"1.0.0"}`), 0644))

	result, err := f.install(t, map[string]string{
		"plugin.json": `{"id":"votes","name":"Votes","version":"2.0.0"}`,
	}, false)
	require.NoError(t, err)
	assert.True(t, result.Replaced)
	assert.NotEmpty(t, result.BackupName)
	assert.DirExists(t, filepath.Join(f.backupsDir, result.BackupName))

	data, err := os.ReadFile(filepath.Join(f.pluginsDir, "votes", "plugin.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "2.0.0")
}

func TestInstall_FailedBackupLeavesOriginalUntouched(t *testing.T) {
	f := newFixture(t)
	f.pipeline.backups = failingBackups{}

	existing := filepath.Join(f.pluginsDir, "votes")
	require.NoError(t, os.MkdirAll(existing, 0755))
	original := []byte(`{"id":"votes","name":"Votes","version":"1.0.0"}`)
	require.NoError(t, os.WriteFile(filepath.Join(existing, "plugin.json"), original, 0644))

	_, err := f.install(t, map[string]string{
		"plugin.json": `{"id":"votes","name":"Votes","version":"2.0.0"}`,
	}, false)
	require.Error(t, err)

	data, rerr := os.ReadFile(filepath.Join(existing, "plugin.json"))
	require.NoError(t, rerr)
	assert.Equal(t, original, data, "backup failure must precede any delete")
}

func TestInstall_MoveFailureRestoresPreviousInstall(t *testing.T) {
	f := newFixture(t)
	f.pipeline.moveDir = func(src, dest string) error {
		return fmt.Errorf("simulated io failure")
	}

	existing := filepath.Join(f.pluginsDir, "votes")
	require.NoError(t, os.MkdirAll(existing, 0755))
	original := []byte(`{"id":"votes","name":"Votes","version":"1.0.0"}`)
	require.NoError(t, os.WriteFile(filepath.Join(existing, "plugin.json"), original, 0644))

	_, err := f.install(t, map[string]string{
		"plugin.json": `{"id":"votes","name":"Votes","version":"2.0.0"}`,
	}, false)
	require.Error(t, err)

	// Pre-call state restored: the old version is back, no partial copy.
	data, rerr := os.ReadFile(filepath.Join(existing, "plugin.json"))
	require.NoError(t, rerr)
	assert.Equal(t, original, data)
	assertStagingEmpty(t, f.stagingDir)
}

func TestInstall_MigrationsExecuted(t *testing.T) {
	f := newFixture(t)

	_, err := f.install(t, map[string]string{
		"plugin.json": `{"id":"votes","name":"Votes"}`,
		"database/migrations/001_votes.sql": "CREATE TABLE votes (id INTEGER);",
	}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"votes"}, f.migrations.runs)
}

func TestUninstall_NotFound(t *testing.T) {
	f := newFixture(t)
	err := f.pipeline.Uninstall(context.Background(), "ghost", domain.KindPlugin, false)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUninstall_DisablesBeforeDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.install(t, map[string]string{
		"plugin.json": `{"id":"votes","name":"Votes"}`,
	}, true)
	require.NoError(t, err)

	require.NoError(t, f.pipeline.Uninstall(ctx, "votes", domain.KindPlugin, true))

	enabled, err := f.enablement.EnabledPlugins(ctx)
	require.NoError(t, err)
	assert.NotContains(t, enabled, "votes")
	assert.NoDirExists(t, filepath.Join(f.pluginsDir, "votes"))

	backups, err := f.pipeline.backups.List()
	require.NoError(t, err)
	require.Len(t, backups, 1)
	assert.Equal(t, "votes", backups[0].ExtensionID)

	_, ok := f.registry.Get("votes")
	assert.False(t, ok, "registry invalidated after uninstall")
}

func assertStagingEmpty(t *testing.T, stagingDir string) {
	t.Helper()
	entries, err := os.ReadDir(stagingDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "staging directory purged")
}

func assertDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
