package install

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"stronghold.gg/cms/internal/core/ports"
)

// backupTimestampLayout sorts lexically, so backup names order by age.
const backupTimestampLayout = "2006-01-02_150405"

// BackupManager writes timestamped copies of extension directories before
// destructive changes, and serves them back as listable, downloadable
// archives.
type BackupManager struct {
	backupsDir string
	now        func() time.Time
}

// NewBackupManager creates a manager writing under backupsDir.
func NewBackupManager(backupsDir string) *BackupManager {
	return &BackupManager{backupsDir: backupsDir, now: time.Now}
}

// Backup copies sourceDir to backups/{id}_{timestamp} and returns the
// backup name. The copy is complete before Backup returns; callers may
// only delete the source afterwards.
func (b *BackupManager) Backup(id, sourceDir string) (string, error) {
	name := fmt.Sprintf("%s_%s", id, b.now().Format(backupTimestampLayout))
	dest := filepath.Join(b.backupsDir, name)

	if err := os.MkdirAll(b.backupsDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create backups directory: %w", err)
	}
	if err := copyDir(sourceDir, dest); err != nil {
		// A half-written backup is worse than none; remove it.
		os.RemoveAll(dest)
		return "", fmt.Errorf("failed to back up %s: %w", id, err)
	}
	return name, nil
}

// Restore copies the named backup into destDir. Used to put a replaced
// extension back when the install swap fails partway.
func (b *BackupManager) Restore(name, destDir string) error {
	src := filepath.Join(b.backupsDir, filepath.Base(name))
	if info, err := os.Stat(src); err != nil || !info.IsDir() {
		return fmt.Errorf("backup %q not found", name)
	}
	os.RemoveAll(destDir)
	if err := copyDir(src, destDir); err != nil {
		return fmt.Errorf("failed to restore backup %s: %w", name, err)
	}
	return nil
}

// List returns the existing backups, newest first.
func (b *BackupManager) List() ([]ports.BackupInfo, error) {
	entries, err := os.ReadDir(b.backupsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read backups directory: %w", err)
	}

	var backups []ports.BackupInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info := parseBackupName(entry.Name())
		info.Path = filepath.Join(b.backupsDir, entry.Name())
		info.SizeBytes = dirSize(info.Path)
		backups = append(backups, info)
	}
	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Name > backups[j].Name
	})
	return backups, nil
}

// Archive writes the named backup as a zip stream.
func (b *BackupManager) Archive(name string, w io.Writer) error {
	dir := filepath.Join(b.backupsDir, filepath.Base(name))
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return fmt.Errorf("backup %q not found", name)
	}

	zw := zip.NewWriter(w)
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		f, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(f, src)
		return err
	})
	if err != nil {
		zw.Close()
		return fmt.Errorf("failed to archive backup %s: %w", name, err)
	}
	return zw.Close()
}

// Prune deletes all but the keep newest backups, returning how many were
// removed.
func (b *BackupManager) Prune(keep int) (int, error) {
	backups, err := b.List()
	if err != nil {
		return 0, err
	}
	if keep < 0 {
		keep = 0
	}
	removed := 0
	for i := keep; i < len(backups); i++ {
		if err := os.RemoveAll(backups[i].Path); err != nil {
			return removed, fmt.Errorf("failed to prune backup %s: %w", backups[i].Name, err)
		}
		removed++
	}
	return removed, nil
}

func parseBackupName(name string) ports.BackupInfo {
	info := ports.BackupInfo{Name: name, ExtensionID: name}
	idx := strings.LastIndex(name, "_")
	if idx <= 0 {
		return info
	}
	// The timestamp spans the final two underscore-separated parts
	// (date_time); find the separator before the date.
	dateIdx := strings.LastIndex(name[:idx], "_")
	if dateIdx <= 0 {
		return info
	}
	ts, err := time.Parse(backupTimestampLayout, name[dateIdx+1:])
	if err != nil {
		return info
	}
	info.ExtensionID = name[:dateIdx]
	info.CreatedAt = ts
	return info
}

func dirSize(dir string) int64 {
	var total int64
	filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	return total
}
