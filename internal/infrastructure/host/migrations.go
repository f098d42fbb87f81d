package host

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// MigrationRunner applies an extension's database/migrations/*.sql files.
// Applied files are tracked per extension so re-running at every boot is a
// no-op rather than an error.
type MigrationRunner struct {
	db *sql.DB
}

// NewMigrationRunner creates a runner over the shared database handle.
func NewMigrationRunner(db *sql.DB) (*MigrationRunner, error) {
	schema := `
	CREATE TABLE IF NOT EXISTS extension_migrations (
		extension_id TEXT NOT NULL,
		filename TEXT NOT NULL,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (extension_id, filename)
	);`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}
	return &MigrationRunner{db: db}, nil
}

// Run applies pending .sql files from dir for extensionID, in filename
// order. Returns the number of migrations applied.
func (m *MigrationRunner) Run(ctx context.Context, extensionID, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read migrations dir %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	applied := 0
	for _, name := range files {
		done, err := m.isApplied(ctx, extensionID, name)
		if err != nil {
			return applied, err
		}
		if done {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return applied, fmt.Errorf("failed to read migration %s: %w", name, err)
		}

		tx, err := m.db.BeginTx(ctx, nil)
		if err != nil {
			return applied, fmt.Errorf("failed to begin migration transaction: %w", err)
		}
		if _, err := tx.ExecContext(ctx, string(data)); err != nil {
			tx.Rollback()
			return applied, fmt.Errorf("migration %s for %s failed: %w", name, extensionID, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO extension_migrations (extension_id, filename) VALUES (?, ?)",
			extensionID, name); err != nil {
			tx.Rollback()
			return applied, fmt.Errorf("failed to record migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return applied, fmt.Errorf("failed to commit migration %s: %w", name, err)
		}
		applied++
	}
	return applied, nil
}

func (m *MigrationRunner) isApplied(ctx context.Context, extensionID, name string) (bool, error) {
	var count int
	err := m.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM extension_migrations WHERE extension_id = ? AND filename = ?",
		extensionID, name).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check migration state: %w", err)
	}
	return count > 0, nil
}
