package database

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"library-services/pkg/logger"

	"gorm.io/gorm"
)

// Migration is one numbered SQL file such as 001_create_books.sql
type Migration struct {
	ID          string
	Description string
	SQL         string
	AppliedAt   *time.Time
}

type appliedMigration struct {
	ID        string    `gorm:"column:id"`
	AppliedAt time.Time `gorm:"column:applied_at"`
}

// MigrationRunner applies the .sql files found at the root of source in
// lexical order and records each one in schema_migrations.
type MigrationRunner struct {
	db     *gorm.DB
	source fs.FS
}

func NewMigrationRunner(db *gorm.DB, source fs.FS) *MigrationRunner {
	return &MigrationRunner{
		db:     db,
		source: source,
	}
}

func (mr *MigrationRunner) ensureTable() error {
	return mr.db.Exec(`
	CREATE TABLE IF NOT EXISTS schema_migrations (
		id VARCHAR(255) PRIMARY KEY,
		description TEXT NOT NULL,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`).Error
}

func (mr *MigrationRunner) applied() (map[string]time.Time, error) {
	var rows []appliedMigration
	if err := mr.db.Raw("SELECT id, applied_at FROM schema_migrations ORDER BY id").Scan(&rows).Error; err != nil {
		return nil, err
	}

	applied := make(map[string]time.Time, len(rows))
	for _, row := range rows {
		applied[row.ID] = row.AppliedAt
	}
	return applied, nil
}

func (mr *MigrationRunner) load() ([]Migration, error) {
	names, err := fs.Glob(mr.source, "*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	migrations := make([]Migration, 0, len(names))
	for _, name := range names {
		content, err := fs.ReadFile(mr.source, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", name, err)
		}
		m, err := parseMigration(name, content)
		if err != nil {
			return nil, err
		}
		migrations = append(migrations, m)
	}
	return migrations, nil
}

func parseMigration(name string, content []byte) (Migration, error) {
	base := strings.TrimSuffix(path.Base(name), ".sql")
	id, description, ok := strings.Cut(base, "_")
	if !ok || id == "" || description == "" {
		return Migration{}, fmt.Errorf("invalid migration filename format: %s", name)
	}
	return Migration{
		ID:          id,
		Description: strings.ReplaceAll(description, "_", " "),
		SQL:         string(content),
	}, nil
}

// RunMigrations applies every migration not yet recorded, each in its own
// transaction together with its schema_migrations row.
func (mr *MigrationRunner) RunMigrations() error {
	if err := mr.ensureTable(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := mr.applied()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	migrations, err := mr.load()
	if err != nil {
		return err
	}

	pending := 0
	for _, m := range migrations {
		if _, done := applied[m.ID]; done {
			continue
		}

		err := mr.db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(m.SQL).Error; err != nil {
				return fmt.Errorf("failed to execute migration %s: %w", m.ID, err)
			}
			if err := tx.Exec("INSERT INTO schema_migrations (id, description) VALUES (?, ?)", m.ID, m.Description).Error; err != nil {
				return fmt.Errorf("failed to record migration %s: %w", m.ID, err)
			}
			return nil
		})
		if err != nil {
			return err
		}

		logger.Info("Applied migration: %s - %s", m.ID, m.Description)
		pending++
	}

	if pending == 0 {
		logger.Info("No pending migrations to apply")
	} else {
		logger.Info("Successfully applied %d migrations", pending)
	}
	return nil
}

// GetMigrationStatus lists every known migration; AppliedAt is nil while pending
func (mr *MigrationRunner) GetMigrationStatus() ([]Migration, error) {
	if err := mr.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := mr.applied()
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	migrations, err := mr.load()
	if err != nil {
		return nil, err
	}

	for i := range migrations {
		if at, ok := applied[migrations[i].ID]; ok {
			at := at
			migrations[i].AppliedAt = &at
		}
	}
	return migrations, nil
}
