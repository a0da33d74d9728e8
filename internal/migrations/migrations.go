package migrations

import (
	"database/sql"
	"fmt"
)

// Migration represents a single database migration
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// AllMigrations contains all database migrations in order
var AllMigrations = []Migration{
	{
		Version: 1,
		Name:    "Add submission lookup indices",
		Up: `
			CREATE INDEX IF NOT EXISTS idx_submissions_timestamp ON submissions(timestamp DESC);
			CREATE INDEX IF NOT EXISTS idx_submissions_status ON submissions(status);
		`,
		Down: `
			DROP INDEX IF EXISTS idx_submissions_timestamp;
			DROP INDEX IF EXISTS idx_submissions_status;
		`,
	},
	{
		Version: 2,
		Name:    "Make request_id unique",
		Up: `
			-- Older rows may lack a request id; only non-empty ids must be unique
			CREATE UNIQUE INDEX IF NOT EXISTS idx_submissions_request_id
				ON submissions(request_id) WHERE request_id != '';
		`,
		Down: `
			DROP INDEX IF EXISTS idx_submissions_request_id;
		`,
	},
	{
		Version: 3,
		Name:    "Index submissions by API origin",
		Up: `
			CREATE INDEX IF NOT EXISTS idx_submissions_base_url ON submissions(base_url, timestamp DESC);
		`,
		Down: `
			DROP INDEX IF EXISTS idx_submissions_base_url;
		`,
	},
}

// InitSchema creates the tables every migration builds on.
// This must be called before running migrations.
func InitSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS submissions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		request_id TEXT NOT NULL DEFAULT '',
		timestamp DATETIME NOT NULL,
		kind TEXT NOT NULL,
		values_json TEXT,
		file_name TEXT,
		status TEXT NOT NULL,
		result_json TEXT,
		error TEXT,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		base_url TEXT NOT NULL DEFAULT ''
	);
	`

	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

func ensureTrackingTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

// Run executes all pending migrations on the database
func Run(db *sql.DB) error {
	if err := InitSchema(db); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := ensureTrackingTable(db); err != nil {
		return err
	}

	currentVersion, err := GetCurrentVersion(db)
	if err != nil {
		return fmt.Errorf("failed to get current migration version: %w", err)
	}

	for _, migration := range AllMigrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", migration.Version, err)
		}

		if _, err := tx.Exec(migration.Up); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to apply migration %d (%s): %w", migration.Version, migration.Name, err)
		}

		_, err = tx.Exec(
			"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
			migration.Version,
			migration.Name,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// Rollback reverts applied migrations down to (but not including) target
func Rollback(db *sql.DB, target int) error {
	if err := ensureTrackingTable(db); err != nil {
		return err
	}

	currentVersion, err := GetCurrentVersion(db)
	if err != nil {
		return err
	}

	for i := len(AllMigrations) - 1; i >= 0; i-- {
		migration := AllMigrations[i]
		if migration.Version > currentVersion || migration.Version <= target {
			continue
		}

		if _, err := db.Exec(migration.Down); err != nil {
			return fmt.Errorf("failed to revert migration %d (%s): %w", migration.Version, migration.Name, err)
		}
		if _, err := db.Exec("DELETE FROM schema_migrations WHERE version = ?", migration.Version); err != nil {
			return fmt.Errorf("failed to unrecord migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// GetCurrentVersion returns the current database schema version
func GetCurrentVersion(db *sql.DB) (int, error) {
	var version int
	err := db.QueryRow(`
		SELECT COALESCE(MAX(version), 0)
		FROM schema_migrations
	`).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return 0, err
	}
	return version, nil
}
