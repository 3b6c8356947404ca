package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Migration represents a database schema migration.
type Migration struct {
	Version     int
	Description string
	Up          string
	Down        string
}

// migrations contains all database migrations in order.
var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema with datasets, runs, windows, and events",
		Up:          migrationV1Up,
		Down:        migrationV1Down,
	},
	{
		Version:     2,
		Description: "Add spectral summary columns to windows",
		Up:          migrationV2Up,
		Down:        migrationV2Down,
	},
}

const migrationV1Up = `
CREATE TABLE IF NOT EXISTS datasets (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    fingerprint     TEXT NOT NULL UNIQUE,
    path            TEXT NOT NULL,
    samples         INTEGER NOT NULL,
    channels        INTEGER NOT NULL,
    first_time      REAL NOT NULL,
    last_time       REAL NOT NULL,
    min_value       REAL NOT NULL,
    max_value       REAL NOT NULL,
    created_at      INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
    id              TEXT PRIMARY KEY,
    dataset_id      INTEGER NOT NULL REFERENCES datasets(id),
    planner_key     TEXT NOT NULL,
    started_at      INTEGER NOT NULL,
    finished_at     INTEGER,
    status          TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_dataset ON runs(dataset_id, started_at);

CREATE TABLE IF NOT EXISTS windows (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    dataset_id      INTEGER NOT NULL REFERENCES datasets(id),
    planner_key     TEXT NOT NULL,
    run_id          TEXT NOT NULL REFERENCES runs(id),
    ordinal         INTEGER NOT NULL,
    start_index     INTEGER NOT NULL,
    end_index       INTEGER NOT NULL,
    start_time      REAL NOT NULL,
    end_time        REAL NOT NULL,
    committed_at    INTEGER NOT NULL,
    UNIQUE (dataset_id, planner_key, start_index)
);

CREATE INDEX IF NOT EXISTS idx_windows_plan ON windows(dataset_id, planner_key, start_time);

CREATE TABLE IF NOT EXISTS events (
    window_id       INTEGER NOT NULL REFERENCES windows(id) ON DELETE CASCADE,
    ordinal         INTEGER NOT NULL,
    start_channel   INTEGER NOT NULL,
    end_channel     INTEGER NOT NULL,
    start_time      REAL NOT NULL,
    end_time        REAL NOT NULL,
    PRIMARY KEY (window_id, ordinal)
);
`

const migrationV1Down = `
DROP TABLE IF EXISTS events;
DROP INDEX IF EXISTS idx_windows_plan;
DROP TABLE IF EXISTS windows;
DROP INDEX IF EXISTS idx_runs_dataset;
DROP TABLE IF EXISTS runs;
DROP TABLE IF EXISTS datasets;
`

const migrationV2Up = `
ALTER TABLE windows ADD COLUMN peak_channel INTEGER NOT NULL DEFAULT -1;
ALTER TABLE windows ADD COLUMN centroid REAL NOT NULL DEFAULT 0;
ALTER TABLE windows ADD COLUMN flatness REAL NOT NULL DEFAULT 0;
ALTER TABLE windows ADD COLUMN mean_power REAL NOT NULL DEFAULT 0;
`

const migrationV2Down = `
ALTER TABLE windows DROP COLUMN mean_power;
ALTER TABLE windows DROP COLUMN flatness;
ALTER TABLE windows DROP COLUMN centroid;
ALTER TABLE windows DROP COLUMN peak_channel;
`

// MigrateDB applies all pending migrations to the database.
func MigrateDB(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version     INTEGER PRIMARY KEY,
			applied_at  INTEGER NOT NULL,
			description TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	currentVersion, err := currentVersion(db)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.Version <= currentVersion {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction for migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.Up); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, applied_at, description) VALUES (?, ?, ?)",
			m.Version, time.Now().UnixNano(), m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

func currentVersion(db *sql.DB) (int, error) {
	var v int
	if err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&v); err != nil {
		return 0, fmt.Errorf("get current version: %w", err)
	}
	return v, nil
}

// MigrationStatus describes which migrations have been applied.
type MigrationStatus struct {
	CurrentVersion int
	LatestVersion  int
	Pending        []Migration
	Applied        []AppliedMigration
}

type AppliedMigration struct {
	Version     int
	AppliedAt   time.Time
	Description string
}

// GetMigrationStatus returns the current migration status.
func GetMigrationStatus(db *sql.DB) (*MigrationStatus, error) {
	status := &MigrationStatus{
		LatestVersion: migrations[len(migrations)-1].Version,
	}

	rows, err := db.Query("SELECT version, applied_at, description FROM schema_migrations ORDER BY version")
	if err != nil {
		// Table might not exist yet
		status.Pending = migrations
		return status, nil
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var am AppliedMigration
		var appliedAt int64
		if err := rows.Scan(&am.Version, &appliedAt, &am.Description); err != nil {
			return nil, fmt.Errorf("scan migration: %w", err)
		}
		am.AppliedAt = time.Unix(0, appliedAt)
		status.Applied = append(status.Applied, am)
		applied[am.Version] = true

		if am.Version > status.CurrentVersion {
			status.CurrentVersion = am.Version
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate migrations: %w", err)
	}

	for _, m := range migrations {
		if !applied[m.Version] {
			status.Pending = append(status.Pending, m)
		}
	}

	return status, nil
}

// ValidateSchema checks that all expected tables exist.
func ValidateSchema(db *sql.DB) error {
	requiredTables := []string{
		"datasets",
		"runs",
		"windows",
		"events",
		"schema_migrations",
	}

	for _, table := range requiredTables {
		var count int
		err := db.QueryRow(
			"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&count)
		if err != nil {
			return fmt.Errorf("check table %s: %w", table, err)
		}
		if count == 0 {
			return fmt.Errorf("missing required table: %s", table)
		}
	}

	return nil
}
