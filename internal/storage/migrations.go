package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Debug record audit trail",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS debug_records (
					id TEXT PRIMARY KEY,
					created_at DATETIME NOT NULL,
					posted_time INTEGER NOT NULL,
					source_app TEXT NOT NULL,
					source_type TEXT NOT NULL,
					status TEXT NOT NULL,
					notification_title TEXT NOT NULL DEFAULT '',
					notification_text TEXT NOT NULL DEFAULT '',
					raw_text TEXT NOT NULL DEFAULT '',
					parsed_amount_cents INTEGER,
					parsed_merchant TEXT NOT NULL DEFAULT '',
					parsed_direction TEXT NOT NULL DEFAULT '',
					parse_confidence REAL NOT NULL DEFAULT 0,
					fingerprint TEXT NOT NULL DEFAULT '',
					parser_name TEXT NOT NULL DEFAULT '',
					parser_version INTEGER NOT NULL DEFAULT 0,
					error_message TEXT NOT NULL DEFAULT '',
					processing_time_us INTEGER NOT NULL DEFAULT 0,
					sensitive_data_masked INTEGER NOT NULL DEFAULT 0
				)`,
				`CREATE INDEX IF NOT EXISTS idx_debug_records_created ON debug_records(created_at)`,
				`CREATE INDEX IF NOT EXISTS idx_debug_records_status ON debug_records(status)`,
			)
		},
	},
	{
		Version:     2,
		Description: "Dedup ledger",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS dedup_entries (
					fingerprint TEXT PRIMARY KEY,
					package_name TEXT NOT NULL,
					content_hash TEXT NOT NULL,
					post_time INTEGER NOT NULL,
					created_at DATETIME NOT NULL
				)`,
				`CREATE INDEX IF NOT EXISTS idx_dedup_package_time ON dedup_entries(package_name, post_time)`,
			)
		},
	},
	{
		Version:     3,
		Description: "Index debug records by source app",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE INDEX IF NOT EXISTS idx_debug_records_source ON debug_records(source_app, posted_time)`,
			)
		},
	},
}

func execAll(tx *sql.Tx, queries ...string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

// SchemaVersion reports the version recorded in the database.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", classifyError(err))
	}
	return version, nil
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	currentVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	finalVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
