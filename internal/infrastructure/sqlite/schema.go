package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/zjrosen/hlpipe/internal/log"
)

// schemaVersion is recorded in PRAGMA user_version.
const schemaVersion = 1

// migrations[i] upgrades a database from version i to i+1.
var migrations = [][]string{
	{
		`CREATE TABLE IF NOT EXISTS renders (
			digest       TEXT PRIMARY KEY,
			scope        TEXT NOT NULL,
			html         TEXT NOT NULL,
			source_bytes INTEGER NOT NULL,
			created_at   INTEGER NOT NULL,
			last_used_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_renders_last_used_at ON renders(last_used_at)`,
	},
}

func migrate(conn *sql.DB) error {
	var current int
	if err := conn.QueryRow("PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if current > schemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", current, schemaVersion)
	}

	for v := current; v < schemaVersion; v++ {
		tx, err := conn.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", v+1, err)
		}
		for _, stmt := range migrations[v] {
			if _, err := tx.Exec(stmt); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("failed to apply migration %d: %w", v+1, err)
			}
		}
		// PRAGMA does not accept bound parameters.
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", v+1)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record schema version %d: %w", v+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", v+1, err)
		}
		log.Info(log.CatDB, "Applied migration", "version", v+1)
	}
	return nil
}
