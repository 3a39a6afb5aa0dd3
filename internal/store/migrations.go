package store

import (
	"database/sql"
	"fmt"
)

// runMigrations brings the schema up to date. The version is read from
// the user_version header; each pending step runs in its own
// transaction that also bumps the version, so a crash mid-migration
// leaves the database at the last fully applied step.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version > len(migrations) {
		return fmt.Errorf("database schema version %d is newer than this build supports (%d)", version, len(migrations))
	}

	for ; version < len(migrations); version++ {
		if err := applyMigration(db, version); err != nil {
			return fmt.Errorf("migration to version %d: %w", version+1, err)
		}
	}
	return nil
}

// applyMigration runs migrations[version] and records version+1,
// atomically.
func applyMigration(db *sql.DB, version int) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(migrations[version]); err != nil {
		return err
	}
	// PRAGMA does not accept bind parameters; version is a loop index,
	// not user input.
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", version+1)); err != nil {
		return err
	}

	return tx.Commit()
}
