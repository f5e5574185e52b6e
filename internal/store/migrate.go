package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/fieldport/fieldsync/internal/errors"
)

// migration is one versioned schema step. Migrations are embedded rather
// than shipped as files so both binaries always carry the schema they expect.
type migration struct {
	version     int
	description string
	sql         string
}

var migrations = []migration{
	{
		version:     1,
		description: "pending captures, project cache, sync leases",
		sql: `
CREATE TABLE IF NOT EXISTS pending_captures (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id INTEGER NOT NULL,
	milestone_id INTEGER,
	payload BLOB NOT NULL,
	mime_type TEXT NOT NULL,
	file_name TEXT NOT NULL,
	file_size INTEGER NOT NULL CHECK(file_size >= 0),
	latitude REAL,
	longitude REAL,
	accuracy REAL,
	category TEXT NOT NULL DEFAULT '',
	note TEXT NOT NULL DEFAULT '',
	tags TEXT NOT NULL DEFAULT '[]',
	captured_at INTEGER NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending' CHECK(status IN ('pending','uploading','failed')),
	retry_count INTEGER NOT NULL DEFAULT 0 CHECK(retry_count >= 0),
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_pending_captures_project ON pending_captures(project_id);
CREATE INDEX IF NOT EXISTS idx_pending_captures_status ON pending_captures(status);

CREATE TABLE IF NOT EXISTS project_cache (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	code TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS sync_leases (
	name TEXT PRIMARY KEY,
	owner TEXT NOT NULL,
	expires_at INTEGER NOT NULL
);
`,
	},
}

// migrate applies all pending migrations in order.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY CHECK(version > 0),
		applied_at INTEGER NOT NULL,
		description TEXT NOT NULL,
		checksum TEXT NOT NULL CHECK(length(checksum) = 64)
	);`); err != nil {
		return errors.Wrap(errors.ErrMigration, "create schema_migrations", err)
	}

	current, err := s.schemaVersion()
	if err != nil {
		return errors.Wrap(errors.ErrMigration, "read schema version", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}

		tx, err := s.db.Begin()
		if err != nil {
			return errors.Wrap(errors.ErrMigration, "begin migration", err)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return errors.Wrap(errors.ErrMigration,
				fmt.Sprintf("apply migration %d (%s)", m.version, m.description), err)
		}
		sum := sha256.Sum256([]byte(m.sql))
		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, applied_at, description, checksum) VALUES (?, ?, ?, ?)",
			m.version, time.Now().Unix(), m.description, hex.EncodeToString(sum[:]),
		); err != nil {
			tx.Rollback()
			return errors.Wrap(errors.ErrMigration, "record migration", err)
		}
		if err := tx.Commit(); err != nil {
			return errors.Wrap(errors.ErrMigration, "commit migration", err)
		}
	}
	return nil
}

// schemaVersion returns the highest applied migration version.
func (s *Store) schemaVersion() (int, error) {
	var version int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	return version, err
}
