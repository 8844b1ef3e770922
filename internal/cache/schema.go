package cache

import (
	"database/sql"
)

const currentSchemaVersion = 1

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		);

		CREATE TABLE IF NOT EXISTS cache_entry (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			key_id TEXT NOT NULL,
			input TEXT NOT NULL,
			width INTEGER NOT NULL,
			height INTEGER NOT NULL,
			fps REAL NOT NULL,
			frame_count INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		);
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`INSERT OR IGNORE INTO schema_version (version) VALUES (?)`, currentSchemaVersion)
	return err
}
