package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite database connection
type DB struct {
	conn *sql.DB
}

// Open opens or creates the SQLite database
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the database schema
func (db *DB) migrate() error {
	schema := `
	-- OTA persistent state: the single row written just before an
	-- install flips the active slot, read back after reboot to confirm
	-- or roll back.
	CREATE TABLE IF NOT EXISTS ota_state (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		request_uuid TEXT NOT NULL,
		slot TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Container resource desired/observed state, one table per entity
	-- kind, mirroring the reconciler's five resource kinds.
	CREATE TABLE IF NOT EXISTS images (
		id TEXT PRIMARY KEY,
		local_id TEXT,
		status INTEGER NOT NULL,
		reference TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS networks (
		id TEXT PRIMARY KEY,
		local_id TEXT,
		status INTEGER NOT NULL,
		driver TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS volumes (
		id TEXT PRIMARY KEY,
		local_id TEXT,
		status INTEGER NOT NULL,
		driver TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS containers (
		id TEXT PRIMARY KEY,
		local_id TEXT,
		status INTEGER NOT NULL,
		image_id TEXT NOT NULL,
		network_ids TEXT NOT NULL DEFAULT '',
		volume_ids TEXT NOT NULL DEFAULT '',
		env TEXT NOT NULL DEFAULT '',
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (image_id) REFERENCES images(id)
	);

	CREATE TABLE IF NOT EXISTS deployments (
		id TEXT PRIMARY KEY,
		local_id TEXT,
		status INTEGER NOT NULL,
		container_ids TEXT NOT NULL DEFAULT '',
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`

	_, err := db.conn.Exec(schema)
	return err
}
