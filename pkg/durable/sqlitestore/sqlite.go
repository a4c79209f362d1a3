// Package sqlitestore is the reference durable.Store implementation:
// every project's schema, entities, policies, templates, and template
// links persisted in a single SQLite database file.
package sqlitestore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store is a durable.Store backed by SQLite.
type Store struct {
	db *sql.DB
}

// Open opens or creates a SQLite database at path. Pass ":memory:" for an
// ephemeral database scoped to the process.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create data directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps the per-connection PRAGMAs below in force for
	// every statement and makes ":memory:" one shared database rather than
	// a separate empty database per pooled connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	// WAL mode lets readers of the database file proceed while a write
	// transaction is open. Authorization checks never read this store;
	// they are answered from the Registry.
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		owner_type TEXT NOT NULL,
		owner_id TEXT NOT NULL,
		api_key_hash TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_projects_api_key_hash ON projects(api_key_hash);

	CREATE TABLE IF NOT EXISTS identity_sources (
		project_id TEXT PRIMARY KEY REFERENCES projects(id) ON DELETE CASCADE,
		doc BLOB NOT NULL
	);

	CREATE TABLE IF NOT EXISTS schemas (
		project_id TEXT PRIMARY KEY REFERENCES projects(id) ON DELETE CASCADE,
		mode TEXT NOT NULL,
		doc BLOB NOT NULL
	);

	CREATE TABLE IF NOT EXISTS entities (
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		doc BLOB NOT NULL,
		PRIMARY KEY (project_id, entity_type, entity_id)
	);
	CREATE INDEX IF NOT EXISTS idx_entities_project ON entities(project_id);

	CREATE TABLE IF NOT EXISTS policies (
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		policy_id TEXT NOT NULL,
		text TEXT NOT NULL,
		PRIMARY KEY (project_id, policy_id)
	);

	CREATE TABLE IF NOT EXISTS templates (
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		policy_id TEXT NOT NULL,
		text TEXT NOT NULL,
		PRIMARY KEY (project_id, policy_id)
	);

	CREATE TABLE IF NOT EXISTS template_links (
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		link_id TEXT NOT NULL,
		template_id TEXT NOT NULL,
		doc BLOB NOT NULL,
		PRIMARY KEY (project_id, link_id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}
