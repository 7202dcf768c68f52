package db

import (
	"database/sql"
	"path/filepath"
	"testing"
)

func TestOpen_FreshDatabaseIsAtLatestVersion(t *testing.T) {
	conn, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer conn.Close()

	version, err := SchemaVersion(conn)
	if err != nil {
		t.Fatalf("SchemaVersion() error: %v", err)
	}
	if want := migrations[len(migrations)-1].Version; version != want {
		t.Errorf("version = %d, want %d", version, want)
	}

	if err := InitSchema(conn); err != nil {
		t.Errorf("second InitSchema() error: %v", err)
	}
}

func TestOpen_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "doula.db")
	conn, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	conn.Close()
}

func TestInitSchema_MigratesUnversionedDatabase(t *testing.T) {
	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	conn.SetMaxOpenConns(1)
	defer conn.Close()

	_, err = conn.Exec(`
		CREATE TABLE clients (
			id TEXT PRIMARY KEY,
			first_name TEXT,
			last_name TEXT,
			email TEXT,
			phone TEXT,
			status TEXT,
			payload TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		INSERT INTO clients (id, first_name) VALUES ('legacy-1', 'Ada');
	`)
	if err != nil {
		t.Fatalf("failed to create legacy table: %v", err)
	}

	if err := InitSchema(conn); err != nil {
		t.Fatalf("InitSchema() error: %v", err)
	}

	var clientID string
	err = conn.QueryRow("SELECT client_id FROM client_identifiers WHERE identifier = 'legacy-1'").Scan(&clientID)
	if err != nil {
		t.Fatalf("identifier was not backfilled: %v", err)
	}
	if clientID != "legacy-1" {
		t.Errorf("client_id = %q, want legacy-1", clientID)
	}

	if _, err := conn.Exec("UPDATE clients SET service_needed = 'birth' WHERE id = 'legacy-1'"); err != nil {
		t.Errorf("service_needed column missing: %v", err)
	}
}
