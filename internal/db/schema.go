package db

import (
	"database/sql"
	"fmt"
)

// SchemaSQL is the authoritative schema for a fresh database.
// Migrations bring older databases to the same shape.
const SchemaSQL = `
-- Clients (one row per canonical lead)
CREATE TABLE IF NOT EXISTS clients (
	id TEXT PRIMARY KEY,
	first_name TEXT,
	last_name TEXT,
	email TEXT,
	phone TEXT,
	status TEXT,
	service_needed TEXT,
	payload TEXT NOT NULL DEFAULT '{}',
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_clients_status ON clients(status);

-- Client identifiers (every alias a client can be addressed by)
CREATE TABLE IF NOT EXISTS client_identifiers (
	identifier TEXT PRIMARY KEY,
	client_id TEXT NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (client_id) REFERENCES clients(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_client_identifiers_client ON client_identifiers(client_id);
`

// InitSchema creates the schema on a fresh database, or migrates an existing one.
func InitSchema(db *sql.DB) error {
	var tableCount int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableCount)
	if err != nil {
		return err
	}

	if tableCount > 0 {
		return RunMigrations(db)
	}

	var clientTables int
	err = db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='clients'").Scan(&clientTables)
	if err != nil {
		return err
	}
	if clientTables > 0 {
		// Tables from before versioning; migrate from scratch.
		return RunMigrations(db)
	}

	if _, err := db.Exec(SchemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if err := createVersionTable(db); err != nil {
		return err
	}
	// Fresh installs start at the latest version.
	for _, m := range migrations {
		if _, err := db.Exec("INSERT INTO schema_version (version) VALUES (?)", m.Version); err != nil {
			return err
		}
	}
	return nil
}

// GetSchemaSQL returns the authoritative schema.
func GetSchemaSQL() string {
	return SchemaSQL
}
