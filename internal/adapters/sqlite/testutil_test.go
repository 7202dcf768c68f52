// Package sqlite_test contains integration tests for SQLite repositories.
//
// All test setup goes through setupTestDB, which loads db.GetSchemaSQL() so
// tests run against the authoritative schema.
package sqlite_test

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/example/doulaboard/internal/adapters/sqlite"
	"github.com/example/doulaboard/internal/core/identity"
	"github.com/example/doulaboard/internal/db"
	"github.com/example/doulaboard/internal/ports/secondary"
)

// setupTestDB creates an in-memory database with the authoritative schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	testDB, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	testDB.SetMaxOpenConns(1)

	_, err = testDB.Exec(db.GetSchemaSQL())
	if err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() {
		testDB.Close()
	})

	return testDB
}

// seedClient canonicalizes payload and stores it, returning the stored record.
func seedClient(t *testing.T, repo *sqlite.ClientRepository, payload identity.Record) *secondary.ClientRecord {
	t.Helper()

	c, err := identity.Canonicalize(payload)
	if err != nil {
		t.Fatalf("failed to canonicalize seed client: %v", err)
	}
	record := &secondary.ClientRecord{
		ID:        c.ID,
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Email:     c.Email,
		Phone:     c.Phone,
		Status:    c.Status,
		Service:   c.Service,
		Aliases:   c.Aliases,
		Payload:   c.Raw,
	}
	if err := repo.Create(context.Background(), record); err != nil {
		t.Fatalf("failed to seed client: %v", err)
	}
	return record
}
