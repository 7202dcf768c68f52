// Package sqlite contains SQLite implementations of repository interfaces.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/doulaboard/internal/core/identity"
	"github.com/example/doulaboard/internal/ports/secondary"
)

// ClientRepository implements secondary.ClientRepository with SQLite.
// It also serves as a ClientLookup and ClientLister for the deep-link loader.
type ClientRepository struct {
	db *sql.DB
}

// NewClientRepository creates a new SQLite client repository.
func NewClientRepository(db *sql.DB) *ClientRepository {
	return &ClientRepository{db: db}
}

const clientColumns = "c.id, c.first_name, c.last_name, c.email, c.phone, c.status, c.service_needed, c.payload, c.created_at, c.updated_at"

// Create persists a new client and its identifiers.
func (r *ClientRepository) Create(ctx context.Context, client *secondary.ClientRecord) error {
	payload, err := encodePayload(client.Payload)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO clients (id, first_name, last_name, email, phone, status, service_needed, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		client.ID,
		nullString(client.FirstName),
		nullString(client.LastName),
		nullString(client.Email),
		nullString(client.Phone),
		nullString(client.Status),
		nullString(client.Service),
		payload,
	)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	if err := r.writeIdentifiers(ctx, tx, client); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit client: %w", err)
	}
	return nil
}

// Upsert creates the client or replaces the stored one with the same ID.
// An alias already claimed by another client moves to this one.
func (r *ClientRepository) Upsert(ctx context.Context, client *secondary.ClientRecord) error {
	payload, err := encodePayload(client.Payload)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO clients (id, first_name, last_name, email, phone, status, service_needed, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			email = excluded.email,
			phone = excluded.phone,
			status = excluded.status,
			service_needed = excluded.service_needed,
			payload = excluded.payload,
			updated_at = CURRENT_TIMESTAMP`,
		client.ID,
		nullString(client.FirstName),
		nullString(client.LastName),
		nullString(client.Email),
		nullString(client.Phone),
		nullString(client.Status),
		nullString(client.Service),
		payload,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert client: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM client_identifiers WHERE client_id = ?", client.ID); err != nil {
		return fmt.Errorf("failed to clear client identifiers: %w", err)
	}
	if err := r.writeIdentifiers(ctx, tx, client); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit client: %w", err)
	}
	return nil
}

func (r *ClientRepository) writeIdentifiers(ctx context.Context, tx *sql.Tx, client *secondary.ClientRecord) error {
	for _, alias := range identifierSet(client) {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO client_identifiers (identifier, client_id) VALUES (?, ?)
			ON CONFLICT(identifier) DO UPDATE SET client_id = excluded.client_id`,
			alias, client.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to store identifier %s: %w", alias, err)
		}
	}
	return nil
}

// GetByID retrieves a client by its primary ID or any alias.
func (r *ClientRepository) GetByID(ctx context.Context, id string) (*secondary.ClientRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, secondary.ErrClientNotFound
	}

	row := r.db.QueryRowContext(ctx,
		"SELECT "+clientColumns+` FROM clients c
		WHERE c.id = ? OR c.id = (SELECT client_id FROM client_identifiers WHERE identifier = ?)
		ORDER BY c.id = ? DESC
		LIMIT 1`,
		id, id, id,
	)
	record, err := scanClient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("client %s: %w", id, secondary.ErrClientNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}

	if record.Aliases, err = r.loadAliases(ctx, record.ID); err != nil {
		return nil, err
	}
	return record, nil
}

// List retrieves clients matching the given filters, oldest first.
func (r *ClientRepository) List(ctx context.Context, filters secondary.ClientFilters) ([]*secondary.ClientRecord, error) {
	query := "SELECT " + clientColumns + " FROM clients c WHERE 1=1"
	var args []any

	if filters.Status != "" {
		query += " AND c.status = ?"
		args = append(args, filters.Status)
	}
	query += " ORDER BY c.created_at ASC, c.rowid ASC"
	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}

	var clients []*secondary.ClientRecord
	for rows.Next() {
		record, err := scanClient(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		clients = append(clients, record)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	rows.Close()

	// Aliases are loaded after the cursor is closed so a single-connection pool cannot deadlock.
	for _, c := range clients {
		if c.Aliases, err = r.loadAliases(ctx, c.ID); err != nil {
			return nil, err
		}
	}
	return clients, nil
}

// Delete removes a client by its primary ID or any alias.
func (r *ClientRepository) Delete(ctx context.Context, id string) error {
	record, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM client_identifiers WHERE client_id = ?", record.ID); err != nil {
		return fmt.Errorf("failed to delete client identifiers: %w", err)
	}
	result, err := tx.ExecContext(ctx, "DELETE FROM clients WHERE id = ?", record.ID)
	if err != nil {
		return fmt.Errorf("failed to delete client: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("client %s: %w", id, secondary.ErrClientNotFound)
	}
	return tx.Commit()
}

// GetClientByID implements secondary.ClientLookup. A missing client is
// reported as a nil record; summaries have PHI removed.
func (r *ClientRepository) GetClientByID(ctx context.Context, id string, detailed bool) (identity.Record, error) {
	record, err := r.GetByID(ctx, id)
	if errors.Is(err, secondary.ErrClientNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	payload := recordPayload(record)
	if !detailed {
		payload = identity.StripPHI(payload)
	}
	return payload, nil
}

// ListClients implements secondary.ClientLister.
func (r *ClientRepository) ListClients(ctx context.Context) ([]identity.Record, error) {
	records, err := r.List(ctx, secondary.ClientFilters{})
	if err != nil {
		return nil, err
	}
	out := make([]identity.Record, len(records))
	for i, record := range records {
		out[i] = identity.StripPHI(recordPayload(record))
	}
	return out, nil
}

func (r *ClientRepository) loadAliases(ctx context.Context, clientID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT identifier FROM client_identifiers WHERE client_id = ? ORDER BY rowid ASC",
		clientID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load client identifiers: %w", err)
	}
	defer rows.Close()

	var aliases []string
	for rows.Next() {
		var alias string
		if err := rows.Scan(&alias); err != nil {
			return nil, fmt.Errorf("failed to scan client identifier: %w", err)
		}
		aliases = append(aliases, alias)
	}
	return aliases, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClient(row rowScanner) (*secondary.ClientRecord, error) {
	var (
		firstName, lastName sql.NullString
		email, phone        sql.NullString
		status, service     sql.NullString
		payload             string
		createdAt           time.Time
		updatedAt           time.Time
	)

	record := &secondary.ClientRecord{}
	err := row.Scan(&record.ID, &firstName, &lastName, &email, &phone, &status, &service, &payload, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	record.FirstName = firstName.String
	record.LastName = lastName.String
	record.Email = email.String
	record.Phone = phone.String
	record.Status = status.String
	record.Service = service.String
	record.CreatedAt = createdAt.Format(time.RFC3339)
	record.UpdatedAt = updatedAt.Format(time.RFC3339)

	if payload != "" && payload != "{}" {
		parsed, err := identity.ParseRecord([]byte(payload))
		if err != nil {
			return nil, fmt.Errorf("client %s has a corrupt payload: %w", record.ID, err)
		}
		record.Payload = parsed
	}
	return record, nil
}

// recordPayload returns the stored payload, or one built from the columns
// when the client was created without it. The result always matches the primary ID.
func recordPayload(record *secondary.ClientRecord) identity.Record {
	payload := record.Payload
	if len(payload) == 0 {
		payload = identity.Client{
			ID:        record.ID,
			FirstName: record.FirstName,
			LastName:  record.LastName,
			Email:     record.Email,
			Phone:     record.Phone,
			Status:    record.Status,
			Service:   record.Service,
		}.Record()
	}
	return identity.EnsureIdentifiers(payload, payload, record.ID)
}

func identifierSet(client *secondary.ClientRecord) []string {
	seen := map[string]bool{}
	var out []string
	for _, id := range append([]string{client.ID}, client.Aliases...) {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func encodePayload(payload identity.Record) (string, error) {
	if len(payload) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode client payload: %w", err)
	}
	return string(data), nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
