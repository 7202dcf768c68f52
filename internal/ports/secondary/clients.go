// Package secondary defines the secondary ports (driven adapters) for the application.
// These are the interfaces through which the application drives external systems.
package secondary

import (
	"context"
	"errors"

	"github.com/example/doulaboard/internal/core/identity"
)

// ErrClientNotFound is returned by repositories when no client has the requested id.
var ErrClientNotFound = errors.New("client not found")

// ClientLookup is the fetch-by-id capability the deep-link loader consumes.
type ClientLookup interface {
	// GetClientByID returns the client known under id (any alias), or nil
	// when the backend has no such client. detailed requests the PHI-inclusive variant.
	GetClientByID(ctx context.Context, id string, detailed bool) (identity.Record, error)
}

// ClientLister loads the summary list the dashboard keeps in memory.
type ClientLister interface {
	// ListClients returns client summaries in display order.
	ListClients(ctx context.Context) ([]identity.Record, error)
}

// ClientRepository defines the secondary port for client persistence.
type ClientRepository interface {
	// Create persists a new client.
	Create(ctx context.Context, client *ClientRecord) error

	// Upsert creates the client or replaces the stored one with the same ID.
	Upsert(ctx context.Context, client *ClientRecord) error

	// GetByID retrieves a client by its primary ID or any alias.
	GetByID(ctx context.Context, id string) (*ClientRecord, error)

	// List retrieves clients matching the given filters.
	List(ctx context.Context, filters ClientFilters) ([]*ClientRecord, error)

	// Delete removes a client by its primary ID or any alias.
	Delete(ctx context.Context, id string) error
}

// ClientRecord represents a client as stored in persistence.
type ClientRecord struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Status    string // Empty string means null
	Service   string // Empty string means null
	Aliases   []string
	Payload   identity.Record // Raw payload as received
	CreatedAt string
	UpdatedAt string
}

// ClientFilters contains filter options for querying clients.
type ClientFilters struct {
	Status string
	Limit  int
}

// Notifier is the user-notification sink. Delivery is fire-and-forget.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Notification is a toast shown to the user.
type Notification struct {
	Level   string // info, error
	Title   string
	Message string
}

// Navigator moves the host to another route.
type Navigator interface {
	Navigate(ctx context.Context, path string)
}
