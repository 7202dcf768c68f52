package primary

import "context"

// ClientService defines the primary port for client operations.
type ClientService interface {
	// ListClients lists clients with optional filters.
	ListClients(ctx context.Context, filters ClientFilters) ([]*Client, error)

	// GetClient retrieves a client by its ID or any alias.
	GetClient(ctx context.Context, clientID string) (*Client, error)

	// ImportClients canonicalizes raw JSON payloads and stores them.
	ImportClients(ctx context.Context, req ImportClientsRequest) (*ImportClientsResponse, error)

	// DeleteClient deletes a client by its ID or any alias.
	DeleteClient(ctx context.Context, clientID string) error
}

// ImportClientsRequest contains a JSON array or object of client payloads.
type ImportClientsRequest struct {
	Payload []byte
}

// ImportClientsResponse contains the result of an import.
type ImportClientsResponse struct {
	Imported  []*Client
	Generated int // clients that arrived without any identifier
}

// Client represents a client entity at the port boundary.
type Client struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Status    string
	Service   string
	Aliases   []string
	CreatedAt string
	UpdatedAt string
}

// ClientFilters contains filter options for listing clients.
type ClientFilters struct {
	Status string
	Limit  int
}
