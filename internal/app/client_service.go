package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/doulaboard/internal/core/identity"
	"github.com/example/doulaboard/internal/ports/primary"
	"github.com/example/doulaboard/internal/ports/secondary"
)

// ClientServiceImpl implements the ClientService interface.
type ClientServiceImpl struct {
	clientRepo secondary.ClientRepository
	logger     *zap.Logger
	newID      func() string
}

// NewClientService creates a new ClientService with injected dependencies.
func NewClientService(clientRepo secondary.ClientRepository, logger *zap.Logger) *ClientServiceImpl {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClientServiceImpl{
		clientRepo: clientRepo,
		logger:     logger,
		newID:      uuid.NewString,
	}
}

// ListClients lists clients with optional filters.
func (s *ClientServiceImpl) ListClients(ctx context.Context, filters primary.ClientFilters) ([]*primary.Client, error) {
	records, err := s.clientRepo.List(ctx, secondary.ClientFilters{
		Status: filters.Status,
		Limit:  filters.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}

	clients := make([]*primary.Client, len(records))
	for i, r := range records {
		clients[i] = s.recordToClient(r)
	}
	return clients, nil
}

// GetClient retrieves a client by its ID or any alias.
func (s *ClientServiceImpl) GetClient(ctx context.Context, clientID string) (*primary.Client, error) {
	record, err := s.clientRepo.GetByID(ctx, clientID)
	if err != nil {
		return nil, err
	}
	return s.recordToClient(record), nil
}

// ImportClients canonicalizes raw payloads and stores them. Payloads without
// any identifier are given a generated one rather than dropped.
func (s *ClientServiceImpl) ImportClients(ctx context.Context, req primary.ImportClientsRequest) (*primary.ImportClientsResponse, error) {
	payloads, err := identity.ParseRecords(req.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to parse client payload: %w", err)
	}

	resp := &primary.ImportClientsResponse{}
	for i, payload := range payloads {
		client, err := identity.Canonicalize(payload)
		if errors.Is(err, identity.ErrNoIdentifier) {
			payload = identity.EnsureIdentifiers(payload, payload, s.newID())
			client, err = identity.Canonicalize(payload)
			resp.Generated++
		}
		if err != nil {
			return nil, fmt.Errorf("client %d: %w", i, err)
		}

		record := clientToRecord(client)
		if err := s.clientRepo.Upsert(ctx, record); err != nil {
			return nil, fmt.Errorf("failed to store client %s: %w", client.ID, err)
		}
		s.logger.Debug("imported client",
			zap.String("client_id", client.ID),
			zap.Strings("aliases", client.Aliases))

		stored, err := s.clientRepo.GetByID(ctx, client.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch imported client: %w", err)
		}
		resp.Imported = append(resp.Imported, s.recordToClient(stored))
	}

	s.logger.Info("clients imported",
		zap.Int("count", len(resp.Imported)),
		zap.Int("generated_ids", resp.Generated))
	return resp, nil
}

// DeleteClient deletes a client by its ID or any alias.
func (s *ClientServiceImpl) DeleteClient(ctx context.Context, clientID string) error {
	return s.clientRepo.Delete(ctx, clientID)
}

func clientToRecord(c identity.Client) *secondary.ClientRecord {
	return &secondary.ClientRecord{
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
}

func (s *ClientServiceImpl) recordToClient(r *secondary.ClientRecord) *primary.Client {
	return &primary.Client{
		ID:        r.ID,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Email:     r.Email,
		Phone:     r.Phone,
		Status:    r.Status,
		Service:   r.Service,
		Aliases:   r.Aliases,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}
