package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/example/doulaboard/internal/ports/primary"
)

// ClientAdapter is a thin adapter that translates CLI operations to ClientService calls.
// It depends only on the ClientService interface, enabling easy testing with mocks.
type ClientAdapter struct {
	service primary.ClientService
	out     io.Writer
}

// NewClientAdapter creates a new ClientAdapter with the given service.
func NewClientAdapter(service primary.ClientService, out io.Writer) *ClientAdapter {
	return &ClientAdapter{
		service: service,
		out:     out,
	}
}

// List lists clients, optionally filtered by status.
func (a *ClientAdapter) List(ctx context.Context, status string, limit int) ([]*primary.Client, error) {
	clients, err := a.service.ListClients(ctx, primary.ClientFilters{
		Status: status,
		Limit:  limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}

	if len(clients) == 0 {
		fmt.Fprintln(a.out, "No clients found.")
		fmt.Fprintln(a.out)
		fmt.Fprintln(a.out, "Import clients from a JSON export:")
		fmt.Fprintln(a.out, "  doula client import leads.json")
		return clients, nil
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tEMAIL\tSTATUS")
	fmt.Fprintln(w, "--\t----\t-----\t------")

	for _, c := range clients {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			c.ID,
			displayName(c),
			c.Email,
			c.Status,
		)
	}

	w.Flush()
	return clients, nil
}

// Show displays details for a single client.
func (a *ClientAdapter) Show(ctx context.Context, clientID string) (*primary.Client, error) {
	client, err := a.service.GetClient(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}

	fmt.Fprintf(a.out, "\nClient: %s\n", client.ID)
	fmt.Fprintf(a.out, "Name:    %s\n", displayName(client))
	fmt.Fprintf(a.out, "Email:   %s\n", client.Email)
	fmt.Fprintf(a.out, "Phone:   %s\n", client.Phone)
	fmt.Fprintf(a.out, "Status:  %s\n", client.Status)
	if client.Service != "" {
		fmt.Fprintf(a.out, "Service: %s\n", client.Service)
	}
	if len(client.Aliases) > 1 {
		fmt.Fprintf(a.out, "Aliases: %s\n", strings.Join(client.Aliases, ", "))
	}
	fmt.Fprintf(a.out, "Created: %s\n", client.CreatedAt)
	fmt.Fprintln(a.out)

	return client, nil
}

// Import stores every client in payload.
func (a *ClientAdapter) Import(ctx context.Context, payload []byte) (*primary.ImportClientsResponse, error) {
	resp, err := a.service.ImportClients(ctx, primary.ImportClientsRequest{Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("failed to import clients: %w", err)
	}

	fmt.Fprintf(a.out, "✓ Imported %d client(s)\n", len(resp.Imported))
	if resp.Generated > 0 {
		fmt.Fprintf(a.out, "  %d client(s) had no identifier and were assigned one\n", resp.Generated)
	}
	return resp, nil
}

// Delete deletes a client by ID or alias.
func (a *ClientAdapter) Delete(ctx context.Context, clientID string) error {
	client, err := a.service.GetClient(ctx, clientID)
	if err != nil {
		return fmt.Errorf("failed to get client: %w", err)
	}

	if err := a.service.DeleteClient(ctx, client.ID); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "✓ Deleted client %s: %s\n", client.ID, displayName(client))
	return nil
}

func displayName(c *primary.Client) string {
	name := strings.TrimSpace(c.FirstName + " " + c.LastName)
	if name == "" {
		return "-"
	}
	return name
}
