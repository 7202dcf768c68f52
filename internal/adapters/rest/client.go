// Package rest contains an HTTP client for the clients API.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/doulaboard/internal/core/identity"
	"github.com/example/doulaboard/internal/ctxutil"
)

// RequestIDHeader carries the caller's request id to the backend.
const RequestIDHeader = "X-Request-ID"

// StatusError is returned when the backend answers with an unexpected status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("clients api returned %d", e.StatusCode)
	}
	return fmt.Sprintf("clients api returned %d: %s", e.StatusCode, e.Body)
}

// Client implements secondary.ClientLookup and secondary.ClientLister over HTTP.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Logger  *zap.Logger
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		HTTP:    &http.Client{Timeout: 10 * time.Second},
		Logger:  logger,
	}
}

// GetClientByID fetches GET /clients/{id}. A 404 is reported as a nil record.
func (c *Client) GetClientByID(ctx context.Context, id string, detailed bool) (identity.Record, error) {
	endpoint := c.BaseURL + "/clients/" + url.PathEscape(strings.TrimSpace(id))
	if detailed {
		endpoint += "?detailed=true"
	}

	body, status, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}

	record, err := decodeOne(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode client %s: %w", id, err)
	}
	return record, nil
}

// ListClients fetches GET /clients.
func (c *Client) ListClients(ctx context.Context) ([]identity.Record, error) {
	body, status, err := c.get(ctx, c.BaseURL+"/clients")
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, &StatusError{StatusCode: status}
	}

	records, err := decodeMany(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode client list: %w", err)
	}
	return records, nil
}

// get performs a GET and returns the body for 2xx and 404 responses.
func (c *Client) get(ctx context.Context, endpoint string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if rid := ctxutil.RequestFromContext(ctx); rid != "" {
		req.Header.Set(RequestIDHeader, rid)
	}

	start := time.Now()
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}

	c.Logger.Debug("clients api request",
		zap.String("url", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, resp.StatusCode, nil
	case resp.StatusCode >= 300:
		return nil, resp.StatusCode, &StatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(truncate(body, 200))),
		}
	}
	return body, resp.StatusCode, nil
}

// decodeOne accepts a bare client object or one wrapped as {"client": ...} or {"data": ...}.
func decodeOne(body []byte) (identity.Record, error) {
	record, err := identity.ParseRecord(body)
	if err != nil {
		return nil, err
	}
	if identity.CollectIdentifiers(record) != nil {
		return record, nil
	}
	for _, key := range []string{"client", "data"} {
		if inner, ok := record[key].(map[string]any); ok {
			return identity.Record(inner), nil
		}
	}
	return record, nil
}

// decodeMany accepts a bare array or one wrapped as {"clients": [...]} or {"data": [...]}.
func decodeMany(body []byte) ([]identity.Record, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		var envelope map[string]json.RawMessage
		if err := dec.Decode(&envelope); err != nil {
			return nil, err
		}
		for _, key := range []string{"clients", "data"} {
			if raw, ok := envelope[key]; ok {
				return identity.ParseRecords(raw)
			}
		}
		return nil, errors.New("response has no clients array")
	}
	if len(trimmed) == 0 {
		return nil, nil
	}
	return identity.ParseRecords(trimmed)
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
