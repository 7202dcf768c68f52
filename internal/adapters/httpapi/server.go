// Package httpapi serves the clients API over HTTP.
package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/example/doulaboard/internal/core/identity"
	"github.com/example/doulaboard/internal/ctxutil"
	"github.com/example/doulaboard/internal/httpx"
	"github.com/example/doulaboard/internal/ports/primary"
	"github.com/example/doulaboard/internal/ports/secondary"
)

const maxImportBytes = 8 << 20

// ServerDeps are the collaborators of the HTTP server.
type ServerDeps struct {
	Clients  primary.ClientService
	Lookup   secondary.ClientLookup
	Lister   secondary.ClientLister
	Logger   *zap.Logger
	Gatherer prometheus.Gatherer // nil disables /metrics
}

// Server exposes client records in the shape the dashboard loader consumes.
type Server struct {
	deps ServerDeps
}

// NewServer creates a new Server.
func NewServer(deps ServerDeps) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Server{deps: deps}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RedirectSlashes)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	if s.deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/clients", func(api chi.Router) {
		api.Get("/", s.listClients)
		api.Post("/", s.importClients)
		api.Get("/{id}", s.getClient)
		api.Delete("/{id}", s.deleteClient)
	})
	return r
}

func (s *Server) listClients(w http.ResponseWriter, r *http.Request) {
	records, err := s.deps.Lister.ListClients(r.Context())
	if err != nil {
		s.deps.Logger.Error("failed to list clients", zap.Error(err))
		httpx.WriteError(w, r, 500, "INTERNAL", "failed to list clients", nil)
		return
	}

	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit > 0 && limit < len(records) {
		records = records[:limit]
	}
	if records == nil {
		records = []identity.Record{}
	}
	httpx.WriteJSON(w, 200, map[string]any{
		"request_id": httpx.RequestID(r),
		"clients":    records,
	})
}

func (s *Server) getClient(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		httpx.WriteError(w, r, 400, "BAD_REQUEST", "client id is required", nil)
		return
	}
	detailed := strings.EqualFold(r.URL.Query().Get("detailed"), "true")

	record, err := s.deps.Lookup.GetClientByID(r.Context(), id, detailed)
	if err != nil {
		s.deps.Logger.Error("failed to get client", zap.String("client_id", id), zap.Error(err))
		httpx.WriteError(w, r, 500, "INTERNAL", "failed to load client", nil)
		return
	}
	if record == nil {
		httpx.WriteError(w, r, 404, "NOT_FOUND", "client not found", map[string]any{"client_id": id})
		return
	}
	httpx.WriteJSON(w, 200, map[string]any{
		"request_id": httpx.RequestID(r),
		"client":     record,
	})
}

func (s *Server) importClients(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes+1))
	if err != nil {
		httpx.WriteError(w, r, 400, "BAD_REQUEST", err.Error(), nil)
		return
	}
	if len(body) > maxImportBytes {
		httpx.WriteError(w, r, 413, "TOO_LARGE", "payload exceeds import limit", nil)
		return
	}

	resp, err := s.deps.Clients.ImportClients(r.Context(), primary.ImportClientsRequest{Payload: body})
	if err != nil {
		httpx.WriteError(w, r, 400, "BAD_JSON", err.Error(), nil)
		return
	}

	ids := make([]string, len(resp.Imported))
	for i, c := range resp.Imported {
		ids[i] = c.ID
	}
	httpx.WriteJSON(w, 201, map[string]any{
		"request_id": httpx.RequestID(r),
		"imported":   ids,
		"generated":  resp.Generated,
	})
}

func (s *Server) deleteClient(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := s.deps.Clients.DeleteClient(r.Context(), id)
	if errors.Is(err, secondary.ErrClientNotFound) {
		httpx.WriteError(w, r, 404, "NOT_FOUND", "client not found", map[string]any{"client_id": id})
		return
	}
	if err != nil {
		s.deps.Logger.Error("failed to delete client", zap.String("client_id", id), zap.Error(err))
		httpx.WriteError(w, r, 500, "INTERNAL", "failed to delete client", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// requestID adopts the caller's X-Request-ID or assigns a new one.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = httpx.NewRequestID()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(ctxutil.WithRequestID(r.Context(), id)))
	})
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.deps.Logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", ctxutil.RequestFromContext(r.Context())))
	})
}
