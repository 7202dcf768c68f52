// Package httpx holds the JSON helpers shared by HTTP handlers.
package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/example/doulaboard/internal/ctxutil"
)

func NewRequestID() string { return "req_" + uuid.NewString() }

// RequestID returns the id assigned to r, or a fresh one.
func RequestID(r *http.Request) string {
	if id := ctxutil.RequestFromContext(r.Context()); id != "" {
		return id
	}
	return NewRequestID()
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func ReadJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	resp := map[string]any{
		"request_id": RequestID(r),
		"error": map[string]any{
			"code": code, "message": message, "details": details,
		},
	}
	WriteJSON(w, status, resp)
}
