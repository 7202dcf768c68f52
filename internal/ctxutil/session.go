// Package ctxutil provides context utilities that can be safely imported anywhere.
// This package has no internal dependencies to avoid import cycles.
package ctxutil

import "context"

// SessionKey is the context key for the loader session ID.
type SessionKey struct{}

// RequestKey is the context key for the HTTP request ID.
type RequestKey struct{}

// WithSessionID returns a context with the session ID embedded.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, SessionKey{}, sessionID)
}

// SessionFromContext returns the session ID from context, or empty string if not set.
func SessionFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(SessionKey{}).(string); ok {
		return v
	}
	return ""
}

// WithRequestID returns a context with the request ID embedded.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestKey{}, requestID)
}

// RequestFromContext returns the request ID from context, or empty string if not set.
func RequestFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(RequestKey{}).(string); ok {
		return v
	}
	return ""
}
