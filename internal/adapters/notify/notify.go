// Package notify contains terminal implementations of the notifier and navigator ports.
package notify

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/example/doulaboard/internal/core/effects"
	"github.com/example/doulaboard/internal/ports/secondary"
)

// ToastWriter prints notifications as one-line toasts.
type ToastWriter struct {
	mu     sync.Mutex
	out    io.Writer
	logger *zap.Logger
}

// NewToastWriter creates a ToastWriter writing to out.
func NewToastWriter(out io.Writer, logger *zap.Logger) *ToastWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ToastWriter{out: out, logger: logger}
}

// Notify implements secondary.Notifier.
func (w *ToastWriter) Notify(ctx context.Context, n secondary.Notification) {
	icon := color.New(color.FgCyan).Sprint("ℹ")
	title := n.Title
	if n.Level == effects.LevelError {
		icon = color.New(color.FgRed).Sprint("✗")
		title = color.New(color.FgRed, color.Bold).Sprint(n.Title)
	}

	w.logger.Debug("notification",
		zap.String("level", n.Level),
		zap.String("title", n.Title),
		zap.String("message", n.Message))

	w.mu.Lock()
	defer w.mu.Unlock()
	if n.Message == "" {
		fmt.Fprintf(w.out, "%s %s\n", icon, title)
		return
	}
	fmt.Fprintf(w.out, "%s %s: %s\n", icon, title, n.Message)
}

// Router records navigations requested by the loader. The host applies
// them between events, never from inside Navigate.
type Router struct {
	mu       sync.Mutex
	basePath string
	current  string
	pending  []string
	logger   *zap.Logger
}

// NewRouter creates a Router whose listing route is basePath.
func NewRouter(basePath string, logger *zap.Logger) *Router {
	if basePath == "" {
		basePath = "/clients"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{basePath: basePath, current: basePath, logger: logger}
}

// Navigate implements secondary.Navigator.
func (r *Router) Navigate(ctx context.Context, path string) {
	r.logger.Debug("navigation requested", zap.String("path", path))
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, path)
}

// Push records a route the user opened directly.
func (r *Router) Push(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = path
}

// Take pops the oldest pending navigation and makes it current.
func (r *Router) Take() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.pending) == 0 {
		return "", false
	}
	path := r.pending[0]
	r.pending = r.pending[1:]
	r.current = path
	return path, true
}

// Current returns the route the host is showing.
func (r *Router) Current() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// ClientPath returns the profile route for id. The id is path-escaped.
func (r *Router) ClientPath(id string) string {
	return strings.TrimRight(r.basePath, "/") + "/" + url.PathEscape(id)
}

// ClientID extracts the client id carried by path, or "" for the listing.
func (r *Router) ClientID(path string) string {
	base := strings.TrimRight(r.basePath, "/")
	rest, ok := strings.CutPrefix(strings.TrimSpace(path), base)
	if !ok {
		return ""
	}
	rest = strings.Trim(rest, "/")
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		rest = rest[:i]
	}
	id, err := url.PathUnescape(rest)
	if err != nil {
		return rest
	}
	return id
}
