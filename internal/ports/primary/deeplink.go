package primary

import (
	"context"

	"github.com/example/doulaboard/internal/core/identity"
)

// DeepLinkService defines the primary port for deep-link profile loading.
type DeepLinkService interface {
	// NewSession mounts a loader. Each session owns its own route state and
	// must be closed when the host view goes away.
	NewSession(ctx context.Context) (DeepLinkSession, error)
}

// DeepLinkSession is one mounted deep-link loader.
type DeepLinkSession interface {
	// Navigate reports the client id carried by the current route ("" = none).
	Navigate(ctx context.Context, clientID string) ProfileView

	// Open navigates to clientID and waits until no fetch is in flight.
	Open(ctx context.Context, clientID string) (ProfileView, error)

	// Dismiss reports that the user closed the profile panel.
	Dismiss(ctx context.Context) ProfileView

	// Refresh reloads the in-memory client list.
	Refresh(ctx context.Context) (ProfileView, error)

	// View returns the current profile panel state.
	View() ProfileView

	// Wait blocks until no fetch is in flight or ctx is done.
	Wait(ctx context.Context) (ProfileView, error)

	// Close unmounts the loader, cancelling any in-flight fetch.
	Close()
}

// ProfileView describes what the profile panel should show.
type ProfileView struct {
	State           string
	RouteClientID   string
	PanelOpen       bool
	Record          identity.Record
	MissingClientID string
	Fetching        bool
}

// NotFound reports whether the panel is open on the not-found state.
func (v ProfileView) NotFound() bool {
	return v.PanelOpen && v.Record == nil && v.MissingClientID != ""
}
