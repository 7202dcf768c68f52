// Package deeplink contains the pure logic of the deep-link lead loader.
// Guards are pure functions that evaluate preconditions without side effects.
package deeplink

import "fmt"

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string
}

// Error converts the guard result to an error if not allowed.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%s", r.Reason)
}

// AutoOpenContext provides context for the auto-open guard.
type AutoOpenContext struct {
	ClientID         string
	AlreadyDisplayed bool // the open panel already shows this client
	ManuallyClosed   bool // the user dismissed the panel for this route id
}

// FetchContext provides context for the fetch guard.
type FetchContext struct {
	ClientID         string
	AlreadyAttempted bool
	InFlight         bool // a fetch for this id is already running
}

// ReconcileContext provides context for the return-to-listing guard.
type ReconcileContext struct {
	RouteClientID    string
	PanelOpen        bool
	RecordPending    bool
	FetchInFlight    bool
	AlreadyNavigated bool
}

// CanAutoOpen evaluates whether a route id may open the profile panel.
// Rules:
// - A route id must be present
// - The panel must not already show that client
// - The user must not have dismissed the panel for that id
func CanAutoOpen(ctx AutoOpenContext) GuardResult {
	if ctx.ClientID == "" {
		return GuardResult{Allowed: false, Reason: "no client requested"}
	}

	if ctx.AlreadyDisplayed {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("client %s is already displayed", ctx.ClientID),
		}
	}

	if ctx.ManuallyClosed {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("profile for client %s was dismissed", ctx.ClientID),
		}
	}

	return GuardResult{Allowed: true}
}

// CanFetch evaluates whether a network fetch may be issued for an id.
// Rules:
// - At most one fetch per id until the route is cleared
// - Never a second concurrent fetch for the same id
func CanFetch(ctx FetchContext) GuardResult {
	if ctx.InFlight {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("fetch for client %s already in flight", ctx.ClientID),
		}
	}

	if ctx.AlreadyAttempted {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("client %s was already fetched", ctx.ClientID),
		}
	}

	return GuardResult{Allowed: true}
}

// ShouldReturnToListing evaluates whether the URL should be reset to the listing
// route because a requested id ended up with nothing displayable.
// Rules:
// - A route id is present
// - No panel is open, no record is pending and no fetch is running
// - Only once per route id
func ShouldReturnToListing(ctx ReconcileContext) GuardResult {
	if ctx.RouteClientID == "" {
		return GuardResult{Allowed: false, Reason: "no client requested"}
	}

	if ctx.PanelOpen || ctx.RecordPending || ctx.FetchInFlight {
		return GuardResult{Allowed: false, Reason: "profile is open or loading"}
	}

	if ctx.AlreadyNavigated {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("already returned to listing for client %s", ctx.RouteClientID),
		}
	}

	return GuardResult{Allowed: true}
}
