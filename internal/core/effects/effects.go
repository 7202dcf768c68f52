// Package effects defines effect types as data structures representing I/O operations.
// The loader state machine returns effects; the application shell interprets them.
// Effects are pure data - they describe what should happen, not how.
package effects

// Effect is the base interface for all effects.
type Effect interface {
	// EffectType returns a string identifier for the effect type.
	EffectType() string
}

// LogEffect represents a logging operation.
type LogEffect struct {
	Level   string // debug, info, warn, error
	Message string
	Fields  map[string]any
	Err     error
}

func (e LogEffect) EffectType() string { return "log" }

// FetchEffect requests a fetch-by-id against the client lookup capability.
// Attempt identifies the fetch so late results can be recognised as stale.
type FetchEffect struct {
	Attempt  uint64
	ClientID string
	Detailed bool
}

func (e FetchEffect) EffectType() string { return "fetch" }

// CancelFetchEffect abandons an in-flight fetch.
type CancelFetchEffect struct {
	Attempt uint64
}

func (e CancelFetchEffect) EffectType() string { return "cancel_fetch" }

// Notification levels.
const (
	LevelInfo  = "info"
	LevelError = "error"
)

// NotifyEffect surfaces a user-facing notification (toast).
type NotifyEffect struct {
	Level   string
	Title   string
	Message string
}

func (e NotifyEffect) EffectType() string { return "notify" }

// NavigateEffect asks the host to move to another route.
type NavigateEffect struct {
	Path string
}

func (e NavigateEffect) EffectType() string { return "navigate" }

// CompositeEffect holds multiple effects to be executed in sequence.
type CompositeEffect struct {
	Effects []Effect
}

func (e CompositeEffect) EffectType() string { return "composite" }

// NoEffect represents an operation that produces no side effects.
type NoEffect struct{}

func (e NoEffect) EffectType() string { return "none" }
