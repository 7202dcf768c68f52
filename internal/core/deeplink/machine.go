package deeplink

import (
	"fmt"
	"strings"

	"github.com/example/doulaboard/internal/core/effects"
	"github.com/example/doulaboard/internal/core/identity"
)

// State is the loader state for the current route id.
type State string

const (
	StateIdle State = "idle"
	// StateLookingUp is transient: it only exists while the in-memory list is scanned.
	StateLookingUp     State = "looking_up"
	StateFound         State = "found"
	StateFetching      State = "fetching"
	StateFetchFound    State = "fetch_found"
	StateFetchNotFound State = "fetch_not_found"
	StateFetchFailed   State = "fetch_failed"
)

// DefaultBasePath is the listing route used when none is configured.
const DefaultBasePath = "/clients"

// NotFoundTitle is the notification title shown when a deep link resolves to nothing.
const NotFoundTitle = "Client not found"

// Event drives the machine.
type Event interface {
	eventName() string
}

// RouteChanged reports the client id carried by the current route. Empty means
// the route no longer requests a client.
type RouteChanged struct {
	ClientID string
}

// ListUpdated reports a new snapshot of the in-memory client list.
type ListUpdated struct {
	Clients []identity.Record
}

// FetchResolved delivers the result of a fetch. A nil Record means not found.
type FetchResolved struct {
	Attempt uint64
	Record  identity.Record
}

// FetchRejected delivers a fetch that failed.
type FetchRejected struct {
	Attempt uint64
	Err     error
}

// UserDismissed reports that the user closed the profile panel.
type UserDismissed struct{}

// ProfileOpened reports that the host opened a profile directly (row click).
type ProfileOpened struct {
	Record identity.Record
}

func (RouteChanged) eventName() string  { return "route_changed" }
func (ListUpdated) eventName() string   { return "list_updated" }
func (FetchResolved) eventName() string { return "fetch_resolved" }
func (FetchRejected) eventName() string { return "fetch_rejected" }
func (UserDismissed) eventName() string { return "user_dismissed" }
func (ProfileOpened) eventName() string { return "profile_opened" }

// EventName returns a stable name for logging.
func EventName(ev Event) string {
	if ev == nil {
		return "nil"
	}
	return ev.eventName()
}

// View is what the host should render right now.
type View struct {
	State           State
	RouteClientID   string
	PanelOpen       bool
	Record          identity.Record
	MissingClientID string
	Fetching        bool
}

type attempt struct {
	seq      uint64
	clientID string
}

// Machine is the deep-link lead loader. It is not safe for concurrent use;
// the owner serializes events.
type Machine struct {
	basePath string

	state   State
	route   string
	clients []identity.Record

	attempted      map[string]struct{}
	manuallyClosed bool
	navigatedFor   string

	inflight *attempt
	seq      uint64

	panelOpen    bool
	record       identity.Record
	missingID    string
	lastResolved string
}

// NewMachine creates an idle machine. An empty basePath uses DefaultBasePath.
func NewMachine(basePath string) *Machine {
	if basePath == "" {
		basePath = DefaultBasePath
	}
	return &Machine{
		basePath:  basePath,
		state:     StateIdle,
		attempted: make(map[string]struct{}),
	}
}

// View returns the current render state.
func (m *Machine) View() View {
	return View{
		State:           m.state,
		RouteClientID:   m.route,
		PanelOpen:       m.panelOpen,
		Record:          m.record,
		MissingClientID: m.missingID,
		Fetching:        m.inflight != nil,
	}
}

// Attempted reports whether a network fetch was already issued for id.
func (m *Machine) Attempted(id string) bool {
	_, ok := m.attempted[strings.TrimSpace(id)]
	return ok
}

// InFlight returns the running fetch attempt, if any.
func (m *Machine) InFlight() (seq uint64, clientID string, ok bool) {
	if m.inflight == nil {
		return 0, "", false
	}
	return m.inflight.seq, m.inflight.clientID, true
}

// LastResolved returns the last route id that reached a terminal state.
func (m *Machine) LastResolved() string {
	return m.lastResolved
}

// Handle applies an event and returns the effects the shell must run.
func (m *Machine) Handle(ev Event) []effects.Effect {
	var effs []effects.Effect

	switch e := ev.(type) {
	case RouteChanged:
		effs = m.onRouteChanged(strings.TrimSpace(e.ClientID))
	case ListUpdated:
		m.clients = append([]identity.Record(nil), e.Clients...)
		effs = m.resolve()
	case FetchResolved:
		if m.stale(e.Attempt) {
			return nil
		}
		effs = m.onFetchResolved(e)
	case FetchRejected:
		if m.stale(e.Attempt) {
			return nil
		}
		effs = m.onFetchRejected(e)
	case UserDismissed:
		effs = m.onDismissed()
	case ProfileOpened:
		m.panelOpen = true
		m.record = e.Record
		m.missingID = ""
		if m.route != "" && identity.Matches(e.Record, m.route) {
			m.state = StateFound
		}
	default:
		return nil
	}

	return append(effs, m.reconcile()...)
}

// Reset discards all state, as when the loader is unmounted.
func (m *Machine) Reset() []effects.Effect {
	effs := m.cancelInFlight()
	seq := m.seq
	*m = *NewMachine(m.basePath)
	// Attempt numbers keep increasing so results from before the reset stay stale.
	m.seq = seq
	return effs
}

func (m *Machine) onRouteChanged(id string) []effects.Effect {
	if id == "" {
		effs := m.cancelInFlight()
		m.route = ""
		m.state = StateIdle
		m.attempted = make(map[string]struct{})
		m.manuallyClosed = false
		m.navigatedFor = ""
		return effs
	}

	var effs []effects.Effect
	if id != m.route {
		effs = append(effs, m.cancelInFlight()...)
		m.route = id
		m.manuallyClosed = false
		m.navigatedFor = ""
		// The panel never shows a client other than the one the route asks for.
		if m.record == nil || !identity.Matches(m.record, id) {
			m.panelOpen = false
			m.record = nil
			m.missingID = ""
			m.state = StateIdle
		}
	}
	return append(effs, m.resolve()...)
}

// resolve runs the lookup for the current route id.
func (m *Machine) resolve() []effects.Effect {
	id := m.route
	if id == "" {
		return nil
	}

	open := CanAutoOpen(AutoOpenContext{
		ClientID:         id,
		AlreadyDisplayed: m.panelOpen && m.record != nil && identity.Matches(m.record, id),
		ManuallyClosed:   m.manuallyClosed,
	})
	if !open.Allowed {
		return nil
	}

	prev := m.state
	m.state = StateLookingUp

	for _, c := range m.clients {
		if identity.Matches(c, id) {
			effs := m.cancelInFlight()
			m.show(c, id)
			m.state = StateFound
			return effs
		}
	}

	inFlight := m.inflight != nil && m.inflight.clientID == id
	fetch := CanFetch(FetchContext{
		ClientID:         id,
		AlreadyAttempted: m.Attempted(id),
		InFlight:         inFlight,
	})
	if !fetch.Allowed {
		m.state = prev
		return nil
	}

	// Marked before the result arrives so repeated events never issue a second call.
	m.attempted[id] = struct{}{}
	m.seq++
	m.inflight = &attempt{seq: m.seq, clientID: id}
	m.state = StateFetching

	return []effects.Effect{
		effects.FetchEffect{Attempt: m.seq, ClientID: id, Detailed: true},
	}
}

func (m *Machine) onFetchResolved(e FetchResolved) []effects.Effect {
	id, ok := m.claim(e.Attempt)
	if !ok {
		return nil
	}

	if e.Record == nil {
		m.state = StateFetchNotFound
		return m.notFound(id)
	}

	var effs []effects.Effect
	display, err := displayRecord(e.Record, id)
	if err != nil {
		effs = append(effs, effects.LogEffect{
			Level:   "warn",
			Message: "client payload failed validation, showing raw payload",
			Fields:  map[string]any{"client_id": id},
			Err:     err,
		})
	}
	m.show(display, id)
	m.state = StateFetchFound
	return effs
}

func (m *Machine) onFetchRejected(e FetchRejected) []effects.Effect {
	id, ok := m.claim(e.Attempt)
	if !ok {
		return nil
	}

	m.state = StateFetchFailed
	effs := []effects.Effect{effects.LogEffect{
		Level:   "error",
		Message: "failed to load client for deep link",
		Fields:  map[string]any{"client_id": id},
		Err:     e.Err,
	}}
	return append(effs, m.notFound(id)...)
}

func (m *Machine) onDismissed() []effects.Effect {
	effs := m.cancelInFlight()
	m.panelOpen = false
	m.record = nil
	m.missingID = ""
	if m.route != "" {
		m.manuallyClosed = true
	}
	return effs
}

// stale reports whether a fetch result belongs to a superseded or cancelled attempt.
func (m *Machine) stale(seq uint64) bool {
	return m.inflight == nil || m.inflight.seq != seq
}

// claim accepts a fetch result only if it belongs to the current attempt.
func (m *Machine) claim(seq uint64) (string, bool) {
	if m.stale(seq) {
		return "", false
	}
	id := m.inflight.clientID
	m.inflight = nil
	m.lastResolved = id
	return id, true
}

func (m *Machine) show(r identity.Record, id string) {
	m.record = r
	m.panelOpen = true
	m.missingID = ""
	m.lastResolved = id
}

func (m *Machine) notFound(id string) []effects.Effect {
	m.record = nil
	m.panelOpen = true
	m.missingID = id
	return []effects.Effect{effects.NotifyEffect{
		Level:   effects.LevelError,
		Title:   NotFoundTitle,
		Message: fmt.Sprintf("No client matches %q.", id),
	}}
}

func (m *Machine) cancelInFlight() []effects.Effect {
	if m.inflight == nil {
		return nil
	}
	seq := m.inflight.seq
	m.inflight = nil
	return []effects.Effect{effects.CancelFetchEffect{Attempt: seq}}
}

func (m *Machine) reconcile() []effects.Effect {
	guard := ShouldReturnToListing(ReconcileContext{
		RouteClientID:    m.route,
		PanelOpen:        m.panelOpen,
		RecordPending:    m.record != nil,
		FetchInFlight:    m.inflight != nil,
		AlreadyNavigated: m.navigatedFor == m.route,
	})
	if !guard.Allowed {
		return nil
	}
	m.navigatedFor = m.route
	return []effects.Effect{effects.NavigateEffect{Path: m.basePath}}
}

// displayRecord parses a fetched payload into the display shape. When the
// payload fails validation the raw payload is used instead; either way the
// result is repaired to match id.
func displayRecord(raw identity.Record, id string) (identity.Record, error) {
	client, err := identity.Canonicalize(raw)
	if err != nil {
		return identity.EnsureIdentifiers(raw, raw, id), err
	}
	return identity.EnsureIdentifiers(client.Record(), raw, id), nil
}
