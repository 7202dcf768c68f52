package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/example/doulaboard/internal/core/deeplink"
	"github.com/example/doulaboard/internal/core/identity"
	"github.com/example/doulaboard/internal/metrics"
	"github.com/example/doulaboard/internal/ports/primary"
	"github.com/example/doulaboard/internal/ports/secondary"
)

// ============================================================================
// Mock Implementations
// ============================================================================

// mockClientLookup implements secondary.ClientLookup for testing.
type mockClientLookup struct {
	mu      sync.Mutex
	calls   []string
	records map[string]identity.Record
	errs    map[string]error
	// gates block a lookup until closed. Unless ignoreCancel is set the
	// lookup also returns early when its context is cancelled.
	gates        map[string]chan struct{}
	ignoreCancel bool
}

func newMockClientLookup() *mockClientLookup {
	return &mockClientLookup{
		records: make(map[string]identity.Record),
		errs:    make(map[string]error),
		gates:   make(map[string]chan struct{}),
	}
}

func (m *mockClientLookup) GetClientByID(ctx context.Context, id string, detailed bool) (identity.Record, error) {
	m.mu.Lock()
	m.calls = append(m.calls, id)
	gate := m.gates[id]
	record := m.records[id]
	err := m.errs[id]
	ignoreCancel := m.ignoreCancel
	m.mu.Unlock()

	if gate != nil {
		if ignoreCancel {
			<-gate
		} else {
			select {
			case <-gate:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return record, err
}

func (m *mockClientLookup) callsFor(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == id {
			n++
		}
	}
	return n
}

// mockClientLister implements secondary.ClientLister for testing.
type mockClientLister struct {
	clients []identity.Record
	err     error
}

func (m *mockClientLister) ListClients(ctx context.Context) ([]identity.Record, error) {
	return m.clients, m.err
}

// mockNotifier implements secondary.Notifier for testing.
type mockNotifier struct {
	mu    sync.Mutex
	toast []secondary.Notification
}

func (m *mockNotifier) Notify(ctx context.Context, n secondary.Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toast = append(m.toast, n)
}

func (m *mockNotifier) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.toast)
}

// mockNavigator implements secondary.Navigator for testing.
type mockNavigator struct {
	mu    sync.Mutex
	paths []string
}

func (m *mockNavigator) Navigate(ctx context.Context, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paths = append(m.paths, path)
}

func (m *mockNavigator) visited() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.paths...)
}

type loaderFixture struct {
	lookup    *mockClientLookup
	lister    *mockClientLister
	notifier  *mockNotifier
	navigator *mockNavigator
	logs      *observer.ObservedLogs
	service   *DeepLinkServiceImpl
}

func newLoaderFixture(clients ...identity.Record) *loaderFixture {
	core, logs := observer.New(zapcore.DebugLevel)
	f := &loaderFixture{
		lookup:    newMockClientLookup(),
		lister:    &mockClientLister{clients: clients},
		notifier:  &mockNotifier{},
		navigator: &mockNavigator{},
		logs:      logs,
	}
	f.service = NewDeepLinkService(LoaderDeps{
		Lookup:    f.lookup,
		Lister:    f.lister,
		Notifier:  f.notifier,
		Navigator: f.navigator,
		Logger:    zap.New(core),
	})
	return f
}

func (f *loaderFixture) session(t *testing.T) *DeepLinkSession {
	t.Helper()
	s, err := f.service.NewSession(context.Background())
	if err != nil {
		t.Fatalf("NewSession() error: %v", err)
	}
	t.Cleanup(s.Close)
	return s.(*DeepLinkSession)
}

func openCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// ============================================================================
// Tests
// ============================================================================

func TestDeepLinkSession_OpensKnownClientWithoutFetching(t *testing.T) {
	f := newLoaderFixture(identity.Record{"uuid": "abc123", "firstName": "Ada"})
	s := f.session(t)

	view, err := s.Open(openCtx(t), "abc123")
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if !view.PanelOpen || view.Record["firstName"] != "Ada" {
		t.Errorf("view = %+v, want Ada's profile", view)
	}
	if view.State != string(deeplink.StateFound) {
		t.Errorf("State = %q, want %q", view.State, deeplink.StateFound)
	}
	if n := f.lookup.callsFor("abc123"); n != 0 {
		t.Errorf("lookup called %d times, want 0", n)
	}
}

func TestDeepLinkSession_NotFoundFetchesOnce(t *testing.T) {
	f := newLoaderFixture()
	s := f.session(t)
	ctx := openCtx(t)

	view, err := s.Open(ctx, "xyz789")
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if !view.NotFound() || view.MissingClientID != "xyz789" {
		t.Errorf("view = %+v, want not-found panel for xyz789", view)
	}
	if f.notifier.count() != 1 {
		t.Errorf("notifications = %d, want 1", f.notifier.count())
	}

	if _, err := s.Open(ctx, "xyz789"); err != nil {
		t.Fatalf("second Open() error: %v", err)
	}
	if n := f.lookup.callsFor("xyz789"); n != 1 {
		t.Errorf("lookup called %d times, want 1", n)
	}
}

func TestDeepLinkSession_RepairsFetchedRecord(t *testing.T) {
	f := newLoaderFixture()
	f.lookup.records["id-1"] = identity.Record{"email": "a@b.com"}
	s := f.session(t)

	view, err := s.Open(openCtx(t), "id-1")
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if view.Record["id"] != "id-1" || !identity.Matches(view.Record, "id-1") {
		t.Errorf("Record = %v, want repaired id-1", view.Record)
	}
	if view.State != string(deeplink.StateFetchFound) {
		t.Errorf("State = %q, want %q", view.State, deeplink.StateFetchFound)
	}
	if f.logs.FilterMessage("client payload failed validation, showing raw payload").Len() != 1 {
		t.Error("validation fallback was not logged")
	}
}

func TestDeepLinkSession_FetchErrorIsLoggedAndShownAsNotFound(t *testing.T) {
	f := newLoaderFixture()
	f.lookup.errs["id-1"] = errors.New("backend returned 502")
	s := f.session(t)

	view, err := s.Open(openCtx(t), "id-1")
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if view.State != string(deeplink.StateFetchFailed) || !view.NotFound() {
		t.Errorf("view = %+v, want failed not-found panel", view)
	}
	if f.notifier.count() != 1 {
		t.Errorf("notifications = %d, want 1", f.notifier.count())
	}
	entries := f.logs.FilterLevelExact(zapcore.ErrorLevel).FilterMessage("failed to load client for deep link").All()
	if len(entries) != 1 {
		t.Fatalf("error logs = %d, want 1", len(entries))
	}
	if got := entries[0].ContextMap()["error"]; got != "backend returned 502" {
		t.Errorf("logged error = %v", got)
	}
}

func TestDeepLinkSession_SupersededFetchIsDiscarded(t *testing.T) {
	f := newLoaderFixture()
	gate := make(chan struct{})
	f.lookup.gates["id-1"] = gate
	f.lookup.ignoreCancel = true
	f.lookup.records["id-1"] = identity.Record{"id": "id-1", "firstName": "Stale"}
	f.lookup.records["id-2"] = identity.Record{"id": "id-2", "firstName": "Fresh"}
	s := f.session(t)
	ctx := openCtx(t)

	s.Navigate(ctx, "id-1")
	view, err := s.Open(ctx, "id-2")
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if view.Record["firstName"] != "Fresh" {
		t.Fatalf("Record = %v, want id-2", view.Record)
	}

	close(gate)
	s.exec.wg.Wait()

	view = s.View()
	if view.Record["firstName"] != "Fresh" {
		t.Errorf("late id-1 result replaced the profile: %v", view.Record)
	}
	if f.notifier.count() != 0 {
		t.Errorf("notifications = %d, want 0", f.notifier.count())
	}
}

func TestDeepLinkSession_DismissReturnsToListingAndStaysClosed(t *testing.T) {
	f := newLoaderFixture(identity.Record{"id": "id-1"})
	s := f.session(t)
	ctx := openCtx(t)

	if _, err := s.Open(ctx, "id-1"); err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	view := s.Dismiss(ctx)
	if view.PanelOpen {
		t.Fatal("panel still open after Dismiss()")
	}
	if got := f.navigator.visited(); len(got) != 1 || got[0] != deeplink.DefaultBasePath {
		t.Errorf("navigations = %v, want [%s]", got, deeplink.DefaultBasePath)
	}

	if view := s.Navigate(ctx, "id-1"); view.PanelOpen {
		t.Error("panel reopened for dismissed client")
	}
	if _, err := s.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error: %v", err)
	}
	if s.View().PanelOpen {
		t.Error("panel reopened after list refresh")
	}
}

func TestDeepLinkSession_CloseCancelsInFlightFetch(t *testing.T) {
	f := newLoaderFixture()
	f.lookup.gates["id-1"] = make(chan struct{}) // never closed
	s := f.session(t)

	view := s.Navigate(context.Background(), "id-1")
	if !view.Fetching {
		t.Fatalf("view = %+v, want fetching", view)
	}

	s.Close()
	if s.View().Fetching {
		t.Error("still fetching after Close()")
	}
	s.Close()
}

func TestDeepLinkSession_WaitHonoursContext(t *testing.T) {
	f := newLoaderFixture()
	f.lookup.gates["id-1"] = make(chan struct{})
	s := f.session(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	view, err := s.Open(ctx, "id-1")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Open() error = %v, want deadline exceeded", err)
	}
	if !view.Fetching {
		t.Errorf("view = %+v, want still fetching", view)
	}
}

func TestDeepLinkSession_FetchTimeout(t *testing.T) {
	f := newLoaderFixture()
	f.lookup.gates["id-1"] = make(chan struct{})
	f.service.deps.FetchTimeout = 10 * time.Millisecond
	s := f.session(t)

	view, err := s.Open(openCtx(t), "id-1")
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if view.State != string(deeplink.StateFetchFailed) {
		t.Errorf("State = %q, want %q", view.State, deeplink.StateFetchFailed)
	}
}

func TestDeepLinkService_ListFailureIsNotFatal(t *testing.T) {
	f := newLoaderFixture()
	f.lister.err = errors.New("list endpoint down")
	s := f.session(t)

	if s.View().State != string(deeplink.StateIdle) {
		t.Errorf("State = %q, want idle", s.View().State)
	}
	if f.logs.FilterMessage("failed to load client list").Len() != 1 {
		t.Error("list failure was not logged")
	}
}

func TestDeepLinkService_RecordsOutcomes(t *testing.T) {
	reg := metrics.NewRegistry()
	f := newLoaderFixture(identity.Record{"id": "known"})
	f.service.deps.Metrics = metrics.NewLoader(reg)
	s := f.session(t)
	ctx := openCtx(t)

	if _, err := s.Open(ctx, "known"); err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if _, err := s.Open(ctx, "missing"); err != nil {
		t.Fatalf("Open() error: %v", err)
	}

	n, err := testutil.GatherAndCount(reg, "doulaboard_deeplink_outcomes_total")
	if err != nil {
		t.Fatalf("GatherAndCount() error: %v", err)
	}
	if n != 2 {
		t.Errorf("outcome series = %d, want 2 (found, fetch_not_found)", n)
	}
}

func TestDeepLinkService_CountsEachListHit(t *testing.T) {
	reg := metrics.NewRegistry()
	f := newLoaderFixture(identity.Record{"id": "id-1"}, identity.Record{"id": "id-2"})
	f.service.deps.Metrics = metrics.NewLoader(reg)
	s := f.session(t)
	ctx := openCtx(t)

	for _, id := range []string{"id-1", "id-2"} {
		if _, err := s.Open(ctx, id); err != nil {
			t.Fatalf("Open(%s) error: %v", id, err)
		}
	}

	want := `
# HELP doulaboard_deeplink_outcomes_total Deep-link resolutions by terminal state.
# TYPE doulaboard_deeplink_outcomes_total counter
doulaboard_deeplink_outcomes_total{outcome="found"} 2
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(want), "doulaboard_deeplink_outcomes_total"); err != nil {
		t.Errorf("outcomes mismatch: %v", err)
	}
}

var _ primary.DeepLinkSession = (*DeepLinkSession)(nil)
