package app

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/doulaboard/internal/core/deeplink"
	"github.com/example/doulaboard/internal/ctxutil"
	"github.com/example/doulaboard/internal/metrics"
	"github.com/example/doulaboard/internal/ports/primary"
	"github.com/example/doulaboard/internal/ports/secondary"
)

// LoaderDeps are the collaborators of a deep-link loader.
type LoaderDeps struct {
	Lookup    secondary.ClientLookup
	Lister    secondary.ClientLister // optional; without it the in-memory list stays empty
	Notifier  secondary.Notifier
	Navigator secondary.Navigator
	Logger    *zap.Logger
	Metrics   *metrics.Loader

	BasePath     string        // listing route, defaults to /clients
	FetchTimeout time.Duration // zero means no timeout
}

// DeepLinkServiceImpl implements the DeepLinkService interface.
type DeepLinkServiceImpl struct {
	deps LoaderDeps
}

// NewDeepLinkService creates a new DeepLinkService with injected dependencies.
func NewDeepLinkService(deps LoaderDeps) *DeepLinkServiceImpl {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &DeepLinkServiceImpl{deps: deps}
}

// NewSession mounts a loader and loads the client list when a lister is configured.
// A list that fails to load is logged and treated as empty.
func (s *DeepLinkServiceImpl) NewSession(ctx context.Context) (primary.DeepLinkSession, error) {
	session := s.newSession(ctx)
	if s.deps.Lister != nil {
		if _, err := session.Refresh(ctx); err != nil {
			session.logger.Warn("failed to load client list", zap.Error(err))
		}
	}
	return session, nil
}

func (s *DeepLinkServiceImpl) newSession(ctx context.Context) *DeepLinkSession {
	id := "SES-" + uuid.NewString()[:8]
	ctx = ctxutil.WithSessionID(ctx, id)

	session := &DeepLinkSession{
		id:      id,
		ctx:     context.WithoutCancel(ctx),
		machine: deeplink.NewMachine(s.deps.BasePath),
		lister:  s.deps.Lister,
		logger:  s.deps.Logger.With(zap.String("session", id)),
		metrics: s.deps.Metrics,
		changed: make(chan struct{}),
	}
	deps := s.deps
	deps.Logger = session.logger
	session.exec = NewLoaderEffectExecutor(ctx, deps, session.deliver)
	session.metrics.SessionOpened()
	return session
}

// DeepLinkSession is one mounted deep-link loader. Events are serialized
// through mu; effects run outside the lock.
type DeepLinkSession struct {
	id      string
	ctx     context.Context
	lister  secondary.ClientLister
	logger  *zap.Logger
	metrics *metrics.Loader
	exec    *LoaderEffectExecutor

	mu      sync.Mutex
	machine *deeplink.Machine
	changed chan struct{} // closed and replaced after every event
	closed  bool

	closeOnce sync.Once
}

// ID returns the session identifier used in logs.
func (s *DeepLinkSession) ID() string {
	return s.id
}

// Navigate reports the client id carried by the current route.
func (s *DeepLinkSession) Navigate(ctx context.Context, clientID string) primary.ProfileView {
	return s.dispatch(ctx, deeplink.RouteChanged{ClientID: clientID})
}

// Open navigates to clientID and waits for the loader to settle.
func (s *DeepLinkSession) Open(ctx context.Context, clientID string) (primary.ProfileView, error) {
	s.Navigate(ctx, clientID)
	return s.Wait(ctx)
}

// Dismiss reports that the user closed the profile panel.
func (s *DeepLinkSession) Dismiss(ctx context.Context) primary.ProfileView {
	return s.dispatch(ctx, deeplink.UserDismissed{})
}

// Refresh reloads the in-memory client list from the lister.
func (s *DeepLinkSession) Refresh(ctx context.Context) (primary.ProfileView, error) {
	if s.lister == nil {
		return s.View(), nil
	}
	clients, err := s.lister.ListClients(ctx)
	if err != nil {
		return s.View(), err
	}
	s.logger.Debug("client list refreshed", zap.Int("clients", len(clients)))
	return s.dispatch(ctx, deeplink.ListUpdated{Clients: clients}), nil
}

// View returns the current profile panel state.
func (s *DeepLinkSession) View() primary.ProfileView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return toProfileView(s.machine.View())
}

// Wait blocks until no fetch is in flight or ctx is done.
func (s *DeepLinkSession) Wait(ctx context.Context) (primary.ProfileView, error) {
	for {
		s.mu.Lock()
		view := s.machine.View()
		changed := s.changed
		s.mu.Unlock()

		if !view.Fetching {
			return toProfileView(view), nil
		}

		select {
		case <-ctx.Done():
			return toProfileView(view), ctx.Err()
		case <-changed:
		}
	}
}

// Close unmounts the loader. In-flight fetches are cancelled and their
// goroutines have exited when Close returns.
func (s *DeepLinkSession) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		effs := s.machine.Reset()
		s.broadcast()
		s.mu.Unlock()

		if err := s.exec.Execute(s.ctx, effs); err != nil {
			s.logger.Warn("failed to cancel fetch on close", zap.Error(err))
		}
		s.exec.Close()
		s.metrics.SessionClosed()
		s.logger.Debug("session closed")
	})
}

// deliver feeds fetch results back into the machine.
func (s *DeepLinkSession) deliver(ev deeplink.Event) {
	s.dispatch(s.ctx, ev)
}

func (s *DeepLinkSession) dispatch(ctx context.Context, ev deeplink.Event) primary.ProfileView {
	s.mu.Lock()
	if s.closed {
		view := s.machine.View()
		s.mu.Unlock()
		return toProfileView(view)
	}
	before, resolvedBefore := s.machine.View(), s.machine.LastResolved()
	effs := s.machine.Handle(ev)
	after, resolvedAfter := s.machine.View(), s.machine.LastResolved()
	s.broadcast()
	s.mu.Unlock()

	s.logger.Debug("loader event",
		zap.String("event", deeplink.EventName(ev)),
		zap.String("from", string(before.State)),
		zap.String("to", string(after.State)),
		zap.Int("effects", len(effs)))
	s.observe(before, after, resolvedBefore != resolvedAfter)

	if err := s.exec.Execute(ctx, effs); err != nil {
		s.logger.Error("failed to execute loader effects", zap.Error(err))
	}
	return toProfileView(after)
}

// broadcast wakes every waiter. Callers hold mu.
func (s *DeepLinkSession) broadcast() {
	close(s.changed)
	s.changed = make(chan struct{})
}

// observe counts an outcome each time the loader settles, including a
// settle in the same state for a different client.
func (s *DeepLinkSession) observe(before, after deeplink.View, resolvedChanged bool) {
	if before.State == after.State && !resolvedChanged {
		return
	}
	switch after.State {
	case deeplink.StateFound, deeplink.StateFetchFound, deeplink.StateFetchNotFound, deeplink.StateFetchFailed:
		s.metrics.ObserveOutcome(string(after.State))
	}
}

func toProfileView(v deeplink.View) primary.ProfileView {
	return primary.ProfileView{
		State:           string(v.State),
		RouteClientID:   v.RouteClientID,
		PanelOpen:       v.PanelOpen,
		Record:          v.Record,
		MissingClientID: v.MissingClientID,
		Fetching:        v.Fetching,
	}
}
