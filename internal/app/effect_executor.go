// Package app contains the application layer - service implementations and effect execution.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/doulaboard/internal/core/deeplink"
	"github.com/example/doulaboard/internal/core/effects"
	"github.com/example/doulaboard/internal/metrics"
	"github.com/example/doulaboard/internal/ports/secondary"
)

// EffectExecutor interprets and executes effects.
// This is the "Imperative Shell" - the only place I/O happens.
type EffectExecutor interface {
	Execute(ctx context.Context, effs []effects.Effect) error
}

// LoaderEffectExecutor runs the effects of one deep-link loader. Fetches run
// in their own goroutine and report back through deliver.
type LoaderEffectExecutor struct {
	lookup       secondary.ClientLookup
	notifier     secondary.Notifier
	navigator    secondary.Navigator
	logger       *zap.Logger
	metrics      *metrics.Loader
	fetchTimeout time.Duration
	deliver      func(deeplink.Event)

	// base bounds every fetch; it is cancelled by Close.
	base       context.Context
	cancelBase context.CancelFunc

	mu      sync.Mutex
	cancels map[uint64]context.CancelFunc
	// early holds cancels that arrived before their fetch was started.
	early   map[uint64]struct{}
	started uint64
	wg      sync.WaitGroup
}

// NewLoaderEffectExecutor creates an executor whose fetches live at most as long as ctx.
func NewLoaderEffectExecutor(
	ctx context.Context,
	deps LoaderDeps,
	deliver func(deeplink.Event),
) *LoaderEffectExecutor {
	base, cancel := context.WithCancel(context.WithoutCancel(ctx))
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoaderEffectExecutor{
		lookup:       deps.Lookup,
		notifier:     deps.Notifier,
		navigator:    deps.Navigator,
		logger:       logger,
		metrics:      deps.Metrics,
		fetchTimeout: deps.FetchTimeout,
		deliver:      deliver,
		base:         base,
		cancelBase:   cancel,
		cancels:      make(map[uint64]context.CancelFunc),
		early:        make(map[uint64]struct{}),
	}
}

// Execute processes a slice of effects, executing each in sequence.
func (e *LoaderEffectExecutor) Execute(ctx context.Context, effs []effects.Effect) error {
	for _, eff := range effs {
		if err := e.executeOne(ctx, eff); err != nil {
			return fmt.Errorf("failed to execute %s effect: %w", eff.EffectType(), err)
		}
	}
	return nil
}

func (e *LoaderEffectExecutor) executeOne(ctx context.Context, eff effects.Effect) error {
	switch typed := eff.(type) {
	case effects.FetchEffect:
		return e.executeFetch(typed)
	case effects.CancelFetchEffect:
		e.cancel(typed.Attempt)
		return nil
	case effects.NotifyEffect:
		if e.notifier != nil {
			e.notifier.Notify(ctx, secondary.Notification{
				Level:   typed.Level,
				Title:   typed.Title,
				Message: typed.Message,
			})
		}
		return nil
	case effects.NavigateEffect:
		if e.navigator != nil {
			e.navigator.Navigate(ctx, typed.Path)
		}
		return nil
	case effects.LogEffect:
		e.executeLog(typed)
		return nil
	case effects.CompositeEffect:
		return e.Execute(ctx, typed.Effects)
	case effects.NoEffect:
		return nil
	default:
		return fmt.Errorf("unknown effect type: %T", eff)
	}
}

func (e *LoaderEffectExecutor) executeFetch(eff effects.FetchEffect) error {
	if e.lookup == nil {
		return errors.New("no client lookup configured")
	}

	e.mu.Lock()
	if _, ok := e.early[eff.Attempt]; ok {
		delete(e.early, eff.Attempt)
		e.mu.Unlock()
		e.logger.Debug("skipping fetch cancelled before it started",
			zap.Uint64("attempt", eff.Attempt),
			zap.String("client_id", eff.ClientID))
		return nil
	}
	if e.base.Err() != nil {
		e.mu.Unlock()
		return nil
	}
	var (
		fctx   context.Context
		cancel context.CancelFunc
	)
	if e.fetchTimeout > 0 {
		fctx, cancel = context.WithTimeout(e.base, e.fetchTimeout)
	} else {
		fctx, cancel = context.WithCancel(e.base)
	}
	e.cancels[eff.Attempt] = cancel
	e.started = max(e.started, eff.Attempt)
	e.wg.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.wg.Done()
		defer cancel()

		start := time.Now()
		record, err := e.lookup.GetClientByID(fctx, eff.ClientID, eff.Detailed)
		elapsed := time.Since(start)

		// A fetch that was cancelled no longer owns any state.
		if !e.release(eff.Attempt) {
			e.metrics.ObserveFetch(elapsed, metrics.FetchCancelled)
			e.logger.Debug("discarding cancelled fetch",
				zap.Uint64("attempt", eff.Attempt),
				zap.String("client_id", eff.ClientID))
			return
		}

		switch {
		case err != nil:
			e.metrics.ObserveFetch(elapsed, metrics.FetchError)
			e.deliver(deeplink.FetchRejected{Attempt: eff.Attempt, Err: err})
		case record == nil:
			e.metrics.ObserveFetch(elapsed, metrics.FetchNotFound)
			e.deliver(deeplink.FetchResolved{Attempt: eff.Attempt})
		default:
			e.metrics.ObserveFetch(elapsed, metrics.FetchFound)
			e.deliver(deeplink.FetchResolved{Attempt: eff.Attempt, Record: record})
		}
	}()

	return nil
}

func (e *LoaderEffectExecutor) executeLog(eff effects.LogEffect) {
	fields := make([]zap.Field, 0, len(eff.Fields)+1)
	for k, v := range eff.Fields {
		fields = append(fields, zap.Any(k, v))
	}
	if eff.Err != nil {
		fields = append(fields, zap.Error(eff.Err))
	}

	switch eff.Level {
	case "debug":
		e.logger.Debug(eff.Message, fields...)
	case "warn":
		e.logger.Warn(eff.Message, fields...)
	case "error":
		e.logger.Error(eff.Message, fields...)
	default:
		e.logger.Info(eff.Message, fields...)
	}
}

// cancel abandons a running fetch. A cancel for an attempt newer than any
// started fetch is kept so the fetch is skipped when its effect arrives;
// older unknown attempts have already finished and are ignored.
func (e *LoaderEffectExecutor) cancel(attempt uint64) {
	e.mu.Lock()
	cancel, ok := e.cancels[attempt]
	delete(e.cancels, attempt)
	if !ok && attempt > e.started {
		e.early[attempt] = struct{}{}
	}
	e.mu.Unlock()
	if ok {
		cancel()
	}
}

// release forgets a finished fetch and reports whether it was still wanted.
func (e *LoaderEffectExecutor) release(attempt uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.cancels[attempt]; !ok {
		return false
	}
	delete(e.cancels, attempt)
	return true
}

// Close cancels every running fetch and waits for their goroutines to exit.
func (e *LoaderEffectExecutor) Close() {
	e.mu.Lock()
	e.cancelBase()
	for attempt, cancel := range e.cancels {
		cancel()
		delete(e.cancels, attempt)
	}
	e.mu.Unlock()
	e.wg.Wait()
}
