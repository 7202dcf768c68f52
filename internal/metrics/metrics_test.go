package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestLoader_ObserveOutcome(t *testing.T) {
	reg := NewRegistry()
	l := NewLoader(reg)

	l.ObserveOutcome("found")
	l.ObserveOutcome("found")
	l.ObserveOutcome("fetch_not_found")

	if got := testutil.ToFloat64(l.outcomes.WithLabelValues("found")); got != 2 {
		t.Errorf("found outcomes = %v, want 2", got)
	}
	if got := testutil.ToFloat64(l.outcomes.WithLabelValues("fetch_not_found")); got != 1 {
		t.Errorf("fetch_not_found outcomes = %v, want 1", got)
	}
}

func TestLoader_Sessions(t *testing.T) {
	l := NewLoader(nil)
	l.SessionOpened()
	l.SessionOpened()
	l.SessionClosed()

	if got := testutil.ToFloat64(l.sessions); got != 1 {
		t.Errorf("sessions = %v, want 1", got)
	}
}

func TestLoader_ObserveFetch(t *testing.T) {
	l := NewLoader(nil)
	l.ObserveFetch(25*time.Millisecond, FetchFound)

	if got := testutil.CollectAndCount(l.fetchSeconds); got != 1 {
		t.Errorf("fetch series = %d, want 1", got)
	}
}

func TestLoader_NilIsNoop(t *testing.T) {
	var l *Loader
	l.ObserveOutcome("found")
	l.ObserveFetch(time.Second, FetchError)
	l.SessionOpened()
	l.SessionClosed()
}
