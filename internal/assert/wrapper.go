// Package assert wraps testify with domain-aware test helpers
package assert

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/flipflow/flipflow/pkg/api"
)

type (
	// Wrapper wraps testify assertions with Flipflow-specific helpers
	Wrapper struct {
		*testing.T
		*assert.Assertions
	}
)

// DefaultRetryInterval is the default polling interval for Eventually
// checks
const DefaultRetryInterval = 10 * time.Millisecond

// New creates a new test assertion wrapper
func New(t *testing.T) *Wrapper {
	return &Wrapper{
		T:          t,
		Assertions: assert.New(t),
	}
}

// Fail reports a test failure with a formatted message. It also pins
// down the Fail selector shared by the embedded types
func (w *Wrapper) Fail(format string, args ...any) {
	w.Helper()
	w.Assertions.Fail(fmt.Sprintf(format, args...))
}

// RunStatus asserts the status of a run
func (w *Wrapper) RunStatus(st *api.RunState, expected api.ItemStatus) {
	w.Helper()
	w.Equal(expected, st.Status)
}

// RunSuspended asserts that a run is parked at the expected gate
func (w *Wrapper) RunSuspended(st *api.RunState, gate api.Gate) {
	w.Helper()
	w.True(st.Suspended(), "run should be suspended")
	w.Equal(gate, st.Gate)
}

// RunVersion asserts a run's exact version
func (w *Wrapper) RunVersion(st *api.RunState, expected int64) {
	w.Helper()
	w.Equal(expected, st.Version)
}

// OfferStatus asserts the sub-state of an offer
func (w *Wrapper) OfferStatus(o *api.Offer, expected api.OfferStatus) {
	w.Helper()
	w.Equal(expected, o.Status)
}

// EventSeq asserts an event's kind and sequence
func (w *Wrapper) EventSeq(ev *api.Event, kind api.EventKind, seq int64) {
	w.Helper()
	w.Equal(kind, ev.Kind)
	w.Equal(seq, ev.Seq)
}

// Eventually runs a condition repeatedly until it passes or times out
func (w *Wrapper) Eventually(
	condition func() bool, timeout time.Duration, msg string, args ...any,
) {
	w.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(DefaultRetryInterval)
	}
	w.Fail(msg, args...)
}
