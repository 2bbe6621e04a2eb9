package api

import "time"

type (
	// EventKind classifies a progress event
	EventKind string

	// Event is an immutable fact describing one applied transition of a
	// run. The sequence is the run version the transition produced, so
	// per-item ordering matches the order transitions were persisted
	Event struct {
		ItemID    ItemID    `json:"item_id"`
		Kind      EventKind `json:"type"`
		Step      Step      `json:"step,omitempty"`
		Seq       int64     `json:"seq"`
		Data      Args      `json:"data,omitempty"`
		Timestamp time.Time `json:"timestamp"`
	}
)

const (
	// EventStep is emitted for every agent-applied transition
	EventStep EventKind = "step"

	// EventResumed is emitted when a human decision resumes a run
	EventResumed EventKind = "resumed"

	// EventError is emitted when a run's retry budget is exhausted
	EventError EventKind = "error"
)
