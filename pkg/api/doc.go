// Package api defines the shared domain types for the flipflow
// orchestration engine: run state snapshots, listings, offers, events,
// and the request/response shapes used by the HTTP API. State values are
// immutable; setters return a modified copy so the engine's
// compare-and-swap apply path never mutates a snapshot in place.
package api
