// Package engine implements the resumable workflow engine
//
// Each item advances through a fixed pipeline of agent steps. Every
// transition is applied with a single compare-and-swap against the
// checkpoint store and announced with exactly one progress event, so a
// run can be resumed from its last persisted snapshot after a crash
// without repeating applied work.
package engine
