// Package store persists run state snapshots and offer sub-records. The
// checkpoint contract is a per-item compare-and-swap keyed by the run
// version: a transition applies only if the stored version still matches
// the version the caller loaded, which is the mechanism preventing lost
// updates when two executors race.
package store

import (
	"context"
	"errors"

	"github.com/flipflow/flipflow/pkg/api"
)

type (
	// Store is the durable checkpoint store for workflow runs and their
	// offer sub-records
	Store interface {
		// Create inserts the initial version-zero snapshot for a new
		// item. Returns ErrRunExists when a run is already present
		Create(ctx context.Context, st *api.RunState) error

		// Load returns the current snapshot for an item, or ErrNotFound
		Load(ctx context.Context, id api.ItemID) (*api.RunState, error)

		// CompareAndSwap atomically replaces the snapshot if the stored
		// version equals expected. Returns ErrVersionConflict when a
		// concurrent writer got there first, ErrNotFound when no run
		// exists
		CompareAndSwap(
			ctx context.Context, id api.ItemID, expected int64,
			next *api.RunState,
		) error

		// List returns every stored snapshot. Used by the supervisor to
		// enumerate runs for recovery and monitoring
		List(ctx context.Context) ([]*api.RunState, error)

		// PutOffer inserts or replaces an offer sub-record
		PutOffer(ctx context.Context, offer *api.Offer) error

		// GetOffer returns an offer by id, or ErrNotFound
		GetOffer(ctx context.Context, id api.OfferID) (*api.Offer, error)

		// SwapOffer atomically replaces an offer if its stored status
		// equals expected. Returns ErrVersionConflict when the offer
		// was already moved past the expected status, which is how a
		// replayed decision is rejected without side effects
		SwapOffer(
			ctx context.Context, id api.OfferID,
			expected api.OfferStatus, next *api.Offer,
		) error

		// ListOffers returns all offers recorded against an item
		ListOffers(
			ctx context.Context, id api.ItemID,
		) ([]*api.Offer, error)

		// Close releases any underlying resources
		Close() error
	}
)

var (
	// ErrNotFound is returned when no run or offer exists for an id
	ErrNotFound = errors.New("not found")

	// ErrRunExists is returned when creating a run that already exists
	ErrRunExists = errors.New("run already exists")

	// ErrVersionConflict signals an optimistic-concurrency failure. It
	// is internal: callers reload and retry, it is never surfaced to
	// external clients
	ErrVersionConflict = errors.New("version conflict")
)
