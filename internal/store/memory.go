package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/flipflow/flipflow/pkg/api"
)

// MemoryStore is an in-process Store used for tests and single-process
// development. Snapshots are immutable values, so it holds them directly
type MemoryStore struct {
	mu     sync.RWMutex
	runs   map[api.ItemID]*api.RunState
	offers map[api.OfferID]*api.Offer
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory checkpoint store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:   map[api.ItemID]*api.RunState{},
		offers: map[api.OfferID]*api.Offer{},
	}
}

func (s *MemoryStore) Create(_ context.Context, st *api.RunState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[st.ItemID]; ok {
		return fmt.Errorf("%w: %s", ErrRunExists, st.ItemID)
	}
	s.runs[st.ItemID] = st
	return nil
}

func (s *MemoryStore) Load(
	_ context.Context, id api.ItemID,
) (*api.RunState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: run %s", ErrNotFound, id)
	}
	return st, nil
}

func (s *MemoryStore) CompareAndSwap(
	_ context.Context, id api.ItemID, expected int64, next *api.RunState,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.runs[id]
	if !ok {
		return fmt.Errorf("%w: run %s", ErrNotFound, id)
	}
	if current.Version != expected {
		return fmt.Errorf("%w: run %s at %d, expected %d",
			ErrVersionConflict, id, current.Version, expected)
	}
	s.runs[id] = next
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]*api.RunState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]*api.RunState, 0, len(s.runs))
	for _, st := range s.runs {
		res = append(res, st)
	}
	slices.SortFunc(res, func(a, b *api.RunState) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return res, nil
}

func (s *MemoryStore) PutOffer(_ context.Context, offer *api.Offer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.offers[offer.ID] = offer
	return nil
}

func (s *MemoryStore) GetOffer(
	_ context.Context, id api.OfferID,
) (*api.Offer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	offer, ok := s.offers[id]
	if !ok {
		return nil, fmt.Errorf("%w: offer %s", ErrNotFound, id)
	}
	return offer, nil
}

func (s *MemoryStore) SwapOffer(
	_ context.Context, id api.OfferID, expected api.OfferStatus,
	next *api.Offer,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.offers[id]
	if !ok {
		return fmt.Errorf("%w: offer %s", ErrNotFound, id)
	}
	if current.Status != expected {
		return fmt.Errorf("%w: offer %s is %s, expected %s",
			ErrVersionConflict, id, current.Status, expected)
	}
	s.offers[id] = next
	return nil
}

func (s *MemoryStore) ListOffers(
	_ context.Context, id api.ItemID,
) ([]*api.Offer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var res []*api.Offer
	for _, offer := range s.offers {
		if offer.ItemID == id {
			res = append(res, offer)
		}
	}
	slices.SortFunc(res, func(a, b *api.Offer) int {
		return a.ReceivedAt.Compare(b.ReceivedAt)
	})
	return res, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
