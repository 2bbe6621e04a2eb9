package store_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/flipflow/flipflow/internal/assert"
	"github.com/flipflow/flipflow/internal/store"
	"github.com/flipflow/flipflow/pkg/api"
)

func newSQLite(as *assert.Wrapper, t *testing.T) store.Store {
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
	as.NoError(err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteRoundTrip(t *testing.T) {
	as := assert.New(t)
	s := newSQLite(as, t)

	st := api.NewRunState(api.NewItemID(), &api.Fields{
		UserDescription: "vintage camera",
		Platforms:       []api.Platform{api.PlatformEbay},
	}, time.Now().UTC())
	as.NoError(s.Create(as.Context(), st))
	as.ErrorIs(s.Create(as.Context(), st), store.ErrRunExists)

	loaded, err := s.Load(as.Context(), st.ItemID)
	as.NoError(err)
	as.RunVersion(loaded, 0)
	as.Equal("vintage camera", loaded.Fields.UserDescription)
}

func TestSQLiteCompareAndSwap(t *testing.T) {
	as := assert.New(t)
	s := newSQLite(as, t)

	st := api.NewRunState(api.NewItemID(), &api.Fields{}, time.Now().UTC())
	as.NoError(s.Create(as.Context(), st))

	next := st.SetStatus(api.ItemAnalyzing).Bump(time.Now().UTC())
	as.NoError(s.CompareAndSwap(as.Context(), st.ItemID, st.Version, next))

	stale := st.SetStatus(api.ItemArchived).Bump(time.Now().UTC())
	as.ErrorIs(
		s.CompareAndSwap(as.Context(), st.ItemID, st.Version, stale),
		store.ErrVersionConflict,
	)

	loaded, err := s.Load(as.Context(), st.ItemID)
	as.NoError(err)
	as.RunVersion(loaded, 1)
	as.RunStatus(loaded, api.ItemAnalyzing)
}

func TestSQLiteOfferSwap(t *testing.T) {
	as := assert.New(t)
	s := newSQLite(as, t)

	st := api.NewRunState(api.NewItemID(), &api.Fields{}, time.Now().UTC())
	as.NoError(s.Create(as.Context(), st))

	offer := &api.Offer{
		ID:         api.NewOfferID(),
		ItemID:     st.ItemID,
		Platform:   api.PlatformVinted,
		Amount:     15,
		Status:     api.OfferPending,
		ReceivedAt: time.Now().UTC(),
	}
	as.NoError(s.PutOffer(as.Context(), offer))

	countered := offer.SetCountered(20, time.Now().UTC())
	as.NoError(s.SwapOffer(
		as.Context(), offer.ID, api.OfferPending, countered,
	))
	as.ErrorIs(
		s.SwapOffer(as.Context(), offer.ID, api.OfferPending, countered),
		store.ErrVersionConflict,
	)

	offers, err := s.ListOffers(as.Context(), st.ItemID)
	as.NoError(err)
	as.Len(offers, 1)
	as.OfferStatus(offers[0], api.OfferCountered)
}
