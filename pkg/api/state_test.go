package api_test

import (
	"testing"
	"time"

	"github.com/flipflow/flipflow/internal/assert"
	"github.com/flipflow/flipflow/pkg/api"
)

func newState() *api.RunState {
	return api.NewRunState(api.NewItemID(), &api.Fields{
		UserDescription: "brown boots",
		Platforms:       []api.Platform{api.PlatformEbay},
	}, time.Now())
}

func TestNewRunState(t *testing.T) {
	as := assert.New(t)
	st := newState()

	as.RunVersion(st, 0)
	as.RunStatus(st, api.ItemDraft)
	as.Equal(api.StepIntake, st.Step)
	as.False(st.Suspended())
	as.False(st.Terminal())
}

func TestSettersCopy(t *testing.T) {
	as := assert.New(t)
	st := newState()

	next := st.SetStatus(api.ItemAnalyzing).
		SetStep(api.StepListing).
		SetGate(api.GateApproval, api.Args{"suggested_price": 10.0})

	as.RunStatus(st, api.ItemDraft)
	as.Equal(api.StepIntake, st.Step)
	as.False(st.Suspended())

	as.RunStatus(next, api.ItemAnalyzing)
	as.RunSuspended(next, api.GateApproval)
	as.Same(st.Fields, next.Fields)
}

func TestBump(t *testing.T) {
	as := assert.New(t)
	st := newState()
	now := time.Now().Add(time.Minute)

	bumped := st.Bump(now)
	as.RunVersion(bumped, 1)
	as.Equal(now, bumped.UpdatedAt)
	as.RunVersion(st, 0)
}

func TestArgsMerge(t *testing.T) {
	as := assert.New(t)
	base := api.Args{"status": "ready", "count": 1}

	merged := base.Merge(api.Args{"count": 2, "extra": true})
	as.Equal(api.Args{"status": "ready", "count": 2, "extra": true}, merged)

	// the receiver is untouched, and a nil receiver merges cleanly
	as.Equal(1, base["count"])
	as.Equal(api.Args{"k": "v"}, api.Args(nil).Merge(api.Args{"k": "v"}))
}

func TestTerminalStatuses(t *testing.T) {
	as := assert.New(t)

	as.True(api.ItemSold.Terminal())
	as.True(api.ItemArchived.Terminal())
	as.False(api.ItemListed.Terminal())
	as.False(api.ItemDraft.Terminal())
}

func TestFieldsSeenTracking(t *testing.T) {
	as := assert.New(t)
	fields := &api.Fields{}

	next := fields.AddSeenOffers([]string{"po-1"})
	as.False(fields.HasSeenOffer("po-1"))
	as.True(next.HasSeenOffer("po-1"))

	withMsg := next.AddMessages([]*api.Message{{
		PlatformMessageID: "m-1",
		Content:           "hello",
	}})
	as.False(next.HasSeenMessage("m-1"))
	as.True(withMsg.HasSeenMessage("m-1"))
}

func TestApprovalKeepsDescription(t *testing.T) {
	as := assert.New(t)
	fields := &api.Fields{Description: "original"}

	as.Equal("original", fields.SetApproval(10, "").Description)
	as.Equal("edited", fields.SetApproval(10, "edited").Description)
}

func TestListingCopyTitleFallback(t *testing.T) {
	as := assert.New(t)
	c := &api.ListingCopy{
		Titles: map[api.Platform]string{api.PlatformEbay: "eBay title"},
	}

	as.Equal("eBay title", c.Title(api.PlatformEbay))
	as.Equal("eBay title", c.Title(api.PlatformVinted))

	var empty *api.ListingCopy
	as.Equal("", empty.Title(api.PlatformEbay))
}

func TestOfferResolution(t *testing.T) {
	as := assert.New(t)

	as.True(api.OfferAccepted.Resolved())
	as.True(api.OfferExpired.Resolved())
	as.False(api.OfferPending.Resolved())
	as.False(api.OfferCountered.Resolved())
}

func TestDigest(t *testing.T) {
	as := assert.New(t)
	st := newState()
	st = st.SetFields(st.Fields.
		SetProfile(&api.ItemProfile{Title: "Brown Boots"}).
		SetCopy(&api.ListingCopy{}, 25))

	d := st.Digest()
	as.Equal("Brown Boots", d.Title)
	as.Equal(25.0, d.Price)

	d = st.SetFields(st.Fields.SetApproval(30, "")).Digest()
	as.Equal(30.0, d.Price)
}
