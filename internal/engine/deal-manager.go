package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/tidwall/gjson"

	"github.com/flipflow/flipflow/internal/capability"
	"github.com/flipflow/flipflow/internal/platform"
	"github.com/flipflow/flipflow/internal/store"
	"github.com/flipflow/flipflow/pkg/api"
	"github.com/flipflow/flipflow/pkg/log"
)

type (
	// DealManagerAgent is the monitoring pass over a listed item. Each
	// pass finalizes an accepted offer into a sale, expires stale
	// counters, surfaces unseen buyer offers with an advisory review,
	// and auto-replies to unseen buyer messages. A pass that observes
	// nothing new yields without a transition
	DealManagerAgent struct {
		caps      capability.Client
		platforms platform.Registry
		store     store.Store
		clock     Clock
	}
)

// counterExpiry ages a countered offer that the buyer never answered
// back out of the pending cycle
const counterExpiry = 48 * time.Hour

var _ Agent = (*DealManagerAgent)(nil)

// NewDealManagerAgent creates the deal manager over a capability
// client, the platform registry, and the offer store
func NewDealManagerAgent(
	caps capability.Client, platforms platform.Registry, st store.Store,
	clock Clock,
) *DealManagerAgent {
	return &DealManagerAgent{
		caps:      caps,
		platforms: platforms,
		store:     st,
		clock:     clock,
	}
}

func (a *DealManagerAgent) Step() api.Step {
	return api.StepDealManager
}

func (a *DealManagerAgent) Execute(
	ctx context.Context, st *api.RunState,
) (*Outcome, error) {
	offers, err := a.store.ListOffers(ctx, st.ItemID)
	if err != nil {
		return nil, err
	}

	if accepted := firstAccepted(offers); accepted != nil {
		return Terminal(a.finalizeSale(ctx, st, accepted)), nil
	}
	a.expireCounters(ctx, offers)

	fields := st.Fields
	for _, listing := range fields.Listings {
		if listing.Status != api.ListingPublished {
			continue
		}
		adapter, err := a.platforms.Get(listing.Platform)
		if err != nil {
			continue
		}
		fields = a.surfaceOffers(ctx, st, fields, adapter, listing)
		fields = a.answerMessages(ctx, st, fields, adapter, listing)
	}

	if fields == st.Fields {
		return Poll(st), nil
	}
	return Poll(st.SetFields(fields)), nil
}

// finalizeSale marks the accepted offer's listing sold, ends the item's
// other live listings, and ends the run
func (a *DealManagerAgent) finalizeSale(
	ctx context.Context, st *api.RunState, accepted *api.Offer,
) *api.RunState {
	listings := make([]*api.Listing, len(st.Fields.Listings))
	for i, l := range st.Fields.Listings {
		switch {
		case l.ID == accepted.ListingID:
			if adapter, err := a.platforms.Get(l.Platform); err == nil {
				if err := adapter.MarkSold(
					ctx, l.PlatformListingID,
				); err != nil {
					slog.Warn("Listing not marked sold",
						log.ItemID(st.ItemID),
						log.Platform(l.Platform),
						log.Error(err))
				}
			}
			listings[i] = l.SetStatus(api.ListingSold)
		case l.Status == api.ListingPublished:
			if adapter, err := a.platforms.Get(l.Platform); err == nil {
				if err := adapter.EndListing(
					ctx, l.PlatformListingID,
				); err != nil {
					slog.Warn("Listing not ended",
						log.ItemID(st.ItemID),
						log.Platform(l.Platform),
						log.Error(err))
				}
			}
			listings[i] = l.SetStatus(api.ListingEnded)
		default:
			listings[i] = l
		}
	}

	slog.Info("Item sold",
		log.ItemID(st.ItemID),
		log.OfferID(accepted.ID),
		slog.Float64("amount", accepted.Amount))

	return st.SetStatus(api.ItemSold).
		SetStep(api.StepNone).
		SetFields(st.Fields.SetListings(listings))
}

// expireCounters resolves countered offers the buyer never answered.
// The expiry clock starts at the seller's counter, not at the buyer's
// original offer. The swap is conditional: a buyer response racing the
// expiry wins
func (a *DealManagerAgent) expireCounters(
	ctx context.Context, offers []*api.Offer,
) {
	now := a.clock()
	for _, o := range offers {
		if o.Status != api.OfferCountered {
			continue
		}
		countered := o.CounteredAt
		if countered.IsZero() {
			countered = o.ReceivedAt
		}
		if now.Sub(countered) < counterExpiry {
			continue
		}
		err := a.store.SwapOffer(ctx, o.ID, api.OfferCountered,
			o.SetResolved(api.OfferExpired, now))
		if err != nil {
			continue
		}
		slog.Info("Counter offer expired",
			log.ItemID(o.ItemID),
			log.OfferID(o.ID))
	}
}

// surfaceOffers records unseen platform offers as pending sub-records
// with an advisory recommendation attached
func (a *DealManagerAgent) surfaceOffers(
	ctx context.Context, st *api.RunState, fields *api.Fields,
	adapter platform.Adapter, listing *api.Listing,
) *api.Fields {
	found, err := adapter.GetOffers(ctx, listing.PlatformListingID)
	if err != nil {
		slog.Warn("Offer poll failed",
			log.ItemID(st.ItemID),
			log.Platform(listing.Platform),
			log.Error(err))
		return fields
	}

	for _, po := range found {
		if fields.HasSeenOffer(po.OfferID) {
			continue
		}

		offer := &api.Offer{
			ID:              api.NewOfferID(),
			ItemID:          st.ItemID,
			ListingID:       listing.ID,
			Platform:        listing.Platform,
			PlatformOfferID: po.OfferID,
			Buyer:           po.Buyer,
			Amount:          po.Amount,
			ListPrice:       listing.Price,
			Status:          api.OfferPending,
			Review:          a.review(ctx, fields, po, listing),
			ReceivedAt:      po.ReceivedAt,
		}
		if offer.ReceivedAt.IsZero() {
			offer.ReceivedAt = a.clock()
		}

		if err := a.store.PutOffer(ctx, offer); err != nil {
			slog.Error("Offer not recorded",
				log.ItemID(st.ItemID),
				log.Platform(listing.Platform),
				log.Error(err))
			continue
		}
		fields = fields.AddSeenOffers([]string{po.OfferID})

		slog.Info("Offer surfaced",
			log.ItemID(st.ItemID),
			log.OfferID(offer.ID),
			slog.Float64("amount", offer.Amount))
	}
	return fields
}

// review asks for an advisory recommendation. Failure surfaces the
// offer without one
func (a *DealManagerAgent) review(
	ctx context.Context, fields *api.Fields, po *platform.Offer,
	listing *api.Listing,
) *api.OfferReview {
	raw, err := a.caps.Invoke(ctx, capability.OfferReview, api.Args{
		"title":      listing.Title,
		"list_price": listing.Price,
		"amount":     po.Amount,
		"condition":  fields.Profile.Condition,
	})
	if err != nil {
		slog.Warn("Offer review unavailable",
			log.ItemID(listing.ItemID),
			log.Error(err))
		return nil
	}

	root := gjson.ParseBytes(raw)
	return &api.OfferReview{
		Recommendation: root.Get("recommendation").String(),
		CounterPrice:   root.Get("counter_price").Float(),
		Reasoning:      root.Get("reasoning").String(),
	}
}

// answerMessages auto-replies to unseen buyer messages and records the
// exchange. A message that cannot be answered stays unseen for the next
// pass
func (a *DealManagerAgent) answerMessages(
	ctx context.Context, st *api.RunState, fields *api.Fields,
	adapter platform.Adapter, listing *api.Listing,
) *api.Fields {
	found, err := adapter.GetMessages(ctx, listing.PlatformListingID)
	if err != nil {
		slog.Warn("Message poll failed",
			log.ItemID(st.ItemID),
			log.Platform(listing.Platform),
			log.Error(err))
		return fields
	}

	for _, pm := range found {
		if fields.HasSeenMessage(pm.MessageID) {
			continue
		}

		raw, err := a.caps.Invoke(ctx, capability.AutoReply, api.Args{
			"content":    pm.Content,
			"title":      listing.Title,
			"list_price": listing.Price,
		})
		if err != nil {
			slog.Warn("Auto-reply unavailable",
				log.ItemID(st.ItemID),
				log.Error(err))
			continue
		}
		reply := gjson.GetBytes(raw, "reply").String()
		if reply == "" {
			continue
		}

		if err := adapter.SendMessage(
			ctx, listing.PlatformListingID, pm.Buyer, reply,
		); err != nil {
			slog.Warn("Reply not sent",
				log.ItemID(st.ItemID),
				log.Platform(listing.Platform),
				log.Error(err))
			continue
		}

		received := pm.ReceivedAt
		if received.IsZero() {
			received = a.clock()
		}
		fields = fields.AddMessages([]*api.Message{{
			Platform:          listing.Platform,
			PlatformMessageID: pm.MessageID,
			ListingID:         listing.ID,
			Buyer:             pm.Buyer,
			Content:           pm.Content,
			AutoReply:         reply,
			ReceivedAt:        received,
		}})
	}
	return fields
}

func firstAccepted(offers []*api.Offer) *api.Offer {
	for _, o := range offers {
		if o.Status == api.OfferAccepted {
			return o
		}
	}
	return nil
}
