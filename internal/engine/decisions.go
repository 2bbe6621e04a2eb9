package engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/flipflow/flipflow/internal/store"
	"github.com/flipflow/flipflow/pkg/api"
	"github.com/flipflow/flipflow/pkg/log"
)

// CreateItem registers a new item and persists its version-zero
// snapshot. The caller kicks the supervisor to start the run
func (e *Engine) CreateItem(
	ctx context.Context, fields *api.Fields,
) (*api.RunState, error) {
	st := api.NewRunState(api.NewItemID(), fields, e.Now())
	if err := e.store.Create(ctx, st); err != nil {
		if errors.Is(err, store.ErrRunExists) {
			return nil, ErrRunExists
		}
		return nil, err
	}

	slog.Info("Item created",
		log.ItemID(st.ItemID),
		slog.Int("platforms", len(fields.Platforms)))
	return st, nil
}

// SubmitApproval resolves the approval gate with the human's final
// price and optional description edit, in one atomic decision. A run
// not parked at the approval gate rejects the decision with
// ErrGateMismatch and no state change
func (e *Engine) SubmitApproval(
	ctx context.Context, id api.ItemID, finalPrice float64,
	description string,
) (*api.RunState, error) {
	for {
		st, err := e.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if st.Gate != api.GateApproval {
			return nil, ErrGateMismatch
		}

		next := st.ClearGate().
			SetStatus(api.ItemPublishing).
			SetStep(api.StepPublisher).
			SetFields(st.Fields.SetApproval(finalPrice, description))

		applied, err := e.apply(ctx, st, next, api.EventResumed)
		if errors.Is(err, store.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}

		slog.Info("Approval accepted",
			log.ItemID(id),
			slog.Float64("final_price", finalPrice))
		return applied, nil
	}
}

// SubmitOfferDecision applies a human decision to a pending offer. The
// offer sub-record resolves on its own; the parent run's version is
// never touched. A decision against a non-pending offer is a replay and
// fails with ErrGateMismatch, leaving the marketplace untouched
func (e *Engine) SubmitOfferDecision(
	ctx context.Context, id api.OfferID, action api.OfferAction,
	counterAmount float64,
) (*api.Offer, error) {
	offer, err := e.store.GetOffer(ctx, id)
	if err != nil {
		return nil, err
	}
	if offer.Status != api.OfferPending {
		return nil, ErrGateMismatch
	}

	var next *api.Offer
	switch action {
	case api.OfferActionAccept:
		next = offer.SetResolved(api.OfferAccepted, e.Now())
	case api.OfferActionDecline:
		next = offer.SetResolved(api.OfferDeclined, e.Now())
	case api.OfferActionCounter:
		next = offer.SetCountered(counterAmount, e.Now())
	default:
		return nil, ErrGateMismatch
	}

	err = e.store.SwapOffer(ctx, id, api.OfferPending, next)
	if errors.Is(err, store.ErrVersionConflict) {
		return nil, ErrGateMismatch
	}
	if err != nil {
		return nil, err
	}

	e.forwardOfferDecision(ctx, next, action)

	slog.Info("Offer decided",
		log.ItemID(offer.ItemID),
		log.OfferID(id),
		slog.String("action", string(action)))
	return next, nil
}

// forwardOfferDecision relays a resolved decision to the marketplace.
// Delivery is best effort: the decision is already durable, and the
// monitoring loop reconciles listing state on its next pass
func (e *Engine) forwardOfferDecision(
	ctx context.Context, offer *api.Offer, action api.OfferAction,
) {
	adapter, err := e.platforms.Get(offer.Platform)
	if err != nil {
		slog.Warn("Offer decided against unknown platform",
			log.OfferID(offer.ID),
			log.Platform(offer.Platform))
		return
	}

	switch action {
	case api.OfferActionAccept:
		err = adapter.AcceptOffer(ctx, offer.PlatformOfferID)
	case api.OfferActionDecline:
		err = adapter.DeclineOffer(ctx, offer.PlatformOfferID)
	case api.OfferActionCounter:
		err = adapter.CounterOffer(
			ctx, offer.PlatformOfferID, offer.CounterAmount,
		)
	}
	if err != nil {
		slog.Warn("Offer decision not forwarded",
			log.OfferID(offer.ID),
			log.Platform(offer.Platform),
			log.Error(err))
	}
}

// Cancel archives a run from any non-terminal state, ending its live
// listings best effort. Cancelling an ended run fails with
// ErrGateMismatch
func (e *Engine) Cancel(
	ctx context.Context, id api.ItemID,
) (*api.RunState, error) {
	for {
		st, err := e.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if st.Terminal() {
			return nil, ErrGateMismatch
		}

		fields := e.endListings(ctx, st.Fields)
		next := st.ClearGate().
			SetStatus(api.ItemArchived).
			SetStep(api.StepNone).
			SetFields(fields)

		applied, err := e.apply(ctx, st, next, api.EventStep)
		if errors.Is(err, store.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}

		slog.Info("Item archived",
			log.ItemID(id))
		return applied, nil
	}
}

// ClearError clears a run's error flag so a manual kick can re-enter
// the failed step
func (e *Engine) ClearError(
	ctx context.Context, id api.ItemID,
) (*api.RunState, error) {
	for {
		st, err := e.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if st.Error == "" {
			return st, nil
		}

		applied, err := e.apply(ctx, st, st.ClearError(), api.EventResumed)
		if errors.Is(err, store.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return applied, nil
	}
}

func (e *Engine) endListings(
	ctx context.Context, fields *api.Fields,
) *api.Fields {
	if len(fields.Listings) == 0 {
		return fields
	}

	listings := make([]*api.Listing, len(fields.Listings))
	for i, l := range fields.Listings {
		if l.Status != api.ListingPublished {
			listings[i] = l
			continue
		}
		if adapter, err := e.platforms.Get(l.Platform); err == nil {
			if err := adapter.EndListing(
				ctx, l.PlatformListingID,
			); err != nil {
				slog.Warn("Listing not ended",
					log.ItemID(l.ItemID),
					log.Platform(l.Platform),
					log.Error(err))
			}
		}
		listings[i] = l.SetStatus(api.ListingEnded)
	}
	return fields.SetListings(listings)
}
