package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/flipflow/flipflow/internal/platform"
	"github.com/flipflow/flipflow/pkg/api"
	"github.com/flipflow/flipflow/pkg/log"
)

type (
	// PublisherAgent posts the approved listing to every selected
	// platform. Each platform gets a listing row, published on success
	// and draft on failure, so partial outcomes stay visible. Re-entry
	// after a crash or retry skips platforms that already published
	PublisherAgent struct {
		platforms platform.Registry
		resolver  ImageResolver
		clock     Clock
	}
)

var (
	ErrNothingPublished = errors.New("no platform accepted the listing")

	_ Agent = (*PublisherAgent)(nil)
)

// NewPublisherAgent creates the publisher agent over the platform
// registry
func NewPublisherAgent(
	platforms platform.Registry, resolver ImageResolver, clock Clock,
) *PublisherAgent {
	return &PublisherAgent{
		platforms: platforms,
		resolver:  resolver,
		clock:     clock,
	}
}

func (a *PublisherAgent) Step() api.Step {
	return api.StepPublisher
}

func (a *PublisherAgent) Execute(
	ctx context.Context, st *api.RunState,
) (*Outcome, error) {
	fields := st.Fields

	var published int
	listings := make([]*api.Listing, 0, len(fields.Platforms))
	for _, p := range fields.Platforms {
		if existing := fields.ListingFor(p); existing != nil &&
			existing.Status == api.ListingPublished {
			listings = append(listings, existing)
			published++
			continue
		}

		listing := a.post(ctx, st, p)
		listings = append(listings, listing)
		if listing.Status == api.ListingPublished {
			published++
		} else {
			fields = fields.AddError(fmt.Sprintf(
				"publish %s: %s", p, listing.Error,
			))
		}
	}

	// with every platform refusing there is nothing to monitor; keep
	// the draft rows out of the snapshot and let the retry budget
	// decide the run's fate
	if published == 0 {
		return nil, ErrNothingPublished
	}

	next := st.SetStatus(api.ItemListed).
		SetStep(api.StepDealManager).
		SetFields(fields.SetListings(listings))
	return Advance(next), nil
}

func (a *PublisherAgent) post(
	ctx context.Context, st *api.RunState, p api.Platform,
) *api.Listing {
	fields := st.Fields
	listing := &api.Listing{
		ID:       api.NewListingID(),
		ItemID:   st.ItemID,
		Platform: p,
		Title:    fields.Copy.Title(p),
		Price:    fields.FinalPrice,
		Status:   api.ListingDraft,
	}
	if existing := fields.ListingFor(p); existing != nil {
		listing = existing
	}

	adapter, err := a.platforms.Get(p)
	if err != nil {
		return listing.SetStatus(api.ListingDraft).SetError(err.Error())
	}

	res, err := adapter.PostListing(ctx, a.draft(fields, p))
	if err != nil {
		slog.Warn("Listing not published",
			log.ItemID(st.ItemID),
			log.Platform(p),
			log.Error(err))
		return listing.SetStatus(api.ListingDraft).SetError(err.Error())
	}

	slog.Info("Listing published",
		log.ItemID(st.ItemID),
		log.Platform(p),
		slog.String("platform_listing_id", res.ListingID))
	return listing.SetPublished(res.ListingID, res.URL, a.clock())
}

func (a *PublisherAgent) draft(
	fields *api.Fields, p api.Platform,
) *platform.Draft {
	description := fields.Description
	if description == "" {
		description = fields.Copy.Description(p)
	}

	urls := make([]string, len(fields.ImageKeys))
	for i, key := range fields.ImageKeys {
		urls[i] = a.resolver(key)
	}

	return &platform.Draft{
		Title:       fields.Copy.Title(p),
		Description: description,
		Price:       fields.FinalPrice,
		Condition:   string(fields.Profile.Condition),
		ImageURLs:   urls,
	}
}
