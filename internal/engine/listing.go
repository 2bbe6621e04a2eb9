package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/flipflow/flipflow/internal/capability"
	"github.com/flipflow/flipflow/internal/platform"
	"github.com/flipflow/flipflow/pkg/api"
	"github.com/flipflow/flipflow/pkg/log"
)

type (
	// ListingAgent turns an appraised item into platform-ready marketing
	// copy with a suggested price, then parks the run at the approval
	// gate for the human decision
	ListingAgent struct {
		caps      capability.Client
		platforms platform.Registry
	}
)

const comparablesLimit = 10

var _ Agent = (*ListingAgent)(nil)

// NewListingAgent creates the listing agent over a capability client
// and the platform registry
func NewListingAgent(
	caps capability.Client, platforms platform.Registry,
) *ListingAgent {
	return &ListingAgent{caps: caps, platforms: platforms}
}

func (a *ListingAgent) Step() api.Step {
	return api.StepListing
}

func (a *ListingAgent) Execute(
	ctx context.Context, st *api.RunState,
) (*Outcome, error) {
	comps := a.comparables(ctx, st)

	listingCopy, err := a.generateCopy(ctx, st, comps)
	if err != nil {
		return nil, err
	}

	// the comparables median anchors the price; without comparables the
	// generated copy's own estimate stands
	suggested, ok := suggestPrice(comps, st.Fields.Profile.Condition)
	if !ok {
		suggested = listingCopy.SuggestedPrice
	}

	fields := st.Fields.
		SetComparables(comps).
		SetCopy(listingCopy, suggested)

	next := st.SetStatus(api.ItemReady).
		SetFields(fields).
		SetGate(api.GateApproval, api.Args{
			"suggested_price": suggested,
			"comparables":     len(comps),
		})
	return Suspend(next), nil
}

// comparables searches the item's platforms for recently sold matches.
// The search is advisory: a platform that cannot answer is skipped
func (a *ListingAgent) comparables(
	ctx context.Context, st *api.RunState,
) []*api.Comparable {
	query := comparablesQuery(st.Fields.Profile)

	for _, p := range st.Fields.Platforms {
		adapter, err := a.platforms.Get(p)
		if err != nil {
			continue
		}
		found, err := adapter.SoldComparables(ctx, query, comparablesLimit)
		if err != nil {
			slog.Warn("Comparables search failed",
				log.ItemID(st.ItemID),
				log.Platform(p),
				log.Error(err))
			continue
		}
		if len(found) == 0 {
			continue
		}

		comps := make([]*api.Comparable, len(found))
		for i, c := range found {
			comps[i] = &api.Comparable{
				Platform:  p,
				Title:     c.Title,
				SoldPrice: c.SoldPrice,
				URL:       c.URL,
				Condition: c.Condition,
			}
		}
		return comps
	}
	return nil
}

func (a *ListingAgent) generateCopy(
	ctx context.Context, st *api.RunState, comps []*api.Comparable,
) (*api.ListingCopy, error) {
	raw, err := a.caps.Invoke(ctx, capability.ListingCopy, api.Args{
		"profile":     st.Fields.Profile,
		"description": st.Fields.UserDescription,
		"platforms":   st.Fields.Platforms,
		"comparables": comps,
	})
	if err != nil {
		return nil, err
	}
	return parseCopy(raw, st.Fields.Platforms), nil
}

func parseCopy(
	raw json.RawMessage, platforms []api.Platform,
) *api.ListingCopy {
	root := gjson.ParseBytes(raw)

	res := &api.ListingCopy{
		Titles:         map[api.Platform]string{},
		Descriptions:   map[api.Platform]string{},
		SuggestedPrice: root.Get("suggested_price").Float(),
		PriceRationale: root.Get("price_rationale").String(),
	}
	for _, p := range platforms {
		if t := root.Get("titles." + string(p)); t.Exists() {
			res.Titles[p] = t.String()
		}
		if d := root.Get("descriptions." + string(p)); d.Exists() {
			res.Descriptions[p] = d.String()
		}
	}
	return res
}

func comparablesQuery(profile *api.ItemProfile) string {
	parts := []string{profile.Brand, profile.Model, profile.Title}
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}
