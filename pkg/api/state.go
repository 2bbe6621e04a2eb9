package api

import (
	"slices"
	"time"
)

type (
	// Fields is the accumulated item state written by agents. It is
	// replaced wholesale on each transition, never mutated in place
	Fields struct {
		UserDescription string        `json:"user_description,omitempty"`
		ImageKeys       []string      `json:"image_keys,omitempty"`
		Platforms       []Platform    `json:"platforms"`
		Profile         *ItemProfile  `json:"profile,omitempty"`
		Comparables     []*Comparable `json:"comparables,omitempty"`
		Copy            *ListingCopy  `json:"copy,omitempty"`
		SuggestedPrice  float64       `json:"suggested_price,omitempty"`
		FinalPrice      float64       `json:"final_price,omitempty"`
		Description     string        `json:"description,omitempty"`
		Listings        []*Listing    `json:"listings,omitempty"`
		Messages        []*Message    `json:"messages,omitempty"`
		SeenOfferIDs    []string      `json:"seen_offer_ids,omitempty"`
		Errors          []string      `json:"errors,omitempty"`
	}

	// RunState is the durable snapshot a workflow run resumes from. The
	// version increases by exactly one with every persisted transition
	// and carries the optimistic-concurrency check for the store's
	// compare-and-swap apply
	RunState struct {
		ItemID    ItemID     `json:"item_id"`
		Version   int64      `json:"version"`
		Status    ItemStatus `json:"status"`
		Step      Step       `json:"step"`
		Gate      Gate       `json:"gate,omitempty"`
		GateData  Args       `json:"gate_data,omitempty"`
		Fields    *Fields    `json:"fields"`
		Error     string     `json:"error,omitempty"`
		CreatedAt time.Time  `json:"created_at"`
		UpdatedAt time.Time  `json:"updated_at"`
	}
)

// NewRunState creates the initial version-zero snapshot for a new item
func NewRunState(id ItemID, fields *Fields, now time.Time) *RunState {
	return &RunState{
		ItemID:    id,
		Version:   0,
		Status:    ItemDraft,
		Step:      StepIntake,
		Fields:    fields,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Suspended reports whether the run is durably parked at a gate
func (st *RunState) Suspended() bool {
	return st.Gate != GateNone
}

// Terminal reports whether the run has ended
func (st *RunState) Terminal() bool {
	return st.Status.Terminal()
}

// SetStatus returns a new RunState with the updated status
func (st *RunState) SetStatus(s ItemStatus) *RunState {
	res := *st
	res.Status = s
	return &res
}

// SetStep returns a new RunState with the step pointer updated
func (st *RunState) SetStep(s Step) *RunState {
	res := *st
	res.Step = s
	return &res
}

// SetGate returns a new RunState suspended at the named gate
func (st *RunState) SetGate(g Gate, data Args) *RunState {
	res := *st
	res.Gate = g
	res.GateData = data
	return &res
}

// ClearGate returns a new RunState with no pending gate
func (st *RunState) ClearGate() *RunState {
	res := *st
	res.Gate = GateNone
	res.GateData = nil
	return &res
}

// SetFields returns a new RunState with the accumulated fields replaced
func (st *RunState) SetFields(f *Fields) *RunState {
	res := *st
	res.Fields = f
	return &res
}

// SetError returns a new RunState with the error flag set
func (st *RunState) SetError(msg string) *RunState {
	res := *st
	res.Error = msg
	return &res
}

// ClearError returns a new RunState with the error flag cleared
func (st *RunState) ClearError() *RunState {
	res := *st
	res.Error = ""
	return &res
}

// Bump returns a new RunState with the version incremented and the
// update timestamp set
func (st *RunState) Bump(now time.Time) *RunState {
	res := *st
	res.Version = st.Version + 1
	res.UpdatedAt = now
	return &res
}

// SetProfile returns new Fields with the item profile replaced
func (f *Fields) SetProfile(p *ItemProfile) *Fields {
	res := *f
	res.Profile = p
	return &res
}

// SetComparables returns new Fields with the comparables replaced
func (f *Fields) SetComparables(comps []*Comparable) *Fields {
	res := *f
	res.Comparables = slices.Clone(comps)
	return &res
}

// SetCopy returns new Fields with the listing copy and suggested price
// replaced
func (f *Fields) SetCopy(c *ListingCopy, suggested float64) *Fields {
	res := *f
	res.Copy = c
	res.SuggestedPrice = suggested
	return &res
}

// SetApproval returns new Fields with the human-approved price and
// description recorded
func (f *Fields) SetApproval(finalPrice float64, description string) *Fields {
	res := *f
	res.FinalPrice = finalPrice
	if description != "" {
		res.Description = description
	}
	return &res
}

// SetListings returns new Fields with the listing records replaced
func (f *Fields) SetListings(listings []*Listing) *Fields {
	res := *f
	res.Listings = slices.Clone(listings)
	return &res
}

// AddMessages returns new Fields with buyer messages appended
func (f *Fields) AddMessages(msgs []*Message) *Fields {
	res := *f
	res.Messages = append(slices.Clone(f.Messages), msgs...)
	return &res
}

// AddSeenOffers returns new Fields with platform offer ids recorded as
// already surfaced
func (f *Fields) AddSeenOffers(ids []string) *Fields {
	res := *f
	res.SeenOfferIDs = append(slices.Clone(f.SeenOfferIDs), ids...)
	return &res
}

// AddError returns new Fields with a non-fatal error appended
func (f *Fields) AddError(msg string) *Fields {
	res := *f
	res.Errors = append(slices.Clone(f.Errors), msg)
	return &res
}

// HasSeenOffer reports whether a platform offer id was already surfaced
func (f *Fields) HasSeenOffer(platformOfferID string) bool {
	return slices.Contains(f.SeenOfferIDs, platformOfferID)
}

// HasSeenMessage reports whether a platform message id was already
// answered
func (f *Fields) HasSeenMessage(platformMessageID string) bool {
	return slices.ContainsFunc(f.Messages, func(m *Message) bool {
		return m.PlatformMessageID == platformMessageID
	})
}

// ListingFor returns the listing record for a platform, if any
func (f *Fields) ListingFor(p Platform) *Listing {
	for _, l := range f.Listings {
		if l.Platform == p {
			return l
		}
	}
	return nil
}
