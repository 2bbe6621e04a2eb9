package api

import "time"

type (
	// OfferStatus represents the sub-state of a buyer offer
	OfferStatus string

	// OfferAction is a human decision applied to a pending offer
	OfferAction string

	// OfferReview is the advisory recommendation attached to an offer
	// when it is surfaced for a decision
	OfferReview struct {
		Recommendation string  `json:"recommendation"`
		CounterPrice   float64 `json:"counter_price,omitempty"`
		Reasoning      string  `json:"reasoning,omitempty"`
	}

	// Offer is a buyer proposal against a listing. Offers are independent
	// sub-records: resolving one never advances the parent run state
	Offer struct {
		ID              OfferID      `json:"id"`
		ItemID          ItemID       `json:"item_id"`
		ListingID       ListingID    `json:"listing_id"`
		Platform        Platform     `json:"platform"`
		PlatformOfferID string       `json:"platform_offer_id,omitempty"`
		Buyer           string       `json:"buyer,omitempty"`
		Amount          float64      `json:"amount"`
		ListPrice       float64      `json:"list_price"`
		Status          OfferStatus  `json:"status"`
		CounterAmount   float64      `json:"counter_amount,omitempty"`
		Review          *OfferReview `json:"review,omitempty"`
		ReceivedAt      time.Time    `json:"received_at"`
		CounteredAt     time.Time    `json:"countered_at,omitempty"`
		ResolvedAt      time.Time    `json:"resolved_at,omitempty"`
	}

	// Message is a buyer message observed by the monitoring loop, with
	// the automatic reply that was sent
	Message struct {
		Platform          Platform  `json:"platform"`
		PlatformMessageID string    `json:"platform_message_id"`
		ListingID         ListingID `json:"listing_id"`
		Buyer             string    `json:"buyer,omitempty"`
		Content           string    `json:"content"`
		AutoReply         string    `json:"auto_reply,omitempty"`
		ReceivedAt        time.Time `json:"received_at"`
	}
)

const (
	OfferPending   OfferStatus = "pending"
	OfferAccepted  OfferStatus = "accepted"
	OfferDeclined  OfferStatus = "declined"
	OfferCountered OfferStatus = "countered"
	OfferExpired   OfferStatus = "expired"
)

const (
	OfferActionAccept  OfferAction = "accept"
	OfferActionDecline OfferAction = "decline"
	OfferActionCounter OfferAction = "counter"
)

// Resolved reports whether the offer has left the pending cycle. A
// countered offer is unresolved: it awaits the buyer's response
func (s OfferStatus) Resolved() bool {
	return s == OfferAccepted || s == OfferDeclined || s == OfferExpired
}

// SetStatus returns a new Offer with the updated status
func (o *Offer) SetStatus(s OfferStatus) *Offer {
	res := *o
	res.Status = s
	return &res
}

// SetResolved returns a new Offer with the status and resolution time set
func (o *Offer) SetResolved(s OfferStatus, at time.Time) *Offer {
	res := *o
	res.Status = s
	res.ResolvedAt = at
	return &res
}

// SetCountered returns a new Offer countered at the given amount. The
// offer stays unresolved pending the buyer's response; the counter time
// starts the expiry clock
func (o *Offer) SetCountered(amount float64, at time.Time) *Offer {
	res := *o
	res.Status = OfferCountered
	res.CounterAmount = amount
	res.CounteredAt = at
	return &res
}
