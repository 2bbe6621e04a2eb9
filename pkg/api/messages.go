package api

import "time"

type (
	// ItemDigest summarizes a run for list responses
	ItemDigest struct {
		ItemID    ItemID     `json:"item_id"`
		Status    ItemStatus `json:"status"`
		Title     string     `json:"title,omitempty"`
		Price     float64    `json:"price,omitempty"`
		Gate      Gate       `json:"gate,omitempty"`
		Error     string     `json:"error,omitempty"`
		CreatedAt time.Time  `json:"created_at"`
		UpdatedAt time.Time  `json:"updated_at"`
	}

	// ItemsListResponse contains summaries of all runs
	ItemsListResponse struct {
		Items []*ItemDigest `json:"items"`
		Count int           `json:"count"`
	}

	// ApproveRequest carries the approval decision for a run suspended
	// at the approval gate
	ApproveRequest struct {
		FinalPrice  float64 `json:"final_price" binding:"required,gt=0"`
		Description string  `json:"description,omitempty"`
	}

	// OfferDecisionRequest carries a human decision on a pending offer
	OfferDecisionRequest struct {
		Action        OfferAction `json:"action" binding:"required"`
		CounterAmount float64     `json:"counter_amount,omitempty"`
	}

	// OffersListResponse contains the offers recorded against an item
	OffersListResponse struct {
		Offers []*Offer `json:"offers"`
		Count  int      `json:"count"`
	}

	// ListingsListResponse contains the listing records for an item
	ListingsListResponse struct {
		Listings []*Listing `json:"listings"`
		Count    int        `json:"count"`
	}

	// ComparablesListResponse contains the sold comparables that anchored
	// an item's price suggestion
	ComparablesListResponse struct {
		Comparables []*Comparable `json:"comparables"`
		Count       int           `json:"count"`
	}

	// MessagesListResponse contains the buyer messages seen for an item
	MessagesListResponse struct {
		Messages []*Message `json:"messages"`
		Count    int        `json:"count"`
	}

	// HealthResponse provides service health information
	HealthResponse struct {
		Service string `json:"service"`
		Version string `json:"version"`
		Status  string `json:"status"`
	}

	// ErrorResponse contains error details for failed requests
	ErrorResponse struct {
		Error  string `json:"error"`
		Status int    `json:"status,omitempty"`
	}
)

// Digest produces a list summary from a run snapshot
func (st *RunState) Digest() *ItemDigest {
	d := &ItemDigest{
		ItemID:    st.ItemID,
		Status:    st.Status,
		Gate:      st.Gate,
		Error:     st.Error,
		CreatedAt: st.CreatedAt,
		UpdatedAt: st.UpdatedAt,
	}
	if f := st.Fields; f != nil {
		if f.Profile != nil {
			d.Title = f.Profile.Title
		}
		d.Price = f.FinalPrice
		if d.Price == 0 {
			d.Price = f.SuggestedPrice
		}
	}
	return d
}
