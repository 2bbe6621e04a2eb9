package api

import "github.com/google/uuid"

type (
	// ItemID is a unique identifier for an item and its workflow run
	ItemID string

	// ListingID is a unique identifier for a per-platform listing
	ListingID string

	// OfferID is a unique identifier for a buyer offer
	OfferID string

	// Platform identifies a target marketplace
	Platform string
)

const (
	PlatformEbay   Platform = "ebay"
	PlatformVinted Platform = "vinted"
	PlatformDepop  Platform = "depop"
)

// NewItemID generates a unique item identifier
func NewItemID() ItemID {
	return ItemID(uuid.NewString())
}

// NewListingID generates a unique listing identifier
func NewListingID() ListingID {
	return ListingID(uuid.NewString())
}

// NewOfferID generates a unique offer identifier
func NewOfferID() OfferID {
	return OfferID(uuid.NewString())
}
