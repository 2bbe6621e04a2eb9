package api

import "time"

type (
	// ListingStatus represents the sub-state of a per-platform listing
	ListingStatus string

	// Listing is one published (or attempted) entry per item and platform
	Listing struct {
		ID                ListingID     `json:"id"`
		ItemID            ItemID        `json:"item_id"`
		Platform          Platform      `json:"platform"`
		PlatformListingID string        `json:"platform_listing_id,omitempty"`
		PlatformURL       string        `json:"platform_url,omitempty"`
		Title             string        `json:"title"`
		Price             float64       `json:"price"`
		Status            ListingStatus `json:"status"`
		Error             string        `json:"error,omitempty"`
		PublishedAt       time.Time     `json:"published_at,omitempty"`
	}
)

const (
	ListingDraft     ListingStatus = "draft"
	ListingPublished ListingStatus = "published"
	ListingEnded     ListingStatus = "ended"
	ListingSold      ListingStatus = "sold"
)

// SetStatus returns a new Listing with the updated status
func (l *Listing) SetStatus(s ListingStatus) *Listing {
	res := *l
	res.Status = s
	return &res
}

// SetError returns a new Listing with the publish failure recorded
func (l *Listing) SetError(msg string) *Listing {
	res := *l
	res.Error = msg
	return &res
}

// SetPublished returns a new Listing marked published with its platform
// reference and publish time set
func (l *Listing) SetPublished(
	platformID, url string, at time.Time,
) *Listing {
	res := *l
	res.PlatformListingID = platformID
	res.PlatformURL = url
	res.Status = ListingPublished
	res.PublishedAt = at
	res.Error = ""
	return &res
}
