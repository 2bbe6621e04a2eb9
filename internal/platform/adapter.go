// Package platform defines the marketplace adapter contract. Adapters
// keep the agents platform-agnostic; the mechanics of talking to any
// particular marketplace live behind this interface and are expected to
// tolerate re-invocation, since the engine may repeat a side-effecting
// step after a crash.
package platform

import (
	"context"
	"errors"
	"time"

	"github.com/flipflow/flipflow/pkg/api"
)

type (
	// Draft is the platform-ready listing content handed to PostListing
	Draft struct {
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Price       float64  `json:"price"`
		Condition   string   `json:"condition"`
		ImageURLs   []string `json:"image_urls,omitempty"`
	}

	// Published is the platform's reference for a posted listing
	Published struct {
		ListingID string `json:"listing_id"`
		URL       string `json:"url"`
	}

	// Offer is a buyer offer as reported by a platform inbox
	Offer struct {
		OfferID    string    `json:"offer_id"`
		ListingID  string    `json:"listing_id"`
		Buyer      string    `json:"buyer"`
		Amount     float64   `json:"amount"`
		ReceivedAt time.Time `json:"received_at"`
	}

	// Message is a buyer message as reported by a platform inbox
	Message struct {
		MessageID  string    `json:"message_id"`
		ListingID  string    `json:"listing_id"`
		Buyer      string    `json:"buyer"`
		Content    string    `json:"content"`
		ReceivedAt time.Time `json:"received_at"`
	}

	// Comparable is a sold listing returned by a comparables search
	Comparable struct {
		Title     string  `json:"title"`
		SoldPrice float64 `json:"sold_price"`
		URL       string  `json:"url,omitempty"`
		Condition string  `json:"condition,omitempty"`
	}

	// Adapter is the per-marketplace integration contract
	Adapter interface {
		Platform() api.Platform

		PostListing(ctx context.Context, d *Draft) (*Published, error)
		EndListing(ctx context.Context, listingID string) error
		MarkSold(ctx context.Context, listingID string) error

		GetOffers(ctx context.Context, listingID string) ([]*Offer, error)
		AcceptOffer(ctx context.Context, offerID string) error
		DeclineOffer(ctx context.Context, offerID string) error
		CounterOffer(
			ctx context.Context, offerID string, amount float64,
		) error

		GetMessages(
			ctx context.Context, listingID string,
		) ([]*Message, error)
		SendMessage(
			ctx context.Context, listingID, buyer, content string,
		) error

		SoldComparables(
			ctx context.Context, query string, limit int,
		) ([]*Comparable, error)
	}

	// Registry resolves adapters by platform
	Registry map[api.Platform]Adapter
)

var ErrUnknownPlatform = errors.New("unknown platform")

// Get returns the adapter for a platform
func (r Registry) Get(p api.Platform) (Adapter, error) {
	adapter, ok := r[p]
	if !ok {
		return nil, ErrUnknownPlatform
	}
	return adapter, nil
}

// Register adds an adapter keyed by its platform
func (r Registry) Register(adapter Adapter) {
	r[adapter.Platform()] = adapter
}
