package platform

import (
	"context"
	"fmt"
	"sync"

	"github.com/flipflow/flipflow/pkg/api"
)

type (
	// MemoryAdapter is a self-contained adapter for local runs and tests.
	// Listings, offers, and messages live in process memory; inboxes can
	// be seeded and failures injected per action
	MemoryAdapter struct {
		mu       sync.Mutex
		platform api.Platform
		seq      int
		listings map[string]*memoryListing
		offers   map[string]*Offer
		comps    []*Comparable

		// FailActions maps action names ("post_listing", "get_offers",
		// ...) to the error the next call should return
		FailActions map[string]error
	}

	memoryListing struct {
		draft    *Draft
		ended    bool
		sold     bool
		offers   []*Offer
		messages []*Message
		outbox   []*Message
	}
)

var _ Adapter = (*MemoryAdapter)(nil)

// NewMemoryAdapter creates an empty in-memory adapter for a platform
func NewMemoryAdapter(p api.Platform) *MemoryAdapter {
	return &MemoryAdapter{
		platform:    p,
		listings:    map[string]*memoryListing{},
		offers:      map[string]*Offer{},
		FailActions: map[string]error{},
	}
}

func (m *MemoryAdapter) Platform() api.Platform {
	return m.platform
}

func (m *MemoryAdapter) PostListing(
	_ context.Context, d *Draft,
) (*Published, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail("post_listing"); err != nil {
		return nil, err
	}
	m.seq++
	id := fmt.Sprintf("%s-%d", m.platform, m.seq)
	m.listings[id] = &memoryListing{draft: d}
	return &Published{
		ListingID: id,
		URL:       fmt.Sprintf("https://%s.example.com/l/%s", m.platform, id),
	}, nil
}

func (m *MemoryAdapter) EndListing(
	_ context.Context, listingID string,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail("end_listing"); err != nil {
		return err
	}
	if l, ok := m.listings[listingID]; ok {
		l.ended = true
	}
	return nil
}

func (m *MemoryAdapter) MarkSold(
	_ context.Context, listingID string,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail("mark_sold"); err != nil {
		return err
	}
	if l, ok := m.listings[listingID]; ok {
		l.sold = true
	}
	return nil
}

func (m *MemoryAdapter) GetOffers(
	_ context.Context, listingID string,
) ([]*Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail("get_offers"); err != nil {
		return nil, err
	}
	l, ok := m.listings[listingID]
	if !ok {
		return nil, nil
	}
	res := make([]*Offer, len(l.offers))
	copy(res, l.offers)
	return res, nil
}

func (m *MemoryAdapter) AcceptOffer(
	_ context.Context, offerID string,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fail("accept_offer")
}

func (m *MemoryAdapter) DeclineOffer(
	_ context.Context, offerID string,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fail("decline_offer")
}

func (m *MemoryAdapter) CounterOffer(
	_ context.Context, offerID string, _ float64,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fail("counter_offer")
}

func (m *MemoryAdapter) GetMessages(
	_ context.Context, listingID string,
) ([]*Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail("get_messages"); err != nil {
		return nil, err
	}
	l, ok := m.listings[listingID]
	if !ok {
		return nil, nil
	}
	res := make([]*Message, len(l.messages))
	copy(res, l.messages)
	return res, nil
}

func (m *MemoryAdapter) SendMessage(
	_ context.Context, listingID, buyer, content string,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail("send_message"); err != nil {
		return err
	}
	l, ok := m.listings[listingID]
	if !ok {
		return nil
	}
	m.seq++
	l.outbox = append(l.outbox, &Message{
		MessageID: fmt.Sprintf("out-%d", m.seq),
		ListingID: listingID,
		Buyer:     buyer,
		Content:   content,
	})
	return nil
}

func (m *MemoryAdapter) SoldComparables(
	_ context.Context, _ string, limit int,
) ([]*Comparable, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail("sold_comparables"); err != nil {
		return nil, err
	}
	res := m.comps
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	out := make([]*Comparable, len(res))
	copy(out, res)
	return out, nil
}

// SeedOffer places a buyer offer in a listing's inbox
func (m *MemoryAdapter) SeedOffer(listingID string, o *Offer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.listings[listingID]
	if !ok {
		l = &memoryListing{}
		m.listings[listingID] = l
	}
	o.ListingID = listingID
	l.offers = append(l.offers, o)
	m.offers[o.OfferID] = o
}

// SeedMessage places a buyer message in a listing's inbox
func (m *MemoryAdapter) SeedMessage(listingID string, msg *Message) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.listings[listingID]
	if !ok {
		l = &memoryListing{}
		m.listings[listingID] = l
	}
	msg.ListingID = listingID
	l.messages = append(l.messages, msg)
}

// SeedComparables sets the result of future comparables searches
func (m *MemoryAdapter) SeedComparables(comps []*Comparable) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.comps = comps
}

// Sent returns the replies sent for a listing
func (m *MemoryAdapter) Sent(listingID string) []*Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.listings[listingID]
	if !ok {
		return nil
	}
	res := make([]*Message, len(l.outbox))
	copy(res, l.outbox)
	return res
}

// Posted reports whether a listing exists and has not been ended
func (m *MemoryAdapter) Posted(listingID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.listings[listingID]
	return ok && !l.ended
}

// Sold reports whether a listing has been marked sold
func (m *MemoryAdapter) Sold(listingID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.listings[listingID]
	return ok && l.sold
}

func (m *MemoryAdapter) fail(action string) error {
	if err, ok := m.FailActions[action]; ok {
		delete(m.FailActions, action)
		return err
	}
	return nil
}
