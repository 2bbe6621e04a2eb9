package bus

import (
	"context"
	"sync"

	"github.com/flipflow/flipflow/pkg/api"
)

type (
	// MemoryBus is the in-process Bus: a per-item subscriber registry
	// with bounded, drop-oldest delivery
	MemoryBus struct {
		mu     sync.RWMutex
		subs   map[api.ItemID]map[*memorySub]struct{}
		closed bool
	}

	memorySub struct {
		bus    *MemoryBus
		itemID api.ItemID
		events chan *api.Event
		once   sync.Once
	}
)

var _ Bus = (*MemoryBus)(nil)

// NewMemoryBus creates an empty in-process event bus
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		subs: map[api.ItemID]map[*memorySub]struct{}{},
	}
}

func (b *MemoryBus) Publish(
	_ context.Context, id api.ItemID, ev *api.Event,
) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil
	}
	for sub := range b.subs[id] {
		sub.send(ev)
	}
	return nil
}

func (b *MemoryBus) Subscribe(
	_ context.Context, id api.ItemID,
) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &memorySub{
		bus:    b,
		itemID: id,
		events: make(chan *api.Event, subscriberBuffer),
	}
	if b.closed {
		close(sub.events)
		return sub, nil
	}
	if b.subs[id] == nil {
		b.subs[id] = map[*memorySub]struct{}{}
	}
	b.subs[id][sub] = struct{}{}
	return sub, nil
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for _, subs := range b.subs {
		for sub := range subs {
			sub.once.Do(func() { close(sub.events) })
		}
	}
	b.subs = map[api.ItemID]map[*memorySub]struct{}{}
	return nil
}

// send never blocks the publisher: a full subscriber buffer sheds its
// oldest event to make room
func (s *memorySub) send(ev *api.Event) {
	for {
		select {
		case s.events <- ev:
			return
		default:
		}
		select {
		case <-s.events:
		default:
		}
	}
}

func (s *memorySub) Events() <-chan *api.Event {
	return s.events
}

func (s *memorySub) Close() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	if subs, ok := s.bus.subs[s.itemID]; ok {
		delete(subs, s)
		if len(subs) == 0 {
			delete(s.bus.subs, s.itemID)
		}
	}
	s.once.Do(func() { close(s.events) })
}
