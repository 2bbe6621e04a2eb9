package bus_test

import (
	"testing"
	"time"

	"github.com/flipflow/flipflow/internal/assert"
	"github.com/flipflow/flipflow/internal/bus"
	"github.com/flipflow/flipflow/pkg/api"
)

func stepEvent(id api.ItemID, seq int64) *api.Event {
	return &api.Event{
		ItemID:    id,
		Kind:      api.EventStep,
		Step:      api.StepIntake,
		Seq:       seq,
		Timestamp: time.Now(),
	}
}

func TestPublishToSubscriber(t *testing.T) {
	as := assert.New(t)
	b := bus.NewMemoryBus()
	defer func() { _ = b.Close() }()

	id := api.NewItemID()
	sub, err := b.Subscribe(as.Context(), id)
	as.NoError(err)
	defer sub.Close()

	as.NoError(b.Publish(as.Context(), id, stepEvent(id, 1)))

	select {
	case ev := <-sub.Events():
		as.EventSeq(ev, api.EventStep, 1)
	case <-time.After(time.Second):
		as.Fail("no event delivered")
	}
}

func TestPerItemIsolation(t *testing.T) {
	as := assert.New(t)
	b := bus.NewMemoryBus()
	defer func() { _ = b.Close() }()

	id := api.NewItemID()
	other := api.NewItemID()
	sub, err := b.Subscribe(as.Context(), id)
	as.NoError(err)
	defer sub.Close()

	as.NoError(b.Publish(as.Context(), other, stepEvent(other, 1)))
	as.NoError(b.Publish(as.Context(), id, stepEvent(id, 2)))

	ev := <-sub.Events()
	as.Equal(id, ev.ItemID)
}

func TestFanOutOrdering(t *testing.T) {
	as := assert.New(t)
	b := bus.NewMemoryBus()
	defer func() { _ = b.Close() }()

	id := api.NewItemID()
	first, err := b.Subscribe(as.Context(), id)
	as.NoError(err)
	defer first.Close()
	second, err := b.Subscribe(as.Context(), id)
	as.NoError(err)
	defer second.Close()

	for seq := int64(1); seq <= 5; seq++ {
		as.NoError(b.Publish(as.Context(), id, stepEvent(id, seq)))
	}

	for _, sub := range []bus.Subscription{first, second} {
		for seq := int64(1); seq <= 5; seq++ {
			ev := <-sub.Events()
			as.Equal(seq, ev.Seq)
		}
	}
}

func TestPublishWithoutSubscribers(t *testing.T) {
	as := assert.New(t)
	b := bus.NewMemoryBus()
	defer func() { _ = b.Close() }()

	id := api.NewItemID()
	as.NoError(b.Publish(as.Context(), id, stepEvent(id, 1)))
}

func TestSlowSubscriberDropsOldest(t *testing.T) {
	as := assert.New(t)
	b := bus.NewMemoryBus()
	defer func() { _ = b.Close() }()

	id := api.NewItemID()
	sub, err := b.Subscribe(as.Context(), id)
	as.NoError(err)
	defer sub.Close()

	// overflow the subscriber buffer without draining; the publisher
	// must not block and the newest events must survive
	const total = 200
	for seq := int64(1); seq <= total; seq++ {
		as.NoError(b.Publish(as.Context(), id, stepEvent(id, seq)))
	}

	ev := <-sub.Events()
	as.Greater(ev.Seq, int64(1))

	var last int64 = ev.Seq
	for {
		select {
		case ev := <-sub.Events():
			as.Greater(ev.Seq, last)
			last = ev.Seq
		default:
			as.Equal(int64(total), last)
			return
		}
	}
}

func TestSubscriptionCloseEndsStream(t *testing.T) {
	as := assert.New(t)
	b := bus.NewMemoryBus()
	defer func() { _ = b.Close() }()

	sub, err := b.Subscribe(as.Context(), api.NewItemID())
	as.NoError(err)
	sub.Close()

	_, ok := <-sub.Events()
	as.False(ok)
}

func TestBusCloseEndsStreams(t *testing.T) {
	as := assert.New(t)
	b := bus.NewMemoryBus()

	sub, err := b.Subscribe(as.Context(), api.NewItemID())
	as.NoError(err)
	as.NoError(b.Close())

	_, ok := <-sub.Events()
	as.False(ok)
}
