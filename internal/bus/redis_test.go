package bus_test

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/flipflow/flipflow/internal/assert"
	"github.com/flipflow/flipflow/internal/bus"
	"github.com/flipflow/flipflow/pkg/api"
)

func newRedisBus(as *assert.Wrapper, t *testing.T) *bus.RedisBus {
	srv := miniredis.RunT(t)
	b, err := bus.NewRedisBus(as.Context(), bus.RedisConfig{
		Addr:   srv.Addr(),
		Prefix: "test",
	})
	as.NoError(err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestRedisPublishSubscribe(t *testing.T) {
	as := assert.New(t)
	b := newRedisBus(as, t)

	id := api.NewItemID()
	sub, err := b.Subscribe(as.Context(), id)
	as.NoError(err)
	defer sub.Close()

	as.NoError(b.Publish(as.Context(), id, stepEvent(id, 1)))

	select {
	case ev := <-sub.Events():
		as.Equal(id, ev.ItemID)
		as.EventSeq(ev, api.EventStep, 1)
	case <-time.After(2 * time.Second):
		as.Fail("no event delivered")
	}
}

func TestRedisPerItemChannels(t *testing.T) {
	as := assert.New(t)
	b := newRedisBus(as, t)

	id := api.NewItemID()
	other := api.NewItemID()
	sub, err := b.Subscribe(as.Context(), id)
	as.NoError(err)
	defer sub.Close()

	as.NoError(b.Publish(as.Context(), other, stepEvent(other, 1)))
	as.NoError(b.Publish(as.Context(), id, stepEvent(id, 2)))

	select {
	case ev := <-sub.Events():
		as.Equal(id, ev.ItemID)
		as.Equal(int64(2), ev.Seq)
	case <-time.After(2 * time.Second):
		as.Fail("no event delivered")
	}
}

func TestRedisOrdering(t *testing.T) {
	as := assert.New(t)
	b := newRedisBus(as, t)

	id := api.NewItemID()
	sub, err := b.Subscribe(as.Context(), id)
	as.NoError(err)
	defer sub.Close()

	for seq := int64(1); seq <= 5; seq++ {
		as.NoError(b.Publish(as.Context(), id, stepEvent(id, seq)))
	}

	for seq := int64(1); seq <= 5; seq++ {
		select {
		case ev := <-sub.Events():
			as.Equal(seq, ev.Seq)
		case <-time.After(2 * time.Second):
			as.Fail("stream stalled")
		}
	}
}

func TestRedisUnreachable(t *testing.T) {
	as := assert.New(t)
	_, err := bus.NewRedisBus(as.Context(), bus.RedisConfig{
		Addr: "127.0.0.1:1",
	})
	as.Error(err)
}
