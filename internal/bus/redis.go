package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/flipflow/flipflow/pkg/api"
	"github.com/flipflow/flipflow/pkg/log"
)

type (
	// RedisBus is the broker-backed Bus for multi-process deployments.
	// Events are published to a per-item channel and fanned out to every
	// connected process; subscriber-facing semantics match MemoryBus
	RedisBus struct {
		client *redis.Client
		prefix string
	}

	// RedisConfig holds connection settings for the broker
	RedisConfig struct {
		Addr     string
		Password string
		DB       int
		Prefix   string
	}

	redisSub struct {
		pubsub *redis.PubSub
		events chan *api.Event
		cancel context.CancelFunc
		once   sync.Once
	}
)

var _ Bus = (*RedisBus)(nil)

// NewRedisBus connects to the broker and verifies it is reachable
func NewRedisBus(ctx context.Context, cfg RedisConfig) (*RedisBus, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisBus{client: client, prefix: cfg.Prefix}, nil
}

func (b *RedisBus) Publish(
	ctx context.Context, id api.ItemID, ev *api.Event,
) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return b.client.Publish(ctx, b.channel(id), payload).Err()
}

func (b *RedisBus) Subscribe(
	ctx context.Context, id api.ItemID,
) (Subscription, error) {
	pubsub := b.client.Subscribe(ctx, b.channel(id))

	// wait for the subscription to be established so no event published
	// after Subscribe returns can be missed
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	sub := &redisSub{
		pubsub: pubsub,
		events: make(chan *api.Event, subscriberBuffer),
		cancel: cancel,
	}
	go sub.run(runCtx, id)
	return sub, nil
}

func (b *RedisBus) Close() error {
	return b.client.Close()
}

func (b *RedisBus) channel(id api.ItemID) string {
	return fmt.Sprintf("%s:item:%s", b.prefix, id)
}

func (s *redisSub) run(ctx context.Context, id api.ItemID) {
	defer s.once.Do(func() { close(s.events) })

	ch := s.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev api.Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				slog.Warn("Dropping undecodable event",
					log.ItemID(id),
					log.Error(err))
				continue
			}
			s.send(&ev)
		}
	}
}

// send matches the in-process drop-oldest policy so slow websocket
// consumers cannot back the broker reader up
func (s *redisSub) send(ev *api.Event) {
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

func (s *redisSub) Events() <-chan *api.Event {
	return s.events
}

func (s *redisSub) Close() {
	s.cancel()
	_ = s.pubsub.Close()
}
