package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/flipflow/flipflow/internal/bus"
	"github.com/flipflow/flipflow/internal/capability"
	"github.com/flipflow/flipflow/internal/engine/event"
	"github.com/flipflow/flipflow/internal/platform"
	"github.com/flipflow/flipflow/internal/store"
	"github.com/flipflow/flipflow/pkg/api"
	"github.com/flipflow/flipflow/pkg/log"
)

type (
	// Engine drives workflow runs through the agent pipeline
	Engine struct {
		store     store.Store
		bus       bus.Bus
		queue     *event.Queue
		agents    map[api.Step]Agent
		platforms platform.Registry
		policy    *api.RetryPolicy
		clock     Clock
		resolver  ImageResolver
	}

	// Clock provides the current time for transitions and retries
	Clock func() time.Time

	// ImageResolver maps a stored image key to a public URL
	ImageResolver func(key string) string

	// Option configures an Engine at construction
	Option func(*Engine)
)

var (
	ErrRunExists    = errors.New("item already exists")
	ErrRunNotFound  = errors.New("item not found")
	ErrGateMismatch = errors.New("decision does not match a pending gate")
)

const eventBatchSize = 16

// WithClock overrides the engine's time source
func WithClock(clock Clock) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

// WithRetryPolicy overrides the default retry bounds
func WithRetryPolicy(policy *api.RetryPolicy) Option {
	return func(e *Engine) {
		e.policy = policy
	}
}

// WithImageResolver sets how stored image keys become listing URLs
func WithImageResolver(resolver ImageResolver) Option {
	return func(e *Engine) {
		e.resolver = resolver
	}
}

// New creates an engine over the given store, bus, capability client,
// and platform registry
func New(
	st store.Store, b bus.Bus, caps capability.Client,
	platforms platform.Registry, opts ...Option,
) *Engine {
	e := &Engine{
		store:     st,
		bus:       b,
		platforms: platforms,
		policy:    api.DefaultRetryPolicy(),
		clock:     time.Now,
		resolver: func(key string) string {
			return key
		},
	}
	for _, opt := range opts {
		opt(e)
	}

	e.queue = event.NewQueue(e.deliverEvents, eventBatchSize)

	e.agents = map[api.Step]Agent{}
	for _, agent := range []Agent{
		NewIntakeAgent(caps),
		NewListingAgent(caps, platforms),
		NewPublisherAgent(platforms, e.resolver, e.clock),
		NewDealManagerAgent(caps, platforms, st, e.clock),
	} {
		e.agents[agent.Step()] = agent
	}
	return e
}

// Start begins delivering progress events
func (e *Engine) Start() {
	e.queue.Start()
}

// Stop flushes pending progress events and shuts the engine down
func (e *Engine) Stop() {
	e.queue.Flush()
}

// Now returns the current wall time from the engine's configured clock
func (e *Engine) Now() time.Time {
	return e.clock()
}

func (e *Engine) publish(ev *api.Event) {
	e.queue.Enqueue(ev)
}

func (e *Engine) deliverEvents(batch []*api.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, ev := range batch {
		if err := e.bus.Publish(ctx, ev.ItemID, ev); err != nil {
			slog.Warn("Progress event not delivered",
				log.ItemID(ev.ItemID),
				slog.String("kind", string(ev.Kind)),
				log.Error(err))
		}
	}
	return nil
}
