// Package bus fans progress events out to live observers. Publishing is
// fire-and-forget: durability comes from the checkpoint store, the bus
// only delivers best-effort to currently-connected subscribers and must
// never block the publishing engine. Subscribers that reconnect are
// expected to re-fetch authoritative run state rather than rely on the
// bus for gap-filling.
package bus

import (
	"context"

	"github.com/flipflow/flipflow/pkg/api"
)

type (
	// Bus delivers per-item events to subscribers. The in-process and
	// broker-backed implementations present identical semantics
	Bus interface {
		// Publish delivers an event to current subscribers of the item
		Publish(ctx context.Context, id api.ItemID, ev *api.Event) error

		// Subscribe returns a live stream of the item's events starting
		// from the moment of subscription
		Subscribe(ctx context.Context, id api.ItemID) (Subscription, error)

		// Close shuts the bus down and closes all subscriptions
		Close() error
	}

	// Subscription is one subscriber's live event stream
	Subscription interface {
		// Events yields events in per-item publish order. The channel
		// closes when the subscription or bus is closed
		Events() <-chan *api.Event

		// Close detaches the subscriber
		Close()
	}
)

// subscriberBuffer bounds each subscriber's backlog. When a slow
// consumer falls behind, the oldest buffered event is dropped first
const subscriberBuffer = 64
