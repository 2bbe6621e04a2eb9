// Package event decouples transition publishing from the engine's
// compare-and-swap loop. Applied transitions are queued and delivered to
// the bus in order by a single consumer, so a slow or flapping broker
// never holds a run's next transition back.
package event

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kode4food/caravan"
	"github.com/kode4food/caravan/topic"

	"github.com/flipflow/flipflow/pkg/api"
)

type (
	// Queue delivers queued progress events sequentially in bounded
	// batches
	Queue struct {
		prod        topic.Producer[*api.Event]
		cons        topic.Consumer[*api.Event]
		handler     Handler
		stop        chan struct{}
		batchSize   int
		wg          sync.WaitGroup
		startOnce   sync.Once
		stopOnce    sync.Once
		cleanupOnce sync.Once
	}

	// Handler delivers a batch of progress events in a single execution
	Handler func([]*api.Event) error
)

var ErrHandlerPanicked = errors.New("event handler panicked")

const (
	maxRetries = 3
	retryDelay = 100 * time.Millisecond
)

// NewQueue creates a new progress event queue with the provided batch
// size
func NewQueue(handler Handler, batchSize int) *Queue {
	queue := caravan.NewTopic[*api.Event]()
	return &Queue{
		prod:      queue.NewProducer(),
		cons:      queue.NewConsumer(),
		handler:   handler,
		stop:      make(chan struct{}),
		batchSize: batchSize,
	}
}

// Start begins delivering queued events
func (q *Queue) Start() {
	q.startOnce.Do(func() {
		q.wg.Go(func() {
			for {
				select {
				case <-q.stop:
					return
				case ev, ok := <-q.cons.Receive():
					if !ok {
						return
					}
					q.handleBatch(q.collectBatch(ev))
				}
			}
		})
	})
}

// Enqueue adds a progress event to the queue
func (q *Queue) Enqueue(ev *api.Event) {
	q.prod.Send() <- ev
}

// Flush waits for queued events to deliver and stops the queue
func (q *Queue) Flush() {
	q.stopOnce.Do(func() {
		close(q.stop)
	})
	q.wg.Wait()
	q.cleanupOnce.Do(q.flush)
}

// Cancel immediately stops the queue without delivering remaining events
func (q *Queue) Cancel() {
	q.stopOnce.Do(func() {
		close(q.stop)
	})
	q.wg.Wait()
	q.cleanupOnce.Do(q.close)
}

func (q *Queue) collectBatch(first *api.Event) []*api.Event {
	batch := []*api.Event{first}
	for len(batch) < q.batchSize {
		select {
		case ev, ok := <-q.cons.Receive():
			if !ok {
				return batch
			}
			batch = append(batch, ev)
		default:
			return batch
		}
	}
	return batch
}

func (q *Queue) flush() {
	for {
		select {
		case ev, ok := <-q.cons.Receive():
			if !ok {
				q.close()
				return
			}
			q.handleBatch(q.collectBatch(ev))
		default:
			q.close()
			return
		}
	}
}

func (q *Queue) close() {
	q.prod.Close()
	q.cons.Close()
}

func (q *Queue) handleBatch(batch []*api.Event) {
	for attempt := range maxRetries {
		err := q.tryHandleBatch(batch)
		if err == nil {
			return
		}
		slog.Error("Progress event batch failed",
			slog.Int("batch_size", len(batch)),
			slog.Int("attempt", attempt+1),
			slog.Int("max_attempts", maxRetries),
			slog.Any("error", err))
		if attempt < maxRetries-1 {
			time.Sleep(retryDelay)
		}
	}
	slog.Error("Progress event batch permanently failed",
		slog.Int("batch_size", len(batch)))
}

func (q *Queue) tryHandleBatch(batch []*api.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanicked, r)
		}
	}()
	return q.handler(batch)
}
