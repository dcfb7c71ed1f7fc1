// Package hub contains the ingest pipeline: socket listeners framing decoder
// JSON, the bounded queues decoupling receipt from consumption, and the
// writer/broadcast consumers draining them.
package hub

import (
	"context"
	"sync"

	"acars_hub/internal/message"
	"acars_hub/internal/metrics"
)

// QueueCapacity is the fixed depth of each ingest queue. Overflow evicts the
// oldest item; the live view is best-effort and the writer keeps up under any
// realistic message rate.
const QueueCapacity = 15

// Item is one queued message: the decoder source it arrived from plus the
// flattened raw JSON object.
type Item struct {
	Source message.SourceType
	Raw    map[string]any
}

// Queue is a bounded FIFO with drop-oldest-on-overflow semantics. Push never
// blocks; Pop blocks until an item arrives or the context is canceled.
type Queue struct {
	name string
	mu   sync.Mutex
	ch   chan Item
}

// NewQueue builds a queue of the given capacity, named for metrics.
func NewQueue(name string, capacity int) *Queue {
	return &Queue{name: name, ch: make(chan Item, capacity)}
}

// Push enqueues an item, evicting the oldest queued item if full. The lock
// makes the evict-then-admit pair atomic across concurrent producers.
func (q *Queue) Push(item Item) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		select {
		case q.ch <- item:
			return
		default:
		}
		select {
		case <-q.ch:
			metrics.QueueDrops.WithLabelValues(q.name).Inc()
		default:
		}
	}
}

// Pop dequeues the oldest item, blocking until one is available.
func (q *Queue) Pop(ctx context.Context) (Item, error) {
	select {
	case item := <-q.ch:
		return item, nil
	case <-ctx.Done():
		return Item{}, ctx.Err()
	}
}

// Len reports the current queue depth.
func (q *Queue) Len() int {
	return len(q.ch)
}
