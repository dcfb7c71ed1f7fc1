package hub

import (
	"context"

	"go.uber.org/zap"

	"acars_hub/internal/message"
)

// Sink receives enriched messages for live delivery. Deliver is
// fire-and-forget; a slow or broken client must not block the pipeline.
type Sink interface {
	Deliver(event string, payload map[string]any)
	HasClients() bool
}

// Broadcaster is the single consumer of the broadcast queue. Each item is
// deep-copied, enriched with display fields, and handed to the live sink.
type Broadcaster struct {
	queue    *Queue
	enricher *message.Enricher
	sink     Sink
	log      *zap.Logger
}

func NewBroadcaster(queue *Queue, enricher *message.Enricher, sink Sink, log *zap.Logger) *Broadcaster {
	return &Broadcaster{queue: queue, enricher: enricher, sink: sink, log: log}
}

// Serve drains the queue until ctx is canceled.
func (b *Broadcaster) Serve(ctx context.Context) error {
	for {
		item, err := b.queue.Pop(ctx)
		if err != nil {
			return err
		}

		payload := b.enricher.Enrich(message.DeepCopy(item.Raw))
		payload["message_type"] = string(item.Source)
		b.sink.Deliver("acars_msg", payload)
	}
}
