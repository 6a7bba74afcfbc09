package event

import (
	"context"
	"sync/atomic"

	"scrapeflow/internal/clock"
	"scrapeflow/service/messaging"
)

// Publisher publishes typed events to its queue. Events are additionally
// mirrored onto the service-wide untyped queue, but only while an untyped
// listener is installed; an unconsumed mirror queue would otherwise fill up
// and stall every publisher on the service.
type Publisher[T any] struct {
	queue     messaging.Queue[Event[T]]
	anyQueue  messaging.Queue[Event[any]]
	mirroring *atomic.Bool
}

// NewPublisher creates a publisher bound to the supplied queue.
func NewPublisher[T any](queue messaging.Queue[Event[T]]) *Publisher[T] {
	return &Publisher[T]{queue: queue}
}

// Publish stamps and enqueues the event.
func (p *Publisher[T]) Publish(ctx context.Context, event *Event[T]) error {
	event.CreatedAt = clock.Now()
	if p.anyQueue != nil && p.mirroring != nil && p.mirroring.Load() {
		_ = p.anyQueue.Publish(ctx, &Event[any]{
			Context:   event.Context,
			CreatedAt: event.CreatedAt,
			Metadata:  event.Metadata,
			Data:      event.Data,
		})
	}
	return p.queue.Publish(ctx, event)
}

// Consume retrieves and acknowledges a single event.
func (p *Publisher[T]) Consume(ctx context.Context) (*Event[T], error) {
	msg, err := p.queue.Consume(ctx)
	if err != nil || msg == nil {
		return nil, err
	}
	if err = msg.Ack(); err != nil {
		return nil, err
	}
	return msg.T(), nil
}
