package event

import (
	"context"
	"errors"
	"log"
)

// Listener consumes events from a publisher in a background goroutine and
// hands them to the supplied handler.
type Listener[T any] struct {
	publisher *Publisher[T]
	handler   func(*Event[T])
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewListener creates a listener for the supplied publisher and handler.
func NewListener[T any](publisher *Publisher[T], handler func(*Event[T])) *Listener[T] {
	ctx, cancel := context.WithCancel(context.Background())
	return &Listener[T]{
		publisher: publisher,
		handler:   handler,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Stop terminates the consumption loop.
func (l *Listener[T]) Stop() {
	l.cancel()
}

// Start launches the consumption loop.
func (l *Listener[T]) Start() {
	go func() {
		for {
			event, err := l.publisher.Consume(l.ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				log.Printf("error consuming event: %v", err)
				continue
			}
			if event == nil {
				continue
			}
			l.handler(event)
		}
	}()
}
