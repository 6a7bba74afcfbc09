// Package event carries the job lifecycle notifications ("job started",
// "block applied", "unit completed") between the job core and its consumers.
// Events are typed payloads dispatched through messaging queues rather than a
// generic emitter, so valid transitions are enumerable at compile time.
package event

import (
	"time"

	"scrapeflow/internal/clock"
)

// Context identifies the job and plan position an event relates to.
type Context struct {
	JobUID    string `json:"jobUID"`
	RunID     string `json:"runID"`
	EventType string `json:"eventType"`
	Block     int    `json:"block,omitempty"`
	Unit      int    `json:"unit,omitempty"`
}

// Event wraps a typed payload with its lifecycle context.
type Event[T any] struct {
	Context   *Context               `json:"context"`
	CreatedAt time.Time              `json:"createdAt"`
	Metadata  map[string]interface{} `json:"metadata"`
	Data      T                      `json:"data"`
}

// NewEvent creates a new event for the supplied context and payload.
func NewEvent[T any](context *Context, data T) *Event[T] {
	return &Event[T]{
		Context:   context,
		CreatedAt: clock.Now(),
		Metadata:  make(map[string]interface{}),
		Data:      data,
	}
}
