// Package events carries the in-process publish/subscribe plumbing that lets
// bounded contexts react to each other without direct imports.
package events

import (
	"context"
	"time"
)

// Event is what travels over the bus. Concrete event types embed BaseEvent
// and add their own payload fields.
type Event interface {
	// EventName identifies the event type; subscribers key on it.
	EventName() string
	// OccurredAt reports the moment the event happened.
	OccurredAt() time.Time
}

// BaseEvent carries the timestamp shared by every event type.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

// OccurredAt reports the moment the event happened.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// NewBaseEvent stamps a base event with the current time.
func NewBaseEvent() BaseEvent {
	return BaseEvent{Timestamp: time.Now()}
}

// Handler consumes events of a single type.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a plain function into a Handler.
type HandlerFunc func(ctx context.Context, event Event) error

// Handle calls the wrapped function.
func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus publishes events to subscribed handlers.
type Bus interface {
	// Publish fans the event out without waiting; each handler runs in its
	// own goroutine and cannot fail the publisher.
	Publish(ctx context.Context, event Event)

	// PublishSync runs every handler inline and returns their joined errors.
	PublishSync(ctx context.Context, event Event) error

	// Subscribe attaches a handler to the event name, as returned by
	// Event.EventName.
	Subscribe(eventName string, handler Handler)
}
