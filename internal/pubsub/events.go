// Package pubsub fans events out to any number of subscribers.
//
// The logger publishes every entry here so sinks such as the stderr mirror
// can attach and detach while a session is running.
package pubsub

import (
	"context"
	"time"
)

// EventType tags what happened to the payload.
type EventType string

// EntryEvent carries a newly written log entry.
const EntryEvent EventType = "entry"

// Event is a published payload with its type and publish time.
type Event[T any] struct {
	Type      EventType
	Payload   T
	Timestamp time.Time
}

// Subscriber provides a subscription channel for events.
type Subscriber[T any] interface {
	Subscribe(ctx context.Context) <-chan Event[T]
}

// Publisher publishes events with a typed payload.
type Publisher[T any] interface {
	Publish(eventType EventType, payload T)
}
