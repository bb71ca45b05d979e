// Package event defines the domain event contract carried over the event bus.
package event

import (
	"context"
	"time"
)

// DomainEvent represents something that happened to an aggregate.
type DomainEvent interface {
	// EventType returns the dotted event name, e.g. "notification.added".
	EventType() string

	// AggregateID returns the ID of the aggregate the event is about.
	AggregateID() string

	// AggregateType returns the aggregate kind, e.g. "Notification".
	AggregateType() string

	// OccurredAt returns the time when the event occurred.
	OccurredAt() time.Time

	// Version returns the schema version of the event payload.
	Version() int

	// Metadata returns tracing metadata attached by the producer.
	Metadata() Metadata
}

// Bus publishes events.
type Bus interface {
	Publish(ctx context.Context, event DomainEvent) error
}
