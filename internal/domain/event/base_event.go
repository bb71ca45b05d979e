package event

import "time"

// BaseEvent implements DomainEvent and is meant to be embedded by concrete events.
// Its fields are unexported so only the embedding event's fields end up in the JSON payload.
type BaseEvent struct {
	eventType     string
	aggregateID   string
	aggregateType string
	occurredAt    time.Time
	version       int
	metadata      Metadata
}

// NewBaseEvent creates a base event stamped with the current time.
func NewBaseEvent(eventType, aggregateID, aggregateType string, version int, metadata Metadata) BaseEvent {
	return BaseEvent{
		eventType:     eventType,
		aggregateID:   aggregateID,
		aggregateType: aggregateType,
		occurredAt:    time.Now(),
		version:       version,
		metadata:      metadata,
	}
}

func (e BaseEvent) EventType() string     { return e.eventType }
func (e BaseEvent) AggregateID() string   { return e.aggregateID }
func (e BaseEvent) AggregateType() string { return e.aggregateType }
func (e BaseEvent) OccurredAt() time.Time { return e.occurredAt }
func (e BaseEvent) Version() int          { return e.version }
func (e BaseEvent) Metadata() Metadata    { return e.metadata }
