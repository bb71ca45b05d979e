package event

import "time"

// Metadata carries tracing information alongside an event.
type Metadata struct {
	// Source identifies the producing process (toastd instance, toastctl, ...).
	Source        string    `json:"source,omitempty"         bson:"source,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty" bson:"correlation_id,omitempty"`
	Timestamp     time.Time `json:"timestamp,omitempty"      bson:"timestamp,omitempty"`
}

// NewMetadata creates metadata stamped with the current time.
func NewMetadata(source, correlationID string) Metadata {
	return Metadata{
		Source:        source,
		CorrelationID: correlationID,
		Timestamp:     time.Now(),
	}
}

// WithCorrelationID returns a copy with the correlation ID replaced.
func (m Metadata) WithCorrelationID(id string) Metadata {
	m.CorrelationID = id
	return m
}
