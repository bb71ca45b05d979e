package testutil

import (
	"testing"
	"time"

	"github.com/aranya-one/toastd/internal/domain/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertEventPublished checks that event of specific type was published
func AssertEventPublished(t *testing.T, events []event.DomainEvent, eventType string) event.DomainEvent {
	t.Helper()

	for _, evt := range events {
		if evt.EventType() == eventType {
			return evt
		}
	}

	t.Fatalf("Expected event of type %q, but it was not found. Got %d events", eventType, len(events))
	return nil
}

// AssertEventTypes checks the published event types in order.
func AssertEventTypes(t *testing.T, events []event.DomainEvent, expected ...string) {
	t.Helper()

	got := make([]string, 0, len(events))
	for _, evt := range events {
		got = append(got, evt.EventType())
	}
	require.Equal(t, expected, got)
}

// AssertAggregateID checks aggregate ID in the event
func AssertAggregateID(t *testing.T, evt event.DomainEvent, expectedID string) {
	t.Helper()

	require.Equal(t, expectedID, evt.AggregateID())
}

// AssertTimeApproximatelyEqual checks that two times are within delta of each other
func AssertTimeApproximatelyEqual(t *testing.T, expected, actual time.Time, delta time.Duration, msgAndArgs ...any) {
	t.Helper()

	diff := expected.Sub(actual)
	if diff < 0 {
		diff = -diff
	}
	assert.LessOrEqual(t, diff, delta, msgAndArgs...)
}
