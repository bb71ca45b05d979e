package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/aranya-one/toastd/internal/domain/event"
	"github.com/aranya-one/toastd/internal/infrastructure/eventbus"
)

// MockEventBus implements event.Bus for testing. Handlers run synchronously.
type MockEventBus struct {
	mu         sync.RWMutex
	published  []event.DomainEvent
	handlers   map[string][]eventbus.EventHandler
	publishErr error
	notify     chan struct{}
}

// NewMockEventBus creates a new mock event bus
func NewMockEventBus() *MockEventBus {
	return &MockEventBus{
		published: []event.DomainEvent{},
		handlers:  make(map[string][]eventbus.EventHandler),
		notify:    make(chan struct{}, 1),
	}
}

// Publish records the event and runs the subscribed handlers.
func (b *MockEventBus) Publish(ctx context.Context, evt event.DomainEvent) error {
	b.mu.Lock()
	if b.publishErr != nil {
		err := b.publishErr
		b.mu.Unlock()
		return err
	}
	b.published = append(b.published, evt)
	handlers := b.handlers[evt.EventType()]
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}

	for _, handler := range handlers {
		if err := handler(ctx, evt); err != nil {
			return err
		}
	}

	return nil
}

// Subscribe subscribes a handler to events of a specific type
func (b *MockEventBus) Subscribe(eventType string, handler eventbus.EventHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)
	return nil
}

// SetPublishError makes every following Publish fail with err.
func (b *MockEventBus) SetPublishError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.publishErr = err
}

// PublishedCount returns the number of published events
func (b *MockEventBus) PublishedCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.published)
}

// PublishedEvents returns all published events
func (b *MockEventBus) PublishedEvents() []event.DomainEvent {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]event.DomainEvent{}, b.published...)
}

// GetPublishedEventsByType returns events of a specific type
func (b *MockEventBus) GetPublishedEventsByType(eventType string) []event.DomainEvent {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var events []event.DomainEvent
	for _, evt := range b.published {
		if evt.EventType() == eventType {
			events = append(events, evt)
		}
	}
	return events
}

// WaitForCount blocks until at least n events were published or the timeout expires.
func (b *MockEventBus) WaitForCount(n int, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		if b.PublishedCount() >= n {
			return true
		}
		select {
		case <-b.notify:
		case <-deadline:
			return b.PublishedCount() >= n
		}
	}
}

// Reset clears published events and handlers.
func (b *MockEventBus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.published = []event.DomainEvent{}
	b.handlers = make(map[string][]eventbus.EventHandler)
	b.publishErr = nil
}

// HandlerCount returns the number of registered handlers for an event type
func (b *MockEventBus) HandlerCount(eventType string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[eventType])
}

var (
	_ event.Bus           = (*MockEventBus)(nil)
	_ eventbus.Subscriber = (*MockEventBus)(nil)
)
