package eventbus

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/aranya-one/toastd/internal/domain/event"
)

// InMemoryEventBus delivers events to handlers in the same process. It is used in
// mock mode and when no Redis is configured. Handlers run on their own goroutines
// with the same retry policy as the Redis bus.
type InMemoryEventBus struct {
	handlers    map[string][]EventHandler
	handlersMu  sync.RWMutex
	running     bool
	closed      bool
	runningMu   sync.RWMutex
	shutdown    chan struct{}
	wg          sync.WaitGroup
	logger      *slog.Logger
	retryConfig RetryConfig
	onFailure   FailureHandler
	// ctx is detached from the publisher so handlers outlive request contexts.
	ctx    context.Context
	cancel context.CancelFunc
}

// InMemoryOption configures an InMemoryEventBus.
type InMemoryOption func(*InMemoryEventBus)

// WithInMemoryLogger sets the logger.
func WithInMemoryLogger(logger *slog.Logger) InMemoryOption {
	return func(b *InMemoryEventBus) {
		b.logger = logger
	}
}

// WithInMemoryRetryConfig sets the retry configuration.
func WithInMemoryRetryConfig(config RetryConfig) InMemoryOption {
	return func(b *InMemoryEventBus) {
		b.retryConfig = config
	}
}

// WithInMemoryFailureHandler sets the handler for events that could not be processed.
func WithInMemoryFailureHandler(h FailureHandler) InMemoryOption {
	return func(b *InMemoryEventBus) {
		b.onFailure = h
	}
}

// NewInMemoryEventBus creates an in-process event bus.
func NewInMemoryEventBus(opts ...InMemoryOption) *InMemoryEventBus {
	ctx, cancel := context.WithCancel(context.Background())
	b := &InMemoryEventBus{
		handlers:    make(map[string][]EventHandler),
		shutdown:    make(chan struct{}),
		logger:      slog.Default(),
		retryConfig: DefaultRetryConfig(),
		ctx:         ctx,
		cancel:      cancel,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Publish hands the event to every handler subscribed to its type.
func (b *InMemoryEventBus) Publish(ctx context.Context, evt event.DomainEvent) error {
	if evt == nil {
		return errors.New("event cannot be nil")
	}

	b.runningMu.RLock()
	defer b.runningMu.RUnlock()
	if b.closed {
		return errors.New("event bus is shut down")
	}

	b.handlersMu.RLock()
	handlers := b.handlers[evt.EventType()]
	b.handlersMu.RUnlock()

	b.logger.DebugContext(ctx, "event published",
		slog.String("event_type", evt.EventType()),
		slog.String("aggregate_id", evt.AggregateID()),
		slog.Int("handler_count", len(handlers)),
	)

	for i, handler := range handlers {
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			executeHandler(b.ctx, b.logger, b.retryConfig, b.onFailure, handler, evt, i)
		}()
	}

	return nil
}

// Subscribe registers an event handler for a specific event type.
func (b *InMemoryEventBus) Subscribe(eventType string, handler EventHandler) error {
	if eventType == "" {
		return errors.New("event type cannot be empty")
	}
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.handlersMu.Lock()
	defer b.handlersMu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	return nil
}

// Start blocks until Shutdown is called or the context is cancelled. Delivery does
// not depend on it; it mirrors the Redis bus lifecycle.
func (b *InMemoryEventBus) Start(ctx context.Context) error {
	b.runningMu.Lock()
	if b.running {
		b.runningMu.Unlock()
		return errors.New("event bus is already running")
	}
	b.running = true
	b.runningMu.Unlock()

	b.logger.InfoContext(ctx, "in-memory event bus started")

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-b.shutdown:
		return nil
	}
}

// Shutdown stops accepting events, cancels pending retries and waits for running handlers.
func (b *InMemoryEventBus) Shutdown() error {
	b.runningMu.Lock()
	if b.closed {
		b.runningMu.Unlock()
		return nil
	}
	b.closed = true
	b.running = false
	close(b.shutdown)
	b.runningMu.Unlock()

	b.cancel()
	b.wg.Wait()

	return nil
}

// IsRunning returns true if Start is blocking.
func (b *InMemoryEventBus) IsRunning() bool {
	b.runningMu.RLock()
	defer b.runningMu.RUnlock()
	return b.running
}

// HandlerCount returns the number of handlers registered for an event type.
func (b *InMemoryEventBus) HandlerCount(eventType string) int {
	b.handlersMu.RLock()
	defer b.handlersMu.RUnlock()
	return len(b.handlers[eventType])
}

var (
	_ event.Bus  = (*InMemoryEventBus)(nil)
	_ Subscriber = (*InMemoryEventBus)(nil)
)
