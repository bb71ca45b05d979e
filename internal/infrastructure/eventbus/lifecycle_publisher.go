package eventbus

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aranya-one/toastd/internal/domain/event"
	"github.com/aranya-one/toastd/internal/domain/notification"
	"github.com/aranya-one/toastd/internal/queue"
)

const (
	defaultPublisherBuffer = 256
	defaultPublishTimeout  = 5 * time.Second
	defaultPublisherSource = "toastd"
)

// LifecyclePublisher is a queue observer that publishes every transition on the
// event bus. Events are buffered and published by one goroutine, so bus latency
// never reaches the queue and event order matches mutation order.
type LifecyclePublisher struct {
	queue.NopObserver

	bus            event.Bus
	source         string
	publishTimeout time.Duration
	now            func() time.Time
	logger         *slog.Logger
	onDrop         func(eventType string)

	events chan event.DomainEvent
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	once   sync.Once
}

// PublisherOption configures a LifecyclePublisher.
type PublisherOption func(*LifecyclePublisher)

// WithPublisherSource sets the metadata source of published events.
func WithPublisherSource(source string) PublisherOption {
	return func(p *LifecyclePublisher) {
		if source != "" {
			p.source = source
		}
	}
}

// WithPublisherBuffer sets how many events may wait for the bus before new ones are dropped.
func WithPublisherBuffer(n int) PublisherOption {
	return func(p *LifecyclePublisher) {
		if n > 0 {
			p.events = make(chan event.DomainEvent, n)
		}
	}
}

// WithPublisherLogger sets the logger.
func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *LifecyclePublisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithDropHook is called for every event dropped because the buffer was full.
func WithDropHook(f func(eventType string)) PublisherOption {
	return func(p *LifecyclePublisher) {
		p.onDrop = f
	}
}

// NewLifecyclePublisher creates a publisher. Call Start before registering it on a queue.
func NewLifecyclePublisher(bus event.Bus, opts ...PublisherOption) *LifecyclePublisher {
	p := &LifecyclePublisher{
		bus:            bus,
		source:         defaultPublisherSource,
		publishTimeout: defaultPublishTimeout,
		now:            time.Now,
		logger:         slog.Default(),
		events:         make(chan event.DomainEvent, defaultPublisherBuffer),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Start launches the publishing goroutine. Calling it again is a no-op.
func (p *LifecyclePublisher) Start() {
	p.once.Do(func() {
		p.wg.Add(1)
		go p.run()
	})
}

// Close stops accepting events and waits until the buffered ones are published.
func (p *LifecyclePublisher) Close() error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.events)
	}
	p.mu.Unlock()

	p.wg.Wait()
	return nil
}

func (p *LifecyclePublisher) run() {
	defer p.wg.Done()

	for evt := range p.events {
		ctx, cancel := context.WithTimeout(context.Background(), p.publishTimeout)
		if err := p.bus.Publish(ctx, evt); err != nil {
			p.logger.WarnContext(ctx, "failed to publish lifecycle event",
				slog.String("event_type", evt.EventType()),
				slog.String("aggregate_id", evt.AggregateID()),
				slog.String("error", err.Error()),
			)
		}
		cancel()
	}
}

func (p *LifecyclePublisher) enqueue(evt event.DomainEvent) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return
	}

	select {
	case p.events <- evt:
	default:
		p.logger.Warn("lifecycle event buffer full, dropping event",
			slog.String("event_type", evt.EventType()),
			slog.String("aggregate_id", evt.AggregateID()),
		)
		if p.onDrop != nil {
			p.onDrop(evt.EventType())
		}
	}
}

func (p *LifecyclePublisher) metadata(ctx context.Context) event.Metadata {
	return event.NewMetadata(p.source, event.CorrelationIDFromContext(ctx))
}

func (p *LifecyclePublisher) NotificationAdded(ctx context.Context, n *notification.Notification) {
	p.enqueue(notification.NewAdded(n, p.metadata(ctx)))
}

func (p *LifecyclePublisher) NotificationRemoved(
	ctx context.Context,
	n *notification.Notification,
	reason notification.RemovalReason,
) {
	p.enqueue(notification.NewRemoved(n, reason, p.now(), p.metadata(ctx)))
}

func (p *LifecyclePublisher) NotificationsCleared(ctx context.Context, removed []*notification.Notification) {
	ids := make([]notification.ID, 0, len(removed))
	for _, n := range removed {
		ids = append(ids, n.ID())
	}
	p.enqueue(notification.NewCleared(ids, p.now(), p.metadata(ctx)))
}

func (p *LifecyclePublisher) SettingsUpdated(ctx context.Context, settings notification.Settings) {
	p.enqueue(notification.NewSettingsUpdated(settings, p.metadata(ctx)))
}

func (p *LifecyclePublisher) ActionInvoked(ctx context.Context, n *notification.Notification) {
	p.enqueue(notification.NewActionInvoked(n, p.metadata(ctx)))
}

var _ queue.Observer = (*LifecyclePublisher)(nil)
