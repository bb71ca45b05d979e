package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aranya-one/toastd/internal/domain/errs"
	"github.com/aranya-one/toastd/internal/domain/event"
	"github.com/aranya-one/toastd/internal/domain/notification"
	"github.com/redis/go-redis/v9"
)

// Default dead letter queue configuration.
const (
	deadLetterQueueKey    = "events:dead_letter"
	defaultMaxDeadLetters = 1000
	maxPayloadLogLength   = 500
)

// LifecycleEventTypes lists the events a queue emits about its own transitions.
func LifecycleEventTypes() []string {
	return []string{
		notification.EventTypeAdded,
		notification.EventTypeRemoved,
		notification.EventTypeCleared,
		notification.EventTypeSettingsUpdated,
		notification.EventTypeActionInvoked,
	}
}

// NotificationAdder is the part of the queue the request handler needs.
type NotificationAdder interface {
	Add(ctx context.Context, draft notification.Draft) (notification.ID, error)
}

// RequestHandler turns notification.requested events from remote producers into
// queue entries.
type RequestHandler struct {
	queue  NotificationAdder
	logger *slog.Logger
}

// RequestHandlerOption configures RequestHandler.
type RequestHandlerOption func(*RequestHandler)

// WithRequestLogger sets the logger for RequestHandler.
func WithRequestLogger(logger *slog.Logger) RequestHandlerOption {
	return func(h *RequestHandler) {
		h.logger = logger
	}
}

// NewRequestHandler creates a new RequestHandler.
func NewRequestHandler(queue NotificationAdder, opts ...RequestHandlerOption) *RequestHandler {
	h := &RequestHandler{
		queue:  queue,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Handle adds the requested notification. Malformed or invalid requests are
// permanent failures; a closed queue means shutdown and the event is dropped.
func (h *RequestHandler) Handle(ctx context.Context, evt event.DomainEvent) error {
	if evt.EventType() != notification.EventTypeRequested {
		return nil
	}

	var req notification.Requested
	if err := DecodePayload(evt, &req); err != nil {
		return Permanent(err)
	}

	draft, err := req.Draft()
	if err != nil {
		return Permanent(err)
	}

	id, err := h.queue.Add(ctx, draft)
	switch {
	case errors.Is(err, errs.ErrClosed):
		h.logger.WarnContext(ctx, "queue closed, dropping notification request",
			slog.String("request_id", evt.AggregateID()),
		)
		return nil
	case errors.Is(err, errs.ErrInvalidInput):
		return Permanent(err)
	case err != nil:
		return fmt.Errorf("failed to add requested notification: %w", err)
	}

	h.logger.InfoContext(ctx, "notification requested",
		slog.String("request_id", evt.AggregateID()),
		slog.String("notification_id", id.String()),
		slog.String("source", evt.Metadata().Source),
	)

	return nil
}

// AsEventHandler converts RequestHandler to EventHandler function type.
func (h *RequestHandler) AsEventHandler() EventHandler {
	return h.Handle
}

// HistoryWriter persists the notification audit trail.
type HistoryWriter interface {
	// Upsert writes the entry. A removal already recorded is kept when entry has none.
	Upsert(ctx context.Context, entry notification.HistoryEntry) error
	// MarkRemoved records a removal for every ID, creating placeholders for unknown ones.
	MarkRemoved(ctx context.Context, ids []notification.ID, reason notification.RemovalReason, at time.Time) error
}

// HistoryRecorder writes added, removed and cleared events to the history store.
// Writes are upserts keyed by notification ID, so redelivery and out-of-order
// delivery converge on the same record.
type HistoryRecorder struct {
	store  HistoryWriter
	logger *slog.Logger
}

// NewHistoryRecorder creates a new HistoryRecorder.
func NewHistoryRecorder(store HistoryWriter, logger *slog.Logger) *HistoryRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &HistoryRecorder{store: store, logger: logger}
}

// EventTypes returns the event types the recorder consumes.
func (h *HistoryRecorder) EventTypes() []string {
	return []string{
		notification.EventTypeAdded,
		notification.EventTypeRemoved,
		notification.EventTypeCleared,
	}
}

// Handle records one lifecycle event.
func (h *HistoryRecorder) Handle(ctx context.Context, evt event.DomainEvent) error {
	id := notification.ID(evt.AggregateID())
	source := evt.Metadata().Source

	switch evt.EventType() {
	case notification.EventTypeAdded:
		var payload notification.Added
		if err := DecodePayload(evt, &payload); err != nil {
			return Permanent(err)
		}
		return h.store.Upsert(ctx, notification.EntryFromAdded(id, source, &payload))

	case notification.EventTypeRemoved:
		var payload notification.Removed
		if err := DecodePayload(evt, &payload); err != nil {
			return Permanent(err)
		}
		return h.store.Upsert(ctx, notification.EntryFromRemoved(id, source, &payload))

	case notification.EventTypeCleared:
		var payload notification.Cleared
		if err := DecodePayload(evt, &payload); err != nil {
			return Permanent(err)
		}
		if len(payload.IDs) == 0 {
			return nil
		}
		return h.store.MarkRemoved(ctx, payload.IDs, notification.ReasonCleared, payload.ClearedAt)

	default:
		return nil
	}
}

// AsEventHandler converts HistoryRecorder to EventHandler function type.
func (h *HistoryRecorder) AsEventHandler() EventHandler {
	return h.Handle
}

// LoggingHandler logs domain events for audit trail purposes.
type LoggingHandler struct {
	logger *slog.Logger
}

// NewLoggingHandler creates a new LoggingHandler.
func NewLoggingHandler(logger *slog.Logger) *LoggingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingHandler{
		logger: logger,
	}
}

// Handle logs the domain event.
func (h *LoggingHandler) Handle(ctx context.Context, evt event.DomainEvent) error {
	attrs := []slog.Attr{
		slog.String("event_type", evt.EventType()),
		slog.String("aggregate_id", evt.AggregateID()),
		slog.String("aggregate_type", evt.AggregateType()),
		slog.Time("occurred_at", evt.OccurredAt()),
	}

	metadata := evt.Metadata()
	if metadata.Source != "" {
		attrs = append(attrs, slog.String("source", metadata.Source))
	}
	if metadata.CorrelationID != "" {
		attrs = append(attrs, slog.String("correlation_id", metadata.CorrelationID))
	}

	if pe, ok := evt.(PayloadEvent); ok {
		attrs = append(attrs, slog.String("payload", truncateString(string(pe.Payload()), maxPayloadLogLength)))
	}

	h.logger.LogAttrs(ctx, slog.LevelDebug, "domain event", attrs...)

	return nil
}

// AsEventHandler converts LoggingHandler to EventHandler function type.
func (h *LoggingHandler) AsEventHandler() EventHandler {
	return h.Handle
}

// DeadLetterHandler stores failed events in Redis for later analysis.
type DeadLetterHandler struct {
	client        *redis.Client
	logger        *slog.Logger
	queueKey      string
	maxDeadLetter int64
}

// DeadLetterEntry represents a failed event stored in the dead letter queue.
type DeadLetterEntry struct {
	EventType     string          `json:"event_type"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	Source        string          `json:"source,omitempty"`
	Error         string          `json:"error"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	Timestamp     int64           `json:"timestamp"`
}

// DeadLetterHandlerOption configures DeadLetterHandler.
type DeadLetterHandlerOption func(*DeadLetterHandler)

// WithDeadLetterQueueKey sets a custom key for the dead letter queue.
func WithDeadLetterQueueKey(key string) DeadLetterHandlerOption {
	return func(h *DeadLetterHandler) {
		h.queueKey = key
	}
}

// WithDeadLetterLogger sets the logger for DeadLetterHandler.
func WithDeadLetterLogger(logger *slog.Logger) DeadLetterHandlerOption {
	return func(h *DeadLetterHandler) {
		h.logger = logger
	}
}

// WithMaxDeadLetters sets the maximum number of entries to keep in the queue.
func WithMaxDeadLetters(maxEntries int64) DeadLetterHandlerOption {
	return func(h *DeadLetterHandler) {
		h.maxDeadLetter = maxEntries
	}
}

// NewDeadLetterHandler creates a new DeadLetterHandler.
func NewDeadLetterHandler(client *redis.Client, opts ...DeadLetterHandlerOption) *DeadLetterHandler {
	h := &DeadLetterHandler{
		client:        client,
		logger:        slog.Default(),
		queueKey:      deadLetterQueueKey,
		maxDeadLetter: defaultMaxDeadLetters,
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Handle stores a failed event in the dead letter queue. It matches FailureHandler.
func (h *DeadLetterHandler) Handle(ctx context.Context, evt event.DomainEvent, err error) {
	entry := DeadLetterEntry{
		EventType:     evt.EventType(),
		AggregateID:   evt.AggregateID(),
		AggregateType: evt.AggregateType(),
		Source:        evt.Metadata().Source,
		Error:         err.Error(),
		Timestamp:     evt.OccurredAt().Unix(),
	}

	if pe, ok := evt.(PayloadEvent); ok {
		entry.Payload = pe.Payload()
	}

	data, marshalErr := json.Marshal(entry)
	if marshalErr != nil {
		h.logger.ErrorContext(ctx, "failed to marshal dead letter entry",
			slog.String("event_type", evt.EventType()),
			slog.String("error", marshalErr.Error()),
		)
		return
	}

	// The bus context may already be cancelled during shutdown.
	writeCtx := context.WithoutCancel(ctx)

	if pushErr := h.client.LPush(writeCtx, h.queueKey, string(data)).Err(); pushErr != nil {
		h.logger.ErrorContext(ctx, "failed to push to dead letter queue",
			slog.String("event_type", evt.EventType()),
			slog.String("error", pushErr.Error()),
		)
		return
	}

	if trimErr := h.client.LTrim(writeCtx, h.queueKey, 0, h.maxDeadLetter-1).Err(); trimErr != nil {
		h.logger.WarnContext(ctx, "failed to trim dead letter queue",
			slog.String("error", trimErr.Error()),
		)
	}

	h.logger.ErrorContext(ctx, "event moved to dead letter queue",
		slog.String("event_type", evt.EventType()),
		slog.String("aggregate_id", evt.AggregateID()),
		slog.String("original_error", err.Error()),
	)
}

// GetDeadLetters retrieves the newest entries from the dead letter queue.
func (h *DeadLetterHandler) GetDeadLetters(ctx context.Context, count int64) ([]DeadLetterEntry, error) {
	requestedCount := count
	if requestedCount <= 0 {
		requestedCount = 10
	}

	data, rangeErr := h.client.LRange(ctx, h.queueKey, 0, requestedCount-1).Result()
	if rangeErr != nil {
		return nil, fmt.Errorf("failed to get dead letters: %w", rangeErr)
	}

	entries := make([]DeadLetterEntry, 0, len(data))
	for _, d := range data {
		var entry DeadLetterEntry
		if unmarshalErr := json.Unmarshal([]byte(d), &entry); unmarshalErr != nil {
			h.logger.WarnContext(ctx, "failed to unmarshal dead letter entry",
				slog.String("error", unmarshalErr.Error()),
			)
			continue
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// ClearDeadLetters removes all entries from the dead letter queue.
func (h *DeadLetterHandler) ClearDeadLetters(ctx context.Context) error {
	return h.client.Del(ctx, h.queueKey).Err()
}

// QueueLength returns the number of entries in the dead letter queue.
func (h *DeadLetterHandler) QueueLength(ctx context.Context) (int64, error) {
	return h.client.LLen(ctx, h.queueKey).Result()
}

// HandlerRegistry manages event handler registration.
type HandlerRegistry struct {
	bus    Subscriber
	logger *slog.Logger
}

// NewHandlerRegistry creates a new HandlerRegistry.
func NewHandlerRegistry(bus Subscriber, logger *slog.Logger) *HandlerRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &HandlerRegistry{
		bus:    bus,
		logger: logger,
	}
}

// Register registers an event handler for specific event types.
func (r *HandlerRegistry) Register(eventTypes []string, handler EventHandler) error {
	for _, eventType := range eventTypes {
		if err := r.bus.Subscribe(eventType, handler); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", eventType, err)
		}
		r.logger.Debug("registered handler for event",
			slog.String("event_type", eventType),
		)
	}
	return nil
}

// Handlers groups the optional handlers wired by RegisterAllHandlers.
type Handlers struct {
	Request *RequestHandler
	History *HistoryRecorder
	Logging *LoggingHandler
}

// RegisterAllHandlers subscribes every non-nil handler to its event types.
func RegisterAllHandlers(bus Subscriber, handlers Handlers, logger *slog.Logger) error {
	registry := NewHandlerRegistry(bus, logger)

	if handlers.Request != nil {
		if err := registry.Register(
			[]string{notification.EventTypeRequested},
			handlers.Request.AsEventHandler(),
		); err != nil {
			return fmt.Errorf("failed to register request handler: %w", err)
		}
	}

	if handlers.History != nil {
		if err := registry.Register(handlers.History.EventTypes(), handlers.History.AsEventHandler()); err != nil {
			return fmt.Errorf("failed to register history recorder: %w", err)
		}
	}

	if handlers.Logging != nil {
		eventTypes := append([]string{notification.EventTypeRequested}, LifecycleEventTypes()...)
		if err := registry.Register(eventTypes, handlers.Logging.AsEventHandler()); err != nil {
			return fmt.Errorf("failed to register logging handler: %w", err)
		}
	}

	return nil
}

// truncateString truncates a string to maxLen bytes, adding "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
