package eventbus_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aranya-one/toastd/internal/domain/event"
	"github.com/aranya-one/toastd/internal/domain/notification"
	"github.com/aranya-one/toastd/internal/infrastructure/eventbus"
	"github.com/aranya-one/toastd/internal/queue"
	"github.com/aranya-one/toastd/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastRetry = eventbus.RetryConfig{
	MaxRetries:     2,
	InitialBackoff: 10 * time.Millisecond,
	MaxBackoff:     50 * time.Millisecond,
	BackoffFactor:  2.0,
}

// startRedisBus runs the bus in the background and shuts it down with the test.
func startRedisBus(t *testing.T, bus *eventbus.RedisEventBus) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		_ = bus.Start(ctx)
	}()

	// Give the bus time to subscribe
	time.Sleep(100 * time.Millisecond)

	t.Cleanup(func() {
		_ = bus.Shutdown()
		cancel()
	})
}

func TestNewRedisEventBus(t *testing.T) {
	client := testutil.SetupTestRedis(t)

	bus := eventbus.NewRedisEventBus(client,
		eventbus.WithLogger(testutil.NewTestLogger()),
		eventbus.WithRetryConfig(fastRetry),
		eventbus.WithChannelPrefix("test-events:"),
	)

	assert.NotNil(t, bus)
	assert.False(t, bus.IsRunning())
	assert.Equal(t, 0, bus.HandlerCount(notification.EventTypeRequested))
}

func TestRedisEventBus_Subscribe(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	bus := eventbus.NewRedisEventBus(client)
	noop := func(_ context.Context, _ event.DomainEvent) error { return nil }

	require.NoError(t, bus.Subscribe(notification.EventTypeAdded, noop))
	require.NoError(t, bus.Subscribe(notification.EventTypeAdded, noop))
	assert.Equal(t, 2, bus.HandlerCount(notification.EventTypeAdded))

	err := bus.Subscribe("", noop)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "event type cannot be empty")

	err = bus.Subscribe(notification.EventTypeAdded, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handler cannot be nil")

	require.Error(t, bus.Publish(context.Background(), nil))
}

func TestRedisEventBus_RequestReachesQueue(t *testing.T) {
	client, prefix := testutil.SetupTestRedisWithPrefix(t)
	logger := testutil.NewTestLogger()

	manager := queue.NewManager(queue.WithLogger(logger))
	defer manager.Close()

	sub := manager.Subscribe(context.Background())
	<-sub.C() // initial snapshot

	consumer := eventbus.NewRedisEventBus(client, eventbus.WithChannelPrefix(prefix), eventbus.WithLogger(logger))
	require.NoError(t, eventbus.RegisterAllHandlers(consumer, eventbus.Handlers{
		Request: eventbus.NewRequestHandler(manager, eventbus.WithRequestLogger(logger)),
	}, logger))
	startRedisBus(t, consumer)

	producer := eventbus.NewRedisEventBus(client, eventbus.WithChannelPrefix(prefix))
	draft := notification.Draft{Kind: notification.KindSuccess, Message: "Build passed"}.Persistent()
	require.NoError(t, producer.Publish(context.Background(),
		notification.NewRequested(draft, event.NewMetadata("toastctl", "corr-7"))))

	select {
	case snap := <-sub.C():
		assert.Equal(t, queue.ChangeAdded, snap.Change)
		require.Len(t, snap.Notifications, 1)
		assert.Equal(t, "Build passed", snap.Notifications[0].Message())
		assert.Equal(t, notification.KindSuccess, snap.Notifications[0].Kind())
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for requested notification")
	}
}

func TestRedisEventBus_EventSerialization(t *testing.T) {
	client, prefix := testutil.SetupTestRedisWithPrefix(t)
	bus := eventbus.NewRedisEventBus(client, eventbus.WithChannelPrefix(prefix))

	received := make(chan event.DomainEvent, 1)
	require.NoError(t, bus.Subscribe(notification.EventTypeAdded, func(_ context.Context, e event.DomainEvent) error {
		received <- e
		return nil
	}))
	startRedisBus(t, bus)

	n, err := notification.New(notification.Draft{Kind: notification.KindWarning, Message: "Low battery"},
		notification.DefaultSettings(), time.Now())
	require.NoError(t, err)
	original := notification.NewAdded(n, event.NewMetadata("toastd", "corr-1"))
	require.NoError(t, bus.Publish(context.Background(), original))

	select {
	case got := <-received:
		assert.Equal(t, original.EventType(), got.EventType())
		assert.Equal(t, original.AggregateID(), got.AggregateID())
		assert.Equal(t, original.AggregateType(), got.AggregateType())
		assert.Equal(t, original.Version(), got.Version())
		assert.Equal(t, "toastd", got.Metadata().Source)
		assert.Equal(t, "corr-1", got.Metadata().CorrelationID)

		pe, ok := got.(eventbus.PayloadEvent)
		require.True(t, ok)
		var parsed map[string]any
		require.NoError(t, json.Unmarshal(pe.Payload(), &parsed))
		assert.Equal(t, "Low battery", parsed["message"])

		var added notification.Added
		require.NoError(t, eventbus.DecodePayload(got, &added))
		entry := notification.EntryFromAdded(notification.ID(got.AggregateID()), got.Metadata().Source, &added)
		assert.Equal(t, n.ID(), entry.ID)
		assert.Equal(t, notification.KindWarning, entry.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestRedisEventBus_RetryLogic(t *testing.T) {
	client, prefix := testutil.SetupTestRedisWithPrefix(t)

	t.Run("retries transient errors", func(t *testing.T) {
		bus := eventbus.NewRedisEventBus(client,
			eventbus.WithChannelPrefix(prefix+"transient:"),
			eventbus.WithRetryConfig(fastRetry),
		)

		var attempts atomic.Int32
		done := make(chan struct{})
		require.NoError(t, bus.Subscribe(notification.EventTypeAdded, func(_ context.Context, _ event.DomainEvent) error {
			if attempts.Add(1) < 3 {
				return errors.New("temporary error")
			}
			close(done)
			return nil
		}))
		startRedisBus(t, bus)

		n, err := notification.New(notification.Draft{Message: "x"}, notification.DefaultSettings(), time.Now())
		require.NoError(t, err)
		require.NoError(t, bus.Publish(context.Background(), notification.NewAdded(n, event.NewMetadata("toastd", ""))))

		select {
		case <-done:
			assert.Equal(t, int32(3), attempts.Load())
		case <-time.After(5 * time.Second):
			t.Fatal("timeout waiting for retries")
		}
	})

	t.Run("permanent errors go straight to the dead letter queue", func(t *testing.T) {
		dlq := eventbus.NewDeadLetterHandler(client,
			eventbus.WithDeadLetterQueueKey(prefix+"dlq"),
			eventbus.WithDeadLetterLogger(testutil.NewTestLogger()),
		)

		failed := make(chan struct{})
		bus := eventbus.NewRedisEventBus(client,
			eventbus.WithChannelPrefix(prefix+"permanent:"),
			eventbus.WithRetryConfig(fastRetry),
			eventbus.WithFailureHandler(func(ctx context.Context, evt event.DomainEvent, err error) {
				dlq.Handle(ctx, evt, err)
				close(failed)
			}),
		)

		manager := queue.NewManager()
		defer manager.Close()
		require.NoError(t, eventbus.RegisterAllHandlers(bus, eventbus.Handlers{
			Request: eventbus.NewRequestHandler(manager),
		}, nil))
		startRedisBus(t, bus)

		// An empty message can never succeed.
		require.NoError(t, bus.Publish(context.Background(),
			notification.NewRequested(notification.Draft{}, event.NewMetadata("toastctl", ""))))

		select {
		case <-failed:
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for failure handler")
		}

		entries, err := dlq.GetDeadLetters(context.Background(), 10)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, notification.EventTypeRequested, entries[0].EventType)
		assert.Equal(t, "toastctl", entries[0].Source)
		assert.Contains(t, entries[0].Error, eventbus.ErrPermanent.Error())
		assert.NotEmpty(t, entries[0].Payload)
		assert.Equal(t, 0, manager.Len())
	})
}

func TestDeadLetterHandler(t *testing.T) {
	client, prefix := testutil.SetupTestRedisWithPrefix(t)
	ctx := context.Background()

	dlq := eventbus.NewDeadLetterHandler(client,
		eventbus.WithDeadLetterQueueKey(prefix+"dlq"),
		eventbus.WithMaxDeadLetters(3),
		eventbus.WithDeadLetterLogger(testutil.NewTestLogger()),
	)

	for i := range 5 {
		evt := newTestPayloadEvent(notification.EventTypeRequested, "req-"+string(rune('a'+i)), `{"message":"x"}`)
		dlq.Handle(ctx, evt, errors.New("failed"))
	}

	length, err := dlq.QueueLength(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), length)

	entries, err := dlq.GetDeadLetters(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	// Newest first
	assert.Equal(t, "req-e", entries[0].AggregateID)
	assert.Equal(t, "failed", entries[0].Error)
	assert.JSONEq(t, `{"message":"x"}`, string(entries[0].Payload))

	require.NoError(t, dlq.ClearDeadLetters(ctx))
	length, err = dlq.QueueLength(ctx)
	require.NoError(t, err)
	assert.Zero(t, length)
}

func TestRedisEventBus_GracefulShutdown(t *testing.T) {
	client, prefix := testutil.SetupTestRedisWithPrefix(t)

	t.Run("waits for handlers to complete", func(t *testing.T) {
		bus := eventbus.NewRedisEventBus(client, eventbus.WithChannelPrefix(prefix))
		ctx := context.Background()

		handlerStarted := make(chan struct{})
		var handlerCompleted atomic.Bool
		require.NoError(t, bus.Subscribe(notification.EventTypeCleared, func(_ context.Context, _ event.DomainEvent) error {
			close(handlerStarted)
			time.Sleep(200 * time.Millisecond)
			handlerCompleted.Store(true)
			return nil
		}))

		go func() {
			_ = bus.Start(ctx)
		}()
		time.Sleep(100 * time.Millisecond)
		assert.True(t, bus.IsRunning())

		require.NoError(t, bus.Publish(ctx, notification.NewCleared(nil, time.Now(), event.NewMetadata("toastd", ""))))

		select {
		case <-handlerStarted:
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for handler to start")
		}

		require.NoError(t, bus.Shutdown())
		assert.True(t, handlerCompleted.Load(), "handler should have completed before shutdown returned")
		assert.False(t, bus.IsRunning())

		// Second shutdown is a no-op
		require.NoError(t, bus.Shutdown())
	})

	t.Run("cannot start twice", func(t *testing.T) {
		bus := eventbus.NewRedisEventBus(client, eventbus.WithChannelPrefix(prefix+"twice:"))
		require.NoError(t, bus.Subscribe(notification.EventTypeAdded, func(_ context.Context, _ event.DomainEvent) error {
			return nil
		}))
		startRedisBus(t, bus)

		err := bus.Start(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already running")
	})
}

func TestRedisEventBus_ChannelPrefix(t *testing.T) {
	client, prefix := testutil.SetupTestRedisWithPrefix(t)
	ctx := context.Background()

	bus1 := eventbus.NewRedisEventBus(client, eventbus.WithChannelPrefix(prefix+"bus1:"))
	bus2 := eventbus.NewRedisEventBus(client, eventbus.WithChannelPrefix(prefix+"bus2:"))

	var received1, received2 atomic.Int32
	require.NoError(t, bus1.Subscribe(notification.EventTypeSettingsUpdated, func(_ context.Context, _ event.DomainEvent) error {
		received1.Add(1)
		return nil
	}))
	require.NoError(t, bus2.Subscribe(notification.EventTypeSettingsUpdated, func(_ context.Context, _ event.DomainEvent) error {
		received2.Add(1)
		return nil
	}))
	startRedisBus(t, bus1)
	startRedisBus(t, bus2)

	evt := notification.NewSettingsUpdated(notification.DefaultSettings(), event.NewMetadata("toastd", ""))
	require.NoError(t, bus1.Publish(ctx, evt))

	assert.Eventually(t, func() bool { return received1.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(0), received2.Load())
}

func TestDefaultRetryConfig(t *testing.T) {
	config := eventbus.DefaultRetryConfig()

	assert.Equal(t, 3, config.MaxRetries)
	assert.Equal(t, 100*time.Millisecond, config.InitialBackoff)
	assert.Equal(t, 5*time.Second, config.MaxBackoff)
	assert.InDelta(t, 2.0, config.BackoffFactor, 0.001)
}
