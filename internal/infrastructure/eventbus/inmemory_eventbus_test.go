package eventbus_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aranya-one/toastd/internal/domain/event"
	"github.com/aranya-one/toastd/internal/domain/notification"
	"github.com/aranya-one/toastd/internal/infrastructure/eventbus"
	"github.com/aranya-one/toastd/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInMemoryBus(t *testing.T, opts ...eventbus.InMemoryOption) *eventbus.InMemoryEventBus {
	t.Helper()

	opts = append([]eventbus.InMemoryOption{
		eventbus.WithInMemoryLogger(testutil.NewTestLogger()),
		eventbus.WithInMemoryRetryConfig(fastRetry),
	}, opts...)
	bus := eventbus.NewInMemoryEventBus(opts...)
	t.Cleanup(func() { _ = bus.Shutdown() })
	return bus
}

func requestedEvent(message string) event.DomainEvent {
	return notification.NewRequested(notification.Draft{Message: message}, event.NewMetadata("test", ""))
}

func TestInMemoryEventBus_Subscribe(t *testing.T) {
	bus := newInMemoryBus(t)
	noop := func(_ context.Context, _ event.DomainEvent) error { return nil }

	require.NoError(t, bus.Subscribe(notification.EventTypeRequested, noop))
	assert.Equal(t, 1, bus.HandlerCount(notification.EventTypeRequested))

	require.Error(t, bus.Subscribe("", noop))
	require.Error(t, bus.Subscribe(notification.EventTypeRequested, nil))
	require.Error(t, bus.Publish(context.Background(), nil))
}

func TestInMemoryEventBus_Publish(t *testing.T) {
	t.Run("delivers to every handler of the type", func(t *testing.T) {
		bus := newInMemoryBus(t)

		var requested, added atomic.Int32
		for range 2 {
			require.NoError(t, bus.Subscribe(notification.EventTypeRequested, func(_ context.Context, _ event.DomainEvent) error {
				requested.Add(1)
				return nil
			}))
		}
		require.NoError(t, bus.Subscribe(notification.EventTypeAdded, func(_ context.Context, _ event.DomainEvent) error {
			added.Add(1)
			return nil
		}))

		require.NoError(t, bus.Publish(context.Background(), requestedEvent("x")))

		assert.Eventually(t, func() bool { return requested.Load() == 2 }, time.Second, 5*time.Millisecond)
		assert.Equal(t, int32(0), added.Load())
	})

	t.Run("handlers outlive the publisher context", func(t *testing.T) {
		bus := newInMemoryBus(t)

		release := make(chan struct{})
		var ctxErr atomic.Value
		done := make(chan struct{})
		require.NoError(t, bus.Subscribe(notification.EventTypeRequested, func(ctx context.Context, _ event.DomainEvent) error {
			<-release
			if err := ctx.Err(); err != nil {
				ctxErr.Store(err)
			}
			close(done)
			return nil
		}))

		ctx, cancel := context.WithCancel(context.Background())
		require.NoError(t, bus.Publish(ctx, requestedEvent("x")))
		cancel()
		close(release)

		<-done
		assert.Nil(t, ctxErr.Load())
	})

	t.Run("retries then reports failure", func(t *testing.T) {
		failed := make(chan error, 1)
		bus := newInMemoryBus(t, eventbus.WithInMemoryFailureHandler(func(_ context.Context, _ event.DomainEvent, err error) {
			failed <- err
		}))

		var attempts atomic.Int32
		require.NoError(t, bus.Subscribe(notification.EventTypeRequested, func(_ context.Context, _ event.DomainEvent) error {
			attempts.Add(1)
			return errors.New("still failing")
		}))

		require.NoError(t, bus.Publish(context.Background(), requestedEvent("x")))

		select {
		case err := <-failed:
			assert.EqualError(t, err, "still failing")
			assert.Equal(t, int32(fastRetry.MaxRetries+1), attempts.Load())
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for failure handler")
		}
	})

	t.Run("permanent errors are not retried", func(t *testing.T) {
		failed := make(chan error, 1)
		bus := newInMemoryBus(t, eventbus.WithInMemoryFailureHandler(func(_ context.Context, _ event.DomainEvent, err error) {
			failed <- err
		}))

		var attempts atomic.Int32
		require.NoError(t, bus.Subscribe(notification.EventTypeRequested, func(_ context.Context, _ event.DomainEvent) error {
			attempts.Add(1)
			return eventbus.Permanent(errors.New("bad request"))
		}))

		require.NoError(t, bus.Publish(context.Background(), requestedEvent("x")))

		select {
		case err := <-failed:
			require.ErrorIs(t, err, eventbus.ErrPermanent)
			assert.Equal(t, int32(1), attempts.Load())
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for failure handler")
		}
	})
}

func TestInMemoryEventBus_Lifecycle(t *testing.T) {
	bus := eventbus.NewInMemoryEventBus(eventbus.WithInMemoryLogger(testutil.NewTestLogger()))

	started := make(chan error, 1)
	go func() {
		started <- bus.Start(context.Background())
	}()

	assert.Eventually(t, bus.IsRunning, time.Second, 5*time.Millisecond)
	require.Error(t, bus.Start(context.Background()))

	var completed atomic.Bool
	require.NoError(t, bus.Subscribe(notification.EventTypeRequested, func(_ context.Context, _ event.DomainEvent) error {
		time.Sleep(50 * time.Millisecond)
		completed.Store(true)
		return nil
	}))
	require.NoError(t, bus.Publish(context.Background(), requestedEvent("x")))

	require.NoError(t, bus.Shutdown())
	assert.True(t, completed.Load(), "shutdown should wait for running handlers")
	assert.False(t, bus.IsRunning())

	select {
	case err := <-started:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Start did not return after Shutdown")
	}

	require.Error(t, bus.Publish(context.Background(), requestedEvent("late")))
	require.NoError(t, bus.Shutdown())
}

func TestInMemoryEventBus_StartReturnsOnContextCancel(t *testing.T) {
	bus := newInMemoryBus(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- bus.Start(ctx)
	}()

	assert.Eventually(t, bus.IsRunning, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Start did not return after cancel")
	}
}
