package main

import (
	"context"
	"testing"
	"time"

	"github.com/aranya-one/toastd/internal/config"
	"github.com/aranya-one/toastd/internal/domain/event"
	"github.com/aranya-one/toastd/internal/domain/notification"
	"github.com/aranya-one/toastd/internal/effects"
	"github.com/aranya-one/toastd/internal/infrastructure/eventbus"
	"github.com/aranya-one/toastd/internal/infrastructure/httpserver"
	"github.com/aranya-one/toastd/internal/middleware"
	"github.com/aranya-one/toastd/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mockConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.App.Mode = config.AppModeMock
	cfg.Effects.Sound = config.SoundClient
	return cfg
}

func newMockContainer(t *testing.T, cfg *config.Config) *Container {
	t.Helper()

	c, err := NewContainer(cfg, WithLogger(testutil.NewTestLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	return c
}

func startContainer(t *testing.T, c *Container) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	require.NoError(t, c.Start(ctx))
	require.Eventually(t, c.Hub.IsRunning, time.Second, 10*time.Millisecond)
}

func TestContainerOption_WithLogger(t *testing.T) {
	c := &Container{}
	WithLogger(nil)(c)
	assert.Nil(t, c.Logger)

	logger := testutil.NewTestLogger()
	WithLogger(logger)(c)
	assert.Same(t, logger, c.Logger)
}

func TestContainer_Close_NoResources(t *testing.T) {
	c := &Container{Logger: testutil.NewTestLogger()}
	assert.NoError(t, c.Close())
}

func TestContainer_IsReady_NoChecks(t *testing.T) {
	c := &Container{Logger: testutil.NewTestLogger()}
	assert.False(t, c.IsReady(context.Background()))
}

func TestNewContainer_MockMode(t *testing.T) {
	c := newMockContainer(t, mockConfig())

	assert.Nil(t, c.MongoDB, "mock mode never connects MongoDB")
	assert.Nil(t, c.Redis, "mock mode never connects Redis")
	assert.Nil(t, c.DeadLetters)
	assert.Nil(t, c.History, "history needs MongoDB")

	assert.IsType(t, &eventbus.InMemoryEventBus{}, c.EventBus)
	assert.IsType(t, &middleware.MemoryRateLimitStore{}, c.RateLimitStore)

	require.NotNil(t, c.Queue)
	require.NotNil(t, c.Effects)
	require.NotNil(t, c.Publisher)
	require.NotNil(t, c.Metrics)
	require.NotNil(t, c.NotificationHandler)
	require.NotNil(t, c.WSHandler)
	require.NotNil(t, c.Broadcaster)
}

func TestNewContainer_QueueUsesConfiguredDefaults(t *testing.T) {
	cfg := mockConfig()
	cfg.Notifications.DefaultDuration = 2 * time.Second
	cfg.Notifications.SoundEnabled = false
	cfg.Notifications.Position = string(notification.PositionBottomLeft)

	c := newMockContainer(t, cfg)

	settings := c.Queue.Settings()
	assert.False(t, settings.SoundEnabled)
	assert.True(t, settings.HapticEnabled)
	assert.Equal(t, notification.PositionBottomLeft, settings.Position)

	id, err := c.Queue.Add(context.Background(), notification.Draft{Message: "saved"})
	require.NoError(t, err)

	n, ok := c.Queue.Get(id)
	require.True(t, ok)
	assert.Equal(t, 2*time.Second, n.Duration())
	assert.Equal(t, notification.KindInfo, n.Kind())
}

func TestNewContainer_WithoutLifecyclePublishing(t *testing.T) {
	cfg := mockConfig()
	cfg.EventBus.PublishLifecycle = false

	c := newMockContainer(t, cfg)

	assert.Nil(t, c.Publisher)
}

func TestContainer_StartAndClose(t *testing.T) {
	c, err := NewContainer(mockConfig(), WithLogger(testutil.NewTestLogger()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, c.Start(ctx))
	require.Eventually(t, c.Hub.IsRunning, time.Second, 10*time.Millisecond)
	require.Eventually(t, c.EventBus.IsRunning, time.Second, 10*time.Millisecond)
	require.Eventually(t, c.Broadcaster.IsRunning, time.Second, 10*time.Millisecond)

	assert.True(t, c.IsReady(ctx))

	require.NoError(t, c.Close())

	_, addErr := c.Queue.Add(ctx, notification.Draft{Message: "late"})
	assert.Error(t, addErr, "closed queue rejects new notifications")
	assert.Eventually(t, func() bool { return !c.Hub.IsRunning() }, time.Second, 10*time.Millisecond)
}

func TestContainer_AcceptsRequestsFromBus(t *testing.T) {
	c := newMockContainer(t, mockConfig())
	startContainer(t, c)

	draft := notification.Draft{Kind: notification.KindWarning, Message: "disk almost full"}
	evt := notification.NewRequested(draft, event.NewMetadata("toastctl", "corr-1"))

	require.NoError(t, c.EventBus.Publish(context.Background(), evt))

	require.Eventually(t, func() bool { return c.Queue.Len() == 1 }, time.Second, 10*time.Millisecond)

	list := c.Queue.List()
	assert.Equal(t, notification.KindWarning, list[0].Kind())
	assert.Equal(t, "disk almost full", list[0].Message())
}

func TestContainer_IgnoresRequestsWhenDisabled(t *testing.T) {
	cfg := mockConfig()
	cfg.EventBus.AcceptRequests = false

	c := newMockContainer(t, cfg)
	startContainer(t, c)

	evt := notification.NewRequested(notification.Draft{Message: "ignored"}, event.Metadata{})
	require.NoError(t, c.EventBus.Publish(context.Background(), evt))

	assert.Never(t, func() bool { return c.Queue.Len() > 0 }, 100*time.Millisecond, 10*time.Millisecond)
}

func TestContainer_GetHealthStatus(t *testing.T) {
	c := newMockContainer(t, mockConfig())

	statuses := c.GetHealthStatus(context.Background())
	byName := make(map[string]httpserver.ComponentStatus, len(statuses))
	for _, s := range statuses {
		byName[s.Name] = s
	}

	assert.NotContains(t, byName, "mongodb")
	assert.NotContains(t, byName, "redis")
	assert.Equal(t, httpserver.StatusUnhealthy, byName["websocket_hub"].Status)
	assert.Equal(t, httpserver.StatusDegraded, byName["eventbus"].Status)
	assert.Equal(t, httpserver.StatusHealthy, byName["queue"].Status)

	startContainer(t, c)
	require.Eventually(t, c.EventBus.IsRunning, time.Second, 10*time.Millisecond)

	statuses = c.GetHealthStatus(context.Background())
	for _, s := range statuses {
		assert.Equal(t, httpserver.StatusHealthy, s.Status, s.Name)
	}
}

func TestSetupEffects_PlayerSelection(t *testing.T) {
	for _, sound := range []string{config.SoundNone, config.SoundClient, config.SoundBoth, config.SoundBeep} {
		t.Run(sound, func(t *testing.T) {
			cfg := mockConfig()
			cfg.Effects.Sound = sound
			cfg.Effects.Haptic = config.HapticNone

			c := newMockContainer(t, cfg)

			assert.IsType(t, &effects.Dispatcher{}, c.Effects)
		})
	}
}
