package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aranya-one/toastd/internal/config"
	"github.com/aranya-one/toastd/internal/domain/event"
	"github.com/aranya-one/toastd/internal/domain/notification"
	"github.com/aranya-one/toastd/internal/effects"
	httphandler "github.com/aranya-one/toastd/internal/handler/http"
	wshandler "github.com/aranya-one/toastd/internal/handler/websocket"
	"github.com/aranya-one/toastd/internal/infrastructure/eventbus"
	"github.com/aranya-one/toastd/internal/infrastructure/healthcheck"
	"github.com/aranya-one/toastd/internal/infrastructure/httpserver"
	"github.com/aranya-one/toastd/internal/infrastructure/metrics"
	mongodbinfra "github.com/aranya-one/toastd/internal/infrastructure/mongodb"
	"github.com/aranya-one/toastd/internal/infrastructure/repository/mongodb"
	"github.com/aranya-one/toastd/internal/infrastructure/websocket"
	"github.com/aranya-one/toastd/internal/middleware"
	"github.com/aranya-one/toastd/internal/queue"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Container timeouts.
const (
	containerInitTimeout   = 30 * time.Second
	redisPingTimeout       = 5 * time.Second
	mongoDisconnectTimeout = 10 * time.Second
)

const (
	eventBusTypeRedis   = "redis"
	rateLimitKeyPrefix  = "toastd:ratelimit:"
	lifecycleSourceName = "toastd"
)

// EventBus is the bus surface the container drives.
type EventBus interface {
	event.Bus
	eventbus.Subscriber
	Start(ctx context.Context) error
	Shutdown() error
	IsRunning() bool
}

// Container holds every long-lived dependency of the server.
type Container struct {
	Config *config.Config
	Logger *slog.Logger

	// Infrastructure
	MongoDB     *mongo.Client
	MongoDBName string
	Redis       *redis.Client
	EventBus    EventBus
	DeadLetters *eventbus.DeadLetterHandler

	// Metrics
	Registry *prometheus.Registry
	Metrics  *metrics.QueueMetrics

	// Queue and its collaborators
	Queue     *queue.Manager
	Effects   *effects.Dispatcher
	Publisher *eventbus.LifecyclePublisher
	History   *mongodb.MongoHistoryRepository

	// WebSocket
	Hub         *websocket.Hub
	Broadcaster *websocket.Broadcaster

	// HTTP
	RateLimitStore      middleware.RateLimitStore
	NotificationHandler *httphandler.NotificationHandler
	WSHandler           *wshandler.Handler

	readinessChecks []healthcheck.Checker
	healthChecks    []healthcheck.Checker
}

// ContainerOption configures the Container.
type ContainerOption func(*Container)

// WithLogger sets the container logger.
func WithLogger(logger *slog.Logger) ContainerOption {
	return func(c *Container) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// NewContainer wires all dependencies. On failure everything already opened is
// closed again.
func NewContainer(cfg *config.Config, opts ...ContainerOption) (*Container, error) {
	c := &Container{
		Config: cfg,
		Logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	ctx, cancel := context.WithTimeout(context.Background(), containerInitTimeout)
	defer cancel()

	if err := c.setup(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}

	c.Logger.InfoContext(ctx, "container initialized",
		slog.String("mode", string(cfg.App.Mode)),
		slog.String("eventbus", c.busType()),
		slog.Bool("history", c.History != nil),
	)

	return c, nil
}

func (c *Container) setup(ctx context.Context) error {
	if c.Config.App.IsRealMode() {
		if c.Config.History.Enabled {
			if err := c.setupMongoDB(ctx); err != nil {
				return fmt.Errorf("mongodb: %w", err)
			}
		}
		if c.busType() == eventBusTypeRedis {
			if err := c.setupRedis(ctx); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
		}
	}

	c.setupMetrics()
	c.setupEventBus()
	c.setupHub()
	c.setupEffects()
	c.setupQueue()

	if err := c.setupHistory(ctx); err != nil {
		return fmt.Errorf("history: %w", err)
	}

	if err := c.registerEventHandlers(); err != nil {
		return fmt.Errorf("event handlers: %w", err)
	}

	c.setupWebSocket()
	c.setupHTTPHandlers()
	c.setupHealthChecks()

	return nil
}

// busType resolves the effective bus type; mock mode always runs in memory.
func (c *Container) busType() string {
	if c.Config.App.IsMockMode() {
		return "inmemory"
	}
	return strings.ToLower(c.Config.EventBus.Type)
}

// setupMongoDB connects the history database.
func (c *Container) setupMongoDB(ctx context.Context) error {
	clientOpts := options.Client().
		ApplyURI(c.Config.MongoDB.URI).
		SetMaxPoolSize(c.Config.MongoDB.MaxPoolSize)

	client, connectErr := mongo.Connect(clientOpts)
	if connectErr != nil {
		return fmt.Errorf("failed to connect: %w", connectErr)
	}
	c.MongoDB = client
	c.MongoDBName = c.Config.MongoDB.Database

	pingCtx, cancel := context.WithTimeout(ctx, c.Config.MongoDB.Timeout)
	defer cancel()

	if pingErr := client.Ping(pingCtx, nil); pingErr != nil {
		return fmt.Errorf("failed to ping: %w", pingErr)
	}

	c.Logger.InfoContext(ctx, "connected to MongoDB",
		slog.String("database", c.MongoDBName),
	)

	return nil
}

// setupRedis initializes the Redis client.
func (c *Container) setupRedis(ctx context.Context) error {
	c.Redis = redis.NewClient(&redis.Options{
		Addr:     c.Config.Redis.Addr,
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.DB,
		PoolSize: c.Config.Redis.PoolSize,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()

	if pingErr := c.Redis.Ping(pingCtx).Err(); pingErr != nil {
		return fmt.Errorf("failed to ping: %w", pingErr)
	}

	c.Logger.InfoContext(ctx, "connected to Redis",
		slog.String("addr", c.Config.Redis.Addr),
	)

	return nil
}

// setupMetrics creates a private registry so tests can build several containers.
func (c *Container) setupMetrics() {
	c.Registry = prometheus.NewRegistry()
	c.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	c.Metrics = metrics.NewQueueMetrics(c.Registry)
}

// setupEventBus initializes the event bus. Handler failures on the Redis bus
// land in the dead letter list.
func (c *Container) setupEventBus() {
	if c.Redis != nil {
		c.DeadLetters = eventbus.NewDeadLetterHandler(
			c.Redis,
			eventbus.WithDeadLetterLogger(c.Logger),
		)
		c.EventBus = eventbus.NewRedisEventBus(
			c.Redis,
			eventbus.WithLogger(c.Logger),
			eventbus.WithChannelPrefix(c.Config.EventBus.RedisChannelPrefix),
			eventbus.WithFailureHandler(c.DeadLetters.Handle),
		)
	} else {
		c.EventBus = eventbus.NewInMemoryEventBus(
			eventbus.WithInMemoryLogger(c.Logger),
		)
	}

	c.Logger.Debug("event bus initialized",
		slog.String("type", c.busType()),
		slog.String("prefix", c.Config.EventBus.RedisChannelPrefix),
	)
}

// setupHub initializes the WebSocket hub.
func (c *Container) setupHub() {
	c.Hub = websocket.NewHub(
		websocket.WithHubLogger(c.Logger),
	)

	c.Logger.Debug("websocket hub initialized")
}

// setupEffects picks tone and haptic players from configuration.
func (c *Container) setupEffects() {
	client := effects.NewBroadcastPlayer(c.Hub)

	var tone effects.TonePlayer = effects.Noop{}
	switch c.Config.Effects.Sound {
	case config.SoundBeep:
		tone = effects.NewBeepPlayer()
	case config.SoundClient:
		tone = client
	case config.SoundBoth:
		tone = effects.MultiTone{effects.NewBeepPlayer(), client}
	}

	var haptic effects.HapticPlayer = effects.Noop{}
	if c.Config.Effects.Haptic == config.HapticClient {
		haptic = client
	}

	c.Effects = effects.NewDispatcher(
		effects.WithTonePlayer(tone),
		effects.WithHapticPlayer(haptic),
		effects.WithFailureReporter(c.Metrics),
		effects.WithQueueSize(c.Config.Effects.QueueSize),
		effects.WithPlayTimeout(c.Config.Effects.PlayTimeout),
		effects.WithDispatcherLogger(c.Logger),
	)

	c.Logger.Debug("effects dispatcher initialized",
		slog.String("sound", c.Config.Effects.Sound),
		slog.String("haptic", c.Config.Effects.Haptic),
	)
}

// setupQueue builds the notification queue and its observers.
func (c *Container) setupQueue() {
	observers := []queue.Observer{
		queue.NewLogObserver(c.Logger),
		c.Metrics,
	}

	if c.Config.EventBus.PublishLifecycle {
		c.Publisher = eventbus.NewLifecyclePublisher(
			c.EventBus,
			eventbus.WithPublisherSource(lifecycleSourceName),
			eventbus.WithPublisherLogger(c.Logger),
			eventbus.WithDropHook(c.Metrics.EventDropped),
		)
		observers = append(observers, c.Publisher)
	}

	c.Queue = queue.NewManager(
		queue.WithEffects(c.Effects),
		queue.WithObserver(observers...),
		queue.WithSettings(notification.Settings{
			SoundEnabled:  c.Config.Notifications.SoundEnabled,
			HapticEnabled: c.Config.Notifications.HapticEnabled,
			Position:      notification.Position(c.Config.Notifications.Position),
		}),
		queue.WithDefaultDuration(c.Config.Notifications.DefaultDuration),
		queue.WithSubscriberBuffer(c.Config.Notifications.SubscriberBuffer),
		queue.WithLogger(c.Logger),
	)

	c.Logger.Debug("notification queue initialized",
		slog.Duration("default_duration", c.Config.Notifications.DefaultDuration),
		slog.Bool("publish_lifecycle", c.Publisher != nil),
	)
}

// setupHistory creates history indexes and the repository. History needs
// MongoDB and lifecycle events; without either it stays disabled.
func (c *Container) setupHistory(ctx context.Context) error {
	if c.MongoDB == nil {
		return nil
	}
	if c.Publisher == nil {
		c.Logger.WarnContext(ctx, "history disabled: lifecycle publishing is off")
		return nil
	}

	db := c.MongoDB.Database(c.MongoDBName)

	indexCtx, cancel := context.WithTimeout(ctx, c.Config.MongoDB.Timeout)
	defer cancel()

	if err := mongodbinfra.EnsureHistoryIndexes(
		indexCtx, db, c.Config.History.Collection, c.Config.History.Retention,
	); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	collection := c.Config.History.Collection
	if collection == "" {
		collection = mongodbinfra.CollectionHistory
	}
	c.History = mongodb.NewMongoHistoryRepository(db.Collection(collection))

	c.Logger.InfoContext(ctx, "notification history enabled",
		slog.String("collection", collection),
		slog.Duration("retention", c.Config.History.Retention),
	)

	return nil
}

// registerEventHandlers subscribes the request, history and logging handlers.
func (c *Container) registerEventHandlers() error {
	handlers := eventbus.Handlers{}

	if c.Config.EventBus.AcceptRequests {
		handlers.Request = eventbus.NewRequestHandler(c.Queue, eventbus.WithRequestLogger(c.Logger))
	}
	if c.History != nil {
		handlers.History = eventbus.NewHistoryRecorder(c.History, c.Logger)
	}
	if c.Config.IsDevelopment() {
		handlers.Logging = eventbus.NewLoggingHandler(c.Logger)
	}

	return eventbus.RegisterAllHandlers(c.EventBus, handlers, c.Logger)
}

// setupWebSocket wires the snapshot broadcaster and the upgrade handler.
func (c *Container) setupWebSocket() {
	c.Broadcaster = websocket.NewBroadcaster(
		c.Hub,
		c.Queue,
		websocket.WithBroadcasterLogger(c.Logger),
	)

	clientConfig := websocket.DefaultClientConfig()
	clientConfig.ReadBufferSize = c.Config.WebSocket.ReadBufferSize
	clientConfig.WriteBufferSize = c.Config.WebSocket.WriteBufferSize
	clientConfig.PingInterval = c.Config.WebSocket.PingInterval
	clientConfig.PongWait = c.Config.WebSocket.PongTimeout

	c.WSHandler = wshandler.NewHandler(
		c.Hub,
		c.Queue,
		wshandler.WithHandlerConfig(wshandler.HandlerConfig{
			ReadBufferSize:  c.Config.WebSocket.ReadBufferSize,
			WriteBufferSize: c.Config.WebSocket.WriteBufferSize,
			AllowedOrigins:  c.Config.Server.AllowedOrigins,
			ReadOnly:        c.Config.WebSocket.ReadOnly,
			Logger:          c.Logger,
			ClientConfig:    clientConfig,
		}),
	)
}

// setupHTTPHandlers creates the REST handler and the rate limit store.
func (c *Container) setupHTTPHandlers() {
	var history httphandler.HistoryReader
	if c.History != nil {
		history = c.History
	}
	c.NotificationHandler = httphandler.NewNotificationHandler(c.Queue, history)

	if c.Redis != nil {
		c.RateLimitStore = middleware.NewRedisRateLimitStore(c.Redis, rateLimitKeyPrefix)
	} else {
		c.RateLimitStore = middleware.NewMemoryRateLimitStore()
	}
}

// setupHealthChecks builds the checks behind /ready and /health/details.
func (c *Container) setupHealthChecks() {
	if c.MongoDB != nil {
		c.readinessChecks = append(c.readinessChecks, healthcheck.NewPingChecker("mongodb",
			func(ctx context.Context) error { return c.MongoDB.Ping(ctx, nil) }))
	}
	if c.Redis != nil {
		c.readinessChecks = append(c.readinessChecks, healthcheck.NewPingChecker("redis",
			func(ctx context.Context) error { return c.Redis.Ping(ctx).Err() }))
	}
	c.readinessChecks = append(c.readinessChecks,
		healthcheck.NewRunningChecker("websocket_hub", c.Hub.IsRunning, httpserver.StatusUnhealthy))

	c.healthChecks = append(c.healthChecks, c.readinessChecks...)
	c.healthChecks = append(c.healthChecks,
		healthcheck.NewRunningChecker("eventbus", c.EventBus.IsRunning, httpserver.StatusDegraded))
	if c.DeadLetters != nil {
		c.healthChecks = append(c.healthChecks, healthcheck.NewDeadLetterChecker(c.DeadLetters))
	}
	c.healthChecks = append(c.healthChecks, healthcheck.NewQueueLoadChecker(c.Queue, 0))
}

// Start launches the background workers. They stop when ctx is cancelled.
func (c *Container) Start(ctx context.Context) error {
	c.Effects.Start()
	if c.Publisher != nil {
		c.Publisher.Start()
	}

	go func() {
		if err := c.EventBus.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			c.Logger.Error("event bus error", slog.String("error", err.Error()))
		}
	}()

	go c.Hub.Run(ctx)

	go func() {
		if err := c.Broadcaster.Run(ctx); err != nil {
			c.Logger.Error("websocket broadcaster error", slog.String("error", err.Error()))
		}
	}()

	if err := metrics.RegisterClientGauge(c.Registry, c.Hub.ClientCount); err != nil {
		return fmt.Errorf("failed to register client gauge: %w", err)
	}

	c.Logger.InfoContext(ctx, "background services started")
	return nil
}

// Close releases all resources. The queue closes first so pending timers and
// observers stop before the transports they write to.
func (c *Container) Close() error {
	var errs []error

	if c.Queue != nil {
		if err := c.Queue.Close(); err != nil {
			errs = append(errs, fmt.Errorf("queue close: %w", err))
		} else {
			c.Logger.Debug("notification queue closed")
		}
	}

	if c.Publisher != nil {
		if err := c.Publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("lifecycle publisher close: %w", err))
		}
	}

	if c.EventBus != nil {
		if err := c.EventBus.Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("event bus shutdown: %w", err))
		} else {
			c.Logger.Debug("event bus stopped")
		}
	}

	if c.Effects != nil {
		if err := c.Effects.Close(); err != nil {
			errs = append(errs, fmt.Errorf("effects close: %w", err))
		}
	}

	if c.Hub != nil {
		c.Hub.Stop()
		c.Logger.Debug("websocket hub stopped")
	}

	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		} else {
			c.Logger.Debug("redis connection closed")
		}
	}

	if c.MongoDB != nil {
		ctx, cancel := context.WithTimeout(context.Background(), mongoDisconnectTimeout)
		defer cancel()

		if err := c.MongoDB.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("mongodb disconnect: %w", err))
		} else {
			c.Logger.Debug("mongodb connection closed")
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	c.Logger.Info("all container resources closed")
	return nil
}

// IsReady implements httpserver.HealthChecker. Only configured backends and the
// hub are checked.
func (c *Container) IsReady(ctx context.Context) bool {
	if len(c.readinessChecks) == 0 {
		return false
	}

	statuses := healthcheck.Run(ctx, c.readinessChecks...)
	for _, s := range statuses {
		if s.Status == httpserver.StatusUnhealthy {
			c.Logger.WarnContext(ctx, "readiness check failed",
				slog.String("component", s.Name),
				slog.String("message", s.Message),
			)
		}
	}

	return healthcheck.Ready(statuses)
}

// GetHealthStatus implements httpserver.HealthChecker.
func (c *Container) GetHealthStatus(ctx context.Context) []httpserver.ComponentStatus {
	return healthcheck.Run(ctx, c.healthChecks...)
}

var _ httpserver.HealthChecker = (*Container)(nil)
