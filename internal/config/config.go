// Package config provides configuration loading and validation for toastd.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/aranya-one/toastd/internal/domain/notification"
	"gopkg.in/yaml.v3"
)

// Default configuration constants.
const (
	DefaultHost            = "0.0.0.0"
	DefaultPort            = 8080
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultRateLimit       = 600
	DefaultRateLimitWindow = time.Minute

	DefaultMongoDBTimeout     = 10 * time.Second
	DefaultMongoDBMaxPoolSize = 100

	DefaultRedisPoolSize = 10

	DefaultWSBufferSize   = 1024
	DefaultWSPingInterval = 30 * time.Second
	DefaultWSPongTimeout  = 60 * time.Second

	DefaultNotificationDuration = 5 * time.Second
	DefaultSubscriberBuffer     = 16

	DefaultEffectsQueueSize   = 64
	DefaultEffectsPlayTimeout = 2 * time.Second

	DefaultHistoryRetention = 7 * 24 * time.Hour // 7 days

	DefaultMetricsPath = "/metrics"
)

// AppMode defines the application wiring mode.
type AppMode string

// Application wiring modes.
const (
	// AppModeReal wires MongoDB and Redis. This is the default.
	AppModeReal AppMode = "real"

	// AppModeMock runs fully in memory: in-process event bus, no history store.
	// Not allowed in production.
	AppModeMock AppMode = "mock"
)

// Sound players.
const (
	SoundNone   = "none"
	SoundBeep   = "beep"
	SoundClient = "client"
	SoundBoth   = "both"
)

// Haptic players.
const (
	HapticNone   = "none"
	HapticClient = "client"
)

// Config holds the complete application configuration.
type Config struct {
	App           AppConfig           `yaml:"app"`
	Server        ServerConfig        `yaml:"server"`
	MongoDB       MongoDBConfig       `yaml:"mongodb"`
	Redis         RedisConfig         `yaml:"redis"`
	EventBus      EventBusConfig      `yaml:"eventbus"`
	Log           LogConfig           `yaml:"log"`
	WebSocket     WebSocketConfig     `yaml:"websocket"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Effects       EffectsConfig       `yaml:"effects"`
	History       HistoryConfig       `yaml:"history"`
	Metrics       MetricsConfig       `yaml:"metrics"`
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	// Mode controls dependency wiring: "real" (default) or "mock".
	Mode AppMode `yaml:"mode" env:"APP_MODE"`

	// Name is the application name used in logs, metrics and event metadata.
	Name string `yaml:"name" env:"APP_NAME"`

	// Environment is "development" or "production".
	Environment string `yaml:"environment" env:"APP_ENVIRONMENT"`
}

// IsRealMode returns true if the application should use real implementations.
func (c AppConfig) IsRealMode() bool {
	return c.Mode == "" || c.Mode == AppModeReal
}

// IsMockMode returns true if the application should use in-memory implementations.
func (c AppConfig) IsMockMode() bool {
	return c.Mode == AppModeMock
}

// ServerConfig holds HTTP server configuration.
//
//nolint:golines // Struct tags require longer lines for readability
type ServerConfig struct {
	Host            string        `yaml:"host" env:"SERVER_HOST"`
	Port            int           `yaml:"port" env:"SERVER_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT"`
	// AllowedOrigins feeds CORS and the WebSocket origin check. Empty allows all.
	AllowedOrigins []string `yaml:"allowed_origins"`
	// RateLimit caps producer requests per client IP and window. Zero disables it.
	RateLimit       int           `yaml:"rate_limit" env:"SERVER_RATE_LIMIT"`
	RateLimitWindow time.Duration `yaml:"rate_limit_window" env:"SERVER_RATE_LIMIT_WINDOW"`
}

// Address returns the full server address (host:port).
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MongoDBConfig holds MongoDB connection configuration.
//
//nolint:golines // Struct tags require longer lines for readability
type MongoDBConfig struct {
	URI         string        `yaml:"uri" env:"MONGODB_URI"`
	Database    string        `yaml:"database" env:"MONGODB_DATABASE"`
	Timeout     time.Duration `yaml:"timeout" env:"MONGODB_TIMEOUT"`
	MaxPoolSize uint64        `yaml:"max_pool_size" env:"MONGODB_MAX_POOL_SIZE"`
}

// RedisConfig holds Redis connection configuration.
//
//nolint:golines // Struct tags require longer lines for readability
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
	PoolSize int    `yaml:"pool_size" env:"REDIS_POOL_SIZE"`
}

// EventBusConfig holds event bus configuration.
//
//nolint:golines // Struct tags require longer lines for readability
type EventBusConfig struct {
	Type               string `yaml:"type" env:"EVENTBUS_TYPE"` // redis | inmemory
	RedisChannelPrefix string `yaml:"redis_channel_prefix" env:"EVENTBUS_REDIS_CHANNEL_PREFIX"`
	// AcceptRequests subscribes the queue to notification.requested events.
	AcceptRequests bool `yaml:"accept_requests" env:"EVENTBUS_ACCEPT_REQUESTS"`
	// PublishLifecycle publishes added/removed/cleared/settings events.
	PublishLifecycle bool `yaml:"publish_lifecycle" env:"EVENTBUS_PUBLISH_LIFECYCLE"`
}

// LogConfig holds logging configuration.
//
//nolint:golines // Struct tags require longer lines for readability
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`   // debug | info | warn | error
	Format string `yaml:"format" env:"LOG_FORMAT"` // json | text
}

// WebSocketConfig holds WebSocket server configuration.
//
//nolint:golines // Struct tags require longer lines for readability
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size" env:"WS_READ_BUFFER_SIZE"`
	WriteBufferSize int           `yaml:"write_buffer_size" env:"WS_WRITE_BUFFER_SIZE"`
	PingInterval    time.Duration `yaml:"ping_interval" env:"WS_PING_INTERVAL"`
	PongTimeout     time.Duration `yaml:"pong_timeout" env:"WS_PONG_TIMEOUT"`
	ReadOnly        bool          `yaml:"read_only" env:"WS_READ_ONLY"`
}

// NotificationsConfig holds queue defaults.
//
//nolint:golines // Struct tags require longer lines for readability
type NotificationsConfig struct {
	DefaultDuration  time.Duration `yaml:"default_duration" env:"NOTIFICATIONS_DEFAULT_DURATION"`
	SoundEnabled     bool          `yaml:"sound_enabled" env:"NOTIFICATIONS_SOUND_ENABLED"`
	HapticEnabled    bool          `yaml:"haptic_enabled" env:"NOTIFICATIONS_HAPTIC_ENABLED"`
	Position         string        `yaml:"position" env:"NOTIFICATIONS_POSITION"`
	SubscriberBuffer int           `yaml:"subscriber_buffer" env:"NOTIFICATIONS_SUBSCRIBER_BUFFER"`
}

// EffectsConfig selects the sound and haptic players.
//
//nolint:golines // Struct tags require longer lines for readability
type EffectsConfig struct {
	Sound       string        `yaml:"sound" env:"EFFECTS_SOUND"`   // none | beep | client | both
	Haptic      string        `yaml:"haptic" env:"EFFECTS_HAPTIC"` // none | client
	QueueSize   int           `yaml:"queue_size" env:"EFFECTS_QUEUE_SIZE"`
	PlayTimeout time.Duration `yaml:"play_timeout" env:"EFFECTS_PLAY_TIMEOUT"`
}

// HistoryConfig controls the MongoDB audit trail of removed notifications.
//
//nolint:golines // Struct tags require longer lines for readability
type HistoryConfig struct {
	Enabled    bool          `yaml:"enabled" env:"HISTORY_ENABLED"`
	Collection string        `yaml:"collection" env:"HISTORY_COLLECTION"`
	Retention  time.Duration `yaml:"retention" env:"HISTORY_RETENTION"`
}

// MetricsConfig controls the Prometheus endpoint.
//
//nolint:golines // Struct tags require longer lines for readability
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"METRICS_ENABLED"`
	Path    string `yaml:"path" env:"METRICS_PATH"`
}

// Configuration errors.
var (
	ErrConfigNotFound      = errors.New("configuration file not found")
	ErrConfigInvalid       = errors.New("invalid configuration")
	ErrMissingRequired     = errors.New("missing required configuration")
	ErrInvalidDuration     = errors.New("invalid duration format")
	ErrInvalidLogLevel     = errors.New("invalid log level: must be debug, info, warn, or error")
	ErrInvalidLogFormat    = errors.New("invalid log format: must be json or text")
	ErrInvalidEventBusType = errors.New("invalid event bus type: must be redis or inmemory")
	ErrInvalidAppMode      = errors.New("invalid app mode: must be real or mock")
	ErrMockModeInProd      = errors.New("mock mode is not allowed in production")
	ErrInvalidPosition     = errors.New("invalid notifications.position")
	ErrInvalidSound        = errors.New("invalid effects.sound: must be none, beep, client, or both")
	ErrInvalidHaptic       = errors.New("invalid effects.haptic: must be none or client")
)

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Mode:        AppModeReal,
			Name:        "toastd",
			Environment: "development",
		},
		Server: ServerConfig{
			Host:            DefaultHost,
			Port:            DefaultPort,
			ReadTimeout:     DefaultReadTimeout,
			WriteTimeout:    DefaultWriteTimeout,
			ShutdownTimeout: DefaultShutdownTimeout,
			RateLimit:       DefaultRateLimit,
			RateLimitWindow: DefaultRateLimitWindow,
		},
		MongoDB: MongoDBConfig{
			URI:         "mongodb://localhost:27017",
			Database:    "toastd",
			Timeout:     DefaultMongoDBTimeout,
			MaxPoolSize: DefaultMongoDBMaxPoolSize,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: DefaultRedisPoolSize,
		},
		EventBus: EventBusConfig{
			Type:               "redis",
			RedisChannelPrefix: "events:",
			AcceptRequests:     true,
			PublishLifecycle:   true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  DefaultWSBufferSize,
			WriteBufferSize: DefaultWSBufferSize,
			PingInterval:    DefaultWSPingInterval,
			PongTimeout:     DefaultWSPongTimeout,
		},
		Notifications: NotificationsConfig{
			DefaultDuration:  DefaultNotificationDuration,
			SoundEnabled:     true,
			HapticEnabled:    true,
			Position:         "top-right",
			SubscriberBuffer: DefaultSubscriberBuffer,
		},
		Effects: EffectsConfig{
			Sound:       SoundClient,
			Haptic:      HapticClient,
			QueueSize:   DefaultEffectsQueueSize,
			PlayTimeout: DefaultEffectsPlayTimeout,
		},
		History: HistoryConfig{
			Enabled:    true,
			Collection: "notification_history",
			Retention:  DefaultHistoryRetention,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    DefaultMetricsPath,
		},
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	var errs []error

	errs = c.validateApp(errs)
	errs = c.validateServer(errs)
	errs = c.validateMongoDB(errs)
	errs = c.validateRedis(errs)
	errs = c.validateLog(errs)
	errs = c.validateEventBus(errs)
	errs = c.validateWebSocket(errs)
	errs = c.validateNotifications(errs)
	errs = c.validateEffects(errs)
	errs = c.validateHistory(errs)
	errs = c.validateMetrics(errs)

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrConfigInvalid, errors.Join(errs...))
	}

	return nil
}

// validateApp validates application configuration.
func (c *Config) validateApp(errs []error) []error {
	if c.App.Mode != "" && c.App.Mode != AppModeReal && c.App.Mode != AppModeMock {
		errs = append(errs, fmt.Errorf("%w: got %q", ErrInvalidAppMode, c.App.Mode))
	}
	if c.App.IsMockMode() && c.IsProduction() {
		errs = append(errs, ErrMockModeInProd)
	}
	return errs
}

// validateServer validates server configuration.
func (c *Config) validateServer(errs []error) []error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, errors.New("server.read_timeout must be positive"))
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, errors.New("server.write_timeout must be positive"))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, errors.New("server.rate_limit must not be negative"))
	}
	if c.Server.RateLimit > 0 && c.Server.RateLimitWindow <= 0 {
		errs = append(errs, errors.New("server.rate_limit_window must be positive when rate_limit is set"))
	}
	return errs
}

// validateMongoDB validates MongoDB configuration. Only checked when the history store is used.
func (c *Config) validateMongoDB(errs []error) []error {
	if c.App.IsMockMode() || !c.History.Enabled {
		return errs
	}
	if c.MongoDB.URI == "" {
		errs = append(errs, errors.New("mongodb.uri is required"))
	}
	if c.MongoDB.Database == "" {
		errs = append(errs, errors.New("mongodb.database is required"))
	}
	return errs
}

// validateRedis validates Redis configuration. Only checked when the Redis bus is used.
func (c *Config) validateRedis(errs []error) []error {
	if c.App.IsMockMode() || strings.ToLower(c.EventBus.Type) != "redis" {
		return errs
	}
	if c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required"))
	}
	return errs
}

// validateLog validates logging configuration.
func (c *Config) validateLog(errs []error) []error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, ErrInvalidLogLevel)
	}
	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[strings.ToLower(c.Log.Format)] {
		errs = append(errs, ErrInvalidLogFormat)
	}
	return errs
}

// validateEventBus validates event bus configuration.
func (c *Config) validateEventBus(errs []error) []error {
	validEventBusTypes := map[string]bool{"redis": true, "inmemory": true}
	if !validEventBusTypes[strings.ToLower(c.EventBus.Type)] {
		errs = append(errs, ErrInvalidEventBusType)
	}
	return errs
}

// validateWebSocket validates WebSocket configuration.
func (c *Config) validateWebSocket(errs []error) []error {
	if c.WebSocket.ReadBufferSize <= 0 {
		errs = append(errs, errors.New("websocket.read_buffer_size must be positive"))
	}
	if c.WebSocket.WriteBufferSize <= 0 {
		errs = append(errs, errors.New("websocket.write_buffer_size must be positive"))
	}
	if c.WebSocket.PingInterval <= 0 {
		errs = append(errs, errors.New("websocket.ping_interval must be positive"))
	}
	if c.WebSocket.PongTimeout <= 0 {
		errs = append(errs, errors.New("websocket.pong_timeout must be positive"))
	}
	return errs
}

// validateNotifications validates queue defaults.
func (c *Config) validateNotifications(errs []error) []error {
	if c.Notifications.DefaultDuration < 0 {
		errs = append(errs, errors.New("notifications.default_duration must not be negative"))
	}
	if !notification.Position(c.Notifications.Position).IsValid() {
		errs = append(errs, fmt.Errorf("%w: got %q", ErrInvalidPosition, c.Notifications.Position))
	}
	if c.Notifications.SubscriberBuffer <= 0 {
		errs = append(errs, errors.New("notifications.subscriber_buffer must be positive"))
	}
	return errs
}

// validateEffects validates effect player selection.
func (c *Config) validateEffects(errs []error) []error {
	switch strings.ToLower(c.Effects.Sound) {
	case SoundNone, SoundBeep, SoundClient, SoundBoth:
	default:
		errs = append(errs, fmt.Errorf("%w: got %q", ErrInvalidSound, c.Effects.Sound))
	}
	switch strings.ToLower(c.Effects.Haptic) {
	case HapticNone, HapticClient:
	default:
		errs = append(errs, fmt.Errorf("%w: got %q", ErrInvalidHaptic, c.Effects.Haptic))
	}
	if c.Effects.QueueSize <= 0 {
		errs = append(errs, errors.New("effects.queue_size must be positive"))
	}
	if c.Effects.PlayTimeout <= 0 {
		errs = append(errs, errors.New("effects.play_timeout must be positive"))
	}
	return errs
}

// validateHistory validates history configuration.
func (c *Config) validateHistory(errs []error) []error {
	if !c.History.Enabled {
		return errs
	}
	if c.History.Collection == "" {
		errs = append(errs, errors.New("history.collection is required"))
	}
	if c.History.Retention < 0 {
		errs = append(errs, errors.New("history.retention must not be negative"))
	}
	return errs
}

// validateMetrics validates metrics configuration.
func (c *Config) validateMetrics(errs []error) []error {
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, errors.New("metrics.path must start with /"))
	}
	return errs
}

// Load loads configuration from the default config file and environment variables.
func Load() (*Config, error) {
	return LoadFromPath("")
}

// LoadFromPath loads configuration from a specific file path.
// If path is empty, it tries to find the config file in standard locations.
func LoadFromPath(path string) (*Config, error) {
	loader := NewLoader()
	return loader.Load(path)
}

// Loader handles configuration loading from files and environment variables.
type Loader struct {
	configPaths []string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		configPaths: []string{
			"configs/config.yaml",
			"config.yaml",
			"/etc/toastd/config.yaml",
		},
	}
}

// WithConfigPaths sets custom config paths to search.
func (l *Loader) WithConfigPaths(paths []string) *Loader {
	l.configPaths = paths
	return l
}

// Load loads configuration from file and environment variables.
func (l *Loader) Load(path string) (*Config, error) {
	// Start with default config
	cfg := DefaultConfig()

	// Determine config file path
	configPath := path
	if configPath == "" {
		// Check CONFIG_PATH environment variable first
		if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
			configPath = envPath
		} else {
			// Search in standard locations
			for _, p := range l.configPaths {
				if _, err := os.Stat(p); err == nil {
					configPath = p
					break
				}
			}
		}
	}

	// Load from file if found
	if configPath != "" {
		if err := l.loadFromFile(cfg, configPath); err != nil {
			// Only return error if path was explicitly specified
			if path != "" || os.Getenv("CONFIG_PATH") != "" {
				return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
			}
			// Otherwise, continue with defaults + env vars
		}
	}

	// Override with environment variables
	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	// Validate the final configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromFile loads configuration from a YAML file.
func (l *Loader) loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if unmarshalErr := yaml.Unmarshal(data, cfg); unmarshalErr != nil {
		return fmt.Errorf("failed to parse config file: %w", unmarshalErr)
	}

	return nil
}

// loadFromEnv loads configuration from environment variables.
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.loadEnvToStruct(reflect.ValueOf(cfg).Elem())
}

// loadEnvToStruct recursively loads environment variables into a struct.
func (l *Loader) loadEnvToStruct(v reflect.Value) error {
	t := v.Type()

	for i := range v.NumField() {
		field := v.Field(i)
		fieldType := t.Field(i)

		// Handle embedded structs
		if field.Kind() == reflect.Struct {
			if err := l.loadEnvToStruct(field); err != nil {
				return err
			}
			continue
		}

		// Get env tag
		envTag := fieldType.Tag.Get("env")
		if envTag == "" {
			continue
		}

		// Get environment variable value
		envValue := os.Getenv(envTag)
		if envValue == "" {
			continue
		}

		// Set field value based on type
		if err := l.setFieldFromEnv(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s from env %s: %w", fieldType.Name, envTag, err)
		}
	}

	return nil
}

// setFieldFromEnv sets a struct field value from an environment variable string.
//
//nolint:exhaustive // We only support a subset of reflect.Kind for config values
func (l *Loader) setFieldFromEnv(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// Check if it's a time.Duration
		if field.Type() == reflect.TypeFor[time.Duration]() {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("%w: %s", ErrInvalidDuration, value)
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %s", value)
			}
			field.SetInt(i)
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid unsigned integer value: %s", value)
		}
		field.SetUint(u)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean value: %s", value)
		}
		field.SetBool(b)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid float value: %s", value)
		}
		field.SetFloat(f)

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// IsDevelopment returns true if the log level indicates a development environment.
func (c *Config) IsDevelopment() bool {
	return strings.ToLower(c.Log.Level) == "debug"
}

// IsProduction returns true if the app runs in the production environment.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.App.Environment, "production")
}
