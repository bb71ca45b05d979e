package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// Rate limit defaults.
const (
	DefaultRateLimit       = 600
	DefaultRateLimitWindow = time.Minute
	DefaultBurstSize       = 0

	defaultRateLimitMessage = "Too many notifications. Please try again later."
)

// ErrRateLimitExceeded is logged when a producer goes over its limit.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// RateLimitStore counts requests per key and window.
type RateLimitStore interface {
	// Increment increments the counter for the given key and returns the new count.
	// It also sets the expiration time if the key is new.
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)

	// GetTTL returns the remaining TTL for the given key.
	GetTTL(ctx context.Context, key string) (time.Duration, error)
}

// RateLimitConfig holds configuration for the rate limit middleware.
type RateLimitConfig struct {
	// Logger is the structured logger for rate limit events.
	Logger *slog.Logger

	// Store is the counter backend. A nil store disables rate limiting.
	Store RateLimitStore

	// Limit is the maximum number of requests allowed per window.
	Limit int

	// Window is the time window for rate limiting.
	Window time.Duration

	// BurstSize is added to Limit.
	BurstSize int

	// KeyFunc derives the counter key. Defaults to the client IP.
	KeyFunc func(c echo.Context) string

	// SkipPaths are paths that don't require rate limiting.
	SkipPaths []string

	// Message is the error message returned when rate limit is exceeded.
	Message string
}

// DefaultRateLimitConfig returns a RateLimitConfig with sensible defaults.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Logger:    slog.Default(),
		Limit:     DefaultRateLimit,
		Window:    DefaultRateLimitWindow,
		BurstSize: DefaultBurstSize,
		SkipPaths: []string{"/health", "/ready"},
		Message:   defaultRateLimitMessage,
	}
}

// RateLimit returns a middleware that rejects requests over the configured limit
// with 429. Store failures let the request through.
func RateLimit(config RateLimitConfig) echo.MiddlewareFunc {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Limit <= 0 {
		config.Limit = DefaultRateLimit
	}
	if config.Window <= 0 {
		config.Window = DefaultRateLimitWindow
	}
	if config.Message == "" {
		config.Message = defaultRateLimitMessage
	}
	if config.KeyFunc == nil {
		config.KeyFunc = ipKey
	}

	skipPaths := make(map[string]struct{}, len(config.SkipPaths))
	for _, path := range config.SkipPaths {
		skipPaths[path] = struct{}{}
	}

	totalLimit := int64(config.Limit + config.BurstSize)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path

			if _, ok := skipPaths[path]; ok || config.Store == nil {
				return next(c)
			}

			ctx := c.Request().Context()
			key := config.KeyFunc(c)

			count, err := config.Store.Increment(ctx, key, config.Window)
			if err != nil {
				config.Logger.ErrorContext(ctx, "failed to increment rate limit counter",
					slog.String("key", key),
					slog.String("error", err.Error()),
				)
				return next(c)
			}

			remaining := max(totalLimit-count, 0)
			c.Response().Header().Set("X-Ratelimit-Limit", strconv.FormatInt(totalLimit, 10))
			c.Response().Header().Set("X-Ratelimit-Remaining", strconv.FormatInt(remaining, 10))

			ttl, err := config.Store.GetTTL(ctx, key)
			if err == nil && ttl > 0 {
				c.Response().Header().Set("X-Ratelimit-Reset", strconv.FormatInt(time.Now().Add(ttl).Unix(), 10))
			}

			if count > totalLimit {
				config.Logger.WarnContext(ctx, ErrRateLimitExceeded.Error(),
					slog.String("key", key),
					slog.Int64("count", count),
					slog.Int64("limit", totalLimit),
					slog.String("path", path),
				)
				return respondRateLimitError(c, config.Message, ttl)
			}

			return next(c)
		}
	}
}

func ipKey(c echo.Context) string {
	return "ip:" + c.RealIP()
}

// respondRateLimitError sends a rate limit exceeded error response.
func respondRateLimitError(c echo.Context, message string, retryAfter time.Duration) error {
	if retryAfter > 0 {
		c.Response().Header().Set("Retry-After", strconv.FormatInt(int64(retryAfter.Seconds()), 10))
	}

	return c.JSON(http.StatusTooManyRequests, map[string]any{
		"success": false,
		"error": map[string]any{
			"code":        "RATE_LIMIT_EXCEEDED",
			"message":     message,
			"retry_after": int64(retryAfter.Seconds()),
		},
	})
}

// MemoryRateLimitStore keeps counters in process. Used in mock mode and tests.
type MemoryRateLimitStore struct {
	mu     sync.Mutex
	counts map[string]*rateLimitEntry
}

type rateLimitEntry struct {
	count     int64
	expiresAt time.Time
}

// NewMemoryRateLimitStore creates a new in-memory rate limit store.
func NewMemoryRateLimitStore() *MemoryRateLimitStore {
	return &MemoryRateLimitStore{
		counts: make(map[string]*rateLimitEntry),
	}
}

// Increment increments the counter for the given key.
func (s *MemoryRateLimitStore) Increment(_ context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if entry, ok := s.counts[key]; ok && now.Before(entry.expiresAt) {
		entry.count++
		return entry.count, nil
	}

	s.counts[key] = &rateLimitEntry{count: 1, expiresAt: now.Add(window)}
	return 1, nil
}

// GetTTL returns the remaining TTL for the given key.
func (s *MemoryRateLimitStore) GetTTL(_ context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.counts[key]
	if !ok {
		return 0, nil
	}
	return max(time.Until(entry.expiresAt), 0), nil
}

// Reset clears all rate limit entries.
func (s *MemoryRateLimitStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.counts)
}

// RedisRateLimitStore shares counters between toastd instances.
type RedisRateLimitStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisRateLimitStore creates a new Redis-based rate limit store.
func NewRedisRateLimitStore(client *redis.Client, keyPrefix string) *RedisRateLimitStore {
	if keyPrefix == "" {
		keyPrefix = "toastd:ratelimit:"
	}
	return &RedisRateLimitStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Increment increments the counter and starts the window on the first hit.
func (s *RedisRateLimitStore) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	fullKey := s.keyPrefix + key

	count, err := s.client.Incr(ctx, fullKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment counter: %w", err)
	}

	if count == 1 {
		if expireErr := s.client.Expire(ctx, fullKey, window).Err(); expireErr != nil {
			return count, fmt.Errorf("failed to set expiration: %w", expireErr)
		}
	}

	return count, nil
}

// GetTTL returns the remaining TTL for the given key.
func (s *RedisRateLimitStore) GetTTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := s.client.TTL(ctx, s.keyPrefix+key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read ttl: %w", err)
	}
	return ttl, nil
}
