package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/aranya-one/toastd/internal/middleware"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	// Logger is the structured logger for router events.
	Logger *slog.Logger

	// RateLimitMiddleware guards the producer routes. Nil leaves them unlimited.
	RateLimitMiddleware echo.MiddlewareFunc

	// CORSConfig is the CORS configuration.
	CORSConfig middleware.CORSConfig

	// LoggingConfig is the logging middleware configuration.
	LoggingConfig middleware.LoggingConfig

	// RecoveryConfig is the recovery middleware configuration.
	RecoveryConfig middleware.RecoveryConfig

	// APIPrefix is the prefix for all API routes.
	// Default is "/api/v1".
	APIPrefix string
}

// DefaultRouterConfig returns a RouterConfig with sensible defaults.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		Logger:         slog.Default(),
		CORSConfig:     middleware.DefaultCORSConfig(),
		LoggingConfig:  middleware.DefaultLoggingConfig(),
		RecoveryConfig: middleware.DefaultRecoveryConfig(),
		APIPrefix:      "/api/v1",
	}
}

// Router manages HTTP route groups and middleware chains.
type Router struct {
	echo   *echo.Echo
	config RouterConfig
	logger *slog.Logger

	// api holds read and command routes.
	api *echo.Group

	// producers holds routes that create notifications; they are rate limited.
	producers *echo.Group
}

// NewRouter creates a new router with the given configuration.
func NewRouter(e *echo.Echo, config RouterConfig) *Router {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.APIPrefix == "" {
		config.APIPrefix = "/api/v1"
	}

	r := &Router{
		echo:   e,
		config: config,
		logger: config.Logger,
	}

	r.setupGlobalMiddleware()
	r.setupRouteGroups()

	return r
}

// setupGlobalMiddleware applies global middleware to the Echo instance.
func (r *Router) setupGlobalMiddleware() {
	// Recovery must be first to catch all panics
	r.echo.Use(middleware.RecoveryWithConfig(r.config.RecoveryConfig))
	r.echo.Use(middleware.CORS(r.config.CORSConfig))
	r.echo.Use(middleware.Logging(r.config.LoggingConfig))
}

// setupRouteGroups creates the route group hierarchy.
func (r *Router) setupRouteGroups() {
	r.api = r.echo.Group(r.config.APIPrefix)

	if r.config.RateLimitMiddleware != nil {
		r.producers = r.api.Group("", r.config.RateLimitMiddleware)
	} else {
		r.producers = r.api
	}
}

// Echo returns the underlying Echo instance.
func (r *Router) Echo() *echo.Echo {
	return r.echo
}

// API returns the API route group.
func (r *Router) API() *echo.Group {
	return r.api
}

// Producers returns the rate-limited group for routes that add notifications.
func (r *Router) Producers() *echo.Group {
	return r.producers
}

// RouteRegistrar defines the interface for registering routes.
type RouteRegistrar interface {
	RegisterRoutes(r *Router)
}

// RegisterAll registers all route registrars with the router.
func (r *Router) RegisterAll(registrars ...RouteRegistrar) {
	for _, registrar := range registrars {
		registrar.RegisterRoutes(r)
	}
}

// PrintRoutes logs all registered routes (for debugging).
func (r *Router) PrintRoutes() {
	for _, route := range r.echo.Routes() {
		r.logger.Debug("registered route",
			slog.String("method", route.Method),
			slog.String("path", route.Path),
		)
	}
}

// RegisterMetricsEndpoint serves Prometheus metrics at path. A nil handler
// serves the default registry.
func (r *Router) RegisterMetricsEndpoint(path string, handler http.Handler) {
	if handler == nil {
		handler = promhttp.Handler()
	}
	r.echo.GET(path, echo.WrapHandler(handler))
}
