package main

import (
	"log/slog"
	"net/http"

	"github.com/aranya-one/toastd/internal/infrastructure/httpserver"
	"github.com/aranya-one/toastd/internal/middleware"
	"github.com/aranya-one/toastd/web"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupServer builds the HTTP server and registers every route on it.
func SetupServer(c *Container) *httpserver.Server {
	server := httpserver.NewServer(httpserver.ServerConfig{
		Host:            c.Config.Server.Host,
		Port:            c.Config.Server.Port,
		ReadTimeout:     c.Config.Server.ReadTimeout,
		WriteTimeout:    c.Config.Server.WriteTimeout,
		ShutdownTimeout: c.Config.Server.ShutdownTimeout,
		BodyLimit:       httpserver.DefaultBodyLimit,
	}, c.Logger)

	SetupRoutes(server.Echo(), c)

	return server
}

// SetupRoutes configures middleware chains and routes on e.
func SetupRoutes(e *echo.Echo, c *Container) *httpserver.Router {
	recovery := middleware.DefaultRecoveryConfig()
	recovery.Logger = c.Logger
	recovery.OnPanic = c.Metrics.PanicRecovered

	cors := middleware.DefaultCORSConfig()
	if len(c.Config.Server.AllowedOrigins) > 0 {
		cors.AllowOrigins = c.Config.Server.AllowedOrigins
	}

	logging := middleware.DefaultLoggingConfig()
	logging.Logger = c.Logger

	routerConfig := httpserver.RouterConfig{
		Logger:              c.Logger,
		RateLimitMiddleware: rateLimitMiddleware(c),
		CORSConfig:          cors,
		LoggingConfig:       logging,
		RecoveryConfig:      recovery,
		APIPrefix:           "/api/v1",
	}

	router := httpserver.NewRouter(e, routerConfig)

	router.RegisterHealthEndpoints(c)

	if c.Config.Metrics.Enabled {
		router.RegisterMetricsEndpoint(
			c.Config.Metrics.Path,
			promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{}),
		)
	}

	router.RegisterAll(c.NotificationHandler)
	c.WSHandler.RegisterRoutes(e)

	if err := registerClientRoutes(e); err != nil {
		c.Logger.Error("failed to setup client routes", slog.String("error", err.Error()))
	}

	if c.Config.IsDevelopment() {
		router.PrintRoutes()
	}

	return router
}

// registerClientRoutes serves the embedded browser client.
func registerClientRoutes(e *echo.Echo) error {
	static, err := web.Static()
	if err != nil {
		return err
	}

	e.StaticFS("/static", static)
	e.GET("/", func(c echo.Context) error {
		return c.Redirect(http.StatusFound, "/static/index.html")
	})

	return nil
}

// rateLimitMiddleware guards producer routes. A zero limit disables it.
func rateLimitMiddleware(c *Container) echo.MiddlewareFunc {
	if c.Config.Server.RateLimit <= 0 {
		return nil
	}

	rl := middleware.DefaultRateLimitConfig()
	rl.Logger = c.Logger
	rl.Store = c.RateLimitStore
	rl.Limit = c.Config.Server.RateLimit
	rl.Window = c.Config.Server.RateLimitWindow

	return middleware.RateLimit(rl)
}
