package httpserver_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aranya-one/toastd/internal/infrastructure/httpserver"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultServerConfig(t *testing.T) {
	config := httpserver.DefaultServerConfig()

	assert.Equal(t, httpserver.DefaultHost, config.Host)
	assert.Equal(t, httpserver.DefaultPort, config.Port)
	assert.Equal(t, httpserver.DefaultReadTimeout, config.ReadTimeout)
	assert.Equal(t, httpserver.DefaultWriteTimeout, config.WriteTimeout)
	assert.Equal(t, httpserver.DefaultShutdownTimeout, config.ShutdownTimeout)
	assert.Equal(t, httpserver.DefaultBodyLimit, config.BodyLimit)
}

func TestNewServer(t *testing.T) {
	config := httpserver.ServerConfig{
		Host:            "127.0.0.1",
		Port:            3000,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    20 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
	server := httpserver.NewServer(config, slog.Default())

	e := server.Echo()
	require.NotNil(t, e)
	assert.True(t, e.HideBanner)
	assert.True(t, e.HidePort)
	assert.Equal(t, 15*time.Second, e.Server.ReadTimeout)
	assert.Equal(t, 20*time.Second, e.Server.WriteTimeout)
	assert.Equal(t, httpserver.DefaultMaxHeaderBytes, e.Server.MaxHeaderBytes)
}

func TestServerAddress(t *testing.T) {
	tests := []struct {
		name     string
		config   httpserver.ServerConfig
		expected string
	}{
		{name: "default config", config: httpserver.DefaultServerConfig(), expected: "0.0.0.0:8080"},
		{name: "custom config", config: httpserver.ServerConfig{Host: "localhost", Port: 3000}, expected: "localhost:3000"},
		{name: "ipv6 host", config: httpserver.ServerConfig{Host: "::1", Port: 9000}, expected: "[::1]:9000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, httpserver.NewServer(tt.config, nil).Address())
		})
	}
}

func TestServerBodyLimit(t *testing.T) {
	config := httpserver.DefaultServerConfig()
	config.BodyLimit = "1K"
	server := httpserver.NewServer(config, nil)
	server.RegisterRoutes(func(e *echo.Echo) {
		e.POST("/api/v1/notifications", func(c echo.Context) error {
			return c.NoContent(http.StatusCreated)
		})
	})

	small := httptest.NewRequest(http.MethodPost, "/api/v1/notifications", strings.NewReader(`{"message":"hi"}`))
	rec := httptest.NewRecorder()
	server.Echo().ServeHTTP(rec, small)
	assert.Equal(t, http.StatusCreated, rec.Code)

	large := httptest.NewRequest(http.MethodPost, "/api/v1/notifications", strings.NewReader(strings.Repeat("x", 4096)))
	rec = httptest.NewRecorder()
	server.Echo().ServeHTTP(rec, large)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestServerUse(t *testing.T) {
	server := httpserver.NewServer(httpserver.DefaultServerConfig(), nil)

	var order []string
	server.Use(
		func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				order = append(order, "first")
				return next(c)
			}
		},
		func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				order = append(order, "second")
				return next(c)
			}
		},
	)
	server.Echo().GET("/test", func(c echo.Context) error {
		order = append(order, "handler")
		return c.NoContent(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	server.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"first", "second", "handler"}, order)
}

func TestServerStartAndShutdown(t *testing.T) {
	config := httpserver.DefaultServerConfig()
	config.Host = "127.0.0.1"
	config.Port = 0
	server := httpserver.NewServer(config, slog.New(slog.DiscardHandler))

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	require.Eventually(t, func() bool {
		return server.Echo().ListenerAddr() != nil
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, server.Shutdown(context.Background()))

	select {
	case err := <-errCh:
		assert.NoError(t, err, "graceful shutdown is not an error")
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Shutdown")
	}
}

func TestServerShutdownWithoutStart(t *testing.T) {
	server := httpserver.NewServer(httpserver.DefaultServerConfig(), nil)
	assert.NoError(t, server.Shutdown(context.Background()))
}
