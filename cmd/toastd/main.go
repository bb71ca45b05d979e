// Package main provides the toastd server entry point.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aranya-one/toastd/internal/config"
	"github.com/aranya-one/toastd/internal/infrastructure/httpserver"
)

// Shutdown constants.
const (
	gracefulShutdownSleep = 100 * time.Millisecond
)

const version = "0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		//nolint:sloglint // No context available before logger setup
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := setupLogger(cfg)

	logger.Info("starting toastd",
		slog.String("version", version),
		slog.String("environment", getEnvironment(cfg)),
		slog.String("mode", string(cfg.App.Mode)),
	)

	container, err := NewContainer(cfg, WithLogger(logger))
	if err != nil {
		logger.Error("failed to build container", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if startErr := container.Start(ctx); startErr != nil {
		logger.Error("failed to start background services", slog.String("error", startErr.Error()))
		cancel()
		_ = container.Close()
		os.Exit(1) //nolint:gocritic // Intentional exit after cleanup
	}

	server := SetupServer(container)

	go gracefulShutdown(ctx, cancel, server, container, logger)

	logger.Info("server listening",
		slog.String("address", cfg.Server.Address()),
		slog.Duration("read_timeout", cfg.Server.ReadTimeout),
		slog.Duration("write_timeout", cfg.Server.WriteTimeout),
	)

	if serverErr := server.Start(); serverErr != nil && !errors.Is(serverErr, http.ErrServerClosed) {
		logger.Error("server error", slog.String("error", serverErr.Error()))
		cancel()
		_ = container.Close()
		os.Exit(1)
	}
}

// setupLogger creates and configures the structured logger based on configuration.
func setupLogger(cfg *config.Config) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level:     parseLogLevel(cfg.Log.Level),
		AddSource: cfg.IsDevelopment(),
	}

	switch cfg.Log.Format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// getEnvironment returns the environment name based on configuration.
func getEnvironment(cfg *config.Config) string {
	if cfg.IsDevelopment() {
		return "development"
	}
	if cfg.IsProduction() {
		return "production"
	}
	return "unknown"
}

// gracefulShutdown waits for a signal, drains HTTP, then stops background services.
func gracefulShutdown(
	ctx context.Context,
	cancel context.CancelFunc,
	server *httpserver.Server,
	container *Container,
	logger *slog.Logger,
) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)

	shutdownLogCtx := context.Background()

	select {
	case sig := <-quit:
		logger.InfoContext(shutdownLogCtx, "received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.InfoContext(shutdownLogCtx, "context cancelled, initiating shutdown")
	}

	logger.InfoContext(shutdownLogCtx, "shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		container.Config.Server.ShutdownTimeout,
	)
	defer shutdownCancel()

	// 1. Stop accepting new connections
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.ErrorContext(shutdownCtx, "server shutdown error", slog.String("error", err.Error()))
	}

	// 2. Cancel the main context to stop background services
	cancel()

	time.Sleep(gracefulShutdownSleep)

	// 3. Close the queue, then transports and connections
	if err := container.Close(); err != nil {
		logger.ErrorContext(shutdownCtx, "container close error", slog.String("error", err.Error()))
	}

	logger.InfoContext(shutdownCtx, "server shutdown complete")
}
