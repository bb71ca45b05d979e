package testutil

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"
)

const contextTimeout = 30 * time.Second

// NewTestContext creates context with timeout for tests
func NewTestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), contextTimeout)
	t.Cleanup(cancel)
	return ctx
}

// NewTestLogger returns a logger that discards output.
func NewTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
