package healthcheck

import (
	"context"

	"github.com/aranya-one/toastd/internal/infrastructure/httpserver"
)

// PingChecker reports a backend unhealthy when its ping fails.
type PingChecker struct {
	name string
	ping func(ctx context.Context) error
}

// NewPingChecker creates a PingChecker, e.g. for MongoDB or Redis.
func NewPingChecker(name string, ping func(ctx context.Context) error) *PingChecker {
	return &PingChecker{name: name, ping: ping}
}

// Name returns the component name.
func (c *PingChecker) Name() string { return c.name }

// Check pings the backend.
func (c *PingChecker) Check(ctx context.Context) httpserver.ComponentStatus {
	if err := c.ping(ctx); err != nil {
		return status(c.name, httpserver.StatusUnhealthy, err.Error())
	}
	return status(c.name, httpserver.StatusHealthy, "")
}
