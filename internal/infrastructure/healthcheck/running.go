package healthcheck

import (
	"context"

	"github.com/aranya-one/toastd/internal/infrastructure/httpserver"
)

// RunningChecker reports a background loop that is not running.
type RunningChecker struct {
	name      string
	isRunning func() bool
	downState string
}

// NewRunningChecker creates a checker that reports downState ("unhealthy" or
// "degraded") while isRunning returns false.
func NewRunningChecker(name string, isRunning func() bool, downState string) *RunningChecker {
	return &RunningChecker{name: name, isRunning: isRunning, downState: downState}
}

// Name returns the component name.
func (c *RunningChecker) Name() string { return c.name }

// Check reports the loop state.
func (c *RunningChecker) Check(context.Context) httpserver.ComponentStatus {
	if !c.isRunning() {
		return status(c.name, c.downState, c.name+" not running")
	}
	return status(c.name, httpserver.StatusHealthy, "")
}
