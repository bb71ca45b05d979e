package healthcheck

import (
	"context"
	"fmt"

	"github.com/aranya-one/toastd/internal/infrastructure/httpserver"
)

// Default thresholds for the dead letter list.
const (
	defaultWarningThreshold  = 1
	defaultCriticalThreshold = 1000
)

// DeadLetterCounter is the part of the dead letter queue the checker reads.
// Declared on the consumer side per project guidelines.
type DeadLetterCounter interface {
	QueueLength(ctx context.Context) (int64, error)
}

// DeadLetterChecker reports events whose handlers gave up, e.g. history writes
// that failed while MongoDB was down.
type DeadLetterChecker struct {
	counter           DeadLetterCounter
	warningThreshold  int64
	criticalThreshold int64
}

// DeadLetterOption configures DeadLetterChecker.
type DeadLetterOption func(*DeadLetterChecker)

// WithWarningThreshold sets the count from which the list is reported degraded.
func WithWarningThreshold(threshold int64) DeadLetterOption {
	return func(c *DeadLetterChecker) {
		c.warningThreshold = threshold
	}
}

// WithCriticalThreshold sets the count from which the list is reported unhealthy.
func WithCriticalThreshold(threshold int64) DeadLetterOption {
	return func(c *DeadLetterChecker) {
		c.criticalThreshold = threshold
	}
}

// NewDeadLetterChecker creates a new dead letter checker.
func NewDeadLetterChecker(counter DeadLetterCounter, opts ...DeadLetterOption) *DeadLetterChecker {
	c := &DeadLetterChecker{
		counter:           counter,
		warningThreshold:  defaultWarningThreshold,
		criticalThreshold: defaultCriticalThreshold,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Name returns the component name.
func (c *DeadLetterChecker) Name() string {
	return "dead_letters"
}

// Check reads the list length.
func (c *DeadLetterChecker) Check(ctx context.Context) httpserver.ComponentStatus {
	count, err := c.counter.QueueLength(ctx)
	if err != nil {
		return status(c.Name(), httpserver.StatusDegraded,
			fmt.Sprintf("failed to get dead letter queue length: %v", err))
	}

	message := fmt.Sprintf("dead letter queue: %d events", count)

	switch {
	case count >= c.criticalThreshold:
		return status(c.Name(), httpserver.StatusUnhealthy, message)
	case count >= c.warningThreshold:
		return status(c.Name(), httpserver.StatusDegraded, message)
	default:
		return status(c.Name(), httpserver.StatusHealthy, message)
	}
}
