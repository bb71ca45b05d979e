package healthcheck

import (
	"context"
	"fmt"

	"github.com/aranya-one/toastd/internal/infrastructure/httpserver"
)

const defaultMaxActive = 100

// QueueStats is the part of the queue the load checker reads.
type QueueStats interface {
	Len() int
	SubscriberCount() int
}

// QueueLoadChecker reports a degraded queue when notifications pile up, which
// usually means a producer is flooding or persistent notifications are never
// dismissed.
type QueueLoadChecker struct {
	queue     QueueStats
	maxActive int
}

// NewQueueLoadChecker creates a checker. A non-positive maxActive uses the default.
func NewQueueLoadChecker(queue QueueStats, maxActive int) *QueueLoadChecker {
	if maxActive <= 0 {
		maxActive = defaultMaxActive
	}
	return &QueueLoadChecker{queue: queue, maxActive: maxActive}
}

// Name returns the component name.
func (c *QueueLoadChecker) Name() string {
	return "queue"
}

// Check compares the active count with the threshold.
func (c *QueueLoadChecker) Check(context.Context) httpserver.ComponentStatus {
	active := c.queue.Len()
	message := fmt.Sprintf("%d active, %d subscribers", active, c.queue.SubscriberCount())

	if active >= c.maxActive {
		return status(c.Name(), httpserver.StatusDegraded, message)
	}
	return status(c.Name(), httpserver.StatusHealthy, message)
}
