// Package healthcheck provides component checks for the readiness and detail endpoints.
package healthcheck

import (
	"context"

	"github.com/aranya-one/toastd/internal/infrastructure/httpserver"
)

// Checker reports the status of one component.
type Checker interface {
	Name() string
	Check(ctx context.Context) httpserver.ComponentStatus
}

// Run executes every checker in order.
func Run(ctx context.Context, checkers ...Checker) []httpserver.ComponentStatus {
	statuses := make([]httpserver.ComponentStatus, 0, len(checkers))
	for _, c := range checkers {
		statuses = append(statuses, c.Check(ctx))
	}
	return statuses
}

// Ready reports whether no status is unhealthy. Degraded components do not block traffic.
func Ready(statuses []httpserver.ComponentStatus) bool {
	for _, s := range statuses {
		if s.Status == httpserver.StatusUnhealthy {
			return false
		}
	}
	return true
}

func status(name, state, message string) httpserver.ComponentStatus {
	return httpserver.ComponentStatus{Name: name, Status: state, Message: message}
}
