package queue

import (
	"sync"

	"github.com/aranya-one/toastd/internal/domain/notification"
)

// Change names the mutation a snapshot follows.
type Change string

const (
	ChangeInitial  Change = "initial"
	ChangeAdded    Change = "added"
	ChangeRemoved  Change = "removed"
	ChangeCleared  Change = "cleared"
	ChangeSettings Change = "settings"
)

// Snapshot is the full read surface after one mutation.
type Snapshot struct {
	// Seq increases by one per mutation. A gap tells a slow subscriber that
	// intermediate snapshots were coalesced away.
	Seq    uint64
	Change Change

	// ID and Reason describe the affected notification for added/removed changes.
	ID     notification.ID
	Reason notification.RemovalReason

	// Notifications is the active set, oldest first.
	Notifications []*notification.Notification
	Settings      notification.Settings
}

// Subscription receives snapshots from a Manager.
type Subscription struct {
	ch      chan Snapshot
	done    chan struct{}
	once    sync.Once
	manager *Manager
}

func newSubscription(m *Manager, buffer int) *Subscription {
	return &Subscription{
		ch:      make(chan Snapshot, max(buffer, 1)),
		done:    make(chan struct{}),
		manager: m,
	}
}

// C returns the snapshot channel. It is closed when the subscription ends.
func (s *Subscription) C() <-chan Snapshot {
	return s.ch
}

// Done is closed once the subscription ends.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close ends the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.manager.unsubscribe(s)
}

// deliver enqueues without blocking. When the buffer is full the oldest pending
// snapshot is dropped; only the manager sends, under its lock, so the loop ends.
func (s *Subscription) deliver(snap Snapshot) {
	for {
		select {
		case s.ch <- snap:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}

// end closes the channels. Callers hold the manager lock.
func (s *Subscription) end() {
	s.once.Do(func() {
		close(s.ch)
		close(s.done)
	})
}
