package queue

import (
	"context"

	"github.com/aranya-one/toastd/internal/domain/notification"
)

// Observer is told about every state transition of the queue.
//
// Calls happen while the queue lock is held so they arrive in mutation order.
// Implementations must not block and must not call back into the Manager.
type Observer interface {
	NotificationAdded(ctx context.Context, n *notification.Notification)
	NotificationRemoved(ctx context.Context, n *notification.Notification, reason notification.RemovalReason)
	NotificationsCleared(ctx context.Context, removed []*notification.Notification)
	SettingsUpdated(ctx context.Context, settings notification.Settings)
	ActionInvoked(ctx context.Context, n *notification.Notification)
}

// NopObserver implements Observer with no-ops. Embed it to implement a subset.
type NopObserver struct{}

// NotificationAdded does nothing.
func (NopObserver) NotificationAdded(context.Context, *notification.Notification) {}

// NotificationRemoved does nothing.
func (NopObserver) NotificationRemoved(context.Context, *notification.Notification, notification.RemovalReason) {
}

// NotificationsCleared does nothing.
func (NopObserver) NotificationsCleared(context.Context, []*notification.Notification) {}

// SettingsUpdated does nothing.
func (NopObserver) SettingsUpdated(context.Context, notification.Settings) {}

// ActionInvoked does nothing.
func (NopObserver) ActionInvoked(context.Context, *notification.Notification) {}

// Observers fans out to several observers in order.
type Observers []Observer

// NotificationAdded forwards to every observer.
func (o Observers) NotificationAdded(ctx context.Context, n *notification.Notification) {
	for _, obs := range o {
		obs.NotificationAdded(ctx, n)
	}
}

// NotificationRemoved forwards to every observer.
func (o Observers) NotificationRemoved(
	ctx context.Context,
	n *notification.Notification,
	reason notification.RemovalReason,
) {
	for _, obs := range o {
		obs.NotificationRemoved(ctx, n, reason)
	}
}

// NotificationsCleared forwards to every observer.
func (o Observers) NotificationsCleared(ctx context.Context, removed []*notification.Notification) {
	for _, obs := range o {
		obs.NotificationsCleared(ctx, removed)
	}
}

// SettingsUpdated forwards to every observer.
func (o Observers) SettingsUpdated(ctx context.Context, settings notification.Settings) {
	for _, obs := range o {
		obs.SettingsUpdated(ctx, settings)
	}
}

// ActionInvoked forwards to every observer.
func (o Observers) ActionInvoked(ctx context.Context, n *notification.Notification) {
	for _, obs := range o {
		obs.ActionInvoked(ctx, n)
	}
}
