package queue

import (
	"context"
	"log/slog"

	"github.com/aranya-one/toastd/internal/domain/notification"
)

// LogObserver writes queue transitions to a logger at info level.
type LogObserver struct {
	logger *slog.Logger
}

// NewLogObserver creates a LogObserver.
func NewLogObserver(logger *slog.Logger) *LogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogObserver{logger: logger}
}

func (o *LogObserver) NotificationAdded(ctx context.Context, n *notification.Notification) {
	o.logger.LogAttrs(ctx, slog.LevelInfo, "notification shown",
		slog.String("id", n.ID().String()),
		slog.String("kind", n.Kind().String()),
		slog.String("title", n.Title()),
	)
}

func (o *LogObserver) NotificationRemoved(
	ctx context.Context,
	n *notification.Notification,
	reason notification.RemovalReason,
) {
	o.logger.LogAttrs(ctx, slog.LevelInfo, "notification hidden",
		slog.String("id", n.ID().String()),
		slog.String("reason", string(reason)),
	)
}

func (o *LogObserver) NotificationsCleared(ctx context.Context, removed []*notification.Notification) {
	o.logger.LogAttrs(ctx, slog.LevelInfo, "notifications cleared",
		slog.Int("count", len(removed)),
	)
}

func (o *LogObserver) SettingsUpdated(ctx context.Context, settings notification.Settings) {
	o.logger.LogAttrs(ctx, slog.LevelInfo, "settings updated",
		slog.Bool("sound_enabled", settings.SoundEnabled),
		slog.Bool("haptic_enabled", settings.HapticEnabled),
		slog.String("position", string(settings.Position)),
	)
}

func (o *LogObserver) ActionInvoked(ctx context.Context, n *notification.Notification) {
	attrs := []slog.Attr{slog.String("id", n.ID().String())}
	if a := n.Action(); a != nil {
		attrs = append(attrs, slog.String("label", a.Label), slog.String("event", a.Event))
	}
	o.logger.LogAttrs(ctx, slog.LevelInfo, "notification action invoked", attrs...)
}
