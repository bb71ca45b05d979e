// Package metrics exposes Prometheus instruments for the notification queue.
package metrics

import (
	"context"
	"time"

	"github.com/aranya-one/toastd/internal/domain/notification"
	"github.com/aranya-one/toastd/internal/queue"
	"github.com/prometheus/client_golang/prometheus"
)

// Effect outcome label values.
const (
	StatusPlayed = "played"
	StatusFailed = "failed"
)

// QueueMetrics contains Prometheus metrics for monitoring the queue and its side effects.
//
// It implements queue.Observer, effects.FailureReporter and the lifecycle
// publisher drop hook, so one value wires every source.
type QueueMetrics struct {
	Active          prometheus.Gauge
	Added           *prometheus.CounterVec
	Removed         *prometheus.CounterVec
	Lifetime        *prometheus.HistogramVec
	ActionsInvoked  *prometheus.CounterVec
	SettingsUpdates prometheus.Counter
	Effects         *prometheus.CounterVec
	EffectsDropped  *prometheus.CounterVec
	EventsDropped   *prometheus.CounterVec
	PanicsRecovered *prometheus.CounterVec
	now             func() time.Time
}

// NewQueueMetrics creates and registers queue metrics with the given registerer.
func NewQueueMetrics(registerer prometheus.Registerer) *QueueMetrics {
	metrics := &QueueMetrics{
		Active: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "toastd_notifications_active",
			Help: "Current number of notifications in the active set",
		}),
		Added: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toastd_notifications_added_total",
				Help: "Total number of notifications added",
			},
			[]string{"kind"},
		),
		Removed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toastd_notifications_removed_total",
				Help: "Total number of notifications removed",
			},
			[]string{"kind", "reason"}, // reason: expired/dismissed/cleared/action
		),
		Lifetime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "toastd_notification_lifetime_seconds",
				Help:    "Time a notification spent in the active set",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 300, 1800},
			},
			[]string{"reason"},
		),
		ActionsInvoked: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toastd_actions_invoked_total",
				Help: "Total number of notification actions invoked",
			},
			[]string{"kind"},
		),
		SettingsUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "toastd_settings_updates_total",
			Help: "Total number of accepted settings updates",
		}),
		Effects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toastd_effects_total",
				Help: "Total number of sound and haptic cues by outcome",
			},
			[]string{"channel", "kind", "status"}, // status: played/failed
		),
		EffectsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toastd_effects_dropped_total",
				Help: "Total number of cues dropped because the effect queue was full",
			},
			[]string{"kind"},
		),
		EventsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toastd_lifecycle_events_dropped_total",
				Help: "Total number of lifecycle events dropped before reaching the event bus",
			},
			[]string{"event_type"},
		),
		PanicsRecovered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toastd_http_panics_recovered_total",
				Help: "Total number of panics recovered in HTTP handlers",
			},
			[]string{"path"},
		),
		now: time.Now,
	}

	// Register all metrics
	registerer.MustRegister(
		metrics.Active,
		metrics.Added,
		metrics.Removed,
		metrics.Lifetime,
		metrics.ActionsInvoked,
		metrics.SettingsUpdates,
		metrics.Effects,
		metrics.EffectsDropped,
		metrics.EventsDropped,
		metrics.PanicsRecovered,
	)

	return metrics
}

// NotificationAdded implements queue.Observer.
func (m *QueueMetrics) NotificationAdded(_ context.Context, n *notification.Notification) {
	m.Active.Inc()
	m.Added.WithLabelValues(n.Kind().String()).Inc()
}

// NotificationRemoved implements queue.Observer.
func (m *QueueMetrics) NotificationRemoved(
	_ context.Context,
	n *notification.Notification,
	reason notification.RemovalReason,
) {
	m.Active.Dec()
	m.observeRemoval(n, reason)
}

// NotificationsCleared implements queue.Observer.
func (m *QueueMetrics) NotificationsCleared(_ context.Context, removed []*notification.Notification) {
	m.Active.Sub(float64(len(removed)))
	for _, n := range removed {
		m.observeRemoval(n, notification.ReasonCleared)
	}
}

// SettingsUpdated implements queue.Observer.
func (m *QueueMetrics) SettingsUpdated(context.Context, notification.Settings) {
	m.SettingsUpdates.Inc()
}

// ActionInvoked implements queue.Observer.
func (m *QueueMetrics) ActionInvoked(_ context.Context, n *notification.Notification) {
	m.ActionsInvoked.WithLabelValues(n.Kind().String()).Inc()
}

func (m *QueueMetrics) observeRemoval(n *notification.Notification, reason notification.RemovalReason) {
	m.Removed.WithLabelValues(n.Kind().String(), string(reason)).Inc()
	if age := m.now().Sub(n.CreatedAt()); age >= 0 {
		m.Lifetime.WithLabelValues(string(reason)).Observe(age.Seconds())
	}
}

// EffectPlayed implements effects.FailureReporter.
func (m *QueueMetrics) EffectPlayed(channel string, kind notification.Kind) {
	m.Effects.WithLabelValues(channel, kind.String(), StatusPlayed).Inc()
}

// EffectFailed implements effects.FailureReporter.
func (m *QueueMetrics) EffectFailed(channel string, kind notification.Kind) {
	m.Effects.WithLabelValues(channel, kind.String(), StatusFailed).Inc()
}

// EffectDropped implements effects.FailureReporter.
func (m *QueueMetrics) EffectDropped(kind notification.Kind) {
	m.EffectsDropped.WithLabelValues(kind.String()).Inc()
}

// EventDropped counts a lifecycle event the publisher could not buffer.
func (m *QueueMetrics) EventDropped(eventType string) {
	m.EventsDropped.WithLabelValues(eventType).Inc()
}

// PanicRecovered counts a panic recovered by the HTTP middleware.
func (m *QueueMetrics) PanicRecovered(path string) {
	m.PanicsRecovered.WithLabelValues(path).Inc()
}

// RegisterClientGauge exposes the number of connected WebSocket clients.
func RegisterClientGauge(registerer prometheus.Registerer, count func() int) error {
	return registerer.Register(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "toastd_websocket_clients",
			Help: "Current number of connected WebSocket clients",
		},
		func() float64 { return float64(count()) },
	))
}

var _ queue.Observer = (*QueueMetrics)(nil)
