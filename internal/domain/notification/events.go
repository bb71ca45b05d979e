package notification

import (
	"time"

	"github.com/aranya-one/toastd/internal/domain/event"
	"github.com/google/uuid"
)

// Event types
const (
	EventTypeRequested       = "notification.requested"
	EventTypeAdded           = "notification.added"
	EventTypeRemoved         = "notification.removed"
	EventTypeCleared         = "notification.cleared"
	EventTypeSettingsUpdated = "notification.settings_updated"
	EventTypeActionInvoked   = "notification.action_invoked"

	aggregateType = "Notification"
)

// Requested asks a queue to add a notification. Remote producers publish it on the bus.
type Requested struct {
	event.BaseEvent

	Kind        Kind   `json:"kind,omitempty"`
	Title       string `json:"title,omitempty"`
	Message     string `json:"message"`
	DurationMS  *int64 `json:"duration_ms,omitempty"`
	AutoRemove  *bool  `json:"auto_remove,omitempty"`
	PlaySound   *bool  `json:"play_sound,omitempty"`
	PlayHaptic  *bool  `json:"play_haptic,omitempty"`
	ActionLabel string `json:"action_label,omitempty"`
	ActionEvent string `json:"action_event,omitempty"`
}

// NewRequested wraps a draft in a request event. Action callbacks cannot travel over
// the wire, so only the label and event name are kept.
func NewRequested(draft Draft, metadata event.Metadata) *Requested {
	r := &Requested{
		BaseEvent:  event.NewBaseEvent(EventTypeRequested, uuid.NewString(), aggregateType, 1, metadata),
		Kind:       draft.Kind,
		Title:      draft.Title,
		Message:    draft.Message,
		AutoRemove: draft.AutoRemove,
		PlaySound:  draft.PlaySound,
		PlayHaptic: draft.PlayHaptic,
	}
	if draft.Duration != nil {
		msValue := draft.Duration.Milliseconds()
		r.DurationMS = &msValue
	}
	if draft.Action != nil {
		r.ActionLabel = draft.Action.Label
		r.ActionEvent = draft.Action.Event
	}
	return r
}

// Draft converts the request back into a draft.
func (r *Requested) Draft() (Draft, error) {
	d := Draft{
		Kind:       r.Kind,
		Title:      r.Title,
		Message:    r.Message,
		AutoRemove: r.AutoRemove,
		PlaySound:  r.PlaySound,
		PlayHaptic: r.PlayHaptic,
	}
	if r.DurationMS != nil {
		duration, err := DurationFromMillis(*r.DurationMS)
		if err != nil {
			return Draft{}, err
		}
		d = d.WithDuration(duration)
	}
	if r.ActionLabel != "" {
		d = d.WithAction(Action{Label: r.ActionLabel, Event: r.ActionEvent})
	}
	return d, nil
}

// Added is emitted after a notification entered the active set.
type Added struct {
	event.BaseEvent

	Kind        Kind      `json:"kind"`
	Title       string    `json:"title,omitempty"`
	Message     string    `json:"message"`
	DurationMS  int64     `json:"duration_ms"`
	AutoRemove  bool      `json:"auto_remove"`
	PlaySound   bool      `json:"play_sound"`
	PlayHaptic  bool      `json:"play_haptic"`
	ActionLabel string    `json:"action_label,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewAdded creates an Added event for n.
func NewAdded(n *Notification, metadata event.Metadata) *Added {
	e := &Added{
		BaseEvent:  event.NewBaseEvent(EventTypeAdded, n.ID().String(), aggregateType, 1, metadata),
		Kind:       n.Kind(),
		Title:      n.Title(),
		Message:    n.Message(),
		DurationMS: n.Duration().Milliseconds(),
		AutoRemove: n.AutoRemove(),
		PlaySound:  n.PlaySound(),
		PlayHaptic: n.PlayHaptic(),
		CreatedAt:  n.CreatedAt(),
	}
	if a := n.Action(); a != nil {
		e.ActionLabel = a.Label
	}
	return e
}

// Removed is emitted when a notification left the active set.
type Removed struct {
	event.BaseEvent

	Kind       Kind          `json:"kind"`
	Title      string        `json:"title,omitempty"`
	Message    string        `json:"message"`
	DurationMS int64         `json:"duration_ms"`
	AutoRemove bool          `json:"auto_remove"`
	PlaySound  bool          `json:"play_sound"`
	PlayHaptic bool          `json:"play_haptic"`
	Reason     RemovalReason `json:"reason"`
	CreatedAt  time.Time     `json:"created_at"`
	RemovedAt  time.Time     `json:"removed_at"`
}

// NewRemoved creates a Removed event for n.
func NewRemoved(n *Notification, reason RemovalReason, removedAt time.Time, metadata event.Metadata) *Removed {
	return &Removed{
		BaseEvent:  event.NewBaseEvent(EventTypeRemoved, n.ID().String(), aggregateType, 1, metadata),
		Kind:       n.Kind(),
		Title:      n.Title(),
		Message:    n.Message(),
		DurationMS: n.Duration().Milliseconds(),
		AutoRemove: n.AutoRemove(),
		PlaySound:  n.PlaySound(),
		PlayHaptic: n.PlayHaptic(),
		Reason:     reason,
		CreatedAt:  n.CreatedAt(),
		RemovedAt:  removedAt,
	}
}

// Cleared is emitted once per ClearAll. Individual Removed events are not emitted for
// the cleared notifications.
type Cleared struct {
	event.BaseEvent

	IDs       []ID      `json:"ids"`
	ClearedAt time.Time `json:"cleared_at"`
}

// NewCleared creates a Cleared event.
func NewCleared(ids []ID, clearedAt time.Time, metadata event.Metadata) *Cleared {
	return &Cleared{
		BaseEvent: event.NewBaseEvent(EventTypeCleared, "*", aggregateType, 1, metadata),
		IDs:       ids,
		ClearedAt: clearedAt,
	}
}

// SettingsUpdated is emitted after the process-wide settings changed.
type SettingsUpdated struct {
	event.BaseEvent

	SoundEnabled  bool     `json:"sound_enabled"`
	HapticEnabled bool     `json:"haptic_enabled"`
	Position      Position `json:"position"`
}

// NewSettingsUpdated creates a SettingsUpdated event.
func NewSettingsUpdated(s Settings, metadata event.Metadata) *SettingsUpdated {
	return &SettingsUpdated{
		BaseEvent:     event.NewBaseEvent(EventTypeSettingsUpdated, "settings", "Settings", 1, metadata),
		SoundEnabled:  s.SoundEnabled,
		HapticEnabled: s.HapticEnabled,
		Position:      s.Position,
	}
}

// ActionInvoked is emitted when the user triggered a notification's action.
type ActionInvoked struct {
	event.BaseEvent

	Label string `json:"label"`
	Event string `json:"event,omitempty"`
}

// NewActionInvoked creates an ActionInvoked event for n.
func NewActionInvoked(n *Notification, metadata event.Metadata) *ActionInvoked {
	e := &ActionInvoked{
		BaseEvent: event.NewBaseEvent(EventTypeActionInvoked, n.ID().String(), aggregateType, 1, metadata),
	}
	if a := n.Action(); a != nil {
		e.Label = a.Label
		e.Event = a.Event
	}
	return e
}
