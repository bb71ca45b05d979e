package queue

import (
	"time"

	"github.com/aranya-one/toastd/internal/domain/notification"
)

// View is the JSON shape of a notification shared by the HTTP and WebSocket surfaces.
type View struct {
	ID         string      `json:"id"`
	Kind       string      `json:"kind"`
	Title      string      `json:"title,omitempty"`
	Message    string      `json:"message"`
	CreatedAt  time.Time   `json:"created_at"`
	DurationMS int64       `json:"duration_ms"`
	AutoRemove bool        `json:"auto_remove"`
	PlaySound  bool        `json:"play_sound"`
	PlayHaptic bool        `json:"play_haptic"`
	ExpiresAt  *time.Time  `json:"expires_at,omitempty"`
	Action     *ActionView `json:"action,omitempty"`
}

// ActionView is the serializable part of an action.
type ActionView struct {
	Label string `json:"label"`
	Event string `json:"event,omitempty"`
}

// SettingsView is the JSON shape of the settings.
type SettingsView struct {
	SoundEnabled  bool   `json:"sound_enabled"`
	HapticEnabled bool   `json:"haptic_enabled"`
	Position      string `json:"position"`
}

// SnapshotView is the JSON shape of a snapshot.
type SnapshotView struct {
	Seq           uint64       `json:"seq"`
	Change        Change       `json:"change"`
	ID            string       `json:"id,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Notifications []View       `json:"notifications"`
	Settings      SettingsView `json:"settings"`
}

// NewView converts a notification.
func NewView(n *notification.Notification) View {
	v := View{
		ID:         n.ID().String(),
		Kind:       n.Kind().String(),
		Title:      n.Title(),
		Message:    n.Message(),
		CreatedAt:  n.CreatedAt(),
		DurationMS: n.Duration().Milliseconds(),
		AutoRemove: n.AutoRemove(),
		PlaySound:  n.PlaySound(),
		PlayHaptic: n.PlayHaptic(),
	}
	if n.WillAutoRemove() {
		expiresAt := n.ExpiresAt()
		v.ExpiresAt = &expiresAt
	}
	if a := n.Action(); a != nil {
		v.Action = &ActionView{Label: a.Label, Event: a.Event}
	}
	return v
}

// NewViews converts a list of notifications. The result is never nil.
func NewViews(ns []*notification.Notification) []View {
	out := make([]View, 0, len(ns))
	for _, n := range ns {
		out = append(out, NewView(n))
	}
	return out
}

// NewSettingsView converts settings.
func NewSettingsView(s notification.Settings) SettingsView {
	return SettingsView{
		SoundEnabled:  s.SoundEnabled,
		HapticEnabled: s.HapticEnabled,
		Position:      string(s.Position),
	}
}

// View converts the snapshot.
func (s Snapshot) View() SnapshotView {
	return SnapshotView{
		Seq:           s.Seq,
		Change:        s.Change,
		ID:            s.ID.String(),
		Reason:        string(s.Reason),
		Notifications: NewViews(s.Notifications),
		Settings:      NewSettingsView(s.Settings),
	}
}

// SettingsPatchRequest is the JSON shape of a partial settings update.
type SettingsPatchRequest struct {
	SoundEnabled  *bool   `json:"sound_enabled,omitempty"`
	HapticEnabled *bool   `json:"haptic_enabled,omitempty"`
	Position      *string `json:"position,omitempty"`
}

// Patch converts the request. Position is validated by the Manager.
func (r SettingsPatchRequest) Patch() notification.SettingsPatch {
	patch := notification.SettingsPatch{
		SoundEnabled:  r.SoundEnabled,
		HapticEnabled: r.HapticEnabled,
	}
	if r.Position != nil {
		pos := notification.Position(*r.Position)
		patch.Position = &pos
	}
	return patch
}
