// Package notification defines the transient notification entity, its kinds and the
// process-wide display settings.
package notification

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/aranya-one/toastd/internal/domain/errs"
	"github.com/google/uuid"
)

// DefaultDuration is the time-to-live applied when a draft does not set one.
const DefaultDuration = 5 * time.Second

// ID identifies a notification within the process.
type ID string

// NewID returns a fresh time-ordered ID. UUIDv7 generation is monotonic within the
// process, so IDs created in the same clock tick still differ.
func NewID() ID {
	return ID(uuid.Must(uuid.NewV7()).String())
}

// String returns the ID as a string.
func (id ID) String() string { return string(id) }

// IsZero reports whether the ID is empty.
func (id ID) IsZero() bool { return id == "" }

// RemovalReason records why a notification left the active set.
type RemovalReason string

const (
	ReasonExpired   RemovalReason = "expired"
	ReasonDismissed RemovalReason = "dismissed"
	ReasonCleared   RemovalReason = "cleared"
	ReasonAction    RemovalReason = "action"
)

// Action is a user-triggered callback attached to a notification.
//
// In-process producers set OnInvoke. Remote producers cannot ship a callback, so
// they name an Event instead, which is announced when the action is invoked.
type Action struct {
	Label    string
	Event    string
	OnInvoke func(ctx context.Context) error
}

// Draft is the partial notification a producer hands to the queue.
// Nil pointer fields fall back to defaults; only Message is required.
type Draft struct {
	Kind       Kind
	Title      string
	Message    string
	Duration   *time.Duration
	AutoRemove *bool
	PlaySound  *bool
	PlayHaptic *bool
	Action     *Action
}

// WithTitle returns a copy of the draft with a title.
func (d Draft) WithTitle(title string) Draft {
	d.Title = title
	return d
}

// maxDurationMillis is the largest millisecond count a time.Duration can hold.
const maxDurationMillis = math.MaxInt64 / int64(time.Millisecond)

// DurationFromMillis converts a wire duration in milliseconds, rejecting values
// that are negative or do not fit a time.Duration.
func DurationFromMillis(ms int64) (time.Duration, error) {
	if ms < 0 {
		return 0, fmt.Errorf("%w: duration_ms must not be negative", errs.ErrInvalidInput)
	}
	if ms > maxDurationMillis {
		return 0, fmt.Errorf("%w: duration_ms must not exceed %d", errs.ErrInvalidInput, maxDurationMillis)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// WithDuration returns a copy of the draft with an explicit time-to-live.
// Zero disables auto-removal.
func (d Draft) WithDuration(duration time.Duration) Draft {
	d.Duration = &duration
	return d
}

// Persistent returns a copy of the draft that stays until dismissed.
func (d Draft) Persistent() Draft {
	off := false
	d.AutoRemove = &off
	return d
}

// WithSound returns a copy of the draft overriding the global sound setting.
func (d Draft) WithSound(enabled bool) Draft {
	d.PlaySound = &enabled
	return d
}

// WithHaptic returns a copy of the draft overriding the global haptic setting.
func (d Draft) WithHaptic(enabled bool) Draft {
	d.PlayHaptic = &enabled
	return d
}

// WithAction returns a copy of the draft carrying an action.
func (d Draft) WithAction(action Action) Draft {
	d.Action = &action
	return d
}

// Notification is an entry of the active set. It is immutable once created.
type Notification struct {
	id         ID
	kind       Kind
	title      string
	message    string
	createdAt  time.Time
	duration   time.Duration
	autoRemove bool
	playSound  bool
	playHaptic bool
	action     *Action
}

// New validates a draft and resolves its defaults against the current settings.
func New(draft Draft, settings Settings, now time.Time) (*Notification, error) {
	if strings.TrimSpace(draft.Message) == "" {
		return nil, fmt.Errorf("%w: message is required", errs.ErrInvalidInput)
	}

	kind, err := ParseKind(string(draft.Kind))
	if err != nil {
		return nil, err
	}

	duration := DefaultDuration
	if draft.Duration != nil {
		duration = *draft.Duration
	}
	if duration < 0 {
		return nil, fmt.Errorf("%w: duration must not be negative", errs.ErrInvalidInput)
	}

	var action *Action
	if draft.Action != nil {
		if strings.TrimSpace(draft.Action.Label) == "" {
			return nil, fmt.Errorf("%w: action label is required", errs.ErrInvalidInput)
		}
		a := *draft.Action
		action = &a
	}

	return &Notification{
		id:         NewID(),
		kind:       kind,
		title:      draft.Title,
		message:    draft.Message,
		createdAt:  now,
		duration:   duration,
		autoRemove: boolOr(draft.AutoRemove, true),
		playSound:  boolOr(draft.PlaySound, settings.SoundEnabled),
		playHaptic: boolOr(draft.PlayHaptic, settings.HapticEnabled),
		action:     action,
	}, nil
}

// Reconstruct rebuilds a notification from stored fields without validation.
// Used by repositories when hydrating history records.
func Reconstruct(
	id ID,
	kind Kind,
	title, message string,
	createdAt time.Time,
	duration time.Duration,
	autoRemove, playSound, playHaptic bool,
	action *Action,
) *Notification {
	return &Notification{
		id:         id,
		kind:       kind,
		title:      title,
		message:    message,
		createdAt:  createdAt,
		duration:   duration,
		autoRemove: autoRemove,
		playSound:  playSound,
		playHaptic: playHaptic,
		action:     action,
	}
}

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}

// ID returns the notification ID.
func (n *Notification) ID() ID { return n.id }

// Kind returns the notification kind.
func (n *Notification) Kind() Kind { return n.kind }

// Title returns the optional short label.
func (n *Notification) Title() string { return n.title }

// Message returns the body text.
func (n *Notification) Message() string { return n.message }

// CreatedAt returns the insertion time.
func (n *Notification) CreatedAt() time.Time { return n.createdAt }

// Duration returns the time-to-live; zero means no auto-removal.
func (n *Notification) Duration() time.Duration { return n.duration }

// AutoRemove reports whether the notification was created with auto-removal on.
func (n *Notification) AutoRemove() bool { return n.autoRemove }

// PlaySound reports the effective sound flag frozen at creation.
func (n *Notification) PlaySound() bool { return n.playSound }

// PlayHaptic reports the effective haptic flag frozen at creation.
func (n *Notification) PlayHaptic() bool { return n.playHaptic }

// Action returns a copy of the attached action, or nil.
func (n *Notification) Action() *Action {
	if n.action == nil {
		return nil
	}
	a := *n.action
	return &a
}

// HasAction reports whether the notification carries an action.
func (n *Notification) HasAction() bool { return n.action != nil }

// WillAutoRemove reports whether a removal timer is scheduled for the notification.
func (n *Notification) WillAutoRemove() bool {
	return n.autoRemove && n.duration > 0
}

// ExpiresAt returns when the notification auto-removes, or the zero time if it never does.
func (n *Notification) ExpiresAt() time.Time {
	if !n.WillAutoRemove() {
		return time.Time{}
	}
	return n.createdAt.Add(n.duration)
}
