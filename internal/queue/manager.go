// Package queue owns the active set of transient notifications: it assigns IDs,
// schedules auto-removal, triggers sound and haptic effects and publishes a
// snapshot of the set to every subscriber after each change.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/aranya-one/toastd/internal/domain/errs"
	"github.com/aranya-one/toastd/internal/domain/notification"
)

const defaultSubscriberBuffer = 16

type entry struct {
	n *notification.Notification
	// timer is nil for notifications that never expire and after the timer fired.
	timer Timer
	// invoking is set while the action callback of the entry runs.
	invoking bool
}

// Manager is the notification queue. All methods are safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	order    []*entry
	entries  map[notification.ID]*entry
	settings notification.Settings
	subs     map[*Subscription]struct{}
	seq      uint64
	closed   bool

	scheduler        Scheduler
	effects          Effects
	observers        Observers
	now              func() time.Time
	defaultDuration  time.Duration
	subscriberBuffer int
	logger           *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithScheduler replaces the system timer scheduler.
func WithScheduler(s Scheduler) Option {
	return func(m *Manager) {
		if s != nil {
			m.scheduler = s
		}
	}
}

// WithEffects sets the sound and haptic capability. The default plays nothing.
func WithEffects(e Effects) Option {
	return func(m *Manager) {
		if e != nil {
			m.effects = e
		}
	}
}

// WithObserver appends observers. They are called in registration order.
func WithObserver(observers ...Observer) Option {
	return func(m *Manager) {
		for _, o := range observers {
			if o != nil {
				m.observers = append(m.observers, o)
			}
		}
	}
}

// WithSettings sets the initial settings.
func WithSettings(s notification.Settings) Option {
	return func(m *Manager) {
		m.settings = s
	}
}

// WithClock replaces time.Now for CreatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithDefaultDuration sets the time-to-live for drafts that do not carry one.
func WithDefaultDuration(d time.Duration) Option {
	return func(m *Manager) {
		if d >= 0 {
			m.defaultDuration = d
		}
	}
}

// WithSubscriberBuffer sets how many snapshots a slow subscriber may lag behind
// before the oldest pending ones are dropped.
func WithSubscriberBuffer(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.subscriberBuffer = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates an empty queue with default settings.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		entries:          make(map[notification.ID]*entry),
		settings:         notification.DefaultSettings(),
		subs:             make(map[*Subscription]struct{}),
		scheduler:        SystemScheduler{},
		effects:          NoEffects{},
		now:              time.Now,
		defaultDuration:  notification.DefaultDuration,
		subscriberBuffer: defaultSubscriberBuffer,
		logger:           slog.Default(),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Add validates the draft, appends the notification to the active set, schedules
// its removal and triggers its effects. It returns the new ID.
func (m *Manager) Add(ctx context.Context, draft notification.Draft) (notification.ID, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", errs.ErrClosed
	}

	if draft.Duration == nil {
		draft = draft.WithDuration(m.defaultDuration)
	}

	n, err := notification.New(draft, m.settings, m.now())
	if err != nil {
		m.mu.Unlock()
		return "", fmt.Errorf("add notification: %w", err)
	}

	id := n.ID()
	e := &entry{n: n}
	m.entries[id] = e
	m.order = append(m.order, e)

	if n.WillAutoRemove() {
		e.timer = m.scheduler.AfterFunc(n.Duration(), func() {
			m.expire(id, e)
		})
	}

	m.publishLocked(ChangeAdded, id, "")
	m.observers.NotificationAdded(ctx, n)
	m.mu.Unlock()

	m.playEffects(ctx, n)

	m.logger.DebugContext(ctx, "notification added",
		slog.String("id", id.String()),
		slog.String("kind", n.Kind().String()),
		slog.Duration("duration", n.Duration()),
		slog.Bool("auto_remove", n.WillAutoRemove()),
	)

	return id, nil
}

// Success adds a success notification.
func (m *Manager) Success(ctx context.Context, message string, opts notification.Draft) (notification.ID, error) {
	return m.addKind(ctx, notification.KindSuccess, message, opts)
}

// Error adds an error notification.
func (m *Manager) Error(ctx context.Context, message string, opts notification.Draft) (notification.ID, error) {
	return m.addKind(ctx, notification.KindError, message, opts)
}

// Warning adds a warning notification.
func (m *Manager) Warning(ctx context.Context, message string, opts notification.Draft) (notification.ID, error) {
	return m.addKind(ctx, notification.KindWarning, message, opts)
}

// Info adds an info notification.
func (m *Manager) Info(ctx context.Context, message string, opts notification.Draft) (notification.ID, error) {
	return m.addKind(ctx, notification.KindInfo, message, opts)
}

func (m *Manager) addKind(
	ctx context.Context,
	kind notification.Kind,
	message string,
	opts notification.Draft,
) (notification.ID, error) {
	opts.Kind = kind
	opts.Message = message
	return m.Add(ctx, opts)
}

// Remove dismisses a notification and cancels its timer. It reports whether the ID
// was present; removing an unknown or already removed ID is a no-op.
func (m *Manager) Remove(ctx context.Context, id notification.ID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.removeLocked(ctx, id, notification.ReasonDismissed)
}

// InvokeAction runs the action of a notification and removes it. The callback runs
// without the lock held, so it may call back into the Manager. If the callback fails
// the notification stays in the active set. While one invocation is running, others
// for the same notification fail with errs.ErrInvalidState.
func (m *Manager) InvokeAction(ctx context.Context, id notification.ID) error {
	m.mu.Lock()
	e, ok := m.entries[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: notification %s", errs.ErrNotFound, id)
	}
	action := e.n.Action()
	if action == nil {
		m.mu.Unlock()
		return fmt.Errorf("%w: notification %s has no action", errs.ErrInvalidState, id)
	}
	if e.invoking {
		m.mu.Unlock()
		return fmt.Errorf("%w: action of notification %s already running", errs.ErrInvalidState, id)
	}
	e.invoking = true
	m.mu.Unlock()

	if action.OnInvoke != nil {
		if err := action.OnInvoke(ctx); err != nil {
			m.mu.Lock()
			e.invoking = false
			m.mu.Unlock()
			return fmt.Errorf("invoke action %q: %w", action.Label, err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// The entry may have expired, been dismissed or cleared while the callback ran.
	if m.entries[id] != e {
		return nil
	}
	m.observers.ActionInvoked(ctx, e.n)
	m.removeLocked(ctx, id, notification.ReasonAction)

	return nil
}

// ClearAll empties the active set, cancels every pending timer and returns how many
// notifications were removed.
func (m *Manager) ClearAll(ctx context.Context) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.order) == 0 {
		return 0
	}

	removed := make([]*notification.Notification, 0, len(m.order))
	for _, e := range m.order {
		stopTimer(e)
		removed = append(removed, e.n)
	}

	m.order = nil
	clear(m.entries)

	m.publishLocked(ChangeCleared, "", notification.ReasonCleared)
	m.observers.NotificationsCleared(ctx, removed)

	m.logger.DebugContext(ctx, "notifications cleared", slog.Int("count", len(removed)))

	return len(removed)
}

// UpdateSettings merges the patch into the settings. Only notifications added
// afterwards pick up the new sound and haptic defaults.
func (m *Manager) UpdateSettings(ctx context.Context, patch notification.SettingsPatch) (notification.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return m.settings, errs.ErrClosed
	}

	updated, err := m.settings.Apply(patch)
	if err != nil {
		return m.settings, fmt.Errorf("update settings: %w", err)
	}

	m.settings = updated
	m.publishLocked(ChangeSettings, "", "")
	m.observers.SettingsUpdated(ctx, updated)

	return updated, nil
}

// List returns the active set, oldest first.
func (m *Manager) List() []*notification.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.listLocked()
}

// Get returns one active notification.
func (m *Manager) Get(id notification.ID) (*notification.Notification, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		return nil, false
	}
	return e.n, true
}

// Len returns the size of the active set.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.order)
}

// Settings returns the current settings.
func (m *Manager) Settings() notification.Settings {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.settings
}

// Snapshot returns the current read surface.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.snapshotLocked(ChangeInitial, "", "")
}

// Subscribe registers a subscriber. The current state is delivered immediately,
// followed by one snapshot per mutation. The subscription ends when ctx is done,
// when Close is called on it, or when the Manager closes.
func (m *Manager) Subscribe(ctx context.Context) *Subscription {
	sub := newSubscription(m, m.subscriberBuffer)

	m.mu.Lock()
	if m.closed {
		sub.end()
		m.mu.Unlock()
		return sub
	}
	m.subs[sub] = struct{}{}
	sub.deliver(m.snapshotLocked(ChangeInitial, "", ""))
	m.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.done:
		}
	}()

	return sub
}

func (m *Manager) unsubscribe(sub *Subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.subs, sub)
	sub.end()
}

// SubscriberCount returns the number of live subscriptions.
func (m *Manager) SubscriberCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.subs)
}

// Close stops every timer, drops the active set and ends all subscriptions.
// Observers are not notified. Further Add and UpdateSettings calls fail with
// errs.ErrClosed. Close is idempotent.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	for _, e := range m.order {
		stopTimer(e)
	}
	m.order = nil
	clear(m.entries)

	for sub := range m.subs {
		sub.end()
	}
	clear(m.subs)

	return nil
}

// expire is the timer callback. The entry pointer acts as a generation token: a
// stale timer whose entry was already removed finds a different or no entry.
func (m *Manager) expire(id notification.ID, e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.entries[id] != e {
		return
	}
	e.timer = nil

	m.removeLocked(context.Background(), id, notification.ReasonExpired)
}

func (m *Manager) removeLocked(ctx context.Context, id notification.ID, reason notification.RemovalReason) bool {
	e, ok := m.entries[id]
	if !ok {
		return false
	}

	stopTimer(e)
	delete(m.entries, id)
	m.order = slices.DeleteFunc(m.order, func(x *entry) bool { return x == e })

	m.publishLocked(ChangeRemoved, id, reason)
	m.observers.NotificationRemoved(ctx, e.n, reason)

	m.logger.DebugContext(ctx, "notification removed",
		slog.String("id", id.String()),
		slog.String("reason", string(reason)),
	)

	return true
}

func (m *Manager) publishLocked(change Change, id notification.ID, reason notification.RemovalReason) {
	m.seq++
	if len(m.subs) == 0 {
		return
	}

	snap := m.snapshotLocked(change, id, reason)
	for sub := range m.subs {
		sub.deliver(snap)
	}
}

func (m *Manager) snapshotLocked(change Change, id notification.ID, reason notification.RemovalReason) Snapshot {
	return Snapshot{
		Seq:           m.seq,
		Change:        change,
		ID:            id,
		Reason:        reason,
		Notifications: m.listLocked(),
		Settings:      m.settings,
	}
}

func (m *Manager) listLocked() []*notification.Notification {
	out := make([]*notification.Notification, len(m.order))
	for i, e := range m.order {
		out[i] = e.n
	}
	return out
}

func (m *Manager) playEffects(ctx context.Context, n *notification.Notification) {
	cues := Cues{Sound: n.PlaySound(), Haptic: n.PlayHaptic()}
	if !cues.Any() {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			m.logger.WarnContext(ctx, "effects panicked",
				slog.String("id", n.ID().String()),
				slog.Any("panic", r),
			)
		}
	}()

	m.effects.Play(context.WithoutCancel(ctx), n.Kind(), n.Kind().Effect(), cues)
}

func stopTimer(e *entry) {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}
