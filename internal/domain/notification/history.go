package notification

import "time"

// HistoryEntry is the audit record of one notification's lifecycle.
type HistoryEntry struct {
	ID          ID
	Kind        Kind
	Title       string
	Message     string
	CreatedAt   time.Time
	Duration    time.Duration
	AutoRemove  bool
	ActionLabel string
	Source      string
	// Reason and RemovedAt stay zero while the notification is active.
	Reason    RemovalReason
	RemovedAt time.Time
}

// IsActive reports whether no removal has been recorded yet.
func (e HistoryEntry) IsActive() bool { return e.Reason == "" }

// HistoryFilter narrows a history query.
type HistoryFilter struct {
	Kind   Kind
	Reason RemovalReason
	Since  time.Time
	Limit  int
}

// EntryFromAdded builds a history entry from an Added payload. The ID and source
// come from the event envelope since decoded payloads do not carry them.
func EntryFromAdded(id ID, source string, e *Added) HistoryEntry {
	return HistoryEntry{
		ID:          id,
		Kind:        e.Kind,
		Title:       e.Title,
		Message:     e.Message,
		CreatedAt:   e.CreatedAt,
		Duration:    time.Duration(e.DurationMS) * time.Millisecond,
		AutoRemove:  e.AutoRemove,
		ActionLabel: e.ActionLabel,
		Source:      source,
	}
}

// EntryFromRemoved builds a history entry from a Removed payload.
func EntryFromRemoved(id ID, source string, e *Removed) HistoryEntry {
	return HistoryEntry{
		ID:         id,
		Kind:       e.Kind,
		Title:      e.Title,
		Message:    e.Message,
		CreatedAt:  e.CreatedAt,
		Duration:   time.Duration(e.DurationMS) * time.Millisecond,
		AutoRemove: e.AutoRemove,
		Source:     source,
		Reason:     e.Reason,
		RemovedAt:  e.RemovedAt,
	}
}
