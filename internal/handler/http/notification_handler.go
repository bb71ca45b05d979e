package httphandler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/aranya-one/toastd/internal/domain/errs"
	"github.com/aranya-one/toastd/internal/domain/event"
	"github.com/aranya-one/toastd/internal/domain/notification"
	"github.com/aranya-one/toastd/internal/infrastructure/httpserver"
	"github.com/aranya-one/toastd/internal/middleware"
	"github.com/aranya-one/toastd/internal/queue"
	"github.com/labstack/echo/v4"
)

// Validation constants for the history endpoint.
const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// Queue defines the queue operations the handler drives.
// Declared on the consumer side per project guidelines.
type Queue interface {
	Add(ctx context.Context, draft notification.Draft) (notification.ID, error)
	Remove(ctx context.Context, id notification.ID) bool
	InvokeAction(ctx context.Context, id notification.ID) error
	ClearAll(ctx context.Context) int
	UpdateSettings(ctx context.Context, patch notification.SettingsPatch) (notification.Settings, error)
	List() []*notification.Notification
	Get(id notification.ID) (*notification.Notification, bool)
	Settings() notification.Settings
}

// HistoryReader queries the notification audit trail.
type HistoryReader interface {
	List(ctx context.Context, filter notification.HistoryFilter) ([]notification.HistoryEntry, error)
}

// ActionRequest is the serializable part of an action.
type ActionRequest struct {
	Label string `json:"label"`
	Event string `json:"event,omitempty"`
}

// AddRequest represents a request to add a notification.
type AddRequest struct {
	Kind       string         `json:"kind,omitempty"`
	Title      string         `json:"title,omitempty"`
	Message    string         `json:"message"`
	DurationMS *int64         `json:"duration_ms,omitempty"`
	AutoRemove *bool          `json:"auto_remove,omitempty"`
	PlaySound  *bool          `json:"play_sound,omitempty"`
	PlayHaptic *bool          `json:"play_haptic,omitempty"`
	Action     *ActionRequest `json:"action,omitempty"`
}

// AddResponse carries the ID of a new notification.
type AddResponse struct {
	ID string `json:"id"`
}

// ListResponse represents the active set.
type ListResponse struct {
	Notifications []queue.View `json:"notifications"`
	Total         int          `json:"total"`
}

// ClearResponse reports how many notifications a clear removed.
type ClearResponse struct {
	Cleared int `json:"cleared"`
}

// HistoryEntryResponse represents one history record.
type HistoryEntryResponse struct {
	ID          string  `json:"id"`
	Kind        string  `json:"kind"`
	Title       string  `json:"title,omitempty"`
	Message     string  `json:"message"`
	CreatedAt   string  `json:"created_at"`
	DurationMS  int64   `json:"duration_ms"`
	AutoRemove  bool    `json:"auto_remove"`
	ActionLabel string  `json:"action_label,omitempty"`
	Source      string  `json:"source,omitempty"`
	Reason      string  `json:"reason,omitempty"`
	RemovedAt   *string `json:"removed_at,omitempty"`
}

// HistoryResponse represents a history query result.
type HistoryResponse struct {
	Entries []HistoryEntryResponse `json:"entries"`
	Count   int                    `json:"count"`
}

// NotificationHandler handles notification-related HTTP requests.
type NotificationHandler struct {
	queue   Queue
	history HistoryReader
}

// NewNotificationHandler creates a new NotificationHandler. A nil history reader
// disables GET /history.
func NewNotificationHandler(q Queue, history HistoryReader) *NotificationHandler {
	return &NotificationHandler{
		queue:   q,
		history: history,
	}
}

// RegisterRoutes registers notification routes with the router.
func (h *NotificationHandler) RegisterRoutes(r *httpserver.Router) {
	// Producers are rate limited; reads and commands are not.
	r.Producers().POST("/notifications", h.Create)
	r.Producers().POST("/notifications/:kind", h.CreateKind)

	r.API().GET("/notifications", h.List)
	r.API().GET("/notifications/:id", h.Get)
	r.API().DELETE("/notifications/:id", h.Dismiss)
	r.API().POST("/notifications/:id/action", h.InvokeAction)
	r.API().DELETE("/notifications", h.ClearAll)
	r.API().GET("/settings", h.GetSettings)
	r.API().PATCH("/settings", h.UpdateSettings)
	r.API().GET("/history", h.History)
}

// Create handles POST /api/v1/notifications.
func (h *NotificationHandler) Create(c echo.Context) error {
	var req AddRequest
	if err := c.Bind(&req); err != nil {
		return httpserver.RespondErrorWithCode(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
	}

	kind, err := notification.ParseKind(req.Kind)
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	return h.add(c, kind, req)
}

// CreateKind handles POST /api/v1/notifications/:kind for success, error,
// warning and info.
func (h *NotificationHandler) CreateKind(c echo.Context) error {
	kind := notification.Kind(c.Param("kind"))
	if !kind.IsValid() {
		return httpserver.RespondErrorWithCode(c, http.StatusNotFound, "UNKNOWN_KIND", "unknown notification kind")
	}

	var req AddRequest
	if err := c.Bind(&req); err != nil {
		return httpserver.RespondErrorWithCode(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
	}

	return h.add(c, kind, req)
}

func (h *NotificationHandler) add(c echo.Context, kind notification.Kind, req AddRequest) error {
	draft, err := req.Draft()
	if err != nil {
		return httpserver.RespondError(c, err)
	}
	draft.Kind = kind

	id, err := h.queue.Add(requestContext(c), draft)
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	return httpserver.RespondCreated(c, AddResponse{ID: id.String()})
}

// Draft converts the request into a draft. The kind is set by the caller.
func (r AddRequest) Draft() (notification.Draft, error) {
	d := notification.Draft{
		Title:      r.Title,
		Message:    r.Message,
		AutoRemove: r.AutoRemove,
		PlaySound:  r.PlaySound,
		PlayHaptic: r.PlayHaptic,
	}

	if r.DurationMS != nil {
		duration, err := notification.DurationFromMillis(*r.DurationMS)
		if err != nil {
			return notification.Draft{}, err
		}
		d = d.WithDuration(duration)
	}

	if r.Action != nil {
		d = d.WithAction(notification.Action{Label: r.Action.Label, Event: r.Action.Event})
	}

	return d, nil
}

// List handles GET /api/v1/notifications.
// Returns the active set, oldest first.
func (h *NotificationHandler) List(c echo.Context) error {
	views := queue.NewViews(h.queue.List())
	return httpserver.RespondOK(c, ListResponse{
		Notifications: views,
		Total:         len(views),
	})
}

// Get handles GET /api/v1/notifications/:id.
func (h *NotificationHandler) Get(c echo.Context) error {
	n, ok := h.queue.Get(notification.ID(c.Param("id")))
	if !ok {
		return httpserver.RespondError(c, errs.ErrNotFound)
	}
	return httpserver.RespondOK(c, queue.NewView(n))
}

// Dismiss handles DELETE /api/v1/notifications/:id.
// Removal is idempotent, so an unknown ID also yields 204.
func (h *NotificationHandler) Dismiss(c echo.Context) error {
	h.queue.Remove(requestContext(c), notification.ID(c.Param("id")))
	return httpserver.RespondNoContent(c)
}

// InvokeAction handles POST /api/v1/notifications/:id/action.
func (h *NotificationHandler) InvokeAction(c echo.Context) error {
	if err := h.queue.InvokeAction(requestContext(c), notification.ID(c.Param("id"))); err != nil {
		return httpserver.RespondError(c, err)
	}
	return httpserver.RespondNoContent(c)
}

// ClearAll handles DELETE /api/v1/notifications.
func (h *NotificationHandler) ClearAll(c echo.Context) error {
	cleared := h.queue.ClearAll(requestContext(c))
	return httpserver.RespondOK(c, ClearResponse{Cleared: cleared})
}

// GetSettings handles GET /api/v1/settings.
func (h *NotificationHandler) GetSettings(c echo.Context) error {
	return httpserver.RespondOK(c, queue.NewSettingsView(h.queue.Settings()))
}

// UpdateSettings handles PATCH /api/v1/settings.
func (h *NotificationHandler) UpdateSettings(c echo.Context) error {
	var req queue.SettingsPatchRequest
	if err := c.Bind(&req); err != nil {
		return httpserver.RespondErrorWithCode(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
	}

	settings, err := h.queue.UpdateSettings(requestContext(c), req.Patch())
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	return httpserver.RespondOK(c, queue.NewSettingsView(settings))
}

// History handles GET /api/v1/history.
// Supports kind, reason, since (RFC3339) and limit query parameters.
func (h *NotificationHandler) History(c echo.Context) error {
	if h.history == nil {
		return httpserver.RespondErrorWithCode(c, http.StatusNotImplemented, "HISTORY_DISABLED", "history is not enabled")
	}

	filter, err := parseHistoryFilter(c)
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	entries, err := h.history.List(c.Request().Context(), filter)
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	resp := HistoryResponse{
		Entries: make([]HistoryEntryResponse, 0, len(entries)),
		Count:   len(entries),
	}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, ToHistoryEntryResponse(e))
	}

	return httpserver.RespondOK(c, resp)
}

// Helper functions

func parseHistoryFilter(c echo.Context) (notification.HistoryFilter, error) {
	filter := notification.HistoryFilter{Limit: defaultHistoryLimit}

	if kindStr := c.QueryParam("kind"); kindStr != "" {
		kind, err := notification.ParseKind(kindStr)
		if err != nil {
			return filter, err
		}
		filter.Kind = kind
	}

	if reasonStr := c.QueryParam("reason"); reasonStr != "" {
		reason := notification.RemovalReason(reasonStr)
		switch reason {
		case notification.ReasonExpired, notification.ReasonDismissed,
			notification.ReasonCleared, notification.ReasonAction:
			filter.Reason = reason
		default:
			return filter, fmt.Errorf("%w: unknown reason %q", errs.ErrInvalidInput, reasonStr)
		}
	}

	if sinceStr := c.QueryParam("since"); sinceStr != "" {
		since, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			return filter, fmt.Errorf("%w: since must be RFC3339", errs.ErrInvalidInput)
		}
		filter.Since = since
	}

	if limitStr := c.QueryParam("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			filter.Limit = min(l, maxHistoryLimit)
		}
	}

	return filter, nil
}

// requestContext carries the request ID as correlation ID into queue operations.
func requestContext(c echo.Context) context.Context {
	ctx := c.Request().Context()
	if requestID := middleware.GetRequestID(c); requestID != "" {
		if event.CorrelationIDFromContext(ctx) == "" {
			ctx = event.ContextWithCorrelationID(ctx, requestID)
		}
	}
	return ctx
}

// ToHistoryEntryResponse converts a history entry.
func ToHistoryEntryResponse(e notification.HistoryEntry) HistoryEntryResponse {
	resp := HistoryEntryResponse{
		ID:          e.ID.String(),
		Kind:        e.Kind.String(),
		Title:       e.Title,
		Message:     e.Message,
		CreatedAt:   e.CreatedAt.Format(time.RFC3339),
		DurationMS:  e.Duration.Milliseconds(),
		AutoRemove:  e.AutoRemove,
		ActionLabel: e.ActionLabel,
		Source:      e.Source,
		Reason:      string(e.Reason),
	}

	if !e.RemovedAt.IsZero() {
		removedAt := e.RemovedAt.Format(time.RFC3339)
		resp.RemovedAt = &removedAt
	}

	return resp
}
