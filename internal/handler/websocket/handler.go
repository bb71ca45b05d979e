// Package websocket provides HTTP handlers for WebSocket connections.
package websocket

import (
	"log/slog"
	"net/http"
	"slices"

	ws "github.com/aranya-one/toastd/internal/infrastructure/websocket"
	"github.com/aranya-one/toastd/internal/queue"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// Handler configuration constants.
const (
	defaultHandlerReadBufferSize  = 1024
	defaultHandlerWriteBufferSize = 1024
)

// Queue is the part of the notification queue a connection needs.
// Declared on the consumer side per project guidelines.
type Queue interface {
	ws.Commands
	Snapshot() queue.Snapshot
}

// Handler handles WebSocket HTTP requests.
type Handler struct {
	hub          *ws.Hub
	queue        Queue
	upgrader     websocket.Upgrader
	logger       *slog.Logger
	clientConfig ws.ClientConfig
	readOnly     bool
}

// HandlerConfig holds configuration for the WebSocket handler.
type HandlerConfig struct {
	// ReadBufferSize is the size of the read buffer for WebSocket connections.
	ReadBufferSize int

	// WriteBufferSize is the size of the write buffer for WebSocket connections.
	WriteBufferSize int

	// AllowedOrigins lists acceptable Origin headers. Empty allows all origins.
	AllowedOrigins []string

	// ReadOnly rejects dismiss, action and settings commands from clients.
	ReadOnly bool

	// Logger is the structured logger for the handler.
	Logger *slog.Logger

	// ClientConfig is the configuration for WebSocket clients.
	ClientConfig ws.ClientConfig
}

// DefaultHandlerConfig returns a default configuration.
func DefaultHandlerConfig() HandlerConfig {
	return HandlerConfig{
		ReadBufferSize:  defaultHandlerReadBufferSize,
		WriteBufferSize: defaultHandlerWriteBufferSize,
		Logger:          slog.Default(),
		ClientConfig:    ws.DefaultClientConfig(),
	}
}

// HandlerOption configures the Handler.
type HandlerOption func(*Handler)

// WithHandlerLogger sets the logger for the handler.
func WithHandlerLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithHandlerConfig sets the handler configuration.
func WithHandlerConfig(config HandlerConfig) HandlerOption {
	return func(h *Handler) {
		if config.ReadBufferSize > 0 {
			h.upgrader.ReadBufferSize = config.ReadBufferSize
		}
		if config.WriteBufferSize > 0 {
			h.upgrader.WriteBufferSize = config.WriteBufferSize
		}
		h.upgrader.CheckOrigin = checkOrigin(config.AllowedOrigins)
		if config.Logger != nil {
			h.logger = config.Logger
		}
		h.clientConfig = config.ClientConfig
		h.readOnly = config.ReadOnly
	}
}

// NewHandler creates a new WebSocket handler.
func NewHandler(hub *ws.Hub, q Queue, opts ...HandlerOption) *Handler {
	h := &Handler{
		hub:   hub,
		queue: q,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  defaultHandlerReadBufferSize,
			WriteBufferSize: defaultHandlerWriteBufferSize,
			CheckOrigin:     checkOrigin(nil),
		},
		logger:       slog.Default(),
		clientConfig: ws.DefaultClientConfig(),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// checkOrigin accepts requests without an Origin header and, when origins are
// configured, only those listed.
func checkOrigin(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}

// HandleWebSocket upgrades the connection, registers the client with the hub and
// sends it the current snapshot. Later snapshots arrive through the broadcaster.
func (h *Handler) HandleWebSocket(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed",
			slog.String("remote_ip", c.RealIP()),
			slog.String("error", err.Error()),
		)
		return nil // Upgrade already sent an error response
	}

	opts := []ws.ClientOption{
		ws.WithClientConfig(h.clientConfig),
		ws.WithClientLogger(h.logger),
	}
	if !h.readOnly {
		opts = append(opts, ws.WithCommands(h.queue))
	}
	client := ws.NewClient(h.hub, conn, opts...)

	if !h.hub.Register(client) {
		h.logger.Warn("websocket connection rejected: hub stopped",
			slog.String("remote_ip", c.RealIP()),
		)
		client.Close()
		return nil
	}

	// Registered first so no broadcast is missed; clients keep the highest seq.
	data, err := ws.EncodeSnapshot(h.queue.Snapshot())
	if err != nil {
		h.logger.Error("failed to encode initial snapshot", slog.String("error", err.Error()))
	} else {
		client.Send(data)
	}

	h.logger.Info("websocket connection established",
		slog.String("client_id", client.ID()),
		slog.String("remote_ip", c.RealIP()),
		slog.Bool("read_only", h.readOnly),
	)

	go client.WritePump()
	go client.ReadPump()

	return nil
}

// RegisterRoutes registers the WebSocket handler with the Echo router.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws", h.HandleWebSocket)
}

// RegisterRoutesWithGroup registers the WebSocket handler with an Echo group.
func (h *Handler) RegisterRoutesWithGroup(g *echo.Group) {
	g.GET("/ws", h.HandleWebSocket)
}
