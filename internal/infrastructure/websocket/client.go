package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/aranya-one/toastd/internal/domain/errs"
	"github.com/aranya-one/toastd/internal/domain/event"
	"github.com/aranya-one/toastd/internal/domain/notification"
	"github.com/aranya-one/toastd/internal/queue"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Default client configuration constants.
const (
	defaultReadBufferSize  = 1024
	defaultWriteBufferSize = 1024
	defaultPingInterval    = 30 * time.Second
	defaultPongWait        = 60 * time.Second
	defaultWriteWait       = 10 * time.Second
	defaultMaxMessageSize  = 4096
	defaultSendBufferSize  = 256
	defaultCommandTimeout  = 5 * time.Second
)

// ClientConfig holds configuration for WebSocket clients.
type ClientConfig struct {
	// ReadBufferSize is the size of the read buffer.
	ReadBufferSize int

	// WriteBufferSize is the size of the write buffer.
	WriteBufferSize int

	// PingInterval is the interval for sending ping messages.
	PingInterval time.Duration

	// PongWait is the maximum time to wait for a pong response.
	PongWait time.Duration

	// WriteWait is the maximum time to wait for a write operation.
	WriteWait time.Duration

	// MaxMessageSize is the maximum allowed message size.
	MaxMessageSize int64

	// CommandTimeout bounds each queue command issued by the client.
	CommandTimeout time.Duration
}

// DefaultClientConfig returns sensible default configuration.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		ReadBufferSize:  defaultReadBufferSize,
		WriteBufferSize: defaultWriteBufferSize,
		PingInterval:    defaultPingInterval,
		PongWait:        defaultPongWait,
		WriteWait:       defaultWriteWait,
		MaxMessageSize:  defaultMaxMessageSize,
		CommandTimeout:  defaultCommandTimeout,
	}
}

// Commands is the part of the queue a client may drive.
type Commands interface {
	Remove(ctx context.Context, id notification.ID) bool
	InvokeAction(ctx context.Context, id notification.ID) error
	ClearAll(ctx context.Context) int
	UpdateSettings(ctx context.Context, patch notification.SettingsPatch) (notification.Settings, error)
}

// Client represents a single WebSocket connection.
type Client struct {
	// id identifies the connection in logs and as correlation ID of its commands.
	id string

	// hub is the hub this client belongs to.
	hub *Hub

	// conn is the underlying WebSocket connection.
	conn *websocket.Conn

	// send is the channel for outgoing messages.
	send chan []byte

	// commands executes dismiss/action/settings requests; nil makes the client read-only.
	commands Commands

	// config holds client configuration.
	config ClientConfig

	// logger for structured logging.
	logger *slog.Logger

	// closed indicates if the client connection has been closed.
	closed bool

	// closedMu protects the closed flag.
	closedMu sync.RWMutex
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClientConfig sets the client configuration.
func WithClientConfig(config ClientConfig) ClientOption {
	return func(c *Client) {
		c.config = config
	}
}

// WithClientLogger sets the logger for the client.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithCommands lets the client change the queue.
func WithCommands(commands Commands) ClientOption {
	return func(c *Client) {
		c.commands = commands
	}
}

// NewClient creates a new WebSocket client.
func NewClient(hub *Hub, conn *websocket.Conn, opts ...ClientOption) *Client {
	c := &Client{
		id:     uuid.NewString(),
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, defaultSendBufferSize),
		config: DefaultClientConfig(),
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// ID returns the connection ID.
func (c *Client) ID() string {
	return c.id
}

// IsClosed returns whether the client connection has been closed.
func (c *Client) IsClosed() bool {
	c.closedMu.RLock()
	defer c.closedMu.RUnlock()
	return c.closed
}

// ReadPump reads messages from the WebSocket connection.
// It should be run as a goroutine.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.Close()
	}()

	c.conn.SetReadLimit(c.config.MaxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait)); err != nil {
		c.logger.Error("failed to set read deadline", slog.String("error", err.Error()))
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read error",
					slog.String("client_id", c.id),
					slog.String("error", err.Error()),
				)
			}
			return
		}

		c.handleClientMessage(message)
	}
}

// WritePump writes messages to the WebSocket connection.
// It should be run as a goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait)); err != nil {
				return
			}

			if !ok {
				// Client closed the channel
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Warn("websocket write error",
					slog.String("client_id", c.id),
					slog.String("error", err.Error()),
				)
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait)); err != nil {
				return
			}

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleClientMessage processes a message received from the client.
func (c *Client) handleClientMessage(message []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.logger.Warn("invalid client message",
			slog.String("client_id", c.id),
			slog.String("error", err.Error()),
		)
		c.sendError("INVALID_MESSAGE", "invalid message format")
		return
	}

	if msg.Type == MessagePing {
		c.sendJSON(map[string]string{"type": FramePong})
		return
	}

	if c.commands == nil {
		c.sendError("READ_ONLY", "commands are not accepted on this connection")
		return
	}

	timeout := c.config.CommandTimeout
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	ctx, cancel := context.WithTimeout(event.ContextWithCorrelationID(context.Background(), c.id), timeout)
	defer cancel()

	switch msg.Type {
	case MessageDismiss:
		if msg.ID == "" {
			c.sendError("VALIDATION_ERROR", "id is required for dismiss")
			return
		}
		removed := c.commands.Remove(ctx, notification.ID(msg.ID))
		c.sendJSON(AckFrame{Type: FrameAck, Action: MessageDismiss, ID: msg.ID, Removed: &removed})

	case MessageInvokeAction:
		if msg.ID == "" {
			c.sendError("VALIDATION_ERROR", "id is required for invoke_action")
			return
		}
		if err := c.commands.InvokeAction(ctx, notification.ID(msg.ID)); err != nil {
			c.sendCommandError(err)
			return
		}
		c.sendJSON(AckFrame{Type: FrameAck, Action: MessageInvokeAction, ID: msg.ID})

	case MessageClearAll:
		cleared := c.commands.ClearAll(ctx)
		c.sendJSON(AckFrame{Type: FrameAck, Action: MessageClearAll, Cleared: &cleared})

	case MessageUpdateSettings:
		if msg.Settings == nil {
			c.sendError("VALIDATION_ERROR", "settings is required for update_settings")
			return
		}
		settings, err := c.commands.UpdateSettings(ctx, msg.Settings.Patch())
		if err != nil {
			c.sendCommandError(err)
			return
		}
		view := queue.NewSettingsView(settings)
		c.sendJSON(AckFrame{Type: FrameAck, Action: MessageUpdateSettings, Settings: &view})

	default:
		c.logger.Debug("unknown message type",
			slog.String("client_id", c.id),
			slog.String("type", msg.Type),
		)
		c.sendError("UNKNOWN_TYPE", "unknown message type: "+msg.Type)
	}
}

// sendCommandError maps queue errors to error frames.
func (c *Client) sendCommandError(err error) {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		c.sendError("NOT_FOUND", err.Error())
	case errors.Is(err, errs.ErrInvalidInput), errors.Is(err, errs.ErrInvalidState):
		c.sendError("VALIDATION_ERROR", err.Error())
	case errors.Is(err, errs.ErrClosed):
		c.sendError("UNAVAILABLE", err.Error())
	default:
		c.logger.Warn("client command failed",
			slog.String("client_id", c.id),
			slog.String("error", err.Error()),
		)
		c.sendError("INTERNAL_ERROR", err.Error())
	}
}

// sendError sends an error message to the client.
func (c *Client) sendError(code, message string) {
	c.sendJSON(ErrorFrame{Type: FrameError, Code: code, Message: message})
}

func (c *Client) sendJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("failed to marshal frame", slog.String("error", err.Error()))
		return
	}
	c.Send(data)
}

// Send sends a message to the client. A full buffer drops the message; clients
// recover from the next snapshot.
func (c *Client) Send(message []byte) {
	c.closedMu.RLock()
	defer c.closedMu.RUnlock()

	if c.closed {
		return
	}

	select {
	case c.send <- message:
	default:
		c.logger.Warn("client send buffer full",
			slog.String("client_id", c.id),
		)
	}
}

// Close closes the client connection. Safe to call more than once.
func (c *Client) Close() {
	c.closedMu.Lock()
	defer c.closedMu.Unlock()

	if c.closed {
		return
	}
	c.closed = true

	close(c.send)
	_ = c.conn.Close()

	c.logger.Debug("client connection closed",
		slog.String("client_id", c.id),
	)
}
