// Package websocket pushes queue snapshots and effect cues to browser clients and
// accepts their dismiss/action/settings commands.
package websocket

import (
	"context"
	"log/slog"
	"sync"
)

// Hub configuration constants.
const (
	defaultBroadcastBufferSize = 256
)

// Hub manages all WebSocket connections. Every client receives every frame; there
// is one queue per process, so there are no rooms.
type Hub struct {
	// clients holds all connected clients.
	clients map[*Client]bool

	// register channel for new client connections.
	register chan *Client

	// unregister channel for client disconnections.
	unregister chan *Client

	// broadcast channel for frames to be sent to every client.
	broadcast chan []byte

	// mu protects concurrent access to clients.
	mu sync.RWMutex

	// logger for structured logging.
	logger *slog.Logger

	// done signals when the hub should stop.
	done chan struct{}

	// stopped is closed once Run has returned and every client is closed.
	stopped chan struct{}

	// running indicates if the hub is currently running.
	running bool

	// runningMu protects the running flag.
	runningMu sync.RWMutex

	stopOnce sync.Once
}

// HubOption configures the Hub.
type HubOption func(*Hub)

// WithHubLogger sets the logger for the hub.
func WithHubLogger(logger *slog.Logger) HubOption {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithBroadcastBuffer sets how many frames may wait for the hub loop.
func WithBroadcastBuffer(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.broadcast = make(chan []byte, n)
		}
	}
}

// NewHub creates a new Hub with the given options.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, defaultBroadcastBufferSize),
		logger:     slog.Default(),
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Run starts the hub's main event loop.
// It should be run as a goroutine.
func (h *Hub) Run(ctx context.Context) {
	h.runningMu.Lock()
	if h.running {
		h.runningMu.Unlock()
		return
	}
	h.running = true
	h.runningMu.Unlock()

	h.logger.InfoContext(ctx, "websocket hub started")
	defer close(h.stopped)

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case <-h.done:
			h.shutdown()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case msg := <-h.broadcast:
			h.handleBroadcast(msg)
		}
	}
}

// Stop signals the hub to stop. Safe to call more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
	})
}

// Stopped is closed after Run returned.
func (h *Hub) Stopped() <-chan struct{} {
	return h.stopped
}

// shutdown performs graceful shutdown of all connections.
func (h *Hub) shutdown() {
	h.runningMu.Lock()
	h.running = false
	h.runningMu.Unlock()

	h.mu.Lock()
	defer h.mu.Unlock()

	// Close all client connections
	for client := range h.clients {
		client.Close()
	}
	h.clients = make(map[*Client]bool)

	h.logger.Info("websocket hub stopped")
}

// Register registers a new client with the hub. It returns false when the hub
// has stopped; the caller then owns closing the client.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	case <-h.stopped:
		return false
	}
}

// Unregister unregisters a client from the hub.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	case <-h.stopped:
	}
}

// registerClient adds a client to the hub.
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = true

	h.logger.Debug("client registered",
		slog.String("client_id", client.ID()),
		slog.Int("total_clients", len(h.clients)),
	)
}

// unregisterClient removes a client from the hub.
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}

	delete(h.clients, client)
	client.Close()

	h.logger.Debug("client unregistered",
		slog.String("client_id", client.ID()),
		slog.Int("total_clients", len(h.clients)),
	)
}

// BroadcastToAll queues a frame for every connected client. It never blocks:
// when the hub is stopped or its buffer is full the frame is dropped.
func (h *Hub) BroadcastToAll(message []byte) {
	select {
	case <-h.done:
		return
	default:
	}

	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("hub broadcast buffer full, dropping frame")
	}
}

// handleBroadcast sends a frame to every client.
func (h *Hub) handleBroadcast(message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		client.Send(message)
	}
}

// ClientCount returns the total number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// IsRunning returns whether the hub is currently running.
func (h *Hub) IsRunning() bool {
	h.runningMu.RLock()
	defer h.runningMu.RUnlock()
	return h.running
}
