package websocket

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/aranya-one/toastd/internal/queue"
)

// SnapshotSource is the part of the queue the broadcaster reads.
// Declared on the consumer side per project guidelines.
type SnapshotSource interface {
	Subscribe(ctx context.Context) *queue.Subscription
}

// FrameSink receives encoded frames.
type FrameSink interface {
	BroadcastToAll(message []byte)
}

// Broadcaster forwards queue snapshots to every WebSocket client.
type Broadcaster struct {
	sink   FrameSink
	source SnapshotSource
	logger *slog.Logger

	// running indicates if the broadcaster is active.
	running bool

	// runningMu protects the running flag.
	runningMu sync.RWMutex
}

// BroadcasterOption configures a Broadcaster.
type BroadcasterOption func(*Broadcaster)

// WithBroadcasterLogger sets the logger for the broadcaster.
func WithBroadcasterLogger(logger *slog.Logger) BroadcasterOption {
	return func(b *Broadcaster) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBroadcaster creates a new Broadcaster.
func NewBroadcaster(sink FrameSink, source SnapshotSource, opts ...BroadcasterOption) *Broadcaster {
	b := &Broadcaster{
		sink:   sink,
		source: source,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Run subscribes to the queue and broadcasts every snapshot until ctx is done or
// the queue is closed. It blocks.
func (b *Broadcaster) Run(ctx context.Context) error {
	b.runningMu.Lock()
	if b.running {
		b.runningMu.Unlock()
		return errors.New("broadcaster is already running")
	}
	b.running = true
	b.runningMu.Unlock()

	defer func() {
		b.runningMu.Lock()
		b.running = false
		b.runningMu.Unlock()
	}()

	sub := b.source.Subscribe(ctx)
	defer sub.Close()

	b.logger.InfoContext(ctx, "websocket broadcaster started")

	for snap := range sub.C() {
		b.broadcast(ctx, snap)
	}

	b.logger.InfoContext(ctx, "websocket broadcaster stopped")
	return nil
}

// IsRunning returns whether the broadcaster is running.
func (b *Broadcaster) IsRunning() bool {
	b.runningMu.RLock()
	defer b.runningMu.RUnlock()
	return b.running
}

func (b *Broadcaster) broadcast(ctx context.Context, snap queue.Snapshot) {
	data, err := EncodeSnapshot(snap)
	if err != nil {
		b.logger.ErrorContext(ctx, "failed to encode snapshot",
			slog.Uint64("seq", snap.Seq),
			slog.String("error", err.Error()),
		)
		return
	}

	b.sink.BroadcastToAll(data)

	b.logger.DebugContext(ctx, "snapshot broadcast",
		slog.Uint64("seq", snap.Seq),
		slog.String("change", string(snap.Change)),
		slog.Int("notifications", len(snap.Notifications)),
	)
}
