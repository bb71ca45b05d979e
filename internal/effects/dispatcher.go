package effects

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aranya-one/toastd/internal/domain/notification"
	"github.com/aranya-one/toastd/internal/queue"
)

const (
	defaultQueueSize   = 64
	defaultPlayTimeout = 2 * time.Second
)

// FailureReporter is told about every cue outcome. Implemented by the metrics package.
type FailureReporter interface {
	EffectPlayed(channel string, kind notification.Kind)
	EffectFailed(channel string, kind notification.Kind)
	EffectDropped(kind notification.Kind)
}

type job struct {
	ctx    context.Context
	kind   notification.Kind
	effect notification.Effect
	cues   queue.Cues
}

// Dispatcher implements queue.Effects. Cues are queued and played on a single
// goroutine in arrival order; errors and panics never reach the queue.
type Dispatcher struct {
	tone     TonePlayer
	haptic   HapticPlayer
	reporter FailureReporter
	timeout  time.Duration
	logger   *slog.Logger

	jobs      chan job
	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithTonePlayer sets the sound player.
func WithTonePlayer(p TonePlayer) DispatcherOption {
	return func(d *Dispatcher) {
		if p != nil {
			d.tone = p
		}
	}
}

// WithHapticPlayer sets the haptic player.
func WithHapticPlayer(p HapticPlayer) DispatcherOption {
	return func(d *Dispatcher) {
		if p != nil {
			d.haptic = p
		}
	}
}

// WithFailureReporter sets the outcome reporter.
func WithFailureReporter(r FailureReporter) DispatcherOption {
	return func(d *Dispatcher) {
		d.reporter = r
	}
}

// WithQueueSize sets how many pending cues are kept before new ones are dropped.
func WithQueueSize(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.jobs = make(chan job, n)
		}
	}
}

// WithPlayTimeout bounds a single cue.
func WithPlayTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithDispatcherLogger sets the logger.
func WithDispatcherLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDispatcher creates a Dispatcher. Both players default to Noop.
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		tone:    Noop{},
		haptic:  Noop{},
		timeout: defaultPlayTimeout,
		logger:  slog.Default(),
		jobs:    make(chan job, defaultQueueSize),
		done:    make(chan struct{}),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Start launches the worker goroutine. Calling it again is a no-op.
func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		d.wg.Add(1)
		go d.run()
	})
}

// Close stops the worker and waits for the cue in progress. Pending cues are discarded.
func (d *Dispatcher) Close() error {
	d.stopOnce.Do(func() {
		close(d.done)
	})
	d.wg.Wait()
	return nil
}

// Play enqueues the cues without blocking. When the queue is full the cues are dropped.
func (d *Dispatcher) Play(ctx context.Context, kind notification.Kind, effect notification.Effect, cues queue.Cues) {
	if !cues.Any() {
		return
	}

	select {
	case <-d.done:
		return
	default:
	}

	select {
	case d.jobs <- job{ctx: ctx, kind: kind, effect: effect, cues: cues}:
	default:
		d.logger.DebugContext(ctx, "effect queue full, dropping cue", slog.String("kind", kind.String()))
		if d.reporter != nil {
			d.reporter.EffectDropped(kind)
		}
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case <-d.done:
			return
		case j := <-d.jobs:
			d.playJob(j)
		}
	}
}

func (d *Dispatcher) playJob(j job) {
	if j.cues.Haptic {
		d.playOne(j, ChannelHaptic, func(ctx context.Context) error {
			return d.haptic.Vibrate(ctx, Vibration{Kind: j.kind, Pattern: j.effect.Pattern})
		})
	}
	if j.cues.Sound {
		d.playOne(j, ChannelSound, func(ctx context.Context) error {
			return d.tone.PlayTone(ctx, Tone{Kind: j.kind, Hz: j.effect.ToneHz, Duration: j.effect.ToneDuration})
		})
	}
}

func (d *Dispatcher) playOne(j job, channel string, play func(context.Context) error) {
	ctx, cancel := context.WithTimeout(j.ctx, d.timeout)
	defer cancel()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return play(ctx)
	}()

	if err != nil {
		d.logger.DebugContext(ctx, "effect failed",
			slog.String("channel", channel),
			slog.String("kind", j.kind.String()),
			slog.String("error", err.Error()),
		)
		if d.reporter != nil {
			d.reporter.EffectFailed(channel, j.kind)
		}
		return
	}

	if d.reporter != nil {
		d.reporter.EffectPlayed(channel, j.kind)
	}
}
