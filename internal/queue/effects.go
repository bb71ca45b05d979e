package queue

import (
	"context"

	"github.com/aranya-one/toastd/internal/domain/notification"
)

// Cues selects which side effects to emit for one notification.
type Cues struct {
	Sound  bool
	Haptic bool
}

// Any reports whether at least one cue is on.
func (c Cues) Any() bool { return c.Sound || c.Haptic }

// Effects plays the audio tone and haptic pattern of a freshly added notification.
//
// Play must return promptly: the queue calls it once per Add and never waits for
// the effect to finish. Failures are the implementation's to swallow.
type Effects interface {
	Play(ctx context.Context, kind notification.Kind, effect notification.Effect, cues Cues)
}

// NoEffects is the default Effects; it does nothing.
type NoEffects struct{}

// Play does nothing.
func (NoEffects) Play(context.Context, notification.Kind, notification.Effect, Cues) {}
