// Package effects implements the sound and haptic capability of the queue.
package effects

import (
	"context"
	"errors"
	"time"

	"github.com/aranya-one/toastd/internal/domain/notification"
)

// Tone is one audio cue.
type Tone struct {
	Kind     notification.Kind
	Hz       float64
	Duration time.Duration
}

// Vibration is one haptic cue.
type Vibration struct {
	Kind    notification.Kind
	Pattern notification.Pattern
}

// TonePlayer plays a tone. Implementations may block until the tone ends.
type TonePlayer interface {
	PlayTone(ctx context.Context, tone Tone) error
}

// HapticPlayer plays a vibration pattern.
type HapticPlayer interface {
	Vibrate(ctx context.Context, vibration Vibration) error
}

// Noop plays nothing.
type Noop struct{}

func (Noop) PlayTone(context.Context, Tone) error { return nil }

func (Noop) Vibrate(context.Context, Vibration) error { return nil }

// MultiTone plays a tone on every player and joins their errors.
type MultiTone []TonePlayer

func (m MultiTone) PlayTone(ctx context.Context, tone Tone) error {
	var errs []error
	for _, p := range m {
		if err := p.PlayTone(ctx, tone); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MultiHaptic plays a vibration on every player and joins their errors.
type MultiHaptic []HapticPlayer

func (m MultiHaptic) Vibrate(ctx context.Context, vibration Vibration) error {
	var errs []error
	for _, p := range m {
		if err := p.Vibrate(ctx, vibration); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
