package effects

import (
	"context"
	"fmt"

	"github.com/gen2brain/beeep"
)

// BeepPlayer plays tones on the host speaker.
type BeepPlayer struct {
	beep func(freq float64, durationMS int) error
}

// NewBeepPlayer creates a BeepPlayer backed by beeep.
func NewBeepPlayer() *BeepPlayer {
	return &BeepPlayer{beep: beeep.Beep}
}

// PlayTone blocks for the tone duration.
func (p *BeepPlayer) PlayTone(ctx context.Context, tone Tone) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if tone.Hz <= 0 || tone.Duration <= 0 {
		return nil
	}
	if err := p.beep(tone.Hz, int(tone.Duration.Milliseconds())); err != nil {
		return fmt.Errorf("beep %.0f Hz: %w", tone.Hz, err)
	}
	return nil
}
