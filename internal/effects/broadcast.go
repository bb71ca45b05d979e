package effects

import (
	"context"
	"encoding/json"
	"fmt"
)

// Frame types sent to clients.
const (
	FrameTypeEffect = "effect"

	ChannelSound  = "sound"
	ChannelHaptic = "haptic"
)

// Frame asks connected clients to render a cue themselves.
type Frame struct {
	Type      string  `json:"type"`
	Channel   string  `json:"channel"`
	Kind      string  `json:"kind"`
	ToneHz    float64 `json:"tone_hz,omitempty"`
	ToneMS    int64   `json:"tone_ms,omitempty"`
	PatternMS []int64 `json:"pattern_ms,omitempty"`
}

// Sink delivers raw frames to every connected client.
type Sink interface {
	BroadcastToAll(message []byte)
}

// BroadcastPlayer forwards cues to clients, which play them with WebAudio and
// navigator.vibrate. It implements both TonePlayer and HapticPlayer.
type BroadcastPlayer struct {
	sink Sink
}

// NewBroadcastPlayer creates a BroadcastPlayer.
func NewBroadcastPlayer(sink Sink) *BroadcastPlayer {
	return &BroadcastPlayer{sink: sink}
}

func (p *BroadcastPlayer) PlayTone(_ context.Context, tone Tone) error {
	return p.send(Frame{
		Type:    FrameTypeEffect,
		Channel: ChannelSound,
		Kind:    tone.Kind.String(),
		ToneHz:  tone.Hz,
		ToneMS:  tone.Duration.Milliseconds(),
	})
}

func (p *BroadcastPlayer) Vibrate(_ context.Context, vibration Vibration) error {
	return p.send(Frame{
		Type:      FrameTypeEffect,
		Channel:   ChannelHaptic,
		Kind:      vibration.Kind.String(),
		PatternMS: vibration.Pattern.Millis(),
	})
}

func (p *BroadcastPlayer) send(frame Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal effect frame: %w", err)
	}
	p.sink.BroadcastToAll(data)
	return nil
}
