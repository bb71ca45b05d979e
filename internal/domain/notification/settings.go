package notification

import (
	"fmt"

	"github.com/aranya-one/toastd/internal/domain/errs"
)

// Position is the screen anchor the rendering layer stacks notifications at.
type Position string

const (
	PositionTopLeft      Position = "top-left"
	PositionTopCenter    Position = "top-center"
	PositionTopRight     Position = "top-right"
	PositionBottomLeft   Position = "bottom-left"
	PositionBottomCenter Position = "bottom-center"
	PositionBottomRight  Position = "bottom-right"
)

// DefaultPosition is used when no position has been configured.
const DefaultPosition = PositionTopRight

// IsValid reports whether p is one of the six anchors.
func (p Position) IsValid() bool {
	switch p {
	case PositionTopLeft, PositionTopCenter, PositionTopRight,
		PositionBottomLeft, PositionBottomCenter, PositionBottomRight:
		return true
	default:
		return false
	}
}

// IsBottom reports whether the anchor is on the bottom edge. Renderers at the bottom
// usually display the newest entry first; the queue order itself never changes.
func (p Position) IsBottom() bool {
	return p == PositionBottomLeft || p == PositionBottomCenter || p == PositionBottomRight
}

// Settings are the process-wide switches consulted on every Add.
type Settings struct {
	SoundEnabled  bool
	HapticEnabled bool
	Position      Position
}

// DefaultSettings returns sound and haptics on, anchored top-right.
func DefaultSettings() Settings {
	return Settings{
		SoundEnabled:  true,
		HapticEnabled: true,
		Position:      DefaultPosition,
	}
}

// SettingsPatch is a partial update; nil fields are left untouched.
type SettingsPatch struct {
	SoundEnabled  *bool
	HapticEnabled *bool
	Position      *Position
}

// IsEmpty reports whether the patch changes nothing.
func (p SettingsPatch) IsEmpty() bool {
	return p.SoundEnabled == nil && p.HapticEnabled == nil && p.Position == nil
}

// Apply shallow-merges patch into a copy of s.
func (s Settings) Apply(patch SettingsPatch) (Settings, error) {
	if patch.Position != nil && !patch.Position.IsValid() {
		return s, fmt.Errorf("%w: unknown position %q", errs.ErrInvalidInput, *patch.Position)
	}

	if patch.SoundEnabled != nil {
		s.SoundEnabled = *patch.SoundEnabled
	}
	if patch.HapticEnabled != nil {
		s.HapticEnabled = *patch.HapticEnabled
	}
	if patch.Position != nil {
		s.Position = *patch.Position
	}
	return s, nil
}
