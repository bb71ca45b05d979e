package notification

import (
	"fmt"
	"time"

	"github.com/aranya-one/toastd/internal/domain/errs"
)

// Kind is the semantic category of a notification.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindWarning Kind = "warning"
	KindInfo    Kind = "info"
)

// ToneDuration is how long a notification tone rings before it decays.
const ToneDuration = 300 * time.Millisecond

// Pattern is a haptic sequence of alternating vibrate/pause durations, played once.
type Pattern []time.Duration

// Millis returns the pattern as plain milliseconds, the form vibration APIs take.
func (p Pattern) Millis() []int64 {
	out := make([]int64, len(p))
	for i, d := range p {
		out[i] = d.Milliseconds()
	}
	return out
}

// Effect describes the audio tone and haptic pattern emitted for a kind.
type Effect struct {
	ToneHz       float64
	ToneDuration time.Duration
	Pattern      Pattern
}

func ms(values ...int) Pattern {
	p := make(Pattern, len(values))
	for i, v := range values {
		p[i] = time.Duration(v) * time.Millisecond
	}
	return p
}

var effectTable = map[Kind]Effect{
	KindSuccess: {ToneHz: 800, ToneDuration: ToneDuration, Pattern: ms(100, 50, 100)},
	KindError:   {ToneHz: 400, ToneDuration: ToneDuration, Pattern: ms(200, 100, 200, 100, 200)},
	KindWarning: {ToneHz: 600, ToneDuration: ToneDuration, Pattern: ms(150, 75, 150)},
	KindInfo:    {ToneHz: 500, ToneDuration: ToneDuration, Pattern: ms(100)},
}

// Kinds returns all kinds in a stable order.
func Kinds() []Kind {
	return []Kind{KindSuccess, KindError, KindWarning, KindInfo}
}

// ParseKind converts a string to a Kind. The empty string maps to KindInfo.
func ParseKind(s string) (Kind, error) {
	if s == "" {
		return KindInfo, nil
	}
	k := Kind(s)
	if !k.IsValid() {
		return "", fmt.Errorf("%w: unknown kind %q", errs.ErrInvalidInput, s)
	}
	return k, nil
}

// IsValid reports whether k is one of the four known kinds.
func (k Kind) IsValid() bool {
	_, ok := effectTable[k]
	return ok
}

// String returns the kind name.
func (k Kind) String() string { return string(k) }

// Effect returns the tone and haptic pattern for k.
// The returned pattern is a copy; unknown kinds yield the zero Effect.
func (k Kind) Effect() Effect {
	e, ok := effectTable[k]
	if !ok {
		return Effect{}
	}
	e.Pattern = append(Pattern(nil), e.Pattern...)
	return e
}
