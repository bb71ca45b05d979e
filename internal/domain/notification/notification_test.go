package notification_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/aranya-one/toastd/internal/domain/errs"
	"github.com/aranya-one/toastd/internal/domain/event"
	"github.com/aranya-one/toastd/internal/domain/notification"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("applies defaults", func(t *testing.T) {
		n, err := notification.New(notification.Draft{Message: "Saved"}, notification.DefaultSettings(), now)

		require.NoError(t, err)
		assert.False(t, n.ID().IsZero())
		assert.Equal(t, notification.KindInfo, n.Kind())
		assert.Equal(t, "Saved", n.Message())
		assert.Empty(t, n.Title())
		assert.Equal(t, now, n.CreatedAt())
		assert.Equal(t, notification.DefaultDuration, n.Duration())
		assert.True(t, n.AutoRemove())
		assert.True(t, n.PlaySound())
		assert.True(t, n.PlayHaptic())
		assert.Nil(t, n.Action())
		assert.True(t, n.WillAutoRemove())
		assert.Equal(t, now.Add(5*time.Second), n.ExpiresAt())
	})

	t.Run("explicit fields win over defaults", func(t *testing.T) {
		draft := notification.Draft{Kind: notification.KindError, Message: "Boom"}.
			WithTitle("Upload").
			WithDuration(time.Second).
			WithSound(false).
			WithHaptic(false)

		n, err := notification.New(draft, notification.DefaultSettings(), now)

		require.NoError(t, err)
		assert.Equal(t, notification.KindError, n.Kind())
		assert.Equal(t, "Upload", n.Title())
		assert.Equal(t, time.Second, n.Duration())
		assert.False(t, n.PlaySound())
		assert.False(t, n.PlayHaptic())
	})

	t.Run("cues follow settings when not overridden", func(t *testing.T) {
		settings := notification.Settings{SoundEnabled: false, HapticEnabled: true, Position: notification.DefaultPosition}

		n, err := notification.New(notification.Draft{Message: "x"}, settings, now)

		require.NoError(t, err)
		assert.False(t, n.PlaySound())
		assert.True(t, n.PlayHaptic())
	})

	t.Run("per-call override beats disabled setting", func(t *testing.T) {
		settings := notification.Settings{Position: notification.DefaultPosition}

		n, err := notification.New(notification.Draft{Message: "x"}.WithSound(true), settings, now)

		require.NoError(t, err)
		assert.True(t, n.PlaySound())
		assert.False(t, n.PlayHaptic())
	})

	t.Run("persistent never expires", func(t *testing.T) {
		n, err := notification.New(notification.Draft{Message: "x"}.Persistent(), notification.DefaultSettings(), now)

		require.NoError(t, err)
		assert.False(t, n.AutoRemove())
		assert.False(t, n.WillAutoRemove())
		assert.True(t, n.ExpiresAt().IsZero())
	})

	t.Run("zero duration disables auto-removal", func(t *testing.T) {
		n, err := notification.New(notification.Draft{Message: "x"}.WithDuration(0), notification.DefaultSettings(), now)

		require.NoError(t, err)
		assert.True(t, n.AutoRemove())
		assert.False(t, n.WillAutoRemove())
	})

	t.Run("action is copied", func(t *testing.T) {
		calls := 0
		action := notification.Action{Label: "Undo", OnInvoke: func(context.Context) error {
			calls++
			return nil
		}}

		n, err := notification.New(notification.Draft{Message: "x"}.WithAction(action), notification.DefaultSettings(), now)
		require.NoError(t, err)

		got := n.Action()
		require.NotNil(t, got)
		assert.Equal(t, "Undo", got.Label)
		got.Label = "changed"
		assert.Equal(t, "Undo", n.Action().Label)

		require.NoError(t, got.OnInvoke(context.Background()))
		assert.Equal(t, 1, calls)
	})

	invalid := []struct {
		name  string
		draft notification.Draft
	}{
		{"empty message", notification.Draft{}},
		{"blank message", notification.Draft{Message: "   "}},
		{"unknown kind", notification.Draft{Kind: "fatal", Message: "x"}},
		{"negative duration", notification.Draft{Message: "x"}.WithDuration(-time.Second)},
		{"action without label", notification.Draft{Message: "x"}.WithAction(notification.Action{Event: "undo"})},
	}
	for _, tc := range invalid {
		t.Run(tc.name, func(t *testing.T) {
			_, err := notification.New(tc.draft, notification.DefaultSettings(), now)
			require.ErrorIs(t, err, errs.ErrInvalidInput)
		})
	}
}

func TestNewID_Unique(t *testing.T) {
	seen := make(map[notification.ID]struct{}, 10000)
	for range 10000 {
		id := notification.NewID()
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}

func TestNewID_Ordered(t *testing.T) {
	prev := notification.NewID()
	for range 1000 {
		next := notification.NewID()
		assert.Less(t, prev.String(), next.String())
		prev = next
	}
}

func TestKindEffects(t *testing.T) {
	tests := []struct {
		kind    notification.Kind
		toneHz  float64
		pattern []int64
	}{
		{notification.KindSuccess, 800, []int64{100, 50, 100}},
		{notification.KindError, 400, []int64{200, 100, 200, 100, 200}},
		{notification.KindWarning, 600, []int64{150, 75, 150}},
		{notification.KindInfo, 500, []int64{100}},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			effect := tt.kind.Effect()

			assert.InDelta(t, tt.toneHz, effect.ToneHz, 0)
			assert.Equal(t, 300*time.Millisecond, effect.ToneDuration)
			assert.Equal(t, tt.pattern, effect.Pattern.Millis())
		})
	}

	t.Run("pattern is a copy", func(t *testing.T) {
		effect := notification.KindError.Effect()
		effect.Pattern[0] = time.Hour

		assert.Equal(t, int64(200), notification.KindError.Effect().Pattern.Millis()[0])
	})

	t.Run("unknown kind has no effect", func(t *testing.T) {
		assert.Equal(t, notification.Effect{}, notification.Kind("nope").Effect())
	})
}

func TestParseKind(t *testing.T) {
	k, err := notification.ParseKind("")
	require.NoError(t, err)
	assert.Equal(t, notification.KindInfo, k)

	for _, kind := range notification.Kinds() {
		parsed, parseErr := notification.ParseKind(kind.String())
		require.NoError(t, parseErr)
		assert.Equal(t, kind, parsed)
	}

	_, err = notification.ParseKind("debug")
	require.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestSettings_Apply(t *testing.T) {
	off := false
	bottom := notification.PositionBottomCenter

	t.Run("shallow merge", func(t *testing.T) {
		s, err := notification.DefaultSettings().Apply(notification.SettingsPatch{SoundEnabled: &off})

		require.NoError(t, err)
		assert.False(t, s.SoundEnabled)
		assert.True(t, s.HapticEnabled)
		assert.Equal(t, notification.PositionTopRight, s.Position)
	})

	t.Run("position", func(t *testing.T) {
		s, err := notification.DefaultSettings().Apply(notification.SettingsPatch{Position: &bottom})

		require.NoError(t, err)
		assert.Equal(t, bottom, s.Position)
		assert.True(t, s.Position.IsBottom())
	})

	t.Run("invalid position leaves settings untouched", func(t *testing.T) {
		bad := notification.Position("middle")
		original := notification.DefaultSettings()

		s, err := original.Apply(notification.SettingsPatch{SoundEnabled: &off, Position: &bad})

		require.ErrorIs(t, err, errs.ErrInvalidInput)
		assert.Equal(t, original, s)
	})

	t.Run("empty patch", func(t *testing.T) {
		assert.True(t, notification.SettingsPatch{}.IsEmpty())
		assert.False(t, notification.SettingsPatch{Position: &bottom}.IsEmpty())
	})
}

func TestRequested_RoundTrip(t *testing.T) {
	draft := notification.Draft{Kind: notification.KindWarning, Message: "Disk almost full"}.
		WithTitle("Storage").
		WithDuration(1500 * time.Millisecond).
		Persistent().
		WithAction(notification.Action{Label: "Open", Event: "storage.open"})

	req := notification.NewRequested(draft, event.NewMetadata("toastctl", ""))

	assert.Equal(t, notification.EventTypeRequested, req.EventType())
	assert.NotEmpty(t, req.AggregateID())

	back, err := req.Draft()
	require.NoError(t, err)
	assert.Equal(t, draft.Kind, back.Kind)
	assert.Equal(t, draft.Title, back.Title)
	assert.Equal(t, draft.Message, back.Message)
	require.NotNil(t, back.Duration)
	assert.Equal(t, 1500*time.Millisecond, *back.Duration)
	require.NotNil(t, back.AutoRemove)
	assert.False(t, *back.AutoRemove)
	require.NotNil(t, back.Action)
	assert.Equal(t, "storage.open", back.Action.Event)
}

func TestRequested_InvalidDuration(t *testing.T) {
	for _, ms := range []int64{-1, 18446744073710, math.MaxInt64} {
		req := &notification.Requested{Message: "x", DurationMS: &ms}

		_, err := req.Draft()
		require.ErrorIs(t, err, errs.ErrInvalidInput, "duration_ms=%d", ms)
	}
}

func TestDurationFromMillis(t *testing.T) {
	maxMillis := int64(math.MaxInt64 / int64(time.Millisecond))

	tests := []struct {
		name    string
		ms      int64
		want    time.Duration
		wantErr bool
	}{
		{"zero", 0, 0, false},
		{"one second", 1000, time.Second, false},
		{"largest representable", maxMillis, time.Duration(maxMillis) * time.Millisecond, false},
		{"negative", -1, 0, true},
		{"overflows", maxMillis + 1, 0, true},
		{"wraps to microseconds", 18446744073710, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := notification.DurationFromMillis(tt.ms)
			if tt.wantErr {
				require.ErrorIs(t, err, errs.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
