package effects

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aranya-one/toastd/internal/domain/notification"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBeepPlayer(t *testing.T) {
	type call struct {
		freq float64
		ms   int
	}
	var calls []call
	p := &BeepPlayer{beep: func(freq float64, ms int) error {
		calls = append(calls, call{freq, ms})
		return nil
	}}

	for _, kind := range notification.Kinds() {
		e := kind.Effect()
		require.NoError(t, p.PlayTone(context.Background(), Tone{Kind: kind, Hz: e.ToneHz, Duration: e.ToneDuration}))
	}

	assert.Equal(t, []call{{800, 300}, {400, 300}, {600, 300}, {500, 300}}, calls)
}

func TestBeepPlayer_Errors(t *testing.T) {
	boom := errors.New("no speaker")
	p := &BeepPlayer{beep: func(float64, int) error { return boom }}

	err := p.PlayTone(context.Background(), Tone{Hz: 500, Duration: 300 * time.Millisecond})
	require.ErrorIs(t, err, boom)

	t.Run("silent tone is skipped", func(t *testing.T) {
		require.NoError(t, p.PlayTone(context.Background(), Tone{}))
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		require.ErrorIs(t, p.PlayTone(ctx, Tone{Hz: 500, Duration: time.Second}), context.Canceled)
	})
}
