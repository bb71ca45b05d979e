package websocket_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/aranya-one/toastd/internal/domain/notification"
	ws "github.com/aranya-one/toastd/internal/infrastructure/websocket"
	"github.com/aranya-one/toastd/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeSnapshot(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	manager := queue.NewManager(queue.WithClock(func() time.Time { return now }))
	defer manager.Close()

	ctx := context.Background()
	id, err := manager.Error(ctx, "Upload failed", notification.Draft{}.
		WithTitle("Upload").
		WithAction(notification.Action{Label: "Retry", Event: "upload.retry"}))
	require.NoError(t, err)

	data, err := ws.EncodeSnapshot(manager.Snapshot())
	require.NoError(t, err)

	var frame ws.SnapshotFrame
	require.NoError(t, json.Unmarshal(data, &frame))

	assert.Equal(t, ws.FrameSnapshot, frame.Type)
	require.Len(t, frame.Notifications, 1)

	view := frame.Notifications[0]
	assert.Equal(t, id.String(), view.ID)
	assert.Equal(t, "error", view.Kind)
	assert.Equal(t, "Upload", view.Title)
	assert.Equal(t, int64(5000), view.DurationMS)
	assert.True(t, view.AutoRemove)
	require.NotNil(t, view.ExpiresAt)
	assert.True(t, now.Add(5*time.Second).Equal(*view.ExpiresAt))
	require.NotNil(t, view.Action)
	assert.Equal(t, "Retry", view.Action.Label)
	assert.Equal(t, "upload.retry", view.Action.Event)

	assert.Equal(t, string(notification.DefaultPosition), frame.Settings.Position)
	assert.True(t, frame.Settings.SoundEnabled)
}

func TestEncodeSnapshot_EmptyQueue(t *testing.T) {
	manager := queue.NewManager()
	defer manager.Close()

	data, err := ws.EncodeSnapshot(manager.Snapshot())
	require.NoError(t, err)

	assert.Contains(t, string(data), `"notifications":[]`)
	assert.Contains(t, string(data), `"type":"snapshot"`)
}
