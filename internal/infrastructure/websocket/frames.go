package websocket

import (
	"encoding/json"
	"fmt"

	"github.com/aranya-one/toastd/internal/queue"
)

// Server to client frame types. Effect frames are produced by the effects package.
const (
	FrameSnapshot = "snapshot"
	FrameAck      = "ack"
	FramePong     = "pong"
	FrameError    = "error"
)

// Client to server message types.
const (
	MessagePing           = "ping"
	MessageDismiss        = "dismiss"
	MessageInvokeAction   = "invoke_action"
	MessageClearAll       = "clear_all"
	MessageUpdateSettings = "update_settings"
)

// ClientMessage represents a message from client to server.
type ClientMessage struct {
	Type     string                      `json:"type"`
	ID       string                      `json:"id,omitempty"`
	Settings *queue.SettingsPatchRequest `json:"settings,omitempty"`
}

// SnapshotFrame carries the full active set. Clients keep the frame with the
// highest seq; older ones may arrive late right after connecting.
type SnapshotFrame struct {
	Type string `json:"type"`
	queue.SnapshotView
}

// AckFrame confirms a client command.
type AckFrame struct {
	Type     string              `json:"type"`
	Action   string              `json:"action"`
	ID       string              `json:"id,omitempty"`
	Removed  *bool               `json:"removed,omitempty"`
	Cleared  *int                `json:"cleared,omitempty"`
	Settings *queue.SettingsView `json:"settings,omitempty"`
}

// ErrorFrame reports a rejected client command.
type ErrorFrame struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// EncodeSnapshot marshals a snapshot frame.
func EncodeSnapshot(s queue.Snapshot) ([]byte, error) {
	data, err := json.Marshal(SnapshotFrame{Type: FrameSnapshot, SnapshotView: s.View()})
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}
