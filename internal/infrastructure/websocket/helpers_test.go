package websocket_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	ws "github.com/aranya-one/toastd/internal/infrastructure/websocket"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// createWSConnPair returns the server and client ends of a real connection.
func createWSConnPair(t *testing.T) (*websocket.Conn, *websocket.Conn) {
	t.Helper()

	upgrader := websocket.Upgrader{
		CheckOrigin: func(_ *http.Request) bool { return true },
	}

	serverChan := make(chan *websocket.Conn, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serverChan <- conn
	}))
	t.Cleanup(server.Close)

	wsURL := "ws" + server.URL[4:] // Convert http:// to ws://
	clientConn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = clientConn.Close() })

	select {
	case serverConn := <-serverChan:
		t.Cleanup(func() { _ = serverConn.Close() })
		return serverConn, clientConn
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for server connection")
		return nil, nil
	}
}

// startHub runs a hub until the test ends.
func startHub(t *testing.T, opts ...ws.HubOption) *ws.Hub {
	t.Helper()

	hub := ws.NewHub(opts...)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	require.Eventually(t, hub.IsRunning, time.Second, 5*time.Millisecond)

	t.Cleanup(func() {
		cancel()
		<-hub.Stopped()
	})
	return hub
}

// connectClient registers a client with running pumps and returns the browser end.
func connectClient(t *testing.T, hub *ws.Hub, opts ...ws.ClientOption) (*ws.Client, *websocket.Conn) {
	t.Helper()

	serverConn, clientConn := createWSConnPair(t)
	client := ws.NewClient(hub, serverConn, opts...)
	require.True(t, hub.Register(client))

	go client.WritePump()
	go client.ReadPump()

	require.Eventually(t, func() bool { return hub.ClientCount() >= 1 }, time.Second, 5*time.Millisecond)
	return client, clientConn
}

// readFrame reads one JSON frame from the browser end.
func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var frame map[string]any
	require.NoError(t, json.Unmarshal(data, &frame))
	return frame
}

// readFrameOfType skips frames until one of the given type arrives.
func readFrameOfType(t *testing.T, conn *websocket.Conn, frameType string) map[string]any {
	t.Helper()

	for range 20 {
		frame := readFrame(t, conn)
		if frame["type"] == frameType {
			return frame
		}
	}
	t.Fatalf("no %q frame received", frameType)
	return nil
}

func writeJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()

	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}
