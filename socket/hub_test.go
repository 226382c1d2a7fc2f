package socket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jotter/config"
	"jotter/internal/jot/repository"
	"jotter/internal/jot/service"
)

// Helper function to read messages from a WebSocket connection with a timeout.
func readMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	var msg WSMessage
	// Set a deadline to avoid tests hanging forever.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, p, err := conn.ReadMessage()
	require.NoError(t, err, "Failed to read message from WebSocket")
	err = json.Unmarshal(p, &msg)
	require.NoError(t, err, "Failed to unmarshal WSMessage JSON")
	return msg
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := NewHub()
	go hub.Run(ctx)
	return hub
}

func expectWake(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected a wake-up")
	}
}

func expectNoWake(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
		t.Fatal("unexpected wake-up")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubNotifiesSubscribersOfSameToken(t *testing.T) {
	hub := startHub(t)

	a, cancelA := hub.Subscribe("abc")
	defer cancelA()
	b, cancelB := hub.Subscribe("abc")
	defer cancelB()
	other, cancelOther := hub.Subscribe("def")
	defer cancelOther()

	hub.Notify("abc")
	expectWake(t, a)
	expectWake(t, b)
	expectNoWake(t, other)
}

func TestHubCoalescesPendingWakeUps(t *testing.T) {
	hub := startHub(t)
	ch, cancel := hub.Subscribe("abc")
	defer cancel()

	hub.Notify("abc")
	hub.Notify("abc")
	hub.Notify("abc")
	// The hub handles one event at a time, so this returns after the notifications are fanned out.
	_, release := hub.Subscribe("sync")
	release()

	expectWake(t, ch)
	expectNoWake(t, ch)
}

func TestHubUnsubscribe(t *testing.T) {
	hub := startHub(t)
	ch, cancel := hub.Subscribe("abc")
	cancel()
	cancel()

	hub.Notify("abc")
	expectNoWake(t, ch)
}

func TestHubStopped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	// Neither call may block once the hub is gone.
	ch, release := hub.Subscribe("abc")
	hub.Notify("abc")
	release()
	expectNoWake(t, ch)
}

func newSyncService(t *testing.T, hub *Hub) (*service.SyncService, *repository.FileStore) {
	t.Helper()
	docs, err := repository.NewFileStore(t.TempDir())
	require.NoError(t, err)
	tokens, err := service.NewTokenStore(config.ModeMulti, docs, "http://localhost:8000", "")
	require.NoError(t, err)
	writers := service.NewWriterAttribution()
	watcher := service.NewChangeWatcher(docs, writers, 20*time.Millisecond, hub)
	return service.NewSyncService(tokens, docs, writers, watcher, hub), docs
}

func TestServeUpdatesIntegration(t *testing.T) {
	// 1. Setup store, hub and sync service
	hub := startHub(t)
	svc, docs := newSyncService(t, hub)

	// 2. Setup Test HTTP Server
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The token and session are normally bound by middleware.
		ServeUpdates(svc, w, r, "abc123", r.URL.Query().Get("sid"))
	}))
	defer server.Close()

	// Convert http:// to ws://
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/updates"

	// 3. Client 1 connects and receives the seeded jot, then the URL cleanup.
	conn1, _, err := websocket.DefaultDialer.Dial(wsURL+"?sid=s1", nil)
	require.NoError(t, err, "Client 1 failed to connect")
	defer conn1.Close()

	initialMsg := readMessage(t, conn1)
	assert.Equal(t, UpdateType, initialMsg.Type)
	assert.Contains(t, initialMsg.Payload, "http://localhost:8000/?token=abc123")
	assert.Equal(t, CleanURLType, readMessage(t, conn1).Type)

	// 4. Client 2 joins the same jot.
	conn2, _, err := websocket.DefaultDialer.Dial(wsURL+"?sid=s2", nil)
	require.NoError(t, err, "Client 2 failed to connect")
	defer conn2.Close()

	assert.Equal(t, initialMsg.Payload, readMessage(t, conn2).Payload)
	assert.Equal(t, CleanURLType, readMessage(t, conn2).Type)

	// 5. Client 2 writes; only client 1 hears about it.
	require.NoError(t, svc.Write(context.Background(), "abc123", "s2", "hello from two"))

	broadcastMsg := readMessage(t, conn1)
	assert.Equal(t, UpdateType, broadcastMsg.Type)
	assert.Equal(t, "hello from two", broadcastMsg.Payload)

	conn2.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err = conn2.ReadMessage()
	assert.Error(t, err, "the writer must not receive its own change")

	// 6. An edit made outside the server also reaches client 1.
	require.NoError(t, docs.Write(context.Background(), "abc123", "edited on disk"))
	assert.Equal(t, "edited on disk", readMessage(t, conn1).Payload)
}

type recordingNotifier struct {
	tokens chan string
}

func (n *recordingNotifier) Notify(token string) {
	select {
	case n.tokens <- token:
	default:
	}
}

func TestDirNotifierReportsJotFiles(t *testing.T) {
	dir := t.TempDir()
	notifier := &recordingNotifier{tokens: make(chan string, 64)}
	d, err := NewDirNotifier(dir, notifier)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "jot_abc123.txt"), []byte("hello"), 0o644))

	select {
	case token := <-notifier.tokens:
		assert.Equal(t, "abc123", token)
	case <-time.After(2 * time.Second):
		t.Fatal("no notification for the jot file")
	}
}
