package socket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"jotter/internal/jot/service"
	"jotter/pkg/logger"
)

const (
	UpdateType   = "UPDATE"    // Replace the editor content with payload
	CleanURLType = "CLEAN_URL" // Strip the token from the address bar

	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 512
)

type WSMessage struct {
	Type    string `json:"type"`
	Payload string `json:"payload,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Client is one /updates connection. It implements service.Pusher.
type Client struct {
	Conn      *websocket.Conn
	SessionID string

	mu sync.Mutex // serializes writes, gorilla allows one concurrent writer
}

// ServeUpdates upgrades the request and streams jot changes until the peer goes away.
func ServeUpdates(svc *service.SyncService, w http.ResponseWriter, r *http.Request, token, sessionID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Sugar.Errorf("Websocket upgrade failed: %v", err)
		return
	}

	// The request context outlives the hijack and is cancelled on server shutdown.
	ctx, cancel := context.WithCancel(r.Context())
	client := &Client{Conn: conn, SessionID: sessionID}
	defer func() {
		cancel()
		conn.Close()
	}()

	go client.readPump(cancel)
	go client.pingPump(ctx)

	if err := svc.Subscribe(ctx, token, sessionID, client); err != nil {
		logger.Sugar.Warnf("Subscription for session %s ended: %v", sessionID, err)
		return
	}
	client.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
}

func (c *Client) PushContent(content string) error {
	return c.writeJSON(WSMessage{Type: UpdateType, Payload: content})
}

func (c *Client) CleanURL() error {
	return c.writeJSON(WSMessage{Type: CleanURLType})
}

func (c *Client) writeJSON(msg WSMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.Conn.WriteJSON(msg)
}

func (c *Client) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.Conn.WriteMessage(messageType, data)
}

// readPump only exists to notice the peer closing; clients never send anything we use.
func (c *Client) readPump(cancel context.CancelFunc) {
	defer cancel()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				logger.Sugar.Errorf("Websocket for session %s closed unexpectedly: %v", c.SessionID, err)
			}
			return
		}
	}
}

func (c *Client) pingPump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return // Connection is dead
			}
		}
	}
}
