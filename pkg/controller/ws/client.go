package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/meirborowski/veriflow/pkg/domain/model/auth"
	"github.com/meirborowski/veriflow/pkg/domain/types"
	"github.com/meirborowski/veriflow/pkg/utils/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBufferSize = 32
)

type clientState int

const (
	stateAuthenticated clientState = iota
	stateJoined
	stateClosed
)

// Client is one authenticated websocket connection. It moves through a
// small state machine: authenticated on upgrade, joined after a
// successful join-session, closed on disconnect or expiry.
type Client struct {
	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}
	gateway *Gateway
	token   *auth.Token

	mu        sync.Mutex
	state     clientState
	releaseID types.ReleaseID

	closeOnce sync.Once
}

func newClient(conn *websocket.Conn, gateway *Gateway, token *auth.Token) *Client {
	return &Client{
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		done:    make(chan struct{}),
		gateway: gateway,
		token:   token,
		state:   stateAuthenticated,
	}
}

// TesterID returns the authenticated tester identity of the connection
func (c *Client) TesterID() types.UserID {
	return c.token.Sub
}

// ReleaseID returns the release the client has joined, or "" before join
func (c *Client) ReleaseID() types.ReleaseID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.releaseID
}

func (c *Client) joined() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateJoined
}

// setJoined transitions authenticated -> joined. Returns false when the
// client is already in a session or closed.
func (c *Client) setJoined(releaseID types.ReleaseID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != stateAuthenticated {
		return false
	}
	c.state = stateJoined
	c.releaseID = releaseID
	return true
}

// setLeft transitions joined -> authenticated and returns the release the
// client was in. Returns "" when the client was not in a session.
func (c *Client) setLeft() types.ReleaseID {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != stateJoined {
		return ""
	}
	releaseID := c.releaseID
	c.state = stateAuthenticated
	c.releaseID = ""
	return releaseID
}

// setClosed transitions to closed and returns the release the client was
// in, if any
func (c *Client) setClosed() types.ReleaseID {
	c.mu.Lock()
	defer c.mu.Unlock()
	releaseID := types.ReleaseID("")
	if c.state == stateJoined {
		releaseID = c.releaseID
	}
	c.state = stateClosed
	c.releaseID = ""
	return releaseID
}

// sendEvent queues one event for delivery. Drops the event when the send
// buffer is full; only this client's view goes stale, not the room's.
func (c *Client) sendEvent(ctx context.Context, event *Event) {
	data, err := json.Marshal(event)
	if err != nil {
		logging.From(ctx).Error("failed to marshal event",
			"event_type", event.Type, "error", err)
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (c *Client) sendError(ctx context.Context, err error) {
	c.sendEvent(ctx, &Event{
		Type: EventError,
		Payload: errorPayload{
			Code:    errorCode(err),
			Message: err.Error(),
		},
	})
}

// close signals the write pump, exactly once, to send a close frame and
// drop the connection. The send channel itself is never closed: a room
// broadcast racing the teardown must be able to send without panicking.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// readPump reads commands off the connection and dispatches them until
// the connection dies. Runs in its own goroutine; exactly one per client.
func (c *Client) readPump(ctx context.Context) {
	defer c.gateway.handleDisconnect(ctx, c, "disconnected")

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.From(ctx).Warn("websocket read failed",
					"tester_id", c.TesterID(), "error", err)
			}
			return
		}

		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			c.sendError(ctx, types.ErrBadRequest)
			continue
		}

		// A malformed or failing command must not take down the
		// connection; the error goes back to this client only.
		c.gateway.handleCommand(ctx, c, &cmd)
	}
}

// writePump delivers queued events and keeps the connection alive with
// pings. Runs in its own goroutine; exactly one per client. Owns all
// writes to the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
