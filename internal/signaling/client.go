package signaling

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/duelink/duelink/internal/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. SDP payloads fit comfortably.
	maxMessageSize = 64 * 1024
)

// Client wraps a single websocket connection to one participant.
type Client struct {
	Hub  *Hub
	Conn *websocket.Conn

	// ID is the session id assigned by the hub at registration.
	ID string

	// Send is the buffered channel of outbound messages, drained by
	// WritePump so there is exactly one writer per connection.
	Send chan *protocol.Message
}

// ReadPump pumps messages from the websocket connection to the hub.
//
// It runs in a per-connection goroutine; all reads on the connection happen
// here. Malformed frames end the connection but never the hub.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg protocol.Message
		if err := c.Conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("websocket read failed", "client", c.ID, "err", err)
			}
			break
		}
		c.Hub.Inbound <- inbound{client: c, msg: &msg}
	}
}

// WritePump pumps messages from the hub to the websocket connection and
// sends periodic pings. One goroutine per connection; the single writer.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteJSON(message); err != nil {
				slog.Warn("websocket write failed", "client", c.ID, "err", err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
