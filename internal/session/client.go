package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/duelink/duelink/internal/protocol"
)

const (
	// maxReconnectAttempts caps consecutive failed connection attempts
	// before the session is declared failed.
	maxReconnectAttempts = 5

	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024

	// outgoingBuffer also serves as the offline queue: messages sent while
	// the socket is down stay in the channel, in order, until the next
	// connection drains them.
	outgoingBuffer = 256
)

// newReconnectBackoff returns the reconnect schedule: 2s, 4s, 8s, 16s,
// then capped at 30s, with no jitter.
func newReconnectBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * time.Second
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// ConnEventType describes a change in rendezvous connectivity.
type ConnEventType int

const (
	// ConnOpened means the socket is up; any queued messages are flushing.
	ConnOpened ConnEventType = iota
	// ConnClosed means the socket dropped and a reconnect is scheduled.
	ConnClosed
	// ConnFailed means reconnect attempts are exhausted; terminal.
	ConnFailed
)

// ConnEvent is delivered on every connectivity transition.
type ConnEvent struct {
	Type ConnEventType
	Err  error
}

// Client maintains a websocket connection to the rendezvous server,
// transparently reconnecting with exponential backoff when it drops.
type Client struct {
	url   string
	clock clockwork.Clock

	incoming   chan *protocol.Message
	connEvents chan ConnEvent
	outgoing   chan *protocol.Message

	done      chan struct{}
	closeOnce sync.Once
}

func NewClient(url string, clock clockwork.Clock) *Client {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Client{
		url:        url,
		clock:      clock,
		incoming:   make(chan *protocol.Message, 32),
		connEvents: make(chan ConnEvent, 8),
		outgoing:   make(chan *protocol.Message, outgoingBuffer),
		done:       make(chan struct{}),
	}
}

// Incoming delivers messages received from the server.
func (c *Client) Incoming() <-chan *protocol.Message {
	return c.incoming
}

// ConnEvents delivers connectivity transitions.
func (c *Client) ConnEvents() <-chan ConnEvent {
	return c.connEvents
}

// Send queues a message for delivery. If the socket is down the message
// waits in the queue and is flushed, in order, once reconnected. When the
// queue is full the message is dropped.
func (c *Client) Send(msg *protocol.Message) {
	select {
	case c.outgoing <- msg:
	default:
		slog.Warn("outgoing queue full, dropping message", "type", msg.Type)
	}
}

// Close stops the client and terminates Run.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// Run dials the server and pumps messages until Close is called or the
// reconnect budget is exhausted. It blocks; run it in its own goroutine.
func (c *Client) Run() {
	bo := newReconnectBackoff()
	attempts := 0

	for first := true; ; first = false {
		if !first {
			attempts++
			if attempts > maxReconnectAttempts {
				c.notify(ConnEvent{
					Type: ConnFailed,
					Err:  NewError("reconnect", ErrReconnectExhausted),
				})
				return
			}
			delay := bo.NextBackOff()
			slog.Info("reconnecting to rendezvous server",
				"attempt", attempts, "delay", delay)
			select {
			case <-c.clock.After(delay):
			case <-c.done:
				return
			}
		}

		select {
		case <-c.done:
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
		if err != nil {
			slog.Warn("rendezvous dial failed", "url", c.url, "error", err)
			continue
		}

		attempts = 0
		bo.Reset()
		c.notify(ConnEvent{Type: ConnOpened})

		c.pump(conn)

		select {
		case <-c.done:
			return
		default:
		}
		c.notify(ConnEvent{Type: ConnClosed})
	}
}

// notify delivers a connectivity event unless the client is shutting down.
func (c *Client) notify(ev ConnEvent) {
	select {
	case c.connEvents <- ev:
	case <-c.done:
	}
}

// pump runs the read loop on the calling goroutine and a write loop on a
// second goroutine, returning once the connection is dead.
func (c *Client) pump(conn *websocket.Conn) {
	stop := make(chan struct{})
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		defer conn.Close()

		for {
			select {
			case msg := <-c.outgoing:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(msg); err != nil {
					slog.Warn("write failed", "error", err)
					return
				}
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-stop:
				return
			case <-c.done:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
		}
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg protocol.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("unexpected socket close", "error", err)
			}
			break
		}
		select {
		case c.incoming <- &msg:
		case <-c.done:
			close(stop)
			<-writerDone
			return
		}
	}

	close(stop)
	<-writerDone
}
