package signaling

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/duelink/duelink/internal/protocol"
)

const (
	// roomRetention is how long a memberless room survives before the
	// sweeper evicts it.
	roomRetention = 30 * time.Minute

	sweepInterval = time.Minute
)

// inbound pairs a parsed message with the connection it arrived on.
type inbound struct {
	client *Client
	msg    *protocol.Message
}

// Hub is the rendezvous service's brain: a single goroutine that owns all
// connection state and routes every message, so room mutations and relays
// never race each other. Registry mutations go through the shared Registry
// so the stateless API sees the same rooms.
type Hub struct {
	registry *Registry
	clock    clockwork.Clock

	// conns maps session ids to live connections.
	conns map[string]*Client

	Register   chan *Client
	Unregister chan *Client
	Inbound    chan inbound
}

// NewHub creates a hub over the given registry.
func NewHub(registry *Registry, clock clockwork.Clock) *Hub {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Hub{
		registry:   registry,
		clock:      clock,
		conns:      map[string]*Client{},
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Inbound:    make(chan inbound),
	}
}

// Registry exposes the shared registry for the HTTP layer.
func (h *Hub) Registry() *Registry { return h.registry }

// Run processes registrations, departures and messages until the context is
// cancelled. It also drives the periodic expired-room sweep.
func (h *Hub) Run(ctx context.Context) {
	sweep := h.clock.NewTicker(sweepInterval)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			for _, c := range h.conns {
				close(c.Send)
			}
			h.conns = map[string]*Client{}
			return

		case client := <-h.Register:
			client.ID = uuid.NewString()
			h.conns[client.ID] = client
			h.registry.AddClient(client.ID)
			slog.Info("client connected", "client", client.ID)
			h.send(client.ID, &protocol.Message{Type: protocol.TypeConnected, ClientID: client.ID})

		case client := <-h.Unregister:
			if _, live := h.conns[client.ID]; !live {
				// Already replaced or cleaned up.
				continue
			}
			slog.Info("client disconnected", "client", client.ID)
			if result, left := h.registry.RemoveClient(client.ID); left {
				h.notifyDeparture(client.ID, result)
			}
			delete(h.conns, client.ID)
			close(client.Send)

		case in := <-h.Inbound:
			h.handleMessage(in.client, in.msg)

		case <-sweep.Chan():
			for _, id := range h.registry.SweepExpired(roomRetention) {
				slog.Info("expired room swept", "room", id)
			}
		}
	}
}

func (h *Hub) handleMessage(c *Client, msg *protocol.Message) {
	slog.Debug("message received", "client", c.ID, "type", msg.Type)

	switch msg.Type {
	case protocol.TypeCreateRoom:
		h.handleCreateRoom(c, msg)
	case protocol.TypeJoinRoom:
		h.handleJoinRoom(c, msg)
	case protocol.TypeLeaveRoom:
		if result, left := h.registry.LeaveRoom(c.ID); left {
			h.notifyDeparture(c.ID, result)
		}
	case protocol.TypeSDPOffer, protocol.TypeSDPAnswer:
		h.relay(c, msg, false)
	case protocol.TypeICECandidate:
		// Candidates may legitimately arrive after the peer has left;
		// unauthorized ones are dropped without an error.
		h.relay(c, msg, true)
	case protocol.TypeUpdatePlayerInfo:
		h.handleUpdateInfo(c, msg)
	case protocol.TypeUpdateLocation:
		h.handleUpdateLocation(c, msg)
	case protocol.TypeSendCombatRequest:
		h.handleSendCombatRequest(c, msg)
	case protocol.TypeAcceptCombatRequest:
		h.forwardToRequester(c, msg, &protocol.Message{
			Type:      protocol.TypeCombatRequestAccepted,
			RequestID: msg.RequestID,
			RoomID:    msg.RoomID,
		})
	case protocol.TypeRejectCombatRequest:
		h.forwardToRequester(c, msg, &protocol.Message{
			Type:      protocol.TypeCombatRequestRejected,
			RequestID: msg.RequestID,
		})
	default:
		slog.Warn("unknown message type", "client", c.ID, "type", msg.Type)
		h.send(c.ID, protocol.ErrorMessage("unknown message type: "+string(msg.Type)))
	}
}

func (h *Hub) handleCreateRoom(c *Client, msg *protocol.Message) {
	result := h.registry.CreateRoom(c.ID, msg.Config)
	if result.LeftPrevious != nil {
		h.notifyDeparture(c.ID, *result.LeftPrevious)
	}
	slog.Info("room created", "room", result.RoomID, "owner", c.ID)
	h.send(c.ID, &protocol.Message{
		Type:     protocol.TypeRoomCreated,
		RoomID:   result.RoomID,
		PlayerID: c.ID,
	})
}

func (h *Hub) handleJoinRoom(c *Client, msg *protocol.Message) {
	result, err := h.registry.JoinRoom(msg.RoomID, c.ID)
	if err != nil {
		slog.Info("room join failed", "room", msg.RoomID, "client", c.ID, "err", err)
		h.send(c.ID, protocol.ErrorMessage(err.Error()))
		return
	}
	if result.LeftPrevious != nil {
		h.notifyDeparture(c.ID, *result.LeftPrevious)
	}
	slog.Info("room joined", "room", result.RoomID, "client", c.ID)

	h.send(c.ID, &protocol.Message{
		Type:     protocol.TypeRoomJoined,
		RoomID:   result.RoomID,
		PlayerID: c.ID,
		IsJoiner: true,
	})

	// Both sides learn about each other; the joiner flag marks the second
	// arrival, which initiates the peer transport.
	joinerInfo, _ := h.registry.ClientInfo(c.ID)
	h.send(result.Peer.ID, &protocol.Message{
		Type:     protocol.TypePlayerConnected,
		Player:   &joinerInfo,
		IsJoiner: true,
	})
	peerInfo := result.Peer
	h.send(c.ID, &protocol.Message{
		Type:   protocol.TypePlayerConnected,
		Player: &peerInfo,
	})
}

// relay forwards a negotiation message to its target, but only when sender
// and target currently share a room.
func (h *Hub) relay(c *Client, msg *protocol.Message, silent bool) {
	if !h.registry.SameRoom(c.ID, msg.Target) {
		slog.Debug("relay refused", "from", c.ID, "target", msg.Target, "type", msg.Type)
		if !silent {
			h.send(c.ID, protocol.ErrorMessage(ErrUnauthorized.Error()))
		}
		return
	}

	forwarded := *msg
	forwarded.From = c.ID
	forwarded.Target = ""
	h.send(msg.Target, &forwarded)
}

func (h *Hub) handleUpdateInfo(c *Client, msg *protocol.Message) {
	if msg.Info == nil {
		h.send(c.ID, protocol.ErrorMessage("missing player info"))
		return
	}
	info, roommates, ok := h.registry.UpdateInfo(c.ID, *msg.Info)
	if !ok {
		return
	}
	for _, id := range roommates {
		h.send(id, &protocol.Message{Type: protocol.TypePlayerInfoUpdated, Player: &info})
	}
	h.send(c.ID, &protocol.Message{Type: protocol.TypePlayerInfoUpdated, Player: &info})
}

func (h *Hub) handleUpdateLocation(c *Client, msg *protocol.Message) {
	colocated := h.registry.UpdateLocation(c.ID, msg.Location)
	if len(colocated) == 0 {
		return
	}
	h.send(c.ID, &protocol.Message{Type: protocol.TypePlayersInSameLocation, Players: colocated})

	moverInfo, _ := h.registry.ClientInfo(c.ID)
	for _, other := range colocated {
		h.send(other.ID, &protocol.Message{
			Type:    protocol.TypePlayersInSameLocation,
			Players: []protocol.PlayerInfo{moverInfo},
		})
	}
}

func (h *Hub) handleSendCombatRequest(c *Client, msg *protocol.Message) {
	if _, connected := h.conns[msg.TargetPlayerID]; !connected {
		h.send(c.ID, protocol.ErrorMessage("target player is not connected"))
		return
	}
	h.send(msg.TargetPlayerID, &protocol.Message{
		Type:        protocol.TypeCombatRequestReceived,
		RequestID:   msg.RequestID,
		RequesterID: c.ID,
		Info:        msg.Info,
		Location:    msg.Location,
	})
}

func (h *Hub) forwardToRequester(c *Client, msg *protocol.Message, reply *protocol.Message) {
	if _, connected := h.conns[msg.RequesterID]; !connected {
		h.send(c.ID, protocol.ErrorMessage("requester is not connected"))
		return
	}
	h.send(msg.RequesterID, reply)
}

// notifyDeparture tells everyone remaining in a room that a member left.
func (h *Hub) notifyDeparture(departedID string, result LeaveResult) {
	for _, id := range result.Remaining {
		h.send(id, &protocol.Message{
			Type:     protocol.TypePlayerDisconnected,
			PlayerID: departedID,
		})
	}
}

// send queues a message for one connection. A full send buffer drops the
// message rather than stalling the hub.
func (h *Hub) send(clientID string, msg *protocol.Message) {
	c, ok := h.conns[clientID]
	if !ok {
		return
	}
	select {
	case c.Send <- msg:
	default:
		slog.Warn("send buffer full, dropping message", "client", clientID, "type", msg.Type)
	}
}
