// Package session implements the client-side session coordinator: a state
// machine that drives rendezvous connectivity, WebRTC negotiation with the
// room peer, and ongoing action/state exchange over the data channel.
package session

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/duelink/duelink/internal/config"
	"github.com/duelink/duelink/internal/conflict"
	"github.com/duelink/duelink/internal/protocol"
	"github.com/duelink/duelink/internal/transport"
)

// State is the coordinator lifecycle state.
type State int

const (
	// StateIdle is the initial state before INIT.
	StateIdle State = iota
	// StateConnecting means the rendezvous socket is being established.
	StateConnecting
	// StateAwaitingRoom means the socket is up but no room is held.
	StateAwaitingRoom
	// StateNegotiating means a room is held and WebRTC setup is under way.
	StateNegotiating
	// StateConnected means the peer data channel is open.
	StateConnected
	// StateDisconnected means the peer went away; the room may still be held.
	StateDisconnected
	// StateFailed is terminal: connectivity could not be recovered.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateAwaitingRoom:
		return "awaiting-room"
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Coordinator owns the whole client session. All mutable fields are touched
// only from the Run goroutine; consumers talk to it through Dispatch and
// Events.
type Coordinator struct {
	cfg      *config.Config
	clock    clockwork.Clock
	client   *Client
	resolver *conflict.Resolver

	commands   chan Command
	events     chan Event
	linkEvents chan linkEvent

	state    State
	playerID string
	roomID   string
	remoteID string
	isJoiner bool
	link     *peerLink

	// Remote candidates that arrived before the peer link existed, keyed by
	// sender and kept in arrival order.
	pendingCandidates map[string][]json.RawMessage

	stateQueue    []conflict.Snapshot
	lastStateSent time.Time

	done      chan struct{}
	closeOnce sync.Once
}

func NewCoordinator(cfg *config.Config, clock clockwork.Clock) *Coordinator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Coordinator{
		cfg:               cfg,
		clock:             clock,
		client:            NewClient(cfg.WebSocketURL, clock),
		resolver:          conflict.NewResolver(conflict.Options{Clock: clock}),
		commands:          make(chan Command, 32),
		events:            make(chan Event, 64),
		linkEvents:        make(chan linkEvent, 64),
		pendingCandidates: make(map[string][]json.RawMessage),
		state:             StateIdle,
		done:              make(chan struct{}),
	}
}

// Events delivers session events to the consumer.
func (c *Coordinator) Events() <-chan Event {
	return c.events
}

// State returns the last state observed; only exact from the Run goroutine.
func (c *Coordinator) State() State {
	return c.state
}

// PlayerID returns the identity assigned by the rendezvous server.
func (c *Coordinator) PlayerID() string {
	return c.playerID
}

// Resolver exposes the session's conflict resolver for local state
// resolution against the peer.
func (c *Coordinator) Resolver() *conflict.Resolver {
	return c.resolver
}

// Dispatch queues a command for the Run loop.
func (c *Coordinator) Dispatch(cmd Command) {
	select {
	case c.commands <- cmd:
	case <-c.done:
	}
}

// Close shuts the session down.
func (c *Coordinator) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// Run drives the session until Close. It blocks; run it in its own goroutine.
func (c *Coordinator) Run() {
	for {
		select {
		case <-c.done:
			c.teardownLink()
			c.client.Close()
			return
		case cmd := <-c.commands:
			c.handleCommand(cmd)
		case ev := <-c.client.ConnEvents():
			c.handleConnEvent(ev)
		case msg := <-c.client.Incoming():
			c.handleServerMessage(msg)
		case le := <-c.linkEvents:
			c.handleLinkEvent(le)
		}
	}
}

func (c *Coordinator) handleCommand(cmd Command) {
	switch cmd.Type {
	case CmdInit:
		if c.state != StateIdle {
			return
		}
		c.setState(StateConnecting)
		go c.client.Run()

	case CmdCreateRoom:
		c.client.Send(&protocol.Message{Type: protocol.TypeCreateRoom, Config: cmd.Config})

	case CmdJoinRoom:
		c.client.Send(&protocol.Message{Type: protocol.TypeJoinRoom, RoomID: cmd.RoomID})

	case CmdLeaveRoom:
		c.client.Send(&protocol.Message{Type: protocol.TypeLeaveRoom})
		c.teardownLink()
		c.resolver.Reset()
		c.roomID = ""
		c.isJoiner = false
		if c.state == StateNegotiating || c.state == StateConnected || c.state == StateDisconnected {
			c.setState(StateAwaitingRoom)
		}

	case CmdSendAction:
		if cmd.Action == nil {
			return
		}
		c.resolver.RecordAction(*cmd.Action)
		c.sendOverLink(transport.MsgAction, transport.ActionPayload{Action: *cmd.Action})

	case CmdSyncState:
		if cmd.State == nil {
			return
		}
		c.handleSyncState(*cmd.State)

	case CmdUpdatePlayerInfo:
		c.client.Send(&protocol.Message{Type: protocol.TypeUpdatePlayerInfo, Info: cmd.Info})

	case CmdUpdateLocation:
		c.client.Send(&protocol.Message{Type: protocol.TypeUpdateLocation, Location: cmd.Location})

	case CmdSendCombatRequest:
		c.client.Send(&protocol.Message{
			Type:           protocol.TypeSendCombatRequest,
			RequestID:      cmd.RequestID,
			TargetPlayerID: cmd.TargetPlayerID,
			Info:           cmd.Info,
			Location:       cmd.Location,
		})

	case CmdAcceptCombatRequest:
		c.client.Send(&protocol.Message{
			Type:        protocol.TypeAcceptCombatRequest,
			RequestID:   cmd.RequestID,
			RequesterID: cmd.RequesterID,
			RoomID:      cmd.RoomID,
		})

	case CmdRejectCombatRequest:
		c.client.Send(&protocol.Message{
			Type:        protocol.TypeRejectCombatRequest,
			RequestID:   cmd.RequestID,
			RequesterID: cmd.RequesterID,
		})

	default:
		slog.Warn("unknown command", "type", cmd.Type)
	}
}

// handleSyncState records the local snapshot and rate-limits outbound
// traffic: snapshots produced faster than the sync interval queue up and
// flush as one batch with the next send.
func (c *Coordinator) handleSyncState(snap conflict.Snapshot) {
	c.resolver.RecordState(snap.OwnerID, snap.Payload, snap.Timestamp)

	now := c.clock.Now()
	if !c.lastStateSent.IsZero() && now.Sub(c.lastStateSent) < c.cfg.SyncInterval {
		c.stateQueue = append(c.stateQueue, snap)
		return
	}

	batch := append([]conflict.Snapshot{snap}, c.stateQueue...)
	c.stateQueue = nil
	c.lastStateSent = now
	c.sendOverLink(transport.MsgStateSync, transport.StateBatchPayload{States: batch})
}

func (c *Coordinator) handleConnEvent(ev ConnEvent) {
	switch ev.Type {
	case ConnOpened:
		// A fresh socket means a fresh server-side identity: any previous
		// room membership is gone.
		c.teardownLink()
		c.roomID = ""
		c.isJoiner = false
		c.setState(StateAwaitingRoom)

	case ConnClosed:
		// The server forgets the session with the socket, so the room is
		// already gone on its side.
		c.teardownLink()
		c.roomID = ""
		c.isJoiner = false
		c.setState(StateConnecting)
		c.emit(Event{Type: EvtError, Err: NewError("rendezvous", ErrNotConnected)})

	case ConnFailed:
		c.setState(StateFailed)
		c.emit(Event{Type: EvtError, Err: ev.Err, Fatal: true})
	}
}

func (c *Coordinator) handleServerMessage(msg *protocol.Message) {
	switch msg.Type {
	case protocol.TypeConnected:
		c.playerID = msg.ClientID

	case protocol.TypeRoomCreated:
		c.roomID = msg.RoomID
		if msg.PlayerID != "" {
			c.playerID = msg.PlayerID
		}
		c.isJoiner = false
		c.setState(StateNegotiating)
		c.emit(Event{Type: EvtRoomCreated, RoomID: msg.RoomID, PlayerID: c.playerID})

	case protocol.TypeRoomJoined:
		c.roomID = msg.RoomID
		if msg.PlayerID != "" {
			c.playerID = msg.PlayerID
		}
		c.isJoiner = true
		c.setState(StateNegotiating)
		c.emit(Event{Type: EvtRoomJoined, RoomID: msg.RoomID, PlayerID: c.playerID})

	case protocol.TypePlayerConnected:
		if msg.Player == nil {
			return
		}
		c.setState(StateNegotiating)
		c.emit(Event{Type: EvtPlayerConnected, Player: msg.Player})
		// The joiner initiates the data channel and the offer; the room
		// owner waits for both.
		c.setupLink(msg.Player.ID, c.isJoiner)

	case protocol.TypeSDPOffer:
		if c.link == nil || c.link.remoteID != msg.From {
			c.teardownLink()
			c.setupLink(msg.From, false)
		}
		if c.link == nil {
			return
		}
		answer, err := c.link.acceptOffer(msg.Offer)
		if err != nil {
			c.emit(Event{Type: EvtError, Err: err})
			return
		}
		c.client.Send(&protocol.Message{
			Type:   protocol.TypeSDPAnswer,
			Target: msg.From,
			Answer: answer,
		})

	case protocol.TypeSDPAnswer:
		if c.link == nil || c.link.remoteID != msg.From {
			c.emit(Event{Type: EvtError, Err: WrapError("answer", ErrUnexpectedSignal, msg.From)})
			return
		}
		if err := c.link.acceptAnswer(msg.Answer); err != nil {
			c.emit(Event{Type: EvtError, Err: err})
		}

	case protocol.TypeICECandidate:
		if c.link != nil && c.link.remoteID == msg.From {
			if err := c.link.addCandidate(msg.Candidate); err != nil {
				slog.Warn("failed to add candidate", "from", msg.From, "error", err)
			}
			return
		}
		c.pendingCandidates[msg.From] = append(c.pendingCandidates[msg.From], msg.Candidate)

	case protocol.TypePlayerDisconnected:
		if c.remoteID != "" && msg.PlayerID == c.remoteID {
			c.teardownLink()
			c.setState(StateDisconnected)
		}
		c.emit(Event{Type: EvtPlayerDisconnected, PlayerID: msg.PlayerID})

	case protocol.TypePlayersInSameLocation:
		c.emit(Event{Type: EvtPlayersInSameLocation, Players: msg.Players, Location: msg.Location})

	case protocol.TypeCombatRequestReceived:
		c.emit(Event{
			Type:        EvtCombatRequestReceived,
			RequestID:   msg.RequestID,
			RequesterID: msg.RequesterID,
			Player:      msg.Player,
			Location:    msg.Location,
		})

	case protocol.TypeCombatRequestAccepted:
		c.emit(Event{
			Type:      EvtCombatRequestAccepted,
			RequestID: msg.RequestID,
			RoomID:    msg.RoomID,
			Player:    msg.Player,
		})

	case protocol.TypeCombatRequestRejected:
		c.emit(Event{Type: EvtCombatRequestRejected, RequestID: msg.RequestID})

	case protocol.TypeError:
		c.emit(Event{Type: EvtError, Err: errors.New(msg.Message)})

	case protocol.TypePlayerInfoUpdated:
		c.emit(Event{Type: EvtPlayerConnected, Player: msg.Player})

	default:
		slog.Debug("unhandled server message", "type", msg.Type)
	}
}

func (c *Coordinator) handleLinkEvent(le linkEvent) {
	if c.link == nil || c.link.remoteID != le.remoteID {
		return
	}

	switch le.typ {
	case linkLocalCandidate:
		raw, err := json.Marshal(le.candidate)
		if err != nil {
			return
		}
		c.client.Send(&protocol.Message{
			Type:      protocol.TypeICECandidate,
			Target:    le.remoteID,
			Candidate: raw,
		})

	case linkChannelOpen:
		c.setState(StateConnected)
		c.emit(Event{Type: EvtPeerChannelOpen, PlayerID: le.remoteID})

	case linkChannelClosed, linkFailed:
		c.teardownLink()
		c.setState(StateDisconnected)
		c.emit(Event{Type: EvtPlayerDisconnected, PlayerID: le.remoteID, Err: le.err})

	case linkMessage:
		c.handlePeerData(le.data)
	}
}

func (c *Coordinator) handlePeerData(data []byte) {
	msg, err := transport.Decode(data)
	if err != nil {
		slog.Warn("undecodable peer message", "error", err)
		return
	}

	switch msg.Type {
	case transport.MsgAction, transport.MsgCombatEnd:
		var payload transport.ActionPayload
		if err := msg.DecodePayload(&payload); err != nil {
			slog.Warn("undecodable action payload", "error", err)
			return
		}
		c.resolver.RecordAction(payload.Action)
		c.emit(Event{Type: EvtActionReceived, Action: &payload.Action})

	case transport.MsgStateSync:
		var payload transport.StateBatchPayload
		if err := msg.DecodePayload(&payload); err != nil {
			slog.Warn("undecodable state batch", "error", err)
			return
		}
		for i := range payload.States {
			snap := payload.States[i]
			c.resolver.RecordState(snap.OwnerID, snap.Payload, snap.Timestamp)
			c.emit(Event{Type: EvtStateReceived, State: &snap})
		}

	default:
		slog.Debug("unhandled peer message", "type", msg.Type)
	}
}

// setupLink creates the peer link for remoteID, flushes any candidates
// buffered before it existed (in arrival order), and as initiator opens
// the data channel and sends the offer.
func (c *Coordinator) setupLink(remoteID string, initiator bool) {
	link, err := newPeerLink(c.cfg, remoteID, initiator, c.linkEvents)
	if err != nil {
		c.emit(Event{Type: EvtError, Err: err})
		return
	}
	c.link = link
	c.remoteID = remoteID

	for _, cand := range c.takeBufferedCandidates(remoteID) {
		if err := link.addCandidate(cand); err != nil {
			slog.Warn("failed to add buffered candidate", "from", remoteID, "error", err)
		}
	}

	if initiator {
		offer, err := link.createOffer()
		if err != nil {
			c.emit(Event{Type: EvtError, Err: err})
			c.teardownLink()
			return
		}
		c.client.Send(&protocol.Message{
			Type:   protocol.TypeSDPOffer,
			Target: remoteID,
			Offer:  offer,
		})
	}
}

// takeBufferedCandidates returns and clears the candidates buffered for
// remoteID, preserving arrival order.
func (c *Coordinator) takeBufferedCandidates(remoteID string) []json.RawMessage {
	cands := c.pendingCandidates[remoteID]
	delete(c.pendingCandidates, remoteID)
	return cands
}

func (c *Coordinator) sendOverLink(msgType string, payload any) {
	if c.link == nil {
		slog.Debug("no peer link, dropping outbound", "type", msgType)
		return
	}
	msg, err := transport.NewMessage(msgType, payload)
	if err != nil {
		c.emit(Event{Type: EvtError, Err: WrapError("encode", err, msgType)})
		return
	}
	data, err := msg.Encode()
	if err != nil {
		c.emit(Event{Type: EvtError, Err: WrapError("encode", err, msgType)})
		return
	}
	if err := c.link.sendData(data); err != nil {
		slog.Warn("peer send failed", "type", msgType, "error", err)
	}
}

func (c *Coordinator) teardownLink() {
	if c.link == nil {
		return
	}
	delete(c.pendingCandidates, c.link.remoteID)
	c.link.close()
	c.link = nil
	c.remoteID = ""
}

func (c *Coordinator) setState(s State) {
	if c.state == s {
		return
	}
	slog.Debug("session state", "from", c.state, "to", s)
	c.state = s
}

// emit never blocks the run loop; a full consumer drops the event.
func (c *Coordinator) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
		slog.Warn("event dropped", "type", ev.Type)
	}
}
