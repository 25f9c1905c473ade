package session

import (
	"encoding/json"

	"github.com/duelink/duelink/internal/conflict"
	"github.com/duelink/duelink/internal/protocol"
)

// CommandType identifies a command the consumer issues to the coordinator.
type CommandType string

const (
	CmdInit                CommandType = "INIT"
	CmdCreateRoom          CommandType = "CREATE_ROOM"
	CmdJoinRoom            CommandType = "JOIN_ROOM"
	CmdLeaveRoom           CommandType = "LEAVE_ROOM"
	CmdSendAction          CommandType = "SEND_ACTION"
	CmdSyncState           CommandType = "SYNC_STATE"
	CmdUpdatePlayerInfo    CommandType = "UPDATE_PLAYER_INFO"
	CmdUpdateLocation      CommandType = "UPDATE_LOCATION"
	CmdSendCombatRequest   CommandType = "SEND_COMBAT_REQUEST"
	CmdAcceptCombatRequest CommandType = "ACCEPT_COMBAT_REQUEST"
	CmdRejectCombatRequest CommandType = "REJECT_COMBAT_REQUEST"
)

// Command is the typed inbound message of the coordinator boundary. Fields
// are a union across command types.
type Command struct {
	Type CommandType

	RoomID   string
	Config   json.RawMessage
	Action   *conflict.ActionRecord
	State    *conflict.Snapshot
	Info     *protocol.PlayerInfo
	Location string

	RequestID      string
	TargetPlayerID string
	RequesterID    string
}

// EventType identifies an event the coordinator surfaces to the consumer.
type EventType string

const (
	EvtRoomCreated           EventType = "ROOM_CREATED"
	EvtRoomJoined            EventType = "ROOM_JOINED"
	EvtPlayerConnected       EventType = "PLAYER_CONNECTED"
	EvtPlayerDisconnected    EventType = "PLAYER_DISCONNECTED"
	EvtPeerChannelOpen       EventType = "PEER_CHANNEL_OPEN"
	EvtActionReceived        EventType = "ACTION_RECEIVED"
	EvtStateReceived         EventType = "STATE_RECEIVED"
	EvtPlayersInSameLocation EventType = "PLAYERS_IN_SAME_LOCATION"
	EvtCombatRequestReceived EventType = "COMBAT_REQUEST_RECEIVED"
	EvtCombatRequestAccepted EventType = "COMBAT_REQUEST_ACCEPTED"
	EvtCombatRequestRejected EventType = "COMBAT_REQUEST_REJECTED"
	EvtError                 EventType = "ERROR"
)

// Event is the typed outbound message of the coordinator boundary.
type Event struct {
	Type EventType

	RoomID   string
	PlayerID string
	Player   *protocol.PlayerInfo
	Players  []protocol.PlayerInfo

	Action *conflict.ActionRecord
	State  *conflict.Snapshot

	RequestID   string
	RequesterID string
	Location    string

	Err error
	// Fatal marks connectivity errors that end the session.
	Fatal bool
}
