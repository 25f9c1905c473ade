// Package protocol defines the rendezvous wire protocol spoken between the
// duelink client and the signaling server: JSON messages over a persistent
// WebSocket connection.
package protocol

import "encoding/json"

// MessageType identifies a rendezvous message.
type MessageType string

// Client to server.
const (
	TypeCreateRoom          MessageType = "CREATE_ROOM"
	TypeJoinRoom            MessageType = "JOIN_ROOM"
	TypeLeaveRoom           MessageType = "LEAVE_ROOM"
	TypeSDPOffer            MessageType = "SDP_OFFER"
	TypeSDPAnswer           MessageType = "SDP_ANSWER"
	TypeICECandidate        MessageType = "ICE_CANDIDATE"
	TypeUpdatePlayerInfo    MessageType = "UPDATE_PLAYER_INFO"
	TypeUpdateLocation      MessageType = "UPDATE_LOCATION"
	TypeSendCombatRequest   MessageType = "SEND_COMBAT_REQUEST"
	TypeAcceptCombatRequest MessageType = "ACCEPT_COMBAT_REQUEST"
	TypeRejectCombatRequest MessageType = "REJECT_COMBAT_REQUEST"
)

// Server to client. SDP_OFFER, SDP_ANSWER and ICE_CANDIDATE are also sent
// server-to-client when relayed, with From filled in instead of Target.
const (
	TypeConnected             MessageType = "CONNECTED"
	TypeRoomCreated           MessageType = "ROOM_CREATED"
	TypeRoomJoined            MessageType = "ROOM_JOINED"
	TypePlayerConnected       MessageType = "PLAYER_CONNECTED"
	TypePlayerDisconnected    MessageType = "PLAYER_DISCONNECTED"
	TypePlayerInfoUpdated     MessageType = "PLAYER_INFO_UPDATED"
	TypePlayersInSameLocation MessageType = "PLAYERS_IN_SAME_LOCATION"
	TypeCombatRequestReceived MessageType = "COMBAT_REQUEST_RECEIVED"
	TypeCombatRequestAccepted MessageType = "COMBAT_REQUEST_ACCEPTED"
	TypeCombatRequestRejected MessageType = "COMBAT_REQUEST_REJECTED"
	TypeError                 MessageType = "ERROR"
)

// PlayerInfo is the display information a participant shares.
type PlayerInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Location string `json:"location,omitempty"`
}

// Message is the envelope for every rendezvous message. Fields are a union
// across message types; unused ones stay empty on the wire.
type Message struct {
	Type MessageType `json:"type"`

	// Identity and room lifecycle.
	ClientID string          `json:"clientId,omitempty"`
	RoomID   string          `json:"roomId,omitempty"`
	PlayerID string          `json:"playerId,omitempty"`
	IsJoiner bool            `json:"isJoiner,omitempty"`
	Config   json.RawMessage `json:"config,omitempty"`

	// Negotiation relay. Target is set by the sender, From by the relay.
	Target    string          `json:"target,omitempty"`
	From      string          `json:"from,omitempty"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`

	// Roster and presence.
	Info     *PlayerInfo  `json:"info,omitempty"`
	Player   *PlayerInfo  `json:"player,omitempty"`
	Players  []PlayerInfo `json:"players,omitempty"`
	Location string       `json:"location,omitempty"`

	// Combat request brokering.
	RequestID      string `json:"requestId,omitempty"`
	RequesterID    string `json:"requesterId,omitempty"`
	TargetPlayerID string `json:"targetPlayerId,omitempty"`

	// Error reporting.
	Message string `json:"message,omitempty"`
}

// ErrorMessage builds a server-side ERROR notification.
func ErrorMessage(text string) *Message {
	return &Message{Type: TypeError, Message: text}
}
