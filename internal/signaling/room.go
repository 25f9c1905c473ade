package signaling

import (
	"encoding/json"
	"time"

	"github.com/duelink/duelink/internal/protocol"
)

// maxRoomMembers encodes the pairwise-match domain: a room pairs exactly
// two participants.
const maxRoomMembers = 2

// Room is a pairing slot for two participants.
type Room struct {
	ID        string
	OwnerID   string
	Members   []string
	Config    json.RawMessage
	CreatedAt time.Time
}

// ClientSession is a connected participant at the rendezvous point. RoomID
// is empty while the client is not in a room.
type ClientSession struct {
	ID          string
	RoomID      string
	Info        protocol.PlayerInfo
	ConnectedAt time.Time
}

// RoomSummary is the roster view exposed by the stateless API.
type RoomSummary struct {
	RoomID      string `json:"roomId"`
	ClientCount int    `json:"clientCount"`
	CreatedAt   int64  `json:"createdAt"`
}
