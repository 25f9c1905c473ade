package signaling

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/duelink/duelink/internal/protocol"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomFull     = errors.New("room is full")
	ErrUnauthorized = errors.New("target is not in your room")
)

// LeaveResult describes what a departure did to a room, so callers can
// notify whoever is left.
type LeaveResult struct {
	RoomID     string
	Remaining  []string
	NewOwnerID string
	Destroyed  bool
}

// JoinResult is returned on a successful join.
type JoinResult struct {
	RoomID  string
	OwnerID string
	Peer    protocol.PlayerInfo

	// LeftPrevious is set when the joiner was implicitly removed from
	// another room first.
	LeftPrevious *LeaveResult
}

// CreateResult is returned by CreateRoom.
type CreateResult struct {
	RoomID       string
	LeftPrevious *LeaveResult
}

// Registry owns all rooms and client sessions. Every mutation of room
// membership or ownership runs under one lock, so two concurrent joins can
// never both land in a full room and a leave racing a join cannot strand a
// dangling owner id. It is shared by the WebSocket hub and the stateless
// REST API.
type Registry struct {
	mu      sync.Mutex
	rooms   map[string]*Room
	clients map[string]*ClientSession
	clock   clockwork.Clock
}

// NewRegistry creates an empty registry.
func NewRegistry(clock clockwork.Clock) *Registry {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Registry{
		rooms:   map[string]*Room{},
		clients: map[string]*ClientSession{},
		clock:   clock,
	}
}

// AddClient registers a newly connected participant and returns its initial
// display info.
func (r *Registry) AddClient(id string) protocol.PlayerInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	short := id
	if len(short) > 6 {
		short = short[:6]
	}
	session := &ClientSession{
		ID:          id,
		Info:        protocol.PlayerInfo{ID: id, Name: "Player_" + short},
		ConnectedAt: r.clock.Now(),
	}
	r.clients[id] = session
	return session.Info
}

// RemoveClient drops a disconnected participant, leaving its room first.
func (r *Registry) RemoveClient(id string) (LeaveResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result, left := r.leaveCurrentLocked(id)
	delete(r.clients, id)
	return result, left
}

// ClientInfo returns the display info of a connected participant.
func (r *Registry) ClientInfo(id string) (protocol.PlayerInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.clients[id]
	if !ok {
		return protocol.PlayerInfo{}, false
	}
	return session.Info, true
}

// CreateRoom allocates a fresh room owned by the caller. It always
// succeeds; a caller already in a room leaves it first.
func (r *Registry) CreateRoom(ownerID string, cfg json.RawMessage) CreateResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	var left *LeaveResult
	if result, ok := r.leaveCurrentLocked(ownerID); ok {
		left = &result
	}

	room := &Room{
		ID:        r.newRoomIDLocked(),
		OwnerID:   ownerID,
		Members:   []string{ownerID},
		Config:    cfg,
		CreatedAt: r.clock.Now(),
	}
	r.rooms[room.ID] = room
	if session, ok := r.clients[ownerID]; ok {
		session.RoomID = room.ID
	}
	return CreateResult{RoomID: room.ID, LeftPrevious: left}
}

// CreateRoomWithID is the stateless-API variant where the caller supplies
// the room id. An empty id gets a generated one.
func (r *Registry) CreateRoomWithID(roomID, ownerID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if roomID == "" {
		roomID = r.newRoomIDLocked()
	}
	if _, exists := r.rooms[roomID]; !exists {
		r.rooms[roomID] = &Room{
			ID:        roomID,
			OwnerID:   ownerID,
			Members:   []string{ownerID},
			CreatedAt: r.clock.Now(),
		}
	}
	if session, ok := r.clients[ownerID]; ok {
		session.RoomID = roomID
	}
	return roomID
}

// JoinRoom adds the client as the room's second member. Fails with
// ErrRoomNotFound or ErrRoomFull; a joiner already in another room leaves
// it first.
func (r *Registry) JoinRoom(roomID, clientID string) (JoinResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return JoinResult{}, ErrRoomNotFound
	}
	if len(room.Members) >= maxRoomMembers {
		return JoinResult{}, ErrRoomFull
	}

	var left *LeaveResult
	if result, wasInRoom := r.leaveCurrentLocked(clientID); wasInRoom {
		left = &result
		// The implicit leave may have destroyed this very room.
		room, ok = r.rooms[roomID]
		if !ok {
			return JoinResult{}, ErrRoomNotFound
		}
	}

	peer := protocol.PlayerInfo{ID: room.OwnerID}
	if session, ok := r.clients[room.OwnerID]; ok {
		peer = session.Info
	}

	room.Members = append(room.Members, clientID)
	if session, ok := r.clients[clientID]; ok {
		session.RoomID = roomID
	}

	return JoinResult{
		RoomID:       roomID,
		OwnerID:      room.OwnerID,
		Peer:         peer,
		LeftPrevious: left,
	}, nil
}

// LeaveRoom removes the client from its current room.
func (r *Registry) LeaveRoom(clientID string) (LeaveResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaveCurrentLocked(clientID)
}

// LeaveRoomMember removes a member from an explicit room, for callers that
// have no client session (the stateless API).
func (r *Registry) LeaveRoomMember(roomID, memberID string) (LeaveResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return LeaveResult{}, ErrRoomNotFound
	}
	return r.leaveLocked(room, memberID), nil
}

// SameRoom reports whether two connected participants share a room. Checked
// at relay time, never cached.
func (r *Registry) SameRoom(a, b string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	sa, oka := r.clients[a]
	sb, okb := r.clients[b]
	return oka && okb && sa.RoomID != "" && sa.RoomID == sb.RoomID
}

// MemberOfRoom reports whether the given id is a member of the room.
func (r *Registry) MemberOfRoom(roomID, memberID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return false
	}
	for _, m := range room.Members {
		if m == memberID {
			return true
		}
	}
	return false
}

// UpdateInfo merges new display info into the client's session, keeping the
// original id, and returns the roommates to notify.
func (r *Registry) UpdateInfo(clientID string, info protocol.PlayerInfo) (protocol.PlayerInfo, []string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.clients[clientID]
	if !ok {
		return protocol.PlayerInfo{}, nil, false
	}
	if info.Name != "" {
		session.Info.Name = info.Name
	}
	if info.Location != "" {
		session.Info.Location = info.Location
	}
	session.Info.ID = clientID

	var roommates []string
	if session.RoomID != "" {
		if room, ok := r.rooms[session.RoomID]; ok {
			for _, m := range room.Members {
				if m != clientID {
					roommates = append(roommates, m)
				}
			}
		}
	}
	return session.Info, roommates, true
}

// UpdateLocation records the client's location and returns the other
// connected participants currently at the same location.
func (r *Registry) UpdateLocation(clientID, location string) []protocol.PlayerInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.clients[clientID]
	if !ok {
		return nil
	}
	session.Info.Location = location
	if location == "" {
		return nil
	}

	var colocated []protocol.PlayerInfo
	for id, other := range r.clients {
		if id != clientID && other.Info.Location == location {
			colocated = append(colocated, other.Info)
		}
	}
	return colocated
}

// RoomSummaries lists all rooms for the roster API.
func (r *Registry) RoomSummaries() []RoomSummary {
	r.mu.Lock()
	defer r.mu.Unlock()

	summaries := make([]RoomSummary, 0, len(r.rooms))
	for _, room := range r.rooms {
		summaries = append(summaries, RoomSummary{
			RoomID:      room.ID,
			ClientCount: len(room.Members),
			CreatedAt:   room.CreatedAt.UnixMilli(),
		})
	}
	return summaries
}

// SweepExpired evicts rooms older than maxAge with no connected member and
// returns their ids. Stateless-API rooms are the usual target: their members
// never disconnect, they just stop calling. Rooms holding at least one live
// connection are never swept regardless of age.
func (r *Registry) SweepExpired(maxAge time.Duration) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	var removed []string
	for id, room := range r.rooms {
		if now.Sub(room.CreatedAt) <= maxAge {
			continue
		}
		live := false
		for _, m := range room.Members {
			if _, ok := r.clients[m]; ok {
				live = true
				break
			}
		}
		if live {
			continue
		}
		delete(r.rooms, id)
		removed = append(removed, id)
	}
	return removed
}

// leaveCurrentLocked removes the client from whatever room its session
// points at.
func (r *Registry) leaveCurrentLocked(clientID string) (LeaveResult, bool) {
	session, ok := r.clients[clientID]
	if !ok || session.RoomID == "" {
		return LeaveResult{}, false
	}
	room, ok := r.rooms[session.RoomID]
	if !ok {
		session.RoomID = ""
		return LeaveResult{}, false
	}
	return r.leaveLocked(room, clientID), true
}

// leaveLocked removes a member: an empty room is destroyed; if the owner
// left and a member remains, ownership transfers so the remaining
// participant is not orphaned.
func (r *Registry) leaveLocked(room *Room, memberID string) LeaveResult {
	members := room.Members[:0]
	for _, m := range room.Members {
		if m != memberID {
			members = append(members, m)
		}
	}
	room.Members = members

	if session, ok := r.clients[memberID]; ok && session.RoomID == room.ID {
		session.RoomID = ""
	}

	result := LeaveResult{
		RoomID:    room.ID,
		Remaining: append([]string(nil), room.Members...),
	}
	if len(room.Members) == 0 {
		delete(r.rooms, room.ID)
		result.Destroyed = true
		return result
	}
	if room.OwnerID == memberID {
		room.OwnerID = room.Members[0]
		result.NewOwnerID = room.OwnerID
	}
	return result
}

// newRoomIDLocked derives a short room id from a uuid, retrying on the
// rare collision.
func (r *Registry) newRoomIDLocked() string {
	for {
		id := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
		if _, taken := r.rooms[id]; !taken {
			return id
		}
	}
}
