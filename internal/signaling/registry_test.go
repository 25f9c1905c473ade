package signaling

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/duelink/duelink/internal/protocol"
)

func newTestRegistry(t *testing.T) (*Registry, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	return NewRegistry(clock), clock
}

func TestAddClientAssignsDefaultName(t *testing.T) {
	r, _ := newTestRegistry(t)

	info := r.AddClient("abcdef123456")
	require.Equal(t, "abcdef123456", info.ID)
	require.Equal(t, "Player_abcdef", info.Name)
}

func TestCreateAndJoinRoom(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.AddClient("owner")
	r.AddClient("joiner")

	created := r.CreateRoom("owner", nil)
	require.NotEmpty(t, created.RoomID)
	require.Len(t, created.RoomID, 8)
	require.Nil(t, created.LeftPrevious)

	joined, err := r.JoinRoom(created.RoomID, "joiner")
	require.NoError(t, err)
	require.Equal(t, created.RoomID, joined.RoomID)
	require.Equal(t, "owner", joined.OwnerID)
	require.Equal(t, "owner", joined.Peer.ID)

	require.True(t, r.SameRoom("owner", "joiner"))
}

func TestJoinRoomNotFound(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.AddClient("joiner")

	_, err := r.JoinRoom("nope", "joiner")
	require.ErrorIs(t, err, ErrRoomNotFound)
}

func TestJoinRoomFull(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.AddClient("owner")
	r.AddClient("second")
	r.AddClient("third")

	created := r.CreateRoom("owner", nil)
	_, err := r.JoinRoom(created.RoomID, "second")
	require.NoError(t, err)

	_, err = r.JoinRoom(created.RoomID, "third")
	require.ErrorIs(t, err, ErrRoomFull)
}

func TestJoinLeavesPreviousRoom(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.AddClient("owner")
	r.AddClient("hopper")

	first := r.CreateRoom("hopper", nil)
	second := r.CreateRoom("owner", nil)

	joined, err := r.JoinRoom(second.RoomID, "hopper")
	require.NoError(t, err)
	require.NotNil(t, joined.LeftPrevious)
	require.Equal(t, first.RoomID, joined.LeftPrevious.RoomID)
	// Hopper was alone, so the abandoned room is gone.
	require.True(t, joined.LeftPrevious.Destroyed)
	require.False(t, r.MemberOfRoom(first.RoomID, "hopper"))
}

func TestLeaveTransfersOwnership(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.AddClient("owner")
	r.AddClient("joiner")

	created := r.CreateRoom("owner", nil)
	_, err := r.JoinRoom(created.RoomID, "joiner")
	require.NoError(t, err)

	result, left := r.LeaveRoom("owner")
	require.True(t, left)
	require.False(t, result.Destroyed)
	require.Equal(t, "joiner", result.NewOwnerID)
	require.Equal(t, []string{"joiner"}, result.Remaining)
}

func TestLeaveDestroysEmptyRoom(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.AddClient("owner")

	created := r.CreateRoom("owner", nil)
	result, left := r.LeaveRoom("owner")
	require.True(t, left)
	require.True(t, result.Destroyed)
	require.False(t, r.MemberOfRoom(created.RoomID, "owner"))
	require.Empty(t, r.RoomSummaries())
}

func TestRemoveClientLeavesRoom(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.AddClient("owner")
	r.AddClient("joiner")

	created := r.CreateRoom("owner", nil)
	_, err := r.JoinRoom(created.RoomID, "joiner")
	require.NoError(t, err)

	result, left := r.RemoveClient("joiner")
	require.True(t, left)
	require.Equal(t, []string{"owner"}, result.Remaining)
	_, ok := r.ClientInfo("joiner")
	require.False(t, ok)
}

func TestSameRoomScopesRelay(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.AddClient("a")
	r.AddClient("b")
	r.AddClient("outsider")

	created := r.CreateRoom("a", nil)
	_, err := r.JoinRoom(created.RoomID, "b")
	require.NoError(t, err)

	require.True(t, r.SameRoom("a", "b"))
	require.False(t, r.SameRoom("a", "outsider"))
	require.False(t, r.SameRoom("a", "ghost"))
}

func TestUpdateInfoMergesAndKeepsID(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.AddClient("a")
	r.AddClient("b")

	created := r.CreateRoom("a", nil)
	_, err := r.JoinRoom(created.RoomID, "b")
	require.NoError(t, err)

	info, roommates, ok := r.UpdateInfo("a", protocol.PlayerInfo{ID: "spoofed", Name: "Alice"})
	require.True(t, ok)
	require.Equal(t, "a", info.ID)
	require.Equal(t, "Alice", info.Name)
	require.Equal(t, []string{"b"}, roommates)
}

func TestUpdateLocationReturnsColocated(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.AddClient("a")
	r.AddClient("b")
	r.AddClient("c")

	r.UpdateLocation("b", "arena")
	r.UpdateLocation("c", "cave")

	colocated := r.UpdateLocation("a", "arena")
	require.Len(t, colocated, 1)
	require.Equal(t, "b", colocated[0].ID)

	require.Nil(t, r.UpdateLocation("a", ""))
}

func TestSweepExpiredEvictsAbandonedRooms(t *testing.T) {
	r, clock := newTestRegistry(t)

	// Stateless-API room: the member has no live connection.
	stale := r.CreateRoomWithID("", "ghost")

	// Live websocket room of the same age.
	r.AddClient("owner")
	kept := r.CreateRoom("owner", nil)

	clock.Advance(31 * time.Minute)
	removed := r.SweepExpired(30 * time.Minute)
	require.Equal(t, []string{stale}, removed)
	require.True(t, r.MemberOfRoom(kept.RoomID, "owner"))

	// Fresh rooms survive the sweep regardless.
	fresh := r.CreateRoomWithID("", "ghost2")
	require.Empty(t, r.SweepExpired(30*time.Minute))
	require.True(t, r.MemberOfRoom(fresh, "ghost2"))
}
