package signaling

import (
	"encoding/json"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/duelink/duelink/internal/protocol"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	clock := clockwork.NewFakeClock()
	return NewHub(NewRegistry(clock), clock)
}

// connect wires a fake connection straight into the hub state, skipping the
// websocket upgrade.
func connect(h *Hub, id string) *Client {
	c := &Client{Hub: h, ID: id, Send: make(chan *protocol.Message, 16)}
	h.conns[id] = c
	h.registry.AddClient(id)
	return c
}

func nextMessage(t *testing.T, c *Client) *protocol.Message {
	t.Helper()
	select {
	case msg := <-c.Send:
		return msg
	default:
		t.Fatalf("no message queued for %s", c.ID)
		return nil
	}
}

func requireNoMessage(t *testing.T, c *Client) {
	t.Helper()
	select {
	case msg := <-c.Send:
		t.Fatalf("unexpected %s queued for %s", msg.Type, c.ID)
	default:
	}
}

func TestHubCreateAndJoinFlow(t *testing.T) {
	h := newTestHub(t)
	owner := connect(h, "owner")
	joiner := connect(h, "joiner")

	h.handleMessage(owner, &protocol.Message{Type: protocol.TypeCreateRoom})
	created := nextMessage(t, owner)
	require.Equal(t, protocol.TypeRoomCreated, created.Type)
	require.NotEmpty(t, created.RoomID)
	require.Equal(t, "owner", created.PlayerID)

	h.handleMessage(joiner, &protocol.Message{Type: protocol.TypeJoinRoom, RoomID: created.RoomID})

	joined := nextMessage(t, joiner)
	require.Equal(t, protocol.TypeRoomJoined, joined.Type)
	require.True(t, joined.IsJoiner)
	require.Equal(t, created.RoomID, joined.RoomID)

	ownerNotice := nextMessage(t, owner)
	require.Equal(t, protocol.TypePlayerConnected, ownerNotice.Type)
	require.True(t, ownerNotice.IsJoiner)
	require.Equal(t, "joiner", ownerNotice.Player.ID)

	joinerNotice := nextMessage(t, joiner)
	require.Equal(t, protocol.TypePlayerConnected, joinerNotice.Type)
	require.Equal(t, "owner", joinerNotice.Player.ID)
}

func TestHubJoinUnknownRoomReturnsError(t *testing.T) {
	h := newTestHub(t)
	joiner := connect(h, "joiner")

	h.handleMessage(joiner, &protocol.Message{Type: protocol.TypeJoinRoom, RoomID: "missing"})
	msg := nextMessage(t, joiner)
	require.Equal(t, protocol.TypeError, msg.Type)
	require.Equal(t, ErrRoomNotFound.Error(), msg.Message)
}

func pairUp(t *testing.T, h *Hub, owner, joiner *Client) string {
	t.Helper()
	h.handleMessage(owner, &protocol.Message{Type: protocol.TypeCreateRoom})
	created := nextMessage(t, owner)
	h.handleMessage(joiner, &protocol.Message{Type: protocol.TypeJoinRoom, RoomID: created.RoomID})
	nextMessage(t, joiner) // ROOM_JOINED
	nextMessage(t, owner)  // PLAYER_CONNECTED
	nextMessage(t, joiner) // PLAYER_CONNECTED
	return created.RoomID
}

func TestHubRelayScopedToRoom(t *testing.T) {
	h := newTestHub(t)
	owner := connect(h, "owner")
	joiner := connect(h, "joiner")
	outsider := connect(h, "outsider")
	pairUp(t, h, owner, joiner)

	offer := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)

	// In-room negotiation relays with the sender stamped on.
	h.handleMessage(joiner, &protocol.Message{
		Type:   protocol.TypeSDPOffer,
		Target: "owner",
		Offer:  offer,
	})
	relayed := nextMessage(t, owner)
	require.Equal(t, protocol.TypeSDPOffer, relayed.Type)
	require.Equal(t, "joiner", relayed.From)
	require.Empty(t, relayed.Target)
	require.JSONEq(t, string(offer), string(relayed.Offer))

	// An outsider targeting the room is refused.
	h.handleMessage(outsider, &protocol.Message{
		Type:   protocol.TypeSDPOffer,
		Target: "owner",
		Offer:  offer,
	})
	refused := nextMessage(t, outsider)
	require.Equal(t, protocol.TypeError, refused.Type)
	requireNoMessage(t, owner)

	// Unauthorized candidates drop silently.
	h.handleMessage(outsider, &protocol.Message{
		Type:      protocol.TypeICECandidate,
		Target:    "owner",
		Candidate: json.RawMessage(`{}`),
	})
	requireNoMessage(t, outsider)
	requireNoMessage(t, owner)
}

func TestHubLeaveNotifiesRemaining(t *testing.T) {
	h := newTestHub(t)
	owner := connect(h, "owner")
	joiner := connect(h, "joiner")
	roomID := pairUp(t, h, owner, joiner)

	h.handleMessage(owner, &protocol.Message{Type: protocol.TypeLeaveRoom})

	notice := nextMessage(t, joiner)
	require.Equal(t, protocol.TypePlayerDisconnected, notice.Type)
	require.Equal(t, "owner", notice.PlayerID)

	// Ownership moved to the survivor, so the room is still joinable.
	require.True(t, h.registry.MemberOfRoom(roomID, "joiner"))
}

func TestHubCombatRequestBrokering(t *testing.T) {
	h := newTestHub(t)
	requester := connect(h, "requester")
	target := connect(h, "target")

	h.handleMessage(requester, &protocol.Message{
		Type:           protocol.TypeSendCombatRequest,
		RequestID:      "req-1",
		TargetPlayerID: "target",
		Location:       "arena",
	})
	received := nextMessage(t, target)
	require.Equal(t, protocol.TypeCombatRequestReceived, received.Type)
	require.Equal(t, "req-1", received.RequestID)
	require.Equal(t, "requester", received.RequesterID)

	h.handleMessage(target, &protocol.Message{
		Type:        protocol.TypeAcceptCombatRequest,
		RequestID:   "req-1",
		RequesterID: "requester",
		RoomID:      "duel-room",
	})
	accepted := nextMessage(t, requester)
	require.Equal(t, protocol.TypeCombatRequestAccepted, accepted.Type)
	require.Equal(t, "duel-room", accepted.RoomID)

	// Requests to offline players bounce.
	h.handleMessage(requester, &protocol.Message{
		Type:           protocol.TypeSendCombatRequest,
		RequestID:      "req-2",
		TargetPlayerID: "ghost",
	})
	bounced := nextMessage(t, requester)
	require.Equal(t, protocol.TypeError, bounced.Type)
}

func TestHubUpdateLocationNotifiesBothSides(t *testing.T) {
	h := newTestHub(t)
	a := connect(h, "a")
	b := connect(h, "b")

	h.handleMessage(b, &protocol.Message{Type: protocol.TypeUpdateLocation, Location: "arena"})
	requireNoMessage(t, b)

	h.handleMessage(a, &protocol.Message{Type: protocol.TypeUpdateLocation, Location: "arena"})

	moverNotice := nextMessage(t, a)
	require.Equal(t, protocol.TypePlayersInSameLocation, moverNotice.Type)
	require.Len(t, moverNotice.Players, 1)
	require.Equal(t, "b", moverNotice.Players[0].ID)

	otherNotice := nextMessage(t, b)
	require.Equal(t, protocol.TypePlayersInSameLocation, otherNotice.Type)
	require.Equal(t, "a", otherNotice.Players[0].ID)
}
