package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/duelink/duelink/internal/signaling"
)

func newTestAPI(t *testing.T) *API {
	t.Helper()
	return NewAPI(signaling.NewRegistry(clockwork.NewFakeClock()))
}

func postAction(t *testing.T, api *API, body map[string]any) map[string]any {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1", bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	api.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
	return parsed
}

func TestAPICreateJoinLeave(t *testing.T) {
	api := newTestAPI(t)

	created := postAction(t, api, map[string]any{"action": "createRoom", "userId": "host-1"})
	require.Equal(t, true, created["success"])
	roomID, _ := created["roomId"].(string)
	require.NotEmpty(t, roomID)

	joined := postAction(t, api, map[string]any{
		"action": "joinRoom", "roomId": roomID, "userId": "guest-1",
	})
	require.Equal(t, true, joined["success"])
	require.Equal(t, "host-1", joined["hostId"])

	// A third participant bounces off the full room.
	full := postAction(t, api, map[string]any{
		"action": "joinRoom", "roomId": roomID, "userId": "guest-2",
	})
	require.Equal(t, false, full["success"])

	left := postAction(t, api, map[string]any{
		"action": "leaveRoom", "roomId": roomID, "userId": "guest-1",
	})
	require.Equal(t, true, left["success"])
	require.Equal(t, false, left["roomClosed"])

	closed := postAction(t, api, map[string]any{
		"action": "leaveRoom", "roomId": roomID, "userId": "host-1",
	})
	require.Equal(t, true, closed["success"])
	require.Equal(t, true, closed["roomClosed"])
}

func TestAPIJoinUnknownRoom(t *testing.T) {
	api := newTestAPI(t)
	resp := postAction(t, api, map[string]any{
		"action": "joinRoom", "roomId": "missing", "userId": "guest-1",
	})
	require.Equal(t, false, resp["success"])
	require.NotEmpty(t, resp["error"])
}

func TestAPISendCombatRequestRequiresMembership(t *testing.T) {
	api := newTestAPI(t)

	created := postAction(t, api, map[string]any{"action": "createRoom", "userId": "host-1"})
	roomID, _ := created["roomId"].(string)

	denied := postAction(t, api, map[string]any{
		"action": "sendCombatRequest", "roomId": roomID, "targetId": "stranger",
	})
	require.Equal(t, false, denied["success"])

	allowed := postAction(t, api, map[string]any{
		"action": "sendCombatRequest", "roomId": roomID, "targetId": "host-1",
	})
	require.Equal(t, true, allowed["success"])
}

func TestAPIGetRooms(t *testing.T) {
	api := newTestAPI(t)
	postAction(t, api, map[string]any{"action": "createRoom", "userId": "host-1"})
	postAction(t, api, map[string]any{"action": "createRoom", "userId": "host-2"})

	resp := postAction(t, api, map[string]any{"action": "getRooms"})
	require.Equal(t, true, resp["success"])
	rooms, _ := resp["rooms"].([]any)
	require.Len(t, rooms, 2)
}

func TestAPIRejectsUnknownActionAndBadMethod(t *testing.T) {
	api := newTestAPI(t)

	resp := postAction(t, api, map[string]any{"action": "teleport"})
	require.Equal(t, false, resp["success"])

	req := httptest.NewRequest(http.MethodGet, "/api/v1", nil)
	rec := httptest.NewRecorder()
	api.ServeHTTP(rec, req)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	opts := httptest.NewRequest(http.MethodOptions, "/api/v1", nil)
	rec = httptest.NewRecorder()
	api.ServeHTTP(rec, opts)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
