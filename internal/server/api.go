package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/duelink/duelink/internal/signaling"
)

// API is the stateless request/response variant of the rendezvous service:
// one-shot room and roster bookkeeping for deployments without a persistent
// connection. It cannot relay peer negotiation (no server push); clients
// needing a peer link use the websocket protocol.
type API struct {
	registry *signaling.Registry
}

// NewAPI creates the stateless API over the shared registry.
func NewAPI(registry *signaling.Registry) *API {
	return &API{registry: registry}
}

type apiRequest struct {
	Action   string `json:"action"`
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId"`
	TargetID string `json:"targetId"`
	Location string `json:"location"`
}

// apiResponse is the {success, ...} shape every action answers with.
type apiResponse map[string]any

func failure(msg string) apiResponse {
	return apiResponse{"success": false, "error": msg}
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, failure("only POST is supported"))
		return
	}

	var req apiRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, failure("invalid JSON request body"))
		return
	}

	slog.Debug("api request", "action", req.Action, "room", req.RoomID, "user", req.UserID)
	writeJSON(w, http.StatusOK, a.dispatch(req))
}

func (a *API) dispatch(req apiRequest) apiResponse {
	switch req.Action {
	case "createRoom":
		roomID := a.registry.CreateRoomWithID(req.RoomID, req.UserID)
		return apiResponse{"success": true, "roomId": roomID}

	case "joinRoom":
		result, err := a.registry.JoinRoom(req.RoomID, req.UserID)
		if err != nil {
			return failure(err.Error())
		}
		return apiResponse{"success": true, "roomId": result.RoomID, "hostId": result.OwnerID}

	case "leaveRoom":
		result, err := a.registry.LeaveRoomMember(req.RoomID, req.UserID)
		if err != nil {
			return failure(err.Error())
		}
		return apiResponse{"success": true, "roomClosed": result.Destroyed}

	case "updateLocation":
		a.registry.UpdateLocation(req.UserID, req.Location)
		return apiResponse{"success": true}

	case "sendCombatRequest":
		if !a.registry.MemberOfRoom(req.RoomID, req.TargetID) {
			return failure("target user is not in the room")
		}
		return apiResponse{"success": true, "message": "combat request sent"}

	case "getRooms":
		return apiResponse{"success": true, "rooms": a.registry.RoomSummaries()}

	default:
		return failure("unknown action: " + req.Action)
	}
}

func writeJSON(w http.ResponseWriter, status int, body apiResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("api response encode failed", "err", err)
	}
}
