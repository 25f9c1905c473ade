package server

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/duelink/duelink/internal/protocol"
	"github.com/duelink/duelink/internal/signaling"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,

	// The rendezvous service is origin-agnostic; clients are native
	// processes, not browsers bound to one frontend.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// NewRouter wires the websocket endpoint, the health check and the
// stateless API onto one router.
func NewRouter(hub *signaling.Hub) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", healthHandler).Methods(http.MethodGet)
	r.HandleFunc("/ws", ServeWs(hub))
	r.Handle("/api/v1", NewAPI(hub.Registry())).Methods(http.MethodPost, http.MethodOptions)
	return r
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Rendezvous server is healthy."))
}

// ServeWs returns an http.HandlerFunc that upgrades requests and hands the
// connection to the hub.
func ServeWs(hub *signaling.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("websocket upgrade failed", "err", err)
			return
		}

		client := &signaling.Client{
			Hub:  hub,
			Conn: conn,
			Send: make(chan *protocol.Message, 256),
		}
		hub.Register <- client

		go client.WritePump()
		go client.ReadPump()
	}
}
