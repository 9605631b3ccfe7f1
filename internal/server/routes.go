package server

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/BioHazard786/Meshdrop/internal/signaling"
	"github.com/BioHazard786/Meshdrop/internal/wire"
)

// Configure the websocket upgrader
var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024, // 64 KB
	WriteBufferSize: 64 * 1024, // 64 KB

	// We need to check the origin, but for development, we can allow all.
	// In production, you'd check r.Header.Get("Origin") against your frontend's domain
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ServeWs returns an http.HandlerFunc that upgrades the connection and hands
// it to the hub as a new client.
func ServeWs(hub *signaling.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Error("failed to upgrade connection", "err", err)
			return
		}

		client := &signaling.Client{
			ID:    uuid.NewString(),
			Hub:   hub,
			Conn:  conn,
			Rooms: make(map[string]struct{}),
			Send:  make(chan *wire.Message, 256),
		}

		slog.Debug("websocket connection established", "conn", client.ID, "addr", conn.RemoteAddr())
		client.Hub.Register <- client

		// Start the client's read and write pumps in separate goroutines.
		go client.WritePump()
		go client.ReadPump()
	}
}

// HealthCheck reports liveness for load balancers.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Signaling server is healthy."))
}

// Routes builds the HTTP mux for the signaling server.
func Routes(hub *signaling.Hub) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", HealthCheck)
	mux.HandleFunc("/ws", ServeWs(hub))
	return mux
}
