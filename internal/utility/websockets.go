package utility

import (
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Hub holds the open dashboard connections: map[clientID] -> connection.
// Every tab the practitioner has open is its own client.
type Hub struct {
	mu       sync.Mutex
	clients  map[string]*websocket.Conn
	upgrader websocket.Upgrader
}

// NewHub accepts upgrades from browsers on allowedOrigins only. CORS does not
// cover websocket handshakes, so the cookie alone would let any site in.
// Requests without an Origin header come from non-browser clients and pass.
func NewHub(allowedOrigins ...string) *Hub {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[strings.ToLower(strings.TrimRight(o, "/"))] = true
	}
	return &Hub{
		clients: make(map[string]*websocket.Conn),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed[strings.ToLower(origin)]
			},
		},
	}
}

// Upgrade turns the request into a websocket. A rejected origin gets 403.
func (h *Hub) Upgrade(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	return h.upgrader.Upgrade(w, r, nil)
}

func (h *Hub) RegisterClient(clientID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[clientID] = conn
	log.Info().Str("client_id", clientID).Msg("WebSocket Client Connected")
}

func (h *Hub) UnregisterClient(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conn, ok := h.clients[clientID]; ok {
		conn.Close()
		delete(h.clients, clientID)
		log.Info().Str("client_id", clientID).Msg("WebSocket Client Disconnected")
	}
}

func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// TriggerDashboardUpdate tells every connected dashboard to refresh.
// Clients whose write fails are dropped.
func (h *Hub) TriggerDashboardUpdate() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, []byte("REFRESH")); err != nil {
			log.Error().Err(err).Str("client_id", id).Msg("Failed to send WS message, removing client")
			conn.Close()
			delete(h.clients, id)
		}
	}
}
