package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/CrowderSoup/kanban/services"
)

// EventsHandler upgrades authenticated requests to websocket connections that
// receive the user's board events.
type EventsHandler struct {
	authService *services.AuthService
	hub         *services.Hub
	upgrader    websocket.Upgrader
}

func NewEventsHandler(authService *services.AuthService, hub *services.Hub, checkOrigin func(*http.Request) bool) *EventsHandler {
	return &EventsHandler{
		authService: authService,
		hub:         hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// HandleWebSocket upgrades the HTTP connection to a WebSocket connection.
// Browsers cannot set headers on the handshake, so the token may also come
// in the token query parameter.
func (h *EventsHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		var ok bool
		if token, ok = bearerToken(r); !ok {
			writeError(w, http.StatusUnauthorized, "Missing or invalid token")
			return
		}
	}

	userID, err := h.authService.VerifyJWT(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		slog.Warn("websocket upgrade failed", "user", userID, "error", err)
		return
	}

	client := services.NewClient(h.hub, conn, userID)
	if !h.hub.Register(client) {
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}
