package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/mathrumble/mathrumble/internal/game"
)

// WebSocketHandler serves the /ws/game upgrade endpoint.
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	log               zerolog.Logger
}

func NewWebSocketHandler(cm *ConnectionManager, logger zerolog.Logger) *WebSocketHandler {
	return &WebSocketHandler{connectionManager: cm, log: logger}
}

// HandleGameConnection upgrades a client into a room session. Identity
// arrives as query parameters; in production these would come from a
// session token.
func (h *WebSocketHandler) HandleGameConnection(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("room_id")
	if roomID == "" {
		http.Error(w, "room_id is required", http.StatusBadRequest)
		return
	}
	if !h.connectionManager.backend.HasGame(roomID) {
		http.Error(w, "game not found", http.StatusNotFound)
		return
	}

	playerID := r.URL.Query().Get("player_id")
	if playerID == "" {
		http.Error(w, "player_id is required", http.StatusBadRequest)
		return
	}
	username := r.URL.Query().Get("username")
	if username == "" {
		username = "Player"
	}
	team := r.URL.Query().Get("team")
	if team != "A" && team != "B" {
		team = "A"
	}

	p := game.PlayerInfo{
		PlayerID: playerID,
		UserID:   r.URL.Query().Get("user_id"),
		Username: username,
		Team:     team,
	}
	if err := h.connectionManager.UpgradeConnection(w, r, roomID, p); err != nil {
		h.log.Error().
			Err(err).
			Str("room_id", roomID).
			Str("player_id", playerID).
			Msg("failed to upgrade websocket connection")
	}
}

// HandleConnectionStats reports active connection counts.
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.connectionManager.GetConnectionStats()); err != nil {
		h.log.Error().Err(err).Msg("failed to write connection stats")
	}
}

// RegisterRoutes wires the WebSocket endpoints into the mux.
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/game/{room_id}", h.HandleGameConnection)
	mux.HandleFunc("GET /ws/stats", h.HandleConnectionStats)
}
