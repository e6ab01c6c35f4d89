package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/wuzzlegames/wuzzle/internal/events"
	"github.com/wuzzlegames/wuzzle/internal/room"
)

// TypeRoomSnapshot is the synthetic event carrying the full room state,
// sent once right after a connection is established.
const TypeRoomSnapshot events.Type = "RoomSnapshot"

// WebSocketHandler upgrades clients onto a room's event feed.
type WebSocketHandler struct {
	manager *ConnectionManager
	rooms   *room.App
}

func NewWebSocketHandler(manager *ConnectionManager, rooms *room.App) *WebSocketHandler {
	return &WebSocketHandler{manager: manager, rooms: rooms}
}

// ServeHTTP handles GET /ws?room=123456&player=<id>. The room must exist
// before the upgrade; expired rooms answer with a distinct room-closed error
// instead of hanging the client.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("room")
	playerID := r.URL.Query().Get("player")
	if playerID == "" {
		httpError(w, http.StatusBadRequest, "player id required")
		return
	}
	if !room.ValidCode(code) {
		httpError(w, http.StatusBadRequest, room.ErrInvalidCode.Error())
		return
	}

	current, err := h.rooms.Get(r.Context(), code)
	if errors.Is(err, room.ErrRoomClosed) {
		httpError(w, http.StatusNotFound, "room closed")
		return
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, "failed to load room")
		return
	}

	conn, err := h.manager.Upgrade(w, r, playerID, code)
	if err != nil {
		log.Error().Err(err).Str("room_code", code).Msg("websocket upgrade failed")
		return
	}

	conn.SendEvent(events.New(code, TypeRoomSnapshot, current))
}

func httpError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
