package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/wuzzlegames/wuzzle/internal/chat"
	"github.com/wuzzlegames/wuzzle/internal/comments"
	"github.com/wuzzlegames/wuzzle/internal/room"
)

// APIHandler exposes the room coordinator, chat, and comment apps over
// plain JSON endpoints. Clients hold state via the WebSocket push; these
// routes carry their writes.
type APIHandler struct {
	rooms    *room.App
	chat     *chat.App
	comments *comments.App
}

func NewAPIHandler(rooms *room.App, chatApp *chat.App, commentsApp *comments.App) *APIHandler {
	return &APIHandler{
		rooms:    rooms,
		chat:     chatApp,
		comments: commentsApp,
	}
}

// RegisterRoutes attaches all API routes to the mux.
func (h *APIHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/rooms", h.handleCreateRoom)
	mux.HandleFunc("GET /api/rooms/{code}", h.handleGetRoom)
	mux.HandleFunc("POST /api/rooms/{code}/join", h.handleJoin)
	mux.HandleFunc("POST /api/rooms/{code}/leave", h.handleLeave)
	mux.HandleFunc("POST /api/rooms/{code}/ready", h.handleReady)
	mux.HandleFunc("PATCH /api/rooms/{code}/config", h.handleConfig)
	mux.HandleFunc("POST /api/rooms/{code}/start", h.handleStart)
	mux.HandleFunc("POST /api/rooms/{code}/guess", h.handleGuess)
	mux.HandleFunc("POST /api/rooms/{code}/rematch", h.handleRematch)
	mux.HandleFunc("POST /api/rooms/{code}/close", h.handleClose)
	mux.HandleFunc("GET /api/rooms/{code}/chat", h.handleChatRecent)
	mux.HandleFunc("POST /api/rooms/{code}/chat", h.handleChatPost)
	mux.HandleFunc("GET /api/comments/{thread}", h.handleCommentsRecent)
	mux.HandleFunc("POST /api/comments/{thread}", h.handleCommentPost)
	mux.HandleFunc("POST /api/comments/{thread}/{id}/react", h.handleReact)
}

type createRoomRequest struct {
	HostID     string `json:"hostId"`
	HostName   string `json:"hostName"`
	Boards     int    `json:"boards"`
	IsPublic   bool   `json:"isPublic"`
	Speedrun   bool   `json:"speedrun"`
	RoomName   string `json:"roomName"`
	MaxPlayers int    `json:"maxPlayers"`
}

func (h *APIHandler) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.HostID == "" || req.HostName == "" {
		http.Error(w, "hostId and hostName are required", http.StatusBadRequest)
		return
	}

	created, err := h.rooms.Create(r.Context(), room.CreateOptions{
		HostID:     req.HostID,
		HostName:   req.HostName,
		Boards:     req.Boards,
		IsPublic:   req.IsPublic,
		Speedrun:   req.Speedrun,
		RoomName:   req.RoomName,
		MaxPlayers: req.MaxPlayers,
	})
	if err != nil {
		writeRoomError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *APIHandler) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	current, err := h.rooms.Get(r.Context(), r.PathValue("code"))
	if err != nil {
		writeRoomError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, current)
}

type playerRequest struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name,omitempty"`
	Ready    bool   `json:"ready,omitempty"`
	Guess    string `json:"guess,omitempty"`
}

func (h *APIHandler) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req playerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	current, err := h.rooms.Join(r.Context(), r.PathValue("code"), req.PlayerID, req.Name)
	if err != nil {
		writeRoomError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, current)
}

func (h *APIHandler) handleLeave(w http.ResponseWriter, r *http.Request) {
	var req playerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.rooms.Leave(r.Context(), r.PathValue("code"), req.PlayerID); err != nil {
		writeRoomError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) handleReady(w http.ResponseWriter, r *http.Request) {
	var req playerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	current, err := h.rooms.SetReady(r.Context(), r.PathValue("code"), req.PlayerID, req.Ready)
	if err != nil {
		writeRoomError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, current)
}

type configRequest struct {
	PlayerID   string  `json:"playerId"`
	Boards     *int    `json:"boards,omitempty"`
	MaxPlayers *int    `json:"maxPlayers,omitempty"`
	IsPublic   *bool   `json:"isPublic,omitempty"`
	Speedrun   *bool   `json:"speedrun,omitempty"`
	RoomName   *string `json:"roomName,omitempty"`
}

func (h *APIHandler) handleConfig(w http.ResponseWriter, r *http.Request) {
	var req configRequest
	if !decodeBody(w, r, &req) {
		return
	}
	current, err := h.rooms.UpdateConfig(r.Context(), r.PathValue("code"), req.PlayerID, room.ConfigUpdate{
		Boards:     req.Boards,
		MaxPlayers: req.MaxPlayers,
		IsPublic:   req.IsPublic,
		Speedrun:   req.Speedrun,
		RoomName:   req.RoomName,
	})
	if err != nil {
		writeRoomError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, current)
}

func (h *APIHandler) handleStart(w http.ResponseWriter, r *http.Request) {
	var req playerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	current, err := h.rooms.Start(r.Context(), r.PathValue("code"), req.PlayerID)
	if err != nil {
		writeRoomError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, current)
}

func (h *APIHandler) handleGuess(w http.ResponseWriter, r *http.Request) {
	var req playerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	current, err := h.rooms.SubmitGuess(r.Context(), r.PathValue("code"), req.PlayerID, req.Guess)
	if err != nil {
		writeRoomError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, current)
}

func (h *APIHandler) handleRematch(w http.ResponseWriter, r *http.Request) {
	var req playerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	current, err := h.rooms.Rematch(r.Context(), r.PathValue("code"), req.PlayerID)
	if err != nil {
		writeRoomError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, current)
}

func (h *APIHandler) handleClose(w http.ResponseWriter, r *http.Request) {
	var req playerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.rooms.Close(r.Context(), r.PathValue("code"), req.PlayerID); err != nil {
		writeRoomError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type chatRequest struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Text     string `json:"text"`
}

func (h *APIHandler) handleChatPost(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decodeBody(w, r, &req) {
		return
	}
	msg, err := h.chat.Post(r.Context(), r.PathValue("code"), req.PlayerID, req.Name, req.Text)
	if err != nil {
		writeRoomError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (h *APIHandler) handleChatRecent(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.chat.Recent(r.Context(), r.PathValue("code"))
	if err != nil {
		writeRoomError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

type commentRequest struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Text     string `json:"text"`
	Emoji    string `json:"emoji"`
}

func (h *APIHandler) handleCommentPost(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	c, err := h.comments.Post(r.Context(), r.PathValue("thread"), req.UserID, req.Username, req.Text)
	if err != nil {
		writeRoomError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *APIHandler) handleCommentsRecent(w http.ResponseWriter, r *http.Request) {
	list, err := h.comments.Recent(r.Context(), r.PathValue("thread"))
	if err != nil {
		writeRoomError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *APIHandler) handleReact(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	c, err := h.comments.React(r.Context(), r.PathValue("thread"), r.PathValue("id"), req.UserID, req.Emoji)
	if err != nil {
		writeRoomError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return false
	}
	return true
}

func writeRoomError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, room.ErrRoomClosed):
		http.Error(w, err.Error(), http.StatusNotFound)
	case room.IsPermission(err):
		http.Error(w, err.Error(), http.StatusForbidden)
	case room.IsValidation(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, room.ErrRoomFull),
		errors.Is(err, room.ErrAlreadyStarted),
		errors.Is(err, room.ErrNotAllReady),
		errors.Is(err, room.ErrBadTransition):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, chat.ErrEmptyMessage),
		errors.Is(err, comments.ErrEmptyComment),
		errors.Is(err, comments.ErrMissingUserID),
		errors.Is(err, comments.ErrMissingThreadID):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, comments.ErrUnknownComment):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		log.Error().Err(err).Msg("room operation failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}
