// Package events defines the typed room events emitted by the coordinator
// and the publisher that puts them on the bus.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Type identifies one kind of room event.
type Type string

const (
	TypeRoomCreated    Type = "RoomCreated"
	TypePlayerJoined   Type = "PlayerJoined"
	TypePlayerLeft     Type = "PlayerLeft"
	TypeReadyChanged   Type = "ReadyChanged"
	TypeConfigChanged  Type = "ConfigChanged"
	TypeGameStarted    Type = "GameStarted"
	TypeGuessSubmitted Type = "GuessSubmitted"
	TypePlayerFinished Type = "PlayerFinished"
	TypeGameFinished   Type = "GameFinished"
	TypeRematchStarted Type = "RematchStarted"
	TypeRoomClosed     Type = "RoomClosed"
	TypeChatPosted     Type = "ChatPosted"
)

// RoomEvent is the envelope every event travels in.
type RoomEvent struct {
	ID        string          `json:"id"`
	RoomCode  string          `json:"room_code"`
	Type      Type            `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// New wraps a payload in a fresh envelope. Marshal failures surface at
// publish time, not here, so callers stay one-liners.
func New(roomCode string, eventType Type, payload any) RoomEvent {
	data, _ := json.Marshal(payload)
	return RoomEvent{
		ID:        uuid.New().String(),
		RoomCode:  roomCode,
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// PlayerJoinedPayload accompanies PlayerJoined and PlayerLeft.
type PlayerPayload struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
}

// ReadyChangedPayload carries a readiness toggle.
type ReadyChangedPayload struct {
	PlayerID string `json:"player_id"`
	Ready    bool   `json:"ready"`
	AllReady bool   `json:"all_ready"`
}

// ConfigChangedPayload carries the post-edit room configuration.
type ConfigChangedPayload struct {
	Boards     int    `json:"boards"`
	MaxPlayers int    `json:"max_players"`
	IsPublic   bool   `json:"is_public"`
	Speedrun   bool   `json:"speedrun"`
	RoomName   string `json:"room_name"`
}

// GameStartedPayload marks the waiting → playing transition.
type GameStartedPayload struct {
	StartedAt   time.Time `json:"started_at"`
	Boards      int       `json:"boards"`
	Speedrun    bool      `json:"speedrun"`
	PlayerCount int       `json:"player_count"`
}

// GuessSubmittedPayload deliberately omits the guessed word; clients derive
// what they may see from the room snapshot and the visibility rule.
type GuessSubmittedPayload struct {
	PlayerID   string `json:"player_id"`
	GuessCount int    `json:"guess_count"`
}

// PlayerFinishedPayload marks one player completing all boards.
type PlayerFinishedPayload struct {
	PlayerID  string `json:"player_id"`
	SolvedAll bool   `json:"solved_all"`
	TimeMs    *int64 `json:"time_ms,omitempty"`
}

// GameFinishedPayload marks the derived playing → finished promotion.
type GameFinishedPayload struct {
	FinishedAt time.Time `json:"finished_at"`
}

// RoomClosedPayload carries why the room went away.
type RoomClosedPayload struct {
	Reason string `json:"reason"`
}
