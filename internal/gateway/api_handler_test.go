package gateway_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wuzzlegames/wuzzle/internal/chat"
	"github.com/wuzzlegames/wuzzle/internal/comments"
	"github.com/wuzzlegames/wuzzle/internal/events"
	"github.com/wuzzlegames/wuzzle/internal/gateway"
	"github.com/wuzzlegames/wuzzle/internal/play"
	"github.com/wuzzlegames/wuzzle/internal/room"
	"github.com/wuzzlegames/wuzzle/internal/store"
)

func newAPI(t *testing.T) *http.ServeMux {
	t.Helper()
	st := store.NewMemoryStore()
	clock := clockwork.NewFakeClock()
	rooms := room.NewApp(st, events.NopPublisher{}, clock, room.DefaultConfig())
	now := func() int64 { return clock.Now().UnixMilli() }

	mux := http.NewServeMux()
	gateway.NewAPIHandler(rooms, chat.NewApp(st, now), comments.NewApp(st, now)).RegisterRoutes(mux)
	return mux
}

func do(t *testing.T, mux *http.ServeMux, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, target, &buf))
	return rec
}

func TestRoomLifecycleOverHTTP(t *testing.T) {
	mux := newAPI(t)

	rec := do(t, mux, http.MethodPost, "/api/rooms", map[string]any{
		"hostId": "host-1", "hostName": "Ada", "boards": 1,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created room.Room
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Len(t, created.Code, 6)
	assert.Len(t, created.Solutions, 1, "clients score guesses locally, so the room carries its solutions")

	base := "/api/rooms/" + created.Code

	rec = do(t, mux, http.MethodPost, base+"/join", map[string]any{
		"playerId": "p2", "name": "Grace",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	for _, id := range []string{"host-1", "p2"} {
		rec = do(t, mux, http.MethodPost, base+"/ready", map[string]any{
			"playerId": id, "ready": true,
		})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec = do(t, mux, http.MethodPost, base+"/start", map[string]any{"playerId": "host-1"})
	require.Equal(t, http.StatusOK, rec.Code)

	var started room.Room
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	assert.Equal(t, room.StatusPlaying, started.Status)
	assert.Len(t, started.Solutions, 1)
}

func TestClientReplaysGuessesAgainstSolutions(t *testing.T) {
	mux := newAPI(t)

	rec := do(t, mux, http.MethodPost, "/api/rooms", map[string]any{
		"hostId": "host-1", "hostName": "Ada", "boards": 1,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created room.Room
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	base := "/api/rooms/" + created.Code

	rec = do(t, mux, http.MethodPost, base+"/join", map[string]any{
		"playerId": "p2", "name": "Grace",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	for _, id := range []string{"host-1", "p2"} {
		rec = do(t, mux, http.MethodPost, base+"/ready", map[string]any{
			"playerId": id, "ready": true,
		})
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec = do(t, mux, http.MethodPost, base+"/start", map[string]any{"playerId": "host-1"})
	require.Equal(t, http.StatusOK, rec.Code)

	var started room.Room
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	require.Len(t, started.Solutions, 1)

	rec = do(t, mux, http.MethodPost, base+"/guess", map[string]any{
		"playerId": "host-1", "guess": started.Solutions[0],
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// A client holding only this response must be able to rebuild every
	// player's colored board state; there is no server-computed score.
	rec = do(t, mux, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var current room.Room
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &current))
	require.Equal(t, room.StatusPlaying, current.Status)
	require.NotEmpty(t, current.Solutions)

	host := current.Player("host-1")
	require.NotNil(t, host)
	stats := play.PlayerBoards(current.Solutions, host.Guesses, 6, current.Speedrun)
	require.NotEmpty(t, stats)
	assert.True(t, stats[0].Solved)
	assert.Equal(t, 1, stats[0].GuessCount)
}

func TestErrorMapping(t *testing.T) {
	mux := newAPI(t)

	rec := do(t, mux, http.MethodPost, "/api/rooms", map[string]any{
		"hostId": "host-1", "hostName": "Ada", "boards": 1, "maxPlayers": 2,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created room.Room
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	base := "/api/rooms/" + created.Code

	tests := []struct {
		name   string
		method string
		target string
		body   any
		status int
	}{
		{"unknown room", http.MethodGet, "/api/rooms/999999", nil, http.StatusNotFound},
		{"malformed code", http.MethodGet, "/api/rooms/12ab56", nil, http.StatusBadRequest},
		{"non-host start", http.MethodPost, base + "/start",
			map[string]any{"playerId": "stranger"}, http.StatusForbidden},
		{"non-host close", http.MethodPost, base + "/close",
			map[string]any{"playerId": "stranger"}, http.StatusForbidden},
		{"bad json", http.MethodPost, base + "/join", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, mux, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.status, rec.Code)
		})
	}

	// Capacity conflict once the room is full.
	rec = do(t, mux, http.MethodPost, base+"/join", map[string]any{"playerId": "p2", "name": "Grace"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, mux, http.MethodPost, base+"/join", map[string]any{"playerId": "p3", "name": "Kay"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestChatOverHTTP(t *testing.T) {
	mux := newAPI(t)

	rec := do(t, mux, http.MethodPost, "/api/rooms", map[string]any{
		"hostId": "host-1", "hostName": "Ada", "boards": 1,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created room.Room
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	target := "/api/rooms/" + created.Code + "/chat"
	rec = do(t, mux, http.MethodPost, target, map[string]any{
		"playerId": "host-1", "name": "Ada", "text": "good luck!",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, mux, http.MethodPost, target, map[string]any{
		"playerId": "host-1", "name": "Ada", "text": "   ",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, mux, http.MethodGet, target, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var msgs []chat.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msgs))
	require.Len(t, msgs, 1)
	assert.Equal(t, "good luck!", msgs[0].Text)
}

func TestCommentsAndReactionsOverHTTP(t *testing.T) {
	mux := newAPI(t)

	rec := do(t, mux, http.MethodPost, "/api/comments/daily-2026-08-28", map[string]any{
		"userId": "u1", "username": "ada", "text": "tough one today",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var posted comments.Comment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &posted))

	rec = do(t, mux, http.MethodPost,
		"/api/comments/daily-2026-08-28/"+posted.ID+"/react",
		map[string]any{"userId": "u2", "emoji": "🔥"})
	require.Equal(t, http.StatusOK, rec.Code)

	var reacted comments.Comment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reacted))
	assert.Equal(t, "🔥", reacted.UserReactions["u2"])

	rec = do(t, mux, http.MethodPost,
		"/api/comments/daily-2026-08-28/missing/react",
		map[string]any{"userId": "u2", "emoji": "🔥"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
