package room_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wuzzlegames/wuzzle/internal/events"
	"github.com/wuzzlegames/wuzzle/internal/room"
	"github.com/wuzzlegames/wuzzle/internal/store"
)

type fixture struct {
	app   *room.App
	store store.Store
	clock *clockwork.FakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fc := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	st := store.NewMemoryStore()
	app := room.NewApp(st, events.NopPublisher{}, fc, room.DefaultConfig())
	return &fixture{app: app, store: st, clock: fc}
}

func (f *fixture) createRoom(t *testing.T, opts room.CreateOptions) *room.Room {
	t.Helper()
	if opts.HostID == "" {
		opts.HostID = "host-1"
		opts.HostName = "Ada"
	}
	if opts.Boards == 0 {
		opts.Boards = 1
	}
	r, err := f.app.Create(context.Background(), opts)
	require.NoError(t, err)
	return r
}

// setSolutions pins the randomly picked solution list so guesses are
// predictable, writing through the store like any other participant.
func (f *fixture) setSolutions(t *testing.T, code string, solutions []string) {
	t.Helper()
	err := f.store.Update(context.Background(), room.RoomPath(code), func(current []byte) ([]byte, error) {
		var r room.Room
		require.NoError(t, json.Unmarshal(current, &r))
		r.Solutions = solutions
		r.ConfigBoards = len(solutions)
		return json.Marshal(&r)
	})
	require.NoError(t, err)
}

func TestCreateRoom(t *testing.T) {
	f := newFixture(t)
	r := f.createRoom(t, room.CreateOptions{HostID: "host-1", HostName: "Ada", Boards: 2})

	assert.True(t, room.ValidCode(r.Code))
	assert.Equal(t, room.StatusWaiting, r.Status)
	assert.Equal(t, f.clock.Now().UnixMilli(), r.CreatedAt)
	assert.Zero(t, r.StartedAt)
	assert.Len(t, r.Solutions, 2)

	hostID, host := r.Host()
	require.NotNil(t, host)
	assert.Equal(t, "host-1", hostID)
	assert.Equal(t, "Ada", host.Name)
	assert.False(t, host.Ready)
}

func TestCreateRejectsBadConfig(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.app.Create(ctx, room.CreateOptions{HostID: "h", Boards: 0})
	assert.ErrorIs(t, err, room.ErrInvalidConfig)

	_, err = f.app.Create(ctx, room.CreateOptions{HostID: "h", Boards: 1, MaxPlayers: 1})
	assert.ErrorIs(t, err, room.ErrInvalidConfig)

	_, err = f.app.Create(ctx, room.CreateOptions{HostID: "h", Boards: 1, MaxPlayers: 9})
	assert.ErrorIs(t, err, room.ErrInvalidConfig)
}

func TestGetRejectsMalformedCode(t *testing.T) {
	f := newFixture(t)
	for _, code := range []string{"", "12345", "1234567", "12a456", "ABCDEF"} {
		_, err := f.app.Get(context.Background(), code)
		assert.ErrorIs(t, err, room.ErrInvalidCode, "code %q", code)
	}
}

func TestGetMissingRoomIsClosed(t *testing.T) {
	f := newFixture(t)
	_, err := f.app.Get(context.Background(), "999999")
	assert.ErrorIs(t, err, room.ErrRoomClosed)
}

func TestJoinAndCapacity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.createRoom(t, room.CreateOptions{MaxPlayers: 2})

	joined, err := f.app.Join(ctx, r.Code, "guest-1", "Grace")
	require.NoError(t, err)
	assert.Len(t, joined.Players, 2)
	assert.False(t, joined.Players["guest-1"].IsHost)

	_, err = f.app.Join(ctx, r.Code, "guest-2", "Edsger")
	assert.ErrorIs(t, err, room.ErrRoomFull)
}

func TestJoinRejectsStartedRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.createRoom(t, room.CreateOptions{})

	_, err := f.app.Join(ctx, r.Code, "guest-1", "Grace")
	require.NoError(t, err)
	readyAll(t, f, r.Code, "host-1", "guest-1")
	_, err = f.app.Start(ctx, r.Code, "host-1")
	require.NoError(t, err)

	_, err = f.app.Join(ctx, r.Code, "late", "Late")
	assert.ErrorIs(t, err, room.ErrAlreadyStarted)
}

func TestLateJoinerDoesNotResetReadiness(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.createRoom(t, room.CreateOptions{})

	_, err := f.app.SetReady(ctx, r.Code, "host-1", true)
	require.NoError(t, err)

	joined, err := f.app.Join(ctx, r.Code, "guest-1", "Grace")
	require.NoError(t, err)

	assert.True(t, joined.Players["host-1"].Ready)
	assert.False(t, room.AllReady(joined))
}

func TestReadyGateOnStart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.createRoom(t, room.CreateOptions{})
	_, err := f.app.Join(ctx, r.Code, "guest-1", "Grace")
	require.NoError(t, err)

	// Host cannot start until everyone is ready.
	_, err = f.app.Start(ctx, r.Code, "host-1")
	assert.ErrorIs(t, err, room.ErrNotAllReady)

	readyAll(t, f, r.Code, "host-1", "guest-1")

	// Guests cannot start at all.
	_, err = f.app.Start(ctx, r.Code, "guest-1")
	assert.ErrorIs(t, err, room.ErrNotHost)

	started, err := f.app.Start(ctx, r.Code, "host-1")
	require.NoError(t, err)
	assert.Equal(t, room.StatusPlaying, started.Status)
	assert.Equal(t, f.clock.Now().UnixMilli(), started.StartedAt)

	// The stored StartedAt is what every client reads back.
	fetched, err := f.app.Get(ctx, r.Code)
	require.NoError(t, err)
	assert.Equal(t, started.StartedAt, fetched.StartedAt)

	// Starting twice is an invalid transition, StartedAt stays put.
	_, err = f.app.Start(ctx, r.Code, "host-1")
	assert.ErrorIs(t, err, room.ErrBadTransition)
}

func TestSetReadyPermissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.createRoom(t, room.CreateOptions{})

	_, err := f.app.SetReady(ctx, r.Code, "stranger", true)
	assert.ErrorIs(t, err, room.ErrNotPlayer)

	// A stranger's rejected toggle left no trace.
	current, err := f.app.Get(ctx, r.Code)
	require.NoError(t, err)
	assert.Len(t, current.Players, 1)
	assert.False(t, current.Players["host-1"].Ready)
}

func TestUpdateConfigHostOnlyPreStart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.createRoom(t, room.CreateOptions{})
	_, err := f.app.Join(ctx, r.Code, "guest-1", "Grace")
	require.NoError(t, err)

	boards := 4
	_, err = f.app.UpdateConfig(ctx, r.Code, "guest-1", room.ConfigUpdate{Boards: &boards})
	assert.ErrorIs(t, err, room.ErrNotHost)

	updated, err := f.app.UpdateConfig(ctx, r.Code, "host-1", room.ConfigUpdate{Boards: &boards})
	require.NoError(t, err)
	assert.Equal(t, 4, updated.ConfigBoards)
	assert.Len(t, updated.Solutions, 4)

	bad := 0
	_, err = f.app.UpdateConfig(ctx, r.Code, "host-1", room.ConfigUpdate{Boards: &bad})
	assert.ErrorIs(t, err, room.ErrInvalidConfig)

	// Cap cannot drop below the current roster.
	maxPlayers := 2
	_, err = f.app.UpdateConfig(ctx, r.Code, "host-1", room.ConfigUpdate{MaxPlayers: &maxPlayers})
	assert.NoError(t, err)

	readyAll(t, f, r.Code, "host-1", "guest-1")
	_, err = f.app.Start(ctx, r.Code, "host-1")
	require.NoError(t, err)

	_, err = f.app.UpdateConfig(ctx, r.Code, "host-1", room.ConfigUpdate{Boards: &boards})
	assert.ErrorIs(t, err, room.ErrAlreadyStarted)
}

func TestHostRenamesAtAnyPhase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.createRoom(t, room.CreateOptions{MaxPlayers: 2, RoomName: "friday night"})
	_, err := f.app.Join(ctx, r.Code, "guest-1", "Grace")
	require.NoError(t, err)
	readyAll(t, f, r.Code, "host-1", "guest-1")
	_, err = f.app.Start(ctx, r.Code, "host-1")
	require.NoError(t, err)

	// The name is presentation only; renaming mid-game is allowed.
	name := "saturday rematch"
	updated, err := f.app.UpdateConfig(ctx, r.Code, "host-1", room.ConfigUpdate{RoomName: &name})
	require.NoError(t, err)
	assert.Equal(t, "saturday rematch", updated.RoomName)
	assert.Equal(t, room.StatusPlaying, updated.Status)

	// Still host-only, and gameplay settings stay locked.
	_, err = f.app.UpdateConfig(ctx, r.Code, "guest-1", room.ConfigUpdate{RoomName: &name})
	assert.ErrorIs(t, err, room.ErrNotHost)
	speedrun := true
	_, err = f.app.UpdateConfig(ctx, r.Code, "host-1", room.ConfigUpdate{Speedrun: &speedrun})
	assert.ErrorIs(t, err, room.ErrAlreadyStarted)
}

func TestSubmitGuessSolvesAndFinishes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.createRoom(t, room.CreateOptions{MaxPlayers: 2})
	_, err := f.app.Join(ctx, r.Code, "guest-1", "Grace")
	require.NoError(t, err)
	f.setSolutions(t, r.Code, []string{"apple"})
	readyAll(t, f, r.Code, "host-1", "guest-1")
	_, err = f.app.Start(ctx, r.Code, "host-1")
	require.NoError(t, err)

	// Player A solves in one guess; room is not finished while B plays on.
	after, err := f.app.SubmitGuess(ctx, r.Code, "host-1", "apple")
	require.NoError(t, err)
	assert.Equal(t, room.StatusPlaying, after.Status)

	stats := after.Boards(after.Players["host-1"], f.app.GuessLimit())
	require.Len(t, stats, 1)
	assert.True(t, stats[0].Solved)
	assert.Equal(t, 1, stats[0].GuessCount)

	// B finishes too; the same write promotes the derived finished status.
	after, err = f.app.SubmitGuess(ctx, r.Code, "guest-1", "apple")
	require.NoError(t, err)
	assert.Equal(t, room.StatusFinished, after.Status)
}

func TestSubmitGuessGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.createRoom(t, room.CreateOptions{})

	_, err := f.app.SubmitGuess(ctx, r.Code, "host-1", "apple")
	assert.ErrorIs(t, err, room.ErrBadTransition, "cannot guess before start")

	_, err = f.app.SubmitGuess(ctx, r.Code, "host-1", "zzzzz")
	assert.ErrorIs(t, err, room.ErrInvalidGuess, "dictionary check precedes store writes")

	readyAll(t, f, r.Code, "host-1")
	_, err = f.app.Start(ctx, r.Code, "host-1")
	require.NoError(t, err)

	_, err = f.app.SubmitGuess(ctx, r.Code, "stranger", "apple")
	assert.ErrorIs(t, err, room.ErrNotPlayer)
}

func TestGuessOwnershipPartition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.createRoom(t, room.CreateOptions{MaxPlayers: 2})
	_, err := f.app.Join(ctx, r.Code, "guest-1", "Grace")
	require.NoError(t, err)
	f.setSolutions(t, r.Code, []string{"apple"})
	readyAll(t, f, r.Code, "host-1", "guest-1")
	_, err = f.app.Start(ctx, r.Code, "host-1")
	require.NoError(t, err)

	after, err := f.app.SubmitGuess(ctx, r.Code, "host-1", "amber")
	require.NoError(t, err)

	// Only the submitting player's list grew.
	assert.Len(t, after.Players["host-1"].Guesses, 1)
	assert.Empty(t, after.Players["guest-1"].Guesses)
}

func TestFinishIfDoneIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.createRoom(t, room.CreateOptions{})
	f.setSolutions(t, r.Code, []string{"apple"})
	readyAll(t, f, r.Code, "host-1")
	_, err := f.app.Start(ctx, r.Code, "host-1")
	require.NoError(t, err)
	_, err = f.app.SubmitGuess(ctx, r.Code, "host-1", "apple")
	require.NoError(t, err)

	// The submit already promoted; both observers converge on the same state.
	first, err := f.app.FinishIfDone(ctx, r.Code)
	require.NoError(t, err)
	second, err := f.app.FinishIfDone(ctx, r.Code)
	require.NoError(t, err)
	assert.Equal(t, room.StatusFinished, first.Status)
	assert.Equal(t, room.StatusFinished, second.Status)
}

func TestRematchResetsForNewGame(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.createRoom(t, room.CreateOptions{MaxPlayers: 2})
	_, err := f.app.Join(ctx, r.Code, "guest-1", "Grace")
	require.NoError(t, err)
	f.setSolutions(t, r.Code, []string{"apple"})
	readyAll(t, f, r.Code, "host-1", "guest-1")
	_, err = f.app.Start(ctx, r.Code, "host-1")
	require.NoError(t, err)
	_, err = f.app.SubmitGuess(ctx, r.Code, "host-1", "apple")
	require.NoError(t, err)
	_, err = f.app.SubmitGuess(ctx, r.Code, "guest-1", "apple")
	require.NoError(t, err)

	_, err = f.app.Rematch(ctx, r.Code, "guest-1")
	assert.ErrorIs(t, err, room.ErrNotHost)

	again, err := f.app.Rematch(ctx, r.Code, "host-1")
	require.NoError(t, err)
	assert.Equal(t, room.StatusWaiting, again.Status)
	assert.Zero(t, again.StartedAt)
	assert.Len(t, again.Players, 2, "roster preserved")
	assert.Len(t, again.Solutions, again.ConfigBoards)
	for id, p := range again.Players {
		assert.Empty(t, p.Guesses, "player %s guesses cleared", id)
		assert.False(t, p.Ready)
		assert.Nil(t, p.TimeMs)
	}
}

func TestRematchRequiresFinished(t *testing.T) {
	f := newFixture(t)
	r := f.createRoom(t, room.CreateOptions{})
	_, err := f.app.Rematch(context.Background(), r.Code, "host-1")
	assert.ErrorIs(t, err, room.ErrBadTransition)
}

func TestCloseRemovesRoomAndChat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.createRoom(t, room.CreateOptions{})
	require.NoError(t, f.store.Append(ctx, room.ChatPath(r.Code), []byte(`{"text":"gl"}`)))

	err := f.app.Close(ctx, r.Code, "host-1")
	require.NoError(t, err)

	_, err = f.app.Get(ctx, r.Code)
	assert.ErrorIs(t, err, room.ErrRoomClosed)

	keys, err := f.store.Keys(ctx, room.RoomPath(r.Code))
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestCloseGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.createRoom(t, room.CreateOptions{})
	_, err := f.app.Join(ctx, r.Code, "guest-1", "Grace")
	require.NoError(t, err)

	err = f.app.Close(ctx, r.Code, "guest-1")
	assert.ErrorIs(t, err, room.ErrNotHost)

	readyAll(t, f, r.Code, "host-1", "guest-1")
	_, err = f.app.Start(ctx, r.Code, "host-1")
	require.NoError(t, err)

	err = f.app.Close(ctx, r.Code, "host-1")
	assert.ErrorIs(t, err, room.ErrBadTransition, "playing rooms cannot be cancelled")
}

func TestLeaveLastPlayerDeletesRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.createRoom(t, room.CreateOptions{})

	require.NoError(t, f.app.Leave(ctx, r.Code, "host-1"))

	_, err := f.app.Get(ctx, r.Code)
	assert.ErrorIs(t, err, room.ErrRoomClosed)
}

func TestLeaveKeepsRoomWithoutHostMigration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.createRoom(t, room.CreateOptions{})
	_, err := f.app.Join(ctx, r.Code, "guest-1", "Grace")
	require.NoError(t, err)

	require.NoError(t, f.app.Leave(ctx, r.Code, "host-1"))

	remaining, err := f.app.Get(ctx, r.Code)
	require.NoError(t, err)
	assert.Len(t, remaining.Players, 1)
	_, host := remaining.Host()
	assert.Nil(t, host, "no automatic host promotion; the room is left to expire")
}

func TestLeaveMidGamePromotesFinished(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.createRoom(t, room.CreateOptions{MaxPlayers: 2})
	_, err := f.app.Join(ctx, r.Code, "guest-1", "Grace")
	require.NoError(t, err)
	f.setSolutions(t, r.Code, []string{"apple"})
	readyAll(t, f, r.Code, "host-1", "guest-1")
	_, err = f.app.Start(ctx, r.Code, "host-1")
	require.NoError(t, err)

	after, err := f.app.SubmitGuess(ctx, r.Code, "host-1", "apple")
	require.NoError(t, err)
	require.Equal(t, room.StatusPlaying, after.Status)

	// The only player still guessing walks out; everyone left is done, so
	// the departure write itself finishes the game.
	require.NoError(t, f.app.Leave(ctx, r.Code, "guest-1"))

	remaining, err := f.app.Get(ctx, r.Code)
	require.NoError(t, err)
	assert.Equal(t, room.StatusFinished, remaining.Status)
}

func TestWatchSeesUpdatesAndClose(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := f.createRoom(t, room.CreateOptions{})

	views, err := f.app.Watch(ctx, r.Code)
	require.NoError(t, err)

	first := recvView(t, views)
	require.NotNil(t, first.Room)
	assert.Equal(t, room.StatusWaiting, first.Room.Status)

	_, err = f.app.SetReady(ctx, r.Code, "host-1", true)
	require.NoError(t, err)
	waitFor(t, views, func(v room.View) bool {
		return v.Room != nil && v.Room.Players["host-1"].Ready
	})

	require.NoError(t, f.app.Close(ctx, r.Code, "host-1"))
	waitFor(t, views, func(v room.View) bool { return v.Closed })
}

func readyAll(t *testing.T, f *fixture, code string, playerIDs ...string) {
	t.Helper()
	for _, id := range playerIDs {
		_, err := f.app.SetReady(context.Background(), code, id, true)
		require.NoError(t, err)
	}
}

func recvView(t *testing.T, views <-chan room.View) room.View {
	t.Helper()
	select {
	case v := <-views:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for room view")
		return room.View{}
	}
}

func waitFor(t *testing.T, views <-chan room.View, ok func(room.View) bool) room.View {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case v := <-views:
			if ok(v) {
				return v
			}
		case <-deadline:
			t.Fatal("timed out waiting for matching room view")
			return room.View{}
		}
	}
}
