package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/wuzzlegames/wuzzle/internal/events"
	"github.com/wuzzlegames/wuzzle/internal/store"
	"github.com/wuzzlegames/wuzzle/internal/words"
)

// Config tunes the coordinator.
type Config struct {
	GuessLimit   int           // per-board guess limit outside speedrun mode
	Countdown    time.Duration // pre-game countdown shown to all clients
	CodeAttempts int           // collision-check retries when allocating a code
	MinPlayers   int
	MaxPlayers   int // upper bound a host may configure
	MaxBoards    int
}

func DefaultConfig() Config {
	return Config{
		GuessLimit:   6,
		Countdown:    3 * time.Second,
		CodeAttempts: 10,
		MinPlayers:   2,
		MaxPlayers:   8,
		MaxBoards:    8,
	}
}

// App coordinates room state in the shared store. It owns no state of its
// own; every operation is a guarded read-modify-write of the room document,
// partitioned so each mutable field has exactly one writer identity.
type App struct {
	store     store.Store
	publisher events.Publisher
	clock     clockwork.Clock
	config    Config
	speedrun  *SpeedrunClock
}

func NewApp(st store.Store, publisher events.Publisher, clock clockwork.Clock, cfg Config) *App {
	return &App{
		store:     st,
		publisher: publisher,
		clock:     clock,
		config:    cfg,
		speedrun:  NewSpeedrunClock(clock, cfg.Countdown),
	}
}

// SpeedrunClock exposes the shared clock reconciliation for presentation.
func (a *App) SpeedrunClock() *SpeedrunClock {
	return a.speedrun
}

// GuessLimit returns the configured per-board guess limit.
func (a *App) GuessLimit() int {
	return a.config.GuessLimit
}

// CreateOptions is the host's initial room configuration.
type CreateOptions struct {
	HostID   string
	HostName string
	Boards   int
	IsPublic bool
	Speedrun bool
	RoomName string
	// MaxPlayers defaults to the configured ceiling when zero.
	MaxPlayers int
}

// Create allocates a collision-checked 6-digit code and writes a fresh
// waiting room with the host as its only player.
func (a *App) Create(ctx context.Context, opts CreateOptions) (*Room, error) {
	if opts.MaxPlayers == 0 {
		opts.MaxPlayers = a.config.MaxPlayers
	}
	if err := a.validateConfig(opts.Boards, opts.MaxPlayers); err != nil {
		return nil, err
	}
	if opts.HostID == "" {
		return nil, ErrNotPlayer
	}

	now := a.clock.Now().UnixMilli()
	r := &Room{
		Status:       StatusWaiting,
		CreatedAt:    now,
		ConfigBoards: opts.Boards,
		MaxPlayers:   opts.MaxPlayers,
		IsPublic:     opts.IsPublic,
		Speedrun:     opts.Speedrun,
		Solutions:    words.Pick(opts.Boards),
		RoomName:     opts.RoomName,
		Players: map[string]*Player{
			opts.HostID: {
				Name:     opts.HostName,
				IsHost:   true,
				JoinedAt: now,
			},
		},
	}

	for attempt := 0; attempt < a.config.CodeAttempts; attempt++ {
		code, err := GenerateCode()
		if err != nil {
			return nil, err
		}
		if _, err := a.store.Get(ctx, RoomPath(code)); err == nil {
			continue // code already taken
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("check room code: %w", err)
		}

		r.Code = code
		data, err := json.Marshal(r)
		if err != nil {
			return nil, err
		}
		if err := a.store.Set(ctx, RoomPath(code), data); err != nil {
			return nil, fmt.Errorf("write room: %w", err)
		}

		a.publish(ctx, events.New(code, events.TypeRoomCreated, events.ConfigChangedPayload{
			Boards:     r.ConfigBoards,
			MaxPlayers: r.MaxPlayers,
			IsPublic:   r.IsPublic,
			Speedrun:   r.Speedrun,
			RoomName:   r.RoomName,
		}))
		log.Info().Str("room_code", code).Str("host_id", opts.HostID).Msg("room created")
		return r, nil
	}
	return nil, ErrCodeExhausted
}

// Get loads a room. Missing rooms surface as ErrRoomClosed, the explicit
// condition clients render instead of an indefinite loading state.
func (a *App) Get(ctx context.Context, code string) (*Room, error) {
	if !ValidCode(code) {
		return nil, ErrInvalidCode
	}
	data, err := a.store.Get(ctx, RoomPath(code))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrRoomClosed
	}
	if err != nil {
		return nil, err
	}
	var r Room
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode room %s: %w", code, err)
	}
	return &r, nil
}

// Join adds a player to a waiting room. Joining never touches other players'
// state; the all-ready condition simply becomes false until the newcomer is
// also ready.
func (a *App) Join(ctx context.Context, code, playerID, name string) (*Room, error) {
	r, err := a.mutate(ctx, code, func(r *Room) error {
		if r.Players[playerID] != nil {
			return nil // rejoin is a no-op
		}
		if r.Status != StatusWaiting {
			return ErrAlreadyStarted
		}
		if len(r.Players) >= r.MaxPlayers {
			return ErrRoomFull
		}
		r.Players[playerID] = &Player{
			Name:     name,
			JoinedAt: a.clock.Now().UnixMilli(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	a.publish(ctx, events.New(code, events.TypePlayerJoined, events.PlayerPayload{
		PlayerID: playerID, PlayerName: name,
	}))
	return r, nil
}

// Leave removes a player. The last player out deletes the room immediately;
// a departing host is not replaced, the room is left to expire. A roster
// shrink can also make every remaining player done, so the same write
// promotes the derived finished status.
func (a *App) Leave(ctx context.Context, code, playerID string) error {
	var name string
	var empty, finishedRoom bool
	_, err := a.mutate(ctx, code, func(r *Room) error {
		p := r.Players[playerID]
		if p == nil {
			return ErrNotPlayer
		}
		name = p.Name
		delete(r.Players, playerID)
		empty = len(r.Players) == 0
		if DeriveFinished(r, a.config.GuessLimit) {
			r.Status = StatusFinished
			finishedRoom = true
		}
		return nil
	})
	if err != nil {
		return err
	}

	if empty {
		if err := a.store.DeleteTree(ctx, RoomPath(code)); err != nil {
			return fmt.Errorf("delete empty room: %w", err)
		}
		log.Info().Str("room_code", code).Msg("deleted empty room")
	}

	a.publish(ctx, events.New(code, events.TypePlayerLeft, events.PlayerPayload{
		PlayerID: playerID, PlayerName: name,
	}))
	if finishedRoom {
		a.publish(ctx, events.New(code, events.TypeGameFinished, events.GameFinishedPayload{
			FinishedAt: a.clock.Now().UTC(),
		}))
	}
	return nil
}

// SetReady toggles the caller's own readiness flag. The signature accepts no
// target player: readiness is owner-writable only, by construction.
func (a *App) SetReady(ctx context.Context, code, playerID string, ready bool) (*Room, error) {
	r, err := a.mutate(ctx, code, func(r *Room) error {
		p := r.Players[playerID]
		if p == nil {
			return ErrNotPlayer
		}
		if r.Status != StatusWaiting {
			return ErrAlreadyStarted
		}
		p.Ready = ready
		return nil
	})
	if err != nil {
		return nil, err
	}
	a.publish(ctx, events.New(code, events.TypeReadyChanged, events.ReadyChangedPayload{
		PlayerID: playerID, Ready: ready, AllReady: AllReady(r),
	}))
	return r, nil
}

// ConfigUpdate carries a host's configuration edit. Nil fields are left
// unchanged.
type ConfigUpdate struct {
	Boards     *int
	MaxPlayers *int
	IsPublic   *bool
	Speedrun   *bool
	RoomName   *string
}

// UpdateConfig applies a host-only configuration edit. Gameplay settings
// are locked once the room leaves waiting; the room name is presentation
// only and may change at any point. Changing the board count re-picks the
// solution set so its length always matches.
func (a *App) UpdateConfig(ctx context.Context, code, playerID string, upd ConfigUpdate) (*Room, error) {
	r, err := a.mutate(ctx, code, func(r *Room) error {
		if err := requireHost(r, playerID); err != nil {
			return err
		}
		if upd.RoomName != nil {
			r.RoomName = *upd.RoomName
		}
		if upd.Boards == nil && upd.MaxPlayers == nil && upd.IsPublic == nil && upd.Speedrun == nil {
			return nil
		}
		if r.Status != StatusWaiting {
			return ErrAlreadyStarted
		}

		boards := r.ConfigBoards
		maxPlayers := r.MaxPlayers
		if upd.Boards != nil {
			boards = *upd.Boards
		}
		if upd.MaxPlayers != nil {
			maxPlayers = *upd.MaxPlayers
		}
		if err := a.validateConfig(boards, maxPlayers); err != nil {
			return err
		}
		if maxPlayers < len(r.Players) {
			return ErrInvalidConfig
		}

		if boards != r.ConfigBoards {
			r.ConfigBoards = boards
			r.Solutions = words.Pick(boards)
		}
		r.MaxPlayers = maxPlayers
		if upd.IsPublic != nil {
			r.IsPublic = *upd.IsPublic
		}
		if upd.Speedrun != nil {
			r.Speedrun = *upd.Speedrun
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	a.publish(ctx, events.New(code, events.TypeConfigChanged, events.ConfigChangedPayload{
		Boards:     r.ConfigBoards,
		MaxPlayers: r.MaxPlayers,
		IsPublic:   r.IsPublic,
		Speedrun:   r.Speedrun,
		RoomName:   r.RoomName,
	}))
	return r, nil
}

// Start flips a waiting room to playing. Host-only, and gated on the
// all-ready condition. StartedAt is written exactly once and becomes the
// single shared timestamp speedrun clocks reconcile against.
func (a *App) Start(ctx context.Context, code, playerID string) (*Room, error) {
	r, err := a.mutate(ctx, code, func(r *Room) error {
		if err := requireHost(r, playerID); err != nil {
			return err
		}
		if r.Status != StatusWaiting {
			return ErrBadTransition
		}
		if !AllReady(r) {
			return ErrNotAllReady
		}
		r.Status = StatusPlaying
		r.StartedAt = a.clock.Now().UnixMilli()
		return nil
	})
	if err != nil {
		return nil, err
	}
	a.publish(ctx, events.New(code, events.TypeGameStarted, events.GameStartedPayload{
		StartedAt:   time.UnixMilli(r.StartedAt),
		Boards:      r.ConfigBoards,
		Speedrun:    r.Speedrun,
		PlayerCount: len(r.Players),
	}))
	log.Info().Str("room_code", code).Int("players", len(r.Players)).Msg("game started")
	return r, nil
}

// SubmitGuess appends a guess to the caller's own list. Play is lock-free:
// no turn order, no cross-player writes. When the guess finishes the caller
// in speedrun mode, their final time is written once; when it finishes the
// whole room, the derived finished state is promoted in the same write.
func (a *App) SubmitGuess(ctx context.Context, code, playerID, word string) (*Room, error) {
	normalized := words.Normalize(word)
	if !words.Valid(normalized) {
		return nil, ErrInvalidGuess
	}

	var finishedPlayer, finishedRoom bool
	r, err := a.mutate(ctx, code, func(r *Room) error {
		if r.Status != StatusPlaying {
			return ErrBadTransition
		}
		p := r.Players[playerID]
		if p == nil {
			return ErrNotPlayer
		}
		if PlayerDone(r, p, a.config.GuessLimit) {
			return nil // already finished; extra submissions are no-ops
		}

		p.Guesses = append(p.Guesses, normalized)

		if PlayerSolvedAll(r, p, a.config.GuessLimit) {
			finishedPlayer = true
			if r.Speedrun && p.TimeMs == nil {
				elapsed := a.speedrun.ElapsedMs(r)
				p.TimeMs = &elapsed
			}
		}
		if DeriveFinished(r, a.config.GuessLimit) {
			r.Status = StatusFinished
			finishedRoom = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	p := r.Player(playerID)
	a.publish(ctx, events.New(code, events.TypeGuessSubmitted, events.GuessSubmittedPayload{
		PlayerID: playerID, GuessCount: len(p.Guesses),
	}))
	if finishedPlayer {
		a.publish(ctx, events.New(code, events.TypePlayerFinished, events.PlayerFinishedPayload{
			PlayerID: playerID, SolvedAll: true, TimeMs: p.TimeMs,
		}))
	}
	if finishedRoom {
		a.publish(ctx, events.New(code, events.TypeGameFinished, events.GameFinishedPayload{
			FinishedAt: a.clock.Now().UTC(),
		}))
	}
	return r, nil
}

// FinishIfDone promotes the derived finished state into the stored status.
// Any subscriber may call it on any snapshot; the first observer wins and
// setting an already-equal status is a no-op.
func (a *App) FinishIfDone(ctx context.Context, code string) (*Room, error) {
	var promoted bool
	r, err := a.mutate(ctx, code, func(r *Room) error {
		if !DeriveFinished(r, a.config.GuessLimit) {
			return nil
		}
		r.Status = StatusFinished
		promoted = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if promoted {
		a.publish(ctx, events.New(code, events.TypeGameFinished, events.GameFinishedPayload{
			FinishedAt: a.clock.Now().UTC(),
		}))
	}
	return r, nil
}

// Rematch resets a finished room back to waiting: fresh solutions, cleared
// guesses, readiness and times, same roster and configuration.
func (a *App) Rematch(ctx context.Context, code, playerID string) (*Room, error) {
	r, err := a.mutate(ctx, code, func(r *Room) error {
		if err := requireHost(r, playerID); err != nil {
			return err
		}
		if r.Status != StatusFinished {
			return ErrBadTransition
		}
		r.Status = StatusWaiting
		r.StartedAt = 0
		r.Solutions = words.Pick(r.ConfigBoards)
		for _, p := range r.Players {
			p.Guesses = nil
			p.Ready = false
			p.TimeMs = nil
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	a.publish(ctx, events.New(code, events.TypeRematchStarted, events.ConfigChangedPayload{
		Boards:     r.ConfigBoards,
		MaxPlayers: r.MaxPlayers,
		IsPublic:   r.IsPublic,
		Speedrun:   r.Speedrun,
		RoomName:   r.RoomName,
	}))
	return r, nil
}

// Close cancels a waiting room and removes it, chat included. Host-only.
func (a *App) Close(ctx context.Context, code, playerID string) error {
	_, err := a.mutate(ctx, code, func(r *Room) error {
		if err := requireHost(r, playerID); err != nil {
			return err
		}
		if !CanTransition(r.Status, StatusCancelled) {
			return ErrBadTransition
		}
		r.Status = StatusCancelled
		return nil
	})
	if err != nil {
		return err
	}

	if err := a.store.DeleteTree(ctx, RoomPath(code)); err != nil {
		return fmt.Errorf("delete closed room: %w", err)
	}
	a.publish(ctx, events.New(code, events.TypeRoomClosed, events.RoomClosedPayload{
		Reason: "closed by host",
	}))
	log.Info().Str("room_code", code).Msg("room closed by host")
	return nil
}

// View is one observed room state from a watch subscription.
type View struct {
	Room   *Room
	Closed bool
}

// Watch subscribes to a room's live updates. A deleted or expired room
// arrives as a Closed view, never as a silent stall.
func (a *App) Watch(ctx context.Context, code string) (<-chan View, error) {
	if !ValidCode(code) {
		return nil, ErrInvalidCode
	}
	snaps, err := a.store.Watch(ctx, RoomPath(code))
	if err != nil {
		return nil, err
	}

	out := make(chan View)
	go func() {
		defer close(out)
		for snap := range snaps {
			view := View{Closed: true}
			if !snap.Gone {
				var r Room
				if err := json.Unmarshal(snap.Data, &r); err != nil {
					log.Warn().Err(err).Str("room_code", code).Msg("bad room snapshot")
					continue
				}
				view = View{Room: &r}
			}
			select {
			case out <- view:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// mutate runs one guarded read-modify-write against the room document.
func (a *App) mutate(ctx context.Context, code string, fn func(r *Room) error) (*Room, error) {
	if !ValidCode(code) {
		return nil, ErrInvalidCode
	}

	var updated *Room
	err := a.store.Update(ctx, RoomPath(code), func(current []byte) ([]byte, error) {
		if current == nil {
			return nil, ErrRoomClosed
		}
		var r Room
		if err := json.Unmarshal(current, &r); err != nil {
			return nil, fmt.Errorf("decode room %s: %w", code, err)
		}
		if r.Players == nil {
			r.Players = map[string]*Player{}
		}
		if err := fn(&r); err != nil {
			return nil, err
		}
		updated = &r
		return json.Marshal(&r)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (a *App) validateConfig(boards, maxPlayers int) error {
	if boards < 1 || boards > a.config.MaxBoards {
		return ErrInvalidConfig
	}
	if maxPlayers < a.config.MinPlayers || maxPlayers > a.config.MaxPlayers {
		return ErrInvalidConfig
	}
	return nil
}

func requireHost(r *Room, playerID string) error {
	p := r.Players[playerID]
	if p == nil {
		return ErrNotPlayer
	}
	if !p.IsHost {
		return ErrNotHost
	}
	return nil
}

// publish emits an event without failing the operation that produced it; the
// store write already succeeded and subscribers converge on snapshots.
func (a *App) publish(ctx context.Context, event events.RoomEvent) {
	if err := a.publisher.Publish(ctx, event); err != nil {
		log.Warn().
			Err(err).
			Str("event_type", string(event.Type)).
			Str("room_code", event.RoomCode).
			Msg("failed to publish room event")
	}
}
