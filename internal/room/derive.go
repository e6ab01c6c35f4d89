package room

import (
	"github.com/wuzzlegames/wuzzle/internal/play"
)

// The functions here are pure derivations over persisted player state. Every
// client recomputes them on each snapshot; only the finished result is ever
// promoted back into the stored Status field, via an idempotent write.

// AllReady reports whether the room is playable: a non-empty roster with
// every player's ready flag set. A late joiner simply makes this false again
// until they also signal ready.
func AllReady(r *Room) bool {
	if len(r.Players) == 0 {
		return false
	}
	for _, p := range r.Players {
		if !p.Ready {
			return false
		}
	}
	return true
}

// Boards derives one player's board statistics from their own guess list.
func (r *Room) Boards(p *Player, guessLimit int) []play.BoardStat {
	return play.PlayerBoards(r.Solutions, p.Guesses, guessLimit, r.Speedrun)
}

// PlayerDone reports whether p can make no further progress: every board
// solved, or out of guesses (never in speedrun mode).
func PlayerDone(r *Room, p *Player, guessLimit int) bool {
	return play.Done(r.Boards(p, guessLimit))
}

// PlayerSolvedAll reports whether p has solved every board.
func PlayerSolvedAll(r *Room, p *Player, guessLimit int) bool {
	return play.SolvedAll(r.Boards(p, guessLimit))
}

// DeriveFinished reports whether a playing room has reached its end: every
// player has either solved all boards or exhausted their guesses.
func DeriveFinished(r *Room, guessLimit int) bool {
	if r.Status != StatusPlaying || len(r.Players) == 0 {
		return false
	}
	for _, p := range r.Players {
		if !PlayerDone(r, p, guessLimit) {
			return false
		}
	}
	return true
}
