package room

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// SpeedrunClock reconciles elapsed time from the single shared start
// timestamp instead of client-local timers, so heterogeneous client clocks
// agree. The countdown offset is the fixed pre-game countdown every client
// shows before play begins.
type SpeedrunClock struct {
	clock     clockwork.Clock
	countdown time.Duration
}

func NewSpeedrunClock(clock clockwork.Clock, countdown time.Duration) *SpeedrunClock {
	return &SpeedrunClock{clock: clock, countdown: countdown}
}

// Countdown returns the pre-game countdown offset.
func (c *SpeedrunClock) Countdown() time.Duration {
	return c.countdown
}

// Elapsed returns the room's live elapsed play time: now − (startedAt +
// countdown). During the countdown, and before the room starts, it is zero.
func (c *SpeedrunClock) Elapsed(r *Room) time.Duration {
	if r.StartedAt == 0 {
		return 0
	}
	playStart := time.UnixMilli(r.StartedAt).Add(c.countdown)
	elapsed := c.clock.Now().Sub(playStart)
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// ElapsedMs is Elapsed in the store's millisecond convention.
func (c *SpeedrunClock) ElapsedMs(r *Room) int64 {
	return c.Elapsed(r).Milliseconds()
}

// PlayerTime returns the duration to display for p. Once a stored finish
// time exists it is always preferred, so a finished player's time never
// drifts with the viewer's wall clock; final reports which case applied.
func (c *SpeedrunClock) PlayerTime(r *Room, p *Player) (elapsed time.Duration, final bool) {
	if p.TimeMs != nil {
		return time.Duration(*p.TimeMs) * time.Millisecond, true
	}
	return c.Elapsed(r), false
}
