// Package cleanup is the scheduled expiry job that keeps the rooms
// collection from growing without bound. It is stateless, idempotent, and
// safe to run concurrently with itself: deleting an already-deleted path is
// a no-op.
package cleanup

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/wuzzlegames/wuzzle/internal/room"
	"github.com/wuzzlegames/wuzzle/internal/store"
)

// DefaultTTL is how long a room may live before it becomes eligible for
// deletion, whatever its status.
const DefaultTTL = 30 * time.Minute

// Report is the aggregate outcome of one cleanup pass.
type Report struct {
	Scanned int `json:"scanned"`
	Deleted int `json:"deleted"`
	Failed  int `json:"failed"`
}

// Service deletes expired rooms and their chat subtrees.
type Service struct {
	store store.Store
	clock clockwork.Clock
	ttl   time.Duration
}

func NewService(st store.Store, clock clockwork.Clock, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{store: st, clock: clock, ttl: ttl}
}

// Run performs one cleanup pass. Per-room failures are logged and skipped so
// one faulty record never blocks cleanup of the rest; the error return is
// reserved for being unable to list rooms at all.
func (s *Service) Run(ctx context.Context) (Report, error) {
	var report Report

	keys, err := s.store.Keys(ctx, room.RoomsPrefix)
	if err != nil {
		return report, err
	}

	cutoff := s.clock.Now().Add(-s.ttl).UnixMilli()

	for _, key := range keys {
		code := strings.TrimPrefix(key, room.RoomsPrefix)
		if !room.ValidCode(code) {
			continue // chat logs and other nested paths ride along with their room
		}
		report.Scanned++

		if !s.expired(ctx, key, cutoff) {
			continue
		}

		if err := s.store.DeleteTree(ctx, key); err != nil {
			report.Failed++
			log.Error().Err(err).Str("room_code", code).Msg("failed to delete expired room")
			continue
		}
		report.Deleted++
		log.Info().Str("room_code", code).Msg("deleted expired room")
	}

	log.Info().
		Int("scanned", report.Scanned).
		Int("deleted", report.Deleted).
		Int("failed", report.Failed).
		Msg("cleanup pass complete")
	return report, nil
}

// expired reports whether the room at key should be deleted: older than the
// cutoff, empty of players, or unreadable (a record the coordinator can
// never load again serves no one).
func (s *Service) expired(ctx context.Context, key string, cutoff int64) bool {
	data, err := s.store.Get(ctx, key)
	if err != nil {
		// Already gone; a concurrent invocation got here first.
		return false
	}

	var r room.Room
	if err := json.Unmarshal(data, &r); err != nil {
		log.Warn().Err(err).Str("path", key).Msg("deleting undecodable room record")
		return true
	}
	if len(r.Players) == 0 {
		return true
	}
	return r.CreatedAt < cutoff
}
