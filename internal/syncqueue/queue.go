// Package syncqueue buffers state-mutating writes while the client is
// disconnected and replays them on reconnect, giving at-least-once delivery
// over an unreliable channel. Entries past the retry ceiling are dropped with
// a logged failure; callers relying on delivery beyond that point must not.
package syncqueue

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// UpdateFunc is one deferred write. It is retried as a whole, so it must be
// safe to run more than once.
type UpdateFunc func(ctx context.Context) error

// Config tunes the queue. The zero value is unusable; use DefaultConfig and
// override what you need.
type Config struct {
	RetryAttempts int           // ceiling on executions per entry
	BaseDelay     time.Duration // backoff base: baseDelay × 2^(attempts−1)
	MaxSize       int           // queued entries beyond this drop the oldest
}

func DefaultConfig() Config {
	return Config{
		RetryAttempts: 3,
		BaseDelay:     2 * time.Second,
		MaxSize:       100,
	}
}

// Entry is one queued mutation, exported for "N updates pending" displays.
type Entry struct {
	Key       string
	Attempts  int
	Timestamp int64 // ms epoch of enqueue
	Metadata  map[string]string

	update      UpdateFunc
	nextAttempt time.Time
}

// Queue is an explicit object owned by whichever component initializes
// networking; configuration is injected, not global.
type Queue struct {
	config Config
	clock  clockwork.Clock

	mu      sync.Mutex
	entries []*Entry
	online  bool
}

func New(cfg Config, clock clockwork.Clock) *Queue {
	return &Queue{
		config: cfg,
		clock:  clock,
		online: true,
	}
}

// QueueUpdate enqueues a deferred write for key. When the queue is full the
// oldest entry is dropped to make room, with a logged failure.
func (q *Queue) QueueUpdate(key string, fn UpdateFunc, metadata map[string]string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) >= q.config.MaxSize {
		dropped := q.entries[0]
		q.entries = q.entries[1:]
		log.Error().
			Str("key", dropped.Key).
			Int("attempts", dropped.Attempts).
			Msg("sync queue full, dropping oldest entry")
	}

	q.entries = append(q.entries, &Entry{
		Key:       key,
		Timestamp: q.clock.Now().UnixMilli(),
		Metadata:  metadata,
		update:    fn,
	})
	log.Debug().Str("key", key).Int("queue_size", len(q.entries)).Msg("queued deferred update")
}

// ProcessQueue attempts to flush every due entry once and returns how many
// succeeded. Entries still inside their backoff window are left alone;
// entries reaching the attempt ceiling are dropped with a logged failure and
// never retried again. A queue that believes it is offline does nothing.
func (q *Queue) ProcessQueue(ctx context.Context) int {
	q.mu.Lock()
	if !q.online {
		q.mu.Unlock()
		return 0
	}
	due := make([]*Entry, 0, len(q.entries))
	now := q.clock.Now()
	for _, e := range q.entries {
		if !e.nextAttempt.After(now) {
			due = append(due, e)
		}
	}
	q.mu.Unlock()

	succeeded := 0
	for _, e := range due {
		err := e.update(ctx)

		q.mu.Lock()
		if err == nil {
			q.remove(e)
			succeeded++
			q.mu.Unlock()
			continue
		}

		e.Attempts++
		if e.Attempts >= q.config.RetryAttempts {
			q.remove(e)
			log.Error().
				Err(err).
				Str("key", e.Key).
				Int("attempts", e.Attempts).
				Msg("dropping update after retry ceiling")
		} else {
			backoff := q.config.BaseDelay * (1 << (e.Attempts - 1))
			e.nextAttempt = q.clock.Now().Add(backoff)
			log.Warn().
				Err(err).
				Str("key", e.Key).
				Int("attempts", e.Attempts).
				Dur("backoff", backoff).
				Msg("deferred update failed, will retry")
		}
		q.mu.Unlock()
	}
	return succeeded
}

// remove deletes e from the queue; callers hold the lock.
func (q *Queue) remove(target *Entry) {
	for i, e := range q.entries {
		if e == target {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return
		}
	}
}

// Size returns the number of pending entries, for "N updates pending"
// indicators.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// ConnectionStatus reports whether the queue currently believes it is online.
func (q *Queue) ConnectionStatus() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.online
}

// SetOnline records a connectivity change. Coming back online flushes the
// queue immediately.
func (q *Queue) SetOnline(ctx context.Context, online bool) {
	q.mu.Lock()
	wasOnline := q.online
	q.online = online
	q.mu.Unlock()

	if online && !wasOnline {
		log.Info().Int("pending", q.Size()).Msg("reconnected, flushing sync queue")
		q.ProcessQueue(ctx)
	}
}

// Start runs a periodic flush until ctx is cancelled, so entries whose
// backoff has elapsed are retried even without another trigger.
func (q *Queue) Start(ctx context.Context, interval time.Duration) {
	ticker := q.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			q.ProcessQueue(ctx)
		}
	}
}
