package syncqueue_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"

	"github.com/wuzzlegames/wuzzle/internal/syncqueue"
)

func newQueue(cfg syncqueue.Config) (*syncqueue.Queue, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	return syncqueue.New(cfg, clock), clock
}

// failNTimes returns an UpdateFunc that fails its first n calls, and a
// counter of calls made.
func failNTimes(n int) (syncqueue.UpdateFunc, *int) {
	calls := 0
	return func(context.Context) error {
		calls++
		if calls <= n {
			return errors.New("transient write failure")
		}
		return nil
	}, &calls
}

func TestImmediateSuccessRemovesEntry(t *testing.T) {
	q, _ := newQueue(syncqueue.DefaultConfig())
	fn, calls := failNTimes(0)

	q.QueueUpdate("rooms/123456/players/p1", fn, nil)
	assert.Equal(t, 1, q.Size())

	assert.Equal(t, 1, q.ProcessQueue(context.Background()))
	assert.Equal(t, 0, q.Size())
	assert.Equal(t, 1, *calls)
}

func TestRetrySucceedsWithinCeiling(t *testing.T) {
	cfg := syncqueue.DefaultConfig()
	cfg.RetryAttempts = 3
	q, clock := newQueue(cfg)
	ctx := context.Background()

	fn, calls := failNTimes(2)
	q.QueueUpdate("rooms/123456/players/p1", fn, nil)

	// First attempt fails; entry stays with backoff base × 2^0.
	assert.Equal(t, 0, q.ProcessQueue(ctx))
	assert.Equal(t, 1, q.Size())
	assert.Equal(t, 1, *calls)

	// Still inside the backoff window: nothing runs.
	assert.Equal(t, 0, q.ProcessQueue(ctx))
	assert.Equal(t, 1, *calls)

	clock.Advance(cfg.BaseDelay)
	assert.Equal(t, 0, q.ProcessQueue(ctx))
	assert.Equal(t, 2, *calls)

	// Second failure doubles the delay.
	clock.Advance(cfg.BaseDelay)
	assert.Equal(t, 0, q.ProcessQueue(ctx))
	assert.Equal(t, 2, *calls, "backoff is base × 2^(attempts−1)")

	clock.Advance(cfg.BaseDelay)
	assert.Equal(t, 1, q.ProcessQueue(ctx))
	assert.Equal(t, 3, *calls, "third attempt succeeds")
	assert.Equal(t, 0, q.Size())
}

func TestEntryDroppedAtCeiling(t *testing.T) {
	cfg := syncqueue.DefaultConfig()
	cfg.RetryAttempts = 2
	q, clock := newQueue(cfg)
	ctx := context.Background()

	fn, calls := failNTimes(2) // would succeed on the third call, but never gets it
	q.QueueUpdate("rooms/123456/players/p1", fn, nil)

	q.ProcessQueue(ctx)
	clock.Advance(cfg.BaseDelay)
	q.ProcessQueue(ctx)

	assert.Equal(t, 0, q.Size(), "dropped after reaching the attempt ceiling")
	assert.Equal(t, 2, *calls)

	// No third attempt, ever.
	clock.Advance(time.Hour)
	q.ProcessQueue(ctx)
	assert.Equal(t, 2, *calls)
}

func TestOfflineQueueHoldsUntilReconnect(t *testing.T) {
	q, _ := newQueue(syncqueue.DefaultConfig())
	ctx := context.Background()

	q.SetOnline(ctx, false)
	assert.False(t, q.ConnectionStatus())

	fn, calls := failNTimes(0)
	q.QueueUpdate("rooms/123456/players/p1", fn, map[string]string{"op": "ready"})

	q.ProcessQueue(ctx)
	assert.Equal(t, 0, *calls, "offline queue does not flush")
	assert.Equal(t, 1, q.Size())

	// Reconnecting flushes automatically.
	q.SetOnline(ctx, true)
	assert.Equal(t, 0, q.Size())
	assert.Equal(t, 1, *calls)
}

func TestOverflowDropsOldest(t *testing.T) {
	cfg := syncqueue.DefaultConfig()
	cfg.MaxSize = 2
	q, _ := newQueue(cfg)

	blocked := func(context.Context) error { return errors.New("still offline") }
	q.QueueUpdate("first", blocked, nil)
	q.QueueUpdate("second", blocked, nil)
	q.QueueUpdate("third", blocked, nil)

	assert.Equal(t, 2, q.Size())
}

func TestMultipleEntriesFlushIndependently(t *testing.T) {
	q, _ := newQueue(syncqueue.DefaultConfig())
	ctx := context.Background()

	okFn, okCalls := failNTimes(0)
	badFn, badCalls := failNTimes(10)
	q.QueueUpdate("good", okFn, nil)
	q.QueueUpdate("bad", badFn, nil)

	assert.Equal(t, 1, q.ProcessQueue(ctx))
	assert.Equal(t, 1, *okCalls)
	assert.Equal(t, 1, *badCalls)
	assert.Equal(t, 1, q.Size(), "failing entry stays queued")
}
