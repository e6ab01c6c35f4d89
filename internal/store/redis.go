package store

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	watchChannelPrefix = "watch:"
	updateTxRetries    = 8
	watchBuffer        = 16
)

// RedisStore implements Store over a single Redis instance. Documents are JSON
// strings keyed by path, logs are Redis lists, and live updates ride a pub/sub
// channel per path.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Get(ctx context.Context, path string) ([]byte, error) {
	data, err := s.rdb.Get(ctx, path).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *RedisStore) Set(ctx context.Context, path string, data []byte) error {
	if err := s.rdb.Set(ctx, path, data, 0).Err(); err != nil {
		return err
	}
	s.notify(ctx, path)
	return nil
}

func (s *RedisStore) Update(ctx context.Context, path string, fn UpdateFunc) error {
	for i := 0; i < updateTxRetries; i++ {
		err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			current, err := tx.Get(ctx, path).Bytes()
			if errors.Is(err, redis.Nil) {
				current = nil
			} else if err != nil {
				return err
			}

			next, err := fn(current)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, path, next, 0)
				return nil
			})
			return err
		}, path)

		if errors.Is(err, redis.TxFailedErr) {
			// Lost the optimistic race, reload and retry.
			continue
		}
		if err != nil {
			return err
		}
		s.notify(ctx, path)
		return nil
	}
	return ErrConflict
}

func (s *RedisStore) Delete(ctx context.Context, path string) error {
	if err := s.rdb.Del(ctx, path).Err(); err != nil {
		return err
	}
	s.notify(ctx, path)
	return nil
}

func (s *RedisStore) DeleteTree(ctx context.Context, prefix string) error {
	keys, err := s.Keys(ctx, prefix)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := s.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

func (s *RedisStore) Append(ctx context.Context, path string, entry []byte) error {
	if err := s.rdb.RPush(ctx, path, entry).Err(); err != nil {
		return err
	}
	s.notify(ctx, path)
	return nil
}

func (s *RedisStore) Last(ctx context.Context, path string, n int) ([][]byte, error) {
	raw, err := s.rdb.LRange(ctx, path, int64(-n), -1).Result()
	if err != nil {
		return nil, err
	}
	entries := make([][]byte, len(raw))
	for i, r := range raw {
		entries[i] = []byte(r)
	}
	return entries, nil
}

func (s *RedisStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := s.rdb.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

func (s *RedisStore) Watch(ctx context.Context, path string) (<-chan Snapshot, error) {
	sub := s.rdb.Subscribe(ctx, watchChannelPrefix+path)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	out := make(chan Snapshot, watchBuffer)
	go func() {
		defer close(out)
		defer func() { _ = sub.Close() }()

		// Deliver the current state before streaming changes, so a late
		// subscriber still sees the room it joined.
		out <- s.snapshot(ctx, path)

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- s.snapshot(ctx, path):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// snapshot fetches the state at path on notification rather than trusting the
// message payload, so duplicate or reordered notifications converge on the
// stored value.
func (s *RedisStore) snapshot(ctx context.Context, path string) Snapshot {
	data, err := s.Get(ctx, path)
	if errors.Is(err, ErrNotFound) {
		return Snapshot{Path: path, Gone: true}
	}
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("watch snapshot fetch failed")
		return Snapshot{Path: path, Gone: true}
	}
	return Snapshot{Path: path, Data: data}
}

func (s *RedisStore) notify(ctx context.Context, path string) {
	if err := s.rdb.Publish(ctx, watchChannelPrefix+path, "1").Err(); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("watch notify failed")
	}
}
