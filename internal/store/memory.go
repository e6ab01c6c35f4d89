package store

import (
	"context"
	"strings"
	"sync"
)

// MemoryStore is a mutex-guarded in-process Store. It backs tests and the
// client-side offline path, where no Redis connection exists.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string][]byte
	logs map[string][][]byte
	subs map[string][]*memorySub
}

type memorySub struct {
	ch   chan Snapshot
	done <-chan struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string][]byte),
		logs: make(map[string][][]byte),
		subs: make(map[string][]*memorySub),
	}
}

func (s *MemoryStore) Get(_ context.Context, path string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.docs[path]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (s *MemoryStore) Set(_ context.Context, path string, data []byte) error {
	s.mu.Lock()
	s.docs[path] = append([]byte(nil), data...)
	s.notifyLocked(path)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Update(_ context.Context, path string, fn UpdateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.docs[path]
	next, err := fn(current)
	if err != nil {
		return err
	}
	s.docs[path] = append([]byte(nil), next...)
	s.notifyLocked(path)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, path string) error {
	s.mu.Lock()
	delete(s.docs, path)
	delete(s.logs, path)
	s.notifyLocked(path)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) DeleteTree(ctx context.Context, prefix string) error {
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

func (s *MemoryStore) Append(_ context.Context, path string, entry []byte) error {
	s.mu.Lock()
	s.logs[path] = append(s.logs[path], append([]byte(nil), entry...))
	s.notifyLocked(path)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Last(_ context.Context, path string, n int) ([][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.logs[path]
	if len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	out := make([][]byte, len(entries))
	for i, e := range entries {
		out[i] = append([]byte(nil), e...)
	}
	return out, nil
}

func (s *MemoryStore) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string
	for k := range s.docs {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	for k := range s.logs {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (s *MemoryStore) Watch(ctx context.Context, path string) (<-chan Snapshot, error) {
	sub := &memorySub{ch: make(chan Snapshot, watchBuffer), done: ctx.Done()}

	s.mu.Lock()
	s.subs[path] = append(s.subs[path], sub)
	sub.send(s.snapshotLocked(path))
	s.mu.Unlock()

	out := make(chan Snapshot, watchBuffer)
	go func() {
		defer close(out)
		defer s.unsubscribe(path, sub)
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-sub.ch:
				select {
				case out <- snap:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (s *MemoryStore) snapshotLocked(path string) Snapshot {
	data, ok := s.docs[path]
	if !ok {
		return Snapshot{Path: path, Gone: true}
	}
	return Snapshot{Path: path, Data: append([]byte(nil), data...)}
}

func (s *MemoryStore) notifyLocked(path string) {
	snap := s.snapshotLocked(path)
	for _, sub := range s.subs[path] {
		sub.send(snap)
	}
}

func (sub *memorySub) send(snap Snapshot) {
	select {
	case sub.ch <- snap:
	case <-sub.done:
	default:
		// Slow subscriber; it will converge on the next snapshot.
	}
}

func (s *MemoryStore) unsubscribe(path string, sub *memorySub) {
	s.mu.Lock()
	defer s.mu.Unlock()
	subs := s.subs[path]
	for i, candidate := range subs {
		if candidate == sub {
			s.subs[path] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(s.subs[path]) == 0 {
		delete(s.subs, path)
	}
}
