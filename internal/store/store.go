package store

import (
	"context"
	"errors"
)

// Store is the shared real-time tree the room coordinator treats as its single
// source of truth. Paths are slash-separated ("rooms/123456",
// "rooms/123456/chat"); record paths hold one JSON document, log paths hold an
// append-only sequence of JSON entries.
type Store interface {
	// Get reads the document at path. Returns ErrNotFound for absent paths.
	Get(ctx context.Context, path string) ([]byte, error)

	// Set writes the document at path, creating it if absent.
	Set(ctx context.Context, path string, data []byte) error

	// Update performs an atomic read-modify-write of the document at path.
	// fn receives nil when the path does not exist and returns the new
	// document; returning an error aborts without writing.
	Update(ctx context.Context, path string, fn UpdateFunc) error

	// Delete removes the document at path. Deleting an absent path is a no-op.
	Delete(ctx context.Context, path string) error

	// DeleteTree removes the document at prefix and every path below it.
	DeleteTree(ctx context.Context, prefix string) error

	// Append adds one entry to the log at path.
	Append(ctx context.Context, path string, entry []byte) error

	// Last returns up to n most recent log entries at path, oldest first.
	Last(ctx context.Context, path string, n int) ([][]byte, error)

	// Keys lists all document paths beginning with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Watch subscribes to live updates of the document at path. The current
	// state is delivered immediately, then a snapshot per change. The channel
	// is closed when ctx is cancelled. A snapshot with Gone set means the
	// path was deleted, which subscribers must surface as a distinct
	// closed condition rather than an empty document.
	Watch(ctx context.Context, path string) (<-chan Snapshot, error)
}

// UpdateFunc transforms the current document into its replacement.
type UpdateFunc func(current []byte) ([]byte, error)

// Snapshot is one observed state of a watched path.
type Snapshot struct {
	Path string
	Data []byte
	Gone bool
}

var (
	// ErrNotFound marks a read of an absent path.
	ErrNotFound = errors.New("store: path not found")

	// ErrConflict marks an Update that kept losing its optimistic
	// transaction past the retry limit.
	ErrConflict = errors.New("store: concurrent update conflict")
)
