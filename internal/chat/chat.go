// Package chat is the append-only message log nested under each room.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/wuzzlegames/wuzzle/internal/room"
	"github.com/wuzzlegames/wuzzle/internal/store"
)

// RecentLimit caps reads at the most recent entries so a long-lived room
// never forces clients to pull the whole log.
const RecentLimit = 100

// Message is one chat entry under rooms/{code}/chat.
type Message struct {
	ID        string `json:"id"`
	UID       string `json:"uid"`
	Name      string `json:"name"`
	Text      string `json:"text"`
	CreatedAt int64  `json:"createdAt"`
}

var ErrEmptyMessage = errors.New("chat: empty message")

// App appends to and reads from room chat logs.
type App struct {
	store store.Store
	now   func() int64
}

func NewApp(st store.Store, now func() int64) *App {
	return &App{store: st, now: now}
}

// Post appends one message to the room's chat log.
func (a *App) Post(ctx context.Context, code, uid, name, text string) (*Message, error) {
	if !room.ValidCode(code) {
		return nil, room.ErrInvalidCode
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	msg := &Message{
		ID:        uuid.New().String(),
		UID:       uid,
		Name:      name,
		Text:      text,
		CreatedAt: a.now(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	if err := a.store.Append(ctx, room.ChatPath(code), data); err != nil {
		return nil, fmt.Errorf("append chat message: %w", err)
	}
	return msg, nil
}

// Recent returns up to the last RecentLimit messages, oldest first.
func (a *App) Recent(ctx context.Context, code string) ([]Message, error) {
	if !room.ValidCode(code) {
		return nil, room.ErrInvalidCode
	}
	entries, err := a.store.Last(ctx, room.ChatPath(code), RecentLimit)
	if err != nil {
		return nil, fmt.Errorf("read chat log: %w", err)
	}

	messages := make([]Message, 0, len(entries))
	for _, entry := range entries {
		var msg Message
		if err := json.Unmarshal(entry, &msg); err != nil {
			continue // skip unreadable entries rather than fail the read
		}
		messages = append(messages, msg)
	}
	return messages, nil
}
