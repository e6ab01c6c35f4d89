// Package comments is the site-wide comment threads with per-user emoji
// reactions, stored under the top-level comments/ subtree.
package comments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/wuzzlegames/wuzzle/internal/store"
)

// RecentLimit caps thread reads at the most recent entries.
const RecentLimit = 300

// Comment is one entry in a thread. UserReactions maps user id → emoji, which
// by construction holds at most one reaction per user.
type Comment struct {
	ID            string            `json:"id"`
	UID           string            `json:"uid"`
	Username      string            `json:"username"`
	Text          string            `json:"text"`
	CreatedAt     int64             `json:"createdAt"`
	UserReactions map[string]string `json:"userReactions,omitempty"`
}

var (
	ErrEmptyComment    = errors.New("comments: empty comment")
	ErrUnknownComment  = errors.New("comments: comment not found")
	ErrMissingUserID   = errors.New("comments: reaction requires a user id")
	ErrMissingThreadID = errors.New("comments: empty thread id")
)

// App manages comment threads in the shared store.
type App struct {
	store store.Store
	now   func() int64
}

func NewApp(st store.Store, now func() int64) *App {
	return &App{store: st, now: now}
}

func threadPath(threadID string) string {
	return "comments/" + threadID
}

func commentPath(threadID, commentID string) string {
	return threadPath(threadID) + "/" + commentID
}

// Post adds a comment to a thread.
func (a *App) Post(ctx context.Context, threadID, uid, username, text string) (*Comment, error) {
	if strings.TrimSpace(threadID) == "" {
		return nil, ErrMissingThreadID
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyComment
	}

	c := &Comment{
		ID:        uuid.New().String(),
		UID:       uid,
		Username:  username,
		Text:      text,
		CreatedAt: a.now(),
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	// The thread log carries ordering; the per-comment document carries the
	// mutable reaction map.
	if err := a.store.Append(ctx, threadPath(threadID), []byte(c.ID)); err != nil {
		return nil, fmt.Errorf("append comment id: %w", err)
	}
	if err := a.store.Set(ctx, commentPath(threadID, c.ID), data); err != nil {
		return nil, fmt.Errorf("write comment: %w", err)
	}
	return c, nil
}

// Recent returns up to the last RecentLimit comments of a thread, oldest
// first, with their current reaction maps.
func (a *App) Recent(ctx context.Context, threadID string) ([]Comment, error) {
	if strings.TrimSpace(threadID) == "" {
		return nil, ErrMissingThreadID
	}
	ids, err := a.store.Last(ctx, threadPath(threadID), RecentLimit)
	if err != nil {
		return nil, fmt.Errorf("read comment thread: %w", err)
	}

	comments := make([]Comment, 0, len(ids))
	for _, id := range ids {
		data, err := a.store.Get(ctx, commentPath(threadID, string(id)))
		if err != nil {
			continue // deleted or unreadable; skip
		}
		var c Comment
		if err := json.Unmarshal(data, &c); err != nil {
			continue
		}
		comments = append(comments, c)
	}
	return comments, nil
}

// React sets userID's reaction on a comment, replacing any previous one.
// An empty emoji clears the reaction. Guests react under a client-generated
// id they persist themselves; the server does not mint identities.
func (a *App) React(ctx context.Context, threadID, commentID, userID, emoji string) (*Comment, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrMissingUserID
	}

	var updated *Comment
	err := a.store.Update(ctx, commentPath(threadID, commentID), func(current []byte) ([]byte, error) {
		if current == nil {
			return nil, ErrUnknownComment
		}
		var c Comment
		if err := json.Unmarshal(current, &c); err != nil {
			return nil, err
		}
		if c.UserReactions == nil {
			c.UserReactions = map[string]string{}
		}
		if emoji == "" {
			delete(c.UserReactions, userID)
		} else {
			c.UserReactions[userID] = emoji
		}
		updated = &c
		return json.Marshal(&c)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
