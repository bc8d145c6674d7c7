// Package memory stores conversation history keyed by thread id.
package memory

import (
	"context"
	"errors"
	"time"
)

// DefaultMaxMessages bounds the history returned by Load.
const DefaultMaxMessages = 50

var ErrThreadNotFound = errors.New("thread not found")

type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists per-thread message history. Appends for the same thread
// from concurrent callers are not coordinated beyond the backend's own
// atomicity; the last writer wins.
type Store interface {
	// Load returns the most recent messages for a thread, oldest first, or
	// ErrThreadNotFound when the thread has none.
	Load(ctx context.Context, threadID string) ([]Message, error)
	Append(ctx context.Context, threadID string, msgs ...Message) error
	Close() error
}

func tail(msgs []Message, n int) []Message {
	if n > 0 && len(msgs) > n {
		return msgs[len(msgs)-n:]
	}
	return msgs
}
