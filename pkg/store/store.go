package store

import (
	"context"
	"errors"

	"github.com/nstogner/searchchat/pkg/domain"
)

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("not found")

// TranscriptStore holds the append-only transcript of every live chat
// session. Messages are never edited or reordered once appended.
type TranscriptStore interface {
	// CreateSession registers a new, empty transcript.
	CreateSession(ctx context.Context, id string) error

	// Append adds a message to the end of its session's transcript.
	// The message ID must be set by the caller; a zero Timestamp is filled in.
	// Returns ErrNotFound if the session does not exist.
	Append(ctx context.Context, msg *domain.Message) error

	// Messages returns the transcript in append order.
	Messages(ctx context.Context, sessionID string) ([]domain.Message, error)

	// Count returns the number of messages in the transcript.
	Count(ctx context.Context, sessionID string) (int, error)

	// DeleteSession drops the session and its transcript.
	DeleteSession(ctx context.Context, id string) error

	// ListSessions returns all live sessions, newest first.
	ListSessions(ctx context.Context) ([]domain.SessionInfo, error)

	// Subscribe returns a channel that emits session IDs whenever a message
	// is appended. Slow subscribers miss notifications rather than block
	// writers.
	Subscribe() <-chan string
}
