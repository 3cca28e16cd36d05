// Package sessionstore records a summary of every finished echo session so
// operators can see who connected, how many turns were exchanged and how the
// session ended. Summaries live in memory (go-cache) or in Redis.
package sessionstore

import (
	"context"
	"strconv"
	"time"
)

// EndReason describes how a session finished.
type EndReason string

const (
	// EndQuit means the client sent "Quit" and received "Goodbye".
	EndQuit EndReason = "quit"
	// EndPeerClosed means the client closed the connection without quitting.
	EndPeerClosed EndReason = "peer_closed"
	// EndError means a read or send failed mid-session.
	EndError EndReason = "error"
	// EndShutdown means the server was closed while the session was active.
	EndShutdown EndReason = "shutdown"
)

// Summary describes one finished session.
type Summary struct {
	ID         uint32    `json:"id"`
	RemoteAddr string    `json:"remote_addr"`
	Messages   int       `json:"messages"`
	BytesIn    int       `json:"bytes_in"`
	StartedAt  time.Time `json:"started_at"`
	DurationMs float64   `json:"duration_ms"`
	EndReason  EndReason `json:"end_reason"`
}

// Store persists session summaries. Implementations must be safe for
// concurrent use.
type Store interface {
	// Save records s, replacing any summary with the same ID.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - s: The summary to store
	//
	// Returns:
	//   - An error if the summary could not be stored
	Save(ctx context.Context, s Summary) error

	// Get looks up the summary for a session ID.
	//
	// Returns:
	//   - The summary and true if found
	//   - An error if the lookup itself failed
	Get(ctx context.Context, id uint32) (Summary, bool, error)

	// Count returns the number of stored summaries.
	Count(ctx context.Context) (int, error)

	// Clear removes all summaries.
	Clear(ctx context.Context) error
}

// KeyPrefix is prepended to every session key.
const KeyPrefix = "echo:session:"

// Key returns the storage key for a session ID.
func Key(id uint32) string {
	return KeyPrefix + strconv.FormatUint(uint64(id), 10)
}
