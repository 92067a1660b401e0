// Package journal records every turn of a Pinocchio session: what was heard,
// which transform answered, and what was spoken back.
//
// Entries go to a [Store]. [FileStore] appends JSON lines to a local file, the
// postgres subpackage writes to a table, and [Nop] discards everything.
package journal

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Entry is one turn of a session.
type Entry struct {
	Time      time.Time `json:"time"`
	SessionID string    `json:"session_id"`
	Turn      int       `json:"turn"`

	// Outcome is the interaction outcome (responded, unrecognized, ...).
	Outcome string `json:"outcome"`

	Heard    string `json:"heard,omitempty"`
	Language string `json:"language,omitempty"`
	Route    string `json:"route,omitempty"`
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`

	ListenMs int64 `json:"listen_ms,omitempty"`
	STTMs    int64 `json:"stt_ms,omitempty"`
	TTSMs    int64 `json:"tts_ms,omitempty"`
}

// Store persists journal entries. Implementations are safe for concurrent use.
type Store interface {
	// Record appends e.
	Record(ctx context.Context, e Entry) error

	// Ping reports whether the store can currently accept entries.
	Ping(ctx context.Context) error

	// Close releases resources. Record must not be called afterwards.
	Close() error
}

// NewSessionID returns a time-ordered identifier for one run.
func NewSessionID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Nop is a [Store] that discards entries.
type Nop struct{}

var _ Store = Nop{}

func (Nop) Record(context.Context, Entry) error { return nil }
func (Nop) Ping(context.Context) error          { return nil }
func (Nop) Close() error                        { return nil }
