// Package ledger persists the match record a crashed or interrupted
// tournament run needs to resume without replaying finished games. Two
// backends share the Store interface — a JSON file snapshot written
// atomically (write-temp-then-rename) and a Redis store using
// WATCH/TxPipeline optimistic concurrency.
package ledger

import (
	"context"
	"time"
)

// Status is where a match sits in the ledger's lifecycle.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPlaying   Status = "playing"
	StatusCompleted Status = "completed"
)

// Record is one match's persisted state. A completed record carries the
// result, moves and PGN, and the match is skipped on resume; a match without
// a completed record is replayed from the beginning.
type Record struct {
	ID         string   `json:"id"` // "<pairId>-<gameIndex>"
	PairID     string   `json:"pair_id"`
	Round      int      `json:"round"`
	GameIndex  int      `json:"game_index"`
	WhiteName  string   `json:"white_name"`
	BlackName  string   `json:"black_name"`
	StartFEN   string   `json:"start_fen"`
	StartMoves []string `json:"start_moves"`

	Status Status `json:"status"`

	UCIMoves []string `json:"uci_moves,omitempty"`
	Result   string   `json:"result,omitempty"` // "1-0", "0-1", "1/2-1/2", "*"
	Reason   string   `json:"reason,omitempty"`
	PGN      string   `json:"pgn,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Store is the persistence contract the tournament manager drives. The
// manager Puts a record once, when its game completes; it writes no pending
// or playing records. All is read at start-up to find the completed matches
// to skip on resume.
type Store interface {
	Put(ctx context.Context, rec Record) error
	All(ctx context.Context) ([]Record, error)
	Close() error
}

// IsResumable reports whether a record's match still has to be played when
// reconstructing a schedule: true unless the record is completed.
func (r Record) IsResumable() bool {
	return r.Status != StatusCompleted
}
