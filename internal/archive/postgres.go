// Package archive persists finished matches to Postgres for long-term
// storage, beyond the resumable ledger's lifetime, using connection-pool
// tuning and an upsert-on-conflict shape generalized from a two-player
// game's columns to a tournament match's (round, pair, both engine names,
// PGN).
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// Match is the archived record of one finished game.
type Match struct {
	ID          string
	TournamentName string
	Round       int
	PairID      string
	GameIndex   int
	WhiteName   string
	BlackName   string
	Result      string // "1-0", "0-1", "1/2-1/2", "*"
	Reason      string
	PGN         string
	StartedAt   time.Time
	EndedAt     time.Time
}

// Repository wraps a Postgres connection pool.
type Repository struct {
	db *sql.DB
}

// NewRepository opens and pings a connection pool.
func NewRepository(databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("database url is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Repository{db: db}, nil
}

// Close closes the pool.
func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// SaveMatch upserts a finished match's archive row.
func (r *Repository) SaveMatch(ctx context.Context, m Match) error {
	if r == nil || r.db == nil {
		return nil
	}
	duration := m.EndedAt.Sub(m.StartedAt).Milliseconds()
	if duration < 0 {
		duration = 0
	}

	q := `INSERT INTO tourney_matches (
		match_id, tournament_name, round, pair_id, game_index,
		white_name, black_name, result, reason, pgn,
		started_at, ended_at, duration_ms
	  ) VALUES (
		$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
	  ) ON CONFLICT (match_id) DO UPDATE SET
		result=EXCLUDED.result,
		reason=EXCLUDED.reason,
		pgn=EXCLUDED.pgn,
		ended_at=EXCLUDED.ended_at,
		duration_ms=EXCLUDED.duration_ms`

	_, err := r.db.ExecContext(ctx, q,
		m.ID, m.TournamentName, m.Round, m.PairID, m.GameIndex,
		m.WhiteName, m.BlackName, m.Result, m.Reason, m.PGN,
		m.StartedAt, m.EndedAt, duration,
	)
	if err != nil {
		return fmt.Errorf("save match %q: %w", m.ID, err)
	}
	return nil
}

// EnsureSchema creates the archive table if it does not already exist, so a
// fresh Postgres instance can be pointed at without a separate migration
// step.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if r == nil || r.db == nil {
		return nil
	}
	const ddl = `CREATE TABLE IF NOT EXISTS tourney_matches (
		match_id TEXT PRIMARY KEY,
		tournament_name TEXT NOT NULL,
		round INTEGER NOT NULL,
		pair_id TEXT NOT NULL,
		game_index INTEGER NOT NULL,
		white_name TEXT NOT NULL,
		black_name TEXT NOT NULL,
		result TEXT NOT NULL,
		reason TEXT NOT NULL,
		pgn TEXT NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		ended_at TIMESTAMPTZ NOT NULL,
		duration_ms BIGINT NOT NULL
	)`
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
