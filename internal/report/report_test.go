package report

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMapResultToPGN(t *testing.T) {
	assert.Equal(t, "1-0", MapResultToPGN("white"))
	assert.Equal(t, "0-1", MapResultToPGN("black"))
	assert.Equal(t, "1/2-1/2", MapResultToPGN("draw"))
	assert.Equal(t, "*", MapResultToPGN(""))
}

func TestBuildPGNIncludesRosterAndMoves(t *testing.T) {
	pgn := BuildPGN(PGNInput{
		Event:    "Engine Cup",
		White:    "stockfish",
		Black:    "leela",
		Result:   "white",
		Round:    1,
		Date:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		SANMoves: []string{"e4", "e5", "Nf3"},
	})
	assert.Contains(t, pgn, `[White "stockfish"]`)
	assert.Contains(t, pgn, `[Black "leela"]`)
	assert.Contains(t, pgn, `[Result "1-0"]`)
	assert.Contains(t, pgn, "1. e4 e5 2. Nf3")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(pgn), "1-0"))
}

func TestBuildPGNIncludesFENWhenStartFENSet(t *testing.T) {
	pgn := BuildPGN(PGNInput{White: "a", Black: "b", Result: "draw", StartFEN: "8/8/8/8/8/8/8/K6k w - - 0 1"})
	assert.Contains(t, pgn, `[SetUp "1"]`)
	assert.Contains(t, pgn, "[FEN ")
}

func TestComputeEloStatsAllWins(t *testing.T) {
	s := ComputeEloStats(10, 0, 0)
	assert.Greater(t, s.EloDiff, 0.0)
	assert.Greater(t, s.LOS, 0.99)
}

func TestComputeEloStatsEvenScore(t *testing.T) {
	s := ComputeEloStats(5, 5, 0)
	assert.InDelta(t, 0, s.EloDiff, 1e-6)
	assert.InDelta(t, 0.5, s.LOS, 1e-6)
}

func TestComputeEloStatsNoGames(t *testing.T) {
	s := ComputeEloStats(0, 0, 0)
	assert.Equal(t, 0.0, s.EloDiff)
}

func TestBuildStandingsOrdersByWins(t *testing.T) {
	rows := []ResultRow{
		{Name: "b", Wins: 3, Draws: 2, Losses: 1},
		{Name: "a", Wins: 4, Draws: 0, Losses: 2},
	}
	standings := BuildStandings(rows)
	// a has more wins (4 vs 3), so it leads although both score 4.0
	assert.Equal(t, "a", standings[0].Name)
	assert.Equal(t, "b", standings[1].Name)
}

func TestBuildStandingsTieBreaksByFewerLosses(t *testing.T) {
	rows := []ResultRow{
		{Name: "a", Wins: 3, Losses: 7, Draws: 0},
		{Name: "b", Wins: 2, Losses: 8, Draws: 0},
	}
	standings := BuildStandings(rows)
	// a has more wins, so it outranks b outright regardless of losses
	assert.Equal(t, "a", standings[0].Name)

	tied := []ResultRow{
		{Name: "c", Wins: 3, Losses: 5, Draws: 0},
		{Name: "d", Wins: 3, Losses: 2, Draws: 0},
	}
	standings = BuildStandings(tied)
	// equal wins, d has fewer losses
	assert.Equal(t, "d", standings[0].Name)
	assert.Equal(t, "c", standings[1].Name)
}
