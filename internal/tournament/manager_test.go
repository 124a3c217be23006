package tournament

import (
	"testing"

	"github.com/parkbanksia/tourney/internal/config"
	"github.com/parkbanksia/tourney/internal/enginepool"
	"github.com/parkbanksia/tourney/internal/game"
	"github.com/parkbanksia/tourney/internal/ledger"
	"github.com/parkbanksia/tourney/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManager(t *testing.T, cfg *config.Config) *Manager {
	t.Helper()
	reg, err := registry.New(cfg.Engines, nil)
	require.NoError(t, err)
	pool, err := enginepool.New(enginepool.Config{Factory: reg.Factory(), PerEngineCapacity: 4})
	require.NoError(t, err)
	dir := t.TempDir()
	store, err := ledger.NewFileStore(dir + "/ledger.json")
	require.NoError(t, err)
	return New(cfg, reg, pool, store, nil, nil, nil)
}

func baseConfig() *config.Config {
	return &config.Config{
		TournamentName: "test-cup",
		Type:           "round-robin",
		GamesPerPair:   2,
		Concurrency:    2,
		Engines: []config.EngineEntry{
			{Name: "a", Path: "/bin/true", Elo: 2400},
			{Name: "b", Path: "/bin/true", Elo: 2200},
		},
		TimeControl: config.TimeControlEntry{Mode: "standard", Moves: 40, Time: 1, Increment: 0.1, Margin: 0.1},
	}
}

func TestBuildScheduleRoundRobin(t *testing.T) {
	m := testManager(t, baseConfig())
	schedule := m.BuildSchedule()
	assert.Len(t, schedule, 2)
}

func TestBuildScheduleKnockout(t *testing.T) {
	cfg := baseConfig()
	cfg.Type = "knockout"
	cfg.Engines = append(cfg.Engines, config.EngineEntry{Name: "c", Path: "/bin/true", Elo: 2100})
	m := testManager(t, cfg)
	schedule := m.BuildSchedule()
	assert.Len(t, schedule, 2) // one pair (the bye takes top seed "a"), gamesPerPair=2
}

func TestUpdateStandingsLockedAccumulatesAcrossGames(t *testing.T) {
	m := testManager(t, baseConfig())
	p := Pairing{PairID: "p0", Round: 1, White: "a", Black: "b"}

	m.mu.Lock()
	m.updateStandingsLocked(p, game.Outcome{Result: game.ResultWin, Reason: game.ReasonRule, Loser: game.Black})
	m.updateStandingsLocked(p, game.Outcome{Result: game.ResultDraw, Reason: game.ReasonRule})
	m.mu.Unlock()

	standings := m.Standings()
	require.Len(t, standings, 2)
	for _, s := range standings {
		if s.Name == "a" {
			assert.Equal(t, 1, s.Wins)
			assert.Equal(t, 1, s.Draws)
		}
		if s.Name == "b" {
			assert.Equal(t, 1, s.Losses)
			assert.Equal(t, 1, s.Draws)
		}
	}
}

func TestMatchIDFormat(t *testing.T) {
	assert.Equal(t, "p0-1", matchID(Pairing{PairID: "p0", GameIndex: 1}))
}

func TestUpdateStandingsLockedTracksWhiteCountPerPair(t *testing.T) {
	m := testManager(t, baseConfig())
	p0 := Pairing{PairID: "p0", Round: 1, GameIndex: 0, White: "a", Black: "b"}
	p1 := Pairing{PairID: "p0", Round: 1, GameIndex: 1, White: "b", Black: "a"}

	m.mu.Lock()
	m.updateStandingsLocked(p0, game.Outcome{Result: game.ResultWin, Loser: game.Black})
	m.updateStandingsLocked(p1, game.Outcome{Result: game.ResultDraw})
	tally := *m.pairTally["p0"]
	m.mu.Unlock()

	assert.Equal(t, 1, tally.WhiteCountA) // a played white once
	assert.Equal(t, 1, tally.WhiteCountB) // b played white once
	assert.Equal(t, 1, tally.WinsA)
	assert.Equal(t, 1, tally.Draws)
}

func TestSeedForFallsBackToBareNameWhenUnseeded(t *testing.T) {
	seeds := []KnockoutSeed{{Name: "a", Elo: 2400}}
	assert.Equal(t, KnockoutSeed{Name: "a", Elo: 2400}, seedFor(seeds, "a"))
	assert.Equal(t, KnockoutSeed{Name: "ghost"}, seedFor(seeds, "ghost"))
}
