package tournament

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/parkbanksia/tourney/internal/archive"
	"github.com/parkbanksia/tourney/internal/config"
	"github.com/parkbanksia/tourney/internal/enginepool"
	"github.com/parkbanksia/tourney/internal/game"
	"github.com/parkbanksia/tourney/internal/ledger"
	"github.com/parkbanksia/tourney/internal/registry"
	"github.com/parkbanksia/tourney/internal/report"
	"github.com/parkbanksia/tourney/internal/ticker"
	"github.com/parkbanksia/tourney/internal/timecontrol"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Manager runs a tournament end to end: builds the pairing schedule,
// drives each pairing's games through internal/game with bounded
// concurrency, persists progress to the ledger after every game so a
// crashed run can resume, and renders the final PGN/standings report.
type Manager struct {
	cfg   *config.Config
	reg   *registry.Registry
	pool  *enginepool.Pool
	store ledger.Store
	arc   *archive.Repository
	tk    *ticker.Ticker
	log   *zap.Logger
	runID uuid.UUID

	mu        sync.Mutex
	standings map[string]*report.ResultRow
	pairTally map[string]*PairTally
	pgn       strings.Builder
}

// New builds a Manager. arc may be nil when no Postgres archive is
// configured. Each Manager gets a fresh run ID, distinguishing separate
// attempts at the same named tournament in the archive and in logs — a
// resumed run keeps the ledger's match IDs stable but gets its own run ID.
func New(cfg *config.Config, reg *registry.Registry, pool *enginepool.Pool, store ledger.Store, arc *archive.Repository, tk *ticker.Ticker, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		cfg:       cfg,
		reg:       reg,
		pool:      pool,
		store:     store,
		arc:       arc,
		tk:        tk,
		log:       log,
		runID:     uuid.New(),
		standings: make(map[string]*report.ResultRow),
		pairTally: make(map[string]*PairTally),
	}
}

// RunID returns the identifier generated for this manager's run, used to
// correlate archive rows and log lines across a single invocation.
func (m *Manager) RunID() string { return m.runID.String() }

// BuildSchedule generates the full pairing list for the configured
// tournament type.
func (m *Manager) BuildSchedule() []Pairing {
	names := make([]string, 0, len(m.cfg.Engines))
	seeds := make([]KnockoutSeed, 0, len(m.cfg.Engines))
	for _, e := range m.cfg.Engines {
		names = append(names, e.Name)
		seeds = append(seeds, KnockoutSeed{Name: e.Name, Elo: e.Elo})
	}

	switch strings.ToLower(strings.TrimSpace(m.cfg.Type)) {
	case "knockout":
		pairings, bye := GenerateKnockoutRound(1, seeds, m.cfg.GamesPerPair)
		if bye != "" {
			m.log.Info("knockout bye", zap.String("engine", bye))
		}
		return pairings
	default:
		return GenerateRoundRobin(names, m.cfg.GamesPerPair)
	}
}

func matchID(p Pairing) string {
	return fmt.Sprintf("%s-%d", p.PairID, p.GameIndex)
}

// Run executes the tournament, skipping any match the ledger already marks
// completed (the resume path), then writes the aggregated PGN file.
// Round-robin runs its full schedule in one pass; knockout advances winners
// round by round, since round 2's pairings depend on round 1's results.
func (m *Manager) Run(ctx context.Context) error {
	completed, err := m.loadCompleted(ctx)
	if err != nil {
		return err
	}

	var runErr error
	if strings.ToLower(strings.TrimSpace(m.cfg.Type)) == "knockout" {
		runErr = m.runKnockout(ctx, completed)
	} else {
		runErr = m.runSchedule(ctx, m.BuildSchedule(), completed)
	}
	if runErr != nil {
		return runErr
	}

	if m.cfg.PGNOutputPath != "" {
		if err := os.WriteFile(m.cfg.PGNOutputPath, []byte(m.pgnText()), 0o644); err != nil {
			return fmt.Errorf("write pgn output: %w", err)
		}
	}
	return nil
}

// runSchedule plays every not-yet-completed pairing in schedule with bounded
// concurrency, blocking until all of them finish.
func (m *Manager) runSchedule(ctx context.Context, schedule []Pairing, completed map[string]bool) error {
	sem := make(chan struct{}, maxConcurrency(m.cfg.Concurrency))
	var wg sync.WaitGroup
	var firstErr error
	var errMu sync.Mutex

	for _, p := range schedule {
		if completed[matchID(p)] {
			continue
		}
		p := p
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			if err := m.playMatch(ctx, p); err != nil {
				errMu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				errMu.Unlock()
				m.log.Error("match failed", zap.String("pair_id", p.PairID), zap.Error(err))
			}
		}()
	}
	wg.Wait()
	return firstErr
}

// runKnockout plays round 1 from the configured engines, then repeatedly
// settles each round's pairs into a winner (scheduling extra tie-break games
// where PairTally comes out fully level) and re-pairs the survivors into the
// next round, until one engine remains.
func (m *Manager) runKnockout(ctx context.Context, completed map[string]bool) error {
	seeds := make([]KnockoutSeed, 0, len(m.cfg.Engines))
	for _, e := range m.cfg.Engines {
		seeds = append(seeds, KnockoutSeed{Name: e.Name, Elo: e.Elo})
	}

	for round := 1; len(seeds) > 1; round++ {
		pairings, bye := GenerateKnockoutRound(round, seeds, m.cfg.GamesPerPair)
		if bye != "" {
			m.log.Info("knockout bye", zap.String("engine", bye), zap.Int("round", round))
		}
		if err := m.runSchedule(ctx, pairings, completed); err != nil {
			return err
		}

		survivors := make([]KnockoutSeed, 0, len(seeds)/2+1)
		if bye != "" {
			survivors = append(survivors, seedFor(seeds, bye))
		}
		settled := make(map[string]bool)
		for _, p := range pairings {
			if settled[p.PairID] {
				continue
			}
			settled[p.PairID] = true
			winner, err := m.settlePair(ctx, p, completed)
			if err != nil {
				return err
			}
			survivors = append(survivors, seedFor(seeds, winner))
		}
		seeds = survivors
	}

	if len(seeds) == 1 {
		m.log.Info("knockout champion", zap.String("engine", seeds[0].Name))
	}
	return nil
}

// settlePair resolves one knockout pair to a winner, scheduling and playing
// one extra game at a time (alternating color) for as long as KnockoutWinner
// reports a full tie.
func (m *Manager) settlePair(ctx context.Context, p Pairing, completed map[string]bool) (string, error) {
	extraIdx := m.cfg.GamesPerPair
	for {
		m.mu.Lock()
		tally := *m.pairTally[p.PairID]
		m.mu.Unlock()

		winner, needsExtraGame := KnockoutWinner(tally)
		if !needsExtraGame {
			return winner, nil
		}

		extra := Pairing{PairID: p.PairID, Round: p.Round, GameIndex: extraIdx, White: tally.NameA, Black: tally.NameB}
		if extraIdx%2 == 1 {
			extra.White, extra.Black = tally.NameB, tally.NameA
		}
		extraIdx++

		if completed[matchID(extra)] {
			continue // ledger already resolved this extra game on a prior run; re-check the tally
		}
		if err := m.playMatch(ctx, extra); err != nil {
			return "", err
		}
	}
}

func seedFor(seeds []KnockoutSeed, name string) KnockoutSeed {
	for _, s := range seeds {
		if s.Name == name {
			return s
		}
	}
	return KnockoutSeed{Name: name}
}

func maxConcurrency(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}

func (m *Manager) loadCompleted(ctx context.Context) (map[string]bool, error) {
	completed := make(map[string]bool)
	if m.store == nil {
		return completed, nil
	}
	recs, err := m.store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	for _, r := range recs {
		if !r.IsResumable() {
			completed[r.ID] = true
		}
	}
	return completed, nil
}

// playMatch leases both engines, drives one game to completion
// synchronously (blocking on the Game's completion callback), persists the
// result, and returns the engines to the pool.
func (m *Manager) playMatch(ctx context.Context, p Pairing) error {
	white, err := m.pool.CreateEngine(ctx, p.White)
	if err != nil {
		return fmt.Errorf("lease white %q: %w", p.White, err)
	}
	black, err := m.pool.CreateEngine(ctx, p.Black)
	if err != nil {
		m.pool.ReturnPlayer(white, nil)
		return fmt.Errorf("lease black %q: %w", p.Black, err)
	}

	tc := timecontrol.Controller{}
	tc.Setup(modeFromConfig(m.cfg.TimeControl.Mode), m.cfg.TimeControl.Moves, m.cfg.TimeControl.Time, m.cfg.TimeControl.Increment, m.cfg.TimeControl.Margin)
	if m.cfg.TimeControl.Mode == "depth" {
		tc.Depth = m.cfg.TimeControl.Depth
	}

	gcfg := game.Config{
		PonderMode:                m.cfg.PonderMode,
		AdjudicationMaxGameLength: m.cfg.AdjudicationMaxGameLength,
		AdjudicationEgtbMode:      m.cfg.AdjudicationEgtbMode,
		AdjudicationMaxPieces:     m.cfg.AdjudicationMaxPieces,
	}

	done := make(chan *game.Game, 1)
	cb := game.Callbacks{
		MatchCompleted: func(g *game.Game) { done <- g },
		MessageLogger: func(engine, line string) {
			if m.cfg.VerboseEngineIO {
				m.log.Debug("engine io", zap.String("engine", engine), zap.String("line", line))
			}
		},
	}

	g := game.New(hashIndex(p), p.Round, white, black, p.White, p.Black, tc, gcfg, cb)
	startedAt := time.Now()

	if err := g.KickStart(ctx, "", nil); err != nil {
		m.pool.ReturnPlayer(white, err)
		m.pool.ReturnPlayer(black, err)
		return fmt.Errorf("kickstart %s: %w", matchID(p), err)
	}
	if m.tk != nil {
		m.tk.Register(g)
	}
	g.Start()

	var finished *game.Game
	select {
	case finished = <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	m.recordResult(ctx, p, finished, startedAt)

	outcome := finished.Outcome()
	finished.MarkEnding()
	var werr, berr error
	if outcome.Reason == game.ReasonCrash && outcome.Loser == game.White {
		werr = fmt.Errorf("white engine crashed")
	}
	if outcome.Reason == game.ReasonCrash && outcome.Loser == game.Black {
		berr = fmt.Errorf("black engine crashed")
	}
	wd, bd := finished.MarkEnded()
	m.pool.ReturnPlayer(wd, werr)
	m.pool.ReturnPlayer(bd, berr)
	return nil
}

func hashIndex(p Pairing) int {
	h := 0
	for _, r := range p.PairID {
		h = h*31 + int(r)
	}
	return h*1000 + p.GameIndex
}

func modeFromConfig(s string) timecontrol.Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "infinite":
		return timecontrol.ModeInfinite
	case "depth":
		return timecontrol.ModeDepth
	case "movetime":
		return timecontrol.ModeMoveTime
	default:
		return timecontrol.ModeStandard
	}
}

func resultToken(o game.Outcome) string {
	switch o.Result {
	case game.ResultWin:
		return "1-0"
	case game.ResultLoss:
		return "0-1"
	case game.ResultDraw:
		return "1/2-1/2"
	default:
		return "*"
	}
}

func (m *Manager) recordResult(ctx context.Context, p Pairing, g *game.Game, startedAt time.Time) {
	outcome := g.Outcome()
	result := resultToken(outcome)
	pgn := report.BuildPGN(report.PGNInput{
		Event:       m.cfg.TournamentName,
		Site:        m.RunID(),
		White:       p.White,
		Black:       p.Black,
		Result:      result,
		Round:       p.Round,
		Date:        startedAt,
		TimeControl: m.cfg.TimeControl.Mode,
		Termination: outcome.Reason.String(),
		SANMoves:    g.Board().SANMoves(),
	})

	m.mu.Lock()
	m.pgn.WriteString(pgn)
	m.pgn.WriteString("\n\n")
	m.updateStandingsLocked(p, outcome)
	m.mu.Unlock()

	if m.store != nil {
		rec := ledger.Record{
			ID:        matchID(p),
			PairID:    p.PairID,
			Round:     p.Round,
			GameIndex: p.GameIndex,
			WhiteName: p.White,
			BlackName: p.Black,
			Status:    ledger.StatusCompleted,
			UCIMoves:  uciMoves(g),
			Result:    result,
			Reason:    outcome.Reason.String(),
			PGN:       pgn,
			UpdatedAt: time.Now(),
		}
		if err := m.store.Put(ctx, rec); err != nil {
			m.log.Error("persist ledger record", zap.String("match_id", rec.ID), zap.Error(err))
		}
	}

	if m.arc != nil {
		match := archive.Match{
			ID:             matchID(p),
			TournamentName: m.cfg.TournamentName,
			Round:          p.Round,
			PairID:         p.PairID,
			GameIndex:      p.GameIndex,
			WhiteName:      p.White,
			BlackName:      p.Black,
			Result:         result,
			Reason:         outcome.Reason.String(),
			PGN:            pgn,
			StartedAt:      startedAt,
			EndedAt:        time.Now(),
		}
		if err := m.arc.SaveMatch(ctx, match); err != nil {
			m.log.Error("archive match", zap.String("match_id", match.ID), zap.Error(err))
		}
	}
}

func uciMoves(g *game.Game) []string {
	hist := g.Board().History()
	out := make([]string, len(hist))
	for i, h := range hist {
		out[i] = h.UCI
	}
	return out
}

func (m *Manager) updateStandingsLocked(p Pairing, o game.Outcome) {
	white := m.rowFor(p.White)
	black := m.rowFor(p.Black)
	white.GamesPlayed++
	black.GamesPlayed++

	switch o.Result {
	case game.ResultWin:
		white.Wins++
		white.WhiteWins++
		black.Losses++
	case game.ResultLoss:
		black.Wins++
		black.BlackWins++
		white.Losses++
	default:
		white.Draws++
		black.Draws++
	}

	t, ok := m.pairTally[p.PairID]
	if !ok {
		t = &PairTally{PairID: p.PairID, NameA: p.White, NameB: p.Black}
		m.pairTally[p.PairID] = t
	}
	if p.White == t.NameA {
		t.WhiteCountA++
	} else {
		t.WhiteCountB++
	}
	switch o.Result {
	case game.ResultWin:
		if p.White == t.NameA {
			t.WinsA++
			t.WhiteWinsA++
		} else {
			t.WinsB++
			t.WhiteWinsB++
		}
	case game.ResultLoss:
		if p.Black == t.NameA {
			t.WinsA++
		} else {
			t.WinsB++
		}
	default:
		t.Draws++
	}
}

func (m *Manager) rowFor(name string) *report.ResultRow {
	r, ok := m.standings[name]
	if !ok {
		r = &report.ResultRow{Name: name}
		m.standings[name] = r
	}
	return r
}

// Registry returns the engine registry this manager was built with.
func (m *Manager) Registry() *registry.Registry { return m.reg }

// Standings returns the current standings table, ranked by
// report.BuildStandings (wins, then fewer losses, then more draws, then name).
func (m *Manager) Standings() []report.Standing {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := make([]report.ResultRow, 0, len(m.standings))
	for _, r := range m.standings {
		rows = append(rows, *r)
	}
	return report.BuildStandings(rows)
}

func (m *Manager) pgnText() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pgn.String()
}

// poolTicker adapts the engine pool to ticker.Tickable so its idle-driver
// pruning runs on the same ticker as every live game.
type poolTicker struct{ pool *enginepool.Pool }

func (pt poolTicker) Tick() { pt.pool.Tick() }

// RegisterPoolTick wires the engine pool into the Manager's ticker so idle
// drivers that crashed while parked get pruned on the scheduler's cadence.
func (m *Manager) RegisterPoolTick() {
	if m.tk != nil {
		m.tk.Register(poolTicker{pool: m.pool})
	}
}
