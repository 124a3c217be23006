// Package game implements the Game state machine: two driven engine
// subprocesses, a shared board and time controller, coordinated through a
// single critical section — move callbacks arrive on a driver's I/O
// goroutine and contend with the ticker's timeout check under one mutex,
// the ticker yielding instead of blocking.
package game

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/parkbanksia/tourney/internal/chessboard"
	"github.com/parkbanksia/tourney/internal/enginedriver"
	"github.com/parkbanksia/tourney/internal/timecontrol"
)

// State is the Game's lifecycle state.
type State int

const (
	StateNone State = iota
	StateBegin
	StateReady
	StatePlaying
	StateStopped
	StateEnding
	StateEnded
)

// Side indexes white (0) / black (1).
type Side int

const (
	White Side = 0
	Black Side = 1
)

func xside(s Side) Side {
	if s == White {
		return Black
	}
	return White
}

// Result is the decisive outcome of a finished game, from white's
// perspective.
type Result int

const (
	ResultNone Result = iota
	ResultWin
	ResultLoss
	ResultDraw
)

// Reason names why a game ended.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonRule
	ReasonAdjudication
	ReasonTimeout
	ReasonIllegalMove
	ReasonResign
	ReasonCrash
)

func (r Reason) String() string {
	switch r {
	case ReasonRule:
		return "rule"
	case ReasonAdjudication:
		return "adjudication"
	case ReasonTimeout:
		return "timeout"
	case ReasonIllegalMove:
		return "illegalmove"
	case ReasonResign:
		return "resign"
	case ReasonCrash:
		return "crash"
	default:
		return "noreason"
	}
}

// Config carries the per-game adjudication and pondering knobs.
type Config struct {
	PonderMode                bool
	AdjudicationMaxGameLength int  // 0 disables length adjudication
	AdjudicationEgtbMode      bool // probe the tablebase once few pieces remain
	AdjudicationMaxPieces     int
}

// Outcome is what the Game hands to its owner once it stops.
type Outcome struct {
	Result Result
	Reason Reason
	Loser  Side // meaningful only when Result != ResultDraw
}

// Callbacks are the one-way notifications a Game fires; the Game never
// holds a back-reference to its owner, per the design note on keeping the
// Game<->manager relationship a one-way callback.
type Callbacks struct {
	MessageLogger func(engineName, line string)
	MatchCompleted func(*Game)
}

// Game owns two drivers (by side) and a board for the duration of one match.
type Game struct {
	idx   int
	round int

	drivers [2]*enginedriver.Driver
	names   [2]string
	board   *chessboard.Board
	tc      *timecontrol.Controller
	cfg     Config
	cb      Callbacks

	criticalMutex sync.Mutex

	stateMu sync.Mutex
	state   State

	outcome Outcome

	expectedPonder [2]string // guessed opponent reply, keyed by the side to move next
}

// New constructs a Game. startFen/startMoves seed the board once KickStart
// reaches ready; tc is cloned so each game owns an independent clock.
func New(idx, round int, white, black *enginedriver.Driver, whiteName, blackName string, tc timecontrol.Controller, cfg Config, cb Callbacks) *Game {
	tcCopy := tc
	return &Game{
		idx:     idx,
		round:   round,
		drivers: [2]*enginedriver.Driver{white, black},
		names:   [2]string{whiteName, blackName},
		tc:      &tcCopy,
		cfg:     cfg,
		cb:      cb,
		state:   StateNone,
	}
}

func (g *Game) Index() int { return g.idx }
func (g *Game) Round() int { return g.round }

func (g *Game) State() State {
	g.stateMu.Lock()
	defer g.stateMu.Unlock()
	return g.state
}

func (g *Game) setState(s State) {
	g.stateMu.Lock()
	g.state = s
	g.stateMu.Unlock()
}

// Outcome returns the final result once the game has stopped; zero value
// before that.
func (g *Game) Outcome() Outcome {
	g.criticalMutex.Lock()
	defer g.criticalMutex.Unlock()
	return g.outcome
}

// Title formats a human-readable match label for logging.
func (g *Game) Title() string {
	return fmt.Sprintf("%s vs %s", g.names[White], g.names[Black])
}

// Board exposes the underlying board for PGN export once the game has ended.
func (g *Game) Board() *chessboard.Board { return g.board }

// KickStart launches both engines and wires their callbacks into the Game.
// none -> begin.
func (g *Game) KickStart(ctx context.Context, startFen string, startMoves []string) error {
	g.setState(StateBegin)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for sd := 0; sd < 2; sd++ {
		sd := sd
		g.wireCallback(Side(sd))
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[sd] = g.drivers[sd].Launch(ctx)
		}()
	}
	wg.Wait()

	return g.enterReady(startFen, startMoves, errs)
}

func (g *Game) wireCallback(sd Side) {
	g.drivers[sd].SetCallback(enginedriver.Callback{
		OnMove: func(r enginedriver.MoveResult) {
			g.moveFromPlayer(r, sd)
		},
		OnResign: func() {
			g.handleResign(sd)
		},
		OnCrashed: func(err error) {
			g.handleCrash(sd, err)
		},
		OnLine: func(line string) {
			if g.cb.MessageLogger != nil {
				g.cb.MessageLogger(g.names[sd], line)
			}
		},
	})
}

// enterReady applies crash semantics for a driver that fails to launch or
// handshake, then, if both survived, seeds the board and moves to ready.
func (g *Game) enterReady(startFen string, startMoves []string, launchErrs []error) error {
	whiteStopped := launchErrs[White] != nil || g.drivers[White].State() == enginedriver.StateStopped
	blackStopped := launchErrs[Black] != nil || g.drivers[Black].State() == enginedriver.StateStopped

	if whiteStopped && blackStopped {
		g.finish(Outcome{Result: ResultDraw, Reason: ReasonCrash})
		return fmt.Errorf("both engines failed to launch")
	}
	if whiteStopped {
		g.finish(Outcome{Result: ResultLoss, Reason: ReasonCrash, Loser: White})
		return fmt.Errorf("white engine failed to launch: %w", launchErrs[White])
	}
	if blackStopped {
		g.finish(Outcome{Result: ResultWin, Reason: ReasonCrash, Loser: Black})
		return fmt.Errorf("black engine failed to launch: %w", launchErrs[Black])
	}

	board, err := chessboard.NewGame(startFen)
	if err != nil {
		g.finish(Outcome{Result: ResultDraw, Reason: ReasonCrash})
		return fmt.Errorf("seed board: %w", err)
	}
	if _, err := board.ApplyStartMoves(startMoves); err != nil {
		// Truncate silently per the design note; the caller is expected to
		// surface the warning via MessageLogger.
		if g.cb.MessageLogger != nil {
			g.cb.MessageLogger("game", fmt.Sprintf("start move prefix truncated: %v", err))
		}
	}
	g.board = board
	g.setState(StateReady)
	return nil
}

// postReadyGrace gives both engines a moment to settle before the clock
// starts.
const postReadyGrace = 50 * time.Millisecond

// Start waits the post-ready grace then begins play. ready -> playing. The
// state flip and the initial clock setup happen under one lock hold so
// Tick never observes StatePlaying against a not-yet-reset clock.
func (g *Game) Start() {
	time.Sleep(postReadyGrace)
	g.criticalMutex.Lock()
	g.setState(StatePlaying)
	mover, other, guess, fen := g.startThinkingLocked()
	g.criticalMutex.Unlock()
	g.issueThinking(mover, other, guess, fen)
}

// startThinkingLocked resets the per-move clock stopwatch for the position
// about to be searched and reads what's needed to issue the next search.
// Called at the top of every move (via startThinking, and once more from
// Start for the game's first move), so the stopwatch tracks the current
// move rather than the whole game. Caller holds criticalMutex.
func (g *Game) startThinkingLocked() (mover, other Side, guess, fen string) {
	g.tc.SetupClocksBeforeThinking(g.board.Ply())
	mover = g.boardSideToMove()
	other = xside(mover)
	guess = g.expectedPonder[mover]
	fen = g.board.FEN()
	return mover, other, guess, fen
}

// startThinking tells the opposite side to ponder (if enabled and a guess
// exists) before telling the mover to go, maximising ponder overlap.
func (g *Game) startThinking() {
	g.criticalMutex.Lock()
	mover, other, guess, fen := g.startThinkingLocked()
	g.criticalMutex.Unlock()
	g.issueThinking(mover, other, guess, fen)
}

func (g *Game) issueThinking(mover, other Side, guess, fen string) {
	if g.cfg.PonderMode && guess != "" {
		_ = g.drivers[other].GoPonder(fen, nil, guess, enginedriver.Limits{})
	}
	_ = g.drivers[mover].Go(fen, nil, enginedriver.Limits{})
}

func (g *Game) boardSideToMove() Side {
	if g.board.SideToMove() == chessboard.White {
		return White
	}
	return Black
}

// moveFromPlayer is the driver callback invoked when a side reports a move.
func (g *Game) moveFromPlayer(r enginedriver.MoveResult, side Side) {
	if g.State() != StatePlaying || g.boardSideToMove() != side {
		return // stale frame
	}

	g.criticalMutex.Lock()
	defer g.criticalMutex.Unlock()

	// re-check state under the lock: the game may have just stopped via the
	// ticker's timeout check while we were waiting to acquire it.
	if g.State() != StatePlaying {
		return
	}

	if g.tc.IsTimeOver(timecontrol.Side(side)) {
		g.finishLocked(Outcome{Result: lossResultFor(side), Reason: ReasonTimeout, Loser: side})
		return
	}

	if r.OldState == enginedriver.StatePondering {
		// pondermiss stop acknowledged: the position moved on while this side
		// pondered a guess that didn't hold, so its stale bestmove is
		// discarded and it is re-issued a fresh search on the real position.
		_ = g.drivers[side].Go(g.board.FEN(), nil, enginedriver.Limits{})
		return
	}

	ok, _ := g.board.CheckMake(r.Move)
	if !ok {
		g.finishLocked(Outcome{Result: lossResultFor(side), Reason: ReasonIllegalMove, Loser: side})
		return
	}

	elapsed := r.TimeConsumed.Seconds()
	g.board.AnnotateLast(elapsed, r.ScoreCP, r.Depth, r.Nodes)
	guessForSide := g.expectedPonder[side]
	g.expectedPonder[xside(side)] = r.PonderMove
	g.tc.UpdateClockAfterMove(elapsed, timecontrol.Side(side), g.board.Ply())

	if outcome, done := g.checkAdjudicationLocked(); done {
		g.finishLocked(outcome)
		return
	}

	if result := g.board.Rule(); result != chessboard.NoResult {
		g.finishLocked(ruleOutcome(result))
		return
	}

	g.criticalMutex.Unlock()
	if !g.resolvePonder(side, r.Move, guessForSide) {
		g.startThinking()
	}
	g.criticalMutex.Lock() // re-lock so the deferred Unlock above balances
}

// resolvePonder settles the opponent's ponder search now that side's actual
// move is known: PonderHit if the guess it pondered on matches, otherwise
// StopThinking so its pondermiss bestmove arrives and gets a fresh Go issued
// against the real position (handled by the OldState == StatePondering
// branch above). Returns true when the opponent's driver already has (or
// will shortly have) a search running for the new position, so the caller
// must not also call startThinking and issue it a second, conflicting Go.
func (g *Game) resolvePonder(side Side, actualMove, guessForSide string) bool {
	opponent := xside(side)
	if g.drivers[opponent].State() != enginedriver.StatePondering {
		return false
	}
	if guessForSide != "" && guessForSide == actualMove {
		_ = g.drivers[opponent].PonderHit()
	} else {
		_ = g.drivers[opponent].StopThinking()
	}
	return true
}

// checkAdjudicationLocked applies the optional length/tablebase adjudication
// rules. Caller holds criticalMutex.
func (g *Game) checkAdjudicationLocked() (Outcome, bool) {
	if g.cfg.AdjudicationMaxGameLength > 0 && g.board.Ply() >= g.cfg.AdjudicationMaxGameLength {
		return Outcome{Result: ResultDraw, Reason: ReasonAdjudication}, true
	}
	if g.cfg.AdjudicationEgtbMode && g.board.PieceCount() <= g.cfg.AdjudicationMaxPieces {
		switch g.board.ProbeSyzygy(g.cfg.AdjudicationMaxPieces) {
		case chessboard.WhiteWin:
			return Outcome{Result: ResultWin, Reason: ReasonAdjudication, Loser: Black}, true
		case chessboard.BlackWin:
			return Outcome{Result: ResultLoss, Reason: ReasonAdjudication, Loser: White}, true
		case chessboard.Draw:
			return Outcome{Result: ResultDraw, Reason: ReasonAdjudication}, true
		}
	}
	return Outcome{}, false
}

func ruleOutcome(r chessboard.Result) Outcome {
	switch r {
	case chessboard.WhiteWin:
		return Outcome{Result: ResultWin, Reason: ReasonRule, Loser: Black}
	case chessboard.BlackWin:
		return Outcome{Result: ResultLoss, Reason: ReasonRule, Loser: White}
	default:
		return Outcome{Result: ResultDraw, Reason: ReasonRule}
	}
}

func lossResultFor(side Side) Result {
	if side == White {
		return ResultLoss
	}
	return ResultWin
}

// handleResign ends the game in favor of the side that did not resign.
func (g *Game) handleResign(side Side) {
	g.criticalMutex.Lock()
	defer g.criticalMutex.Unlock()
	if g.State() != StatePlaying {
		return
	}
	g.finishLocked(Outcome{Result: lossResultFor(side), Reason: ReasonResign, Loser: side})
}

// handleCrash applies crash semantics for a driver that dies mid-game (as
// opposed to during KickStart, handled by enterReady).
func (g *Game) handleCrash(side Side, err error) {
	g.criticalMutex.Lock()
	defer g.criticalMutex.Unlock()
	if g.State() != StatePlaying {
		return
	}
	if g.cb.MessageLogger != nil {
		g.cb.MessageLogger(g.names[side], fmt.Sprintf("crashed: %v", err))
	}
	g.finishLocked(Outcome{Result: lossResultFor(side), Reason: ReasonCrash, Loser: side})
}

// Tick implements the ticker's per-game timeout check: it uses TryLock and
// skips the check when contended, so a move arriving on the driver's I/O
// goroutine at the same instant always wins without blocking the scheduler
// thread.
func (g *Game) Tick() {
	if g.State() != StatePlaying {
		return
	}
	if !g.criticalMutex.TryLock() {
		return
	}
	defer g.criticalMutex.Unlock()
	if g.State() != StatePlaying {
		return
	}

	side := g.boardSideToMove()
	if g.tc.IsTimeOver(timecontrol.Side(side)) {
		g.finishLocked(Outcome{Result: lossResultFor(side), Reason: ReasonTimeout, Loser: side})
	}
}

// finishLocked transitions playing -> stopped. Caller holds criticalMutex.
func (g *Game) finishLocked(o Outcome) {
	g.finish(o)
}

func (g *Game) finish(o Outcome) {
	g.outcome = o
	g.setState(StateStopped)
	for sd := 0; sd < 2; sd++ {
		_ = g.drivers[sd].StopThinking()
	}
	if g.cb.MatchCompleted != nil {
		g.cb.MatchCompleted(g)
	}
}

// MarkEnding is called by the Tournament Manager once it has copied
// statistics out of a stopped game. stopped -> ending.
func (g *Game) MarkEnding() {
	if g.State() == StateStopped {
		g.setState(StateEnding)
	}
}

// IsSafeToDeattach reports whether both drivers have reached a detachable
// state, letting the manager transition ending -> ended and return the
// engines to the pool.
func (g *Game) IsSafeToDeattach() bool {
	return g.drivers[White].IsSafeToDeattach() && g.drivers[Black].IsSafeToDeattach()
}

// MarkEnded transitions ending -> ended once IsSafeToDeattach is true and
// returns the two drivers so the manager can hand them back to the pool.
func (g *Game) MarkEnded() (white, black *enginedriver.Driver) {
	g.setState(StateEnded)
	return g.drivers[White], g.drivers[Black]
}
