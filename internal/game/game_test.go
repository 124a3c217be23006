package game

import (
	"testing"
	"time"

	"github.com/parkbanksia/tourney/internal/chessboard"
	"github.com/parkbanksia/tourney/internal/enginedriver"
	"github.com/parkbanksia/tourney/internal/timecontrol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newReadyGame builds a Game whose drivers stay in enginedriver.StateNone
// (Launch is never called, mirroring the fake-factory pattern
// internal/enginepool's tests use). That is enough to exercise the state
// machine and clock/board bookkeeping: startThinking's Go()/GoPonder() calls
// fail against a state-none driver, but the Game ignores their error the
// same way it would once a driver crashes mid-search.
func newReadyGame(t *testing.T) (*Game, *enginedriver.Driver, *enginedriver.Driver) {
	t.Helper()
	white := enginedriver.New("white-engine", "", nil, nil)
	black := enginedriver.New("black-engine", "", nil, nil)
	white.SetCallback(enginedriver.Callback{})
	black.SetCallback(enginedriver.Callback{})

	tc := timecontrol.Controller{Mode: timecontrol.ModeStandard, MovesPerControl: 40, BaseSeconds: 60, IncrementSeconds: 1, MarginSeconds: 0.1}

	g := New(0, 1, white, black, "white-engine", "black-engine", tc, Config{}, Callbacks{})
	board, err := chessboard.NewGame("")
	require.NoError(t, err)
	g.board = board
	g.setState(StateReady)
	return g, white, black
}

func TestGameStartTransitionsToPlaying(t *testing.T) {
	g, white, _ := newReadyGame(t)
	_ = white // state transitions asserted via g.State()
	g.Start()
	assert.Equal(t, StatePlaying, g.State())
}

func TestMoveFromPlayerRejectsStaleFrame(t *testing.T) {
	g, white, _ := newReadyGame(t)
	g.setState(StateReady) // not playing yet
	g.moveFromPlayer(enginedriver.MoveResult{Move: "e2e4"}, White)
	assert.Equal(t, 0, g.board.Ply())
	_ = white
}

func TestMoveFromPlayerAppliesLegalMove(t *testing.T) {
	g, _, _ := newReadyGame(t)
	g.setState(StatePlaying)
	g.tc.SetupClocksBeforeThinking(0)

	done := make(chan struct{}, 1)
	g.cb.MatchCompleted = func(*Game) { done <- struct{}{} }

	g.moveFromPlayer(enginedriver.MoveResult{Move: "e2e4", ScoreCP: 20, Depth: 10}, White)

	assert.Equal(t, 1, g.board.Ply())
	select {
	case <-done:
		t.Fatal("game should not have completed after a single legal move")
	default:
	}
}

func TestMoveFromPlayerIllegalMoveEndsGame(t *testing.T) {
	g, _, _ := newReadyGame(t)
	g.setState(StatePlaying)
	g.tc.SetupClocksBeforeThinking(0)

	g.moveFromPlayer(enginedriver.MoveResult{Move: "e2e5"}, White)

	assert.Equal(t, StateStopped, g.State())
	assert.Equal(t, ReasonIllegalMove, g.outcome.Reason)
	assert.Equal(t, White, g.outcome.Loser)
	assert.Equal(t, ResultLoss, g.outcome.Result)
}

func TestHandleResignEndsGameForOpponent(t *testing.T) {
	g, _, _ := newReadyGame(t)
	g.setState(StatePlaying)

	g.handleResign(Black)

	assert.Equal(t, StateStopped, g.State())
	assert.Equal(t, ReasonResign, g.outcome.Reason)
	assert.Equal(t, ResultWin, g.outcome.Result)
	assert.Equal(t, Black, g.outcome.Loser)
}

func TestHandleCrashEndsGameForSurvivor(t *testing.T) {
	g, _, _ := newReadyGame(t)
	g.setState(StatePlaying)

	g.handleCrash(White, assert.AnError)

	assert.Equal(t, StateStopped, g.State())
	assert.Equal(t, ReasonCrash, g.outcome.Reason)
	assert.Equal(t, ResultLoss, g.outcome.Result)
}

func TestTickEndsGameOnTimeout(t *testing.T) {
	g, _, _ := newReadyGame(t)
	g.setState(StatePlaying)
	g.tc.Setup(timecontrol.ModeStandard, 0, 0, 0, 0) // zero base time: immediately over budget
	g.tc.SetupClocksBeforeThinking(0)

	g.Tick()

	assert.Equal(t, StateStopped, g.State())
	assert.Equal(t, ReasonTimeout, g.outcome.Reason)
}

// TestStartThinkingResetsClockPerMove exercises a second move after the
// first (moveFromPlayer's trailing startThinking call), confirming the
// per-move stopwatch restarts instead of accumulating time since the game's
// first move.
func TestStartThinkingResetsClockPerMove(t *testing.T) {
	g, _, _ := newReadyGame(t)
	g.setState(StatePlaying)
	g.tc.Setup(timecontrol.ModeStandard, 0, 1, 0, 0.5) // 1s base, 0.5s margin
	g.tc.SetupClocksBeforeThinking(0)

	time.Sleep(1200 * time.Millisecond) // within the 1.5s (base+margin) budget

	g.moveFromPlayer(enginedriver.MoveResult{Move: "e2e4"}, White)

	// moveFromPlayer's trailing startThinking call reset the stopwatch for
	// black's move; without the per-move reset this would already read
	// ~1.2s instead of ~0s.
	assert.Less(t, g.tc.MoveTimeConsumed(), 0.5)
	assert.Equal(t, StatePlaying, g.State())
}

// TestResolvePonderSkipsWhenOpponentNotPondering covers the common non-
// pondering path: resolvePonder must not block or alter state when the
// opponent driver never entered StatePondering (pondering disabled, or no
// guess was available).
func TestResolvePonderSkipsWhenOpponentNotPondering(t *testing.T) {
	g, _, _ := newReadyGame(t)
	ok := g.resolvePonder(White, "e2e4", "e2e4")
	assert.False(t, ok)
}

func TestMarkEndingAndMarkEnded(t *testing.T) {
	g, white, black := newReadyGame(t)
	g.setState(StateStopped)

	g.MarkEnding()
	assert.Equal(t, StateEnding, g.State())
	assert.True(t, g.IsSafeToDeattach())

	w, b := g.MarkEnded()
	assert.Equal(t, StateEnded, g.State())
	assert.Same(t, white, w)
	assert.Same(t, black, b)
}
