package enginedriver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildPositionStartpos(t *testing.T) {
	assert.Equal(t, "position startpos\n", buildPosition("", nil))
	assert.Equal(t, "position startpos\n", buildPosition("startpos", nil))
}

func TestBuildPositionWithMoves(t *testing.T) {
	got := buildPosition("startpos", []string{"e2e4", "e7e5"})
	assert.Equal(t, "position startpos moves e2e4 e7e5\n", got)
}

func TestBuildPositionWithFEN(t *testing.T) {
	fen := "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1"
	got := buildPosition(fen, nil)
	assert.Equal(t, "position fen "+fen+"\n", got)
}

func TestBuildGoDepth(t *testing.T) {
	assert.Equal(t, "go depth 10\n", buildGo(Limits{Depth: 10}, ""))
}

func TestBuildGoMoveTime(t *testing.T) {
	assert.Equal(t, "go movetime 500\n", buildGo(Limits{MoveTimeMillis: 500}, ""))
}

func TestBuildGoPonderPrefix(t *testing.T) {
	assert.Equal(t, "go ponder depth 10\n", buildGo(Limits{Depth: 10}, "ponder"))
}

func TestBuildGoInfiniteFallback(t *testing.T) {
	assert.Equal(t, "go infinite\n", buildGo(Limits{}, ""))
}

func TestNewDriverStartsInStateNone(t *testing.T) {
	d := New("stockfish", "/usr/bin/true", nil, nil)
	assert.Equal(t, StateNone, d.State())
	assert.Equal(t, "stockfish", d.Name())
}

func TestHandleBestmoveInvokesCallback(t *testing.T) {
	d := New("engine-a", "", nil, nil)
	d.setState(StatePlaying)

	var got MoveResult
	called := false
	d.SetCallback(Callback{OnMove: func(r MoveResult) {
		called = true
		got = r
	}})

	d.cacheInfo("info depth 12 score cp 35 nodes 10000 pv e2e4")
	d.handleBestmove("bestmove e2e4 ponder e7e5")

	assert.True(t, called)
	assert.Equal(t, "e2e4", got.Move)
	assert.Equal(t, "e7e5", got.PonderMove)
	assert.Equal(t, 35, got.ScoreCP)
	assert.Equal(t, 12, got.Depth)
	assert.Equal(t, int64(10000), got.Nodes)
	assert.Equal(t, StatePlaying, got.OldState)
	assert.Equal(t, StateReady, d.State())
}

func TestHandleBestmoveNoneTriggersResign(t *testing.T) {
	d := New("engine-a", "", nil, nil)
	d.setState(StatePlaying)

	resigned := false
	moved := false
	d.SetCallback(Callback{
		OnResign: func() { resigned = true },
		OnMove:   func(MoveResult) { moved = true },
	})

	d.handleBestmove("bestmove (none)")
	assert.True(t, resigned)
	assert.False(t, moved)
}

func TestHandleBestmoveUnparseableIsProtocolViolation(t *testing.T) {
	d := New("engine-a", "", nil, nil)
	d.setState(StatePlaying)

	var crashErr error
	d.SetCallback(Callback{OnCrashed: func(err error) { crashErr = err }})

	d.handleBestmove("bestmove")
	assert.Error(t, crashErr)
	assert.Equal(t, StateStopped, d.State())
}

func TestGoRejectedWhenNotReady(t *testing.T) {
	d := New("engine-a", "", nil, nil)
	err := d.Go("startpos", nil, Limits{Depth: 5})
	assert.Error(t, err)
}

func TestIsSafeToDeattach(t *testing.T) {
	d := New("engine-a", "", nil, nil)
	assert.True(t, d.IsSafeToDeattach())
	d.setState(StatePlaying)
	assert.False(t, d.IsSafeToDeattach())
	d.setState(StateReady)
	assert.True(t, d.IsSafeToDeattach())
}
