package chessboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGameStartpos(t *testing.T) {
	b, err := NewGame("")
	require.NoError(t, err)
	assert.Equal(t, White, b.SideToMove())
	assert.Equal(t, 0, b.Ply())
	assert.Equal(t, NoResult, b.Rule())
}

func TestCheckMakeLegalMove(t *testing.T) {
	b, err := NewGame("")
	require.NoError(t, err)

	ok, san := b.CheckMake("e2e4")
	require.True(t, ok)
	assert.Equal(t, "e4", san)
	assert.Equal(t, Black, b.SideToMove())
	assert.Equal(t, 1, b.Ply())
}

func TestCheckMakeIllegalMove(t *testing.T) {
	b, err := NewGame("")
	require.NoError(t, err)

	ok, _ := b.CheckMake("e2e5")
	assert.False(t, ok)
	assert.Equal(t, 0, b.Ply())
}

func TestApplyStartMovesTruncatesOnFailure(t *testing.T) {
	b, err := NewGame("")
	require.NoError(t, err)

	applied, err := b.ApplyStartMoves([]string{"e2e4", "e7e5", "e1e2e2"})
	assert.Error(t, err)
	assert.Equal(t, 2, applied)
	assert.Equal(t, 2, b.Ply())
}

func TestApplyStartMovesMarksOpeningEnd(t *testing.T) {
	b, err := NewGame("")
	require.NoError(t, err)

	_, err = b.ApplyStartMoves([]string{"e2e4", "e7e5"})
	require.NoError(t, err)
	hist := b.History()
	require.Len(t, hist, 2)
	assert.True(t, hist[1].OpeningEnd)
	assert.False(t, hist[0].OpeningEnd)
}

func TestAnnotateLast(t *testing.T) {
	b, err := NewGame("")
	require.NoError(t, err)
	_, _ = b.CheckMake("e2e4")
	b.AnnotateLast(1.5, 35, 20, 123456)

	hist := b.History()
	require.Len(t, hist, 1)
	assert.Equal(t, 1.5, hist[0].ElapsedSec)
	assert.Equal(t, 35, hist[0].ScoreCP)
	assert.Equal(t, 20, hist[0].Depth)
	assert.Equal(t, int64(123456), hist[0].Nodes)
}

func TestFoolsMateRuleResult(t *testing.T) {
	b, err := NewGame("")
	require.NoError(t, err)
	moves := []string{"f2f3", "e7e5", "g2g4", "d8h4"}
	for _, mv := range moves {
		ok, _ := b.CheckMake(mv)
		require.True(t, ok, mv)
	}
	assert.Equal(t, BlackWin, b.Rule())
}

func TestFENFromStart(t *testing.T) {
	fen := "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1"
	b, err := NewGame(fen)
	require.NoError(t, err)
	assert.Equal(t, Black, b.SideToMove())
}

func TestProbeSyzygyAlwaysNoResult(t *testing.T) {
	b, err := NewGame("")
	require.NoError(t, err)
	assert.Equal(t, NoResult, b.ProbeSyzygy(5))
}
