// Package chessboard wraps github.com/corentings/chess/v2 behind the narrow
// board contract the core consumes: make a move and learn its SAN, ask for
// the rule-based result, and export the FEN and SAN move list. Move generation, rule
// enforcement and notation are entirely the library's job; this package only
// adds the move-history bookkeeping (elapsed time, score, depth, nodes) the
// tournament core needs to reconstruct a PGN.
package chessboard

import (
	"fmt"
	"strings"
	"time"

	chesslib "github.com/corentings/chess/v2"
)

// Result mirrors the external Board contract's rule()/probeSyzygy outcome.
type Result int

const (
	NoResult Result = iota
	WhiteWin
	BlackWin
	Draw
)

func (r Result) String() string {
	switch r {
	case WhiteWin:
		return "1-0"
	case BlackWin:
		return "0-1"
	case Draw:
		return "1/2-1/2"
	default:
		return "*"
	}
}

// Side indexes white (0) / black (1), matching timecontrol.Side.
type Side int

const (
	White Side = 0
	Black Side = 1
)

// MoveRecord annotates one applied ply with the bookkeeping the PGN/ticker
// need: how long the mover thought, what it believed the position was worth,
// how deep/wide it searched, and whether this ply is the last of the opening
// book prefix.
type MoveRecord struct {
	UCI          string
	SAN          string
	ElapsedSec   float64
	ScoreCP      int
	Depth        int
	Nodes        int64
	Timestamp    time.Time
	OpeningEnd   bool
}

// Board owns one game's position plus its annotated history. It is not safe
// for concurrent use — the owning Game serializes access under its own
// critical section.
type Board struct {
	game    *chesslib.Game
	history []MoveRecord
}

// NewGame starts a board from fen ("" or "startpos" meaning the initial
// position).
func NewGame(fen string) (*Board, error) {
	var game *chesslib.Game
	if strings.TrimSpace(fen) == "" || fen == "startpos" {
		game = chesslib.NewGame()
	} else {
		option, err := chesslib.FEN(fen)
		if err != nil {
			return nil, fmt.Errorf("parse start fen %q: %w", fen, err)
		}
		game = chesslib.NewGame(option)
	}
	return &Board{game: game}, nil
}

// ApplyStartMoves pushes a prefix of UCI moves (the opening book line or a
// resumed game's recorded moves) and marks the final one applied as the end
// of the opening. Per the truncate-silently design note, a move that fails
// to apply stops the walk rather than erroring the whole game — the return
// value reports how many moves actually landed so the caller can log a
// warning when it is short of len(moves).
func (b *Board) ApplyStartMoves(moves []string) (applied int, err error) {
	for i, uci := range moves {
		ok, _ := b.CheckMake(uci)
		if !ok {
			if len(b.history) > 0 {
				b.history[len(b.history)-1].OpeningEnd = true
			}
			return i, fmt.Errorf("start move %q (index %d) does not apply to current position", uci, i)
		}
	}
	if len(b.history) > 0 {
		b.history[len(b.history)-1].OpeningEnd = true
	}
	return len(moves), nil
}

// CheckMake attempts to apply a UCI move (e.g. "e2e4", "e7e8q") to the
// current position. On success it returns the SAN rendering and records the
// move in history with zeroed timing/score — callers fill those via
// AnnotateLast afterwards once the engine's timing is known. An illegal move
// leaves the board and history unchanged and returns ok=false.
func (b *Board) CheckMake(uciMove string) (ok bool, san string) {
	pos := b.game.Position()
	notation := chesslib.UCINotation{}
	mv, err := notation.Decode(pos, strings.TrimSpace(uciMove))
	if err != nil {
		if perr := b.game.PushNotationMove(uciMove, chesslib.AlgebraicNotation{}, nil); perr != nil {
			return false, ""
		}
		moves := b.game.Moves()
		last := moves[len(moves)-1]
		san = chesslib.AlgebraicNotation{}.Encode(pos, last)
		b.history = append(b.history, MoveRecord{UCI: last.String(), SAN: san, Timestamp: time.Now()})
		return true, san
	}

	san = chesslib.AlgebraicNotation{}.Encode(pos, mv)
	if err := b.game.Move(mv, nil); err != nil {
		return false, ""
	}
	b.history = append(b.history, MoveRecord{UCI: uciMove, SAN: san, Timestamp: time.Now()})
	return true, san
}

// AnnotateLast fills in the timing/score/depth/nodes the driver reported for
// the move that was just applied.
func (b *Board) AnnotateLast(elapsedSec float64, scoreCP, depth int, nodes int64) {
	if len(b.history) == 0 {
		return
	}
	rec := &b.history[len(b.history)-1]
	rec.ElapsedSec = elapsedSec
	rec.ScoreCP = scoreCP
	rec.Depth = depth
	rec.Nodes = nodes
}

// Rule reports the rule-based result of the current position (checkmate,
// stalemate, draw by the library's built-in detectors), or NoResult if the
// game is ongoing.
func (b *Board) Rule() Result {
	switch b.game.Outcome() {
	case chesslib.WhiteWon:
		return WhiteWin
	case chesslib.BlackWon:
		return BlackWin
	case chesslib.Draw:
		return Draw
	default:
		return NoResult
	}
}

// ProbeSyzygy is the contracted hook for endgame-tablebase adjudication. No
// tablebase implementation travels with this module (out of scope per the
// core's external-collaborators list); it always reports NoResult so callers
// degrade gracefully when adjudicationEgtbMode is enabled without a real
// probe wired in.
func (b *Board) ProbeSyzygy(maxPieces int) Result {
	return NoResult
}

// PieceCount returns the number of pieces left on the board, the input
// adjudication needs to decide whether to probe at all.
func (b *Board) PieceCount() int {
	return len(b.game.Position().Board().SquareMap())
}

// SideToMove reports whose turn it is.
func (b *Board) SideToMove() Side {
	if b.game.Position().Turn() == chesslib.White {
		return White
	}
	return Black
}

// Ply returns the half-move count played so far.
func (b *Board) Ply() int {
	return len(b.history)
}

// History returns the annotated move list, in play order.
func (b *Board) History() []MoveRecord {
	return append([]MoveRecord(nil), b.history...)
}

// FEN returns the current position.
func (b *Board) FEN() string {
	return b.game.FEN()
}

// SANMoves returns the played move list in SAN, suitable for PGN movetext.
func (b *Board) SANMoves() []string {
	sans := make([]string, len(b.history))
	for i, rec := range b.history {
		sans[i] = rec.SAN
	}
	return sans
}
