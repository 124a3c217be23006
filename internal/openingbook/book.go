// Package openingbook implements the opening-book sampler the core consumes
// through a narrow contract: hand back a starting FEN plus a prefix move
// list for a new Match Record. It generalizes a single-ply "always answer as
// black in an already-started game" lookup into "sample a full opening line
// from the start position for whichever side a pairing assigns", since a
// tournament record needs a starting position before either engine has
// moved, not a move ahead in an in-progress one.
package openingbook

import (
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strings"

	chesslib "github.com/corentings/chess/v2"
)

// Entry is one candidate move at a book position.
type Entry struct {
	UCI    string
	Weight uint16
}

// Book samples full opening lines out of a Polyglot book, via
// corentings/chess/v2's PolyglotBook.
type Book struct {
	polyglot *chesslib.PolyglotBook
	maxPly   int
	top100   bool
	rng      *rand.Rand
}

// Config mirrors an "opening books" registry entry: a single enabled book
// with a max line length. top100 in the config schema narrows
// the weighted pool to a book's most common replies; it is honored by
// filtering to the top N weighted entries at each ply when set.
type Config struct {
	Path    string
	MaxPly  int
	Top100  bool
	Seed    int64
	HasSeed bool
}

// Load opens a Polyglot book file and returns a sampler seeded per the
// design notes: a configured seed for reproducible tests, otherwise a
// time-derived seed for production variety.
func Load(cfg Config) (*Book, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, fmt.Errorf("opening book path required")
	}
	f, err := os.Open(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open opening book %q: %w", cfg.Path, err)
	}
	defer f.Close()

	polyglot, err := chesslib.LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("load polyglot book %q: %w", cfg.Path, err)
	}

	maxPly := cfg.MaxPly
	if maxPly <= 0 {
		maxPly = 12
	}

	var src rand.Source
	if cfg.HasSeed {
		src = rand.NewSource(cfg.Seed)
	} else {
		src = rand.NewSource(rand.Int63())
	}

	return &Book{polyglot: polyglot, maxPly: maxPly, top100: cfg.Top100, rng: rand.New(src)}, nil
}

// RandomLine walks the book from the start position, picking a
// weight-proportional move at each ply until either a position with no book
// entries is reached or maxPly half-moves have been sampled. It returns the
// resulting FEN (the starting position for the new game — always startpos,
// since every walk begins there) and the move prefix in UCI notation, ready
// to hand to a Match Record's startFen/startMoves.
func (b *Book) RandomLine() (fen string, moves []string, err error) {
	game := chesslib.NewGame()
	hasher := chesslib.NewZobristHasher()
	notation := chesslib.UCINotation{}

	for ply := 0; ply < b.maxPly; ply++ {
		hashStr, err := hasher.HashPosition(game.FEN())
		if err != nil {
			return "", nil, fmt.Errorf("hash position: %w", err)
		}
		entries := b.filterTop(b.polyglot.FindMoves(chesslib.ZobristHashToUint64(hashStr)))
		if len(entries) == 0 {
			break
		}

		uci, ok := pickWeighted(entries, b.rng)
		if !ok {
			break
		}

		mv, err := notation.Decode(game.Position(), uci)
		if err != nil {
			break
		}
		game.Move(mv, nil)
		moves = append(moves, uci)
	}

	return "startpos", moves, nil
}

// Lookup returns the book's reply to an arbitrary position, a side-agnostic
// query — the tournament core doesn't otherwise use this (RandomLine covers
// the scheduler's needs), but it is kept so a future sampler type (e.g.
// "book until move N, then free play") has it available.
func (b *Book) Lookup(fen string, moves []string) (Entry, bool, error) {
	game, err := buildPosition(fen, moves)
	if err != nil {
		return Entry{}, false, err
	}

	hasher := chesslib.NewZobristHasher()
	hashStr, err := hasher.HashPosition(game.FEN())
	if err != nil {
		return Entry{}, false, fmt.Errorf("hash position: %w", err)
	}

	entries := b.filterTop(b.polyglot.FindMoves(chesslib.ZobristHashToUint64(hashStr)))
	if len(entries) == 0 {
		return Entry{}, false, nil
	}

	uci, ok := pickWeighted(entries, b.rng)
	if !ok {
		return Entry{}, false, nil
	}
	var weight uint16
	for _, e := range entries {
		decoded := chesslib.DecodeMove(e.Move).ToMove()
		if decoded.String() == uci {
			weight = e.Weight
			break
		}
	}
	return Entry{UCI: uci, Weight: weight}, true, nil
}

func buildPosition(fen string, moves []string) (*chesslib.Game, error) {
	var game *chesslib.Game
	if strings.TrimSpace(fen) == "" || fen == "startpos" {
		game = chesslib.NewGame()
	} else {
		option, err := chesslib.FEN(fen)
		if err != nil {
			return nil, fmt.Errorf("parse fen %q: %w", fen, err)
		}
		game = chesslib.NewGame(option)
	}
	for _, mv := range moves {
		if err := game.PushNotationMove(mv, chesslib.UCINotation{}, nil); err != nil {
			return nil, fmt.Errorf("apply move %q: %w", mv, err)
		}
	}
	return game, nil
}

// filterTop narrows to the 100 most-weighted entries when top100 is set,
// matching the "top100" flag in the opening-book registry entry.
func (b *Book) filterTop(entries []chesslib.PolyglotEntry) []chesslib.PolyglotEntry {
	if !b.top100 || len(entries) <= 100 {
		return entries
	}
	sorted := append([]chesslib.PolyglotEntry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Weight > sorted[j].Weight })
	return sorted[:100]
}

func pickWeighted(entries []chesslib.PolyglotEntry, rng *rand.Rand) (string, bool) {
	var total int
	for _, e := range entries {
		total += int(e.Weight)
	}
	if total <= 0 {
		mv := chesslib.DecodeMove(entries[0].Move).ToMove()
		return mv.String(), true
	}

	pick := rng.Intn(total)
	running := 0
	for _, e := range entries {
		running += int(e.Weight)
		if pick < running {
			mv := chesslib.DecodeMove(e.Move).ToMove()
			return mv.String(), true
		}
	}
	mv := chesslib.DecodeMove(entries[len(entries)-1].Move).ToMove()
	return mv.String(), true
}
