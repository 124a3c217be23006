// Package report renders a finished tournament's results: PGN export per
// match, Elo-difference/LOS statistics per engine, and a standings table.
// PGN construction generalizes a two-player casual game's headers into the
// seven-tag roster plus optional FEN/ECO tags.
package report

import (
	"fmt"
	"strings"
	"time"
)

// PGNInput carries everything one match needs to render its PGN, kept
// independent of internal/game and internal/chessboard so this package has
// no import-cycle risk with the core state machines.
type PGNInput struct {
	Event       string
	Site        string
	Round       int
	White       string
	Black       string
	Result      string // "1-0", "0-1", "1/2-1/2", "*"
	Date        time.Time
	TimeControl string
	Termination string
	SANMoves    []string

	StartFEN string // non-empty only when the game did not start at the initial position
	ECO      string
	Opening  string
	Variation string
}

// BuildPGN renders the seven-tag roster plus the optional FEN/ECO/Opening/
// Variation tags, followed by the numbered movetext and the result token.
func BuildPGN(in PGNInput) string {
	date := in.Date
	if date.IsZero() {
		date = time.Now()
	}
	event := in.Event
	if event == "" {
		event = "?"
	}
	site := in.Site
	if site == "" {
		site = "?"
	}
	result := MapResultToPGN(in.Result)

	var b strings.Builder
	fmt.Fprintf(&b, "[Event %q]\n", sanitizePGN(event))
	fmt.Fprintf(&b, "[Site %q]\n", sanitizePGN(site))
	fmt.Fprintf(&b, "[Date %q]\n", date.Format("2006.01.02"))
	fmt.Fprintf(&b, "[Round %q]\n", fmt.Sprintf("%d", in.Round))
	fmt.Fprintf(&b, "[White %q]\n", sanitizePGN(in.White))
	fmt.Fprintf(&b, "[Black %q]\n", sanitizePGN(in.Black))
	fmt.Fprintf(&b, "[Result %q]\n", result)

	if strings.TrimSpace(in.TimeControl) != "" {
		fmt.Fprintf(&b, "[TimeControl %q]\n", sanitizePGN(in.TimeControl))
	}
	fmt.Fprintf(&b, "[Time %q]\n", date.Format("15:04:05"))
	fmt.Fprintf(&b, "[Board %q]\n", fmt.Sprintf("%d", 1))
	if strings.TrimSpace(in.Termination) != "" {
		fmt.Fprintf(&b, "[Termination %q]\n", sanitizePGN(strings.ToLower(in.Termination)))
	}
	if strings.TrimSpace(in.StartFEN) != "" {
		fmt.Fprintf(&b, "[SetUp %q]\n", "1")
		fmt.Fprintf(&b, "[FEN %q]\n", in.StartFEN)
	}
	if strings.TrimSpace(in.ECO) != "" {
		fmt.Fprintf(&b, "[ECO %q]\n", sanitizePGN(in.ECO))
	}
	if strings.TrimSpace(in.Opening) != "" {
		fmt.Fprintf(&b, "[Opening %q]\n", sanitizePGN(in.Opening))
	}
	if strings.TrimSpace(in.Variation) != "" {
		fmt.Fprintf(&b, "[Variation %q]\n", sanitizePGN(in.Variation))
	}
	b.WriteString("\n")

	for i := 0; i < len(in.SANMoves); i += 2 {
		turn := i/2 + 1
		fmt.Fprintf(&b, "%d. %s", turn, strings.TrimSpace(in.SANMoves[i]))
		if i+1 < len(in.SANMoves) {
			b.WriteString(" ")
			b.WriteString(strings.TrimSpace(in.SANMoves[i+1]))
		}
		b.WriteString(" ")
	}
	b.WriteString(result)
	return b.String()
}

// MapResultToPGN converts an internal result token to its PGN spelling.
func MapResultToPGN(result string) string {
	switch strings.ToLower(strings.TrimSpace(result)) {
	case "1-0", "white":
		return "1-0"
	case "0-1", "black":
		return "0-1"
	case "1/2-1/2", "draw":
		return "1/2-1/2"
	default:
		return "*"
	}
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
