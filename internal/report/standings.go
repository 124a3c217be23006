package report

import "sort"

// ResultRow is one engine's tally against the whole field, the input to a
// standings table and to the per-engine Elo stats.
type ResultRow struct {
	Name        string
	Wins        int
	Losses      int
	Draws       int
	WhiteWins   int
	BlackWins   int
	GamesPlayed int
}

// Score is the classical 1/0.5/0 tournament score.
func (r ResultRow) Score() float64 {
	return float64(r.Wins) + 0.5*float64(r.Draws)
}

// Standing pairs a ResultRow with its derived Elo statistics, ready for
// rendering.
type Standing struct {
	ResultRow
	Elo EloStats
}

// BuildStandings ranks rows by wins (descending), ties broken by fewer
// losses then more draws, and finally by name, and computes each row's
// Elo/LOS figures against the rest of the field. Score is carried for
// display only; it is not the ranking key.
func BuildStandings(rows []ResultRow) []Standing {
	out := make([]Standing, len(rows))
	for i, r := range rows {
		out[i] = Standing{ResultRow: r, Elo: ComputeEloStats(r.Wins, r.Losses, r.Draws)}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Wins != out[j].Wins {
			return out[i].Wins > out[j].Wins
		}
		if out[i].Losses != out[j].Losses {
			return out[i].Losses < out[j].Losses
		}
		if out[i].Draws != out[j].Draws {
			return out[i].Draws > out[j].Draws
		}
		return out[i].Name < out[j].Name
	})
	return out
}
