// Package tournament implements the Tournament Manager: pairing
// generation for round-robin and knockout formats, and the scheduling loop
// that drives each pairing's games through internal/game, persisting
// progress to internal/ledger so a crashed run can resume.
package tournament

import "sort"

// Pairing is one scheduled game: two named engines sharing a pairId, which
// ties together all games of the same pair for scoring and (in knockout)
// tie-break extension.
type Pairing struct {
	PairID    string
	Round     int
	GameIndex int
	White     string
	Black     string
}

// GenerateRoundRobin schedules every unordered pair of names gamesPerPair
// times, alternating which side is white across the pair's games so a
// pairId's games split colors evenly. Pairs are emitted in (i, j) index
// order, and each pair gets its own round number, counting up from 1.
func GenerateRoundRobin(names []string, gamesPerPair int) []Pairing {
	n := len(names)
	if n < 2 || gamesPerPair <= 0 {
		return nil
	}

	var pairings []Pairing
	pairIndex := 0
	round := 1
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			pairID := pairKey(pairIndex)
			pairIndex++
			for g := 0; g < gamesPerPair; g++ {
				white, black := names[i], names[j]
				if g%2 == 1 {
					white, black = black, white
				}
				pairings = append(pairings, Pairing{
					PairID:    pairID,
					Round:     round,
					GameIndex: g,
					White:     white,
					Black:     black,
				})
			}
			round++
		}
	}
	return pairings
}

func pairKey(i int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	s := make([]byte, 0, 4)
	for {
		s = append([]byte{letters[i%26]}, s...)
		i = i/26 - 1
		if i < 0 {
			break
		}
	}
	return "p" + string(s)
}

// KnockoutSeed is one surviving participant entering a knockout round,
// ranked by Elo to seed the bracket's top-half against the bottom-half.
type KnockoutSeed struct {
	Name string
	Elo  int
}

// GenerateKnockoutRound pairs the top half of seeds against the bottom half
// (seed 1 vs seed n/2+1, seed 2 vs seed n/2+2, ...), gamesPerPair games per
// pair. An odd seed count gives the top remaining seed a bye, returned
// separately so the manager can advance it without playing a game.
func GenerateKnockoutRound(round int, seeds []KnockoutSeed, gamesPerPair int) (pairings []Pairing, bye string) {
	ranked := append([]KnockoutSeed(nil), seeds...)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Elo > ranked[j].Elo })

	if len(ranked)%2 == 1 {
		bye = ranked[0].Name
		ranked = ranked[1:]
	}

	half := len(ranked) / 2
	for i := 0; i < half; i++ {
		pairID := pairKey(i)
		top, bottom := ranked[i], ranked[half+i]
		for g := 0; g < gamesPerPair; g++ {
			white, black := top.Name, bottom.Name
			if g%2 == 1 {
				white, black = black, white
			}
			pairings = append(pairings, Pairing{PairID: pairID, Round: round, GameIndex: g, White: white, Black: black})
		}
	}
	return pairings, bye
}

// PairTally accumulates one pair's results across its scheduled games, the
// bookkeeping KnockoutWinner's tie-break needs.
type PairTally struct {
	PairID       string
	NameA, NameB string
	WinsA, WinsB int
	Draws        int
	WhiteWinsA   int // games A won while playing white
	WhiteWinsB   int // games B won while playing white
	WhiteCountA  int // games A played as white, regardless of result
	WhiteCountB  int // games B played as white, regardless of result
}

// KnockoutWinner decides a pair's advancing name: most wins advances; a tie
// in wins is broken by who played fewer games as white; a full tie (wins and
// white count both equal) asks the caller to schedule one extra game
// (needsExtraGame=true) rather than deciding arbitrarily.
func KnockoutWinner(t PairTally) (winner string, needsExtraGame bool) {
	if t.WinsA > t.WinsB {
		return t.NameA, false
	}
	if t.WinsB > t.WinsA {
		return t.NameB, false
	}
	// equal wins: break by who played fewer games as white
	if t.WhiteCountA < t.WhiteCountB {
		return t.NameA, false
	}
	if t.WhiteCountB < t.WhiteCountA {
		return t.NameB, false
	}
	return "", true
}
