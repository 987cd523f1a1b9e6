package bracket

import (
	"math"

	"github.com/google/uuid"
)

// Plan is a freshly laid out bracket, ready to be persisted.
type Plan struct {
	Bracket      Bracket
	Participants []Participant
	Matches      []Match
}

type feedKind uint8

const (
	feedGhost feedKind = iota
	feedParticipant
	feedMatch
)

// feed is whatever flows into a slot while the bracket is laid out: a seeded
// participant, the winner or loser of an earlier match, or a ghost (bye).
type feed struct {
	kind        feedKind
	participant uuid.UUID
	match       int
	wantsWinner bool
}

var ghost = feed{kind: feedGhost}

type builder struct {
	bracketID uuid.UUID
	matches   []Match
}

// Build lays out the full match graph for the seeded teams. Seeds past N up to the
// next power of two are ghosts; any pairing against a ghost is skipped and the real
// side moves on, so every match in the plan has two real slots.
func Build(eventID uuid.UUID, format Format, seeds []SeededTeam) (*Plan, error) {
	if !format.Valid() {
		return nil, Validationf("unknown bracket format %q", format)
	}
	if err := ValidateSeeds(seeds); err != nil {
		return nil, err
	}

	b := &builder{bracketID: uuid.New()}

	ordered := SortBySeed(seeds)
	participants := make([]Participant, len(ordered))
	entrants := make([]feed, len(ordered))
	for i, s := range ordered {
		participants[i] = Participant{
			ID:        uuid.New(),
			BracketID: b.bracketID,
			TeamID:    s.TeamID,
			Seed:      s.Seed,
		}
		entrants[i] = feed{kind: feedParticipant, participant: participants[i].ID}
	}

	bracketSize := calcBracketSize(len(entrants))
	totalRounds := int(math.Log2(float64(bracketSize)))

	var firstRound [][2]feed
	for _, pair := range generateRound1Pairs(bracketSize) {
		firstRound = append(firstRound, [2]feed{entrant(entrants, pair[0]), entrant(entrants, pair[1])})
	}
	wbAlive, lbAlive := b.playRound(WinnersSide, 1, firstRound)

	for r := 2; r <= totalRounds; r++ {
		var dropped []feed
		wbAlive, dropped = b.playRound(WinnersSide, r, pairUp(wbAlive))
		if format == SingleElimination {
			continue
		}

		// Minor round: losers-bracket teams play each other.
		lbAlive, _ = b.playRound(LosersSide, 2*r-3, pairUp(lbAlive))

		// Major round: survivors meet the teams that just dropped from the winners side.
		pairs, err := dropIn(lbAlive, dropped, r-1)
		if err != nil {
			return nil, err
		}
		lbAlive, _ = b.playRound(LosersSide, 2*r-2, pairs)
	}

	if len(wbAlive) != 1 {
		return nil, Invariantf("winners bracket reduced to %d finalists", len(wbAlive))
	}

	if format == DoubleElimination {
		if len(lbAlive) != 1 || lbAlive[0].kind == feedGhost {
			return nil, Invariantf("losers bracket produced no finalist")
		}
		gfWinner, gfLoser := b.add(FinalsSide, grandFinalRound, wbAlive[0], lbAlive[0])
		// The reset is only played when the losers-bracket finalist takes the grand final.
		b.add(FinalsSide, bracketResetRound, gfLoser, gfWinner)
	}

	plan := &Plan{
		Bracket: Bracket{
			ID:      b.bracketID,
			EventID: eventID,
			Format:  format,
			Status:  StatusGenerated,
		},
		Participants: participants,
		Matches:      b.matches,
	}

	if _, err := NewGraph(plan.Bracket, plan.Participants, plan.Matches); err != nil {
		return nil, err
	}
	return plan, nil
}

// ExpectedMatchCount is the number of matches Build creates for n participants.
func ExpectedMatchCount(format Format, n int) int {
	if n < MinParticipants {
		return 0
	}
	if format == SingleElimination {
		return n - 1
	}
	// (n-1) winners + (n-2) losers + grand final + reset
	return 2*n - 1
}

func entrant(entrants []feed, idx int) feed {
	if idx < len(entrants) {
		return entrants[idx]
	}
	return ghost
}

func (b *builder) playRound(side BracketSide, round int, pairs [][2]feed) (winners, losers []feed) {
	winners = make([]feed, 0, len(pairs))
	losers = make([]feed, 0, len(pairs))
	for _, p := range pairs {
		w, l := b.play(side, round, p[0], p[1])
		winners = append(winners, w)
		losers = append(losers, l)
	}
	return winners, losers
}

// play creates a match unless one side is a ghost, in which case the other side
// advances untouched and the loser is a ghost.
func (b *builder) play(side BracketSide, round int, a, c feed) (winner, loser feed) {
	switch {
	case a.kind == feedGhost && c.kind == feedGhost:
		return ghost, ghost
	case c.kind == feedGhost:
		return a, ghost
	case a.kind == feedGhost:
		return c, ghost
	}
	return b.add(side, round, a, c)
}

func (b *builder) add(side BracketSide, round int, a, c feed) (winner, loser feed) {
	m := Match{
		ID:          uuid.New(),
		BracketID:   b.bracketID,
		Side:        side,
		Round:       round,
		MatchNumber: len(b.matches) + 1,
		Slot1:       b.slot(a),
		Slot2:       b.slot(c),
		Status:      MatchUndetermined,
	}
	if m.Slot1.IsBound() && m.Slot2.IsBound() {
		m.Status = MatchScheduled
	}
	b.matches = append(b.matches, m)

	idx := len(b.matches) - 1
	return feed{kind: feedMatch, match: idx, wantsWinner: true}, feed{kind: feedMatch, match: idx, wantsWinner: false}
}

// slot returns an unset Slot for ghosts; graph validation rejects those.
func (b *builder) slot(f feed) Slot {
	switch f.kind {
	case feedParticipant:
		return BoundSlot(f.participant)
	case feedMatch:
		return PlaceholderSlot(b.matches[f.match].ID, f.wantsWinner)
	}
	return Slot{}
}

func pairUp(feeds []feed) [][2]feed {
	pairs := make([][2]feed, 0, len(feeds)/2)
	for i := 0; i+1 < len(feeds); i += 2 {
		pairs = append(pairs, [2]feed{feeds[i], feeds[i+1]})
	}
	return pairs
}

// dropIn pairs losers-bracket survivors with the teams falling from the winners side.
// Odd drop rounds take the fallers in reverse so early rematches are avoided.
func dropIn(survivors, dropped []feed, drop int) ([][2]feed, error) {
	if len(survivors) != len(dropped) {
		return nil, Invariantf("drop round %d: %d survivors against %d dropped teams", drop, len(survivors), len(dropped))
	}
	pairs := make([][2]feed, len(survivors))
	for i := range survivors {
		j := i
		if drop%2 == 1 {
			j = len(dropped) - 1 - i
		}
		pairs[i] = [2]feed{survivors[i], dropped[j]}
	}
	return pairs, nil
}

// Gets the nearest power of 2 while rounding up, so with input 5 it returns 8 and so on
func calcBracketSize(count int) int {
	if count <= 0 {
		return 0
	}

	// Log2 -> Ceil -> 2^^log2 to round up
	log2 := math.Ceil(math.Log2(float64(count)))
	return int(math.Pow(2, log2))
}

// generateRound1Pairs returns zero-based seed indices for the first round. Every pair
// sums to bracketSize-1 and the order keeps the top seeds apart until the final.
func generateRound1Pairs(bracketSize int) [][2]int {
	if bracketSize == 0 {
		return [][2]int{}
	}

	rounds := []int{0}
	for len(rounds) < bracketSize {
		var nextRound []int
		currentCount := len(rounds) * 2

		for _, seed := range rounds {
			nextRound = append(nextRound, seed)
			nextRound = append(nextRound, (currentCount-1)-seed)
		}
		rounds = nextRound
	}

	pairs := make([][2]int, 0, bracketSize/2)
	for i := 0; i < len(rounds); i += 2 {
		matchup := [2]int{rounds[i], rounds[i+1]}
		pairs = append(pairs, matchup)
	}

	return pairs
}
