package bracket

import (
	"sort"

	"github.com/google/uuid"
)

// Graph is the in-memory view of one bracket used while applying a mutation.
// It records which rows were changed so the store only writes those.
type Graph struct {
	Bracket Bracket

	participants  []*Participant
	byParticipant map[uuid.UUID]*Participant
	matches       []*Match
	byMatch       map[uuid.UUID]*Match

	bracketDirty      bool
	dirtyMatches      map[uuid.UUID]bool
	dirtyParticipants map[uuid.UUID]bool
}

type sourceKey struct {
	match       uuid.UUID
	wantsWinner bool
}

// NewGraph copies the rows into a graph and checks every structural invariant.
// A violation means the stored bracket is corrupt and is reported as ErrInvariant.
func NewGraph(b Bracket, participants []Participant, matches []Match) (*Graph, error) {
	g := &Graph{
		Bracket:           b,
		byParticipant:     make(map[uuid.UUID]*Participant, len(participants)),
		byMatch:           make(map[uuid.UUID]*Match, len(matches)),
		dirtyMatches:      make(map[uuid.UUID]bool),
		dirtyParticipants: make(map[uuid.UUID]bool),
	}

	seeds := make([]SeededTeam, 0, len(participants))
	for i := range participants {
		p := participants[i]
		if p.BracketID != b.ID {
			return nil, Invariantf("participant %s belongs to bracket %s", p.ID, p.BracketID)
		}
		if _, dup := g.byParticipant[p.ID]; dup {
			return nil, Invariantf("participant %s listed twice", p.ID)
		}
		g.participants = append(g.participants, &p)
		g.byParticipant[p.ID] = &p
		seeds = append(seeds, SeededTeam{TeamID: p.TeamID, Seed: p.Seed})
	}
	if err := ValidateSeeds(seeds); err != nil {
		return nil, Invariantf("stored seeds: %v", err)
	}
	sort.Slice(g.participants, func(i, j int) bool { return g.participants[i].Seed < g.participants[j].Seed })

	for i := range matches {
		m := matches[i]
		if m.BracketID != b.ID {
			return nil, Invariantf("match %s belongs to bracket %s", m.ID, m.BracketID)
		}
		if _, dup := g.byMatch[m.ID]; dup {
			return nil, Invariantf("match %s listed twice", m.ID)
		}
		g.matches = append(g.matches, &m)
		g.byMatch[m.ID] = &m
	}
	sort.Slice(g.matches, func(i, j int) bool { return g.matches[i].MatchNumber < g.matches[j].MatchNumber })

	if err := g.validate(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Graph) validate() error {
	numbers := make(map[int]bool, len(g.matches))
	sources := make(map[sourceKey]uuid.UUID, len(g.matches)*2)
	champions := 0

	for _, p := range g.participants {
		if p.FinalPosition != nil && *p.FinalPosition == 1 {
			champions++
		}
	}
	if champions > 1 {
		return Invariantf("%d participants hold first place", champions)
	}
	if id := g.Bracket.ChampionParticipantID; id != nil && g.byParticipant[*id] == nil {
		return Invariantf("champion %s is not a participant", *id)
	}

	for _, m := range g.matches {
		if m.MatchNumber < 1 || numbers[m.MatchNumber] {
			return Invariantf("match number %d is not unique", m.MatchNumber)
		}
		numbers[m.MatchNumber] = true

		placeholders := 0
		for i, s := range m.Slots() {
			switch {
			case s.IsZero():
				return Invariantf("match %d slot %d is empty", m.MatchNumber, i+1)
			case s.IsBound():
				id, _ := s.Participant()
				if g.byParticipant[id] == nil {
					return Invariantf("match %d slot %d holds unknown participant %s", m.MatchNumber, i+1, id)
				}
			default:
				placeholders++
				src, wantsWinner, _ := s.Placeholder()
				source, ok := g.byMatch[src]
				if !ok {
					return Invariantf("match %d slot %d waits on unknown match %s", m.MatchNumber, i+1, src)
				}
				if source.MatchNumber >= m.MatchNumber {
					return Invariantf("match %d slot %d waits on later match %d", m.MatchNumber, i+1, source.MatchNumber)
				}
				key := sourceKey{match: src, wantsWinner: wantsWinner}
				if other, taken := sources[key]; taken {
					return Invariantf("matches %s and %s both take the same result of match %d", other, m.ID, source.MatchNumber)
				}
				sources[key] = m.ID
			}
		}

		if p1, p2, ok := m.Participants(); ok && p1 == p2 {
			return Invariantf("match %d pits participant %s against itself", m.MatchNumber, p1)
		}

		switch m.Status {
		case MatchUndetermined:
			if placeholders == 0 {
				return Invariantf("match %d is undetermined with both slots bound", m.MatchNumber)
			}
		case MatchScheduled, MatchInProgress:
			if placeholders > 0 {
				return Invariantf("match %d is %s with an unresolved slot", m.MatchNumber, m.Status)
			}
		case MatchCompleted:
			if placeholders > 0 || m.Score == nil || m.WinnerParticipantID == nil {
				return Invariantf("match %d is completed without a full result", m.MatchNumber)
			}
			if _, ok := m.Opponent(*m.WinnerParticipantID); !ok {
				return Invariantf("match %d winner %s did not play", m.MatchNumber, *m.WinnerParticipantID)
			}
		case MatchCancelled:
		default:
			return Invariantf("match %d has unknown status %q", m.MatchNumber, m.Status)
		}
	}
	return nil
}

func (g *Graph) Match(id uuid.UUID) (*Match, bool) {
	m, ok := g.byMatch[id]
	return m, ok
}

func (g *Graph) Participant(id uuid.UUID) (*Participant, bool) {
	p, ok := g.byParticipant[id]
	return p, ok
}

// Matches are ordered by match number.
func (g *Graph) Matches() []*Match { return g.matches }

// Participants are ordered by seed.
func (g *Graph) Participants() []*Participant { return g.participants }

func (g *Graph) BracketDirty() bool { return g.bracketDirty }

func (g *Graph) DirtyMatches() []*Match {
	var out []*Match
	for _, m := range g.matches {
		if g.dirtyMatches[m.ID] {
			out = append(out, m)
		}
	}
	return out
}

func (g *Graph) DirtyParticipants() []*Participant {
	var out []*Participant
	for _, p := range g.participants {
		if g.dirtyParticipants[p.ID] {
			out = append(out, p)
		}
	}
	return out
}

func (g *Graph) touchMatch(m *Match)             { g.dirtyMatches[m.ID] = true }
func (g *Graph) touchParticipant(p *Participant) { g.dirtyParticipants[p.ID] = true }

func (g *Graph) markStarted() {
	if g.Bracket.Status == StatusGenerated {
		g.Bracket.Status = StatusInProgress
		g.bracketDirty = true
	}
}

// terminalMatch is the reset once the losers-side finalist has taken the grand
// final, otherwise the grand final (the winners final in single elimination).
// A reset cancelled beforehand is still terminal, so the bracket stalls.
func (g *Graph) terminalMatch() *Match {
	var grandFinal, reset, winnersFinal *Match
	for _, m := range g.matches {
		switch {
		case m.IsGrandFinal():
			grandFinal = m
		case m.IsBracketReset():
			reset = m
		case m.Side == WinnersSide && (winnersFinal == nil || m.Round > winnersFinal.Round):
			winnersFinal = m
		}
	}
	if g.Bracket.Format == SingleElimination {
		return winnersFinal
	}
	if reset == nil || grandFinal == nil {
		return grandFinal
	}
	if reset.Slot1.IsBound() && reset.Slot2.IsBound() {
		return reset
	}
	if grandFinal.Status == MatchCompleted && grandFinal.WinnerParticipantID != nil {
		if lbFinalist, ok := grandFinal.Slot2.Participant(); ok && lbFinalist == *grandFinal.WinnerParticipantID {
			return reset
		}
	}
	return grandFinal
}
