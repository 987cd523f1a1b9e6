package bracket

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func seedTeams(n int) []SeededTeam {
	seeds := make([]SeededTeam, n)
	for i := range seeds {
		seeds[i] = SeededTeam{TeamID: uuid.New(), Seed: i + 1}
	}
	return seeds
}

func buildGraph(t *testing.T, format Format, n int) *Graph {
	t.Helper()

	plan, err := Build(uuid.New(), format, seedTeams(n))
	require.NoError(t, err)

	g, err := NewGraph(plan.Bracket, plan.Participants, plan.Matches)
	require.NoError(t, err)
	return g
}

// reload simulates a commit followed by a fresh load inside the next transaction.
func reload(t *testing.T, g *Graph) *Graph {
	t.Helper()

	participants := make([]Participant, 0, len(g.participants))
	for _, p := range g.participants {
		participants = append(participants, *p)
	}
	matches := make([]Match, 0, len(g.matches))
	for _, m := range g.matches {
		matches = append(matches, *m)
	}

	fresh, err := NewGraph(g.Bracket, participants, matches)
	require.NoError(t, err)
	return fresh
}

func matchNumber(g *Graph, number int) *Match {
	for _, m := range g.matches {
		if m.MatchNumber == number {
			return m
		}
	}
	return nil
}

func bySeed(g *Graph, seed int) *Participant {
	for _, p := range g.participants {
		if p.Seed == seed {
			return p
		}
	}
	return nil
}

func slotSeed(t *testing.T, g *Graph, s Slot) int {
	t.Helper()

	id, ok := s.Participant()
	require.True(t, ok, "slot is not bound: %s", s)
	p, ok := g.Participant(id)
	require.True(t, ok)
	return p.Seed
}

func complete(t *testing.T, g *Graph, m *Match, winner uuid.UUID) *Outcome {
	t.Helper()

	out, err := g.RecordResult(m.ID, Result{Score: Score{Slot1: 2, Slot2: 1}, WinnerParticipantID: &winner, Completed: true})
	require.NoError(t, err)
	return out
}

type picker func(m *Match, p1, p2 *Participant) uuid.UUID

func betterSeed(_ *Match, p1, p2 *Participant) uuid.UUID {
	if p1.Seed < p2.Seed {
		return p1.ID
	}
	return p2.ID
}

// playOut completes scheduled matches in match-number order until none are left.
func playOut(t *testing.T, g *Graph, pick picker) {
	t.Helper()

	for guard := 0; guard < 4*len(g.matches); guard++ {
		var next *Match
		for _, m := range g.matches {
			if m.Status == MatchScheduled {
				next = m
				break
			}
		}
		if next == nil {
			return
		}
		id1, id2, ok := next.Participants()
		require.True(t, ok)
		p1, _ := g.Participant(id1)
		p2, _ := g.Participant(id2)
		complete(t, g, next, pick(next, p1, p2))
	}
	t.Fatal("bracket did not settle")
}
