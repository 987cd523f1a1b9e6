package bracket

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRound1Pairs(t *testing.T) {
	testCases := []struct {
		name        string
		bracketSize int
		expected    [][2]int
	}{
		{
			name:        "Zero teams",
			bracketSize: 0,
			expected:    [][2]int{},
		},
		{
			name:        "Size 2 (Final)",
			bracketSize: 2,
			expected:    [][2]int{{0, 1}},
		},
		{
			name:        "Size 4 (Semi-Finals)",
			bracketSize: 4,
			expected:    [][2]int{{0, 3}, {1, 2}},
		},
		{
			name:        "Size 8 (Quarter-Finals)",
			bracketSize: 8,
			expected:    [][2]int{{0, 7}, {3, 4}, {1, 6}, {2, 5}},
		},
		{
			name:        "Size 16",
			bracketSize: 16,
			expected: [][2]int{
				{0, 15}, {7, 8}, {3, 12}, {4, 11},
				{1, 14}, {6, 9}, {2, 13}, {5, 10},
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := generateRound1Pairs(tc.bracketSize)
			assert.Equal(t, tc.expected, result)
			for _, pair := range result {
				assert.Equal(t, tc.bracketSize-1, pair[0]+pair[1])
			}
		})
	}
}

func TestCalcBracketSize(t *testing.T) {
	sizes := map[int]int{0: 0, 1: 1, 2: 2, 3: 4, 5: 8, 8: 8, 9: 16, 17: 32}
	for count, want := range sizes {
		assert.Equal(t, want, calcBracketSize(count), "count %d", count)
	}
}

func TestBuildMatchCounts(t *testing.T) {
	for _, format := range []Format{DoubleElimination, SingleElimination} {
		for n := 2; n <= 33; n++ {
			t.Run(fmt.Sprintf("%s/%d", format, n), func(t *testing.T) {
				g := buildGraph(t, format, n)

				sides := map[BracketSide]int{}
				for _, m := range g.Matches() {
					sides[m.Side]++
				}

				assert.Len(t, g.Matches(), ExpectedMatchCount(format, n))
				assert.Equal(t, n-1, sides[WinnersSide])
				if format == DoubleElimination {
					assert.Equal(t, n-2, sides[LosersSide])
					assert.Equal(t, 2, sides[FinalsSide])
				} else {
					assert.Zero(t, sides[LosersSide])
					assert.Zero(t, sides[FinalsSide])
				}
			})
		}
	}
}

func TestBuildGraphShape(t *testing.T) {
	for n := 2; n <= 33; n++ {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			g := buildGraph(t, DoubleElimination, n)

			bound := map[uuid.UUID]int{}
			for _, m := range g.Matches() {
				for _, s := range m.Slots() {
					if id, ok := s.Participant(); ok {
						bound[id]++
						continue
					}
					src, _, ok := s.Placeholder()
					require.True(t, ok)
					source, ok := g.Match(src)
					require.True(t, ok)
					assert.Less(t, source.MatchNumber, m.MatchNumber, "match %d points forward", m.MatchNumber)
				}

				if m.Slot1.IsBound() && m.Slot2.IsBound() {
					assert.Equal(t, MatchScheduled, m.Status)
				} else {
					assert.Equal(t, MatchUndetermined, m.Status)
				}
			}

			// Each team enters exactly once; byes enter in round two.
			require.Len(t, bound, n)
			for _, count := range bound {
				assert.Equal(t, 1, count)
			}
		})
	}
}

func TestBuildFourTeamLayout(t *testing.T) {
	g := buildGraph(t, DoubleElimination, 4)

	type layout struct {
		Side  BracketSide
		Round int
		Slot1 string
		Slot2 string
	}
	var got []layout
	for _, m := range g.Matches() {
		got = append(got, layout{Side: m.Side, Round: m.Round, Slot1: describe(t, g, m.Slot1), Slot2: describe(t, g, m.Slot2)})
	}

	want := []layout{
		{WinnersSide, 1, "seed 1", "seed 4"},
		{WinnersSide, 1, "seed 2", "seed 3"},
		{WinnersSide, 2, "Winner of Game 1", "Winner of Game 2"},
		{LosersSide, 1, "Loser of Game 1", "Loser of Game 2"},
		{LosersSide, 2, "Winner of Game 4", "Loser of Game 3"},
		{FinalsSide, grandFinalRound, "Winner of Game 3", "Winner of Game 5"},
		{FinalsSide, bracketResetRound, "Loser of Game 6", "Winner of Game 6"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("layout mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildFiveTeamsUsesByes(t *testing.T) {
	g := buildGraph(t, DoubleElimination, 5)

	first := matchNumber(g, 1)
	require.NotNil(t, first)
	assert.Equal(t, 4, slotSeed(t, g, first.Slot1))
	assert.Equal(t, 5, slotSeed(t, g, first.Slot2))

	// Seed 1 skips round one and waits for the only first-round match.
	topHalf := matchNumber(g, 2)
	assert.Equal(t, WinnersSide, topHalf.Side)
	assert.Equal(t, 2, topHalf.Round)
	assert.Equal(t, 1, slotSeed(t, g, topHalf.Slot1))
	assert.Equal(t, "Winner of Game 1", g.PlaceholderLabel(topHalf.Slot2))
	assert.Equal(t, MatchUndetermined, topHalf.Status)

	bottomHalf := matchNumber(g, 3)
	assert.Equal(t, 2, slotSeed(t, g, bottomHalf.Slot1))
	assert.Equal(t, 3, slotSeed(t, g, bottomHalf.Slot2))
	assert.Equal(t, MatchScheduled, bottomHalf.Status)
}

func TestBuildRejectsBadInput(t *testing.T) {
	_, err := Build(uuid.New(), Format("swiss"), seedTeams(4))
	assert.True(t, errors.Is(err, ErrValidation))

	_, err = Build(uuid.New(), DoubleElimination, seedTeams(1))
	assert.True(t, errors.Is(err, ErrValidation))

	seeds := seedTeams(4)
	seeds[3].Seed = 7
	_, err = Build(uuid.New(), DoubleElimination, seeds)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestNewGraphRejectsCorruptRows(t *testing.T) {
	plan, err := Build(uuid.New(), DoubleElimination, seedTeams(4))
	require.NoError(t, err)

	t.Run("forward placeholder", func(t *testing.T) {
		matches := append([]Match(nil), plan.Matches...)
		matches[0].Slot2 = PlaceholderSlot(matches[6].ID, true)
		matches[0].Status = MatchUndetermined

		_, err := NewGraph(plan.Bracket, plan.Participants, matches)
		assert.True(t, errors.Is(err, ErrInvariant), "got %v", err)
	})

	t.Run("shared source", func(t *testing.T) {
		matches := append([]Match(nil), plan.Matches...)
		matches[4].Slot1 = matches[3].Slot1

		_, err := NewGraph(plan.Bracket, plan.Participants, matches)
		assert.True(t, errors.Is(err, ErrInvariant), "got %v", err)
	})

	t.Run("two champions", func(t *testing.T) {
		participants := append([]Participant(nil), plan.Participants...)
		first := 1
		participants[0].FinalPosition = &first
		participants[1].FinalPosition = &first

		_, err := NewGraph(plan.Bracket, participants, plan.Matches)
		assert.True(t, errors.Is(err, ErrInvariant), "got %v", err)
	})

	t.Run("scheduled with placeholder", func(t *testing.T) {
		matches := append([]Match(nil), plan.Matches...)
		matches[2].Status = MatchScheduled

		_, err := NewGraph(plan.Bracket, plan.Participants, matches)
		assert.True(t, errors.Is(err, ErrInvariant), "got %v", err)
	})
}

func describe(t *testing.T, g *Graph, s Slot) string {
	t.Helper()
	if s.IsBound() {
		return fmt.Sprintf("seed %d", slotSeed(t, g, s))
	}
	return g.PlaceholderLabel(s)
}
