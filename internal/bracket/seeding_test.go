package bracket

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssignSeeds(t *testing.T) {
	alpha := RankedTeam{TeamID: uuid.New(), Name: "Alpha", Rating: 1500}
	bravo := RankedTeam{TeamID: uuid.New(), Name: "Bravo", Rating: 1620}
	charlie := RankedTeam{TeamID: uuid.New(), Name: "Charlie", Rating: 1500}
	delta := RankedTeam{TeamID: uuid.New(), Name: "Delta", Rating: 1410}

	seeds := AssignSeeds([]RankedTeam{delta, charlie, alpha, bravo})

	require.Len(t, seeds, 4)
	assert.Equal(t, SeededTeam{TeamID: bravo.TeamID, Seed: 1}, seeds[0])
	assert.Equal(t, SeededTeam{TeamID: alpha.TeamID, Seed: 2}, seeds[1], "equal ratings fall back to name")
	assert.Equal(t, SeededTeam{TeamID: charlie.TeamID, Seed: 3}, seeds[2])
	assert.Equal(t, SeededTeam{TeamID: delta.TeamID, Seed: 4}, seeds[3])
	assert.NoError(t, ValidateSeeds(seeds))
}

func TestValidateSeeds(t *testing.T) {
	teamA, teamB, teamC := uuid.New(), uuid.New(), uuid.New()

	testCases := []struct {
		name  string
		seeds []SeededTeam
		valid bool
	}{
		{
			name:  "contiguous",
			seeds: []SeededTeam{{teamB, 2}, {teamA, 1}, {teamC, 3}},
			valid: true,
		},
		{
			name:  "single team",
			seeds: []SeededTeam{{teamA, 1}},
		},
		{
			name:  "gap",
			seeds: []SeededTeam{{teamA, 1}, {teamB, 3}},
		},
		{
			name:  "duplicate seed",
			seeds: []SeededTeam{{teamA, 1}, {teamB, 1}},
		},
		{
			name:  "duplicate team",
			seeds: []SeededTeam{{teamA, 1}, {teamA, 2}},
		},
		{
			name:  "missing team",
			seeds: []SeededTeam{{teamA, 1}, {uuid.Nil, 2}},
		},
		{
			name:  "zero seed",
			seeds: []SeededTeam{{teamA, 0}, {teamB, 1}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateSeeds(tc.seeds)
			if tc.valid {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, ErrValidation), "expected validation error, got %v", err)
		})
	}
}
