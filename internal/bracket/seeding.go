package bracket

import (
	"sort"

	"github.com/google/uuid"
)

const MinParticipants = 2

type SeededTeam struct {
	TeamID uuid.UUID
	Seed   int
}

// RankedTeam is a team as reported by the ranking subsystem.
type RankedTeam struct {
	TeamID uuid.UUID
	Name   string
	Rating float64
}

// AssignSeeds turns a ranking into a contiguous 1..N seed order, highest rating first.
// Equal ratings fall back to name and then id so the result does not depend on input order.
func AssignSeeds(teams []RankedTeam) []SeededTeam {
	ranked := make([]RankedTeam, len(teams))
	copy(ranked, teams)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Rating != ranked[j].Rating {
			return ranked[i].Rating > ranked[j].Rating
		}
		if ranked[i].Name != ranked[j].Name {
			return ranked[i].Name < ranked[j].Name
		}
		return ranked[i].TeamID.String() < ranked[j].TeamID.String()
	})

	seeds := make([]SeededTeam, len(ranked))
	for i, t := range ranked {
		seeds[i] = SeededTeam{TeamID: t.TeamID, Seed: i + 1}
	}
	return seeds
}

// ValidateSeeds checks that seeds are a permutation of 1..N over distinct teams.
func ValidateSeeds(seeds []SeededTeam) error {
	if len(seeds) < MinParticipants {
		return Validationf("at least %d teams are required, got %d", MinParticipants, len(seeds))
	}

	seenSeeds := make(map[int]bool, len(seeds))
	seenTeams := make(map[uuid.UUID]bool, len(seeds))
	for _, s := range seeds {
		if s.TeamID == uuid.Nil {
			return Validationf("seed %d has no team", s.Seed)
		}
		if s.Seed < 1 || s.Seed > len(seeds) {
			return Validationf("seed %d is outside 1..%d", s.Seed, len(seeds))
		}
		if seenSeeds[s.Seed] {
			return Validationf("seed %d is assigned more than once", s.Seed)
		}
		if seenTeams[s.TeamID] {
			return Validationf("team %s is seeded more than once", s.TeamID)
		}
		seenSeeds[s.Seed] = true
		seenTeams[s.TeamID] = true
	}
	return nil
}

// SortBySeed returns a copy ordered by seed.
func SortBySeed(seeds []SeededTeam) []SeededTeam {
	sorted := make([]SeededTeam, len(seeds))
	copy(sorted, seeds)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Seed < sorted[j].Seed })
	return sorted
}
