package service

import (
	"context"
	"errors"
	"testing"

	"github.com/AdamBeresnev/op-tournament/internal/bracket"
	"github.com/AdamBeresnev/op-tournament/internal/events"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestGenerate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, teams := f.generate(t, bracket.DoubleElimination, 6)
	assert.Equal(t, bracket.StatusGenerated, b.Status)

	participants, err := f.brackets.GetParticipants(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, participants, 6)
	for i, p := range participants {
		assert.Equal(t, i+1, p.Seed)
		assert.Equal(t, teams[i].ID, p.TeamID)
	}

	matches, err := f.brackets.GetMatches(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, matches, bracket.ExpectedMatchCount(bracket.DoubleElimination, 6))
}

func TestGenerateSeedsByRating(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	event := f.event(t, events.TournamentType)
	teams := f.teams(t, 4)

	// Order of the request does not matter, the ratings do.
	ids := []uuid.UUID{teams[3].ID, teams[1].ID, teams[0].ID, teams[2].ID}
	seeds, err := f.bracket.DefaultSeeds(ctx, ids)
	require.NoError(t, err)
	assert.Equal(t, seedsOf(teams), seeds)

	b, err := f.bracket.Generate(ctx, event.ID, GenerateInput{TeamIDs: ids})
	require.NoError(t, err)
	assert.Equal(t, bracket.DoubleElimination, b.Format, "double elimination is the default")

	top := f.participantBySeed(t, b.ID, 1)
	assert.Equal(t, teams[0].ID, top.TeamID)
}

func TestGenerateRequiresReplace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	event := f.event(t, events.TournamentType)
	teams := f.teams(t, 8)

	first, err := f.bracket.Generate(ctx, event.ID, GenerateInput{Seeds: seedsOf(teams)})
	require.NoError(t, err)

	_, err = f.bracket.Generate(ctx, event.ID, GenerateInput{Seeds: seedsOf(teams[:4])})
	require.Error(t, err)
	assert.True(t, errors.Is(err, bracket.ErrValidation))

	second, err := f.bracket.Generate(ctx, event.ID, GenerateInput{Seeds: seedsOf(teams[:4]), Replace: true})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	var participants, matches int
	require.NoError(t, f.db.Get(&participants, "SELECT COUNT(*) FROM participants"))
	require.NoError(t, f.db.Get(&matches, "SELECT COUNT(*) FROM matches"))
	assert.Equal(t, 4, participants)
	assert.Equal(t, bracket.ExpectedMatchCount(bracket.DoubleElimination, 4), matches)

	view, err := f.bracket.GetBracket(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, view.ID)
}

func TestGenerateRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tournament := f.event(t, events.TournamentType)
	league := f.event(t, "league")
	teams := f.teams(t, 4)

	testCases := []struct {
		name    string
		eventID uuid.UUID
		input   GenerateInput
		kind    error
	}{
		{
			name:    "unknown event",
			eventID: uuid.New(),
			input:   GenerateInput{Seeds: seedsOf(teams)},
			kind:    bracket.ErrNotFound,
		},
		{
			name:    "not a tournament",
			eventID: league.ID,
			input:   GenerateInput{Seeds: seedsOf(teams)},
			kind:    bracket.ErrValidation,
		},
		{
			name:    "unknown format",
			eventID: tournament.ID,
			input:   GenerateInput{Format: "swiss", Seeds: seedsOf(teams)},
			kind:    bracket.ErrValidation,
		},
		{
			name:    "no teams",
			eventID: tournament.ID,
			kind:    bracket.ErrValidation,
		},
		{
			name:    "single team",
			eventID: tournament.ID,
			input:   GenerateInput{TeamIDs: []uuid.UUID{teams[0].ID}},
			kind:    bracket.ErrValidation,
		},
		{
			name:    "unknown team",
			eventID: tournament.ID,
			input:   GenerateInput{Seeds: []bracket.SeededTeam{{TeamID: teams[0].ID, Seed: 1}, {TeamID: uuid.New(), Seed: 2}}},
			kind:    bracket.ErrValidation,
		},
		{
			name:    "seed gap",
			eventID: tournament.ID,
			input:   GenerateInput{Seeds: []bracket.SeededTeam{{TeamID: teams[0].ID, Seed: 1}, {TeamID: teams[1].ID, Seed: 3}}},
			kind:    bracket.ErrValidation,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.bracket.Generate(ctx, tc.eventID, tc.input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.kind), "got %v", err)
		})
	}

	var count int
	require.NoError(t, f.db.Get(&count, "SELECT COUNT(*) FROM brackets"))
	assert.Zero(t, count)
}

func TestGetBracketView(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	event := f.event(t, events.TournamentType)
	teams := f.teams(t, 4)
	_, err := f.bracket.Generate(ctx, event.ID, GenerateInput{Seeds: seedsOf(teams)})
	require.NoError(t, err)

	view, err := f.bracket.GetBracket(ctx, event.ID)
	require.NoError(t, err)

	assert.Equal(t, event.Name, view.EventName)
	require.Len(t, view.Participants, 4)
	assert.Equal(t, teams[0].Name, view.Participants[0].TeamName)
	require.Len(t, view.Matches, 7)

	first := view.Matches[0]
	assert.Equal(t, teams[0].Name, first.Slot1.Label)
	assert.Equal(t, teams[3].Name, first.Slot2.Label)
	require.NotNil(t, first.Slot1.TeamID)
	assert.Equal(t, teams[0].ID, *first.Slot1.TeamID)

	lbFirst := view.Matches[3]
	assert.Equal(t, bracket.LosersSide, lbFirst.Side)
	assert.Equal(t, "Loser of Game 1", lbFirst.Slot1.Label)
	assert.Equal(t, "Loser of Game 2", lbFirst.Slot2.Label)
	require.NotNil(t, lbFirst.Slot1.WantsWinner)
	assert.False(t, *lbFirst.Slot1.WantsWinner)

	grandFinal := view.Matches[5]
	assert.Equal(t, "Winner of Game 3", grandFinal.Slot1.Label)
	assert.Equal(t, "Winner of Game 5", grandFinal.Slot2.Label)
	assert.Nil(t, view.Champion)

	_, err = f.bracket.GetBracket(ctx, uuid.New())
	assert.True(t, errors.Is(err, bracket.ErrNotFound))
}

func TestDeleteBracket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, _ := f.generate(t, bracket.SingleElimination, 5)
	require.NoError(t, f.bracket.DeleteBracket(ctx, b.EventID))

	_, err := f.bracket.GetBracket(ctx, b.EventID)
	assert.True(t, errors.Is(err, bracket.ErrNotFound))

	err = f.bracket.DeleteBracket(ctx, b.EventID)
	assert.True(t, errors.Is(err, bracket.ErrNotFound))
}

// Readers racing regenerations and results always get one consistent bracket.
func TestGetBracketDuringWrites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	event := f.event(t, events.TournamentType)
	teams := f.teams(t, 4)
	_, err := f.bracket.Generate(ctx, event.ID, GenerateInput{Seeds: seedsOf(teams)})
	require.NoError(t, err)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for range 5 {
			b, err := f.bracket.Generate(gctx, event.ID, GenerateInput{Seeds: seedsOf(teams), Replace: true})
			if err != nil {
				return err
			}
			matches, err := f.brackets.GetMatches(gctx, b.ID)
			if err != nil {
				return err
			}
			first := matches[0]
			winner, _ := first.Slot1.Participant()
			if _, err := f.match.UpdateMatch(gctx, first.ID, MatchUpdate{
				Score:               bracket.Score{Slot1: 2},
				WinnerParticipantID: &winner,
				Completed:           true,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	g.Go(func() error {
		for range 20 {
			view, err := f.bracket.GetBracket(gctx, event.ID)
			if err != nil {
				return err
			}
			assert.Len(t, view.Participants, 4)
			assert.Len(t, view.Matches, 7)

			completed := 0
			for _, m := range view.Matches {
				if m.Status == bracket.MatchCompleted {
					completed++
					assert.NotNil(t, m.WinnerParticipantID)
				}
			}
			if completed > 0 {
				assert.Equal(t, bracket.StatusInProgress, view.Status)
			} else {
				assert.Equal(t, bracket.StatusGenerated, view.Status)
			}
		}
		return nil
	})
	require.NoError(t, g.Wait())
}
