package service

import (
	"context"
	"testing"

	"github.com/AdamBeresnev/op-tournament/internal/bracket"
	"github.com/AdamBeresnev/op-tournament/internal/events"
	"github.com/AdamBeresnev/op-tournament/internal/store"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates an in-memory SQLite database and applies migrations
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	database, err := sqlx.Connect("sqlite3", "file::memory:")
	require.NoError(t, err, "Failed to connect to in-memory DB")

	// Every new connection would open a separate empty database.
	database.SetMaxOpenConns(1)

	_, err = database.Exec("PRAGMA foreign_keys = ON;")
	require.NoError(t, err)

	driver, err := sqlite3.WithInstance(database.DB, &sqlite3.Config{})
	require.NoError(t, err, "Failed to create migrate driver instance")

	m, err := migrate.NewWithDatabaseInstance(
		"file://../../migrations/sqlite3",
		"sqlite3",
		driver,
	)
	require.NoError(t, err, "Failed to create migrate instance")

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		require.NoError(t, err, "Failed to apply migrations")
	}

	return database
}

type fixture struct {
	db       *sqlx.DB
	brackets *store.BracketStore
	events   *store.EventStore
	bracket  *BracketService
	match    *MatchService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := setupTestDB(t)
	t.Cleanup(func() { db.Close() })

	brackets := store.NewBracketStore(db)
	eventStore := store.NewEventStore(db)
	return &fixture{
		db:       db,
		brackets: brackets,
		events:   eventStore,
		bracket:  NewBracketService(db, brackets, eventStore),
		match:    NewMatchService(db, brackets),
	}
}

func (f *fixture) event(t *testing.T, eventType string) *events.Event {
	t.Helper()

	event := &events.Event{ID: uuid.New(), Name: gofakeit.Company() + " Open", EventType: eventType}
	require.NoError(t, f.events.CreateEvent(context.Background(), event))
	return event
}

// teams creates n teams with strictly decreasing ratings, so teams[i] is seed i+1.
func (f *fixture) teams(t *testing.T, n int) []events.Team {
	t.Helper()

	teams := make([]events.Team, n)
	for i := range teams {
		teams[i] = events.Team{
			ID:     uuid.New(),
			Name:   gofakeit.Animal() + " " + gofakeit.Color(),
			Rating: float64(2000 - 10*i),
		}
	}
	require.NoError(t, f.events.CreateTeams(context.Background(), teams))
	return teams
}

func seedsOf(teams []events.Team) []bracket.SeededTeam {
	seeds := make([]bracket.SeededTeam, len(teams))
	for i, team := range teams {
		seeds[i] = bracket.SeededTeam{TeamID: team.ID, Seed: i + 1}
	}
	return seeds
}

func (f *fixture) generate(t *testing.T, format bracket.Format, n int) (*bracket.Bracket, []events.Team) {
	t.Helper()

	event := f.event(t, events.TournamentType)
	teams := f.teams(t, n)
	b, err := f.bracket.Generate(context.Background(), event.ID, GenerateInput{Format: format, Seeds: seedsOf(teams)})
	require.NoError(t, err)
	return b, teams
}

func (f *fixture) matchNumber(t *testing.T, bracketID uuid.UUID, number int) bracket.Match {
	t.Helper()

	matches, err := f.brackets.GetMatches(context.Background(), bracketID)
	require.NoError(t, err)
	for _, m := range matches {
		if m.MatchNumber == number {
			return m
		}
	}
	t.Fatalf("match %d not found", number)
	return bracket.Match{}
}

func (f *fixture) participantBySeed(t *testing.T, bracketID uuid.UUID, seed int) bracket.Participant {
	t.Helper()

	participants, err := f.brackets.GetParticipants(context.Background(), bracketID)
	require.NoError(t, err)
	for _, p := range participants {
		if p.Seed == seed {
			return p
		}
	}
	t.Fatalf("seed %d not found", seed)
	return bracket.Participant{}
}

func (f *fixture) win(t *testing.T, matchID, winner uuid.UUID) *MatchResult {
	t.Helper()

	res, err := f.match.UpdateMatch(context.Background(), matchID, MatchUpdate{
		Score:               bracket.Score{Slot1: 2, Slot2: 1},
		WinnerParticipantID: &winner,
		Completed:           true,
	})
	require.NoError(t, err)
	return res
}
