package store

import (
	"context"
	"testing"

	"github.com/AdamBeresnev/op-tournament/internal/events"
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

// seedEvent creates a tournament event with n rated teams.
func seedEvent(t *testing.T, db *sqlx.DB, n int) (*events.Event, []events.Team) {
	t.Helper()

	store := NewEventStore(db)
	event := &events.Event{ID: uuid.New(), Name: gofakeit.Company() + " Cup", EventType: events.TournamentType}
	require.NoError(t, store.CreateEvent(context.Background(), event))

	teams := make([]events.Team, n)
	for i := range teams {
		teams[i] = events.Team{
			ID:     uuid.New(),
			Name:   gofakeit.Animal() + " " + gofakeit.Color(),
			Rating: gofakeit.Float64Range(1000, 2000),
		}
	}
	require.NoError(t, store.CreateTeams(context.Background(), teams))
	return event, teams
}
