package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/AdamBeresnev/op-tournament/internal/bracket"
	"github.com/AdamBeresnev/op-tournament/internal/events"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// EventStore reads the events and teams owned by the event administration side.
// Writes exist for fixtures and the seed command only.
type EventStore struct {
	db *sqlx.DB
}

func NewEventStore(db *sqlx.DB) *EventStore {
	return &EventStore{db: db}
}

const (
	createEventQuery = `INSERT INTO events (id, name, event_type, created_at) VALUES (:id, :name, :event_type, :created_at)`
	createTeamQuery  = `INSERT INTO teams (id, name, rating, created_at) VALUES (:id, :name, :rating, :created_at)`
)

func (s *EventStore) CreateEvent(ctx context.Context, event *events.Event) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.NamedExecContext(ctx, createEventQuery, event)
	return err
}

func (s *EventStore) CreateTeams(ctx context.Context, teams []events.Team) error {
	if len(teams) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range teams {
		if teams[i].CreatedAt.IsZero() {
			teams[i].CreatedAt = now
		}
	}
	_, err := s.db.NamedExecContext(ctx, createTeamQuery, teams)
	return err
}

func (s *EventStore) GetEvent(ctx context.Context, id uuid.UUID) (*events.Event, error) {
	return getEvent(ctx, s.db, "SELECT * FROM events WHERE id = ?", id)
}

// LockEvent serializes bracket generation for one event.
func (s *EventStore) LockEvent(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*events.Event, error) {
	return getEvent(ctx, tx, "SELECT * FROM events WHERE id = ?"+forUpdate(s.db), id)
}

func getEvent(ctx context.Context, q queryer, query string, id uuid.UUID) (*events.Event, error) {
	var event events.Event
	err := sqlx.GetContext(ctx, q, &event, q.Rebind(query), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, bracket.NotFoundf("event %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (s *EventStore) GetTeams(ctx context.Context, ids []uuid.UUID) ([]events.Team, error) {
	return getTeams(ctx, s.db, ids)
}

func (s *EventStore) GetTeamsTx(ctx context.Context, tx *sqlx.Tx, ids []uuid.UUID) ([]events.Team, error) {
	return getTeams(ctx, tx, ids)
}

// getTeams returns the teams that exist among ids, ordered by name.
func getTeams(ctx context.Context, q queryer, ids []uuid.UUID) ([]events.Team, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In("SELECT * FROM teams WHERE id IN (?) ORDER BY name ASC", ids)
	if err != nil {
		return nil, err
	}
	var teams []events.Team
	err = sqlx.SelectContext(ctx, q, &teams, q.Rebind(query), args...)
	return teams, err
}
