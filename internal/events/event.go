package events

import (
	"time"

	"github.com/google/uuid"
)

// TournamentType is the only event type that carries a bracket.
const TournamentType = "tournament"

type Event struct {
	ID        uuid.UUID `db:"id"`
	Name      string    `db:"name"`
	EventType string    `db:"event_type"`
	CreatedAt time.Time `db:"created_at"`
}

func (e *Event) IsTournament() bool {
	return e.EventType == TournamentType
}

type Team struct {
	ID        uuid.UUID `db:"id"`
	Name      string    `db:"name"`
	Rating    float64   `db:"rating"`
	CreatedAt time.Time `db:"created_at"`
}
