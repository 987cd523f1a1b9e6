package bracket

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusGenerated  Status = "generated"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

type Format string

const (
	SingleElimination Format = "single"
	DoubleElimination Format = "double"
)

func (f Format) Valid() bool {
	return f == SingleElimination || f == DoubleElimination
}

type Bracket struct {
	ID                    uuid.UUID  `db:"id"`
	EventID               uuid.UUID  `db:"event_id"`
	Format                Format     `db:"format"`
	Status                Status     `db:"status"`
	ChampionParticipantID *uuid.UUID `db:"champion_participant_id"`
	// Stalled is set when a cancelled match blocks the rest of the bracket.
	Stalled   bool      `db:"stalled"`
	CreatedAt time.Time `db:"created_at"`
}

type Participant struct {
	ID               uuid.UUID `db:"id"`
	BracketID        uuid.UUID `db:"bracket_id"`
	TeamID           uuid.UUID `db:"team_id"`
	Seed             int       `db:"seed"`
	IsEliminated     bool      `db:"is_eliminated"`
	EliminationRound *int      `db:"elimination_round"`
	FinalPosition    *int      `db:"final_position"`
}
