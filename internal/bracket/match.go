package bracket

import (
	"time"

	"github.com/google/uuid"
)

type MatchStatus string

const (
	MatchUndetermined MatchStatus = "undetermined"
	MatchScheduled    MatchStatus = "scheduled"
	MatchInProgress   MatchStatus = "in_progress"
	MatchCompleted    MatchStatus = "completed"
	MatchCancelled    MatchStatus = "cancelled"
)

// Settled matches never change again.
func (s MatchStatus) Settled() bool {
	return s == MatchCompleted || s == MatchCancelled
}

type BracketSide string

const (
	WinnersSide BracketSide = "winners"
	LosersSide  BracketSide = "losers"
	FinalsSide  BracketSide = "finals"
)

const (
	grandFinalRound   = 1
	bracketResetRound = 2
)

type Score struct {
	Slot1 int
	Slot2 int
}

type Match struct {
	ID        uuid.UUID
	BracketID uuid.UUID

	// Position in the bracket for reconstructing the view
	Side        BracketSide
	Round       int
	MatchNumber int

	Slot1 Slot
	Slot2 Slot

	Status              MatchStatus
	Score               *Score
	WinnerParticipantID *uuid.UUID

	CreatedAt time.Time
}

// IsWinnersBracket reports whether losing this match leaves the participant in play.
// The finals belong to the winners side by convention.
func (m *Match) IsWinnersBracket() bool {
	return m.Side != LosersSide
}

func (m *Match) IsGrandFinal() bool {
	return m.Side == FinalsSide && m.Round == grandFinalRound
}

func (m *Match) IsBracketReset() bool {
	return m.Side == FinalsSide && m.Round == bracketResetRound
}

func (m *Match) Slots() [2]*Slot {
	return [2]*Slot{&m.Slot1, &m.Slot2}
}

// Participants returns both bound participants; ok is false unless both slots are bound.
func (m *Match) Participants() (p1, p2 uuid.UUID, ok bool) {
	p1, ok1 := m.Slot1.Participant()
	p2, ok2 := m.Slot2.Participant()
	return p1, p2, ok1 && ok2
}

// Opponent returns the other bound participant of the match.
func (m *Match) Opponent(participantID uuid.UUID) (uuid.UUID, bool) {
	p1, p2, ok := m.Participants()
	if !ok {
		return uuid.Nil, false
	}
	switch participantID {
	case p1:
		return p2, true
	case p2:
		return p1, true
	}
	return uuid.Nil, false
}

// Loser is only meaningful for completed matches.
func (m *Match) Loser() (uuid.UUID, bool) {
	if m.Status != MatchCompleted || m.WinnerParticipantID == nil {
		return uuid.Nil, false
	}
	return m.Opponent(*m.WinnerParticipantID)
}

func (m *Match) IsWinner(participantID uuid.UUID) bool {
	return m.Status == MatchCompleted && m.WinnerParticipantID != nil && *m.WinnerParticipantID == participantID
}
