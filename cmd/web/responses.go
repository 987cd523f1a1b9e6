package main

import (
	"github.com/AdamBeresnev/op-tournament/internal/bracket"
	"github.com/AdamBeresnev/op-tournament/internal/service"
	"github.com/google/uuid"
)

type scoreBody struct {
	Slot1 int `json:"slot1"`
	Slot2 int `json:"slot2"`
}

type slotBody struct {
	ParticipantID *uuid.UUID `json:"participant_id,omitempty"`
	SourceMatchID *uuid.UUID `json:"source_match_id,omitempty"`
	WantsWinner   *bool      `json:"wants_winner,omitempty"`
}

type matchBody struct {
	ID                  uuid.UUID           `json:"id"`
	BracketID           uuid.UUID           `json:"bracket_id"`
	Side                bracket.BracketSide `json:"bracket_side"`
	Round               int                 `json:"round"`
	MatchNumber         int                 `json:"match_number"`
	Slot1               slotBody            `json:"slot1"`
	Slot2               slotBody            `json:"slot2"`
	Status              bracket.MatchStatus `json:"status"`
	Score               *scoreBody          `json:"score,omitempty"`
	WinnerParticipantID *uuid.UUID          `json:"winner_participant_id,omitempty"`
}

type matchResultBody struct {
	Match                 matchBody      `json:"match"`
	Promoted              []uuid.UUID    `json:"promoted_match_ids"`
	Eliminated            []uuid.UUID    `json:"eliminated_participant_ids"`
	BracketStatus         bracket.Status `json:"bracket_status"`
	Stalled               bool           `json:"stalled"`
	ChampionParticipantID *uuid.UUID     `json:"champion_participant_id,omitempty"`
}

type seedBody struct {
	TeamID uuid.UUID `json:"team_id"`
	Seed   int       `json:"seed"`
}

func newSlotBody(s bracket.Slot) slotBody {
	if id, ok := s.Participant(); ok {
		return slotBody{ParticipantID: &id}
	}
	if src, wantsWinner, ok := s.Placeholder(); ok {
		return slotBody{SourceMatchID: &src, WantsWinner: &wantsWinner}
	}
	return slotBody{}
}

func newMatchBody(m *bracket.Match) matchBody {
	body := matchBody{
		ID:                  m.ID,
		BracketID:           m.BracketID,
		Side:                m.Side,
		Round:               m.Round,
		MatchNumber:         m.MatchNumber,
		Slot1:               newSlotBody(m.Slot1),
		Slot2:               newSlotBody(m.Slot2),
		Status:              m.Status,
		WinnerParticipantID: m.WinnerParticipantID,
	}
	if m.Score != nil {
		body.Score = &scoreBody{Slot1: m.Score.Slot1, Slot2: m.Score.Slot2}
	}
	return body
}

func newMatchResultBody(r *service.MatchResult) matchResultBody {
	body := matchResultBody{
		Match:                 newMatchBody(&r.Match),
		Promoted:              r.Promoted,
		Eliminated:            r.Eliminated,
		BracketStatus:         r.BracketStatus,
		Stalled:               r.Stalled,
		ChampionParticipantID: r.ChampionParticipantID,
	}
	if body.Promoted == nil {
		body.Promoted = []uuid.UUID{}
	}
	if body.Eliminated == nil {
		body.Eliminated = []uuid.UUID{}
	}
	return body
}

func newSeedBodies(seeds []bracket.SeededTeam) []seedBody {
	out := make([]seedBody, len(seeds))
	for i, s := range seeds {
		out[i] = seedBody{TeamID: s.TeamID, Seed: s.Seed}
	}
	return out
}
