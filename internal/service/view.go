package service

import (
	"github.com/AdamBeresnev/op-tournament/internal/bracket"
	"github.com/AdamBeresnev/op-tournament/internal/events"
	"github.com/google/uuid"
)

type BracketView struct {
	ID           uuid.UUID         `json:"id"`
	EventID      uuid.UUID         `json:"event_id"`
	EventName    string            `json:"event_name"`
	Format       bracket.Format    `json:"format"`
	Status       bracket.Status    `json:"status"`
	Stalled      bool              `json:"stalled"`
	Champion     *ParticipantView  `json:"champion,omitempty"`
	Participants []ParticipantView `json:"participants"`
	Matches      []MatchView       `json:"matches"`
}

type ParticipantView struct {
	ID               uuid.UUID `json:"id"`
	TeamID           uuid.UUID `json:"team_id"`
	TeamName         string    `json:"team_name"`
	Seed             int       `json:"seed"`
	IsEliminated     bool      `json:"is_eliminated"`
	EliminationRound *int      `json:"elimination_round,omitempty"`
	FinalPosition    *int      `json:"final_position,omitempty"`
}

// SlotView is either a bound participant or a label such as "Winner of Game 3".
type SlotView struct {
	ParticipantID *uuid.UUID `json:"participant_id,omitempty"`
	TeamID        *uuid.UUID `json:"team_id,omitempty"`
	TeamName      string     `json:"team_name,omitempty"`
	SourceMatchID *uuid.UUID `json:"source_match_id,omitempty"`
	WantsWinner   *bool      `json:"wants_winner,omitempty"`
	Label         string     `json:"label"`
}

type ScoreView struct {
	Slot1 int `json:"slot1"`
	Slot2 int `json:"slot2"`
}

type MatchView struct {
	ID                  uuid.UUID           `json:"id"`
	Side                bracket.BracketSide `json:"bracket_side"`
	Round               int                 `json:"round"`
	MatchNumber         int                 `json:"match_number"`
	Slot1               SlotView            `json:"slot1"`
	Slot2               SlotView            `json:"slot2"`
	Status              bracket.MatchStatus `json:"status"`
	Score               *ScoreView          `json:"score,omitempty"`
	WinnerParticipantID *uuid.UUID          `json:"winner_participant_id,omitempty"`
}

func newBracketView(event *events.Event, g *bracket.Graph, teams []events.Team) *BracketView {
	names := make(map[uuid.UUID]string, len(teams))
	for _, t := range teams {
		names[t.ID] = t.Name
	}

	view := &BracketView{
		ID:        g.Bracket.ID,
		EventID:   g.Bracket.EventID,
		EventName: event.Name,
		Format:    g.Bracket.Format,
		Status:    g.Bracket.Status,
		Stalled:   g.Bracket.Stalled,
	}

	for _, p := range g.Participants() {
		pv := ParticipantView{
			ID:               p.ID,
			TeamID:           p.TeamID,
			TeamName:         names[p.TeamID],
			Seed:             p.Seed,
			IsEliminated:     p.IsEliminated,
			EliminationRound: p.EliminationRound,
			FinalPosition:    p.FinalPosition,
		}
		view.Participants = append(view.Participants, pv)
		if id := g.Bracket.ChampionParticipantID; id != nil && *id == p.ID {
			champion := pv
			view.Champion = &champion
		}
	}

	for _, m := range g.Matches() {
		mv := MatchView{
			ID:                  m.ID,
			Side:                m.Side,
			Round:               m.Round,
			MatchNumber:         m.MatchNumber,
			Slot1:               slotView(g, m.Slot1, names),
			Slot2:               slotView(g, m.Slot2, names),
			Status:              m.Status,
			WinnerParticipantID: m.WinnerParticipantID,
		}
		if m.Score != nil {
			mv.Score = &ScoreView{Slot1: m.Score.Slot1, Slot2: m.Score.Slot2}
		}
		view.Matches = append(view.Matches, mv)
	}
	return view
}

func slotView(g *bracket.Graph, s bracket.Slot, names map[uuid.UUID]string) SlotView {
	if id, ok := s.Participant(); ok {
		sv := SlotView{ParticipantID: &id}
		if p, ok := g.Participant(id); ok {
			teamID := p.TeamID
			sv.TeamID = &teamID
			sv.TeamName = names[teamID]
			sv.Label = sv.TeamName
		}
		return sv
	}

	src, wantsWinner, _ := s.Placeholder()
	return SlotView{
		SourceMatchID: &src,
		WantsWinner:   &wantsWinner,
		Label:         g.PlaceholderLabel(s),
	}
}
