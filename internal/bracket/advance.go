package bracket

import (
	"github.com/AdamBeresnev/op-tournament/internal/utils"
	"github.com/google/uuid"
)

// Result is a score report for one match. Only Completed results move the bracket.
type Result struct {
	Score               Score
	WinnerParticipantID *uuid.UUID
	Completed           bool
}

type Outcome struct {
	Match *Match
	// Advanced is false for plain score updates.
	Advanced   bool
	Promoted   []*Match
	Eliminated []*Participant
	Completion CompletionReport
}

// Changed reports whether applying the result touched any row.
func (g *Graph) Changed() bool {
	return g.bracketDirty || len(g.dirtyMatches) > 0 || len(g.dirtyParticipants) > 0
}

// RecordResult applies a score report. Completing a match binds every slot that was
// waiting on it, promotes matches that now have both teams and checks whether the
// bracket is finished.
func (g *Graph) RecordResult(matchID uuid.UUID, res Result) (*Outcome, error) {
	if g.Bracket.Status == StatusCompleted {
		return nil, Validationf("bracket is already completed")
	}
	m, ok := g.byMatch[matchID]
	if !ok {
		return nil, NotFoundf("match %s", matchID)
	}
	if res.Score.Slot1 < 0 || res.Score.Slot2 < 0 {
		return nil, Validationf("scores must not be negative")
	}

	switch m.Status {
	case MatchCompleted:
		return nil, Validationf("match %d is already completed", m.MatchNumber)
	case MatchCancelled:
		return nil, Validationf("match %d was cancelled", m.MatchNumber)
	case MatchUndetermined:
		return nil, Validationf("match %d is still waiting on earlier results", m.MatchNumber)
	}

	p1, p2, ok := m.Participants()
	if !ok {
		return nil, Invariantf("match %d is %s without two participants", m.MatchNumber, m.Status)
	}
	if w := res.WinnerParticipantID; w != nil && *w != p1 && *w != p2 {
		return nil, Validationf("winner %s is not playing in match %d", *w, m.MatchNumber)
	}

	if !res.Completed {
		return g.recordScore(m, res.Score), nil
	}
	if res.WinnerParticipantID == nil {
		return nil, Validationf("a winner is required to complete match %d", m.MatchNumber)
	}

	m.Score = utils.Ptr(res.Score)
	m.WinnerParticipantID = utils.Ptr(*res.WinnerParticipantID)
	m.Status = MatchCompleted
	g.touchMatch(m)
	g.markStarted()

	out := &Outcome{Match: m, Advanced: true}
	if err := g.advance(m, out); err != nil {
		return nil, err
	}

	report, err := g.DetectCompletion()
	if err != nil {
		return nil, err
	}
	out.Completion = report
	return out, nil
}

// recordScore stores an interim score. Repeating the same score writes nothing.
func (g *Graph) recordScore(m *Match, score Score) *Outcome {
	out := &Outcome{Match: m}
	if m.Status == MatchInProgress && utils.Equal(m.Score, &score) {
		return out
	}
	m.Score = utils.Ptr(score)
	m.Status = MatchInProgress
	g.touchMatch(m)
	g.markStarted()
	return out
}

func (g *Graph) advance(m *Match, out *Outcome) error {
	winner := *m.WinnerParticipantID
	loser, ok := m.Opponent(winner)
	if !ok {
		return Invariantf("match %d has no loser", m.MatchNumber)
	}

	// Losing on the winners side only drops a team into the losers bracket.
	if !m.IsWinnersBracket() || g.Bracket.Format == SingleElimination {
		p := g.byParticipant[loser]
		if p.IsEliminated {
			return Invariantf("participant %s eliminated twice", p.ID)
		}
		p.IsEliminated = true
		p.EliminationRound = utils.Ptr(m.Round)
		g.touchParticipant(p)
		out.Eliminated = append(out.Eliminated, p)
	}

	// The reset is only played if the losers-bracket finalist took the grand final.
	skipReset := false
	if m.IsGrandFinal() {
		if wbFinalist, _ := m.Slot1.Participant(); wbFinalist == winner {
			skipReset = true
		}
	}

	for _, d := range g.matches {
		if d.MatchNumber <= m.MatchNumber || d.Status.Settled() {
			continue
		}
		if d.IsBracketReset() && skipReset {
			continue
		}

		touched := false
		for _, s := range d.Slots() {
			if !s.FedBy(m.ID) {
				continue
			}
			_, wantsWinner, _ := s.Placeholder()
			target := loser
			if wantsWinner {
				target = winner
			}
			if err := s.bind(target); err != nil {
				return err
			}
			touched = true
		}
		if !touched {
			continue
		}

		g.touchMatch(d)
		if d.Status == MatchUndetermined && d.Slot1.IsBound() && d.Slot2.IsBound() {
			d.Status = MatchScheduled
			out.Promoted = append(out.Promoted, d)
		}
	}
	return nil
}

// CancelMatch takes a match out of play without advancing anyone. Whatever waits on
// it stays unresolved and the bracket is flagged as stalled.
func (g *Graph) CancelMatch(matchID uuid.UUID) (CompletionReport, error) {
	if g.Bracket.Status == StatusCompleted {
		return CompletionReport{}, Validationf("bracket is already completed")
	}
	m, ok := g.byMatch[matchID]
	if !ok {
		return CompletionReport{}, NotFoundf("match %s", matchID)
	}
	if m.Status.Settled() {
		return CompletionReport{}, Validationf("match %d is already %s", m.MatchNumber, m.Status)
	}

	m.Status = MatchCancelled
	g.touchMatch(m)
	return g.DetectCompletion()
}
