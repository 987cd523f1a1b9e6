package service

import (
	"context"

	"github.com/AdamBeresnev/op-tournament/internal/bracket"
	"github.com/AdamBeresnev/op-tournament/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"
)

type MatchService struct {
	runtime
	brackets *store.BracketStore
}

func NewMatchService(db *sqlx.DB, brackets *store.BracketStore, opts ...Option) *MatchService {
	return &MatchService{runtime: newRuntime(db, opts), brackets: brackets}
}

// MatchUpdate is a score report. Without Completed it only records the running score.
type MatchUpdate struct {
	Score               bracket.Score
	WinnerParticipantID *uuid.UUID
	Completed           bool
}

// MatchResult describes what a score report or cancellation changed.
type MatchResult struct {
	Match                 bracket.Match
	Promoted              []uuid.UUID
	Eliminated            []uuid.UUID
	BracketStatus         bracket.Status
	Stalled               bool
	ChampionParticipantID *uuid.UUID
}

func (s *MatchService) GetMatch(ctx context.Context, matchID uuid.UUID) (*bracket.Match, error) {
	return s.brackets.GetMatch(ctx, matchID)
}

// ParticipantForTeam translates a team into its participant in the match's bracket.
func (s *MatchService) ParticipantForTeam(ctx context.Context, matchID, teamID uuid.UUID) (uuid.UUID, error) {
	m, err := s.brackets.GetMatch(ctx, matchID)
	if err != nil {
		return uuid.Nil, err
	}
	participants, err := s.brackets.GetParticipants(ctx, m.BracketID)
	if err != nil {
		return uuid.Nil, err
	}
	for _, p := range participants {
		if p.TeamID == teamID {
			return p.ID, nil
		}
	}
	return uuid.Nil, bracket.Validationf("team %s is not in this bracket", teamID)
}

// UpdateMatch applies a score report under the bracket lock. Completing a match
// advances the winner and loser, and may finish the bracket.
func (s *MatchService) UpdateMatch(ctx context.Context, matchID uuid.UUID, upd MatchUpdate) (*MatchResult, error) {
	var (
		result     *MatchResult
		wasStalled bool
	)
	attrs := []attribute.KeyValue{
		attribute.String("match_id", matchID.String()),
		attribute.Bool("completed", upd.Completed),
	}
	err := s.observe(ctx, "UpdateMatch", attrs, func(ctx context.Context) error {
		return s.runInTx(ctx, "UpdateMatch", func(ctx context.Context, tx *sqlx.Tx) error {
			g, err := s.lockGraph(ctx, tx, matchID)
			if err != nil {
				return err
			}
			wasStalled = g.Bracket.Stalled

			out, err := g.RecordResult(matchID, bracket.Result{
				Score:               upd.Score,
				WinnerParticipantID: upd.WinnerParticipantID,
				Completed:           upd.Completed,
			})
			if err != nil {
				return err
			}
			if err := persist(ctx, tx, s.brackets, g); err != nil {
				return err
			}

			result = newMatchResult(g, out.Match)
			for _, m := range out.Promoted {
				result.Promoted = append(result.Promoted, m.ID)
			}
			for _, p := range out.Eliminated {
				result.Eliminated = append(result.Eliminated, p.ID)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if upd.Completed {
		s.metrics.RecordMatchCompleted()
	}
	s.reportBracket(ctx, result, wasStalled)
	return result, nil
}

// CancelMatch takes a match out of play. Nothing advances, so the bracket
// stalls until an administrator regenerates it.
func (s *MatchService) CancelMatch(ctx context.Context, matchID uuid.UUID) (*MatchResult, error) {
	var (
		result     *MatchResult
		wasStalled bool
	)
	attrs := []attribute.KeyValue{attribute.String("match_id", matchID.String())}
	err := s.observe(ctx, "CancelMatch", attrs, func(ctx context.Context) error {
		return s.runInTx(ctx, "CancelMatch", func(ctx context.Context, tx *sqlx.Tx) error {
			g, err := s.lockGraph(ctx, tx, matchID)
			if err != nil {
				return err
			}
			wasStalled = g.Bracket.Stalled

			if _, err := g.CancelMatch(matchID); err != nil {
				return err
			}
			if err := persist(ctx, tx, s.brackets, g); err != nil {
				return err
			}

			m, _ := g.Match(matchID)
			result = newMatchResult(g, m)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.reportBracket(ctx, result, wasStalled)
	return result, nil
}

// lockGraph locks the bracket the match belongs to and loads it.
func (s *MatchService) lockGraph(ctx context.Context, tx *sqlx.Tx, matchID uuid.UUID) (*bracket.Graph, error) {
	bracketID, err := s.brackets.MatchBracketID(ctx, tx, matchID)
	if err != nil {
		return nil, err
	}
	b, err := s.brackets.LockBracket(ctx, tx, bracketID)
	if err != nil {
		return nil, err
	}
	return loadGraph(ctx, tx, s.brackets, b)
}

func newMatchResult(g *bracket.Graph, m *bracket.Match) *MatchResult {
	return &MatchResult{
		Match:                 *m,
		BracketStatus:         g.Bracket.Status,
		Stalled:               g.Bracket.Stalled,
		ChampionParticipantID: g.Bracket.ChampionParticipantID,
	}
}

func (s *MatchService) reportBracket(ctx context.Context, result *MatchResult, wasStalled bool) {
	if result.Stalled && !wasStalled {
		s.metrics.RecordBracketStalled()
		s.operator().WarnContext(ctx, "bracket stalled behind a cancelled match, needs manual intervention",
			"bracket_id", result.Match.BracketID,
			"match_id", result.Match.ID,
			"match_number", result.Match.MatchNumber,
		)
	}
	if result.BracketStatus == bracket.StatusCompleted && result.ChampionParticipantID != nil {
		s.metrics.RecordBracketCompleted()
		s.logger.InfoContext(ctx, "bracket completed",
			"bracket_id", result.Match.BracketID,
			"champion_participant_id", *result.ChampionParticipantID,
		)
	}
}
