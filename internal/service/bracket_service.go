package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/AdamBeresnev/op-tournament/internal/bracket"
	"github.com/AdamBeresnev/op-tournament/internal/events"
	"github.com/AdamBeresnev/op-tournament/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

type BracketService struct {
	runtime
	brackets *store.BracketStore
	events   *store.EventStore
}

func NewBracketService(db *sqlx.DB, brackets *store.BracketStore, events *store.EventStore, opts ...Option) *BracketService {
	return &BracketService{runtime: newRuntime(db, opts), brackets: brackets, events: events}
}

type GenerateInput struct {
	Format bracket.Format
	// Seeds fixes the seeding. When empty, TeamIDs are seeded by rating.
	Seeds   []bracket.SeededTeam
	TeamIDs []uuid.UUID
	// Replace must be set to throw away an existing bracket for the event.
	Replace bool
}

// Generate builds the bracket for an event and stores it in one transaction. An
// existing bracket is deleted in the same transaction when Replace is set.
func (s *BracketService) Generate(ctx context.Context, eventID uuid.UUID, in GenerateInput) (*bracket.Bracket, error) {
	format := in.Format
	if format == "" {
		format = bracket.DoubleElimination
	}

	var generated *bracket.Bracket
	attrs := []attribute.KeyValue{
		attribute.String("event_id", eventID.String()),
		attribute.String("format", string(format)),
	}
	err := s.observe(ctx, "Generate", attrs, func(ctx context.Context) error {
		if !format.Valid() {
			return bracket.Validationf("unknown bracket format %q", format)
		}
		if len(in.Seeds) == 0 && len(in.TeamIDs) == 0 {
			return bracket.Validationf("no teams to seed")
		}

		return s.runInTx(ctx, "Generate", func(ctx context.Context, tx *sqlx.Tx) error {
			event, err := s.events.LockEvent(ctx, tx, eventID)
			if err != nil {
				return err
			}
			if !event.IsTournament() {
				return bracket.Validationf("event %s is a %q event, not a tournament", eventID, event.EventType)
			}

			seeds, err := s.resolveSeeds(ctx, tx, in)
			if err != nil {
				return err
			}

			plan, err := bracket.Build(eventID, format, seeds)
			if err != nil {
				return err
			}

			existing, err := s.brackets.GetBracketByEventTx(ctx, tx, eventID)
			switch {
			case err == nil:
				if !in.Replace {
					return bracket.Validationf("event %s already has a bracket; regenerating requires replace", eventID)
				}
				if err := s.brackets.DeleteBracket(ctx, tx, existing.ID); err != nil {
					return err
				}
				s.logger.InfoContext(ctx, "replacing bracket", "event_id", eventID, "old_bracket_id", existing.ID, "old_status", existing.Status)
			case errors.Is(err, bracket.ErrNotFound):
			default:
				return err
			}

			if err := s.brackets.CreateBracket(ctx, tx, &plan.Bracket); err != nil {
				return fmt.Errorf("failed to create bracket: %w", err)
			}
			if err := s.brackets.CreateParticipants(ctx, tx, plan.Participants); err != nil {
				return fmt.Errorf("failed to create participants: %w", err)
			}
			if err := s.brackets.CreateMatches(ctx, tx, plan.Matches); err != nil {
				return fmt.Errorf("failed to create matches: %w", err)
			}

			generated = &plan.Bracket
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordGenerated(string(format))
	s.logger.InfoContext(ctx, "bracket generated", "event_id", eventID, "bracket_id", generated.ID, "format", format)
	return generated, nil
}

func (s *BracketService) resolveSeeds(ctx context.Context, tx *sqlx.Tx, in GenerateInput) ([]bracket.SeededTeam, error) {
	if len(in.Seeds) == 0 {
		if err := uniqueTeams(in.TeamIDs); err != nil {
			return nil, err
		}
		teams, err := s.events.GetTeamsTx(ctx, tx, in.TeamIDs)
		if err != nil {
			return nil, err
		}
		return rankTeams(in.TeamIDs, teams)
	}

	if err := bracket.ValidateSeeds(in.Seeds); err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, len(in.Seeds))
	for i, seed := range in.Seeds {
		ids[i] = seed.TeamID
	}
	teams, err := s.events.GetTeamsTx(ctx, tx, ids)
	if err != nil {
		return nil, err
	}
	if err := requireTeams(ids, teams); err != nil {
		return nil, err
	}
	return in.Seeds, nil
}

// DefaultSeeds proposes a seeding from the current team ratings.
func (s *BracketService) DefaultSeeds(ctx context.Context, teamIDs []uuid.UUID) ([]bracket.SeededTeam, error) {
	var seeds []bracket.SeededTeam
	err := s.observe(ctx, "DefaultSeeds", nil, func(ctx context.Context) error {
		if err := uniqueTeams(teamIDs); err != nil {
			return err
		}
		teams, err := s.events.GetTeams(ctx, teamIDs)
		if err != nil {
			return err
		}
		seeds, err = rankTeams(teamIDs, teams)
		return err
	})
	return seeds, err
}

func uniqueTeams(ids []uuid.UUID) error {
	if len(ids) < bracket.MinParticipants {
		return bracket.Validationf("a bracket needs at least %d teams, got %d", bracket.MinParticipants, len(ids))
	}
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return bracket.Validationf("team %s listed twice", id)
		}
		seen[id] = true
	}
	return nil
}

func requireTeams(ids []uuid.UUID, teams []events.Team) error {
	known := make(map[uuid.UUID]bool, len(teams))
	for _, t := range teams {
		known[t.ID] = true
	}
	for _, id := range ids {
		if !known[id] {
			return bracket.Validationf("unknown team %s", id)
		}
	}
	return nil
}

func rankTeams(ids []uuid.UUID, teams []events.Team) ([]bracket.SeededTeam, error) {
	if err := requireTeams(ids, teams); err != nil {
		return nil, err
	}
	ranked := make([]bracket.RankedTeam, len(teams))
	for i, t := range teams {
		ranked[i] = bracket.RankedTeam{TeamID: t.ID, Name: t.Name, Rating: t.Rating}
	}
	return bracket.AssignSeeds(ranked), nil
}

// DeleteBracket removes the event's bracket with all of its matches.
func (s *BracketService) DeleteBracket(ctx context.Context, eventID uuid.UUID) error {
	attrs := []attribute.KeyValue{attribute.String("event_id", eventID.String())}
	return s.observe(ctx, "DeleteBracket", attrs, func(ctx context.Context) error {
		return s.runInTx(ctx, "DeleteBracket", func(ctx context.Context, tx *sqlx.Tx) error {
			existing, err := s.brackets.GetBracketByEventTx(ctx, tx, eventID)
			if err != nil {
				return err
			}
			return s.brackets.DeleteBracket(ctx, tx, existing.ID)
		})
	})
}

// GetBracket loads the event's bracket for display. Bracket, participants and
// matches come from one read-only snapshot; event and team names are looked up
// afterwards.
func (s *BracketService) GetBracket(ctx context.Context, eventID uuid.UUID) (*BracketView, error) {
	var view *BracketView
	attrs := []attribute.KeyValue{attribute.String("event_id", eventID.String())}
	err := s.observe(ctx, "GetBracket", attrs, func(ctx context.Context) error {
		var graph *bracket.Graph
		err := s.runInReadTx(ctx, "GetBracket", func(ctx context.Context, tx *sqlx.Tx) error {
			b, err := s.brackets.ReadBracketByEvent(ctx, tx, eventID)
			if err != nil {
				return err
			}
			graph, err = loadGraph(ctx, tx, s.brackets, b)
			return err
		})
		if err != nil {
			return err
		}

		teamIDs := make([]uuid.UUID, 0, len(graph.Participants()))
		for _, p := range graph.Participants() {
			teamIDs = append(teamIDs, p.TeamID)
		}

		var (
			event *events.Event
			teams []events.Team
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			event, err = s.events.GetEvent(gctx, eventID)
			return err
		})
		g.Go(func() error {
			var err error
			teams, err = s.events.GetTeams(gctx, teamIDs)
			return err
		})
		if err := g.Wait(); err != nil {
			return err
		}

		view = newBracketView(event, graph, teams)
		return nil
	})
	return view, err
}
