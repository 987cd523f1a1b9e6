package main

import (
	"context"
	"net/http"

	"github.com/AdamBeresnev/op-tournament/internal/bracket"
	"github.com/AdamBeresnev/op-tournament/internal/httputil"
	"github.com/AdamBeresnev/op-tournament/internal/middleware"
	"github.com/AdamBeresnev/op-tournament/internal/service"
	"github.com/AdamBeresnev/op-tournament/internal/store"
	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/markbates/goth/gothic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type server struct {
	db             *sqlx.DB
	sessionManager *scs.SessionManager
	registry       *prometheus.Registry
	allowedOrigins []string

	userStore *store.UserStore
	brackets  *service.BracketService
	matches   *service.MatchService
	users     *service.UserService
}

func newRouter(s *server) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(s.sessionManager.LoadAndSave)
	r.Use(middleware.LoadAuthenticatedUser(s.sessionManager, s.userStore))

	r.Get("/healthz", s.healthz)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Get("/events/{eventID}/bracket", s.getBracket)
	r.Get("/matches/{matchID}", s.getMatch)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)

		r.Get("/me", s.me)
		r.Put("/matches/{matchID}", s.updateMatch)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdmin)

		r.Post("/events/{eventID}/bracket", s.generateBracket)
		r.Delete("/events/{eventID}/bracket", s.deleteBracket)
		r.Post("/events/{eventID}/bracket/seeds", s.proposeSeeds)
		r.Post("/matches/{matchID}/cancel", s.cancelMatch)
	})

	r.Get("/auth/{provider}", func(w http.ResponseWriter, r *http.Request) {
		provider := chi.URLParam(r, "provider")
		r = r.WithContext(context.WithValue(r.Context(), "provider", provider))

		gothic.BeginAuthHandler(w, r)
	})

	r.Get("/auth/{provider}/callback", func(w http.ResponseWriter, r *http.Request) {
		provider := chi.URLParam(r, "provider")
		r = r.WithContext(context.WithValue(r.Context(), "provider", provider))

		gothUser, err := gothic.CompleteUserAuth(w, r)
		if err != nil {
			httputil.BadRequest(w, "Authentication failure", err)
			return
		}

		user, err := s.users.FindOrCreateUserByProvider(r.Context(), gothUser)
		if err != nil {
			httputil.InternalServerError(w, "Failed to find or create user", err)
			return
		}

		if err := s.sessionManager.RenewToken(r.Context()); err != nil {
			httputil.InternalServerError(w, "Failed to renew session", err)
			return
		}
		s.sessionManager.Put(r.Context(), middleware.SessionUserKey, user.ID.String())
		httputil.WriteJSON(w, http.StatusOK, user)
	})

	r.Post("/auth/guest", func(w http.ResponseWriter, r *http.Request) {
		user, err := s.users.EnsureGuestUser(r.Context())
		if err != nil {
			httputil.InternalServerError(w, "Failed to login as guest", err)
			return
		}

		s.sessionManager.Put(r.Context(), middleware.SessionUserKey, user.ID.String())
		httputil.WriteJSON(w, http.StatusOK, user)
	})

	r.Post("/logout", func(w http.ResponseWriter, r *http.Request) {
		if err := s.sessionManager.Destroy(r.Context()); err != nil {
			httputil.InternalServerError(w, "Failed to log out", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	return r
}

func (s *server) healthz(w http.ResponseWriter, r *http.Request) {
	if err := s.db.PingContext(r.Context()); err != nil {
		httputil.InternalServerError(w, "Database unreachable", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) me(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, middleware.GetAuthenticatedUser(r.Context()))
}

func (s *server) getBracket(w http.ResponseWriter, r *http.Request) {
	eventID, ok := uuidParam(w, r, "eventID")
	if !ok {
		return
	}
	view, err := s.brackets.GetBracket(r.Context(), eventID)
	if err != nil {
		httputil.Error(w, "Failed to get bracket", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

type generateRequest struct {
	Format  bracket.Format `json:"format"`
	TeamIDs []uuid.UUID    `json:"team_ids"`
	Seeds   []seedBody     `json:"seeds"`
	Replace bool           `json:"replace"`
}

func (s *server) generateBracket(w http.ResponseWriter, r *http.Request) {
	eventID, ok := uuidParam(w, r, "eventID")
	if !ok {
		return
	}
	var req generateRequest
	if err := httputil.ReadJSON(w, r, &req); err != nil {
		httputil.BadRequest(w, err.Error(), nil)
		return
	}

	in := service.GenerateInput{Format: req.Format, TeamIDs: req.TeamIDs, Replace: req.Replace}
	for _, seed := range req.Seeds {
		in.Seeds = append(in.Seeds, bracket.SeededTeam{TeamID: seed.TeamID, Seed: seed.Seed})
	}

	if _, err := s.brackets.Generate(r.Context(), eventID, in); err != nil {
		httputil.Error(w, "Failed to generate bracket", err)
		return
	}

	view, err := s.brackets.GetBracket(r.Context(), eventID)
	if err != nil {
		httputil.Error(w, "Failed to get bracket", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, view)
}

func (s *server) deleteBracket(w http.ResponseWriter, r *http.Request) {
	eventID, ok := uuidParam(w, r, "eventID")
	if !ok {
		return
	}
	if err := s.brackets.DeleteBracket(r.Context(), eventID); err != nil {
		httputil.Error(w, "Failed to delete bracket", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type proposeSeedsRequest struct {
	TeamIDs []uuid.UUID `json:"team_ids"`
}

func (s *server) proposeSeeds(w http.ResponseWriter, r *http.Request) {
	if _, ok := uuidParam(w, r, "eventID"); !ok {
		return
	}
	var req proposeSeedsRequest
	if err := httputil.ReadJSON(w, r, &req); err != nil {
		httputil.BadRequest(w, err.Error(), nil)
		return
	}
	seeds, err := s.brackets.DefaultSeeds(r.Context(), req.TeamIDs)
	if err != nil {
		httputil.Error(w, "Failed to propose seeds", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, newSeedBodies(seeds))
}

func (s *server) getMatch(w http.ResponseWriter, r *http.Request) {
	matchID, ok := uuidParam(w, r, "matchID")
	if !ok {
		return
	}
	m, err := s.matches.GetMatch(r.Context(), matchID)
	if err != nil {
		httputil.Error(w, "Failed to get match", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, newMatchBody(m))
}

// updateMatchRequest names the winner either as a participant or as a team.
type updateMatchRequest struct {
	Score               *scoreBody `json:"score"`
	WinnerParticipantID *uuid.UUID `json:"winner_participant_id"`
	WinnerTeamID        *uuid.UUID `json:"winner_team_id"`
	Completed           bool       `json:"completed"`
}

func (s *server) updateMatch(w http.ResponseWriter, r *http.Request) {
	matchID, ok := uuidParam(w, r, "matchID")
	if !ok {
		return
	}
	var req updateMatchRequest
	if err := httputil.ReadJSON(w, r, &req); err != nil {
		httputil.BadRequest(w, err.Error(), nil)
		return
	}
	if req.Score == nil {
		httputil.BadRequest(w, "score is required", nil)
		return
	}
	if req.WinnerParticipantID != nil && req.WinnerTeamID != nil {
		httputil.BadRequest(w, "give either winner_participant_id or winner_team_id, not both", nil)
		return
	}

	upd := service.MatchUpdate{
		Score:               bracket.Score{Slot1: req.Score.Slot1, Slot2: req.Score.Slot2},
		WinnerParticipantID: req.WinnerParticipantID,
		Completed:           req.Completed,
	}
	if req.WinnerTeamID != nil {
		participantID, err := s.matches.ParticipantForTeam(r.Context(), matchID, *req.WinnerTeamID)
		if err != nil {
			httputil.Error(w, "Failed to resolve winner", err)
			return
		}
		upd.WinnerParticipantID = &participantID
	}

	result, err := s.matches.UpdateMatch(r.Context(), matchID, upd)
	if err != nil {
		httputil.Error(w, "Failed to update match", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, newMatchResultBody(result))
}

func (s *server) cancelMatch(w http.ResponseWriter, r *http.Request) {
	matchID, ok := uuidParam(w, r, "matchID")
	if !ok {
		return
	}
	result, err := s.matches.CancelMatch(r.Context(), matchID)
	if err != nil {
		httputil.Error(w, "Failed to cancel match", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, newMatchResultBody(result))
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		httputil.BadRequest(w, "Invalid "+name, err)
		return uuid.Nil, false
	}
	return id, true
}
