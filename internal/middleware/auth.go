package middleware

import (
	"context"
	"net/http"

	"github.com/AdamBeresnev/op-tournament/internal/config"
	"github.com/AdamBeresnev/op-tournament/internal/httputil"
	users "github.com/AdamBeresnev/op-tournament/internal/user"
	"github.com/alexedwards/scs/v2"
	"github.com/google/uuid"
	"github.com/markbates/goth"
	"github.com/markbates/goth/providers/discord"
	"github.com/markbates/goth/providers/google"
)

type ContextKey string

const UserIDKey ContextKey = "userID"

// SessionUserKey is the session field holding the signed in user's id.
const SessionUserKey = "userID"

type userGetter interface {
	GetUser(ctx context.Context, id any) (*users.User, error)
}

// InitAuth registers the OAuth providers that have credentials configured.
func InitAuth(cfg config.AuthConfig) {
	var providers []goth.Provider
	if cfg.DiscordKey != "" {
		providers = append(providers, discord.New(cfg.DiscordKey, cfg.DiscordSecret, cfg.DiscordCallbackURL, discord.ScopeIdentify, discord.ScopeEmail))
	}
	if cfg.GoogleKey != "" {
		providers = append(providers, google.New(cfg.GoogleKey, cfg.GoogleSecret, cfg.GoogleCallbackURL, "email", "profile"))
	}
	goth.UseProviders(providers...)
}

// LoadAuthenticatedUser puts the session's user into the request context. It
// never rejects a request; see RequireAuth.
func LoadAuthenticatedUser(sessionManager *scs.SessionManager, userStore userGetter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userIDStr := sessionManager.GetString(r.Context(), SessionUserKey)
			if userIDStr == "" {
				next.ServeHTTP(w, r)
				return
			}

			userID, err := uuid.Parse(userIDStr)
			if err != nil {
				sessionManager.Remove(r.Context(), SessionUserKey)
				next.ServeHTTP(w, r)
				return
			}

			user, err := userStore.GetUser(r.Context(), userID)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			ctx = context.WithValue(ctx, users.UserKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetAuthenticatedUser(r.Context()) == nil {
			httputil.Unauthorized(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin guards bracket generation, deletion and match cancellation.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := GetAuthenticatedUser(r.Context())
		if user == nil {
			httputil.Unauthorized(w)
			return
		}
		if !user.IsAdmin {
			httputil.Forbidden(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func GetUserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	val := ctx.Value(UserIDKey)
	if val == nil {
		return uuid.Nil, false
	}

	id, ok := val.(uuid.UUID)
	return id, ok
}

func GetAuthenticatedUser(ctx context.Context) *users.User {
	val := ctx.Value(users.UserKey)
	if val == nil {
		return nil
	}
	user, ok := val.(*users.User)
	if !ok {
		return nil
	}
	return user
}
