package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/AdamBeresnev/op-tournament/internal/store"
	users "github.com/AdamBeresnev/op-tournament/internal/user"
	"github.com/AdamBeresnev/op-tournament/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/markbates/goth"
)

const GuestUserID = "00000000-0000-0000-0000-000000000001"

type UserService struct {
	db          *sqlx.DB
	store       *store.UserStore
	adminEmails map[string]bool
}

// NewUserService grants the admin role to users signing in with one of adminEmails.
func NewUserService(db *sqlx.DB, store *store.UserStore, adminEmails []string) *UserService {
	admins := make(map[string]bool, len(adminEmails))
	for _, email := range adminEmails {
		if email = strings.ToLower(strings.TrimSpace(email)); email != "" {
			admins[email] = true
		}
	}
	return &UserService{db: db, store: store, adminEmails: admins}
}

func (s *UserService) isAdminEmail(email string) bool {
	return s.adminEmails[strings.ToLower(strings.TrimSpace(email))]
}

func (s *UserService) FindOrCreateUserByProvider(ctx context.Context, gothUser goth.User) (*users.User, error) {
	user, err := s.store.GetUserByProvider(ctx, gothUser.Provider, gothUser.UserID)

	if err == nil {
		isAdmin := s.isAdminEmail(user.Email)
		if utils.OrZero(user.AvatarURL) != gothUser.AvatarURL || user.Username != gothUser.NickName || user.IsAdmin != isAdmin {
			user.AvatarURL = utils.StringOrNil(gothUser.AvatarURL)
			if gothUser.NickName != "" {
				user.Username = gothUser.NickName
			}
			user.IsAdmin = isAdmin
			if err := s.store.UpdateUserProfile(ctx, user); err != nil {
				return nil, err
			}
		}
		return user, nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		newUser := &users.User{
			ID:         uuid.New(),
			Email:      gothUser.Email,
			Username:   gothUser.Name,
			Provider:   &gothUser.Provider,
			ProviderID: &gothUser.UserID,
			AvatarURL:  utils.StringOrNil(gothUser.AvatarURL),
			IsAdmin:    s.isAdminEmail(gothUser.Email),
		}
		err := s.store.CreateUser(ctx, newUser)
		return newUser, err
	}

	return nil, err
}

// EnsureGuestUser returns the shared guest account, creating it on first use.
// The guest can report scores but never administers brackets.
func (s *UserService) EnsureGuestUser(ctx context.Context) (*users.User, error) {
	guestID := uuid.MustParse(GuestUserID)
	user, err := s.store.GetUser(ctx, guestID)
	if err == nil {
		return user, nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		guestUser := &users.User{
			ID:       guestID,
			Email:    "guest@op-tournament.app",
			Username: "Guest User",
		}
		err := s.store.CreateUser(ctx, guestUser)
		return guestUser, err
	}
	return nil, err
}
