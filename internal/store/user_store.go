package store

import (
	"context"
	"time"

	users "github.com/AdamBeresnev/op-tournament/internal/user"
	"github.com/jmoiron/sqlx"
)

type UserStore struct {
	db *sqlx.DB
}

const (
	getUserQuery           = "SELECT * FROM users WHERE id = ?"
	getUserByProviderQuery = `
        SELECT * FROM users
        WHERE provider = ?
        AND provider_id = ?
    `
	createUserQuery = `
		INSERT INTO users (id, email, username, provider, provider_id, avatar_url, is_admin, created_at) VALUES
		(:id, :email, :username, :provider, :provider_id, :avatar_url, :is_admin, :created_at)
	`
	updateUserProfileQuery = `
		UPDATE users SET
		username = :username,
		avatar_url = :avatar_url,
		is_admin = :is_admin
		WHERE id = :id
	`
)

func NewUserStore(db *sqlx.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) GetUserByProvider(ctx context.Context, provider string, providerID string) (*users.User, error) {
	var user users.User
	err := s.db.GetContext(ctx, &user, s.db.Rebind(getUserByProviderQuery), provider, providerID)
	if err != nil {
		return nil, err
	}

	return &user, nil
}

func (s *UserStore) GetUser(ctx context.Context, id any) (*users.User, error) {
	var user users.User
	err := s.db.GetContext(ctx, &user, s.db.Rebind(getUserQuery), id)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *UserStore) CreateUser(ctx context.Context, user *users.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.NamedExecContext(ctx, createUserQuery, user)
	return err
}

func (s *UserStore) UpdateUserProfile(ctx context.Context, user *users.User) error {
	_, err := s.db.NamedExecContext(ctx, updateUserProfileQuery, user)
	return err
}
