package users

import (
	"time"

	"github.com/google/uuid"
)

type ContextKey string

const UserKey ContextKey = "user"

type User struct {
	ID         uuid.UUID `db:"id" json:"id"`
	Email      string    `db:"email" json:"email"`
	Username   string    `db:"username" json:"username"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	Provider   *string   `db:"provider" json:"provider,omitempty"`
	ProviderID *string   `db:"provider_id" json:"-"`
	AvatarURL  *string   `db:"avatar_url" json:"avatar_url,omitempty"`
	// Admins may replace or delete brackets and cancel matches.
	IsAdmin bool `db:"is_admin" json:"is_admin"`
}
