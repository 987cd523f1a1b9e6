package service

import (
	"context"
	"testing"

	"github.com/AdamBeresnev/op-tournament/internal/store"
	"github.com/markbates/goth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindOrCreateUserByProvider(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	userStore := store.NewUserStore(db)
	userService := NewUserService(db, userStore, []string{" Admin@Example.com "})
	ctx := context.Background()

	admin, err := userService.FindOrCreateUserByProvider(ctx, goth.User{
		Provider: "discord", UserID: "42", Email: "admin@example.com", Name: "Admin", NickName: "admin",
	})
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin)

	player, err := userService.FindOrCreateUserByProvider(ctx, goth.User{
		Provider: "google", UserID: "7", Email: "player@example.com", Name: "Player", NickName: "player",
	})
	require.NoError(t, err)
	assert.False(t, player.IsAdmin)

	again, err := userService.FindOrCreateUserByProvider(ctx, goth.User{
		Provider: "google", UserID: "7", Email: "player@example.com", NickName: "renamed", AvatarURL: "https://cdn.example.com/a.png",
	})
	require.NoError(t, err)
	assert.Equal(t, player.ID, again.ID)

	stored, err := userStore.GetUser(ctx, player.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", stored.Username)
	require.NotNil(t, stored.AvatarURL)
	assert.Equal(t, "https://cdn.example.com/a.png", *stored.AvatarURL)
}

func TestEnsureGuestUser(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	userService := NewUserService(db, store.NewUserStore(db), nil)
	ctx := context.Background()

	guest, err := userService.EnsureGuestUser(ctx)
	require.NoError(t, err)
	assert.False(t, guest.IsAdmin)

	again, err := userService.EnsureGuestUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, guest.ID, again.ID)
}
