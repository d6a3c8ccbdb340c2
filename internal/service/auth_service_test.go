package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lotto999/lotto-service/internal/model"
)

func TestRegisterCreatesUserAndWallet(t *testing.T) {
	env, ctx := newTestEnv(t)

	u, err := env.auth.Register(ctx, &model.User{
		Email: "new@example.com", Password: "pw", Fullname: "New User",
	})
	assert.NoError(t, err)
	assert.NotZero(t, u.ID)
	assert.Equal(t, "user", u.Role)

	w, err := env.repo.GetWalletByUser(ctx, u.ID)
	assert.NoError(t, err)
	assert.True(t, w.Balance.IsZero())
}

func TestRegisterDuplicateEmail(t *testing.T) {
	env, ctx := newTestEnv(t)
	env.seedUser(t, ctx, "dup@example.com", 0)

	_, err := env.auth.Register(ctx, &model.User{
		Email: "dup@example.com", Password: "pw", Fullname: "Other",
	})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestLogin(t *testing.T) {
	env, ctx := newTestEnv(t)
	u := env.seedUser(t, ctx, "login@example.com", 0)

	got, err := env.auth.Login(ctx, u.Email, "secret")
	assert.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = env.auth.Login(ctx, u.Email, "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = env.auth.Login(ctx, "nobody@example.com", "pw")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
