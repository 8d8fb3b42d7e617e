package redisrepo

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medibook/booking-api/internal/model"
)

func newTestRepo(t *testing.T) (*tokenRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return &tokenRepository{client: client}, mr
}

func TestConsumeRefreshTokenIsSingleUse(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, repo.StoreRefreshToken(ctx, userID, "tok-1", time.Hour))

	got, err := repo.ConsumeRefreshToken(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, userID, got)

	// The second presentation of the same token must fail: this is
	// what makes a duplicated concurrent refresh detectable.
	_, err = repo.ConsumeRefreshToken(ctx, "tok-1")
	assert.ErrorIs(t, err, model.ErrRefreshTokenRevoked)
}

func TestConsumeUnknownToken(t *testing.T) {
	repo, _ := newTestRepo(t)

	_, err := repo.ConsumeRefreshToken(context.Background(), "never-issued")
	assert.ErrorIs(t, err, model.ErrRefreshTokenRevoked)
}

func TestConsumeExpiredToken(t *testing.T) {
	repo, mr := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.StoreRefreshToken(ctx, uuid.New(), "tok-ttl", time.Minute))
	mr.FastForward(2 * time.Minute)

	_, err := repo.ConsumeRefreshToken(ctx, "tok-ttl")
	assert.ErrorIs(t, err, model.ErrRefreshTokenRevoked)
}

func TestRevokeUserTokens(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, repo.StoreRefreshToken(ctx, userID, "tok-a", time.Hour))
	require.NoError(t, repo.StoreRefreshToken(ctx, userID, "tok-b", time.Hour))

	other := uuid.New()
	require.NoError(t, repo.StoreRefreshToken(ctx, other, "tok-other", time.Hour))

	require.NoError(t, repo.RevokeUserTokens(ctx, userID))

	_, err := repo.ConsumeRefreshToken(ctx, "tok-a")
	assert.ErrorIs(t, err, model.ErrRefreshTokenRevoked)
	_, err = repo.ConsumeRefreshToken(ctx, "tok-b")
	assert.ErrorIs(t, err, model.ErrRefreshTokenRevoked)

	// Logout only touches the one user's tokens.
	got, err := repo.ConsumeRefreshToken(ctx, "tok-other")
	require.NoError(t, err)
	assert.Equal(t, other, got)
}
