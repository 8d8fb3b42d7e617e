package redisrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/medibook/booking-api/internal/model"
	"github.com/medibook/booking-api/internal/repository"
)

const (
	refreshKeyPrefix = "refresh_token:"
	userTokensPrefix = "user_tokens:"
)

// tokenRepository stores rotating refresh tokens in Redis. Each token is
// single use: consuming it deletes it, which is what makes concurrent
// refresh against a rotated token detectable server-side.
type tokenRepository struct {
	client *redis.Client
}

func NewTokenRepository(client *redis.Client) repository.TokenRepository {
	return &tokenRepository{client: client}
}

func (r *tokenRepository) StoreRefreshToken(ctx context.Context, userID uuid.UUID, token string, expiry time.Duration) error {
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, refreshKeyPrefix+token, userID.String(), expiry)
	pipe.SAdd(ctx, userTokensPrefix+userID.String(), token)
	pipe.Expire(ctx, userTokensPrefix+userID.String(), expiry)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store refresh token: %w", err)
	}
	return nil
}

func (r *tokenRepository) ConsumeRefreshToken(ctx context.Context, token string) (uuid.UUID, error) {
	// GETDEL makes validate-and-revoke a single atomic step.
	val, err := r.client.GetDel(ctx, refreshKeyPrefix+token).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return uuid.Nil, model.ErrRefreshTokenRevoked
		}
		return uuid.Nil, fmt.Errorf("failed to consume refresh token: %w", err)
	}

	userID, err := uuid.Parse(val)
	if err != nil {
		return uuid.Nil, fmt.Errorf("corrupt refresh token record: %w", err)
	}

	r.client.SRem(ctx, userTokensPrefix+userID.String(), token)
	return userID, nil
}

func (r *tokenRepository) RevokeUserTokens(ctx context.Context, userID uuid.UUID) error {
	setKey := userTokensPrefix + userID.String()
	tokens, err := r.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return fmt.Errorf("failed to list user tokens: %w", err)
	}

	pipe := r.client.TxPipeline()
	for _, t := range tokens {
		pipe.Del(ctx, refreshKeyPrefix+t)
	}
	pipe.Del(ctx, setKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to revoke user tokens: %w", err)
	}
	return nil
}
