package model

import (
	"errors"

	"github.com/google/uuid"
)

// AuthRequest types
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// TokenResponse carries a fresh credential pair. Refresh tokens rotate:
// the returned refresh token replaces the one that was presented.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Auth errors
var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrRefreshTokenRevoked = errors.New("refresh token revoked or already used")
)

// TokenClaims represents the validated subject of an access token
type TokenClaims struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
}
