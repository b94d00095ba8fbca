// Package token implements the token service: issuing and verifying signed
// access tokens, and issuing, redeeming, and revoking server-persisted
// refresh tokens.
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/openboard/openboard/internal/store"
	"github.com/openboard/openboard/types"
)

var (
	// ErrMissingToken is returned when no refresh token was supplied.
	ErrMissingToken = errors.New("missing token")

	// ErrExpiredToken is returned when an access token's signature is valid
	// but its expiry has passed.
	ErrExpiredToken = errors.New("token expired")

	// ErrInvalidToken is returned for tokens that fail verification, and for
	// refresh tokens that are unknown or past their expiry.
	ErrInvalidToken = errors.New("invalid token")
)

// AccessClaims are the claims carried by an access token.
type AccessClaims struct {
	UserID  int    `json:"userId"`
	LoginID string `json:"userLoginId"`
	jwt.RegisteredClaims
}

// refreshClaims are the claims carried by a refresh token.
type refreshClaims struct {
	UserID int `json:"userId"`
	jwt.RegisteredClaims
}

// RefreshTokenRepository defines persistence operations for refresh tokens.
type RefreshTokenRepository interface {
	Create(ctx context.Context, token string, userID int, expiresAt time.Time) error
	Find(ctx context.Context, token string) (types.RefreshToken, error)
	Delete(ctx context.Context, token string) error
}

// UserSource resolves user records when redeeming a refresh token.
type UserSource interface {
	GetByID(ctx context.Context, id int) (types.User, error)
}

// Service issues and verifies token pairs. Access and refresh tokens are
// signed with distinct secrets; refresh tokens are additionally persisted
// and valid only while their row exists.
type Service struct {
	tokens        RefreshTokenRepository
	users         UserSource
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewService constructs a token Service.
func NewService(tokens RefreshTokenRepository, users UserSource, accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *Service {
	if accessTTL <= 0 {
		accessTTL = time.Hour
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &Service{
		tokens:        tokens,
		users:         users,
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
}

// IssuePair mints an access token and a refresh token for the user and
// persists the refresh token with its expiry.
func (s *Service) IssuePair(ctx context.Context, user types.User) (types.TokenPair, error) {
	access, err := s.issueAccess(user)
	if err != nil {
		return types.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	now := s.now()
	expiresAt := now.Add(s.refreshTTL)
	// The jti keeps two logins in the same second from minting identical
	// token strings, which would collide on the unique token column.
	refresh, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims{
		UserID: user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}).SignedString(s.refreshSecret)
	if err != nil {
		return types.TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	if err := s.tokens.Create(ctx, refresh, user.ID, expiresAt); err != nil {
		return types.TokenPair{}, fmt.Errorf("persist refresh token: %w", err)
	}

	return types.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// VerifyAccess validates an access token's signature and expiry and returns
// the embedded user id.
func (s *Service) VerifyAccess(tokenString string) (int, error) {
	claims := &AccessClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.accessSecret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, ErrExpiredToken
		}
		return 0, ErrInvalidToken
	}
	if !token.Valid || claims.UserID < 1 {
		return 0, ErrInvalidToken
	}
	return claims.UserID, nil
}

// Refresh redeems a refresh token for a new access token. The stored refresh
// record is left untouched: tokens stay valid until their own expiry or an
// explicit revoke, so several devices can hold refresh tokens for one user.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", ErrMissingToken
	}

	record, err := s.tokens.Find(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrInvalidToken
		}
		return "", fmt.Errorf("find refresh token: %w", err)
	}
	if !record.ExpiresAt.After(s.now()) {
		return "", ErrInvalidToken
	}

	user, err := s.users.GetByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrInvalidToken
		}
		return "", fmt.Errorf("load token owner: %w", err)
	}

	return s.issueAccess(user)
}

// Revoke deletes the persisted refresh token. Revoking an unknown or empty
// token is not an error.
func (s *Service) Revoke(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.tokens.Delete(ctx, refreshToken)
}

func (s *Service) issueAccess(user types.User) (string, error) {
	now := s.now()
	claims := AccessClaims{
		UserID:  user.ID,
		LoginID: user.LoginID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.accessSecret)
}
