package types

import "time"

// TokenPair bundles a short-lived access token with a long-lived refresh token.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// RefreshToken is a persisted refresh-token record. A token is valid only
// while its row exists and ExpiresAt is in the future.
type RefreshToken struct {
	Token     string    `json:"-" db:"token"`
	UserID    int       `json:"-" db:"user_id"`
	ExpiresAt time.Time `json:"-" db:"expires_at"`
	CreatedAt time.Time `json:"-" db:"created_at"`
}
