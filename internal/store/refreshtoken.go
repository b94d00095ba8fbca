package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/openboard/openboard/types"
)

// RefreshTokenRepository handles persistence for refresh tokens. The token
// column carries a uniqueness constraint, which is all the coordination
// concurrent logins need.
type RefreshTokenRepository struct {
	db *sql.DB
}

func NewRefreshTokenRepository(db *sql.DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

func (r *RefreshTokenRepository) Create(ctx context.Context, token string, userID int, expiresAt time.Time) error {
	const query = `
		INSERT INTO refresh_tokens (token, user_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4)`
	if _, err := r.db.ExecContext(ctx, query, token, userID, expiresAt, time.Now()); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *RefreshTokenRepository) Find(ctx context.Context, token string) (types.RefreshToken, error) {
	const query = `
		SELECT token, user_id, expires_at, created_at
		FROM refresh_tokens
		WHERE token = $1`
	var record types.RefreshToken
	err := r.db.QueryRowContext(ctx, query, token).Scan(
		&record.Token,
		&record.UserID,
		&record.ExpiresAt,
		&record.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.RefreshToken{}, ErrNotFound
		}
		return types.RefreshToken{}, err
	}
	return record, nil
}

// Delete removes a refresh token. Deleting an absent token is not an error.
func (r *RefreshTokenRepository) Delete(ctx context.Context, token string) error {
	const query = `DELETE FROM refresh_tokens WHERE token = $1`
	_, err := r.db.ExecContext(ctx, query, token)
	return err
}
