package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/openboard/openboard/types"
)

// UserRepository handles persistence for users.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, login_id, name, email, password_hash, provider, provider_id, created_at, updated_at`

func scanUser(row *sql.Row) (types.User, error) {
	var user types.User
	var email, passwordHash, provider, providerID sql.NullString
	err := row.Scan(
		&user.ID,
		&user.LoginID,
		&user.Name,
		&email,
		&passwordHash,
		&provider,
		&providerID,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	user.Email = email.String
	user.PasswordHash = passwordHash.String
	user.Provider = provider.String
	user.ProviderID = providerID.String
	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *UserRepository) GetByLoginID(ctx context.Context, loginID string) (types.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE login_id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, loginID))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE email = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

func (r *UserRepository) GetByProvider(ctx context.Context, provider, providerID string) (types.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE provider = $1 AND provider_id = $2`
	return scanUser(r.db.QueryRowContext(ctx, query, provider, providerID))
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	const query = `
		INSERT INTO users (login_id, name, email, password_hash, provider, provider_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		user.LoginID,
		user.Name,
		nullable(user.Email),
		nullable(user.PasswordHash),
		nullable(user.Provider),
		nullable(user.ProviderID),
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID); err != nil {
		if isUniqueViolation(err) {
			return types.User{}, ErrDuplicate
		}
		return types.User{}, err
	}
	return user, nil
}

func nullable(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}
