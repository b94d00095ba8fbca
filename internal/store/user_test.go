package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/openboard/openboard/types"
)

func newUserRepoWithMock(t *testing.T) (*UserRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewUserRepository(db), mock, db
}

func userRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "login_id", "name", "email", "password_hash", "provider", "provider_id", "created_at", "updated_at",
	})
}

func TestUserGetByLoginID(t *testing.T) {
	repo, mock, db := newUserRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`(?s)SELECT\s+id,.*FROM\s+users\s+WHERE\s+login_id\s*=\s*\$1`).
		WithArgs("alice1").
		WillReturnRows(userRows().AddRow(1, "alice1", "Alice", nil, "hash", nil, nil, now, now))

	user, err := repo.GetByLoginID(context.Background(), "alice1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.ID != 1 || user.LoginID != "alice1" || user.Email != "" {
		t.Fatalf("unexpected user: %+v", user)
	}
}

func TestUserGetByLoginIDNotFound(t *testing.T) {
	repo, mock, db := newUserRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)SELECT\s+id,.*WHERE\s+login_id\s*=\s*\$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByLoginID(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestUserGetByProvider(t *testing.T) {
	repo, mock, db := newUserRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`(?s)SELECT\s+id,.*WHERE\s+provider\s*=\s*\$1\s+AND\s+provider_id\s*=\s*\$2`).
		WithArgs("google", "ext-1").
		WillReturnRows(userRows().AddRow(2, "google_ext-1", "Alice", "a@example.com", nil, "google", "ext-1", now, now))

	user, err := repo.GetByProvider(context.Background(), "google", "ext-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.Provider != "google" || user.ProviderID != "ext-1" || user.PasswordHash != "" {
		t.Fatalf("unexpected user: %+v", user)
	}
}

func TestUserCreate(t *testing.T) {
	repo, mock, db := newUserRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)INSERT\s+INTO\s+users\b.*RETURNING\s+id`).
		WithArgs("alice1", "Alice", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

	user, err := repo.Create(context.Background(), types.User{LoginID: "alice1", Name: "Alice", PasswordHash: "hash"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.ID != 42 {
		t.Fatalf("want id 42, got %d", user.ID)
	}
}

func TestUserCreateDuplicate(t *testing.T) {
	repo, mock, db := newUserRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)INSERT\s+INTO\s+users\b`).
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := repo.Create(context.Background(), types.User{LoginID: "alice1", Name: "Alice"})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("want ErrDuplicate, got %v", err)
	}
}
