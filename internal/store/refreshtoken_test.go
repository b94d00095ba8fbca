package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newRefreshRepoWithMock(t *testing.T) (*RefreshTokenRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewRefreshTokenRepository(db), mock, db
}

func TestRefreshTokenCreate(t *testing.T) {
	repo, mock, db := newRefreshRepoWithMock(t)
	defer db.Close()

	q := `(?s)INSERT\s+INTO\s+refresh_tokens\b.*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4\)`

	mock.ExpectExec(q).
		WithArgs("tok123", 7, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Create(context.Background(), "tok123", 7, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRefreshTokenFind(t *testing.T) {
	repo, mock, db := newRefreshRepoWithMock(t)
	defer db.Close()

	q := `(?s)SELECT\s+token,\s*user_id,\s*expires_at,\s*created_at\s+FROM\s+refresh_tokens\s+WHERE\s+token\s*=\s*\$1`

	expires := time.Now().Add(10 * time.Minute)
	rows := sqlmock.NewRows([]string{"token", "user_id", "expires_at", "created_at"}).
		AddRow("tok123", 7, expires, time.Now())

	mock.ExpectQuery(q).
		WithArgs("tok123").
		WillReturnRows(rows)

	got, err := repo.Find(context.Background(), "tok123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.UserID != 7 || !got.ExpiresAt.Equal(expires) {
		t.Fatalf("unexpected record: %+v", got)
	}
}

func TestRefreshTokenFindNotFound(t *testing.T) {
	repo, mock, db := newRefreshRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)SELECT\s+token,`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Find(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestRefreshTokenDeleteAbsent(t *testing.T) {
	repo, mock, db := newRefreshRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`DELETE\s+FROM\s+refresh_tokens\s+WHERE\s+token\s*=\s*\$1`).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Delete(context.Background(), "missing"); err != nil {
		t.Fatalf("deleting an absent token should not fail: %v", err)
	}
}
