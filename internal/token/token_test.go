package token

import (
	"context"
	"testing"
	"time"

	"github.com/openboard/openboard/internal/store"
	"github.com/openboard/openboard/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTokenRepo struct {
	records map[string]types.RefreshToken
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{records: make(map[string]types.RefreshToken)}
}

func (f *fakeTokenRepo) Create(ctx context.Context, token string, userID int, expiresAt time.Time) error {
	f.records[token] = types.RefreshToken{Token: token, UserID: userID, ExpiresAt: expiresAt}
	return nil
}

func (f *fakeTokenRepo) Find(ctx context.Context, token string) (types.RefreshToken, error) {
	record, ok := f.records[token]
	if !ok {
		return types.RefreshToken{}, store.ErrNotFound
	}
	return record, nil
}

func (f *fakeTokenRepo) Delete(ctx context.Context, token string) error {
	delete(f.records, token)
	return nil
}

type fakeUserSource struct {
	users map[int]types.User
}

func (f *fakeUserSource) GetByID(ctx context.Context, id int) (types.User, error) {
	user, ok := f.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func newTestService() (*Service, *fakeTokenRepo) {
	repo := newFakeTokenRepo()
	users := &fakeUserSource{users: map[int]types.User{
		1: {ID: 1, LoginID: "alice1", Name: "Alice"},
	}}
	return NewService(repo, users, "access-secret", "refresh-secret", time.Hour, 7*24*time.Hour), repo
}

func TestIssuePairAndVerify(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	pair, err := svc.IssuePair(ctx, types.User{ID: 1, LoginID: "alice1"})
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	userID, err := svc.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, 1, userID)

	record, ok := repo.records[pair.RefreshToken]
	require.True(t, ok, "refresh token must be persisted")
	assert.Equal(t, 1, record.UserID)
}

func TestVerifyAccessWrongSecret(t *testing.T) {
	svc, _ := newTestService()
	other, _ := newTestService()
	other.accessSecret = []byte("somebody-else")

	pair, err := other.IssuePair(context.Background(), types.User{ID: 1, LoginID: "alice1"})
	require.NoError(t, err)

	_, err = svc.VerifyAccess(pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyAccessExpired(t *testing.T) {
	svc, _ := newTestService()
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	pair, err := svc.IssuePair(context.Background(), types.User{ID: 1, LoginID: "alice1"})
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.VerifyAccess(pair.AccessToken)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestRefreshTwiceBothSucceed(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	pair, err := svc.IssuePair(ctx, types.User{ID: 1, LoginID: "alice1"})
	require.NoError(t, err)

	first, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	second, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)

	for _, access := range []string{first, second} {
		userID, err := svc.VerifyAccess(access)
		require.NoError(t, err)
		assert.Equal(t, 1, userID)
	}
}

func TestRefreshMissingToken(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.Refresh(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestRefreshUnknownToken(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.Refresh(context.Background(), "never-issued")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshExpiredToken(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	pair, err := svc.IssuePair(ctx, types.User{ID: 1, LoginID: "alice1"})
	require.NoError(t, err)

	record := repo.records[pair.RefreshToken]
	record.ExpiresAt = time.Now().Add(-time.Minute)
	repo.records[pair.RefreshToken] = record

	_, err = svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRevokeThenRefreshFails(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	pair, err := svc.IssuePair(ctx, types.User{ID: 1, LoginID: "alice1"})
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, pair.RefreshToken))
	_, err = svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRevokeIdempotent(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	assert.NoError(t, svc.Revoke(ctx, "never-issued"))
	assert.NoError(t, svc.Revoke(ctx, ""))
}

func TestRefreshKeepsOtherTokensValid(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	deviceA, err := svc.IssuePair(ctx, types.User{ID: 1, LoginID: "alice1"})
	require.NoError(t, err)
	deviceB, err := svc.IssuePair(ctx, types.User{ID: 1, LoginID: "alice1"})
	require.NoError(t, err)

	// Logging out one device must not touch the other's refresh token.
	require.NoError(t, svc.Revoke(ctx, deviceA.RefreshToken))
	_, err = svc.Refresh(ctx, deviceB.RefreshToken)
	assert.NoError(t, err)
}
