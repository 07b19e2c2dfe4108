package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diony/gallery-auth/internal/models"
)

func newTokenRepoMock(t *testing.T) (*TokenRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewTokenRepository(db), mock
}

func tokenColumns() []string {
	return []string{"id", "user_id", "token_hash", "created_at", "expires_at", "revoked"}
}

func TestTokenRepository_CreateToken(t *testing.T) {
	repo, mock := newTokenRepoMock(t)
	now := time.Now()
	expires := now.Add(7 * 24 * time.Hour)

	mock.ExpectQuery(`INSERT INTO refresh_tokens`).
		WithArgs("user-1", "hashed-token", expires).
		WillReturnRows(sqlmock.NewRows(tokenColumns()).
			AddRow("rec-1", "user-1", "hashed-token", now, expires, false))

	created, err := repo.CreateToken(context.Background(), &models.RefreshToken{
		UserID:    "user-1",
		TokenHash: "hashed-token",
		ExpiresAt: expires,
	})
	require.NoError(t, err)
	assert.Equal(t, "rec-1", created.ID)
	assert.False(t, created.Revoked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepository_FindActiveTokensByUser(t *testing.T) {
	repo, mock := newTokenRepoMock(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT id, user_id, token_hash, created_at, expires_at, revoked`).
		WithArgs("user-1", 5).
		WillReturnRows(sqlmock.NewRows(tokenColumns()).
			AddRow("rec-2", "user-1", "hash-2", now, now.Add(time.Hour), false).
			AddRow("rec-1", "user-1", "hash-1", now.Add(-time.Minute), now.Add(time.Hour), false))

	got, err := repo.FindActiveTokensByUser(context.Background(), "user-1", 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "rec-2", got[0].ID)
	assert.Equal(t, "rec-1", got[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepository_RevokeTokenReportsFlip(t *testing.T) {
	repo, mock := newTokenRepoMock(t)
	ctx := context.Background()

	mock.ExpectExec(`UPDATE refresh_tokens SET revoked = TRUE`).
		WithArgs("rec-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	flipped, err := repo.RevokeToken(ctx, "rec-1")
	require.NoError(t, err)
	assert.True(t, flipped)

	// Second call hits the revoked = FALSE guard and affects no rows.
	mock.ExpectExec(`UPDATE refresh_tokens SET revoked = TRUE`).
		WithArgs("rec-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	flipped, err = repo.RevokeToken(ctx, "rec-1")
	require.NoError(t, err)
	assert.False(t, flipped)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepository_FindAllActiveTokens(t *testing.T) {
	repo, mock := newTokenRepoMock(t)
	now := time.Now()

	mock.ExpectQuery(`FROM refresh_tokens`).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows(tokenColumns()).
			AddRow("rec-1", "user-1", "hash-1", now, now.Add(time.Hour), false))

	got, err := repo.FindAllActiveTokens(context.Background(), 5)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}
