package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/diony/gallery-auth/internal/models"
	"github.com/diony/gallery-auth/internal/storage"
)

type TokenRepository struct {
	db storage.DBTX
}

func NewTokenRepository(db storage.DBTX) *TokenRepository {
	return &TokenRepository{db: db}
}

func (r *TokenRepository) CreateToken(ctx context.Context, token *models.RefreshToken) (*models.RefreshToken, error) {
	query := `INSERT INTO refresh_tokens (user_id, token_hash, expires_at)
	          VALUES ($1, $2, $3)
	          RETURNING id, user_id, token_hash, created_at, expires_at, revoked`
	var created models.RefreshToken
	err := r.db.QueryRowContext(ctx, query, token.UserID, token.TokenHash, token.ExpiresAt).Scan(
		&created.ID,
		&created.UserID,
		&created.TokenHash,
		&created.CreatedAt,
		&created.ExpiresAt,
		&created.Revoked,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert refresh token: %w", err)
	}
	return &created, nil
}

func (r *TokenRepository) FindActiveTokensByUser(ctx context.Context, userID string, limit int) ([]models.RefreshToken, error) {
	query := `SELECT id, user_id, token_hash, created_at, expires_at, revoked
	          FROM refresh_tokens
	          WHERE user_id = $1 AND revoked = FALSE AND expires_at > NOW()
	          ORDER BY created_at DESC
	          LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query active refresh tokens: %w", err)
	}
	defer rows.Close()

	return scanTokens(rows)
}

// RevokeToken is the rotation-race guard: the WHERE clause makes the flip
// conditional, so of two concurrent callers presenting the same record
// exactly one observes RowsAffected == 1.
func (r *TokenRepository) RevokeToken(ctx context.Context, id string) (bool, error) {
	query := `UPDATE refresh_tokens SET revoked = TRUE WHERE id = $1 AND revoked = FALSE`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected == 1, nil
}

func (r *TokenRepository) FindAllActiveTokens(ctx context.Context, limit int) ([]models.RefreshToken, error) {
	query := `SELECT id, user_id, token_hash, created_at, expires_at, revoked
	          FROM refresh_tokens
	          WHERE revoked = FALSE AND expires_at > NOW()
	          ORDER BY created_at DESC
	          LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query all active refresh tokens: %w", err)
	}
	defer rows.Close()

	return scanTokens(rows)
}

func scanTokens(rows *sql.Rows) ([]models.RefreshToken, error) {
	var tokens []models.RefreshToken
	for rows.Next() {
		var t models.RefreshToken
		if err := rows.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.CreatedAt, &t.ExpiresAt, &t.Revoked); err != nil {
			return nil, fmt.Errorf("failed to scan refresh token row: %w", err)
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("refresh token rows: %w", err)
	}
	return tokens, nil
}
