package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/diony/gallery-auth/internal/models"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrUserEmailTaken = errors.New("email already taken")
)

// DBTX is satisfied by *sql.DB and *sql.Tx so repositories can run inside
// or outside a transaction without changing code.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Storage is what the composition root holds: one backend serving both
// the user store and the refresh-token registry.
type Storage interface {
	UserRepository
	RefreshTokenRepository
}

// UserRepository is the collaborator interface for the user store. The
// auth service creates users at registration and resolves them by email
// (the credentials key) or by id.
type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// RefreshTokenRepository is the refresh-token registry. CreateToken is
// append-only and never touches sibling records of the same user, so a
// user may hold several concurrent sessions.
type RefreshTokenRepository interface {
	CreateToken(ctx context.Context, token *models.RefreshToken) (*models.RefreshToken, error)
	// FindActiveTokensByUser returns non-revoked, non-expired records for
	// the user, most recently created first, at most limit of them.
	FindActiveTokensByUser(ctx context.Context, userID string, limit int) ([]models.RefreshToken, error)
	// RevokeToken flips revoked to true iff it is currently false and
	// reports whether this call did the flip. Idempotent; the conditional
	// form is what serializes concurrent rotations of one raw token.
	RevokeToken(ctx context.Context, id string) (bool, error)
	// FindAllActiveTokens is the system-wide variant kept for the legacy
	// logout scan; bounded by limit like the per-user lookup.
	FindAllActiveTokens(ctx context.Context, limit int) ([]models.RefreshToken, error)
}

// AccessTokenDenylist records access tokens that must be rejected before
// their natural expiry, e.g. after a logout.
type AccessTokenDenylist interface {
	DenyToken(ctx context.Context, token string, ttl time.Duration) error
	IsTokenDenied(ctx context.Context, token string) (bool, error)
}
