package models

import "time"

// RefreshToken is the persisted record of one issued refresh token.
// Only the bcrypt hash of the raw token is ever stored; the raw value is
// returned to the client exactly once and is not recoverable afterwards.
// Revoked is monotonic: once true it never reverts. Records are never
// deleted by the service itself, they are kept for the replay-detection
// audit window and pruned by a separate retention job.
type RefreshToken struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	TokenHash string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Revoked   bool      `json:"revoked"`
}

// TokenPair is what a successful register, login, or refresh hands back.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
