package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/diony/gallery-auth/internal/models"
)

// TokenRepository is the in-memory twin of the postgres refresh-token
// registry. RevokeToken performs the same conditional flip under a mutex
// that the SQL variant performs with a conditional UPDATE, so the
// rotation-race tests exercise identical semantics.
type TokenRepository struct {
	mu     sync.Mutex
	tokens map[string]models.RefreshToken
	now    func() time.Time
}

func NewTokenRepository() *TokenRepository {
	return &TokenRepository{
		tokens: make(map[string]models.RefreshToken),
		now:    time.Now,
	}
}

func (r *TokenRepository) CreateToken(_ context.Context, token *models.RefreshToken) (*models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	created := *token
	created.ID = uuid.NewString()
	if created.CreatedAt.IsZero() {
		created.CreatedAt = r.now()
	}
	r.tokens[created.ID] = created

	return &created, nil
}

func (r *TokenRepository) FindActiveTokensByUser(_ context.Context, userID string, limit int) ([]models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var active []models.RefreshToken
	for _, t := range r.tokens {
		if t.UserID == userID && !t.Revoked && t.ExpiresAt.After(r.now()) {
			active = append(active, t)
		}
	}
	return sortAndCap(active, limit), nil
}

func (r *TokenRepository) RevokeToken(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tokens[id]
	if !ok || t.Revoked {
		return false, nil
	}
	t.Revoked = true
	r.tokens[id] = t
	return true, nil
}

func (r *TokenRepository) FindAllActiveTokens(_ context.Context, limit int) ([]models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var active []models.RefreshToken
	for _, t := range r.tokens {
		if !t.Revoked && t.ExpiresAt.After(r.now()) {
			active = append(active, t)
		}
	}
	return sortAndCap(active, limit), nil
}

// SeedToken inserts a record as-is, expired or revoked ones included, for
// tests that need to shape the candidate set directly.
func (r *TokenRepository) SeedToken(token models.RefreshToken) models.RefreshToken {
	r.mu.Lock()
	defer r.mu.Unlock()

	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	r.tokens[token.ID] = token
	return token
}

func sortAndCap(tokens []models.RefreshToken, limit int) []models.RefreshToken {
	sort.Slice(tokens, func(i, j int) bool {
		return tokens[i].CreatedAt.After(tokens[j].CreatedAt)
	})
	if limit > 0 && len(tokens) > limit {
		tokens = tokens[:limit]
	}
	return tokens
}
