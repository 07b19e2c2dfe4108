package service

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/diony/gallery-auth/internal/util"
)

// PasswordService is the credential store: salted one-way hashing for
// passwords and raw refresh tokens. bcrypt hashes embed their own cost,
// so the configured cost only applies to new hashes and older hashes
// keep verifying after the cost is raised.
//
// Hashing is CPU-bound, so calls pass through a bounded semaphore sized
// by config. Requests that do not hash are never queued behind ones that
// do; the bound only keeps a burst of logins from pinning every core.
type PasswordService struct {
	cost int
	sem  chan struct{}
}

func NewPasswordService(cfg *util.BcryptConfig) *PasswordService {
	workers := cfg.MaxConcurrent
	if workers < 1 {
		workers = 1
	}
	cost := cfg.Cost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &PasswordService{
		cost: cost,
		sem:  make(chan struct{}, workers),
	}
}

func (s *PasswordService) Hash(secret string) (string, error) {
	s.sem <- struct{}{}
	defer func() { <-s.sem }()

	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether secret matches hash. It fails closed: a
// malformed stored hash verifies as false, never as an error the caller
// could mistake for success. The comparison cost does not depend on
// where a mismatch occurs; bcrypt provides that.
func (s *PasswordService) Verify(secret, hash string) bool {
	s.sem <- struct{}{}
	defer func() { <-s.sem }()

	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}
