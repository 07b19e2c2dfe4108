package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/diony/gallery-auth/internal/storage"
	"github.com/diony/gallery-auth/internal/util"
)

var (
	ErrTokenExpired         = errors.New("token expired")
	ErrTokenMalformed       = errors.New("token is malformed")
	ErrTokenSignature       = errors.New("token signature invalid")
	ErrTokenInvalid         = errors.New("token invalid")
	ErrTokenDenied          = errors.New("token denied")
	ErrInvalidSigningMethod = errors.New("invalid signing method")
)

// TokenService signs and verifies the two token families. Access and
// refresh tokens use distinct secrets and TTLs (util.TokenConfig), so
// one family can be rotated or revoked without touching the other.
// Issuance and expiry checks share one clock so a token can never be
// minted already-expired or outlive its record.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	denylist      storage.AccessTokenDenylist
	now           func() time.Time
}

func NewTokenService(cfg *util.TokenConfig, denylist storage.AccessTokenDenylist) *TokenService {
	return &TokenService{
		accessSecret:  cfg.AccessSecret,
		refreshSecret: cfg.RefreshSecret,
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		denylist:      denylist,
		now:           time.Now,
	}
}

type accessClaims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

type refreshClaims struct {
	jwt.RegisteredClaims
}

func (ts *TokenService) AccessTTL() time.Duration  { return ts.accessTTL }
func (ts *TokenService) RefreshTTL() time.Duration { return ts.refreshTTL }

func (ts *TokenService) CreateAccessToken(userID, role string) (string, error) {
	now := ts.now()
	claims := &accessClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.accessTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ts.accessSecret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

func (ts *TokenService) CreateRefreshToken(userID string) (string, error) {
	now := ts.now()
	claims := &refreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.refreshTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ts.refreshSecret)
	if err != nil {
		return "", fmt.Errorf("sign refresh token: %w", err)
	}
	return signed, nil
}

// ParseAccessToken verifies signature and expiry, consults the denylist,
// and returns the subject and role claims.
func (ts *TokenService) ParseAccessToken(ctx context.Context, token string) (userID, role string, err error) {
	if ts.denylist != nil {
		denied, derr := ts.denylist.IsTokenDenied(ctx, token)
		if derr != nil {
			return "", "", fmt.Errorf("check token denylist: %w", derr)
		}
		if denied {
			return "", "", ErrTokenDenied
		}
	}

	claims := &accessClaims{}
	if err := ts.parse(token, claims, ts.accessSecret); err != nil {
		return "", "", err
	}
	if claims.Subject == "" {
		return "", "", ErrTokenInvalid
	}
	return claims.Subject, claims.Role, nil
}

// ParseRefreshToken verifies signature and expiry under the refresh
// secret and returns the subject.
func (ts *TokenService) ParseRefreshToken(token string) (string, error) {
	claims := &refreshClaims{}
	if err := ts.parse(token, claims, ts.refreshSecret); err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", ErrTokenInvalid
	}
	return claims.Subject, nil
}

// InvalidateAccessToken puts the token on the denylist for the remainder
// of its lifetime. The token only has to be well-formed; an expired one
// is already dead and is ignored.
func (ts *TokenService) InvalidateAccessToken(ctx context.Context, token string) error {
	if ts.denylist == nil {
		return nil
	}

	claims, err := ts.claimsUnverified(token)
	if err != nil {
		return err
	}
	if claims.ExpiresAt == nil {
		return ErrTokenInvalid
	}

	remaining := claims.ExpiresAt.Time.Sub(ts.now())
	if remaining <= 0 {
		return nil
	}
	if err := ts.denylist.DenyToken(ctx, token, remaining); err != nil {
		return fmt.Errorf("deny access token: %w", err)
	}
	return nil
}

// parse runs full verification: signing method is pinned and signature
// is checked before any claim is inspected, expiry is mandatory.
func (ts *TokenService) parse(token string, claims jwt.Claims, secret []byte) error {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(util.JWTLeeway),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ts.now),
	}

	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, ErrInvalidSigningMethod
		}
		return secret, nil
	}, opts...)
	if err != nil {
		return mapJWTError(err)
	}
	if parsed == nil || !parsed.Valid {
		return ErrTokenInvalid
	}
	return nil
}

func (ts *TokenService) claimsUnverified(token string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	}
	return claims, nil
}

func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrTokenMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, ErrInvalidSigningMethod):
		return ErrTokenSignature
	default:
		return fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
}
