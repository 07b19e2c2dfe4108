package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/diony/gallery-auth/internal/models"
	"github.com/diony/gallery-auth/internal/storage"
	"github.com/diony/gallery-auth/internal/util"
)

var (
	// ErrAlreadyExists: registration with an email that is taken.
	ErrAlreadyExists = errors.New("user already exists")
	// ErrInvalidCredentials covers both unknown email and wrong password,
	// deliberately indistinguishable to the caller.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidRefreshToken covers malformed, expired, unmatched, and
	// replayed refresh tokens alike.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrMissingToken: logout called without a token.
	ErrMissingToken = errors.New("refresh token is required")
	// ErrStorageUnavailable wraps persistence failures so the boundary can
	// answer 503 instead of misreporting them as credential problems.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// dummyBcryptHash is compared against when login hits an unknown email,
// so the miss costs roughly the same as a real password check and the
// response time does not reveal whether the account exists.
const dummyBcryptHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// AuthService is the session manager: the only entry point for
// registration, login, rotation-on-refresh, and logout. It composes the
// credential store, the token codec, the user store, and the
// refresh-token registry via plain constructor injection.
type AuthService struct {
	passwords *PasswordService
	tokens    *TokenService
	users     storage.UserRepository
	registry  storage.RefreshTokenRepository
	alerts    *WebhookService
	log       *zap.SugaredLogger
	now       func() time.Time
}

func NewAuthService(
	passwords *PasswordService,
	tokens *TokenService,
	users storage.UserRepository,
	registry storage.RefreshTokenRepository,
	alerts *WebhookService,
	log *zap.SugaredLogger,
) *AuthService {
	return &AuthService{
		passwords: passwords,
		tokens:    tokens,
		users:     users,
		registry:  registry,
		alerts:    alerts,
		log:       log,
		now:       time.Now,
	}
}

// Register creates the user and establishes their first session.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*models.User, *models.TokenPair, error) {
	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return nil, nil, ErrAlreadyExists
	} else if !errors.Is(err, storage.ErrUserNotFound) {
		return nil, nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.CreateUser(ctx, &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleUser,
	})
	if err != nil {
		// Lost a race against a concurrent registration for the same email.
		if errors.Is(err, storage.ErrUserEmailTaken) {
			return nil, nil, ErrAlreadyExists
		}
		return nil, nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	pair, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Login verifies the credentials and establishes a session.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, *models.TokenPair, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			// Burn a comparison anyway, see dummyBcryptHash.
			s.passwords.Verify(password, dummyBcryptHash)
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	if !s.passwords.Verify(password, user.PasswordHash) {
		return nil, nil, ErrInvalidCredentials
	}

	pair, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Refresh rotates a refresh token: the presented token is matched against
// the bounded candidate set, conditionally revoked, and a fresh pair is
// issued. A token that was already rotated matches nothing (it is revoked
// and excluded from candidates) and fails like any other invalid token.
func (s *AuthService) Refresh(ctx context.Context, rawToken string) (*models.TokenPair, error) {
	userID, err := s.tokens.ParseRefreshToken(rawToken)
	if err != nil {
		s.log.Debugw("refresh token rejected by codec", "reason", err)
		return nil, ErrInvalidRefreshToken
	}

	matched, err := s.matchCandidate(ctx, userID, rawToken, "refresh")
	if err != nil {
		return nil, err
	}

	revoked, err := s.registry.RevokeToken(ctx, matched.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	if !revoked {
		// A concurrent rotation of the same raw token won the conditional
		// flip; this caller is holding a replayed token now.
		s.notifyReplay(ctx, userID, "refresh")
		return nil, ErrInvalidRefreshToken
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			// Subject vanished since issuance; do not reveal that.
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	return s.issueSession(ctx, user)
}

// Logout revokes the presented refresh token and, when the access token
// of the pair is supplied, denylists it for its remaining lifetime.
// Possession of a valid raw refresh token is required; a bare user id is
// not accepted.
func (s *AuthService) Logout(ctx context.Context, rawToken, accessToken string) error {
	if rawToken == "" {
		return ErrMissingToken
	}

	userID, err := s.tokens.ParseRefreshToken(rawToken)
	if err != nil {
		s.log.Debugw("logout token rejected by codec", "reason", err)
		return ErrInvalidRefreshToken
	}

	matched, err := s.matchCandidate(ctx, userID, rawToken, "logout")
	if err != nil {
		return err
	}

	revoked, err := s.registry.RevokeToken(ctx, matched.ID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	if !revoked {
		s.notifyReplay(ctx, userID, "logout")
		return ErrInvalidRefreshToken
	}

	if accessToken != "" {
		if err := s.tokens.InvalidateAccessToken(ctx, accessToken); err != nil {
			s.log.Warnw("failed to denylist access token on logout", "error", err)
		}
	}

	return nil
}

// UserByID resolves the subject of a verified access token.
func (s *AuthService) UserByID(ctx context.Context, id string) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, storage.ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return user, nil
}

// issueSession mints one access and one refresh token, persists the hash
// of the raw refresh token, and returns the pair. The raw refresh token
// leaves this function exactly once and is not recoverable afterwards.
func (s *AuthService) issueSession(ctx context.Context, user *models.User) (*models.TokenPair, error) {
	accessToken, err := s.tokens.CreateAccessToken(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("create access token: %w", err)
	}

	refreshToken, err := s.tokens.CreateRefreshToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("create refresh token: %w", err)
	}

	tokenHash, err := s.passwords.Hash(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("hash refresh token: %w", err)
	}

	if _, err := s.registry.CreateToken(ctx, &models.RefreshToken{
		UserID:    user.ID,
		TokenHash: tokenHash,
		ExpiresAt: s.now().Add(s.tokens.RefreshTTL()),
	}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	return &models.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// matchCandidate scans the bounded candidate set in recency order and
// returns the first record whose hash matches the raw token. A signed
// token that matches nothing means it was already rotated out, which is
// the replay signature.
func (s *AuthService) matchCandidate(ctx context.Context, userID, rawToken, operation string) (*models.RefreshToken, error) {
	candidates, err := s.registry.FindActiveTokensByUser(ctx, userID, util.RefreshCandidateLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	for i := range candidates {
		if s.passwords.Verify(rawToken, candidates[i].TokenHash) {
			return &candidates[i], nil
		}
	}

	s.notifyReplay(ctx, userID, operation)
	return nil, ErrInvalidRefreshToken
}

func (s *AuthService) notifyReplay(ctx context.Context, userID, operation string) {
	s.log.Warnw("refresh token replay suspected", "user_id", userID, "operation", operation)
	if s.alerts != nil {
		s.alerts.NotifyReplayDetected(ctx, ReplayAlert{
			UserID:     userID,
			Operation:  operation,
			DetectedAt: s.now(),
		})
	}
}
