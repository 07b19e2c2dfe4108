package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diony/gallery-auth/internal/storage/memory"
	"github.com/diony/gallery-auth/internal/util"
)

func newTestTokenService() *TokenService {
	return NewTokenService(&util.TokenConfig{
		AccessSecret:  []byte("access-secret-for-tests"),
		RefreshSecret: []byte("refresh-secret-for-tests"),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
	}, memory.NewDenylist())
}

func TestTokenService_AccessTokenRoundTrip(t *testing.T) {
	ts := newTestTokenService()

	token, err := ts.CreateAccessToken("user-1", "admin")
	require.NoError(t, err)

	userID, role, err := ts.ParseAccessToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
	assert.Equal(t, "admin", role)
}

func TestTokenService_RefreshTokenRoundTrip(t *testing.T) {
	ts := newTestTokenService()

	token, err := ts.CreateRefreshToken("user-1")
	require.NoError(t, err)

	userID, err := ts.ParseRefreshToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestTokenService_FamiliesAreIndependent(t *testing.T) {
	ts := newTestTokenService()

	access, err := ts.CreateAccessToken("user-1", "user")
	require.NoError(t, err)
	refresh, err := ts.CreateRefreshToken("user-1")
	require.NoError(t, err)

	// A token of one family never verifies under the other family's key.
	_, err = ts.ParseRefreshToken(access)
	assert.ErrorIs(t, err, ErrTokenSignature)

	_, _, err = ts.ParseAccessToken(context.Background(), refresh)
	assert.ErrorIs(t, err, ErrTokenSignature)
}

func TestTokenService_ExpiredTokenRejected(t *testing.T) {
	ts := newTestTokenService()

	refresh, err := ts.CreateRefreshToken("user-1")
	require.NoError(t, err)

	// Move the codec's clock past expiry plus leeway.
	ts.now = func() time.Time {
		return time.Now().Add(ts.refreshTTL + util.JWTLeeway + time.Minute)
	}

	_, err = ts.ParseRefreshToken(refresh)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenService_MalformedTokenRejected(t *testing.T) {
	ts := newTestTokenService()

	for _, token := range []string{"", "garbage", "a.b", "a.b.c"} {
		_, err := ts.ParseRefreshToken(token)
		assert.ErrorIs(t, err, ErrTokenMalformed, "token %q", token)
	}
}

func TestTokenService_TamperedSignatureRejected(t *testing.T) {
	ts := newTestTokenService()

	token, err := ts.CreateRefreshToken("user-1")
	require.NoError(t, err)

	tampered := token[:len(token)-2] + "xx"
	_, err = ts.ParseRefreshToken(tampered)
	assert.ErrorIs(t, err, ErrTokenSignature)
}

func TestTokenService_InvalidatedAccessTokenDenied(t *testing.T) {
	ts := newTestTokenService()
	ctx := context.Background()

	token, err := ts.CreateAccessToken("user-1", "user")
	require.NoError(t, err)

	_, _, err = ts.ParseAccessToken(ctx, token)
	require.NoError(t, err)

	require.NoError(t, ts.InvalidateAccessToken(ctx, token))

	_, _, err = ts.ParseAccessToken(ctx, token)
	assert.ErrorIs(t, err, ErrTokenDenied)
}

func TestTokenService_InvalidateMalformedToken(t *testing.T) {
	ts := newTestTokenService()

	err := ts.InvalidateAccessToken(context.Background(), "garbage")
	assert.ErrorIs(t, err, ErrTokenMalformed)
}
