package controller_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/diony/gallery-auth/internal/api"
	"github.com/diony/gallery-auth/internal/controller"
	"github.com/diony/gallery-auth/internal/models"
	"github.com/diony/gallery-auth/internal/service"
	"github.com/diony/gallery-auth/internal/storage"
	"github.com/diony/gallery-auth/internal/storage/memory"
	"github.com/diony/gallery-auth/internal/util"
)

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()
	return newTestServerWith(t, memory.NewUserRepository(), memory.NewTokenRepository())
}

func newTestServerWith(t *testing.T, users storage.UserRepository, registry storage.RefreshTokenRepository) *echo.Echo {
	t.Helper()

	log := zap.NewNop().Sugar()
	passwords := service.NewPasswordService(&util.BcryptConfig{Cost: bcrypt.MinCost, MaxConcurrent: 8})
	tokens := service.NewTokenService(&util.TokenConfig{
		AccessSecret:  []byte("access-secret-for-tests"),
		RefreshSecret: []byte("refresh-secret-for-tests"),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
	}, memory.NewDenylist())
	auth := service.NewAuthService(passwords, tokens, users, registry, nil, log)
	c := controller.NewController(log, auth)

	e := echo.New()
	e.HTTPErrorHandler = api.ErrorHandler(log)
	e.Validator = api.NewRequestValidator()

	g := e.Group("/api/auth")
	g.POST("/register", c.Register)
	g.POST("/login", c.Login)
	g.POST("/refresh", c.Refresh)
	g.POST("/logout", c.Logout)
	g.GET("/me", c.Me, api.BearerAuthMiddleware(tokens))

	return e
}

func doJSON(e *echo.Echo, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func registerUser(t *testing.T, e *echo.Echo) (accessToken, refreshToken string) {
	t.Helper()

	rec := doJSON(e, http.MethodPost, "/api/auth/register",
		`{"name":"Ana","email":"ana@example.com","password":"password123"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AccessToken)
	require.NotEmpty(t, resp.RefreshToken)
	return resp.AccessToken, resp.RefreshToken
}

func TestRegisterEndpoint(t *testing.T) {
	e := newTestServer(t)

	rec := doJSON(e, http.MethodPost, "/api/auth/register",
		`{"name":"Ana","email":"ana@example.com","password":"password123"}`, nil)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"email":"ana@example.com"`)
	assert.NotContains(t, rec.Body.String(), "password")

	// Same email again conflicts.
	rec = doJSON(e, http.MethodPost, "/api/auth/register",
		`{"name":"Ana","email":"ana@example.com","password":"password123"}`, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRegisterEndpointValidation(t *testing.T) {
	e := newTestServer(t)

	cases := []struct {
		name string
		body string
	}{
		{"bad email", `{"name":"Ana","email":"not-an-email","password":"password123"}`},
		{"short password", `{"name":"Ana","email":"ana@example.com","password":"short"}`},
		{"missing name", `{"email":"ana@example.com","password":"password123"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(e, http.MethodPost, "/api/auth/register", tc.body, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestLoginEndpoint(t *testing.T) {
	e := newTestServer(t)
	registerUser(t, e)

	rec := doJSON(e, http.MethodPost, "/api/auth/login",
		`{"email":"ana@example.com","password":"password123"}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(e, http.MethodPost, "/api/auth/login",
		`{"email":"ana@example.com","password":"wrong-password"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(e, http.MethodPost, "/api/auth/login",
		`{"email":"nobody@example.com","password":"password123"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefreshEndpoint(t *testing.T) {
	e := newTestServer(t)
	_, refresh := registerUser(t, e)

	rec := doJSON(e, http.MethodPost, "/api/auth/refresh",
		fmt.Sprintf(`{"refresh_token":%q}`, refresh), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Replay of the rotated-out token.
	rec = doJSON(e, http.MethodPost, "/api/auth/refresh",
		fmt.Sprintf(`{"refresh_token":%q}`, refresh), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutEndpoint(t *testing.T) {
	e := newTestServer(t)
	access, refresh := registerUser(t, e)

	header := http.Header{}
	header.Set(echo.HeaderAuthorization, "Bearer "+access)
	rec := doJSON(e, http.MethodPost, "/api/auth/logout",
		fmt.Sprintf(`{"refresh_token":%q}`, refresh), header)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok":true`)

	// Refresh with the revoked token fails.
	rec = doJSON(e, http.MethodPost, "/api/auth/refresh",
		fmt.Sprintf(`{"refresh_token":%q}`, refresh), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// The denylisted access token no longer opens /me.
	rec = doJSON(e, http.MethodGet, "/api/auth/me", "", header)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutEndpointRequiresToken(t *testing.T) {
	e := newTestServer(t)
	registerUser(t, e)

	rec := doJSON(e, http.MethodPost, "/api/auth/logout", `{"refresh_token":""}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMeEndpoint(t *testing.T) {
	e := newTestServer(t)
	access, _ := registerUser(t, e)

	header := http.Header{}
	header.Set(echo.HeaderAuthorization, "Bearer "+access)
	rec := doJSON(e, http.MethodGet, "/api/auth/me", "", header)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"email":"ana@example.com"`)

	rec = doJSON(e, http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	header.Set(echo.HeaderAuthorization, "Bearer not-a-token")
	rec = doJSON(e, http.MethodGet, "/api/auth/me", "", header)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// unavailableUserRepository answers every call with a backend error.
type unavailableUserRepository struct{}

func (unavailableUserRepository) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	return nil, errors.New("connection refused")
}

func (unavailableUserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return nil, errors.New("connection refused")
}

func (unavailableUserRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return nil, errors.New("connection refused")
}

func TestStorageOutageAnswers503(t *testing.T) {
	e := newTestServerWith(t, unavailableUserRepository{}, memory.NewTokenRepository())

	rec := doJSON(e, http.MethodPost, "/api/auth/login",
		`{"email":"ana@example.com","password":"password123"}`, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "service temporarily unavailable")

	// The outage is not reported as a credential or duplicate problem.
	rec = doJSON(e, http.MethodPost, "/api/auth/register",
		`{"name":"Ana","email":"ana@example.com","password":"password123"}`, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
