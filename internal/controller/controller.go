package controller

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/diony/gallery-auth/internal/models"
	"github.com/diony/gallery-auth/internal/service"
)

type Controller struct {
	zapLogger   *zap.SugaredLogger
	authService *service.AuthService
}

func NewController(logger *zap.SugaredLogger, authService *service.AuthService) *Controller {
	return &Controller{
		zapLogger:   logger,
		authService: authService,
	}
}

// (POST /api/auth/register).
func (c *Controller) Register(ctx echo.Context) error {
	var req models.RegisterRequest
	if err := ctx.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := ctx.Validate(&req); err != nil {
		return err
	}

	user, pair, err := c.authService.Register(ctx.Request().Context(), req.Name, req.Email, req.Password)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusCreated, models.SessionResponse{
		User:         user,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

// (POST /api/auth/login).
func (c *Controller) Login(ctx echo.Context) error {
	var req models.LoginRequest
	if err := ctx.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := ctx.Validate(&req); err != nil {
		return err
	}

	user, pair, err := c.authService.Login(ctx.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, models.SessionResponse{
		User:         user,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

// (POST /api/auth/refresh).
func (c *Controller) Refresh(ctx echo.Context) error {
	var req models.RefreshRequest
	if err := ctx.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := ctx.Validate(&req); err != nil {
		return err
	}

	pair, err := c.authService.Refresh(ctx.Request().Context(), req.RefreshToken)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, pair)
}

// (POST /api/auth/logout).
// The access token of the pair rides along in the Authorization header
// when the client still has it, so it can be denylisted together with
// the refresh token.
func (c *Controller) Logout(ctx echo.Context) error {
	var req models.LogoutRequest
	if err := ctx.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	accessToken := bearerToken(ctx.Request().Header.Get(echo.HeaderAuthorization))

	if err := c.authService.Logout(ctx.Request().Context(), req.RefreshToken, accessToken); err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, models.LogoutResponse{OK: true})
}

// (GET /api/auth/me). Requires the bearer middleware.
func (c *Controller) Me(ctx echo.Context) error {
	userID, ok := ctx.Get(models.MwUserIDKey).(string)
	if !ok || userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
	}

	user, err := c.authService.UserByID(ctx.Request().Context(), userID)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, user)
}

// (GET /api/ping).
func (c *Controller) CheckServer(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, "ok")
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return header[len(prefix):]
	}
	return ""
}
