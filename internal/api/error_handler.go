package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/diony/gallery-auth/internal/service"
	"github.com/diony/gallery-auth/internal/storage"
)

type errorResponse struct {
	Reason string `json:"reason"`
}

// ErrorHandler maps the service error taxonomy onto HTTP statuses. Every
// entry is a terminal outcome of one request; nothing here is retried.
func ErrorHandler(log *zap.SugaredLogger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := statusForError(err)

		if status == http.StatusInternalServerError || status == http.StatusServiceUnavailable {
			log.Errorw("request failed", "error", err, "uri", c.Request().RequestURI)
		}

		var he *echo.HTTPError
		if errors.As(err, &he) {
			reason, ok := he.Message.(string)
			if !ok {
				reason = http.StatusText(he.Code)
			}
			if jerr := c.JSON(he.Code, errorResponse{Reason: reason}); jerr != nil {
				log.Errorw("failed to write json response", "error", jerr)
			}
			return
		}

		reason := err.Error()
		if status == http.StatusInternalServerError {
			reason = "internal server error"
		}
		if status == http.StatusServiceUnavailable {
			reason = "service temporarily unavailable"
		}
		if jerr := c.JSON(status, errorResponse{Reason: reason}); jerr != nil {
			log.Errorw("failed to write json response", "error", jerr)
		}
	}
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, service.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, service.ErrMissingToken):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidRefreshToken),
		errors.Is(err, service.ErrTokenExpired),
		errors.Is(err, service.ErrTokenMalformed),
		errors.Is(err, service.ErrTokenSignature),
		errors.Is(err, service.ErrTokenDenied),
		errors.Is(err, service.ErrTokenInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, storage.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return he.Code
		}
		return http.StatusInternalServerError
	}
}
