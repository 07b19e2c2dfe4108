package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/diony/gallery-auth/internal/models"
	"github.com/diony/gallery-auth/internal/service"
	"github.com/diony/gallery-auth/internal/util"
)

// BearerAuthMiddleware verifies the access token in the Authorization
// header (signature, expiry, denylist) and stores the subject and role
// in the echo context.
func BearerAuthMiddleware(tokens *service.TokenService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "authorization header is missing")
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header format")
			}

			userID, role, err := tokens.ParseAccessToken(c.Request().Context(), parts[1])
			if err != nil {
				return err
			}

			c.Set(models.MwUserIDKey, userID)
			c.Set(models.MwRoleKey, role)
			c.Set(models.MwTokenKey, parts[1])

			return next(c)
		}
	}
}

// RateLimiterMiddleware is a fixed-window counter in redis keyed by
// client IP and route. Exceeding the limit blocks the key for
// cfg.BlockTime. Redis being down fails open: losing rate limiting is
// better than losing login.
func RateLimiterMiddleware(rdb *redis.Client, cfg *util.RateLimiterConfig, log *zap.SugaredLogger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			key := fmt.Sprintf("ratelimit:%s:%s", c.Path(), c.RealIP())
			blockKey := key + ":blocked"

			blocked, err := rdb.Exists(ctx, blockKey).Result()
			if err != nil {
				log.Warnw("rate limiter unavailable", "error", err)
				return next(c)
			}
			if blocked > 0 {
				return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests")
			}

			// Counter and expiry travel in one pipeline so the key can
			// never end up as a counter without a TTL.
			pipe := rdb.TxPipeline()
			incr := pipe.Incr(ctx, key)
			pipe.ExpireNX(ctx, key, cfg.Interval)
			if _, err := pipe.Exec(ctx); err != nil {
				log.Warnw("rate limiter unavailable", "error", err)
				return next(c)
			}
			count := incr.Val()
			if count > int64(cfg.Limit) {
				if err := rdb.Set(ctx, blockKey, "1", cfg.BlockTime).Err(); err != nil {
					log.Warnw("failed to set rate limit block", "error", err)
				}
				return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests")
			}

			return next(c)
		}
	}
}

func GetLoggerMiddlewareConfig(a *API) echomiddleware.RequestLoggerConfig {
	return echomiddleware.RequestLoggerConfig{
		LogMethod: true,
		LogURI:    true,
		LogStatus: true,
		LogError:  true,

		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := []interface{}{
				"method", c.Request().Method,
				"uri", v.URI,
				"status", v.Status,
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
				a.log.Errorw("Request", fields...)
			} else {
				a.log.Infow("Request", fields...)
			}
			return nil
		},
	}
}
