package api

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/diony/gallery-auth/internal/controller"
	"github.com/diony/gallery-auth/internal/service"
	"github.com/diony/gallery-auth/internal/util"
)

const shutdownTimeout = 5 * time.Second

type API struct {
	server          *echo.Echo
	controller      *controller.Controller
	tokenService    *service.TokenService
	redisClient     *redis.Client
	rateLimiterCfg  *util.RateLimiterConfig
	log             *zap.SugaredLogger
	gracefulTimeout time.Duration
	cleanupFuncs    []func()
}

func NewAPI(
	c *controller.Controller,
	tokenService *service.TokenService,
	redisClient *redis.Client,
	rateLimiterCfg *util.RateLimiterConfig,
	sc *util.ServerConfig,
	l *zap.SugaredLogger,
	cleanupFuncs []func(),
) *API {
	e := echo.New()

	e.Server.Addr = sc.ServerAddr
	e.Server.WriteTimeout = sc.WriteTimeout
	e.Server.ReadTimeout = sc.ReadTimeout
	e.Server.IdleTimeout = sc.IdleTimeout
	e.HTTPErrorHandler = ErrorHandler(l)
	e.Validator = NewRequestValidator()

	return &API{
		server:          e,
		controller:      c,
		tokenService:    tokenService,
		redisClient:     redisClient,
		rateLimiterCfg:  rateLimiterCfg,
		log:             l,
		gracefulTimeout: sc.GracefulTimeout,
		cleanupFuncs:    cleanupFuncs,
	}
}

func (a *API) Run(ctxBackground context.Context) {
	ctx, stop := signal.NotifyContext(ctxBackground, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.server.Use(echomiddleware.RequestLoggerWithConfig(GetLoggerMiddlewareConfig(a)))

	a.RegisterRoutes()

	a.ListenGracefulShutdown(ctx)
}

// RegisterRoutes wires the auth endpoints. Login and refresh sit behind
// the rate limiter because both feed brute-force attempts; /me sits
// behind the bearer middleware to exercise the access-token path.
func (a *API) RegisterRoutes() {
	limited := RateLimiterMiddleware(a.redisClient, a.rateLimiterCfg, a.log)

	g := a.server.Group("/api")
	g.GET("/ping", a.controller.CheckServer)

	auth := g.Group("/auth")
	auth.POST("/register", a.controller.Register)
	auth.POST("/login", a.controller.Login, limited)
	auth.POST("/refresh", a.controller.Refresh, limited)
	auth.POST("/logout", a.controller.Logout)
	auth.GET("/me", a.controller.Me, BearerAuthMiddleware(a.tokenService))
}

func (a *API) ListenGracefulShutdown(ctx context.Context) {
	go func() {
		err := a.server.Start(a.server.Server.Addr)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()
	a.log.Infof("Listening on: %s", a.server.Server.Addr)

	<-ctx.Done()
	a.log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := a.server.Shutdown(shutdownCtx)
	if err != nil {
		a.log.Errorf("shutdown: %v", err)
	}

	for _, cleanup := range a.cleanupFuncs {
		cleanup()
	}

	longShutdown := make(chan struct{}, 1)

	go func() {
		time.Sleep(a.gracefulTimeout)
		longShutdown <- struct{}{}
	}()

	select {
	case <-shutdownCtx.Done():
		if errors.Is(ctx.Err(), context.Canceled) {
			a.log.Info("server shutdown completed")
		} else {
			a.log.Errorf("server shutdown: %v", ctx.Err())
		}
	case <-longShutdown:
		a.log.Infof("finished")
	}
}
