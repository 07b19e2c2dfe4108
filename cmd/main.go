package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/diony/gallery-auth/internal/api"
	"github.com/diony/gallery-auth/internal/controller"
	"github.com/diony/gallery-auth/internal/migrations"
	"github.com/diony/gallery-auth/internal/service"
	"github.com/diony/gallery-auth/internal/storage"
	"github.com/diony/gallery-auth/internal/storage/postgres"
	"github.com/diony/gallery-auth/internal/storage/redis"
	"github.com/diony/gallery-auth/internal/util"

	_ "github.com/lib/pq"
)

func main() {
	ctx := context.Background()
	logger := util.NewZapLogger()

	db, dbCleanup, err := util.NewDBConnection(logger)
	if err != nil {
		logger.Fatal(zap.Error(err))
	}
	if err := migrations.RunMigrations(db, logger); err != nil {
		logger.Fatal(zap.Error(err))
	}

	redisClient, redisCleanup, err := util.NewRedisClient(logger, util.NewRedisConfig())
	if err != nil {
		logger.Fatal(zap.Error(err))
	}

	var store storage.Storage = postgres.NewStorage(db)
	cleanupFuncs := []func(){dbCleanup, redisCleanup}

	denylist := redis.NewTokenDenylist(redisClient)
	passwordService := service.NewPasswordService(util.NewBcryptConfig())
	tokenService := service.NewTokenService(util.NewTokenConfig(), denylist)
	webhookService := service.NewWebhookService(logger, util.GetWebhookURL())
	authService := service.NewAuthService(passwordService, tokenService, store, store, webhookService, logger)

	controller := controller.NewController(logger, authService)

	apiServer := api.NewAPI(controller, tokenService, redisClient, util.NewRateLimiterConfig(), util.NewServerConfig(), logger, cleanupFuncs)
	apiServer.Run(ctx)
}
