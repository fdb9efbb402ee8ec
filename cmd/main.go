package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"

	api "github.com/vibeapp/server/internal/api/http"
	"github.com/vibeapp/server/internal/api/http/handler"
	"github.com/vibeapp/server/internal/api/http/middleware"
	"github.com/vibeapp/server/internal/audit"
	"github.com/vibeapp/server/internal/config"
	"github.com/vibeapp/server/internal/logger"
	"github.com/vibeapp/server/internal/observability"
	"github.com/vibeapp/server/internal/repository/postgres"
	redisrepo "github.com/vibeapp/server/internal/repository/redis"
	"github.com/vibeapp/server/internal/security"
	"github.com/vibeapp/server/internal/service"
	"github.com/vibeapp/server/internal/token"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	_ = godotenv.Load()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.New(cfg.LogLevel)

	if err := observability.InitSentry(cfg.Sentry.DSN, cfg.Sentry.Environment); err != nil {
		logger.Fatal("failed to initialize sentry", "error", err)
	}
	defer observability.FlushSentry()

	db, err := postgres.NewConnection(ctx, cfg.Database.DSN)
	if err != nil {
		logger.Fatal("failed to initialize storage", "error", err)
	}
	defer db.Close()

	redisClient := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	userRepo := postgres.NewUserRepository(db)
	refreshTokenRepo := postgres.NewRefreshTokenRepository(db)
	kvStore := redisrepo.NewStore(redisClient)

	tokenManager := token.NewJWT(cfg.JWT.Secret, cfg.JWT.AccessTTL(), cfg.JWT.RefreshTTL())
	attemptGuard := security.NewAttemptGuard(kvStore, cfg.Security.MaxLoginAttempts, cfg.Security.LockoutWindow)
	rateLimiter := security.NewRateLimiter(kvStore, cfg.Security.RateLimit, cfg.Security.RateWindow)
	blacklist := security.NewTokenBlacklist(kvStore)

	authService := service.NewAuth(userRepo, refreshTokenRepo, tokenManager, attemptGuard, blacklist, cfg.JWT.RefreshTTL(), logger)
	userService := service.NewUsers(userRepo, logger)
	recorder := audit.NewRecorder(audit.NewSlogSink(logger))

	authHandler := handler.NewAuth(authService, recorder, logger)
	userHandler := handler.NewUser(userService, recorder, logger)

	app := api.NewApp(
		authHandler,
		userHandler,
		middleware.RateLimit(rateLimiter, logger),
		middleware.Authenticate(authService),
	)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("Starting server on", "address", cfg.HTTP.Addr)
		if err := app.Listen(cfg.HTTP.Addr); err != nil {
			logger.Error("failed to start server", "error", err)
		}
	}()

	logAppVersion()

	<-ctx.Done()
	logger.Info("received interruption signal, shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", "error", err)
	}

	wg.Wait()
	logger.Info("shutdown complete")
}

func logAppVersion() {
	log.Printf("Build version: %s, build date: %s, build commit: %s", buildVersion, buildDate, buildCommit)
}
