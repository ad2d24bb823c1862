// @title           User Directory API
// @version         1.0
// @description     Multi-tenant user and address directory.
// @BasePath        /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
// @description                 Type "Bearer" followed by a space and the access token.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/99minutos/user-directory/internal/api"
	"github.com/99minutos/user-directory/internal/api/handler"
	"github.com/99minutos/user-directory/internal/core/ports"
	"github.com/99minutos/user-directory/internal/core/service"
	"github.com/99minutos/user-directory/internal/infrastructure/db/mongo"
	"github.com/99minutos/user-directory/internal/infrastructure/db/postgres"
	"github.com/99minutos/user-directory/internal/infrastructure/db/redis"
	"github.com/99minutos/user-directory/internal/infrastructure/queue"
	"github.com/99minutos/user-directory/internal/infrastructure/ratelimit"
	"github.com/99minutos/user-directory/internal/infrastructure/summarizer"
	"github.com/99minutos/user-directory/internal/pkg/config"
	"github.com/99minutos/user-directory/internal/pkg/password"
	"github.com/99minutos/user-directory/pkg/logger"
)

const sweepInterval = time.Minute

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: "user-directory",
	})

	boot := logger.Component("main")
	if err := run(ctx, cfg, log); err != nil {
		boot.Fatal().Err(err).Msg("server failed")
	}
	boot.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	health := map[string]handler.Pinger{}

	repo, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()
	health[cfg.Store.Driver] = repo

	g, gctx := errgroup.WithContext(ctx)

	var redisClient *goredis.Client
	if cfg.RateLimit.Backend == config.RateLimitRedis {
		redisClient, err = redis.Connect(ctx, redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		defer redisClient.Close()
		health["redis"] = handler.PingFunc(func(ctx context.Context) error {
			return redis.Ping(ctx, redisClient, time.Second)
		})
		log.Info().Str("addr", cfg.Redis.Addr).Msg("redis connected")
	}

	idLimiter, err := newLimiter(gctx, g, redisClient, cfg.RateLimit.MaxRequests, cfg.RateLimit.Window)
	if err != nil {
		return fmt.Errorf("id rate limiter: %w", err)
	}
	loginLimiter, err := newLimiter(gctx, g, redisClient, cfg.RateLimit.LoginMax, cfg.RateLimit.LoginWindow)
	if err != nil {
		return fmt.Errorf("login rate limiter: %w", err)
	}

	tokens, err := service.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, service.WithIssuer(cfg.Auth.JWTIssuer))
	if err != nil {
		return err
	}

	identity := service.NewIdentityService(repo, password.NewHasher(cfg.Auth.BcryptCost), log)
	limited := service.NewRateLimitedIdentityService(identity, idLimiter, log)
	importer := service.NewBulkImportService(limited, queue.NewDispatcher(0, log), 0, log)

	var sum ports.Summarizer
	if cfg.Summarizer.APIKey != "" {
		sum = summarizer.NewClient(summarizer.Config{
			APIKey:  cfg.Summarizer.APIKey,
			BaseURL: cfg.Summarizer.BaseURL,
			Model:   cfg.Summarizer.Model,
			Timeout: cfg.Summarizer.Timeout,
		})
	} else {
		log.Warn().Msg("OPENAI_API_KEY not set, /summarize disabled")
	}

	proxies, err := cfg.TrustedProxyNets()
	if err != nil {
		return err
	}

	e := api.NewRouter(api.Deps{
		Identity:     limited,
		Tokens:       tokens,
		Verifier:     tokens,
		Importer:     importer,
		Summarizer:   sum,
		LoginLimiter: loginLimiter,
		Health:       health,
		Log:          log,

		TrustedProxies: proxies,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Str("store", cfg.Store.Driver).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// openStore connects the configured backend and returns its repository.
func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (ports.IdentityRepository, func(), error) {
	switch cfg.Store.Driver {
	case config.StoreMongo:
		client, db, err := mongo.Connect(ctx, mongo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return nil, nil, err
		}
		repo := mongo.NewIdentityRepository(client, db)
		if err := repo.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.WithoutCancel(ctx))
			return nil, nil, fmt.Errorf("mongo indexes: %w", err)
		}
		log.Info().Str("database", cfg.Mongo.Database).Msg("mongo connected")
		return repo, func() { _ = client.Disconnect(context.Background()) }, nil
	default:
		pool, err := postgres.Connect(ctx, postgres.Config{URL: cfg.Postgres.URL, MaxConns: cfg.Postgres.MaxConns})
		if err != nil {
			return nil, nil, err
		}
		log.Info().Msg("postgres connected")
		return postgres.NewIdentityRepository(pool), pool.Close, nil
	}
}

// newLimiter builds a redis-backed limiter when client is set, otherwise an
// in-process one whose sweeper runs in g.
func newLimiter(ctx context.Context, g *errgroup.Group, client *goredis.Client, max int, window time.Duration) (ports.RateLimiter, error) {
	if client != nil {
		return redis.NewSlidingWindowLimiter(client, max, window)
	}
	l, err := ratelimit.NewSlidingWindow(ratelimit.Config{MaxRequests: max, Window: window})
	if err != nil {
		return nil, err
	}
	g.Go(func() error { return l.Run(ctx, sweepInterval) })
	return l, nil
}
