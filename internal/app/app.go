// Package app assembles the authentication core from configuration:
// storage, crypto engines, services and the background janitor. Transports
// embed an App and talk to App.Auth.
package app

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/aviary-platform/auth-service/internal/clockwork"
	"github.com/aviary-platform/auth-service/internal/config"
	"github.com/aviary-platform/auth-service/internal/domain/repository"
	"github.com/aviary-platform/auth-service/internal/infrastructure/database"
	"github.com/aviary-platform/auth-service/internal/infrastructure/memory"
	"github.com/aviary-platform/auth-service/internal/infrastructure/redisrepo"
	"github.com/aviary-platform/auth-service/internal/infrastructure/security"
	"github.com/aviary-platform/auth-service/internal/logger"
	"github.com/aviary-platform/auth-service/internal/service"
	"github.com/aviary-platform/auth-service/migrations"
)

// App is the assembled authentication core.
type App struct {
	Auth    *service.AuthService
	Tokens  *service.TokenService
	Janitor *service.Janitor

	closers []func()
}

// New builds an App from configuration. With an empty database DSN the core
// runs on the in-memory store; with an empty redis address the blacklist
// lives in the primary store.
func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	app := &App{}
	clock := clockwork.RealClock{}
	rng := clockwork.RealRNG{}

	var (
		users      repository.UserRepository
		twoFactors repository.TwoFactorRepository
		sessions   repository.SessionRepository
		blacklist  repository.BlacklistRepository
		txManager  repository.TxManager
	)

	if cfg.Database.DSN != "" {
		if cfg.Database.AutoMigrate {
			if err := migrations.Up(cfg.Database.DSN); err != nil {
				return nil, err
			}
			log.Info("migrations applied")
		}
		pool, err := database.NewPool(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, pool.Close)

		users = database.NewPgxUserRepository(pool)
		twoFactors = database.NewPgxTwoFactorRepository(pool)
		sessions = database.NewPgxSessionRepository(pool)
		blacklist = database.NewPgxBlacklistRepository(pool)
		txManager = database.NewTxManager(pool)
		log.Info("using postgresql storage")
	} else {
		store := memory.NewStore()
		users = store.Users()
		twoFactors = store.TwoFactor()
		sessions = store.Sessions()
		blacklist = store.Blacklist()
		txManager = store
		log.Warn("no database configured, using in-memory storage")
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			app.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		app.closers = append(app.closers, func() { _ = client.Close() })
		blacklist = redisrepo.NewBlacklist(client, clock)
		log.Info("using redis token blacklist", zap.String("addr", cfg.Redis.Addr))
	}

	hasher, err := security.NewPasswordHasher(security.Argon2idParams{
		Memory:      cfg.Password.Memory,
		Iterations:  cfg.Password.Iterations,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	}, rng)
	if err != nil {
		app.Close()
		return nil, err
	}

	totpEngine, err := security.NewTOTPEngine(security.TOTPOptions{
		Issuer: cfg.TOTP.IssuerName,
		Period: cfg.TOTP.Period,
		Digits: cfg.TOTP.Digits,
		Skew:   cfg.TOTP.Window,
	}, rng)
	if err != nil {
		app.Close()
		return nil, err
	}

	tokens, err := service.NewTokenService(cfg.Tokens, blacklist, clock, logger.WithComponent(log, "tokens"))
	if err != nil {
		app.Close()
		return nil, err
	}
	sessionRegistry := service.NewSessionRegistry(cfg.Sessions, sessions, clock, rng, logger.WithComponent(log, "sessions"))
	lockout := service.NewLockoutPolicy(cfg.Lockout, users, clock, logger.WithComponent(log, "lockout"))

	app.Tokens = tokens
	app.Auth = service.NewAuthService(cfg, users, twoFactors, txManager,
		hasher, totpEngine, tokens, sessionRegistry, lockout, clock,
		logger.WithComponent(log, "auth"))
	app.Janitor = service.NewJanitor(cfg.Janitor.Interval, sessions, blacklist, clock,
		logger.WithComponent(log, "janitor"))
	return app, nil
}

// Close releases storage connections.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
