package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aviary-platform/auth-service/internal/clockwork"
	"github.com/aviary-platform/auth-service/internal/config"
	"github.com/aviary-platform/auth-service/internal/domain/models"
	"github.com/aviary-platform/auth-service/internal/infrastructure/memory"
	"github.com/aviary-platform/auth-service/internal/infrastructure/security"
)

const (
	testSigningKey = "0123456789abcdef0123456789abcdef"
	testPassword   = "correct horse battery staple"
)

var testClient = models.ClientInfo{
	RemoteAddr: "203.0.113.7:51234",
	UserAgent:  "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
}

type fixture struct {
	cfg      config.Config
	clock    *clockwork.FakeClock
	store    *memory.Store
	totp     *security.TOTPEngine
	tokens   *TokenService
	sessions *SessionRegistry
	lockout  *LockoutPolicy
	auth     *AuthService
	janitor  *Janitor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := config.Config{
		Tokens: config.TokenConfig{
			SigningKey:   testSigningKey,
			SigningAlgo:  "HS256",
			AccessTTL:    15 * time.Minute,
			RefreshTTL:   7 * 24 * time.Hour,
			ChallengeTTL: 5 * time.Minute,
			Issuer:       "auth-service",
		},
		Lockout: config.LockoutConfig{
			MaxFailedAttempts: 5,
			LockWindow:        15 * time.Minute,
		},
		Sessions: config.SessionConfig{TTL: 24 * time.Hour},
		TOTP: config.TOTPConfig{
			IssuerName: "aviary",
			Period:     30,
			Digits:     6,
			Window:     1,
		},
		Password: config.PasswordConfig{
			MinLength:   8,
			Memory:      8 * 1024,
			Iterations:  1,
			Parallelism: 1,
			SaltLength:  16,
			KeyLength:   32,
		},
		Janitor: config.JanitorConfig{Interval: 10 * time.Minute},
	}

	clock := clockwork.NewFakeClock(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC))
	rng := clockwork.RealRNG{}
	log := zap.NewNop()
	store := memory.NewStore()

	hasher, err := security.NewPasswordHasher(security.Argon2idParams{
		Memory:      cfg.Password.Memory,
		Iterations:  cfg.Password.Iterations,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	}, rng)
	require.NoError(t, err)

	totpEngine, err := security.NewTOTPEngine(security.TOTPOptions{
		Issuer: cfg.TOTP.IssuerName,
		Period: cfg.TOTP.Period,
		Digits: cfg.TOTP.Digits,
		Skew:   cfg.TOTP.Window,
	}, rng)
	require.NoError(t, err)

	tokens, err := NewTokenService(cfg.Tokens, store.Blacklist(), clock, log)
	require.NoError(t, err)

	sessions := NewSessionRegistry(cfg.Sessions, store.Sessions(), clock, rng, log)
	lockout := NewLockoutPolicy(cfg.Lockout, store.Users(), clock, log)
	auth := NewAuthService(cfg, store.Users(), store.TwoFactor(), store,
		hasher, totpEngine, tokens, sessions, lockout, clock, log)
	janitor := NewJanitor(cfg.Janitor.Interval, store.Sessions(), store.Blacklist(), clock, log)

	return &fixture{
		cfg:      cfg,
		clock:    clock,
		store:    store,
		totp:     totpEngine,
		tokens:   tokens,
		sessions: sessions,
		lockout:  lockout,
		auth:     auth,
		janitor:  janitor,
	}
}

func (f *fixture) register(t *testing.T, email string) *models.AuthResult {
	t.Helper()
	result, err := f.auth.Register(context.Background(), models.RegisterRequest{
		Email:     email,
		Password:  testPassword,
		FirstName: "Rin",
		LastName:  "Ayanami",
	}, testClient)
	require.NoError(t, err)
	return result
}
