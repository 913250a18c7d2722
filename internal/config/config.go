// Package config defines the immutable configuration the service is built
// from at boot. Values load from the environment (AUTH_ prefix) with an
// optional .env file for development.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config is assembled once at startup and passed by value afterwards.
type Config struct {
	Tokens   TokenConfig    `env-prefix:"AUTH_TOKEN_"`
	Lockout  LockoutConfig  `env-prefix:"AUTH_LOCKOUT_"`
	Sessions SessionConfig  `env-prefix:"AUTH_SESSION_"`
	TOTP     TOTPConfig     `env-prefix:"AUTH_TOTP_"`
	Password PasswordConfig `env-prefix:"AUTH_PASSWORD_"`
	Database DatabaseConfig `env-prefix:"AUTH_DB_"`
	Redis    RedisConfig    `env-prefix:"AUTH_REDIS_"`
	Logging  LoggingConfig  `env-prefix:"AUTH_LOG_"`
	Metrics  MetricsConfig  `env-prefix:"AUTH_METRICS_"`
	Janitor  JanitorConfig  `env-prefix:"AUTH_JANITOR_"`
}

// TokenConfig drives the token service.
type TokenConfig struct {
	SigningKey   string        `env:"SIGNING_KEY"`
	SigningAlgo  string        `env:"SIGNING_ALGO" env-default:"HS256"`
	AccessTTL    time.Duration `env:"ACCESS_TTL" env-default:"15m"`
	RefreshTTL   time.Duration `env:"REFRESH_TTL" env-default:"168h"`
	ChallengeTTL time.Duration `env:"CHALLENGE_TTL" env-default:"5m"`
	Issuer       string        `env:"ISSUER" env-default:"auth-service"`
}

// LockoutConfig drives the failed-attempt policy.
type LockoutConfig struct {
	MaxFailedAttempts int           `env:"MAX_FAILED_ATTEMPTS" env-default:"5"`
	LockWindow        time.Duration `env:"WINDOW" env-default:"15m"`
}

// SessionConfig drives the session registry.
type SessionConfig struct {
	TTL time.Duration `env:"TTL" env-default:"24h"`
}

// TOTPConfig drives the TOTP engine.
type TOTPConfig struct {
	IssuerName string `env:"ISSUER_NAME" env-default:"auth-service"`
	Period     uint   `env:"PERIOD" env-default:"30"`
	Digits     int    `env:"DIGITS" env-default:"6"`
	Window     uint   `env:"WINDOW" env-default:"1"`
}

// PasswordConfig drives the Argon2id hasher and the password policy.
type PasswordConfig struct {
	MinLength   int    `env:"MIN_LENGTH" env-default:"8"`
	Memory      uint32 `env:"ARGON_MEMORY" env-default:"65536"`
	Iterations  uint32 `env:"ARGON_ITERATIONS" env-default:"3"`
	Parallelism uint8  `env:"ARGON_PARALLELISM" env-default:"2"`
	SaltLength  uint32 `env:"ARGON_SALT_LENGTH" env-default:"16"`
	KeyLength   uint32 `env:"ARGON_KEY_LENGTH" env-default:"32"`
}

// DatabaseConfig points at PostgreSQL. An empty DSN selects the in-memory
// store.
type DatabaseConfig struct {
	DSN         string `env:"DSN"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" env-default:"true"`
}

// RedisConfig points at the blacklist cache. An empty address keeps the
// blacklist in the primary store.
type RedisConfig struct {
	Addr     string `env:"ADDR"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" env-default:"0"`
}

// LoggingConfig selects level and encoder.
type LoggingConfig struct {
	Level  string `env:"LEVEL" env-default:"info"`
	Format string `env:"FORMAT" env-default:"json"`
}

// MetricsConfig configures the prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `env:"ENABLED" env-default:"true"`
	Port    int  `env:"PORT" env-default:"9090"`
}

// JanitorConfig drives the background purge loops.
type JanitorConfig struct {
	Interval time.Duration `env:"INTERVAL" env-default:"10m"`
}

// Validate refuses configurations the service must not start with.
func (c Config) Validate() error {
	if len(c.Tokens.SigningKey) < 32 {
		return errors.New("token signing key must be at least 32 bytes")
	}
	if c.Tokens.SigningAlgo != "HS256" && c.Tokens.SigningAlgo != "HS384" && c.Tokens.SigningAlgo != "HS512" {
		return fmt.Errorf("unsupported signing algorithm %q", c.Tokens.SigningAlgo)
	}
	if c.Tokens.AccessTTL <= 0 || c.Tokens.AccessTTL > 24*time.Hour {
		return fmt.Errorf("access token ttl %s out of range", c.Tokens.AccessTTL)
	}
	if c.Tokens.RefreshTTL <= c.Tokens.AccessTTL {
		return errors.New("refresh token ttl must exceed access token ttl")
	}
	if c.Tokens.ChallengeTTL <= 0 || c.Tokens.ChallengeTTL > time.Hour {
		return fmt.Errorf("2fa challenge ttl %s out of range", c.Tokens.ChallengeTTL)
	}
	if c.Lockout.MaxFailedAttempts < 1 {
		return errors.New("max failed attempts must be at least 1")
	}
	if c.Lockout.LockWindow <= 0 {
		return errors.New("lockout window must be positive")
	}
	if c.Sessions.TTL <= 0 {
		return errors.New("session ttl must be positive")
	}
	if c.Password.MinLength < 8 {
		return errors.New("password minimum length below 8 is not permitted")
	}
	if c.TOTP.Digits != 6 && c.TOTP.Digits != 8 {
		return fmt.Errorf("totp digits must be 6 or 8, got %d", c.TOTP.Digits)
	}
	return nil
}
