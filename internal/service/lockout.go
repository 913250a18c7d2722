package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aviary-platform/auth-service/internal/clockwork"
	"github.com/aviary-platform/auth-service/internal/config"
	domainErrors "github.com/aviary-platform/auth-service/internal/domain/errors"
	"github.com/aviary-platform/auth-service/internal/domain/models"
	"github.com/aviary-platform/auth-service/internal/domain/repository"
)

// LockoutPolicy enforces the adaptive lockout rules: too many consecutive
// password failures lock the account for a fixed window. The failure counter
// survives the lock and resets only on a fully successful authentication.
type LockoutPolicy struct {
	cfg    config.LockoutConfig
	users  repository.UserRepository
	clock  clockwork.Clock
	logger *zap.Logger
}

func NewLockoutPolicy(
	cfg config.LockoutConfig,
	users repository.UserRepository,
	clock clockwork.Clock,
	logger *zap.Logger,
) *LockoutPolicy {
	return &LockoutPolicy{cfg: cfg, users: users, clock: clock, logger: logger}
}

// Check returns a LockedError while the account is inside a lock window.
func (p *LockoutPolicy) Check(user *models.User) error {
	if user.IsLocked(p.clock.Now()) {
		return &domainErrors.LockedError{Until: *user.LockedUntil}
	}
	return nil
}

// RecordFailure bumps the failure counter and arms the lock when the counter
// reaches the threshold. It returns true when this failure locked the
// account.
func (p *LockoutPolicy) RecordFailure(ctx context.Context, userID uuid.UUID) (bool, error) {
	count, err := p.users.IncrementFailedAttempts(ctx, userID)
	if err != nil {
		return false, err
	}
	if count < p.cfg.MaxFailedAttempts {
		return false, nil
	}
	until := p.clock.Now().Add(p.cfg.LockWindow)
	if err := p.users.SetLockout(ctx, userID, until); err != nil {
		return false, err
	}
	p.logger.Warn("account locked after repeated failures",
		zap.String("user_id", userID.String()),
		zap.Int("failed_attempts", count),
		zap.Time("locked_until", until))
	return true, nil
}

// RecordSuccess clears the failure counter and any active lock.
func (p *LockoutPolicy) RecordSuccess(ctx context.Context, userID uuid.UUID) error {
	return p.users.ResetLockout(ctx, userID)
}
