package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/aviary-platform/auth-service/internal/clockwork"
	"github.com/aviary-platform/auth-service/internal/domain/repository"
	"github.com/aviary-platform/auth-service/internal/metrics"
)

// Janitor periodically removes expired sessions and blacklist entries so the
// stores do not grow without bound.
type Janitor struct {
	interval  time.Duration
	sessions  repository.SessionRepository
	blacklist repository.BlacklistRepository
	clock     clockwork.Clock
	logger    *zap.Logger
}

func NewJanitor(
	interval time.Duration,
	sessions repository.SessionRepository,
	blacklist repository.BlacklistRepository,
	clock clockwork.Clock,
	logger *zap.Logger,
) *Janitor {
	return &Janitor{
		interval:  interval,
		sessions:  sessions,
		blacklist: blacklist,
		clock:     clock,
		logger:    logger,
	}
}

// Run sweeps on the configured interval until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Sweep(ctx)
		}
	}
}

// Sweep runs one cleanup pass. Errors are logged, not returned; the next
// tick retries.
func (j *Janitor) Sweep(ctx context.Context) {
	now := j.clock.Now()

	if n, err := j.sessions.PurgeExpired(ctx, now); err != nil {
		j.logger.Error("session purge failed", zap.Error(err))
	} else if n > 0 {
		metrics.SessionsPurgedTotal.Add(float64(n))
		j.logger.Debug("purged expired sessions", zap.Int("count", n))
	}

	if n, err := j.blacklist.PurgeExpired(ctx, now); err != nil {
		j.logger.Error("blacklist purge failed", zap.Error(err))
	} else if n > 0 {
		metrics.BlacklistPurgedTotal.Add(float64(n))
		j.logger.Debug("purged expired blacklist entries", zap.Int("count", n))
	}
}
