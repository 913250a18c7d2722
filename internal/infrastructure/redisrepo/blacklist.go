// Package redisrepo keeps the refresh token blacklist in Redis. Entries get
// a TTL equal to the remaining life of the revoked token, so Redis expiry
// does the janitor's work here.
package redisrepo

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/aviary-platform/auth-service/internal/clockwork"
	domainErrors "github.com/aviary-platform/auth-service/internal/domain/errors"
	"github.com/aviary-platform/auth-service/internal/domain/models"
	"github.com/aviary-platform/auth-service/internal/domain/repository"
)

const keyPrefix = "auth:blacklist:"

type Blacklist struct {
	client *redis.Client
	clock  clockwork.Clock
}

func NewBlacklist(client *redis.Client, clock clockwork.Clock) *Blacklist {
	return &Blacklist{client: client, clock: clock}
}

// Add uses SETNX: exactly one of any concurrent callers for the same jti
// observes the insert.
func (b *Blacklist) Add(ctx context.Context, entry models.BlacklistEntry) (bool, error) {
	ttl := entry.ExpiresAt.Sub(b.clock.Now())
	if ttl <= 0 {
		ttl = time.Second
	}
	inserted, err := b.client.SetNX(ctx, keyPrefix+entry.JTI, entry.BlacklistedAt.Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: redis setnx: %v", domainErrors.ErrStorageUnavailable, err)
	}
	return inserted, nil
}

func (b *Blacklist) Contains(ctx context.Context, jti string) (bool, error) {
	n, err := b.client.Exists(ctx, keyPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("%w: redis exists: %v", domainErrors.ErrStorageUnavailable, err)
	}
	return n > 0, nil
}

// PurgeExpired is a no-op: key TTLs already bound the set's size.
func (b *Blacklist) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}

var _ repository.BlacklistRepository = (*Blacklist)(nil)
