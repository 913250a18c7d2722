package memory

import (
	"context"
	"time"

	"github.com/aviary-platform/auth-service/internal/domain/models"
	"github.com/aviary-platform/auth-service/internal/domain/repository"
)

type blacklistRepo struct{ s *Store }

func (r blacklistRepo) Add(ctx context.Context, entry models.BlacklistEntry) (bool, error) {
	defer r.s.lock(ctx)()

	if _, exists := r.s.blacklist[entry.JTI]; exists {
		return false, nil
	}
	r.s.blacklist[entry.JTI] = entry
	return true, nil
}

func (r blacklistRepo) Contains(ctx context.Context, jti string) (bool, error) {
	defer r.s.lock(ctx)()

	_, ok := r.s.blacklist[jti]
	return ok, nil
}

func (r blacklistRepo) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	defer r.s.lock(ctx)()

	n := 0
	for jti, entry := range r.s.blacklist {
		if !now.Before(entry.ExpiresAt) {
			delete(r.s.blacklist, jti)
			n++
		}
	}
	return n, nil
}

var _ repository.BlacklistRepository = blacklistRepo{}
