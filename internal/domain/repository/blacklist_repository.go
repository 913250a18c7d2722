package repository

import (
	"context"
	"time"

	"github.com/aviary-platform/auth-service/internal/domain/models"
)

// BlacklistRepository tracks revoked refresh token ids. Lookup is O(1)
// expected.
type BlacklistRepository interface {
	// Add inserts the entry if its jti is not already present. Returns true
	// when this call inserted it; concurrent callers for the same jti see
	// exactly one true.
	Add(ctx context.Context, entry models.BlacklistEntry) (bool, error)

	Contains(ctx context.Context, jti string) (bool, error)

	// PurgeExpired drops entries whose original token expiry has passed.
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}
