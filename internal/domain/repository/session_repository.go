package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/aviary-platform/auth-service/internal/domain/models"
)

// SessionRepository persists device-bound sessions keyed by their opaque
// session key.
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error

	// Find returns the session, or domainErrors.ErrSessionNotFound.
	Find(ctx context.Context, key string) (*models.Session, error)

	FindActiveByUser(ctx context.Context, userID uuid.UUID) ([]*models.Session, error)

	// UpdateActivity moves last_activity_at forward. Timestamps earlier than
	// the stored value are ignored.
	UpdateActivity(ctx context.Context, key string, at time.Time) error

	// Extend shifts expires_at.
	Extend(ctx context.Context, key string, expiresAt time.Time) error

	// Deactivate marks the session inactive. Idempotent.
	Deactivate(ctx context.Context, key string) error

	// DeactivateAllForUser deactivates every active session of a user except
	// exceptKey (pass "" for all). Returns the number deactivated.
	DeactivateAllForUser(ctx context.Context, userID uuid.UUID, exceptKey string) (int, error)

	// PurgeExpired removes sessions whose expiry has passed.
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}
