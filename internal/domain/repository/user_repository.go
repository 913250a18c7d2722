// Package repository declares the persistence contract of the auth core.
// Implementations live under internal/infrastructure; every operation is
// atomic on its own, and multi-entity mutations run inside TxManager.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/aviary-platform/auth-service/internal/domain/models"
)

// UserRepository persists user records. Lookups return
// domainErrors.ErrUserNotFound when no row matches.
type UserRepository interface {
	// Create inserts a new user. Returns domainErrors.ErrEmailExists when
	// the normalized email is already taken.
	Create(ctx context.Context, user *models.User) error

	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)

	// FindByEmail looks up by the fully lowercased email form.
	FindByEmail(ctx context.Context, emailNormalized string) (*models.User, error)

	// Update applies the non-nil fields of patch and returns the updated
	// record.
	Update(ctx context.Context, id uuid.UUID, patch models.UserPatch) (*models.User, error)

	// IncrementFailedAttempts adds one to the failure counter and returns
	// the new count. The increment is serialized per user.
	IncrementFailedAttempts(ctx context.Context, id uuid.UUID) (int, error)

	// SetLockout arms the lockout window. The failure counter is kept.
	SetLockout(ctx context.Context, id uuid.UUID, until time.Time) error

	// ResetLockout zeroes the failure counter and clears locked_until.
	ResetLockout(ctx context.Context, id uuid.UUID) error
}
