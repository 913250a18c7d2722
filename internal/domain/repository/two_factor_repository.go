package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/aviary-platform/auth-service/internal/domain/models"
)

// TwoFactorRepository persists the one-to-one TOTP records.
type TwoFactorRepository interface {
	// Get returns the record for the user, or domainErrors.ErrNotFound.
	Get(ctx context.Context, userID uuid.UUID) (*models.TwoFactor, error)

	// Upsert creates or fully replaces the record.
	Upsert(ctx context.Context, tf *models.TwoFactor) error

	// ConsumeBackupCode atomically removes the code digest from the user's
	// outstanding list. Returns true iff the digest was present; a given
	// digest is consumed by at most one caller.
	ConsumeBackupCode(ctx context.Context, userID uuid.UUID, codeHash string) (bool, error)

	// SetLastUsed records a successful two-factor verification.
	SetLastUsed(ctx context.Context, userID uuid.UUID, at time.Time) error

	// Delete removes the record entirely. Deleting a missing record is not
	// an error.
	Delete(ctx context.Context, userID uuid.UUID) error
}
