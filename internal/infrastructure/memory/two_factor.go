package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	domainErrors "github.com/aviary-platform/auth-service/internal/domain/errors"
	"github.com/aviary-platform/auth-service/internal/domain/models"
	"github.com/aviary-platform/auth-service/internal/domain/repository"
)

type twoFactorRepo struct{ s *Store }

func (r twoFactorRepo) Get(ctx context.Context, userID uuid.UUID) (*models.TwoFactor, error) {
	defer r.s.lock(ctx)()

	tf, ok := r.s.twoFactors[userID]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	return cloneTwoFactor(tf), nil
}

func (r twoFactorRepo) Upsert(ctx context.Context, tf *models.TwoFactor) error {
	defer r.s.lock(ctx)()

	r.s.twoFactors[tf.UserID] = cloneTwoFactor(tf)
	return nil
}

func (r twoFactorRepo) ConsumeBackupCode(ctx context.Context, userID uuid.UUID, codeHash string) (bool, error) {
	defer r.s.lock(ctx)()

	tf, ok := r.s.twoFactors[userID]
	if !ok {
		return false, nil
	}
	for i, h := range tf.BackupCodeHashes {
		if h == codeHash {
			tf.BackupCodeHashes = append(tf.BackupCodeHashes[:i], tf.BackupCodeHashes[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (r twoFactorRepo) SetLastUsed(ctx context.Context, userID uuid.UUID, at time.Time) error {
	defer r.s.lock(ctx)()

	tf, ok := r.s.twoFactors[userID]
	if !ok {
		return domainErrors.ErrNotFound
	}
	t := at
	tf.LastUsedAt = &t
	tf.UpdatedAt = at
	return nil
}

func (r twoFactorRepo) Delete(ctx context.Context, userID uuid.UUID) error {
	defer r.s.lock(ctx)()

	delete(r.s.twoFactors, userID)
	return nil
}

var _ repository.TwoFactorRepository = twoFactorRepo{}
