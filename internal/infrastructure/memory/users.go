package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	domainErrors "github.com/aviary-platform/auth-service/internal/domain/errors"
	"github.com/aviary-platform/auth-service/internal/domain/models"
	"github.com/aviary-platform/auth-service/internal/domain/repository"
)

type userRepo struct{ s *Store }

func (r userRepo) Create(ctx context.Context, user *models.User) error {
	defer r.s.lock(ctx)()

	if _, exists := r.s.emailIndex[user.EmailNormalized]; exists {
		return domainErrors.ErrEmailExists
	}
	r.s.users[user.ID] = cloneUser(user)
	r.s.emailIndex[user.EmailNormalized] = user.ID
	return nil
}

func (r userRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	defer r.s.lock(ctx)()

	u, ok := r.s.users[id]
	if !ok {
		return nil, domainErrors.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r userRepo) FindByEmail(ctx context.Context, emailNormalized string) (*models.User, error) {
	defer r.s.lock(ctx)()

	id, ok := r.s.emailIndex[emailNormalized]
	if !ok {
		return nil, domainErrors.ErrUserNotFound
	}
	return cloneUser(r.s.users[id]), nil
}

func (r userRepo) Update(ctx context.Context, id uuid.UUID, patch models.UserPatch) (*models.User, error) {
	defer r.s.lock(ctx)()

	u, ok := r.s.users[id]
	if !ok {
		return nil, domainErrors.ErrUserNotFound
	}
	if patch.PasswordHash != nil {
		u.PasswordHash = *patch.PasswordHash
	}
	if patch.Verified != nil {
		u.Verified = *patch.Verified
	}
	if patch.IsActive != nil {
		u.IsActive = *patch.IsActive
	}
	if patch.TwoFactorEnabled != nil {
		u.TwoFactorEnabled = *patch.TwoFactorEnabled
	}
	if patch.LastLoginIP != nil {
		u.LastLoginIP = *patch.LastLoginIP
	}
	if patch.LastActivityAt != nil && patch.LastActivityAt.After(u.LastActivityAt) {
		u.LastActivityAt = *patch.LastActivityAt
	}
	u.UpdatedAt = time.Now() // matches the SQL adapter's updated_at = now()
	return cloneUser(u), nil
}

func (r userRepo) IncrementFailedAttempts(ctx context.Context, id uuid.UUID) (int, error) {
	defer r.s.lock(ctx)()

	u, ok := r.s.users[id]
	if !ok {
		return 0, domainErrors.ErrUserNotFound
	}
	u.FailedAttempts++
	return u.FailedAttempts, nil
}

func (r userRepo) SetLockout(ctx context.Context, id uuid.UUID, until time.Time) error {
	defer r.s.lock(ctx)()

	u, ok := r.s.users[id]
	if !ok {
		return domainErrors.ErrUserNotFound
	}
	t := until
	u.LockedUntil = &t
	return nil
}

func (r userRepo) ResetLockout(ctx context.Context, id uuid.UUID) error {
	defer r.s.lock(ctx)()

	u, ok := r.s.users[id]
	if !ok {
		return domainErrors.ErrUserNotFound
	}
	u.FailedAttempts = 0
	u.LockedUntil = nil
	return nil
}

var _ repository.UserRepository = userRepo{}
