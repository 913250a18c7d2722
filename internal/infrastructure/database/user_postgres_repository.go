package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domainErrors "github.com/aviary-platform/auth-service/internal/domain/errors"
	"github.com/aviary-platform/auth-service/internal/domain/models"
	"github.com/aviary-platform/auth-service/internal/domain/repository"
)

const userColumns = `
	id, email, email_normalized, password_hash, first_name, last_name,
	verified, is_active, two_factor_enabled, failed_attempts, locked_until,
	last_login_ip, is_staff, is_superuser, created_at, updated_at,
	last_activity_at`

type pgxUserRepository struct {
	pool *pgxpool.Pool
}

func NewPgxUserRepository(pool *pgxpool.Pool) repository.UserRepository {
	return &pgxUserRepository{pool: pool}
}

func (r *pgxUserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`
	_, err := conn(ctx, r.pool).Exec(ctx, query,
		user.ID, user.Email, user.EmailNormalized, user.PasswordHash,
		user.FirstName, user.LastName, user.Verified, user.IsActive,
		user.TwoFactorEnabled, user.FailedAttempts, user.LockedUntil,
		user.LastLoginIP, user.IsStaff, user.IsSuperuser,
		user.CreatedAt, user.UpdatedAt, user.LastActivityAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domainErrors.ErrEmailExists
		}
		return storageErr("create user", err)
	}
	return nil
}

func (r *pgxUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanOne(conn(ctx, r.pool).QueryRow(ctx, query, id))
}

func (r *pgxUserRepository) FindByEmail(ctx context.Context, emailNormalized string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email_normalized = $1`
	return r.scanOne(conn(ctx, r.pool).QueryRow(ctx, query, emailNormalized))
}

func (r *pgxUserRepository) Update(ctx context.Context, id uuid.UUID, patch models.UserPatch) (*models.User, error) {
	var (
		sets []string
		args []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.PasswordHash != nil {
		add("password_hash", *patch.PasswordHash)
	}
	if patch.Verified != nil {
		add("verified", *patch.Verified)
	}
	if patch.IsActive != nil {
		add("is_active", *patch.IsActive)
	}
	if patch.TwoFactorEnabled != nil {
		add("two_factor_enabled", *patch.TwoFactorEnabled)
	}
	if patch.LastLoginIP != nil {
		add("last_login_ip", *patch.LastLoginIP)
	}
	if patch.LastActivityAt != nil {
		add("last_activity_at", *patch.LastActivityAt)
	}
	if len(sets) == 0 {
		return r.FindByID(ctx, id)
	}
	sets = append(sets, "updated_at = now()")
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d RETURNING `+userColumns,
		strings.Join(sets, ", "), len(args))
	return r.scanOne(conn(ctx, r.pool).QueryRow(ctx, query, args...))
}

func (r *pgxUserRepository) IncrementFailedAttempts(ctx context.Context, id uuid.UUID) (int, error) {
	query := `
		UPDATE users
		SET failed_attempts = failed_attempts + 1, updated_at = now()
		WHERE id = $1
		RETURNING failed_attempts`
	var count int
	err := conn(ctx, r.pool).QueryRow(ctx, query, id).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domainErrors.ErrUserNotFound
		}
		return 0, storageErr("increment failed attempts", err)
	}
	return count, nil
}

func (r *pgxUserRepository) SetLockout(ctx context.Context, id uuid.UUID, until time.Time) error {
	query := `UPDATE users SET locked_until = $2, updated_at = now() WHERE id = $1`
	tag, err := conn(ctx, r.pool).Exec(ctx, query, id, until)
	if err != nil {
		return storageErr("set lockout", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrUserNotFound
	}
	return nil
}

func (r *pgxUserRepository) ResetLockout(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE users
		SET failed_attempts = 0, locked_until = NULL, updated_at = now()
		WHERE id = $1`
	tag, err := conn(ctx, r.pool).Exec(ctx, query, id)
	if err != nil {
		return storageErr("reset lockout", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrUserNotFound
	}
	return nil
}

func (r *pgxUserRepository) scanOne(row pgx.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID, &user.Email, &user.EmailNormalized, &user.PasswordHash,
		&user.FirstName, &user.LastName, &user.Verified, &user.IsActive,
		&user.TwoFactorEnabled, &user.FailedAttempts, &user.LockedUntil,
		&user.LastLoginIP, &user.IsStaff, &user.IsSuperuser,
		&user.CreatedAt, &user.UpdatedAt, &user.LastActivityAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrUserNotFound
		}
		return nil, storageErr("scan user", err)
	}
	return user, nil
}
