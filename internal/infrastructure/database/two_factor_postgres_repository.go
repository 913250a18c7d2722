package database

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domainErrors "github.com/aviary-platform/auth-service/internal/domain/errors"
	"github.com/aviary-platform/auth-service/internal/domain/models"
	"github.com/aviary-platform/auth-service/internal/domain/repository"
)

type pgxTwoFactorRepository struct {
	pool *pgxpool.Pool
}

func NewPgxTwoFactorRepository(pool *pgxpool.Pool) repository.TwoFactorRepository {
	return &pgxTwoFactorRepository{pool: pool}
}

func (r *pgxTwoFactorRepository) Get(ctx context.Context, userID uuid.UUID) (*models.TwoFactor, error) {
	query := `
		SELECT user_id, secret, backup_code_hashes, enabled, last_used_at,
		       created_at, updated_at
		FROM two_factor
		WHERE user_id = $1`
	tf := &models.TwoFactor{}
	err := conn(ctx, r.pool).QueryRow(ctx, query, userID).Scan(
		&tf.UserID, &tf.Secret, &tf.BackupCodeHashes, &tf.Enabled,
		&tf.LastUsedAt, &tf.CreatedAt, &tf.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrNotFound
		}
		return nil, storageErr("get two-factor record", err)
	}
	return tf, nil
}

func (r *pgxTwoFactorRepository) Upsert(ctx context.Context, tf *models.TwoFactor) error {
	query := `
		INSERT INTO two_factor (
			user_id, secret, backup_code_hashes, enabled, last_used_at,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			secret = EXCLUDED.secret,
			backup_code_hashes = EXCLUDED.backup_code_hashes,
			enabled = EXCLUDED.enabled,
			last_used_at = EXCLUDED.last_used_at,
			updated_at = EXCLUDED.updated_at`
	_, err := conn(ctx, r.pool).Exec(ctx, query,
		tf.UserID, tf.Secret, tf.BackupCodeHashes, tf.Enabled, tf.LastUsedAt,
		tf.CreatedAt, tf.UpdatedAt,
	)
	if err != nil {
		return storageErr("upsert two-factor record", err)
	}
	return nil
}

// ConsumeBackupCode removes the digest in one statement; the row-level lock
// taken by UPDATE guarantees a digest is consumed at most once even under
// concurrent attempts.
func (r *pgxTwoFactorRepository) ConsumeBackupCode(ctx context.Context, userID uuid.UUID, codeHash string) (bool, error) {
	query := `
		UPDATE two_factor
		SET backup_code_hashes = array_remove(backup_code_hashes, $2),
		    updated_at = now()
		WHERE user_id = $1 AND $2 = ANY(backup_code_hashes)`
	tag, err := conn(ctx, r.pool).Exec(ctx, query, userID, codeHash)
	if err != nil {
		return false, storageErr("consume backup code", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *pgxTwoFactorRepository) SetLastUsed(ctx context.Context, userID uuid.UUID, at time.Time) error {
	query := `UPDATE two_factor SET last_used_at = $2, updated_at = now() WHERE user_id = $1`
	_, err := conn(ctx, r.pool).Exec(ctx, query, userID, at)
	if err != nil {
		return storageErr("set two-factor last used", err)
	}
	return nil
}

func (r *pgxTwoFactorRepository) Delete(ctx context.Context, userID uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM two_factor WHERE user_id = $1`, userID)
	if err != nil {
		return storageErr("delete two-factor record", err)
	}
	return nil
}
