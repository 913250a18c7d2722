package database

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aviary-platform/auth-service/internal/domain/models"
	"github.com/aviary-platform/auth-service/internal/domain/repository"
)

type pgxBlacklistRepository struct {
	pool *pgxpool.Pool
}

func NewPgxBlacklistRepository(pool *pgxpool.Pool) repository.BlacklistRepository {
	return &pgxBlacklistRepository{pool: pool}
}

// Add relies on the primary key: of two concurrent inserts for the same jti
// exactly one reports a new row.
func (r *pgxBlacklistRepository) Add(ctx context.Context, entry models.BlacklistEntry) (bool, error) {
	query := `
		INSERT INTO token_blacklist (jti, blacklisted_at, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (jti) DO NOTHING`
	tag, err := conn(ctx, r.pool).Exec(ctx, query,
		entry.JTI, entry.BlacklistedAt, entry.ExpiresAt)
	if err != nil {
		return false, storageErr("blacklist token", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *pgxBlacklistRepository) Contains(ctx context.Context, jti string) (bool, error) {
	var one int
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT 1 FROM token_blacklist WHERE jti = $1`, jti).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, storageErr("check blacklist", err)
	}
	return true, nil
}

func (r *pgxBlacklistRepository) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := conn(ctx, r.pool).Exec(ctx,
		`DELETE FROM token_blacklist WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, storageErr("purge blacklist", err)
	}
	return int(tag.RowsAffected()), nil
}

var _ repository.BlacklistRepository = (*pgxBlacklistRepository)(nil)
