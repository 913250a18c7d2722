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

const sessionColumns = `
	key, user_id, device_info, ip_address, user_agent,
	created_at, last_activity_at, expires_at, active`

type pgxSessionRepository struct {
	pool *pgxpool.Pool
}

func NewPgxSessionRepository(pool *pgxpool.Pool) repository.SessionRepository {
	return &pgxSessionRepository{pool: pool}
}

func (r *pgxSessionRepository) Create(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := conn(ctx, r.pool).Exec(ctx, query,
		session.Key, session.UserID, session.DeviceInfo, session.IPAddress,
		session.UserAgent, session.CreatedAt, session.LastActivityAt,
		session.ExpiresAt, session.Active,
	)
	if err != nil {
		return storageErr("create session", err)
	}
	return nil
}

func (r *pgxSessionRepository) Find(ctx context.Context, key string) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE key = $1`
	return scanSession(conn(ctx, r.pool).QueryRow(ctx, query, key))
}

func (r *pgxSessionRepository) FindActiveByUser(ctx context.Context, userID uuid.UUID) ([]*models.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE user_id = $1 AND active
		ORDER BY last_activity_at DESC`
	rows, err := conn(ctx, r.pool).Query(ctx, query, userID)
	if err != nil {
		return nil, storageErr("list sessions", err)
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list sessions", err)
	}
	return sessions, nil
}

func (r *pgxSessionRepository) UpdateActivity(ctx context.Context, key string, at time.Time) error {
	// The guard keeps last_activity_at monotone under out-of-order writes.
	query := `
		UPDATE sessions SET last_activity_at = $2
		WHERE key = $1 AND last_activity_at < $2`
	_, err := conn(ctx, r.pool).Exec(ctx, query, key, at)
	if err != nil {
		return storageErr("update session activity", err)
	}
	return nil
}

func (r *pgxSessionRepository) Extend(ctx context.Context, key string, expiresAt time.Time) error {
	tag, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE sessions SET expires_at = $2 WHERE key = $1`, key, expiresAt)
	if err != nil {
		return storageErr("extend session", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrSessionNotFound
	}
	return nil
}

func (r *pgxSessionRepository) Deactivate(ctx context.Context, key string) error {
	_, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE sessions SET active = FALSE WHERE key = $1`, key)
	if err != nil {
		return storageErr("deactivate session", err)
	}
	return nil
}

func (r *pgxSessionRepository) DeactivateAllForUser(ctx context.Context, userID uuid.UUID, exceptKey string) (int, error) {
	query := `
		UPDATE sessions SET active = FALSE
		WHERE user_id = $1 AND active AND ($2 = '' OR key <> $2)`
	tag, err := conn(ctx, r.pool).Exec(ctx, query, userID, exceptKey)
	if err != nil {
		return 0, storageErr("deactivate sessions", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *pgxSessionRepository) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := conn(ctx, r.pool).Exec(ctx,
		`DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, storageErr("purge sessions", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanSession(row pgx.Row) (*models.Session, error) {
	session := &models.Session{}
	err := row.Scan(
		&session.Key, &session.UserID, &session.DeviceInfo, &session.IPAddress,
		&session.UserAgent, &session.CreatedAt, &session.LastActivityAt,
		&session.ExpiresAt, &session.Active,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrSessionNotFound
		}
		return nil, storageErr("scan session", err)
	}
	return session, nil
}
