package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aviary-platform/auth-service/internal/clockwork"
	"github.com/aviary-platform/auth-service/internal/config"
	"github.com/aviary-platform/auth-service/internal/device"
	domainErrors "github.com/aviary-platform/auth-service/internal/domain/errors"
	"github.com/aviary-platform/auth-service/internal/domain/models"
	"github.com/aviary-platform/auth-service/internal/domain/repository"
	"github.com/aviary-platform/auth-service/internal/iputil"
)

const sessionKeyBytes = 32

// SessionRegistry manages device-bound sessions. Every successful
// authentication creates one; the key is an opaque 256-bit random value.
type SessionRegistry struct {
	cfg      config.SessionConfig
	sessions repository.SessionRepository
	clock    clockwork.Clock
	rng      clockwork.RNG
	logger   *zap.Logger
}

func NewSessionRegistry(
	cfg config.SessionConfig,
	sessions repository.SessionRepository,
	clock clockwork.Clock,
	rng clockwork.RNG,
	logger *zap.Logger,
) *SessionRegistry {
	return &SessionRegistry{cfg: cfg, sessions: sessions, clock: clock, rng: rng, logger: logger}
}

// Create opens a session for the user, binding the caller's device
// fingerprint and source address.
func (r *SessionRegistry) Create(ctx context.Context, userID uuid.UUID, client models.ClientInfo) (*models.Session, error) {
	raw, err := r.rng.Bytes(sessionKeyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to generate session key: %w", err)
	}
	now := r.clock.Now()
	session := &models.Session{
		Key:            base64.RawURLEncoding.EncodeToString(raw),
		UserID:         userID,
		DeviceInfo:     device.Parse(client.UserAgent).Map(),
		IPAddress:      iputil.ClientIP(client),
		UserAgent:      client.UserAgent,
		CreatedAt:      now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(r.cfg.TTL),
		Active:         true,
	}
	if err := r.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// Touch records activity on a session. Expired or deactivated sessions
// return ErrSessionNotFound.
func (r *SessionRegistry) Touch(ctx context.Context, key string) (*models.Session, error) {
	session, err := r.sessions.Find(ctx, key)
	if err != nil {
		return nil, err
	}
	now := r.clock.Now()
	if !session.Valid(now) {
		return nil, domainErrors.ErrSessionNotFound
	}
	if err := r.sessions.UpdateActivity(ctx, key, now); err != nil {
		return nil, err
	}
	session.LastActivityAt = now
	return session, nil
}

// Extend pushes the session expiry out by the configured TTL from now.
func (r *SessionRegistry) Extend(ctx context.Context, key string) (time.Time, error) {
	session, err := r.sessions.Find(ctx, key)
	if err != nil {
		return time.Time{}, err
	}
	now := r.clock.Now()
	if !session.Valid(now) {
		return time.Time{}, domainErrors.ErrSessionNotFound
	}
	expiresAt := now.Add(r.cfg.TTL)
	if err := r.sessions.Extend(ctx, key, expiresAt); err != nil {
		return time.Time{}, err
	}
	return expiresAt, nil
}

// Revoke deactivates a single session. Idempotent.
func (r *SessionRegistry) Revoke(ctx context.Context, key string) error {
	return r.sessions.Deactivate(ctx, key)
}

// RevokeAll deactivates every active session of a user, optionally sparing
// the caller's own.
func (r *SessionRegistry) RevokeAll(ctx context.Context, userID uuid.UUID, exceptKey string) (int, error) {
	return r.sessions.DeactivateAllForUser(ctx, userID, exceptKey)
}

// ListActive returns the user's live sessions, filtering out any that
// expired since their last write.
func (r *SessionRegistry) ListActive(ctx context.Context, userID uuid.UUID) ([]*models.SessionInfo, error) {
	sessions, err := r.sessions.FindActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := r.clock.Now()
	infos := make([]*models.SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		if !s.Valid(now) {
			continue
		}
		infos = append(infos, &models.SessionInfo{
			Key:            s.Key,
			UserID:         s.UserID,
			DeviceInfo:     s.DeviceInfo,
			IPAddress:      s.IPAddress,
			CreatedAt:      s.CreatedAt,
			LastActivityAt: s.LastActivityAt,
			ExpiresAt:      s.ExpiresAt,
		})
	}
	return infos, nil
}
