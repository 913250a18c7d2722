package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	domainErrors "github.com/aviary-platform/auth-service/internal/domain/errors"
	"github.com/aviary-platform/auth-service/internal/domain/models"
	"github.com/aviary-platform/auth-service/internal/domain/repository"
)

type sessionRepo struct{ s *Store }

func (r sessionRepo) Create(ctx context.Context, session *models.Session) error {
	defer r.s.lock(ctx)()

	r.s.sessions[session.Key] = cloneSession(session)
	return nil
}

func (r sessionRepo) Find(ctx context.Context, key string) (*models.Session, error) {
	defer r.s.lock(ctx)()

	sess, ok := r.s.sessions[key]
	if !ok {
		return nil, domainErrors.ErrSessionNotFound
	}
	return cloneSession(sess), nil
}

func (r sessionRepo) FindActiveByUser(ctx context.Context, userID uuid.UUID) ([]*models.Session, error) {
	defer r.s.lock(ctx)()

	var out []*models.Session
	for _, sess := range r.s.sessions {
		if sess.UserID == userID && sess.Active {
			out = append(out, cloneSession(sess))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r sessionRepo) UpdateActivity(ctx context.Context, key string, at time.Time) error {
	defer r.s.lock(ctx)()

	sess, ok := r.s.sessions[key]
	if !ok {
		return domainErrors.ErrSessionNotFound
	}
	if at.After(sess.LastActivityAt) {
		sess.LastActivityAt = at
	}
	return nil
}

func (r sessionRepo) Extend(ctx context.Context, key string, expiresAt time.Time) error {
	defer r.s.lock(ctx)()

	sess, ok := r.s.sessions[key]
	if !ok {
		return domainErrors.ErrSessionNotFound
	}
	sess.ExpiresAt = expiresAt
	return nil
}

func (r sessionRepo) Deactivate(ctx context.Context, key string) error {
	defer r.s.lock(ctx)()

	if sess, ok := r.s.sessions[key]; ok {
		sess.Active = false
	}
	return nil
}

func (r sessionRepo) DeactivateAllForUser(ctx context.Context, userID uuid.UUID, exceptKey string) (int, error) {
	defer r.s.lock(ctx)()

	n := 0
	for key, sess := range r.s.sessions {
		if sess.UserID == userID && sess.Active && key != exceptKey {
			sess.Active = false
			n++
		}
	}
	return n, nil
}

func (r sessionRepo) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	defer r.s.lock(ctx)()

	n := 0
	for key, sess := range r.s.sessions {
		if !now.Before(sess.ExpiresAt) {
			delete(r.s.sessions, key)
			n++
		}
	}
	return n, nil
}

var _ repository.SessionRepository = sessionRepo{}
