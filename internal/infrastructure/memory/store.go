// Package memory provides a single-process implementation of the store
// ports. It backs the test suite and small single-node deployments; the
// postgres and redis adapters are the production path.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/aviary-platform/auth-service/internal/domain/models"
	"github.com/aviary-platform/auth-service/internal/domain/repository"
)

type txKey struct{}

// Store holds every entity map under one mutex, which gives each operation
// the per-user serialization the core requires. WithinTx holds the mutex for
// the whole function and restores a snapshot when it fails.
type Store struct {
	mu sync.Mutex

	users      map[uuid.UUID]*models.User
	emailIndex map[string]uuid.UUID // normalized email -> user id
	twoFactors map[uuid.UUID]*models.TwoFactor
	sessions   map[string]*models.Session
	blacklist  map[string]models.BlacklistEntry
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		users:      make(map[uuid.UUID]*models.User),
		emailIndex: make(map[string]uuid.UUID),
		twoFactors: make(map[uuid.UUID]*models.TwoFactor),
		sessions:   make(map[string]*models.Session),
		blacklist:  make(map[string]models.BlacklistEntry),
	}
}

// Users returns the user repository view of the store.
func (s *Store) Users() repository.UserRepository { return userRepo{s} }

// TwoFactor returns the two-factor repository view of the store.
func (s *Store) TwoFactor() repository.TwoFactorRepository { return twoFactorRepo{s} }

// Sessions returns the session repository view of the store.
func (s *Store) Sessions() repository.SessionRepository { return sessionRepo{s} }

// Blacklist returns the blacklist repository view of the store.
func (s *Store) Blacklist() repository.BlacklistRepository { return blacklistRepo{s} }

// WithinTx implements repository.TxManager. Nested calls join the enclosing
// transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshotLocked()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.restoreLocked(snap)
		return err
	}
	return nil
}

func inTx(ctx context.Context) bool {
	return ctx.Value(txKey{}) != nil
}

// lock acquires the store mutex unless the context already runs inside a
// transaction holding it.
func (s *Store) lock(ctx context.Context) func() {
	if inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

type snapshot struct {
	users      map[uuid.UUID]*models.User
	emailIndex map[string]uuid.UUID
	twoFactors map[uuid.UUID]*models.TwoFactor
	sessions   map[string]*models.Session
	blacklist  map[string]models.BlacklistEntry
}

func (s *Store) snapshotLocked() snapshot {
	snap := snapshot{
		users:      make(map[uuid.UUID]*models.User, len(s.users)),
		emailIndex: make(map[string]uuid.UUID, len(s.emailIndex)),
		twoFactors: make(map[uuid.UUID]*models.TwoFactor, len(s.twoFactors)),
		sessions:   make(map[string]*models.Session, len(s.sessions)),
		blacklist:  make(map[string]models.BlacklistEntry, len(s.blacklist)),
	}
	for id, u := range s.users {
		snap.users[id] = cloneUser(u)
	}
	for k, v := range s.emailIndex {
		snap.emailIndex[k] = v
	}
	for id, tf := range s.twoFactors {
		snap.twoFactors[id] = cloneTwoFactor(tf)
	}
	for k, sess := range s.sessions {
		snap.sessions[k] = cloneSession(sess)
	}
	for k, e := range s.blacklist {
		snap.blacklist[k] = e
	}
	return snap
}

func (s *Store) restoreLocked(snap snapshot) {
	s.users = snap.users
	s.emailIndex = snap.emailIndex
	s.twoFactors = snap.twoFactors
	s.sessions = snap.sessions
	s.blacklist = snap.blacklist
}

func cloneUser(u *models.User) *models.User {
	c := *u
	if u.LockedUntil != nil {
		t := *u.LockedUntil
		c.LockedUntil = &t
	}
	return &c
}

func cloneTwoFactor(tf *models.TwoFactor) *models.TwoFactor {
	c := *tf
	c.BackupCodeHashes = append([]string(nil), tf.BackupCodeHashes...)
	if tf.LastUsedAt != nil {
		t := *tf.LastUsedAt
		c.LastUsedAt = &t
	}
	return &c
}

func cloneSession(sess *models.Session) *models.Session {
	c := *sess
	if sess.DeviceInfo != nil {
		c.DeviceInfo = make(map[string]string, len(sess.DeviceInfo))
		for k, v := range sess.DeviceInfo {
			c.DeviceInfo[k] = v
		}
	}
	return &c
}

var _ repository.TxManager = (*Store)(nil)
