// Package service holds the authentication core: the orchestrator exposed to
// transports plus the token, session, lockout and janitor services it
// composes. Everything here is transport-agnostic; callers hand in context,
// credentials and client metadata and get back domain values or domain
// errors.
package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aviary-platform/auth-service/internal/clockwork"
	"github.com/aviary-platform/auth-service/internal/config"
	domainErrors "github.com/aviary-platform/auth-service/internal/domain/errors"
	"github.com/aviary-platform/auth-service/internal/domain/models"
	"github.com/aviary-platform/auth-service/internal/domain/repository"
	"github.com/aviary-platform/auth-service/internal/infrastructure/security"
	"github.com/aviary-platform/auth-service/internal/iputil"
	"github.com/aviary-platform/auth-service/internal/metrics"
)

// AuthService orchestrates registration, password and two-factor login,
// token lifecycle and session management.
type AuthService struct {
	cfg config.Config

	users      repository.UserRepository
	twoFactors repository.TwoFactorRepository
	tx         repository.TxManager

	hasher   *security.PasswordHasher
	totp     *security.TOTPEngine
	tokens   *TokenService
	sessions *SessionRegistry
	lockout  *LockoutPolicy

	clock  clockwork.Clock
	logger *zap.Logger
}

func NewAuthService(
	cfg config.Config,
	users repository.UserRepository,
	twoFactors repository.TwoFactorRepository,
	tx repository.TxManager,
	hasher *security.PasswordHasher,
	totp *security.TOTPEngine,
	tokens *TokenService,
	sessions *SessionRegistry,
	lockout *LockoutPolicy,
	clock clockwork.Clock,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		cfg:        cfg,
		users:      users,
		twoFactors: twoFactors,
		tx:         tx,
		hasher:     hasher,
		totp:       totp,
		tokens:     tokens,
		sessions:   sessions,
		lockout:    lockout,
		clock:      clock,
		logger:     logger,
	}
}

// Register creates an account, pre-provisions its (disabled) two-factor
// record and authenticates the caller in one step.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest, client models.ClientInfo) (*models.AuthResult, error) {
	email := strings.TrimSpace(req.Email)
	if !models.ValidEmail(email) {
		metrics.RegistrationsTotal.WithLabelValues("invalid_email").Inc()
		return nil, fmt.Errorf("%w: malformed email address", domainErrors.ErrBadCredentials)
	}
	if err := s.checkPasswordPolicy(req.Password); err != nil {
		metrics.RegistrationsTotal.WithLabelValues("weak_password").Inc()
		return nil, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	secret, err := s.totp.GenerateSecret()
	if err != nil {
		return nil, err
	}
	codes, err := s.totp.GenerateBackupCodes()
	if err != nil {
		return nil, err
	}

	stored, normalized := models.NormalizeEmail(email)
	now := s.clock.Now()
	user := &models.User{
		ID:              uuid.New(),
		Email:           stored,
		EmailNormalized: normalized,
		PasswordHash:    hash,
		FirstName:       strings.TrimSpace(req.FirstName),
		LastName:        strings.TrimSpace(req.LastName),
		IsActive:        true,
		LastLoginIP:     iputil.ClientIP(client),
		CreatedAt:       now,
		UpdatedAt:       now,
		LastActivityAt:  now,
	}

	var sessionKey string
	err = withRetry(ctx, func(ctx context.Context) error {
		return s.tx.WithinTx(ctx, func(ctx context.Context) error {
			if err := s.users.Create(ctx, user); err != nil {
				return err
			}
			tf := &models.TwoFactor{
				UserID:           user.ID,
				Secret:           secret,
				BackupCodeHashes: hashCodes(codes),
				CreatedAt:        now,
				UpdatedAt:        now,
			}
			if err := s.twoFactors.Upsert(ctx, tf); err != nil {
				return err
			}
			session, err := s.sessions.Create(ctx, user.ID, client)
			if err != nil {
				return err
			}
			sessionKey = session.Key
			return nil
		})
	})
	if err != nil {
		if domainErrors.IsConflict(err) {
			metrics.RegistrationsTotal.WithLabelValues("conflict").Inc()
		}
		return nil, err
	}

	pair, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return nil, err
	}

	metrics.RegistrationsTotal.WithLabelValues("success").Inc()
	s.logger.Info("user registered",
		zap.String("user_id", user.ID.String()),
		zap.String("ip", user.LastLoginIP))

	return &models.AuthResult{
		User:       user,
		Tokens:     pair,
		SessionKey: sessionKey,
		Events: []models.Event{{
			Name:       models.EventUserRegistered,
			UserID:     user.ID,
			OccurredAt: now,
		}},
	}, nil
}

// ChangePassword re-verifies the current password, stores a new hash and
// revokes every other session of the user.
func (s *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, current, next, keepSessionKey string) ([]models.Event, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !s.hasher.Verify(current, user.PasswordHash) {
		return nil, domainErrors.ErrBadCredentials
	}
	if err := s.checkPasswordPolicy(next); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	var revoked int
	err = withRetry(ctx, func(ctx context.Context) error {
		return s.tx.WithinTx(ctx, func(ctx context.Context) error {
			if _, err := s.users.Update(ctx, userID, models.UserPatch{PasswordHash: &hash}); err != nil {
				return err
			}
			revoked, err = s.sessions.RevokeAll(ctx, userID, keepSessionKey)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	s.logger.Info("password changed",
		zap.String("user_id", userID.String()),
		zap.Int("sessions_revoked", revoked))

	return []models.Event{{
		Name:       models.EventPasswordChanged,
		UserID:     userID,
		OccurredAt: now,
	}}, nil
}

func (s *AuthService) checkPasswordPolicy(password string) error {
	if len(password) < s.cfg.Password.MinLength {
		return domainErrors.NewWeakPasswordError(
			fmt.Sprintf("must be at least %d characters", s.cfg.Password.MinLength))
	}
	if strings.TrimSpace(password) == "" {
		return domainErrors.NewWeakPasswordError("must not be blank")
	}
	return nil
}

func (s *AuthService) findUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user *models.User
	err := withRetry(ctx, func(ctx context.Context) error {
		var err error
		user, err = s.users.FindByID(ctx, userID)
		return err
	})
	return user, err
}

func hashCodes(codes []string) []string {
	hashes := make([]string, len(codes))
	for i, c := range codes {
		hashes[i] = security.HashBackupCode(c)
	}
	return hashes
}
