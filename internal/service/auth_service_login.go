package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainErrors "github.com/aviary-platform/auth-service/internal/domain/errors"
	"github.com/aviary-platform/auth-service/internal/domain/models"
	"github.com/aviary-platform/auth-service/internal/infrastructure/security"
	"github.com/aviary-platform/auth-service/internal/iputil"
	"github.com/aviary-platform/auth-service/internal/metrics"
)

// Login performs step one of authentication: password verification under the
// lockout policy. Accounts with two-factor enabled get a Requires2FAError
// carrying a challenge token instead of credentials.
func (s *AuthService) Login(ctx context.Context, email, password string, client models.ClientInfo) (*models.AuthResult, error) {
	_, normalized := models.NormalizeEmail(strings.TrimSpace(email))

	var user *models.User
	err := withRetry(ctx, func(ctx context.Context) error {
		var err error
		user, err = s.users.FindByEmail(ctx, normalized)
		return err
	})
	if err != nil {
		if domainErrors.IsNotFound(err) {
			// Burn the same hashing work as the known-user path so response
			// timing does not reveal account existence.
			s.hasher.VerifyDummy(password)
			metrics.LoginAttemptsTotal.WithLabelValues("failure_credentials").Inc()
			return nil, domainErrors.ErrBadCredentials
		}
		return nil, err
	}

	if err := s.lockout.Check(user); err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues("failure_locked").Inc()
		return nil, err
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		locked, ferr := s.lockout.RecordFailure(ctx, user.ID)
		if ferr != nil {
			s.logger.Error("failed to record login failure",
				zap.String("user_id", user.ID.String()), zap.Error(ferr))
		}
		if locked {
			metrics.LoginAttemptsTotal.WithLabelValues("failure_locked").Inc()
		} else {
			metrics.LoginAttemptsTotal.WithLabelValues("failure_credentials").Inc()
		}
		// The response for the arming failure is indistinguishable from any
		// other bad password; the lock is only reported on the next attempt.
		return nil, domainErrors.ErrBadCredentials
	}

	if !user.IsActive {
		metrics.LoginAttemptsTotal.WithLabelValues("failure_inactive").Inc()
		return nil, domainErrors.ErrAccountInactive
	}

	s.maybeRehash(ctx, user, password)

	if user.TwoFactorEnabled {
		challenge, err := s.tokens.IssueChallenge(user.ID)
		if err != nil {
			return nil, err
		}
		metrics.LoginAttemptsTotal.WithLabelValues("requires_2fa").Inc()
		return nil, &domainErrors.Requires2FAError{UserID: user.ID, ChallengeToken: challenge}
	}

	return s.completeLogin(ctx, user, client)
}

// VerifyLogin performs step two: it trades a challenge token plus a TOTP or
// backup code for real credentials.
func (s *AuthService) VerifyLogin(ctx context.Context, challengeToken, code string, client models.ClientInfo) (*models.AuthResult, error) {
	userID, err := s.tokens.VerifyChallenge(challengeToken)
	if err != nil {
		return nil, err
	}
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.lockout.Check(user); err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues("failure_locked").Inc()
		return nil, err
	}
	if !user.IsActive {
		return nil, domainErrors.ErrAccountInactive
	}
	if !user.TwoFactorEnabled {
		return nil, domainErrors.ErrNot2FA
	}

	tf, err := s.twoFactors.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	code = strings.TrimSpace(code)
	var method string
	switch security.ClassifyCode(code) {
	case security.CodeKindTOTP:
		method = "totp"
		if !s.totp.VerifyCode(tf.Secret, code, s.clock.Now()) {
			metrics.TwoFactorVerificationsTotal.WithLabelValues(method, "failure").Inc()
			return nil, domainErrors.ErrBad2FACode
		}
	case security.CodeKindBackup:
		method = "backup"
		consumed, err := s.twoFactors.ConsumeBackupCode(ctx, userID, security.HashBackupCode(code))
		if err != nil {
			return nil, err
		}
		if !consumed {
			metrics.TwoFactorVerificationsTotal.WithLabelValues(method, "failure").Inc()
			return nil, domainErrors.ErrBad2FACode
		}
	default:
		return nil, domainErrors.ErrInvalidCodeFormat
	}

	if err := s.twoFactors.SetLastUsed(ctx, userID, s.clock.Now()); err != nil {
		s.logger.Warn("failed to record 2fa use",
			zap.String("user_id", userID.String()), zap.Error(err))
	}

	metrics.TwoFactorVerificationsTotal.WithLabelValues(method, "success").Inc()
	return s.completeLogin(ctx, user, client)
}

// completeLogin finalizes a fully verified authentication: clears lockout
// state, records the source address, opens a session and only then issues
// tokens.
func (s *AuthService) completeLogin(ctx context.Context, user *models.User, client models.ClientInfo) (*models.AuthResult, error) {
	now := s.clock.Now()
	ip := iputil.ClientIP(client)

	var sessionKey string
	err := withRetry(ctx, func(ctx context.Context) error {
		return s.tx.WithinTx(ctx, func(ctx context.Context) error {
			if err := s.lockout.RecordSuccess(ctx, user.ID); err != nil {
				return err
			}
			updated, err := s.users.Update(ctx, user.ID, models.UserPatch{
				LastLoginIP:    &ip,
				LastActivityAt: &now,
			})
			if err != nil {
				return err
			}
			*user = *updated
			session, err := s.sessions.Create(ctx, user.ID, client)
			if err != nil {
				return err
			}
			sessionKey = session.Key
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	pair, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return nil, err
	}

	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	s.logger.Info("user logged in",
		zap.String("user_id", user.ID.String()),
		zap.String("ip", ip))

	return &models.AuthResult{
		User:       user,
		Tokens:     pair,
		SessionKey: sessionKey,
		Events: []models.Event{{
			Name:       models.EventUserLoggedIn,
			UserID:     user.ID,
			OccurredAt: now,
			Meta:       map[string]string{"ip": ip},
		}},
	}, nil
}

// Refresh rotates a refresh token into a new pair, touches the user's
// activity timestamp and, if the caller supplied one, the session.
func (s *AuthService) Refresh(ctx context.Context, refreshToken, sessionKey string) (*models.TokenPair, error) {
	pair, claims, err := s.tokens.Rotate(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if userID, perr := uuid.Parse(claims.UserID); perr == nil {
		if _, uerr := s.users.Update(ctx, userID, models.UserPatch{LastActivityAt: &now}); uerr != nil {
			s.logger.Warn("failed to touch user activity on refresh",
				zap.String("user_id", claims.UserID), zap.Error(uerr))
		}
	}

	if sessionKey != "" {
		if _, terr := s.sessions.Touch(ctx, sessionKey); terr != nil {
			s.logger.Debug("refresh with stale session key",
				zap.String("user_id", claims.UserID), zap.Error(terr))
		}
	}
	return pair, nil
}

// Logout revokes the refresh token and deactivates the session. Both halves
// are idempotent, so repeating a logout is harmless.
func (s *AuthService) Logout(ctx context.Context, refreshToken, sessionKey string) ([]models.Event, error) {
	if err := s.tokens.Revoke(ctx, refreshToken); err != nil {
		return nil, err
	}
	if sessionKey != "" {
		if err := s.sessions.Revoke(ctx, sessionKey); err != nil {
			return nil, err
		}
	}
	return []models.Event{{
		Name:       models.EventUserLoggedOut,
		OccurredAt: s.clock.Now(),
	}}, nil
}

// LogoutAll deactivates every session of the user. Refresh tokens issued to
// those sessions die on their next rotation attempt only if individually
// revoked; callers wanting a hard cut should rotate the signing key or pass
// the tokens through Logout.
func (s *AuthService) LogoutAll(ctx context.Context, userID uuid.UUID, exceptSessionKey string) (int, []models.Event, error) {
	revoked, err := s.sessions.RevokeAll(ctx, userID, exceptSessionKey)
	if err != nil {
		return 0, nil, err
	}
	s.logger.Info("all sessions revoked",
		zap.String("user_id", userID.String()),
		zap.Int("count", revoked))
	return revoked, []models.Event{{
		Name:       models.EventSessionsRevoked,
		UserID:     userID,
		OccurredAt: s.clock.Now(),
		Meta:       map[string]string{"count": fmt.Sprint(revoked)},
	}}, nil
}

// Sessions lists the caller's live sessions.
func (s *AuthService) Sessions(ctx context.Context, userID uuid.UUID) ([]*models.SessionInfo, error) {
	return s.sessions.ListActive(ctx, userID)
}

// maybeRehash upgrades the stored hash when the configured cost parameters
// have been raised since the password was last hashed. Best effort: a failed
// upgrade never blocks login.
func (s *AuthService) maybeRehash(ctx context.Context, user *models.User, password string) {
	if !s.hasher.NeedsRehash(user.PasswordHash) {
		return
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.Warn("password rehash failed",
			zap.String("user_id", user.ID.String()), zap.Error(err))
		return
	}
	if _, err := s.users.Update(ctx, user.ID, models.UserPatch{PasswordHash: &hash}); err != nil {
		s.logger.Warn("password rehash write failed",
			zap.String("user_id", user.ID.String()), zap.Error(err))
		return
	}
	user.PasswordHash = hash
}
