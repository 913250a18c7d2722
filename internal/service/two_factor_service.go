package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainErrors "github.com/aviary-platform/auth-service/internal/domain/errors"
	"github.com/aviary-platform/auth-service/internal/domain/models"
	"github.com/aviary-platform/auth-service/internal/infrastructure/security"
	"github.com/aviary-platform/auth-service/internal/metrics"
)

// Setup2FA begins two-factor enrollment: it provisions a fresh secret and
// backup codes and returns them for one-time display. The account stays at
// single-factor until VerifySetup2FA proves the authenticator works.
func (s *AuthService) Setup2FA(ctx context.Context, userID uuid.UUID) (*models.TwoFactorSetup, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.TwoFactorEnabled {
		return nil, domainErrors.ErrAlready2FA
	}

	secret, err := s.totp.GenerateSecret()
	if err != nil {
		return nil, err
	}
	codes, err := s.totp.GenerateBackupCodes()
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	tf := &models.TwoFactor{
		UserID:           userID,
		Secret:           secret,
		BackupCodeHashes: hashCodes(codes),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	err = withRetry(ctx, func(ctx context.Context) error {
		return s.twoFactors.Upsert(ctx, tf)
	})
	if err != nil {
		return nil, err
	}

	return &models.TwoFactorSetup{
		Secret:          secret,
		ProvisioningURI: s.totp.ProvisioningURI(secret, user.Email),
		BackupCodes:     codes,
	}, nil
}

// VerifySetup2FA completes enrollment by checking a live TOTP code against
// the pending secret. Backup codes are not accepted here; the point is to
// prove the authenticator app was actually provisioned.
func (s *AuthService) VerifySetup2FA(ctx context.Context, userID uuid.UUID, code string) ([]models.Event, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.TwoFactorEnabled {
		return nil, domainErrors.ErrAlready2FA
	}

	tf, err := s.twoFactors.Get(ctx, userID)
	if err != nil {
		if domainErrors.IsNotFound(err) {
			return nil, domainErrors.ErrNot2FA
		}
		return nil, err
	}

	code = strings.TrimSpace(code)
	if security.ClassifyCode(code) != security.CodeKindTOTP {
		return nil, domainErrors.ErrInvalidCodeFormat
	}
	if !s.totp.VerifyCode(tf.Secret, code, s.clock.Now()) {
		metrics.TwoFactorVerificationsTotal.WithLabelValues("totp", "failure").Inc()
		return nil, domainErrors.ErrBad2FACode
	}

	enabled := true
	now := s.clock.Now()
	err = withRetry(ctx, func(ctx context.Context) error {
		return s.tx.WithinTx(ctx, func(ctx context.Context) error {
			tf.Enabled = true
			tf.UpdatedAt = now
			if err := s.twoFactors.Upsert(ctx, tf); err != nil {
				return err
			}
			_, err := s.users.Update(ctx, userID, models.UserPatch{TwoFactorEnabled: &enabled})
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.TwoFactorVerificationsTotal.WithLabelValues("totp", "success").Inc()
	s.logger.Info("two-factor enabled", zap.String("user_id", userID.String()))

	return []models.Event{{
		Name:       models.EventTwoFactorEnabled,
		UserID:     userID,
		OccurredAt: now,
	}}, nil
}

// Disable2FA turns two-factor off after re-verifying the account password.
// The secret and any outstanding backup codes are destroyed.
func (s *AuthService) Disable2FA(ctx context.Context, userID uuid.UUID, password string) ([]models.Event, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.TwoFactorEnabled {
		return nil, domainErrors.ErrNot2FA
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, domainErrors.ErrBadCredentials
	}

	disabled := false
	now := s.clock.Now()
	err = withRetry(ctx, func(ctx context.Context) error {
		return s.tx.WithinTx(ctx, func(ctx context.Context) error {
			if err := s.twoFactors.Delete(ctx, userID); err != nil {
				return err
			}
			_, err := s.users.Update(ctx, userID, models.UserPatch{TwoFactorEnabled: &disabled})
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("two-factor disabled", zap.String("user_id", userID.String()))
	return []models.Event{{
		Name:       models.EventTwoFactorDisabled,
		UserID:     userID,
		OccurredAt: now,
	}}, nil
}

// RegenerateBackupCodes replaces the outstanding backup codes with a fresh
// set, invalidating any unused ones. Requires two-factor to be enabled and a
// password re-check.
func (s *AuthService) RegenerateBackupCodes(ctx context.Context, userID uuid.UUID, password string) ([]string, []models.Event, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if !user.TwoFactorEnabled {
		return nil, nil, domainErrors.ErrNot2FA
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, nil, domainErrors.ErrBadCredentials
	}

	tf, err := s.twoFactors.Get(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	codes, err := s.totp.GenerateBackupCodes()
	if err != nil {
		return nil, nil, err
	}

	now := s.clock.Now()
	tf.BackupCodeHashes = hashCodes(codes)
	tf.UpdatedAt = now
	err = withRetry(ctx, func(ctx context.Context) error {
		return s.twoFactors.Upsert(ctx, tf)
	})
	if err != nil {
		return nil, nil, err
	}

	return codes, []models.Event{{
		Name:       models.EventBackupCodesRegenerated,
		UserID:     userID,
		OccurredAt: now,
	}}, nil
}

// Status2FA reports the two-factor state of an account.
func (s *AuthService) Status2FA(ctx context.Context, userID uuid.UUID) (*models.TwoFactorStatus, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	status := &models.TwoFactorStatus{Enabled: user.TwoFactorEnabled}

	tf, err := s.twoFactors.Get(ctx, userID)
	if err != nil {
		if domainErrors.IsNotFound(err) {
			return status, nil
		}
		return nil, err
	}
	status.Configured = tf.Configured()
	status.BackupCodesRemaining = len(tf.BackupCodeHashes)
	status.LastUsedAt = tf.LastUsedAt
	return status, nil
}
