package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aviary-platform/auth-service/internal/clockwork"
	"github.com/aviary-platform/auth-service/internal/config"
	domainErrors "github.com/aviary-platform/auth-service/internal/domain/errors"
	"github.com/aviary-platform/auth-service/internal/domain/models"
	"github.com/aviary-platform/auth-service/internal/domain/repository"
	"github.com/aviary-platform/auth-service/internal/metrics"
)

// TokenService signs and verifies the three token kinds the core issues:
// short-lived access tokens, rotating refresh tokens, and the 2FA challenge
// token bridging login step one and step two.
type TokenService struct {
	cfg       config.TokenConfig
	method    jwt.SigningMethod
	key       []byte
	blacklist repository.BlacklistRepository
	clock     clockwork.Clock
	logger    *zap.Logger
}

// NewTokenService validates the signing configuration and builds the service.
func NewTokenService(
	cfg config.TokenConfig,
	blacklist repository.BlacklistRepository,
	clock clockwork.Clock,
	logger *zap.Logger,
) (*TokenService, error) {
	if len(cfg.SigningKey) < 32 {
		return nil, errors.New("signing key must be at least 256 bits")
	}
	var method jwt.SigningMethod
	switch cfg.SigningAlgo {
	case "", "HS256":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("unsupported signing algorithm %q", cfg.SigningAlgo)
	}
	return &TokenService{
		cfg:       cfg,
		method:    method,
		key:       []byte(cfg.SigningKey),
		blacklist: blacklist,
		clock:     clock,
		logger:    logger,
	}, nil
}

// IssuePair signs a fresh access/refresh pair for the user. The refresh
// token starts a new rotation lineage.
func (s *TokenService) IssuePair(userID uuid.UUID) (*models.TokenPair, error) {
	return s.issuePair(userID, uuid.NewString())
}

func (s *TokenService) issuePair(userID uuid.UUID, rotationID string) (*models.TokenPair, error) {
	now := s.clock.Now()
	accessExp := now.Add(s.cfg.AccessTTL)

	access, err := s.sign(models.Claims{
		UserID:    userID.String(),
		TokenType: models.TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(accessExp),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	refresh, err := s.sign(models.Claims{
		UserID:     userID.String(),
		TokenType:  models.TokenTypeRefresh,
		RotationID: rotationID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.RefreshTTL)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return &models.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    accessExp,
	}, nil
}

func (s *TokenService) sign(claims models.Claims) (string, error) {
	return jwt.NewWithClaims(s.method, claims).SignedString(s.key)
}

// VerifyAccess checks signature, expiry and type of an access token.
func (s *TokenService) VerifyAccess(tokenString string) (*models.Claims, error) {
	return s.verify(tokenString, models.TokenTypeAccess, true)
}

// VerifyRefresh checks signature, expiry, type and blacklist membership of a
// refresh token.
func (s *TokenService) VerifyRefresh(ctx context.Context, tokenString string) (*models.Claims, error) {
	claims, err := s.verify(tokenString, models.TokenTypeRefresh, true)
	if err != nil {
		return nil, err
	}
	revoked, err := s.blacklist.Contains(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: blacklist lookup failed: %v", domainErrors.ErrStorageUnavailable, err)
	}
	if revoked {
		return nil, domainErrors.ErrTokenBlacklisted
	}
	return claims, nil
}

// Rotate exchanges a valid refresh token for a new pair. The old token's jti
// is blacklisted first; when the blacklist write fails or another rotation
// already claimed the jti, no tokens are issued. Rotation is therefore
// linearizable per jti: of two concurrent calls exactly one wins.
func (s *TokenService) Rotate(ctx context.Context, refreshToken string) (*models.TokenPair, *models.Claims, error) {
	claims, err := s.VerifyRefresh(ctx, refreshToken)
	if err != nil {
		metrics.TokenRotationsTotal.WithLabelValues("failure").Inc()
		return nil, nil, err
	}

	added, err := s.blacklist.Add(ctx, models.BlacklistEntry{
		JTI:           claims.ID,
		BlacklistedAt: s.clock.Now(),
		ExpiresAt:     claims.ExpiresAt.Time,
	})
	if err != nil {
		metrics.TokenRotationsTotal.WithLabelValues("failure").Inc()
		return nil, nil, fmt.Errorf("%w: blacklist write failed: %v", domainErrors.ErrStorageUnavailable, err)
	}
	if !added {
		// Lost the race against a concurrent rotation of the same token.
		metrics.TokenRotationsTotal.WithLabelValues("conflict").Inc()
		return nil, nil, domainErrors.ErrTokenBlacklisted
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, nil, domainErrors.ErrTokenMalformed
	}
	pair, err := s.issuePair(userID, claims.RotationID)
	if err != nil {
		return nil, nil, err
	}
	metrics.TokenRotationsTotal.WithLabelValues("success").Inc()
	return pair, claims, nil
}

// Revoke blacklists a refresh token unconditionally. The signature must
// verify, but an already-expired or already-revoked token is accepted
// silently, which makes logout idempotent.
func (s *TokenService) Revoke(ctx context.Context, refreshToken string) error {
	claims, err := s.verify(refreshToken, models.TokenTypeRefresh, false)
	if err != nil {
		return err
	}
	_, err = s.blacklist.Add(ctx, models.BlacklistEntry{
		JTI:           claims.ID,
		BlacklistedAt: s.clock.Now(),
		ExpiresAt:     claims.ExpiresAt.Time,
	})
	if err != nil {
		return fmt.Errorf("%w: blacklist write failed: %v", domainErrors.ErrStorageUnavailable, err)
	}
	return nil
}

// IssueChallenge signs the short-lived 2FA challenge returned by login step
// one. It authorizes nothing except presenting a second factor.
func (s *TokenService) IssueChallenge(userID uuid.UUID) (string, error) {
	now := s.clock.Now()
	token, err := s.sign(models.Claims{
		UserID:    userID.String(),
		TokenType: models.TokenTypeChallenge,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.ChallengeTTL)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to sign 2fa challenge: %w", err)
	}
	return token, nil
}

// VerifyChallenge validates a 2FA challenge token and returns the user it
// identifies.
func (s *TokenService) VerifyChallenge(tokenString string) (uuid.UUID, error) {
	claims, err := s.verify(tokenString, models.TokenTypeChallenge, true)
	if err != nil {
		return uuid.Nil, err
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return uuid.Nil, domainErrors.ErrTokenMalformed
	}
	return userID, nil
}

func (s *TokenService) verify(tokenString, wantType string, validateExpiry bool) (*models.Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return s.clock.Now() }),
	}
	if !validateExpiry {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	token, err := jwt.ParseWithClaims(tokenString, &models.Claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.key, nil
	}, opts...)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, domainErrors.ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
			return nil, domainErrors.ErrTokenSignatureInvalid
		default:
			return nil, domainErrors.ErrTokenMalformed
		}
	}

	claims, ok := token.Claims.(*models.Claims)
	if !ok {
		return nil, domainErrors.ErrTokenMalformed
	}
	if claims.TokenType != wantType {
		return nil, domainErrors.ErrTokenTypeMismatch
	}
	if claims.ID == "" || claims.ExpiresAt == nil {
		return nil, domainErrors.ErrTokenMalformed
	}
	return claims, nil
}
