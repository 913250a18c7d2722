package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainErrors "github.com/aviary-platform/auth-service/internal/domain/errors"
	"github.com/aviary-platform/auth-service/internal/domain/models"
)

func TestTokenService_IssuePair(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()

	pair, err := f.tokens.IssuePair(userID)
	require.NoError(t, err)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)
	assert.Equal(t, f.clock.Now().Add(f.cfg.Tokens.AccessTTL), pair.ExpiresAt)

	access, err := f.tokens.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), access.UserID)
	assert.Equal(t, models.TokenTypeAccess, access.TokenType)
	assert.NotEmpty(t, access.ID)
	assert.Empty(t, access.RotationID)

	refresh, err := f.tokens.VerifyRefresh(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, models.TokenTypeRefresh, refresh.TokenType)
	assert.NotEmpty(t, refresh.RotationID)
	assert.NotEqual(t, access.ID, refresh.ID)
}

func TestTokenService_TypeConfusionRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	pair, err := f.tokens.IssuePair(userID)
	require.NoError(t, err)
	challenge, err := f.tokens.IssueChallenge(userID)
	require.NoError(t, err)

	_, err = f.tokens.VerifyAccess(pair.RefreshToken)
	assert.ErrorIs(t, err, domainErrors.ErrTokenTypeMismatch)

	_, err = f.tokens.VerifyRefresh(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, domainErrors.ErrTokenTypeMismatch)

	_, err = f.tokens.VerifyAccess(challenge)
	assert.ErrorIs(t, err, domainErrors.ErrTokenTypeMismatch)

	_, err = f.tokens.VerifyRefresh(ctx, challenge)
	assert.ErrorIs(t, err, domainErrors.ErrTokenTypeMismatch)

	_, err = f.tokens.VerifyChallenge(pair.AccessToken)
	assert.ErrorIs(t, err, domainErrors.ErrTokenTypeMismatch)
}

func TestTokenService_Expiry(t *testing.T) {
	f := newFixture(t)
	pair, err := f.tokens.IssuePair(uuid.New())
	require.NoError(t, err)

	f.clock.Advance(f.cfg.Tokens.AccessTTL + time.Second)
	_, err = f.tokens.VerifyAccess(pair.AccessToken)
	assert.ErrorIs(t, err, domainErrors.ErrTokenExpired)

	// The refresh token is still inside its longer window.
	_, err = f.tokens.VerifyRefresh(context.Background(), pair.RefreshToken)
	assert.NoError(t, err)

	f.clock.Advance(f.cfg.Tokens.RefreshTTL)
	_, err = f.tokens.VerifyRefresh(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, domainErrors.ErrTokenExpired)
}

func TestTokenService_TamperedAndMalformed(t *testing.T) {
	f := newFixture(t)
	pair, err := f.tokens.IssuePair(uuid.New())
	require.NoError(t, err)

	parts := strings.Split(pair.AccessToken, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))
	_, err = f.tokens.VerifyAccess(tampered)
	assert.ErrorIs(t, err, domainErrors.ErrTokenSignatureInvalid)

	_, err = f.tokens.VerifyAccess("not.a.jwt")
	assert.ErrorIs(t, err, domainErrors.ErrTokenMalformed)

	_, err = f.tokens.VerifyAccess("")
	assert.ErrorIs(t, err, domainErrors.ErrTokenMalformed)
}

func TestTokenService_RotateInvalidatesOldToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	pair, err := f.tokens.IssuePair(userID)
	require.NoError(t, err)
	oldClaims, err := f.tokens.VerifyRefresh(ctx, pair.RefreshToken)
	require.NoError(t, err)

	newPair, newClaims, err := f.tokens.Rotate(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), newClaims.UserID)

	// The rotation lineage is preserved, the jti is fresh.
	fresh, err := f.tokens.VerifyRefresh(ctx, newPair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, oldClaims.RotationID, fresh.RotationID)
	assert.NotEqual(t, oldClaims.ID, fresh.ID)

	// The old token is dead.
	_, err = f.tokens.VerifyRefresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, domainErrors.ErrTokenBlacklisted)
	_, _, err = f.tokens.Rotate(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, domainErrors.ErrTokenBlacklisted)
}

func TestTokenService_ConcurrentRotationSingleWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.tokens.IssuePair(uuid.New())
	require.NoError(t, err)

	const workers = 8
	var mu sync.Mutex
	var successes, conflicts int
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := f.tokens.Rotate(ctx, pair.RefreshToken)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case assert.ErrorIs(t, err, domainErrors.ErrTokenBlacklisted):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, conflicts)
}

func TestTokenService_RevokeIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.tokens.IssuePair(uuid.New())
	require.NoError(t, err)

	require.NoError(t, f.tokens.Revoke(ctx, pair.RefreshToken))
	require.NoError(t, f.tokens.Revoke(ctx, pair.RefreshToken))

	_, err = f.tokens.VerifyRefresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, domainErrors.ErrTokenBlacklisted)
}

func TestTokenService_RevokeAcceptsExpiredToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.tokens.IssuePair(uuid.New())
	require.NoError(t, err)

	f.clock.Advance(f.cfg.Tokens.RefreshTTL + time.Hour)
	assert.NoError(t, f.tokens.Revoke(ctx, pair.RefreshToken))
}

func TestTokenService_ChallengeExpiry(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()

	challenge, err := f.tokens.IssueChallenge(userID)
	require.NoError(t, err)

	got, err := f.tokens.VerifyChallenge(challenge)
	require.NoError(t, err)
	assert.Equal(t, userID, got)

	f.clock.Advance(f.cfg.Tokens.ChallengeTTL + time.Second)
	_, err = f.tokens.VerifyChallenge(challenge)
	assert.ErrorIs(t, err, domainErrors.ErrTokenExpired)
}
