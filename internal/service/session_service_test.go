package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainErrors "github.com/aviary-platform/auth-service/internal/domain/errors"
	"github.com/aviary-platform/auth-service/internal/domain/models"
)

func TestSessionRegistry_Create(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	session, err := f.sessions.Create(ctx, userID, testClient)
	require.NoError(t, err)

	assert.Len(t, session.Key, 43) // 32 bytes, base64url, no padding
	assert.Equal(t, userID, session.UserID)
	assert.Equal(t, "203.0.113.7", session.IPAddress)
	assert.Equal(t, "desktop", session.DeviceInfo["device_type"])
	assert.Equal(t, "Chrome", session.DeviceInfo["browser"])
	assert.Equal(t, f.clock.Now().Add(f.cfg.Sessions.TTL), session.ExpiresAt)
	assert.True(t, session.Active)

	other, err := f.sessions.Create(ctx, userID, testClient)
	require.NoError(t, err)
	assert.NotEqual(t, session.Key, other.Key)
}

func TestSessionRegistry_ForwardedForWins(t *testing.T) {
	f := newFixture(t)

	session, err := f.sessions.Create(context.Background(), uuid.New(), models.ClientInfo{
		RemoteAddr:   "10.0.0.1:443",
		ForwardedFor: "198.51.100.9, 10.0.0.1",
		UserAgent:    testClient.UserAgent,
	})
	require.NoError(t, err)
	assert.Equal(t, "198.51.100.9", session.IPAddress)
}

func TestSessionRegistry_TouchAndExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	session, err := f.sessions.Create(ctx, uuid.New(), testClient)
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	touched, err := f.sessions.Touch(ctx, session.Key)
	require.NoError(t, err)
	assert.Equal(t, f.clock.Now(), touched.LastActivityAt)

	// Past the TTL the session is gone for callers.
	f.clock.Advance(f.cfg.Sessions.TTL)
	_, err = f.sessions.Touch(ctx, session.Key)
	assert.ErrorIs(t, err, domainErrors.ErrSessionNotFound)
}

func TestSessionRegistry_Extend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	session, err := f.sessions.Create(ctx, uuid.New(), testClient)
	require.NoError(t, err)

	f.clock.Advance(20 * time.Hour)
	expiresAt, err := f.sessions.Extend(ctx, session.Key)
	require.NoError(t, err)
	assert.Equal(t, f.clock.Now().Add(f.cfg.Sessions.TTL), expiresAt)

	// The extension kept it alive past its original expiry.
	f.clock.Advance(10 * time.Hour)
	_, err = f.sessions.Touch(ctx, session.Key)
	assert.NoError(t, err)

	// A revoked session cannot be extended.
	require.NoError(t, f.sessions.Revoke(ctx, session.Key))
	_, err = f.sessions.Extend(ctx, session.Key)
	assert.ErrorIs(t, err, domainErrors.ErrSessionNotFound)
}

func TestJanitor_Sweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	session, err := f.sessions.Create(ctx, uuid.New(), testClient)
	require.NoError(t, err)
	pair, err := f.tokens.IssuePair(uuid.New())
	require.NoError(t, err)
	require.NoError(t, f.tokens.Revoke(ctx, pair.RefreshToken))

	// Nothing is expired yet.
	f.janitor.Sweep(ctx)
	_, err = f.store.Sessions().Find(ctx, session.Key)
	assert.NoError(t, err)

	// Past every TTL both stores drain.
	f.clock.Advance(f.cfg.Tokens.RefreshTTL + f.cfg.Sessions.TTL)
	f.janitor.Sweep(ctx)

	_, err = f.store.Sessions().Find(ctx, session.Key)
	assert.ErrorIs(t, err, domainErrors.ErrSessionNotFound)

	claims, err := f.tokens.VerifyAccess(pair.AccessToken)
	assert.Error(t, err) // expired anyway
	assert.Nil(t, claims)
}
