package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainErrors "github.com/aviary-platform/auth-service/internal/domain/errors"
	"github.com/aviary-platform/auth-service/internal/domain/models"
)

func newUser(email string) *models.User {
	stored, normalized := models.NormalizeEmail(email)
	now := time.Now().UTC()
	return &models.User{
		ID:              uuid.New(),
		Email:           stored,
		EmailNormalized: normalized,
		PasswordHash:    "hash",
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
		LastActivityAt:  now,
	}
}

func TestUserRepo_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	users := store.Users()

	u := newUser("Witch@Example.COM")
	require.NoError(t, users.Create(ctx, u))

	byID, err := users.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Email, byID.Email)

	byEmail, err := users.FindByEmail(ctx, "witch@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)

	_, err = users.FindByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, domainErrors.ErrUserNotFound)
}

func TestUserRepo_CreateDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	users := NewStore().Users()

	require.NoError(t, users.Create(ctx, newUser("dup@example.com")))
	err := users.Create(ctx, newUser("DUP@example.com"))
	assert.ErrorIs(t, err, domainErrors.ErrEmailExists)
}

func TestUserRepo_UpdatePatch(t *testing.T) {
	ctx := context.Background()
	users := NewStore().Users()

	u := newUser("patch@example.com")
	require.NoError(t, users.Create(ctx, u))

	hash := "newhash"
	verified := true
	updated, err := users.Update(ctx, u.ID, models.UserPatch{
		PasswordHash: &hash,
		Verified:     &verified,
	})
	require.NoError(t, err)
	assert.Equal(t, "newhash", updated.PasswordHash)
	assert.True(t, updated.Verified)
	// Untouched fields survive.
	assert.Equal(t, u.Email, updated.Email)

	// Mutating the returned copy must not affect the store.
	updated.PasswordHash = "tampered"
	fresh, err := users.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "newhash", fresh.PasswordHash)
}

func TestUserRepo_UpdateBumpsUpdatedAt(t *testing.T) {
	ctx := context.Background()
	users := NewStore().Users()

	u := newUser("stamp@example.com")
	stale := time.Now().Add(-time.Hour)
	u.UpdatedAt = stale
	require.NoError(t, users.Create(ctx, u))

	verified := true
	updated, err := users.Update(ctx, u.ID, models.UserPatch{Verified: &verified})
	require.NoError(t, err)
	assert.True(t, updated.UpdatedAt.After(stale))
}

func TestUserRepo_LockoutCounters(t *testing.T) {
	ctx := context.Background()
	users := NewStore().Users()

	u := newUser("lock@example.com")
	require.NoError(t, users.Create(ctx, u))

	for want := 1; want <= 3; want++ {
		n, err := users.IncrementFailedAttempts(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}

	until := time.Now().UTC().Add(15 * time.Minute)
	require.NoError(t, users.SetLockout(ctx, u.ID, until))

	locked, err := users.FindByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, locked.LockedUntil)
	assert.Equal(t, 3, locked.FailedAttempts, "counter is kept when the lock arms")

	require.NoError(t, users.ResetLockout(ctx, u.ID))
	reset, err := users.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Zero(t, reset.FailedAttempts)
	assert.Nil(t, reset.LockedUntil)
}

func TestTwoFactorRepo_ConsumeBackupCode(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	tfRepo := store.TwoFactor()

	userID := uuid.New()
	require.NoError(t, tfRepo.Upsert(ctx, &models.TwoFactor{
		UserID:           userID,
		Secret:           "SECRET",
		BackupCodeHashes: []string{"aaa", "bbb", "ccc"},
	}))

	ok, err := tfRepo.ConsumeBackupCode(ctx, userID, "bbb")
	require.NoError(t, err)
	assert.True(t, ok)

	// Second use of the same code fails.
	ok, err = tfRepo.ConsumeBackupCode(ctx, userID, "bbb")
	require.NoError(t, err)
	assert.False(t, ok)

	tf, err := tfRepo.Get(ctx, userID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"aaa", "ccc"}, tf.BackupCodeHashes)
}

func TestTwoFactorRepo_ConsumeBackupCodeConcurrent(t *testing.T) {
	ctx := context.Background()
	tfRepo := NewStore().TwoFactor()

	userID := uuid.New()
	require.NoError(t, tfRepo.Upsert(ctx, &models.TwoFactor{
		UserID:           userID,
		BackupCodeHashes: []string{"only"},
	}))

	const workers = 16
	var wins int32
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := tfRepo.ConsumeBackupCode(ctx, userID, "only")
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, wins, "a backup code is consumed exactly once")
}

func TestSessionRepo_Lifecycle(t *testing.T) {
	ctx := context.Background()
	sessions := NewStore().Sessions()

	now := time.Now().UTC()
	userID := uuid.New()
	s := &models.Session{
		Key:            "key-1",
		UserID:         userID,
		CreatedAt:      now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(time.Hour),
		Active:         true,
	}
	require.NoError(t, sessions.Create(ctx, s))

	// Activity never moves backwards.
	require.NoError(t, sessions.UpdateActivity(ctx, "key-1", now.Add(10*time.Minute)))
	require.NoError(t, sessions.UpdateActivity(ctx, "key-1", now.Add(5*time.Minute)))
	got, err := sessions.Find(ctx, "key-1")
	require.NoError(t, err)
	assert.Equal(t, now.Add(10*time.Minute), got.LastActivityAt)

	require.NoError(t, sessions.Deactivate(ctx, "key-1"))
	require.NoError(t, sessions.Deactivate(ctx, "key-1"), "deactivate is idempotent")

	got, err = sessions.Find(ctx, "key-1")
	require.NoError(t, err)
	assert.False(t, got.Active)

	_, err = sessions.Find(ctx, "missing")
	assert.ErrorIs(t, err, domainErrors.ErrSessionNotFound)
}

func TestSessionRepo_DeactivateAllExcept(t *testing.T) {
	ctx := context.Background()
	sessions := NewStore().Sessions()

	now := time.Now().UTC()
	userID := uuid.New()
	for _, key := range []string{"a", "b", "c"} {
		require.NoError(t, sessions.Create(ctx, &models.Session{
			Key: key, UserID: userID,
			CreatedAt: now, LastActivityAt: now,
			ExpiresAt: now.Add(time.Hour), Active: true,
		}))
	}

	n, err := sessions.DeactivateAllForUser(ctx, userID, "b")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	active, err := sessions.FindActiveByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "b", active[0].Key)
}

func TestSessionRepo_PurgeExpired(t *testing.T) {
	ctx := context.Background()
	sessions := NewStore().Sessions()

	now := time.Now().UTC()
	require.NoError(t, sessions.Create(ctx, &models.Session{
		Key: "dead", UserID: uuid.New(),
		CreatedAt: now.Add(-2 * time.Hour), LastActivityAt: now.Add(-2 * time.Hour),
		ExpiresAt: now.Add(-time.Hour), Active: true,
	}))
	require.NoError(t, sessions.Create(ctx, &models.Session{
		Key: "alive", UserID: uuid.New(),
		CreatedAt: now, LastActivityAt: now,
		ExpiresAt: now.Add(time.Hour), Active: true,
	}))

	n, err := sessions.PurgeExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = sessions.Find(ctx, "dead")
	assert.ErrorIs(t, err, domainErrors.ErrSessionNotFound)
	_, err = sessions.Find(ctx, "alive")
	assert.NoError(t, err)
}

func TestBlacklistRepo_AddExactlyOnce(t *testing.T) {
	ctx := context.Background()
	blacklist := NewStore().Blacklist()

	entry := models.BlacklistEntry{
		JTI:           "jti-1",
		BlacklistedAt: time.Now().UTC(),
		ExpiresAt:     time.Now().UTC().Add(time.Hour),
	}

	const workers = 16
	var wins int32
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inserted, err := blacklist.Add(ctx, entry)
			assert.NoError(t, err)
			if inserted {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, wins)

	present, err := blacklist.Contains(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, present)
}

func TestStore_WithinTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	users := store.Users()

	u := newUser("kept@example.com")
	require.NoError(t, users.Create(ctx, u))

	boom := errors.New("boom")
	err := store.WithinTx(ctx, func(ctx context.Context) error {
		if err := users.Create(ctx, newUser("doomed@example.com")); err != nil {
			return err
		}
		hash := "changed"
		if _, err := users.Update(ctx, u.ID, models.UserPatch{PasswordHash: &hash}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	// Nothing inside the failed transaction is visible.
	_, err = users.FindByEmail(ctx, "doomed@example.com")
	assert.ErrorIs(t, err, domainErrors.ErrUserNotFound)
	fresh, err := users.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "hash", fresh.PasswordHash)
}

func TestStore_WithinTxCommits(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	users := store.Users()

	err := store.WithinTx(ctx, func(ctx context.Context) error {
		// Nested transactions join the outer one.
		return store.WithinTx(ctx, func(ctx context.Context) error {
			return users.Create(ctx, newUser("tx@example.com"))
		})
	})
	require.NoError(t, err)

	_, err = users.FindByEmail(ctx, "tx@example.com")
	assert.NoError(t, err)
}
