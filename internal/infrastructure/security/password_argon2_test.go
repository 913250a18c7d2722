package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aviary-platform/auth-service/internal/clockwork"
)

func testHasher(t *testing.T) *PasswordHasher {
	t.Helper()
	// Minimal cost keeps the suite fast; correctness does not depend on it.
	h, err := NewPasswordHasher(Argon2idParams{
		Memory:      8 * 1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}, clockwork.RealRNG{})
	require.NoError(t, err)
	return h
}

func TestPasswordHasher_HashAndVerify(t *testing.T) {
	h := testHasher(t)

	encoded, err := h.Hash("correct horse battery staple")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$"))

	assert.True(t, h.Verify("correct horse battery staple", encoded))
	assert.False(t, h.Verify("correct horse battery stapl", encoded))
	assert.False(t, h.Verify("", encoded))
}

func TestPasswordHasher_HashesAreSalted(t *testing.T) {
	h := testHasher(t)

	a, err := h.Hash("same password")
	require.NoError(t, err)
	b, err := h.Hash("same password")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.True(t, h.Verify("same password", a))
	assert.True(t, h.Verify("same password", b))
}

func TestPasswordHasher_VerifyMalformed(t *testing.T) {
	h := testHasher(t)

	for _, encoded := range []string{
		"",
		"not a hash",
		"$argon2id$v=19$m=8192,t=1,p=1$short",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
	} {
		assert.False(t, h.Verify("whatever", encoded), "encoded=%q", encoded)
	}
}

func TestPasswordHasher_NeedsRehash(t *testing.T) {
	weak, err := NewPasswordHasher(Argon2idParams{
		Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32,
	}, clockwork.RealRNG{})
	require.NoError(t, err)
	strong, err := NewPasswordHasher(Argon2idParams{
		Memory: 16 * 1024, Iterations: 2, Parallelism: 1, SaltLength: 16, KeyLength: 32,
	}, clockwork.RealRNG{})
	require.NoError(t, err)

	old, err := weak.Hash("pw")
	require.NoError(t, err)

	assert.False(t, weak.NeedsRehash(old))
	assert.True(t, strong.NeedsRehash(old))
	assert.True(t, strong.NeedsRehash("garbage"))

	// A hash made with stronger params than currently configured is fine.
	newer, err := strong.Hash("pw")
	require.NoError(t, err)
	assert.False(t, weak.NeedsRehash(newer))
}
