package security

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/aviary-platform/auth-service/internal/clockwork"
)

// Argon2idParams holds the KDF cost parameters. Stored hashes embed the
// parameters they were created with, so raising these later only affects new
// hashes and NeedsRehash answers.
type Argon2idParams struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2idParams are moderate production defaults: 64 MiB, 3 passes.
func DefaultArgon2idParams() Argon2idParams {
	return Argon2idParams{
		Memory:      64 * 1024,
		Iterations:  3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// PasswordHasher hashes and verifies passwords with Argon2id. The encoded
// form is self-describing:
// $argon2id$v=19$m=<memory>,t=<iterations>,p=<parallelism>$<salt_b64>$<hash_b64>
type PasswordHasher struct {
	params Argon2idParams
	rng    clockwork.RNG
	dummy  string // hash of an unknowable password, for timing discipline
}

// NewPasswordHasher creates a hasher with the given parameters. All
// parameters must be non-zero.
func NewPasswordHasher(params Argon2idParams, rng clockwork.RNG) (*PasswordHasher, error) {
	if params.Memory == 0 || params.Iterations == 0 || params.Parallelism == 0 || params.SaltLength == 0 || params.KeyLength == 0 {
		return nil, errors.New("argon2id params must be fully configured")
	}
	h := &PasswordHasher{params: params, rng: rng}
	seed, err := rng.Bytes(32)
	if err != nil {
		return nil, fmt.Errorf("failed to seed dummy hash: %w", err)
	}
	dummy, err := h.Hash(base64.RawStdEncoding.EncodeToString(seed))
	if err != nil {
		return nil, fmt.Errorf("failed to build dummy hash: %w", err)
	}
	h.dummy = dummy
	return h, nil
}

// Hash derives an Argon2id hash of password under a fresh random salt.
func (h *PasswordHasher) Hash(password string) (string, error) {
	salt, err := h.rng.Bytes(int(h.params.SaltLength))
	if err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	digest := argon2.IDKey([]byte(password), salt, h.params.Iterations, h.params.Memory, h.params.Parallelism, h.params.KeyLength)

	b64Salt := base64.RawStdEncoding.EncodeToString(salt)
	b64Digest := base64.RawStdEncoding.EncodeToString(digest)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.params.Memory, h.params.Iterations, h.params.Parallelism, b64Salt, b64Digest), nil
}

// Verify reports whether password matches the encoded hash. A malformed
// encoded string yields false; no detail about which field was bad leaks to
// the caller. The comparison is constant-time.
func (h *PasswordHasher) Verify(password, encoded string) bool {
	params, salt, digest, ok := decodeHash(encoded)
	if !ok {
		// Burn comparable work anyway so malformed stored hashes are not
		// distinguishable by timing.
		_ = argon2.IDKey([]byte(password), make([]byte, h.params.SaltLength), h.params.Iterations, h.params.Memory, h.params.Parallelism, h.params.KeyLength)
		return false
	}

	comparison := argon2.IDKey([]byte(password), salt, params.Iterations, params.Memory, params.Parallelism, uint32(len(digest)))
	return subtle.ConstantTimeCompare(digest, comparison) == 1
}

// VerifyDummy runs a full verification against a throwaway hash. Called for
// unknown accounts so that login timing does not reveal whether an email
// exists.
func (h *PasswordHasher) VerifyDummy(password string) {
	_ = h.Verify(password, h.dummy)
}

// NeedsRehash reports whether encoded was produced with parameters weaker
// than the current policy and should be transparently upgraded on the next
// successful verification. Malformed input reports true.
func (h *PasswordHasher) NeedsRehash(encoded string) bool {
	params, _, digest, ok := decodeHash(encoded)
	if !ok {
		return true
	}
	return params.Memory < h.params.Memory ||
		params.Iterations < h.params.Iterations ||
		params.Parallelism < h.params.Parallelism ||
		uint32(len(digest)) < h.params.KeyLength
}

func decodeHash(encoded string) (Argon2idParams, []byte, []byte, bool) {
	var params Argon2idParams

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return params, nil, nil, false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return params, nil, nil, false
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.Memory, &params.Iterations, &params.Parallelism); err != nil {
		return params, nil, nil, false
	}
	if params.Memory == 0 || params.Iterations == 0 || params.Parallelism == 0 {
		return params, nil, nil, false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return params, nil, nil, false
	}
	digest, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(digest) == 0 {
		return params, nil, nil, false
	}

	return params, salt, digest, true
}
