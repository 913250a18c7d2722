package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/aviary-platform/auth-service/internal/clockwork"
	"github.com/aviary-platform/auth-service/internal/domain/models"
)

// TOTPOptions configures the engine. Zero values fall back to the RFC 6238
// conventions every authenticator app ships with.
type TOTPOptions struct {
	Issuer     string
	Period     uint // seconds, default 30
	Digits     int  // default 6
	Skew       uint // tolerated periods either side, default 1
	SecretSize int  // bytes of secret entropy, default 20
}

// TOTPEngine generates secrets, renders provisioning URIs and verifies codes.
type TOTPEngine struct {
	opts TOTPOptions
	rng  clockwork.RNG
}

// NewTOTPEngine creates an engine. issuer must not contain a colon, which
// would break the otpauth label format.
func NewTOTPEngine(opts TOTPOptions, rng clockwork.RNG) (*TOTPEngine, error) {
	if opts.Issuer == "" {
		return nil, fmt.Errorf("totp issuer must be configured")
	}
	for _, r := range opts.Issuer {
		if r == ':' {
			return nil, fmt.Errorf("totp issuer must not contain a colon")
		}
	}
	if opts.Period == 0 {
		opts.Period = 30
	}
	if opts.Digits == 0 {
		opts.Digits = 6
	}
	if opts.Skew == 0 {
		opts.Skew = 1
	}
	if opts.SecretSize == 0 {
		opts.SecretSize = 20
	}
	return &TOTPEngine{opts: opts, rng: rng}, nil
}

// GenerateSecret returns a fresh base32 secret with at least 160 bits of
// entropy.
func (e *TOTPEngine) GenerateSecret() (string, error) {
	raw, err := e.rng.Bytes(e.opts.SecretSize)
	if err != nil {
		return "", fmt.Errorf("failed to generate totp secret: %w", err)
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(raw), nil
}

// ProvisioningURI renders the otpauth:// URI encoding secret, account and
// issuer, in the exact shape authenticator apps expect.
func (e *TOTPEngine) ProvisioningURI(secret, account string) string {
	v := url.Values{}
	v.Set("secret", secret)
	v.Set("issuer", e.opts.Issuer)
	v.Set("period", strconv.FormatUint(uint64(e.opts.Period), 10))
	v.Set("digits", strconv.Itoa(e.opts.Digits))
	v.Set("algorithm", otp.AlgorithmSHA1.String())

	u := url.URL{
		Scheme:   "otpauth",
		Host:     "totp",
		Path:     "/" + e.opts.Issuer + ":" + account,
		RawQuery: v.Encode(),
	}
	return u.String()
}

// VerifyCode reports whether code matches the secret at any period within the
// configured skew of now.
func (e *TOTPEngine) VerifyCode(secret, code string, now time.Time) bool {
	valid, err := totp.ValidateCustom(code, secret, now.UTC(), totp.ValidateOpts{
		Period:    e.opts.Period,
		Skew:      e.opts.Skew,
		Digits:    otp.Digits(e.opts.Digits),
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return false
	}
	return valid
}

const backupCodeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateBackupCodes returns models.BackupCodeCount fresh single-use codes,
// each models.BackupCodeLength characters from [A-Z0-9].
func (e *TOTPEngine) GenerateBackupCodes() ([]string, error) {
	codes := make([]string, models.BackupCodeCount)
	for i := range codes {
		code, err := e.randomCode(models.BackupCodeLength)
		if err != nil {
			return nil, err
		}
		codes[i] = code
	}
	return codes, nil
}

func (e *TOTPEngine) randomCode(length int) (string, error) {
	// Rejection sampling keeps the charset distribution uniform. 252 is the
	// largest multiple of 36 below 256.
	const limit = byte(252)
	out := make([]byte, 0, length)
	for len(out) < length {
		buf, err := e.rng.Bytes(length)
		if err != nil {
			return "", fmt.Errorf("failed to generate backup code: %w", err)
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			out = append(out, backupCodeCharset[int(b)%len(backupCodeCharset)])
			if len(out) == length {
				break
			}
		}
	}
	return string(out), nil
}

// HashBackupCode returns the hex SHA-256 digest under which a backup code is
// stored. Codes never persist in plain form. Input is uppercased first:
// codes are issued uppercase and matching is case-insensitive.
func HashBackupCode(code string) string {
	sum := sha256.Sum256([]byte(strings.ToUpper(code)))
	return hex.EncodeToString(sum[:])
}

// ConstantTimeEquals compares two strings without leaking the position of the
// first difference.
func ConstantTimeEquals(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// CodeKind classifies a submitted second-factor code by shape.
type CodeKind int

const (
	CodeKindInvalid CodeKind = iota
	CodeKindTOTP
	CodeKindBackup
)

// ClassifyCode discriminates user input: six digits go down the TOTP path,
// eight alphanumerics down the backup path, anything else is rejected before
// touching storage.
func ClassifyCode(code string) CodeKind {
	switch len(code) {
	case 6:
		for _, r := range code {
			if r < '0' || r > '9' {
				return CodeKindInvalid
			}
		}
		return CodeKindTOTP
	case models.BackupCodeLength:
		for _, r := range code {
			isDigit := r >= '0' && r <= '9'
			isUpper := r >= 'A' && r <= 'Z'
			isLower := r >= 'a' && r <= 'z'
			if !isDigit && !isUpper && !isLower {
				return CodeKindInvalid
			}
		}
		return CodeKindBackup
	default:
		return CodeKindInvalid
	}
}
