// Package errors defines the error taxonomy shared by every component of the
// auth core. Each kind carries a stable machine-readable code; callers match
// with errors.Is and translate to their transport of choice.
package errors

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// Credential and account state.
	ErrBadCredentials  = errors.New("invalid credentials")
	ErrAccountLocked   = errors.New("account temporarily locked")
	ErrAccountInactive = errors.New("account is not active")
	ErrEmailExists     = errors.New("email already registered")
	ErrWeakPassword    = errors.New("password does not meet policy")

	// Two-factor authentication.
	ErrRequires2FA       = errors.New("two-factor authentication required")
	ErrInvalidCodeFormat = errors.New("code format not recognized")
	ErrBad2FACode        = errors.New("invalid two-factor code")
	ErrAlready2FA        = errors.New("two-factor authentication already enabled")
	ErrNot2FA            = errors.New("two-factor authentication not enabled")

	// Tokens.
	ErrTokenExpired          = errors.New("token has expired")
	ErrTokenMalformed        = errors.New("token is malformed")
	ErrTokenSignatureInvalid = errors.New("token signature is invalid")
	ErrTokenBlacklisted      = errors.New("token has been revoked")
	ErrTokenTypeMismatch     = errors.New("unexpected token type")

	// Sessions and storage.
	ErrSessionNotFound    = errors.New("session not found")
	ErrStorageUnavailable = errors.New("storage unavailable")

	// Internal lookup sentinels used by the store port.
	ErrNotFound     = errors.New("not found")
	ErrUserNotFound = errors.New("user not found")
)

// codes maps taxonomy kinds to their stable API codes.
var codes = map[error]string{
	ErrBadCredentials:        "bad_credentials",
	ErrAccountLocked:         "account_locked",
	ErrAccountInactive:       "account_inactive",
	ErrEmailExists:           "email_exists",
	ErrWeakPassword:          "weak_password",
	ErrRequires2FA:           "requires_2fa",
	ErrInvalidCodeFormat:     "invalid_code_format",
	ErrBad2FACode:            "bad_2fa_code",
	ErrAlready2FA:            "already_2fa",
	ErrNot2FA:                "not_2fa",
	ErrTokenExpired:          "token_expired",
	ErrTokenMalformed:        "token_malformed",
	ErrTokenSignatureInvalid: "token_signature_invalid",
	ErrTokenBlacklisted:      "token_blacklisted",
	ErrTokenTypeMismatch:     "token_type_mismatch",
	ErrSessionNotFound:       "session_not_found",
	ErrStorageUnavailable:    "storage_unavailable",
}

// Code returns the stable code for err, or "internal" when err is not a
// taxonomy kind.
func Code(err error) string {
	for kind, code := range codes {
		if errors.Is(err, kind) {
			return code
		}
	}
	return "internal"
}

// PublicMessage returns the message safe to show an unauthenticated caller.
// BadCredentials, Bad2FACode and AccountLocked deliberately share one opaque
// message so that responses do not reveal whether an account exists.
func PublicMessage(err error) string {
	switch {
	case errors.Is(err, ErrBadCredentials),
		errors.Is(err, ErrBad2FACode),
		errors.Is(err, ErrAccountLocked):
		return "authentication failed"
	default:
		return err.Error()
	}
}

// LockedError reports a lockout together with its expiry instant.
type LockedError struct {
	Until time.Time
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account temporarily locked until %s", e.Until.Format(time.RFC3339))
}

func (e *LockedError) Is(target error) bool { return target == ErrAccountLocked }

// NewLockedError builds a LockedError for the given expiry.
func NewLockedError(until time.Time) error {
	return &LockedError{Until: until}
}

// LockedUntil extracts the lockout expiry from err, if err is a lockout.
func LockedUntil(err error) (time.Time, bool) {
	var le *LockedError
	if errors.As(err, &le) {
		return le.Until, true
	}
	return time.Time{}, false
}

// WeakPasswordError carries the specific policy violation.
type WeakPasswordError struct {
	Reason string
}

func (e *WeakPasswordError) Error() string {
	return "password does not meet policy: " + e.Reason
}

func (e *WeakPasswordError) Is(target error) bool { return target == ErrWeakPassword }

// NewWeakPasswordError builds a WeakPasswordError with the given reason.
func NewWeakPasswordError(reason string) error {
	return &WeakPasswordError{Reason: reason}
}

// Requires2FAError is the non-authenticating sentinel returned by password
// login when the account has two-factor enabled. The challenge token is the
// only artifact the caller may present at step two; it authorizes nothing
// else.
type Requires2FAError struct {
	UserID         uuid.UUID
	ChallengeToken string
}

func (e *Requires2FAError) Error() string {
	return "two-factor authentication required"
}

func (e *Requires2FAError) Is(target error) bool { return target == ErrRequires2FA }

// IsNotFound reports whether err is any of the "missing resource" kinds.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrSessionNotFound)
}

// IsUnauthorized reports whether err should surface as an authentication
// failure.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrBadCredentials) ||
		errors.Is(err, ErrBad2FACode) ||
		errors.Is(err, ErrAccountLocked) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrTokenMalformed) ||
		errors.Is(err, ErrTokenSignatureInvalid) ||
		errors.Is(err, ErrTokenBlacklisted) ||
		errors.Is(err, ErrTokenTypeMismatch)
}

// IsConflict reports whether err is a uniqueness conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrEmailExists) || errors.Is(err, ErrAlready2FA)
}

// IsStorageUnavailable reports whether err is a transient storage failure
// worth retrying.
func IsStorageUnavailable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}
