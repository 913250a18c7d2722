package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// User is the core account record. The service reads IsStaff and IsSuperuser
// but never evaluates permissions beyond those booleans.
type User struct {
	ID              uuid.UUID
	Email           string // local part preserved, domain lowercased
	EmailNormalized string // fully lowercased, unique
	PasswordHash    string // self-describing encoded hash
	FirstName       string
	LastName        string

	Verified         bool
	IsActive         bool
	TwoFactorEnabled bool

	FailedAttempts int
	LockedUntil    *time.Time
	LastLoginIP    string

	IsStaff     bool
	IsSuperuser bool

	CreatedAt      time.Time
	UpdatedAt      time.Time
	LastActivityAt time.Time
}

// IsLocked reports whether the account is locked out at the given instant.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}

// NormalizeEmail lowercases the domain part while preserving the local part,
// and returns the fully lowercased form used for uniqueness checks.
func NormalizeEmail(email string) (stored string, normalized string) {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email, strings.ToLower(email)
	}
	stored = email[:at] + "@" + strings.ToLower(email[at+1:])
	return stored, strings.ToLower(email)
}

// ValidEmail is a cheap syntactic check: one "@", non-empty local part, and a
// domain containing a dot.
func ValidEmail(email string) bool {
	at := strings.LastIndex(email, "@")
	if at < 1 || at == len(email)-1 {
		return false
	}
	domain := email[at+1:]
	if strings.ContainsAny(email, " \t\r\n") {
		return false
	}
	return strings.Contains(domain, ".") && !strings.HasPrefix(domain, ".") && !strings.HasSuffix(domain, ".")
}

// UserPatch describes a partial update applied to a user record. Nil fields
// are left untouched; lockout state has dedicated store operations.
type UserPatch struct {
	PasswordHash     *string
	Verified         *bool
	IsActive         *bool
	TwoFactorEnabled *bool
	LastLoginIP      *string
	LastActivityAt   *time.Time
}
