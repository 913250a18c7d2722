package models

import (
	"time"

	"github.com/google/uuid"
)

// Session is a server-side record binding a user to a device, orthogonal to
// JWT state. It backs sign-out-everywhere and auditing.
type Session struct {
	Key        string // opaque, URL-safe, unique
	UserID     uuid.UUID
	DeviceInfo map[string]string
	IPAddress  string
	UserAgent  string

	CreatedAt      time.Time
	LastActivityAt time.Time
	ExpiresAt      time.Time
	Active         bool
}

// Valid reports whether the session authorizes requests at the given instant.
func (s *Session) Valid(now time.Time) bool {
	return s.Active && now.Before(s.ExpiresAt)
}
