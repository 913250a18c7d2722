package models

import (
	"time"

	"github.com/google/uuid"
)

// RegisterRequest is the input to account creation.
type RegisterRequest struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// AuthResult is a successful authentication: the durable state reference plus
// the freshly issued credentials.
type AuthResult struct {
	User       *User
	Tokens     *TokenPair
	SessionKey string
	Events     []Event
}

// TwoFactorSetup is returned from enrollment, exactly once per secret. The
// plain backup codes are not recoverable afterwards.
type TwoFactorSetup struct {
	Secret          string
	ProvisioningURI string
	BackupCodes     []string
}

// TwoFactorStatus is the read-only 2FA summary for an account.
type TwoFactorStatus struct {
	Enabled              bool
	Configured           bool
	BackupCodesRemaining int
	LastUsedAt           *time.Time
}

// SessionInfo is the caller-visible projection of a session.
type SessionInfo struct {
	Key            string
	UserID         uuid.UUID
	DeviceInfo     map[string]string
	IPAddress      string
	CreatedAt      time.Time
	LastActivityAt time.Time
	ExpiresAt      time.Time
}
