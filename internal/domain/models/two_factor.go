package models

import (
	"time"

	"github.com/google/uuid"
)

// BackupCodeCount is the number of single-use recovery codes issued per user.
const BackupCodeCount = 10

// BackupCodeLength is the length of a recovery code in characters.
const BackupCodeLength = 8

// TwoFactor is the one-to-one TOTP record for a user. The record exists as
// soon as enrollment starts; Enabled flips only after the first successful
// TOTP verification against Secret.
type TwoFactor struct {
	UserID uuid.UUID
	Secret string // base32, >= 160 bits of entropy

	// BackupCodeHashes holds SHA-256 digests (hex) of the outstanding
	// single-use codes. Plain codes are shown to the user exactly once.
	BackupCodeHashes []string

	Enabled    bool
	LastUsedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Configured reports whether a secret has been provisioned.
func (tf *TwoFactor) Configured() bool { return tf != nil && tf.Secret != "" }
