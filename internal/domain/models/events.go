package models

import (
	"time"

	"github.com/google/uuid"
)

// Event names returned by orchestrator operations. The core produces these
// as plain values; dispatching them (mail, analytics, webhooks) is the
// caller's business.
const (
	EventUserRegistered        = "auth.user.registered"
	EventUserLoggedIn          = "auth.user.logged_in"
	EventUserLoggedOut         = "auth.user.logged_out"
	EventPasswordChanged       = "auth.user.password_changed"
	EventTwoFactorEnabled      = "auth.2fa.enabled"
	EventTwoFactorDisabled     = "auth.2fa.disabled"
	EventBackupCodesRegenerated = "auth.2fa.backup_codes_regenerated"
	EventSessionsRevoked       = "auth.session.all_revoked"
)

// Event describes a durable state change a caller may want to act on.
type Event struct {
	Name       string
	UserID     uuid.UUID
	OccurredAt time.Time
	Meta       map[string]string
}
