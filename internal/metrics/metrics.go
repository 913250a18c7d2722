// Package metrics exposes the prometheus collectors the auth core feeds.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LoginAttemptsTotal counts password logins by outcome:
	// success, requires_2fa, failure_credentials, failure_locked,
	// failure_inactive.
	LoginAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_login_attempts_total",
		Help: "Password login attempts by outcome.",
	}, []string{"outcome"})

	// RegistrationsTotal counts account registrations by outcome.
	RegistrationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_registrations_total",
		Help: "Account registrations by outcome.",
	}, []string{"outcome"})

	// TwoFactorVerificationsTotal counts second-factor checks by method and
	// outcome.
	TwoFactorVerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_2fa_verifications_total",
		Help: "Two-factor verifications by method and outcome.",
	}, []string{"method", "outcome"})

	// TokenRotationsTotal counts refresh rotations by outcome.
	TokenRotationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_token_rotations_total",
		Help: "Refresh token rotations by outcome.",
	}, []string{"outcome"})

	// SessionsPurgedTotal counts sessions removed by the janitor.
	SessionsPurgedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auth_sessions_purged_total",
		Help: "Expired sessions removed by the janitor.",
	})

	// BlacklistPurgedTotal counts blacklist entries removed by the janitor.
	BlacklistPurgedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auth_blacklist_purged_total",
		Help: "Expired blacklist entries removed by the janitor.",
	})
)
