package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEmail(t *testing.T) {
	cases := []struct {
		in         string
		stored     string
		normalized string
	}{
		{"Alice@Example.COM", "Alice@example.com", "alice@example.com"},
		{"  bob@example.com  ", "bob@example.com", "bob@example.com"},
		{"MiXeD.CaSe@SUB.Example.Org", "MiXeD.CaSe@sub.example.org", "mixed.case@sub.example.org"},
	}
	for _, tc := range cases {
		stored, normalized := NormalizeEmail(tc.in)
		assert.Equal(t, tc.stored, stored, "stored for %q", tc.in)
		assert.Equal(t, tc.normalized, normalized, "normalized for %q", tc.in)
	}
}

func TestValidEmail(t *testing.T) {
	valid := []string{"a@b.co", "first.last@example.com", "x+tag@sub.example.org"}
	invalid := []string{"", "plain", "@example.com", "a@", "a@nodot", "a b@example.com", "a@.com", "a@com."}

	for _, e := range valid {
		assert.True(t, ValidEmail(e), "expected valid: %q", e)
	}
	for _, e := range invalid {
		assert.False(t, ValidEmail(e), "expected invalid: %q", e)
	}
}

func TestUserIsLocked(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	var u User
	assert.False(t, u.IsLocked(now))

	until := now.Add(time.Minute)
	u.LockedUntil = &until
	assert.True(t, u.IsLocked(now))
	assert.False(t, u.IsLocked(now.Add(2*time.Minute)))
}

func TestSessionValid(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	s := Session{Active: true, ExpiresAt: now.Add(time.Hour)}
	assert.True(t, s.Valid(now))
	assert.False(t, s.Valid(now.Add(2*time.Hour)))

	s.Active = false
	assert.False(t, s.Valid(now))
}
