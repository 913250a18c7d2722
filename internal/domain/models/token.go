package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token types carried in the token_type claim.
const (
	TokenTypeAccess    = "access"
	TokenTypeRefresh   = "refresh"
	TokenTypeChallenge = "2fa"
)

// Claims is the JWT claim set used for every token the service signs. The
// wire layout is fixed: user_id, token_type, and the registered iat/exp/jti.
// Refresh tokens additionally carry rti, the rotation lineage id.
type Claims struct {
	UserID     string `json:"user_id"`
	TokenType  string `json:"token_type"`
	RotationID string `json:"rti,omitempty"`
	jwt.RegisteredClaims
}

// TokenPair is one access/refresh issuance.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time // access token expiry
}

// BlacklistEntry marks a refresh token id as revoked. ExpiresAt mirrors the
// token's own expiry so entries can be garbage-collected once they could no
// longer verify anyway.
type BlacklistEntry struct {
	JTI           string
	BlacklistedAt time.Time
	ExpiresAt     time.Time
}
