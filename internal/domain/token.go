package domain

import (
	"context"
	"time"
)

const (
	// DefaultAccessTokenDuration is the TTL of an access token
	DefaultAccessTokenDuration = 1 * time.Hour

	// DefaultRefreshTokenDuration is the TTL of a refresh token
	DefaultRefreshTokenDuration = 30 * 24 * time.Hour

	// DefaultIDTokenDuration is the TTL of an OIDC ID token
	DefaultIDTokenDuration = 1 * time.Hour
)

// AccessTokenRecord is the persisted trace of an issued access token.
// Only the digest of the signed JWT is stored, never the bearer value.
type AccessTokenRecord struct {
	ID        string    `json:"id"`
	TokenHash string    `json:"-"`
	JTI       string    `json:"jti"`
	ClientID  string    `json:"client_id"`
	UserID    string    `json:"user_id,omitempty"`
	Scopes    []string  `json:"scopes"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RefreshTokenRecord is the persisted trace of an issued refresh token.
// Records form a rotation chain: each use revokes the prior record and
// creates a successor linked via PreviousTokenID.
type RefreshTokenRecord struct {
	ID              string     `json:"id"`
	TokenHash       string     `json:"-"`
	JTI             string     `json:"jti"`
	ClientID        string     `json:"client_id"`
	UserID          string     `json:"user_id,omitempty"`
	Scopes          []string   `json:"scopes"`
	IsRevoked       bool       `json:"is_revoked"`
	RevokedAt       *time.Time `json:"revoked_at,omitempty"`
	PreviousTokenID string     `json:"previous_token_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	ExpiresAt       time.Time  `json:"expires_at"`
}

// Expired reports whether the refresh record is past its TTL.
func (r *RefreshTokenRecord) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// TokenRepository defines persistence for issued token records.
type TokenRepository interface {
	// CreateAccessToken stores a new access token record
	CreateAccessToken(ctx context.Context, record *AccessTokenRecord) error

	// CreateRefreshToken stores a new refresh token record
	CreateRefreshToken(ctx context.Context, record *RefreshTokenRecord) error

	// FindAccessTokenByHash finds an access token record by its digest
	FindAccessTokenByHash(ctx context.Context, hash string) (*AccessTokenRecord, error)

	// FindRefreshTokenByHash finds a refresh token record by its digest
	FindRefreshTokenByHash(ctx context.Context, hash string) (*RefreshTokenRecord, error)

	// RevokeRefreshToken atomically revokes the record when it is not yet
	// revoked. It reports whether this call performed the revocation, so
	// that exactly one of several concurrent rotations wins.
	RevokeRefreshToken(ctx context.Context, id string) (bool, error)

	// RevokeRefreshTokenChain revokes the record and every successor
	// linked to it through PreviousTokenID, in both directions.
	RevokeRefreshTokenChain(ctx context.Context, id string) (int64, error)
}

// RevocationRepository is the jti blacklist consulted on every token
// verification. Presence of a jti blocks the token regardless of its
// embedded expiry.
type RevocationRepository interface {
	// Add records a revoked jti until expiresAt
	Add(ctx context.Context, jti string, expiresAt time.Time) error

	// Contains reports whether the jti is blacklisted
	Contains(ctx context.Context, jti string) (bool, error)

	// DeleteExpired prunes entries whose retention window has passed
	DeleteExpired(ctx context.Context) (int64, error)
}
