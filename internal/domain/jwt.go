package domain

import (
	"context"
	"crypto/rsa"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTypeRefresh is the token_type claim value marking refresh tokens.
const TokenTypeRefresh = "refresh"

// JWKSCacheDuration bounds how long a generated JWKS document is served
// from cache before the key provider is consulted again.
const JWKSCacheDuration = 5 * time.Minute

// Claims are the registered claims plus the grant-specific claims this
// server embeds in access and refresh tokens.
type Claims struct {
	jwt.RegisteredClaims
	ClientID    string   `json:"client_id,omitempty"`
	Scope       string   `json:"scope,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	TokenType   string   `json:"token_type,omitempty"`
	Nonce       string   `json:"nonce,omitempty"`
}

// IDTokenClaims are the OIDC claims of an ID token. Optional claims are
// omitted when empty, never emitted as null.
type IDTokenClaims struct {
	jwt.RegisteredClaims
	Email             string `json:"email,omitempty"`
	EmailVerified     bool   `json:"email_verified"`
	Name              string `json:"name,omitempty"`
	GivenName         string `json:"given_name,omitempty"`
	FamilyName        string `json:"family_name,omitempty"`
	PreferredUsername string `json:"preferred_username,omitempty"`
	Nonce             string `json:"nonce,omitempty"`
}

// SignOptions describe the token to mint. Subject defaults to UserID
// when present and ClientID otherwise.
type SignOptions struct {
	ClientID    string
	UserID      string
	Scopes      []string
	Permissions []string
	TTL         time.Duration
}

// VerificationReason classifies why a token failed verification.
type VerificationReason string

const (
	VerificationMalformed     VerificationReason = "malformed"
	VerificationExpired       VerificationReason = "expired"
	VerificationBadSignature  VerificationReason = "bad_signature"
	VerificationClaimMismatch VerificationReason = "claim_mismatch"
	VerificationRevoked       VerificationReason = "revoked"
)

// TokenVerificationError is the tagged result of a failed verification.
// It travels by return value, never as control flow across the pipeline.
type TokenVerificationError struct {
	Reason VerificationReason
	Detail string
}

func (e *TokenVerificationError) Error() string {
	if e.Detail == "" {
		return string(e.Reason)
	}
	return string(e.Reason) + ": " + e.Detail
}

// JWTService signs and verifies the tokens issued by this server.
type JWTService interface {
	// SignAccessToken mints a signed access token and returns it with
	// its claims
	SignAccessToken(opts SignOptions) (string, *Claims, error)

	// SignRefreshToken mints a signed refresh token (token_type=refresh)
	SignRefreshToken(opts SignOptions) (string, *Claims, error)

	// SignIDToken mints an OIDC ID token for the user and client
	SignIDToken(user *User, client *Client, nonce string) (string, error)

	// VerifyAccessToken checks signature, issuer, audience, algorithm,
	// expiry and the revocation blacklist
	VerifyAccessToken(ctx context.Context, token string) (*Claims, *TokenVerificationError)

	// VerifyRefreshToken is VerifyAccessToken plus the token_type=refresh
	// claim requirement
	VerifyRefreshToken(ctx context.Context, token string) (*Claims, *TokenVerificationError)

	// HashToken computes the deterministic one-way digest used as the
	// persistence and lookup key; raw tokens are never persisted
	HashToken(token string) string

	// RevokeJTI blacklists a token ID until its natural expiry
	RevokeJTI(ctx context.Context, jti string, expiresAt time.Time) error

	// JWKS returns the public key set document
	JWKS() (map[string]interface{}, error)
}

// SigningKeyProvider supplies the asymmetric key material used by the
// JWT service.
type SigningKeyProvider interface {
	// Sign signs claims with the current private key
	Sign(claims jwt.Claims) (string, error)
	// GetPublicKey returns the public key for verification
	GetPublicKey() *rsa.PublicKey
	// GetKeyID returns the current key ID
	GetKeyID() string
	// RotateKey rotates the key pair
	RotateKey() error
	// GetLastRotation returns the last key rotation time
	GetLastRotation() time.Time
}
