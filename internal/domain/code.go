package domain

import (
	"context"
	"time"
)

// DefaultAuthorizationCodeDuration is the TTL of an authorization code.
const DefaultAuthorizationCodeDuration = 10 * time.Minute

// AuthorizationCode represents a single-use OAuth2 authorization code.
// The code value itself is opaque, carrying at least 256 bits of entropy.
type AuthorizationCode struct {
	Code                string     `json:"code"`
	ClientID            string     `json:"client_id"`
	UserID              string     `json:"user_id"`
	RedirectURI         string     `json:"redirect_uri"`
	Scopes              []string   `json:"scopes"`
	Nonce               string     `json:"nonce,omitempty"`
	CodeChallenge       string     `json:"code_challenge,omitempty"`
	CodeChallengeMethod string     `json:"code_challenge_method,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	ExpiresAt           time.Time  `json:"expires_at"`
	ConsumedAt          *time.Time `json:"consumed_at,omitempty"`
}

// Expired reports whether the code is past its TTL.
func (c *AuthorizationCode) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// AuthorizationCodeRepository defines persistence for authorization codes.
type AuthorizationCodeRepository interface {
	// Create stores a new authorization code
	Create(ctx context.Context, code *AuthorizationCode) error

	// Consume atomically marks an unexpired, unconsumed code as consumed
	// and returns it. When the code is unknown, expired, or already
	// consumed (including by a concurrent racer) it returns
	// ErrInvalidAuthorizationCode: exactly one concurrent caller wins.
	Consume(ctx context.Context, code string) (*AuthorizationCode, error)

	// DeleteExpired removes codes whose TTL has passed
	DeleteExpired(ctx context.Context) (int64, error)
}
