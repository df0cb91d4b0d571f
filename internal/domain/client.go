package domain

import (
	"context"
	"time"
)

// Client represents a registered OAuth2 client. Clients are administered
// externally; this core only reads them.
type Client struct {
	ID           string     `json:"id"`
	SecretHash   string     `json:"-"`
	IsPublic     bool       `json:"is_public"`
	IsActive     bool       `json:"is_active"`
	RedirectURIs []string   `json:"redirect_uris"`
	Scopes       []string   `json:"scopes"`
	GrantTypes   []string   `json:"grant_types"`
	SecretExpiry *time.Time `json:"secret_expires_at,omitempty"`
	JWKSURI      string     `json:"jwks_uri,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// AllowsGrantType reports whether the client is registered for the grant type.
func (c *Client) AllowsGrantType(grantType string) bool {
	for _, g := range c.GrantTypes {
		if g == grantType {
			return true
		}
	}
	return false
}

// AllowsRedirectURI checks registration with exact string matching.
// Prefix or pattern matching is deliberately not supported.
func (c *Client) AllowsRedirectURI(uri string) bool {
	for _, registered := range c.RedirectURIs {
		if registered == uri {
			return true
		}
	}
	return false
}

// SecretExpired reports whether the client secret is past its expiry.
func (c *Client) SecretExpired(now time.Time) bool {
	return c.SecretExpiry != nil && now.After(*c.SecretExpiry)
}

// ClientRepository defines read access to registered clients.
type ClientRepository interface {
	// FindByID finds a client by its identifier
	FindByID(ctx context.Context, id string) (*Client, error)
}
