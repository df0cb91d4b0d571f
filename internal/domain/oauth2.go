package domain

import "context"

// Grant types supported by the token endpoint.
const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeRefreshToken      = "refresh_token"
	GrantTypeClientCredentials = "client_credentials"
)

// ResponseTypeCode is the only response type issued by default.
const ResponseTypeCode = "code"

// ClientAssertionTypeJWTBearer is the assertion type for private_key_jwt
// client authentication (RFC 7523).
const ClientAssertionTypeJWTBearer = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"

// ClientCredentials carries everything a request presented to establish
// the client's identity. The raw Authorization header travels here so
// malformed Basic credentials are classified inside the core, not by
// the transport layer.
type ClientCredentials struct {
	ClientID            string
	ClientSecret        string
	ClientAssertionType string
	ClientAssertion     string
	AuthorizationHeader string
}

// TokenRequest is the normalized form body of a token endpoint call.
type TokenRequest struct {
	GrantType    string
	Code         string
	RedirectURI  string
	CodeVerifier string
	RefreshToken string
	Scope        string
	Credentials  ClientCredentials
	IPAddress    string
	UserAgent    string
}

// TokenResponse is the success payload of the token endpoint.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	Scope        string `json:"scope"`
}

// RevocationRequest is the normalized form body of a revocation call
// (RFC 7009).
type RevocationRequest struct {
	Token         string
	TokenTypeHint string
	Credentials   ClientCredentials
	IPAddress     string
	UserAgent     string
}

// AuthorizeRequest is the normalized query of an authorization endpoint
// call, resolved against an already-authenticated resource owner.
type AuthorizeRequest struct {
	ResponseType        string
	ClientID            string
	RedirectURI         string
	Scope               string
	State               string
	Nonce               string
	CodeChallenge       string
	CodeChallengeMethod string
	UserID              string
	IPAddress           string
	UserAgent           string
}

// AuthorizeResult carries the issued code and the echoed state for the
// redirect back to the client.
type AuthorizeResult struct {
	Code        string
	State       string
	RedirectURI string
}

// ClientAuthenticator establishes a client identity from presented
// credentials. Every failure path classifies as invalid_client.
type ClientAuthenticator interface {
	Authenticate(ctx context.Context, creds ClientCredentials) (*Client, error)
}

// GrantService executes token endpoint grant flows and revocation.
type GrantService interface {
	Token(ctx context.Context, req *TokenRequest) (*TokenResponse, error)
	Revoke(ctx context.Context, req *RevocationRequest) error
}

// AuthorizationService executes the authorization endpoint flow.
type AuthorizationService interface {
	Authorize(ctx context.Context, req *AuthorizeRequest) (*AuthorizeResult, error)
	Deny(ctx context.Context, req *AuthorizeRequest) *AuthorizeResult
}
