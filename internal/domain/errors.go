package domain

import (
	"errors"
	"fmt"
)

// ErrorKind is an OAuth2 error code as defined by RFC 6749 §5.2,
// plus the resource-access extensions from RFC 6750.
type ErrorKind string

const (
	ErrInvalidRequest          ErrorKind = "invalid_request"
	ErrInvalidClientKind       ErrorKind = "invalid_client"
	ErrInvalidGrant            ErrorKind = "invalid_grant"
	ErrUnauthorizedClient      ErrorKind = "unauthorized_client"
	ErrUnsupportedGrantType    ErrorKind = "unsupported_grant_type"
	ErrInvalidScopeKind        ErrorKind = "invalid_scope"
	ErrAccessDenied            ErrorKind = "access_denied"
	ErrUnsupportedResponseType ErrorKind = "unsupported_response_type"
	ErrServerError             ErrorKind = "server_error"
	ErrTemporarilyUnavailable  ErrorKind = "temporarily_unavailable"
	ErrInsufficientScope       ErrorKind = "insufficient_scope"
	ErrInvalidTokenKind        ErrorKind = "invalid_token"
)

// OAuthError is the error type carried through the grant pipeline.
// Failures are classified at the point of detection and propagated by
// return; the HTTP layer maps Kind to a status code and response body.
type OAuthError struct {
	Kind        ErrorKind
	Description string
	cause       error
}

func (e *OAuthError) Error() string {
	if e.Description == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Description)
}

// Unwrap exposes the internal cause for logging; the cause is never
// rendered to clients.
func (e *OAuthError) Unwrap() error {
	return e.cause
}

// Is makes errors.Is match on Kind so sentinel comparisons work across
// independently constructed errors.
func (e *OAuthError) Is(target error) bool {
	var oe *OAuthError
	if errors.As(target, &oe) {
		return e.Kind == oe.Kind
	}
	return false
}

// NewOAuthError creates an error of the given kind.
func NewOAuthError(kind ErrorKind, description string) *OAuthError {
	return &OAuthError{Kind: kind, Description: description}
}

// WrapServerError classifies an unexpected internal failure. The cause
// is retained for logs only.
func WrapServerError(err error) *OAuthError {
	return &OAuthError{Kind: ErrServerError, Description: "internal server error", cause: err}
}

// AsOAuthError extracts an *OAuthError from err, classifying anything
// unexpected as a server_error.
func AsOAuthError(err error) *OAuthError {
	var oe *OAuthError
	if errors.As(err, &oe) {
		return oe
	}
	return WrapServerError(err)
}

var (
	// ErrInvalidClient is returned when a client cannot be authenticated
	ErrInvalidClient = NewOAuthError(ErrInvalidClientKind, "client authentication failed")

	// ErrClientNotFound is returned when the client does not exist
	ErrClientNotFound = NewOAuthError(ErrInvalidClientKind, "client not found")

	// ErrInvalidRedirectURI is returned when the redirect URI is not registered
	ErrInvalidRedirectURI = NewOAuthError(ErrInvalidRequest, "redirect_uri is not registered for this client")

	// ErrInvalidAuthorizationCode is returned when the code is unknown or already consumed
	ErrInvalidAuthorizationCode = NewOAuthError(ErrInvalidGrant, "invalid authorization code")

	// ErrAuthorizationCodeExpired is returned when the code has passed its TTL
	ErrAuthorizationCodeExpired = NewOAuthError(ErrInvalidGrant, "authorization code expired")

	// ErrInvalidScope is returned when a requested scope cannot be granted
	ErrInvalidScope = NewOAuthError(ErrInvalidScopeKind, "requested scope is not grantable")

	// ErrInternal is returned when there is an internal server error
	ErrInternal = NewOAuthError(ErrServerError, "internal server error")
)
