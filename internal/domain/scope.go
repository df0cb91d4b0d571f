package domain

import (
	"context"
	"strings"
)

// Scope is a named unit of access administered externally.
type Scope struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	IsActive    bool   `json:"is_active"`
	IsPublic    bool   `json:"is_public"`
}

// ParseScope splits a scope string on whitespace, dropping empties.
// Scope strings have set semantics; order is not significant.
func ParseScope(scope string) []string {
	return strings.Fields(scope)
}

// FormatScope joins scopes into the space-delimited wire form.
func FormatScope(scopes []string) string {
	return strings.Join(scopes, " ")
}

// HasScope reports whether granted contains the scope.
func HasScope(granted []string, scope string) bool {
	for _, s := range granted {
		if s == scope {
			return true
		}
	}
	return false
}

// HasAnyScope reports whether granted contains at least one of the scopes.
func HasAnyScope(granted []string, scopes ...string) bool {
	for _, s := range scopes {
		if HasScope(granted, s) {
			return true
		}
	}
	return false
}

// HasAllScopes reports whether granted contains every scope.
func HasAllScopes(granted []string, scopes ...string) bool {
	for _, s := range scopes {
		if !HasScope(granted, s) {
			return false
		}
	}
	return true
}

// ScopeValidation is the tagged result of a scope check.
type ScopeValidation struct {
	Valid         bool     `json:"valid"`
	InvalidScopes []string `json:"invalid_scopes,omitempty"`
	Reason        string   `json:"reason,omitempty"`
}

// ScopeRepository defines read access to the global scope catalog.
type ScopeRepository interface {
	// FindByNames returns the catalog entries for the given names;
	// unknown names are simply absent from the result
	FindByNames(ctx context.Context, names []string) ([]*Scope, error)

	// ListActive returns every active scope
	ListActive(ctx context.Context) ([]*Scope, error)
}
