package domain

import (
	"context"

	"github.com/oklog/ulid/v2"
)

// User is the resource owner. User administration lives outside this
// core; reads serve ID token claims and permission aggregation.
type User struct {
	ID                ulid.ULID `json:"id"`
	Email             string    `json:"email"`
	EmailVerified     bool      `json:"email_verified"`
	Name              string    `json:"name,omitempty"`
	GivenName         string    `json:"given_name,omitempty"`
	FamilyName        string    `json:"family_name,omitempty"`
	PreferredUsername string    `json:"preferred_username,omitempty"`
	Roles             []string  `json:"roles"`
}

// UserRepository defines read access to users.
type UserRepository interface {
	// FindByID finds a user by ID
	FindByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetPermissions aggregates the effective permissions granted to the
	// user through its roles
	GetPermissions(ctx context.Context, id ulid.ULID) ([]string, error)
}
