// Package directory manages user accounts and their roles. Passwords are
// stored bcrypt-hashed, usernames are canonically lower-cased.
package directory

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// The roles known to the system.
const (
	RoleAdmin = "admin"
	RoleLabor = "labor"
)

// The sentinel errors of the directory contract.
var (
	ErrNotFound      = errors.New("account not found")
	ErrUsernameTaken = errors.New("username already taken")
)

// Account is a user account. Password holds the bcrypt hash, never the
// clear text.
type Account struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Password string    `json:"-"`
	Roles    []string  `json:"roles"`
	Created  time.Time `json:"created"`
}

// HasRole reports whether the account carries the role.
func (a Account) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Directory is the account store contract.
type Directory interface {
	// FindByUsername returns the account or ErrNotFound. Lookup is
	// case-insensitive.
	FindByUsername(ctx context.Context, username string) (*Account, error)
	// Create stores a new account with the given roles and returns it.
	// The username is lower-cased, the password bcrypt-hashed. A taken
	// username yields ErrUsernameTaken.
	Create(ctx context.Context, username, password string, roles []string) (*Account, error)
}

// CanonicalUsername returns the canonical form of a username.
func CanonicalUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
