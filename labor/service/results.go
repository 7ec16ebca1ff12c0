package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/acme-health/labor/labor"
)

// The service reports every non-success outcome as a typed error value,
// so callers can branch with errors.As and render precise responses.

// NotFoundError means no laboratory exists for the id.
type NotFoundError struct {
	ID uuid.UUID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("labor %s not found", e.ID)
}

// AccessForbiddenError means the caller may not access the laboratory.
// Roles holds the caller's resolved roles; it is empty when the caller
// could not be resolved at all.
type AccessForbiddenError struct {
	Roles []string
}

func (e *AccessForbiddenError) Error() string {
	if len(e.Roles) == 0 {
		return "access forbidden"
	}
	return "access forbidden for roles " + strings.Join(e.Roles, ",")
}

// ValidationError carries all broken field rules.
type ValidationError struct {
	Violations []labor.Violation
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		keys = append(keys, v.Key)
	}
	return "validation failed: " + strings.Join(keys, ",")
}

// VersionInvalidError means the supplied version tag is not a number.
type VersionInvalidError struct {
	Raw string
}

func (e *VersionInvalidError) Error() string {
	return fmt.Sprintf("version %q is not a valid version number", e.Raw)
}

// VersionOutdatedError means another writer won, the supplied version is
// no longer current.
type VersionOutdatedError struct {
	Version int
}

func (e *VersionOutdatedError) Error() string {
	return fmt.Sprintf("version %d is outdated", e.Version)
}

// UsernameExistsError means the embedded account's username is taken.
type UsernameExistsError struct {
	Username string
}

func (e *UsernameExistsError) Error() string {
	return fmt.Sprintf("username %q already exists", e.Username)
}

// ErrInvalidAccount means a create request carried no usable embedded
// account.
var ErrInvalidAccount = errors.New("labor has no valid account attached")
