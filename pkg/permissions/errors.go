package permissions

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound indicates the user, role or scope instance does not exist
	// or is inactive.
	ErrNotFound = errors.New("not found")

	// ErrUpstreamUnavailable indicates a collaborator lookup failed or timed
	// out. Compilations that hit it fail whole; the gate treats it as a
	// denial.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrInvalidInput indicates a malformed scope or role name.
	ErrInvalidInput = errors.New("invalid input")
)

// PartialInvalidationError reports a role fan-out invalidation that failed for
// some users. The entries that did invalidate stay invalidated; callers may
// retry the listed users specifically.
type PartialInvalidationError struct {
	Scope       Scope
	RoleName    string
	FailedUsers []string
}

func (e *PartialInvalidationError) Error() string {
	return fmt.Sprintf("invalidation for role %s/%s failed for %d user(s): %s",
		e.Scope, e.RoleName, len(e.FailedUsers), strings.Join(e.FailedUsers, ", "))
}

// validateRoleRef rejects malformed scope/role pairs before they reach storage.
func validateRoleRef(scope Scope, roleName string) error {
	if !scope.Valid() {
		return fmt.Errorf("%w: unknown scope %q", ErrInvalidInput, scope)
	}
	if strings.TrimSpace(roleName) == "" {
		return fmt.Errorf("%w: empty role name", ErrInvalidInput)
	}
	return nil
}
