package permissions

import (
	"context"
	"time"
)

// RoleSource is the read side of the role registry: the single source of
// truth role definitions are compiled from.
type RoleSource interface {
	// GetRole returns the active role for the scope/name pair, or
	// ErrNotFound if it does not exist or is deactivated.
	GetRole(ctx context.Context, scope Scope, roleName string) (*Role, error)
}

// RoleRegistry adds the single write operation the engine performs on roles.
// Update replaces the whole permission set; cache invalidation and the audit
// append are orchestrated by the engine, not the registry, so each step stays
// individually retryable.
type RoleRegistry interface {
	RoleSource

	// UpdateRolePermissions persists the new permission set for the role.
	UpdateRolePermissions(ctx context.Context, scope Scope, roleName string, perms Set, actor string) error
}

// AssignmentSource is the read-only view over which roles a user holds, and
// the reverse index used during role fan-out invalidation.
type AssignmentSource interface {
	// AssignmentsFor returns the user's system type, every active scoped
	// assignment and the individual overrides. ErrNotFound if the user does
	// not exist or is inactive.
	AssignmentsFor(ctx context.Context, userID string) (*UserAssignments, error)

	// UsersWithRole lists every active holder of the role, and only active
	// holders. For the system scope the role name is the system type code.
	UsersWithRole(ctx context.Context, scope Scope, roleName string) ([]string, error)
}

// GeographySource resolves region and office identifiers to their owning
// province. Pure lookups; any caching happens transitively through the
// compiled-permission cache.
type GeographySource interface {
	ProvinceOfRegion(ctx context.Context, regionID string) (string, error)
	RegionAndProvinceOfOffice(ctx context.Context, officeID string) (regionID, provinceCode string, err error)
}

// CacheStore is a keyed store of compiled permissions. Implementations live
// in the cache subpackage; the engine owns expiry semantics and treats an
// entry past its ExpiresAt as a miss regardless of what the store returns.
type CacheStore interface {
	// Get returns the cached entry for the user, or ok=false on a miss.
	Get(ctx context.Context, userID string) (compiled *CompiledPermissions, ok bool, err error)

	// Put stores the entry for its remaining TTL.
	Put(ctx context.Context, userID string, compiled *CompiledPermissions) error

	// Invalidate drops the entry for one user. Dropping an absent entry is
	// not an error.
	Invalidate(ctx context.Context, userID string) error
}

// Clock abstracts time for deterministic tests.
type Clock func() time.Time
