package permissions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/schuttebj/linc-backend/pkg/observability"
)

// Compiler materializes a user's permissions from all four sources:
// system type, region roles, office roles and individual overrides.
//
// Final Permissions = System ∪ (⋃ Region) ∪ (⋃ Office) ∪ Overrides
//
// Overrides are additive only: they can grant permissions a role did not, but
// there is no mechanism to revoke a role-level grant for one user. That is a
// deliberate boundary of the model, not an omission.
type Compiler struct {
	roles       RoleSource
	assignments AssignmentSource
	geo         GeographySource
	ttl         time.Duration
	now         Clock
	logger      *observability.Logger
}

// NewCompiler wires a compiler to its collaborators. ttl controls the
// expires_at stamp on every compiled result.
func NewCompiler(roles RoleSource, assignments AssignmentSource, geo GeographySource, ttl time.Duration, logger *observability.Logger) *Compiler {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Compiler{
		roles:       roles,
		assignments: assignments,
		geo:         geo,
		ttl:         ttl,
		now:         time.Now,
		logger:      logger,
	}
}

// WithClock overrides the compiler's time source. Tests only.
func (c *Compiler) WithClock(now Clock) *Compiler {
	c.now = now
	return c
}

// Compile builds a fresh CompiledPermissions for the user. Any collaborator
// failure aborts the whole compilation; no partial result is ever returned.
// A missing or inactive user yields ErrNotFound.
func (c *Compiler) Compile(ctx context.Context, userID string) (*CompiledPermissions, error) {
	ua, err := c.assignments.AssignmentsFor(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
		}
		return nil, fmt.Errorf("fetch assignments for user %s: %w", userID, err)
	}

	now := c.now()
	compiled := &CompiledPermissions{
		UserID:              userID,
		SystemType:          ua.SystemType,
		SystemPermissions:   NewSet(),
		RegionPermissions:   make(map[string]Set, len(ua.RegionAssignments)),
		OfficePermissions:   make(map[string]Set, len(ua.OfficeAssignments)),
		IndividualOverrides: NewSet(ua.IndividualOverrides...),
		FinalPermissions:    NewSet(),
		GeographicAccess:    NewGeographicAccess(),
		CompiledAt:          now,
		ExpiresAt:           now.Add(c.ttl),
	}

	compiled.SystemPermissions, err = c.rolePermissions(ctx, ScopeSystem, string(ua.SystemType))
	if err != nil {
		return nil, err
	}

	// Per-region and per-office breakdowns are kept alongside the union;
	// introspection surfaces need to attribute permissions to their source.
	for _, ra := range ua.RegionAssignments {
		perms, err := c.rolePermissions(ctx, ScopeRegion, ra.RegionRole)
		if err != nil {
			return nil, err
		}
		compiled.RegionPermissions[ra.RegionID] = perms
	}

	for _, oa := range ua.OfficeAssignments {
		perms, err := c.rolePermissions(ctx, ScopeOffice, oa.OfficeRole)
		if err != nil {
			return nil, err
		}
		compiled.OfficePermissions[oa.OfficeID] = perms
	}

	compiled.FinalPermissions = mergePermissions(compiled)

	if err := c.resolveGeography(ctx, ua, &compiled.GeographicAccess); err != nil {
		return nil, err
	}

	c.logger.WithFields(map[string]interface{}{
		"user_id":          userID,
		"system_type":      string(ua.SystemType),
		"permission_count": len(compiled.FinalPermissions),
	}).Debug("compiled user permissions")

	return compiled, nil
}

// rolePermissions resolves one role's permission set. A role definition that
// does not exist resolves to the empty set: assignments may reference roles
// that were deactivated, and those grants simply contribute nothing.
func (c *Compiler) rolePermissions(ctx context.Context, scope Scope, roleName string) (Set, error) {
	role, err := c.roles.GetRole(ctx, scope, roleName)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return NewSet(), nil
		}
		return nil, fmt.Errorf("resolve %s role %q: %w", scope, roleName, err)
	}
	return role.Permissions.Clone(), nil
}

// mergePermissions unions all four sources into the final set.
func mergePermissions(compiled *CompiledPermissions) Set {
	final := compiled.SystemPermissions.Clone()
	for _, perms := range compiled.RegionPermissions {
		final.Union(perms)
	}
	for _, perms := range compiled.OfficePermissions {
		final.Union(perms)
	}
	final.Union(compiled.IndividualOverrides)
	return final
}

// resolveGeography walks every assignment through the geography source and
// unions the reachable provinces, regions and offices. A dangling assignment
// (region or office row gone) contributes nothing; infrastructure failures
// abort the compilation.
func (c *Compiler) resolveGeography(ctx context.Context, ua *UserAssignments, access *GeographicAccess) error {
	for _, ra := range ua.RegionAssignments {
		access.Regions.Add(ra.RegionID)
		province, err := c.geo.ProvinceOfRegion(ctx, ra.RegionID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return fmt.Errorf("resolve province of region %s: %w", ra.RegionID, err)
		}
		access.Provinces.Add(province)
	}

	for _, oa := range ua.OfficeAssignments {
		access.Offices.Add(oa.OfficeID)
		regionID, province, err := c.geo.RegionAndProvinceOfOffice(ctx, oa.OfficeID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return fmt.Errorf("resolve region/province of office %s: %w", oa.OfficeID, err)
		}
		access.Regions.Add(regionID)
		access.Provinces.Add(province)
	}

	return nil
}
