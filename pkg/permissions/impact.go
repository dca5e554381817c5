package permissions

import (
	"context"
	"fmt"
)

// RoleImpact describes what a proposed permission change to a role would do:
// the set difference against the current definition and the users whose
// compiled permissions would change.
type RoleImpact struct {
	Scope         Scope    `json:"scope"`
	RoleName      string   `json:"role_name"`
	CurrentCount  int      `json:"current_permission_count"`
	NewCount      int      `json:"new_permission_count"`
	Added         []string `json:"added"`
	Removed       []string `json:"removed"`
	Unchanged     []string `json:"unchanged"`
	AffectedUsers []string `json:"affected_users"`
	ImpactLevel   string   `json:"impact_level"`
}

// AnalyzeRoleImpact computes the impact of replacing a role's permission set
// with newPerms, without applying anything. Administrators review this
// before calling UpdateRolePermissions.
func (e *Engine) AnalyzeRoleImpact(ctx context.Context, scope Scope, roleName string, newPerms []string) (*RoleImpact, error) {
	if err := validateRoleRef(scope, roleName); err != nil {
		return nil, err
	}

	role, err := e.registry.GetRole(ctx, scope, roleName)
	if err != nil {
		return nil, fmt.Errorf("analyze impact for role %s/%s: %w", scope, roleName, err)
	}

	current := role.Permissions
	proposed := NewSet(newPerms...)

	var added, removed, unchanged []string
	for _, p := range proposed.Sorted() {
		if current.Has(p) {
			unchanged = append(unchanged, p)
		} else {
			added = append(added, p)
		}
	}
	for _, p := range current.Sorted() {
		if !proposed.Has(p) {
			removed = append(removed, p)
		}
	}

	affected, err := e.assignments.UsersWithRole(ctx, scope, roleName)
	if err != nil {
		return nil, fmt.Errorf("analyze impact for role %s/%s: %w", scope, roleName, err)
	}

	return &RoleImpact{
		Scope:         scope,
		RoleName:      roleName,
		CurrentCount:  len(current),
		NewCount:      len(proposed),
		Added:         added,
		Removed:       removed,
		Unchanged:     unchanged,
		AffectedUsers: affected,
		ImpactLevel:   impactLevel(len(added), len(removed), len(affected)),
	}, nil
}

// impactLevel grades a change by how many permissions move and how many
// users feel it.
func impactLevel(added, removed, users int) string {
	total := added + removed
	switch {
	case total == 0:
		return "none"
	case total <= 2 && users <= 5:
		return "low"
	case total <= 5 && users <= 20:
		return "medium"
	default:
		return "high"
	}
}
