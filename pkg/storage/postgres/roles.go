package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/schuttebj/linc-backend/pkg/permissions"
)

// RoleStore implements permissions.RoleRegistry over the three role tables.
// Each scope has its own table; the shape of the rows is identical.
type RoleStore struct {
	db *sql.DB
}

// NewRoleStore creates the registry over the given database.
func NewRoleStore(db *sql.DB) *RoleStore {
	return &RoleStore{db: db}
}

// roleTable maps a scope to its table and name column.
func roleTable(scope permissions.Scope) (table, nameCol string, err error) {
	switch scope {
	case permissions.ScopeSystem:
		return "user_types", "type_code", nil
	case permissions.ScopeRegion:
		return "region_roles", "role_name", nil
	case permissions.ScopeOffice:
		return "office_roles", "role_name", nil
	}
	return "", "", fmt.Errorf("%w: unknown scope %q", permissions.ErrInvalidInput, scope)
}

// GetRole returns the active role for the scope/name pair.
func (s *RoleStore) GetRole(ctx context.Context, scope permissions.Scope, roleName string) (*permissions.Role, error) {
	table, nameCol, err := roleTable(scope)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT %s, display_name, description, permissions, is_active, updated_at, updated_by
		FROM %s
		WHERE %s = $1 AND is_active = TRUE
	`, nameCol, table, nameCol)

	role := permissions.Role{Scope: scope}
	var description, updatedBy sql.NullString
	var updatedAt sql.NullTime
	var permsJSON string

	err = s.db.QueryRowContext(ctx, query, roleName).Scan(
		&role.Name, &role.DisplayName, &description, &permsJSON,
		&role.IsActive, &updatedAt, &updatedBy,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%s role %q: %w", scope, roleName, permissions.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s role %q: %w", scope, roleName, err)
	}

	role.Description = description.String
	role.UpdatedBy = updatedBy.String
	role.UpdatedAt = updatedAt.Time
	if role.Permissions, err = decodePermissions(permsJSON); err != nil {
		return nil, fmt.Errorf("failed to decode permissions of %s role %q: %w", scope, roleName, err)
	}
	return &role, nil
}

// ListRoles returns all active roles for one scope, ordered by name.
func (s *RoleStore) ListRoles(ctx context.Context, scope permissions.Scope) ([]*permissions.Role, error) {
	table, nameCol, err := roleTable(scope)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT %s, display_name, description, permissions, is_active, updated_at, updated_by
		FROM %s
		WHERE is_active = TRUE
		ORDER BY %s
	`, nameCol, table, nameCol)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s roles: %w", scope, err)
	}
	defer rows.Close()

	var roles []*permissions.Role
	for rows.Next() {
		role := permissions.Role{Scope: scope}
		var description, updatedBy sql.NullString
		var updatedAt sql.NullTime
		var permsJSON string
		if err := rows.Scan(&role.Name, &role.DisplayName, &description, &permsJSON,
			&role.IsActive, &updatedAt, &updatedBy); err != nil {
			return nil, fmt.Errorf("failed to scan %s role: %w", scope, err)
		}
		role.Description = description.String
		role.UpdatedBy = updatedBy.String
		role.UpdatedAt = updatedAt.Time
		if role.Permissions, err = decodePermissions(permsJSON); err != nil {
			return nil, fmt.Errorf("failed to decode permissions of %s role %q: %w", scope, role.Name, err)
		}
		roles = append(roles, &role)
	}
	return roles, rows.Err()
}

// UpdateRolePermissions replaces the role's permission set. The update is
// atomic at single-role granularity; a zero-row update means the role does
// not exist (or is inactive) and reports ErrNotFound.
func (s *RoleStore) UpdateRolePermissions(ctx context.Context, scope permissions.Scope, roleName string, perms permissions.Set, actor string) error {
	table, nameCol, err := roleTable(scope)
	if err != nil {
		return err
	}

	permsJSON, err := json.Marshal(perms.Sorted())
	if err != nil {
		return fmt.Errorf("failed to marshal permissions: %w", err)
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET permissions = $1, updated_by = $2, updated_at = $3
		WHERE %s = $4 AND is_active = TRUE
	`, table, nameCol)

	res, err := s.db.ExecContext(ctx, query, string(permsJSON), actor, time.Now().UTC(), roleName)
	if err != nil {
		return fmt.Errorf("failed to update %s role %q: %w", scope, roleName, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update of %s role %q: %w", scope, roleName, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s role %q: %w", scope, roleName, permissions.ErrNotFound)
	}
	return nil
}

// UpsertRole inserts or refreshes a role definition. Used by the seed
// bootstrap; an existing role keeps its current permission set untouched so
// administrative changes survive re-seeding.
func (s *RoleStore) UpsertRole(ctx context.Context, role *permissions.Role) error {
	table, nameCol, err := roleTable(role.Scope)
	if err != nil {
		return err
	}

	permsJSON, err := json.Marshal(role.Permissions.Sorted())
	if err != nil {
		return fmt.Errorf("failed to marshal permissions: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (%s, display_name, description, permissions, is_active, updated_at, updated_by)
		VALUES ($1, $2, $3, $4, TRUE, $5, $6)
		ON CONFLICT (%s) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			description = EXCLUDED.description
	`, table, nameCol, nameCol)

	_, err = s.db.ExecContext(ctx, query,
		role.Name, role.DisplayName, role.Description, string(permsJSON),
		time.Now().UTC(), role.UpdatedBy)
	if err != nil {
		return fmt.Errorf("failed to upsert %s role %q: %w", role.Scope, role.Name, err)
	}
	return nil
}

// DeactivateRole marks a role inactive. Roles are never physically deleted.
func (s *RoleStore) DeactivateRole(ctx context.Context, scope permissions.Scope, roleName, actor string) error {
	table, nameCol, err := roleTable(scope)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		UPDATE %s SET is_active = FALSE, updated_by = $1, updated_at = $2 WHERE %s = $3
	`, table, nameCol)

	res, err := s.db.ExecContext(ctx, query, actor, time.Now().UTC(), roleName)
	if err != nil {
		return fmt.Errorf("failed to deactivate %s role %q: %w", scope, roleName, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%s role %q: %w", scope, roleName, permissions.ErrNotFound)
	}
	return nil
}

// decodePermissions parses the JSON permission array stored on a role row.
func decodePermissions(raw string) (permissions.Set, error) {
	if raw == "" {
		return permissions.NewSet(), nil
	}
	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		return nil, err
	}
	return permissions.NewSet(names...), nil
}
