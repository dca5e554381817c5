package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/schuttebj/linc-backend/pkg/permissions"
)

// AssignmentStore implements permissions.AssignmentSource: the read-only
// view of which roles a user holds and the reverse index for fan-out
// invalidation. Assignments are written by user management, never here.
type AssignmentStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewAssignmentStore creates the reader over the given database.
func NewAssignmentStore(db *sql.DB) *AssignmentStore {
	return &AssignmentStore{db: db, now: time.Now}
}

// AssignmentsFor returns the user's system type, active scoped assignments
// and individual overrides. A missing or inactive user is ErrNotFound.
func (s *AssignmentStore) AssignmentsFor(ctx context.Context, userID string) (*permissions.UserAssignments, error) {
	var systemType string
	var overridesJSON string
	var isActive bool

	err := s.db.QueryRowContext(ctx,
		`SELECT system_type, individual_permissions, is_active FROM users WHERE id = $1`,
		userID,
	).Scan(&systemType, &overridesJSON, &isActive)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %q: %w", userID, permissions.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user %q: %w", userID, err)
	}
	if !isActive {
		return nil, fmt.Errorf("user %q is inactive: %w", userID, permissions.ErrNotFound)
	}

	ua := &permissions.UserAssignments{
		UserID:     userID,
		SystemType: permissions.SystemType(systemType),
	}
	if overridesJSON != "" {
		if err := json.Unmarshal([]byte(overridesJSON), &ua.IndividualOverrides); err != nil {
			return nil, fmt.Errorf("failed to decode overrides for user %q: %w", userID, err)
		}
	}

	now := s.now().UTC()

	regionRows, err := s.db.QueryContext(ctx, `
		SELECT region_id, region_role
		FROM user_region_assignments
		WHERE user_id = $1 AND is_active = TRUE AND (expires_at IS NULL OR expires_at > $2)
	`, userID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to load region assignments for user %q: %w", userID, err)
	}
	defer regionRows.Close()
	for regionRows.Next() {
		var ra permissions.RegionAssignment
		if err := regionRows.Scan(&ra.RegionID, &ra.RegionRole); err != nil {
			return nil, fmt.Errorf("failed to scan region assignment: %w", err)
		}
		ua.RegionAssignments = append(ua.RegionAssignments, ra)
	}
	if err := regionRows.Err(); err != nil {
		return nil, err
	}

	officeRows, err := s.db.QueryContext(ctx, `
		SELECT office_id, office_role
		FROM user_office_assignments
		WHERE user_id = $1 AND is_active = TRUE AND (expires_at IS NULL OR expires_at > $2)
	`, userID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to load office assignments for user %q: %w", userID, err)
	}
	defer officeRows.Close()
	for officeRows.Next() {
		var oa permissions.OfficeAssignment
		if err := officeRows.Scan(&oa.OfficeID, &oa.OfficeRole); err != nil {
			return nil, fmt.Errorf("failed to scan office assignment: %w", err)
		}
		ua.OfficeAssignments = append(ua.OfficeAssignments, oa)
	}
	return ua, officeRows.Err()
}

// UsersWithRole lists every active holder of the role: the reverse index
// behind role fan-out invalidation. For the system scope the role name is
// the system type code.
func (s *AssignmentStore) UsersWithRole(ctx context.Context, scope permissions.Scope, roleName string) ([]string, error) {
	var query string
	args := []interface{}{roleName}

	switch scope {
	case permissions.ScopeSystem:
		query = `SELECT id FROM users WHERE system_type = $1 AND is_active = TRUE`
	case permissions.ScopeRegion:
		query = `
			SELECT DISTINCT user_id FROM user_region_assignments
			WHERE region_role = $1 AND is_active = TRUE AND (expires_at IS NULL OR expires_at > $2)`
		args = append(args, s.now().UTC())
	case permissions.ScopeOffice:
		query = `
			SELECT DISTINCT user_id FROM user_office_assignments
			WHERE office_role = $1 AND is_active = TRUE AND (expires_at IS NULL OR expires_at > $2)`
		args = append(args, s.now().UTC())
	default:
		return nil, fmt.Errorf("%w: unknown scope %q", permissions.ErrInvalidInput, scope)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users with %s role %q: %w", scope, roleName, err)
	}
	defer rows.Close()

	var userIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		userIDs = append(userIDs, id)
	}
	return userIDs, rows.Err()
}
