package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schuttebj/linc-backend/pkg/permissions"
)

func seedRole(t *testing.T, store *RoleStore, scope permissions.Scope, name string, perms ...string) {
	t.Helper()
	err := store.UpsertRole(context.Background(), &permissions.Role{
		Scope:       scope,
		Name:        name,
		DisplayName: "Display " + name,
		Description: "seeded " + name,
		Permissions: permissions.NewSet(perms...),
		IsActive:    true,
		UpdatedBy:   "seed",
	})
	require.NoError(t, err)
}

func TestRoleStore_GetRole(t *testing.T) {
	db := setupTestDB(t)
	store := NewRoleStore(db)
	ctx := context.Background()

	seedRole(t, store, permissions.ScopeSystem, "standard_user", "person.read", "license.application.read")
	seedRole(t, store, permissions.ScopeRegion, "region_supervisor", "license.application.approve")
	seedRole(t, store, permissions.ScopeOffice, "examiner", "test.conduct")

	t.Run("returns role per scope", func(t *testing.T) {
		role, err := store.GetRole(ctx, permissions.ScopeSystem, "standard_user")
		require.NoError(t, err)
		assert.Equal(t, permissions.ScopeSystem, role.Scope)
		assert.Equal(t, "standard_user", role.Name)
		assert.Equal(t, "Display standard_user", role.DisplayName)
		assert.Equal(t, "seeded standard_user", role.Description)
		assert.True(t, role.IsActive)
		assert.True(t, role.Permissions.Has("person.read"))
		assert.True(t, role.Permissions.Has("license.application.read"))
		assert.Len(t, role.Permissions, 2)

		regionRole, err := store.GetRole(ctx, permissions.ScopeRegion, "region_supervisor")
		require.NoError(t, err)
		assert.True(t, regionRole.Permissions.Has("license.application.approve"))

		officeRole, err := store.GetRole(ctx, permissions.ScopeOffice, "examiner")
		require.NoError(t, err)
		assert.True(t, officeRole.Permissions.Has("test.conduct"))
	})

	t.Run("unknown role is not found", func(t *testing.T) {
		_, err := store.GetRole(ctx, permissions.ScopeRegion, "no_such_role")
		assert.ErrorIs(t, err, permissions.ErrNotFound)
	})

	t.Run("deactivated role is not found", func(t *testing.T) {
		require.NoError(t, store.DeactivateRole(ctx, permissions.ScopeOffice, "examiner", "admin-1"))
		_, err := store.GetRole(ctx, permissions.ScopeOffice, "examiner")
		assert.ErrorIs(t, err, permissions.ErrNotFound)
	})

	t.Run("unknown scope is invalid input", func(t *testing.T) {
		_, err := store.GetRole(ctx, permissions.Scope("galaxy"), "standard_user")
		assert.ErrorIs(t, err, permissions.ErrInvalidInput)
	})
}

func TestRoleStore_ListRoles(t *testing.T) {
	db := setupTestDB(t)
	store := NewRoleStore(db)
	ctx := context.Background()

	seedRole(t, store, permissions.ScopeRegion, "region_supervisor", "license.application.approve")
	seedRole(t, store, permissions.ScopeRegion, "region_administrator", "admin.role.manage")
	seedRole(t, store, permissions.ScopeRegion, "region_query_specialist", "report.operational.read")
	seedRole(t, store, permissions.ScopeOffice, "examiner", "test.conduct")

	t.Run("lists active roles of one scope ordered by name", func(t *testing.T) {
		roles, err := store.ListRoles(ctx, permissions.ScopeRegion)
		require.NoError(t, err)
		require.Len(t, roles, 3)
		assert.Equal(t, "region_administrator", roles[0].Name)
		assert.Equal(t, "region_query_specialist", roles[1].Name)
		assert.Equal(t, "region_supervisor", roles[2].Name)
	})

	t.Run("excludes deactivated roles", func(t *testing.T) {
		require.NoError(t, store.DeactivateRole(ctx, permissions.ScopeRegion, "region_query_specialist", "admin-1"))
		roles, err := store.ListRoles(ctx, permissions.ScopeRegion)
		require.NoError(t, err)
		require.Len(t, roles, 2)
		for _, role := range roles {
			assert.NotEqual(t, "region_query_specialist", role.Name)
		}
	})

	t.Run("empty scope lists nothing", func(t *testing.T) {
		roles, err := store.ListRoles(ctx, permissions.ScopeSystem)
		require.NoError(t, err)
		assert.Empty(t, roles)
	})
}

func TestRoleStore_UpdateRolePermissions(t *testing.T) {
	db := setupTestDB(t)
	store := NewRoleStore(db)
	ctx := context.Background()

	seedRole(t, store, permissions.ScopeOffice, "data_clerk", "person.read")

	t.Run("replaces the permission set and stamps the actor", func(t *testing.T) {
		err := store.UpdateRolePermissions(ctx, permissions.ScopeOffice, "data_clerk",
			permissions.NewSet("person.read", "person.register"), "admin-1")
		require.NoError(t, err)

		role, err := store.GetRole(ctx, permissions.ScopeOffice, "data_clerk")
		require.NoError(t, err)
		assert.Len(t, role.Permissions, 2)
		assert.True(t, role.Permissions.Has("person.register"))
		assert.Equal(t, "admin-1", role.UpdatedBy)
		assert.False(t, role.UpdatedAt.IsZero())
	})

	t.Run("empty set is allowed", func(t *testing.T) {
		err := store.UpdateRolePermissions(ctx, permissions.ScopeOffice, "data_clerk",
			permissions.NewSet(), "admin-1")
		require.NoError(t, err)

		role, err := store.GetRole(ctx, permissions.ScopeOffice, "data_clerk")
		require.NoError(t, err)
		assert.Empty(t, role.Permissions)
	})

	t.Run("unknown role is not found", func(t *testing.T) {
		err := store.UpdateRolePermissions(ctx, permissions.ScopeOffice, "ghost",
			permissions.NewSet("person.read"), "admin-1")
		assert.ErrorIs(t, err, permissions.ErrNotFound)
	})

	t.Run("deactivated role is not found", func(t *testing.T) {
		require.NoError(t, store.DeactivateRole(ctx, permissions.ScopeOffice, "data_clerk", "admin-1"))
		err := store.UpdateRolePermissions(ctx, permissions.ScopeOffice, "data_clerk",
			permissions.NewSet("person.read"), "admin-1")
		assert.ErrorIs(t, err, permissions.ErrNotFound)
	})
}

func TestRoleStore_UpsertRole(t *testing.T) {
	db := setupTestDB(t)
	store := NewRoleStore(db)
	ctx := context.Background()

	t.Run("re-seeding keeps administrative permission edits", func(t *testing.T) {
		seedRole(t, store, permissions.ScopeRegion, "region_supervisor", "license.application.approve")
		require.NoError(t, store.UpdateRolePermissions(ctx, permissions.ScopeRegion, "region_supervisor",
			permissions.NewSet("license.application.approve", "report.operational.read"), "admin-1"))

		err := store.UpsertRole(ctx, &permissions.Role{
			Scope:       permissions.ScopeRegion,
			Name:        "region_supervisor",
			DisplayName: "Region Supervisor",
			Description: "refreshed description",
			Permissions: permissions.NewSet("license.application.approve"),
			UpdatedBy:   "seed",
		})
		require.NoError(t, err)

		role, err := store.GetRole(ctx, permissions.ScopeRegion, "region_supervisor")
		require.NoError(t, err)
		assert.Equal(t, "Region Supervisor", role.DisplayName)
		assert.Equal(t, "refreshed description", role.Description)
		assert.True(t, role.Permissions.Has("report.operational.read"), "admin edit must survive re-seed")
	})

	t.Run("unknown scope is invalid input", func(t *testing.T) {
		err := store.UpsertRole(ctx, &permissions.Role{Scope: permissions.Scope("galaxy"), Name: "x"})
		assert.ErrorIs(t, err, permissions.ErrInvalidInput)
	})
}

func TestRoleStore_DeactivateRole(t *testing.T) {
	db := setupTestDB(t)
	store := NewRoleStore(db)
	ctx := context.Background()

	seedRole(t, store, permissions.ScopeSystem, "standard_user", "person.read")

	t.Run("unknown role is not found", func(t *testing.T) {
		err := store.DeactivateRole(ctx, permissions.ScopeSystem, "ghost", "admin-1")
		assert.ErrorIs(t, err, permissions.ErrNotFound)
	})

	t.Run("deactivation is idempotent on the row", func(t *testing.T) {
		require.NoError(t, store.DeactivateRole(ctx, permissions.ScopeSystem, "standard_user", "admin-1"))
		// the row still exists, so a second deactivation touches it again
		require.NoError(t, store.DeactivateRole(ctx, permissions.ScopeSystem, "standard_user", "admin-2"))
	})
}
