package permissions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCompiler(roles *fakeRoles, assignments *fakeAssignments, geo *fakeGeo) *Compiler {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return NewCompiler(roles, assignments, geo, time.Hour, nil).
		WithClock(func() time.Time { return now })
}

func TestCompiler_Compile(t *testing.T) {
	ctx := context.Background()

	t.Run("merges all four sources", func(t *testing.T) {
		assignments := newFakeAssignments()
		assignments.add(standardUser("user-1"))
		compiler := newTestCompiler(defaultRoles(), assignments, newFakeGeo())

		compiled, err := compiler.Compile(ctx, "user-1")
		require.NoError(t, err)

		assert.Equal(t, SystemTypeStandardUser, compiled.SystemType)

		// Every source contributes to the final set.
		assert.True(t, compiled.Has("person.read"), "system type permission")
		assert.True(t, compiled.Has("license.application.approve"), "region role permission")
		assert.True(t, compiled.Has("test.conduct"), "office role permission")
		assert.True(t, compiled.Has("report.export"), "individual override")

		// Per-source breakdown attributes permissions to where they came from.
		assert.True(t, compiled.RegionPermissions["R1"].Has("license.application.approve"))
		assert.False(t, compiled.RegionPermissions["R1"].Has("test.conduct"))
		assert.True(t, compiled.OfficePermissions["O1"].Has("test.conduct"))
		assert.True(t, compiled.IndividualOverrides.Has("report.export"))
	})

	t.Run("final set equals union of sources", func(t *testing.T) {
		assignments := newFakeAssignments()
		assignments.add(standardUser("user-1"))
		compiler := newTestCompiler(defaultRoles(), assignments, newFakeGeo())

		compiled, err := compiler.Compile(ctx, "user-1")
		require.NoError(t, err)

		expected := compiled.SystemPermissions.Clone()
		for _, perms := range compiled.RegionPermissions {
			expected.Union(perms)
		}
		for _, perms := range compiled.OfficePermissions {
			expected.Union(perms)
		}
		expected.Union(compiled.IndividualOverrides)

		assert.True(t, compiled.FinalPermissions.Equal(expected))
	})

	t.Run("overrides are additive only", func(t *testing.T) {
		// An override granting something a role already grants changes nothing,
		// and there is no way for an override to remove a role grant.
		assignments := newFakeAssignments()
		withDuplicate := standardUser("user-1")
		withDuplicate.IndividualOverrides = []string{"person.read"}
		assignments.add(withDuplicate)
		compiler := newTestCompiler(defaultRoles(), assignments, newFakeGeo())

		compiled, err := compiler.Compile(ctx, "user-1")
		require.NoError(t, err)
		assert.True(t, compiled.Has("person.read"))
		assert.True(t, compiled.Has("license.application.approve"))
	})

	t.Run("geographic access derived from assignments", func(t *testing.T) {
		assignments := newFakeAssignments()
		assignments.add(standardUser("user-1"))
		compiler := newTestCompiler(defaultRoles(), assignments, newFakeGeo())

		compiled, err := compiler.Compile(ctx, "user-1")
		require.NoError(t, err)

		ga := compiled.GeographicAccess
		assert.True(t, ga.Provinces.Has("GP"))
		assert.True(t, ga.Regions.Has("R1"))
		assert.True(t, ga.Offices.Has("O1"))
		assert.False(t, ga.Provinces.Has("WC"))
	})

	t.Run("office assignment reaches region and province", func(t *testing.T) {
		assignments := newFakeAssignments()
		assignments.add(&UserAssignments{
			UserID:            "office-only",
			SystemType:        SystemTypeStandardUser,
			OfficeAssignments: []OfficeAssignment{{OfficeID: "O2", OfficeRole: "examiner"}},
		})
		compiler := newTestCompiler(defaultRoles(), assignments, newFakeGeo())

		compiled, err := compiler.Compile(ctx, "office-only")
		require.NoError(t, err)

		ga := compiled.GeographicAccess
		assert.True(t, ga.Offices.Has("O2"))
		assert.True(t, ga.Regions.Has("R2"))
		assert.True(t, ga.Provinces.Has("WC"))
	})

	t.Run("deactivated role contributes nothing", func(t *testing.T) {
		roles := defaultRoles()
		roles.roles[roleKey(ScopeRegion, "region_supervisor")].IsActive = false

		assignments := newFakeAssignments()
		assignments.add(standardUser("user-1"))
		compiler := newTestCompiler(roles, assignments, newFakeGeo())

		compiled, err := compiler.Compile(ctx, "user-1")
		require.NoError(t, err)
		assert.False(t, compiled.Has("license.application.approve"))
		assert.Empty(t, compiled.RegionPermissions["R1"])
		// Other sources are unaffected.
		assert.True(t, compiled.Has("test.conduct"))
	})

	t.Run("dangling geography reference is skipped", func(t *testing.T) {
		assignments := newFakeAssignments()
		assignments.add(&UserAssignments{
			UserID:            "user-1",
			SystemType:        SystemTypeStandardUser,
			RegionAssignments: []RegionAssignment{{RegionID: "R-GONE", RegionRole: "region_supervisor"}},
		})
		compiler := newTestCompiler(defaultRoles(), assignments, newFakeGeo())

		compiled, err := compiler.Compile(ctx, "user-1")
		require.NoError(t, err)
		// The region itself is still reachable, but no province is derived.
		assert.True(t, compiled.GeographicAccess.Regions.Has("R-GONE"))
		assert.Empty(t, compiled.GeographicAccess.Provinces)
	})

	t.Run("unknown user", func(t *testing.T) {
		compiler := newTestCompiler(defaultRoles(), newFakeAssignments(), newFakeGeo())

		_, err := compiler.Compile(ctx, "ghost")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("assignment source failure aborts whole compile", func(t *testing.T) {
		assignments := newFakeAssignments()
		assignments.lookupErr = errors.New("connection refused")
		compiler := newTestCompiler(defaultRoles(), assignments, newFakeGeo())

		compiled, err := compiler.Compile(ctx, "user-1")
		assert.Error(t, err)
		assert.Nil(t, compiled)
	})

	t.Run("geography infrastructure failure aborts whole compile", func(t *testing.T) {
		assignments := newFakeAssignments()
		assignments.add(standardUser("user-1"))
		geo := newFakeGeo()
		geo.err = errors.New("connection refused")
		compiler := newTestCompiler(defaultRoles(), assignments, geo)

		compiled, err := compiler.Compile(ctx, "user-1")
		assert.Error(t, err)
		assert.Nil(t, compiled)
	})

	t.Run("stamps compile and expiry times", func(t *testing.T) {
		assignments := newFakeAssignments()
		assignments.add(standardUser("user-1"))
		compiler := newTestCompiler(defaultRoles(), assignments, newFakeGeo())

		compiled, err := compiler.Compile(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, compiled.CompiledAt.Add(time.Hour), compiled.ExpiresAt)
		assert.False(t, compiled.Expired(compiled.CompiledAt))
		assert.True(t, compiled.Expired(compiled.ExpiresAt))
	})
}

func TestCompiler_Deterministic(t *testing.T) {
	// Compiling twice from unchanged sources yields the same sets.
	ctx := context.Background()
	assignments := newFakeAssignments()
	assignments.add(standardUser("user-1"))
	compiler := newTestCompiler(defaultRoles(), assignments, newFakeGeo())

	first, err := compiler.Compile(ctx, "user-1")
	require.NoError(t, err)
	second, err := compiler.Compile(ctx, "user-1")
	require.NoError(t, err)

	assert.True(t, first.FinalPermissions.Equal(second.FinalPermissions))
	assert.True(t, first.GeographicAccess.Provinces.Equal(second.GeographicAccess.Provinces))
	assert.True(t, first.GeographicAccess.Regions.Equal(second.GeographicAccess.Regions))
	assert.True(t, first.GeographicAccess.Offices.Equal(second.GeographicAccess.Offices))
}
