package permissions

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSet(t *testing.T) {
	t.Run("duplicates collapse", func(t *testing.T) {
		s := NewSet("a", "b", "a", "a")
		assert.Len(t, s, 2)
		assert.True(t, s.Has("a"))
		assert.True(t, s.Has("b"))
	})

	t.Run("union", func(t *testing.T) {
		s := NewSet("a", "b")
		s.Union(NewSet("b", "c"))
		assert.True(t, s.Equal(NewSet("a", "b", "c")))
	})

	t.Run("equal ignores order", func(t *testing.T) {
		assert.True(t, NewSet("x", "y").Equal(NewSet("y", "x")))
		assert.False(t, NewSet("x").Equal(NewSet("x", "y")))
	})

	t.Run("clone is independent", func(t *testing.T) {
		s := NewSet("a")
		c := s.Clone()
		c.Add("b")
		assert.False(t, s.Has("b"))
	})

	t.Run("marshals sorted", func(t *testing.T) {
		data, err := json.Marshal(NewSet("c", "a", "b"))
		require.NoError(t, err)
		assert.Equal(t, `["a","b","c"]`, string(data))
	})

	t.Run("round trips through JSON", func(t *testing.T) {
		data, err := json.Marshal(NewSet("a", "b"))
		require.NoError(t, err)
		var back Set
		require.NoError(t, json.Unmarshal(data, &back))
		assert.True(t, back.Equal(NewSet("a", "b")))
	})
}

func TestScope_Valid(t *testing.T) {
	assert.True(t, ScopeSystem.Valid())
	assert.True(t, ScopeRegion.Valid())
	assert.True(t, ScopeOffice.Valid())
	assert.False(t, Scope("national").Valid())
	assert.False(t, Scope("").Valid())
}

func TestAccessContext_Empty(t *testing.T) {
	var nilCtx *AccessContext
	assert.True(t, nilCtx.Empty())
	assert.True(t, (&AccessContext{}).Empty())
	assert.False(t, (&AccessContext{ProvinceCode: "GP"}).Empty())
	assert.False(t, (&AccessContext{OfficeID: "O1"}).Empty())
}

func TestCompiledPermissions_Expired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	compiled := &CompiledPermissions{ExpiresAt: now.Add(time.Hour)}

	assert.False(t, compiled.Expired(now))
	assert.False(t, compiled.Expired(now.Add(time.Hour-time.Nanosecond)))
	assert.True(t, compiled.Expired(now.Add(time.Hour)))
	assert.True(t, compiled.Expired(now.Add(2*time.Hour)))
}

func TestCompiledPermissions_SerializationPreservesBreakdown(t *testing.T) {
	compiled := &CompiledPermissions{
		UserID:            "user-1",
		SystemType:        SystemTypeStandardUser,
		SystemPermissions: NewSet("person.read"),
		RegionPermissions: map[string]Set{
			"R1": NewSet("license.application.approve"),
		},
		OfficePermissions: map[string]Set{
			"O1": NewSet("test.conduct"),
		},
		IndividualOverrides: NewSet("report.export"),
		FinalPermissions:    NewSet("person.read", "license.application.approve", "test.conduct", "report.export"),
		GeographicAccess: GeographicAccess{
			Provinces: NewSet("GP"),
			Regions:   NewSet("R1"),
			Offices:   NewSet("O1"),
		},
	}

	data, err := json.Marshal(compiled)
	require.NoError(t, err)

	var back CompiledPermissions
	require.NoError(t, json.Unmarshal(data, &back))

	assert.Equal(t, compiled.UserID, back.UserID)
	assert.True(t, back.RegionPermissions["R1"].Has("license.application.approve"))
	assert.True(t, back.FinalPermissions.Equal(compiled.FinalPermissions))
	assert.True(t, back.GeographicAccess.Provinces.Has("GP"))
}
