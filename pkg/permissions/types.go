package permissions

import (
	"encoding/json"
	"sort"
	"time"
)

// Scope is the granularity at which a role is defined.
type Scope string

const (
	ScopeSystem Scope = "system"
	ScopeRegion Scope = "region"
	ScopeOffice Scope = "office"
)

// Valid reports whether the scope is one of the three known scopes.
func (s Scope) Valid() bool {
	switch s {
	case ScopeSystem, ScopeRegion, ScopeOffice:
		return true
	}
	return false
}

// SystemType is the system-wide user classification. Every user has exactly one.
type SystemType string

const (
	SystemTypeSuperAdmin         SystemType = "super_admin"
	SystemTypeNationalHelpDesk   SystemType = "national_help_desk"
	SystemTypeProvincialHelpDesk SystemType = "provincial_help_desk"
	SystemTypeStandardUser       SystemType = "standard_user"
)

// Set is an unordered collection of permission identifiers. Permission strings
// are opaque to the engine; duplicates collapse and order is irrelevant.
// It marshals to a sorted JSON array so cached payloads are deterministic.
type Set map[string]struct{}

// NewSet builds a Set from the given permission names.
func NewSet(names ...string) Set {
	s := make(Set, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Has reports whether the permission is in the set.
func (s Set) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Add inserts a permission into the set.
func (s Set) Add(name string) {
	s[name] = struct{}{}
}

// Union adds every member of other into s.
func (s Set) Union(other Set) {
	for n := range other {
		s[n] = struct{}{}
	}
}

// Equal reports whether both sets hold exactly the same members.
func (s Set) Equal(other Set) bool {
	if len(s) != len(other) {
		return false
	}
	for n := range s {
		if _, ok := other[n]; !ok {
			return false
		}
	}
	return true
}

// Sorted returns the members as a sorted slice.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy of the set.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for n := range s {
		out[n] = struct{}{}
	}
	return out
}

// MarshalJSON encodes the set as a sorted string array.
func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON decodes a string array into the set.
func (s *Set) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	*s = NewSet(names...)
	return nil
}

// Role is a named permission set at one of the three scopes. Roles are never
// physically deleted, only deactivated.
type Role struct {
	Scope       Scope     `json:"scope"`
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name"`
	Description string    `json:"description,omitempty"`
	Permissions Set       `json:"permissions"`
	IsActive    bool      `json:"is_active"`
	UpdatedAt   time.Time `json:"updated_at"`
	UpdatedBy   string    `json:"updated_by,omitempty"`
}

// RegionAssignment binds a user to a role within one region.
type RegionAssignment struct {
	RegionID   string `json:"region_id"`
	RegionRole string `json:"region_role"`
}

// OfficeAssignment binds a user to a role within one office.
type OfficeAssignment struct {
	OfficeID   string `json:"office_id"`
	OfficeRole string `json:"office_role"`
}

// UserAssignments is everything the compiler needs to know about one user:
// the system type plus all active scoped role assignments and overrides.
// Inactive assignments are filtered out by the assignment source.
type UserAssignments struct {
	UserID              string             `json:"user_id"`
	SystemType          SystemType         `json:"system_type"`
	RegionAssignments   []RegionAssignment `json:"region_assignments"`
	OfficeAssignments   []OfficeAssignment `json:"office_assignments"`
	IndividualOverrides []string           `json:"individual_overrides"`
}

// GeographicAccess holds the provinces, regions and offices a user's
// assignments entitle them to act within. Derived, never persisted.
type GeographicAccess struct {
	Provinces Set `json:"provinces"`
	Regions   Set `json:"regions"`
	Offices   Set `json:"offices"`
}

// NewGeographicAccess returns an empty access record.
func NewGeographicAccess() GeographicAccess {
	return GeographicAccess{
		Provinces: NewSet(),
		Regions:   NewSet(),
		Offices:   NewSet(),
	}
}

// CompiledPermissions is the materialized union of all permission sources for
// one user. It is produced whole by the compiler and cached with a TTL; it is
// never partially updated.
type CompiledPermissions struct {
	UserID              string           `json:"user_id"`
	SystemType          SystemType       `json:"system_type"`
	SystemPermissions   Set              `json:"system_permissions"`
	RegionPermissions   map[string]Set   `json:"region_permissions"`
	OfficePermissions   map[string]Set   `json:"office_permissions"`
	IndividualOverrides Set              `json:"individual_overrides"`
	FinalPermissions    Set              `json:"final_permissions"`
	GeographicAccess    GeographicAccess `json:"geographic_access"`
	CompiledAt          time.Time        `json:"compiled_at"`
	ExpiresAt           time.Time        `json:"expires_at"`
}

// Expired reports whether the entry's TTL has elapsed at the given instant.
func (c *CompiledPermissions) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Has reports whether the permission is in the final compiled set.
func (c *CompiledPermissions) Has(permission string) bool {
	return c.FinalPermissions.Has(permission)
}

// AccessContext carries the optional geographic context of an authorization
// check. Empty fields are not checked.
type AccessContext struct {
	ProvinceCode string `json:"province_code,omitempty"`
	RegionID     string `json:"region_id,omitempty"`
	OfficeID     string `json:"office_id,omitempty"`
}

// Empty reports whether no geographic constraint was supplied.
func (a *AccessContext) Empty() bool {
	return a == nil || (a.ProvinceCode == "" && a.RegionID == "" && a.OfficeID == "")
}
