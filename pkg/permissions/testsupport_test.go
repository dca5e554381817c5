package permissions

import (
	"context"
	"sync"
	"time"

	"github.com/schuttebj/linc-backend/pkg/audit"
)

// Shared in-memory fakes for the compiler and engine tests. The fixture
// models one province (GP) with one region (R1) and one office (O1) inside
// it, plus a second province (WC) reachable through region R2.

func roleKey(scope Scope, name string) string {
	return string(scope) + "/" + name
}

type fakeRoles struct {
	mu        sync.Mutex
	roles     map[string]*Role
	getErr    error
	updateErr error
	updates   int
}

func newFakeRoles(roles ...*Role) *fakeRoles {
	f := &fakeRoles{roles: make(map[string]*Role)}
	for _, r := range roles {
		f.roles[roleKey(r.Scope, r.Name)] = r
	}
	return f
}

func (f *fakeRoles) GetRole(ctx context.Context, scope Scope, roleName string) (*Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	role, ok := f.roles[roleKey(scope, roleName)]
	if !ok || !role.IsActive {
		return nil, ErrNotFound
	}
	return role, nil
}

func (f *fakeRoles) UpdateRolePermissions(ctx context.Context, scope Scope, roleName string, perms Set, actor string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	role, ok := f.roles[roleKey(scope, roleName)]
	if !ok {
		return ErrNotFound
	}
	role.Permissions = perms.Clone()
	role.UpdatedBy = actor
	f.updates++
	return nil
}

type fakeAssignments struct {
	mu          sync.Mutex
	users       map[string]*UserAssignments
	holders     map[string][]string
	lookupErr   error
	holdersErr  error
	lookupCalls int
}

func newFakeAssignments() *fakeAssignments {
	return &fakeAssignments{
		users:   make(map[string]*UserAssignments),
		holders: make(map[string][]string),
	}
}

func (f *fakeAssignments) add(ua *UserAssignments) {
	f.users[ua.UserID] = ua
}

func (f *fakeAssignments) AssignmentsFor(ctx context.Context, userID string) (*UserAssignments, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookupCalls++
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	ua, ok := f.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return ua, nil
}

func (f *fakeAssignments) UsersWithRole(ctx context.Context, scope Scope, roleName string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.holdersErr != nil {
		return nil, f.holdersErr
	}
	return f.holders[roleKey(scope, roleName)], nil
}

type fakeGeo struct {
	regionProvince map[string]string
	officeRegion   map[string]string
	err            error
}

func newFakeGeo() *fakeGeo {
	return &fakeGeo{
		regionProvince: map[string]string{"R1": "GP", "R2": "WC"},
		officeRegion:   map[string]string{"O1": "R1", "O2": "R2"},
	}
}

func (f *fakeGeo) ProvinceOfRegion(ctx context.Context, regionID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	province, ok := f.regionProvince[regionID]
	if !ok {
		return "", ErrNotFound
	}
	return province, nil
}

func (f *fakeGeo) RegionAndProvinceOfOffice(ctx context.Context, officeID string) (string, string, error) {
	if f.err != nil {
		return "", "", f.err
	}
	regionID, ok := f.officeRegion[officeID]
	if !ok {
		return "", "", ErrNotFound
	}
	return regionID, f.regionProvince[regionID], nil
}

type fakeCache struct {
	mu            sync.Mutex
	entries       map[string]*CompiledPermissions
	puts          int
	invalidations int
	getErr        error
	putErr        error
	invalidateErr func(userID string) error
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]*CompiledPermissions)}
}

func (f *fakeCache) Get(ctx context.Context, userID string) (*CompiledPermissions, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	compiled, ok := f.entries[userID]
	return compiled, ok, nil
}

func (f *fakeCache) Put(ctx context.Context, userID string, compiled *CompiledPermissions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	f.entries[userID] = compiled
	f.puts++
	return nil
}

func (f *fakeCache) Invalidate(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.invalidateErr != nil {
		if err := f.invalidateErr(userID); err != nil {
			return err
		}
	}
	delete(f.entries, userID)
	f.invalidations++
	return nil
}

func (f *fakeCache) entry(userID string) (*CompiledPermissions, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	compiled, ok := f.entries[userID]
	return compiled, ok
}

// defaultRoles is the role catalog used across the engine tests.
func defaultRoles() *fakeRoles {
	return newFakeRoles(
		&Role{
			Scope: ScopeSystem, Name: "super_admin", IsActive: true,
			Permissions: NewSet("admin.system.config"),
		},
		&Role{
			Scope: ScopeSystem, Name: "national_help_desk", IsActive: true,
			Permissions: NewSet("license.application.read", "person.read"),
		},
		&Role{
			Scope: ScopeSystem, Name: "standard_user", IsActive: true,
			Permissions: NewSet("person.read", "license.application.read"),
		},
		&Role{
			Scope: ScopeRegion, Name: "region_supervisor", IsActive: true,
			Permissions: NewSet("license.application.approve", "report.operational.read"),
		},
		&Role{
			Scope: ScopeOffice, Name: "examiner", IsActive: true,
			Permissions: NewSet("test.conduct", "test.results.update"),
		},
	)
}

// standardUser is a GP-based standard user supervising R1 and examining in O1.
func standardUser(userID string) *UserAssignments {
	return &UserAssignments{
		UserID:              userID,
		SystemType:          SystemTypeStandardUser,
		RegionAssignments:   []RegionAssignment{{RegionID: "R1", RegionRole: "region_supervisor"}},
		OfficeAssignments:   []OfficeAssignment{{OfficeID: "O1", OfficeRole: "examiner"}},
		IndividualOverrides: []string{"report.export"},
	}
}

type engineFixture struct {
	engine      *Engine
	roles       *fakeRoles
	assignments *fakeAssignments
	geo         *fakeGeo
	cache       *fakeCache
	trail       *audit.MemoryLogger
	now         time.Time
	clock       *time.Time
}

func newEngineFixture(ttl time.Duration) *engineFixture {
	f := &engineFixture{
		roles:       defaultRoles(),
		assignments: newFakeAssignments(),
		geo:         newFakeGeo(),
		cache:       newFakeCache(),
		trail:       audit.NewMemoryLogger(),
		now:         time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	f.clock = &f.now
	f.engine = NewEngine(EngineConfig{
		Registry:    f.roles,
		Assignments: f.assignments,
		Geography:   f.geo,
		Cache:       f.cache,
		Audit:       f.trail,
		TTL:         ttl,
	}).WithClock(func() time.Time { return *f.clock })
	return f
}

func (f *engineFixture) advance(d time.Duration) {
	*f.clock = f.clock.Add(d)
}
