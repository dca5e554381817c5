package permissions

import (
	"context"
)

// The authorization gate. Every path here fails closed: a compilation
// failure, a missing user or a cache problem all resolve to "denied", never
// to an error the caller could mistake for "allowed". From the outside a
// denial is indistinguishable between "lacks the permission" and "the engine
// could not decide"; that is intentional.

// Authorize reports whether the user holds the permission, optionally
// constrained by a geographic context. The super_admin system type is
// unconditionally trusted and bypasses both checks.
func (e *Engine) Authorize(ctx context.Context, userID, permission string, access *AccessContext) bool {
	start := e.now()
	allowed := e.authorize(ctx, userID, permission, access)
	if e.metrics != nil {
		e.metrics.ObserveAuthorization(allowed, e.now().Sub(start))
	}
	return allowed
}

func (e *Engine) authorize(ctx context.Context, userID, permission string, access *AccessContext) bool {
	compiled, err := e.CompileUserPermissions(ctx, userID, false)
	if err != nil {
		e.logger.WithError(err).WithFields(map[string]interface{}{
			"user_id":    userID,
			"permission": permission,
		}).Debug("authorization denied: compilation failed")
		return false
	}

	if compiled.SystemType == SystemTypeSuperAdmin {
		return true
	}
	if !compiled.Has(permission) {
		return false
	}
	return e.geographicAllowed(compiled, access)
}

// AuthorizeAny reports whether the user holds at least one of the
// permissions under the same optional geographic context.
func (e *Engine) AuthorizeAny(ctx context.Context, userID string, perms []string, access *AccessContext) bool {
	return e.authorizeMany(ctx, userID, perms, access, false)
}

// AuthorizeAll reports whether the user holds every one of the permissions
// under the same optional geographic context.
func (e *Engine) AuthorizeAll(ctx context.Context, userID string, perms []string, access *AccessContext) bool {
	return e.authorizeMany(ctx, userID, perms, access, true)
}

func (e *Engine) authorizeMany(ctx context.Context, userID string, perms []string, access *AccessContext, requireAll bool) bool {
	start := e.now()
	allowed := func() bool {
		compiled, err := e.CompileUserPermissions(ctx, userID, false)
		if err != nil {
			e.logger.WithError(err).WithField("user_id", userID).Debug("authorization denied: compilation failed")
			return false
		}
		if compiled.SystemType == SystemTypeSuperAdmin {
			return true
		}
		// An empty permission list grants nothing to anyone else.
		if len(perms) == 0 {
			return false
		}
		geoOK := e.geographicAllowed(compiled, access)

		for _, p := range perms {
			has := compiled.Has(p) && geoOK
			if requireAll && !has {
				return false
			}
			if !requireAll && has {
				return true
			}
		}
		return requireAll
	}()
	if e.metrics != nil {
		e.metrics.ObserveAuthorization(allowed, e.now().Sub(start))
	}
	return allowed
}

// AuthorizeSystemType reports whether the user's system type is one of the
// given types. super_admin passes any system-type check.
func (e *Engine) AuthorizeSystemType(ctx context.Context, userID string, types ...SystemType) bool {
	compiled, err := e.CompileUserPermissions(ctx, userID, false)
	if err != nil {
		e.logger.WithError(err).WithField("user_id", userID).Debug("system-type check denied: compilation failed")
		return false
	}
	if compiled.SystemType == SystemTypeSuperAdmin {
		return true
	}
	for _, t := range types {
		if compiled.SystemType == t {
			return true
		}
	}
	return false
}

// geographicAllowed applies the geographic context against the compiled
// reachability sets. The national help desk operates across all geography
// and skips the check entirely.
func (e *Engine) geographicAllowed(compiled *CompiledPermissions, access *AccessContext) bool {
	if access.Empty() {
		return true
	}
	if compiled.SystemType == SystemTypeNationalHelpDesk {
		return true
	}

	ga := compiled.GeographicAccess
	if access.ProvinceCode != "" && !ga.Provinces.Has(access.ProvinceCode) {
		return false
	}
	if access.RegionID != "" && !ga.Regions.Has(access.RegionID) {
		return false
	}
	if access.OfficeID != "" && !ga.Offices.Has(access.OfficeID) {
		return false
	}
	return true
}
