// Package permissions compiles and evaluates user permissions for the LINC
// driver licensing platform.
//
// # Overview
//
// A user's effective permissions come from four sources that are merged into
// a single compiled snapshot:
//
//  1. System type: the base role (super_admin, national_help_desk,
//     provincial_help_desk, standard_user)
//  2. Region roles: one role per region assignment (region_manager,
//     region_supervisor, region_clerk, ...)
//  3. Office roles: one role per office assignment (office_supervisor,
//     examiner, clerk, ...)
//  4. Individual overrides: extra permissions granted directly to the user
//
// All sources are additive. A role can only grant permissions; nothing in
// the model revokes a permission granted elsewhere. The merged result also
// carries the user's geographic reach (provinces, regions, offices) derived
// from the same assignments.
//
// # Compilation and caching
//
// Compilation walks the user's assignments, resolves each referenced role
// to its permission set, and unions everything together. Compiled snapshots
// are expensive relative to how often they are read, so the Engine caches
// them behind a CacheStore with a bounded TTL. Expired entries are treated
// as misses and recompiled on demand.
//
// Role definition changes invalidate every affected user's cache entry so
// the change takes effect on the next check rather than after TTL expiry.
// Concurrent compilation and invalidation are sequenced through a per-user
// gate holding a generation counter: a snapshot compiled before an
// invalidation is never written back over it.
//
// # Authorization
//
// Authorize and its variants answer "may this user do X here" from the
// compiled snapshot:
//
//	allowed := engine.Authorize(ctx, userID, "license.application.create",
//		&permissions.AccessContext{ProvinceCode: "GP"})
//
// Checks fail closed: any error while compiling or loading permissions
// yields a denial, never a grant. super_admin passes every check and
// national_help_desk passes every geographic constraint.
//
// # HTTP guards
//
// Middleware wraps handlers with authorization checks, reading the user ID
// from the request context and the geographic context through an explicit
// ContextExtractor:
//
//	guard := permissions.NewMiddleware(engine)
//	r.Handle("/provinces/{province_code}/licenses",
//		guard.RequirePermission("license.application.create",
//			permissions.RouteContext)(createLicense))
package permissions
