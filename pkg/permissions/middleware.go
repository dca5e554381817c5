package permissions

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/schuttebj/linc-backend/pkg/observability"
)

// ContextExtractor pulls the geographic context of a request. Extraction is
// explicit and typed: a guard names exactly which fields it reads instead of
// inspecting arbitrary request state.
type ContextExtractor func(r *http.Request) *AccessContext

// RouteContext extracts province_code, region_id and office_id from the
// route variables, falling back to query parameters. Absent fields stay
// unconstrained.
func RouteContext(r *http.Request) *AccessContext {
	vars := mux.Vars(r)
	pick := func(name string) string {
		if v, ok := vars[name]; ok && v != "" {
			return v
		}
		return r.URL.Query().Get(name)
	}
	return &AccessContext{
		ProvinceCode: pick("province_code"),
		RegionID:     pick("region_id"),
		OfficeID:     pick("office_id"),
	}
}

// NoContext ignores the request and applies no geographic constraint.
func NoContext(*http.Request) *AccessContext {
	return nil
}

// Middleware guards HTTP handlers with authorization checks. The
// authenticated user ID is taken from the request context (set by the auth
// layer); a request without one is rejected before any check runs.
type Middleware struct {
	engine *Engine
}

// NewMiddleware creates middleware over the engine.
func NewMiddleware(engine *Engine) *Middleware {
	return &Middleware{engine: engine}
}

// RequirePermission guards a handler behind a single permission.
func (m *Middleware) RequirePermission(permission string, extract ContextExtractor) func(http.Handler) http.Handler {
	return m.guard(func(r *http.Request, userID string) bool {
		return m.engine.Authorize(r.Context(), userID, permission, m.extract(extract, r))
	})
}

// RequireAnyPermission guards a handler behind at least one of the given
// permissions.
func (m *Middleware) RequireAnyPermission(perms []string, extract ContextExtractor) func(http.Handler) http.Handler {
	return m.guard(func(r *http.Request, userID string) bool {
		return m.engine.AuthorizeAny(r.Context(), userID, perms, m.extract(extract, r))
	})
}

// RequireAllPermissions guards a handler behind every one of the given
// permissions.
func (m *Middleware) RequireAllPermissions(perms []string, extract ContextExtractor) func(http.Handler) http.Handler {
	return m.guard(func(r *http.Request, userID string) bool {
		return m.engine.AuthorizeAll(r.Context(), userID, perms, m.extract(extract, r))
	})
}

// RequireSystemType guards a handler behind a system-type check.
func (m *Middleware) RequireSystemType(types ...SystemType) func(http.Handler) http.Handler {
	return m.guard(func(r *http.Request, userID string) bool {
		return m.engine.AuthorizeSystemType(r.Context(), userID, types...)
	})
}

func (m *Middleware) extract(extract ContextExtractor, r *http.Request) *AccessContext {
	if extract == nil {
		return nil
	}
	return extract(r)
}

func (m *Middleware) guard(allowed func(r *http.Request, userID string) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := observability.GetUserID(r.Context())
			if userID == "" {
				http.Error(w, "Authentication required", http.StatusUnauthorized)
				return
			}
			if !allowed(r, userID) {
				http.Error(w, "Insufficient permissions", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
