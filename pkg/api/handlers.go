// Package api exposes the permission administration HTTP surface: role
// listings, role permission updates with impact analysis, per-user compiled
// permission views, authorization checks and the audit trail.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/schuttebj/linc-backend/pkg/audit"
	"github.com/schuttebj/linc-backend/pkg/httputil"
	"github.com/schuttebj/linc-backend/pkg/observability"
	"github.com/schuttebj/linc-backend/pkg/permissions"
)

// RoleDirectory lists and fetches role definitions for the admin UI.
type RoleDirectory interface {
	GetRole(ctx context.Context, scope permissions.Scope, roleName string) (*permissions.Role, error)
	ListRoles(ctx context.Context, scope permissions.Scope) ([]*permissions.Role, error)
}

// Handlers provides the permission administration HTTP handlers
type Handlers struct {
	engine *permissions.Engine
	roles  RoleDirectory
	trail  audit.Logger
	logger *observability.Logger
}

// NewHandlers creates the admin handlers
func NewHandlers(engine *permissions.Engine, roles RoleDirectory, trail audit.Logger, logger *observability.Logger) *Handlers {
	return &Handlers{
		engine: engine,
		roles:  roles,
		trail:  trail,
		logger: logger,
	}
}

// RegisterRoutes registers the admin routes. Role mutation and audit
// endpoints are guarded; read endpoints only require authentication.
func (h *Handlers) RegisterRoutes(router *mux.Router, guard *permissions.Middleware) {
	manage := guard.RequirePermission("admin.role.manage", permissions.NoContext)
	auditRead := guard.RequirePermission("admin.audit.read", permissions.NoContext)

	router.HandleFunc("/permissions/catalog", h.GetCatalog).Methods("GET")

	router.HandleFunc("/roles/{scope}", h.ListRoles).Methods("GET")
	router.HandleFunc("/roles/{scope}/{name}", h.GetRole).Methods("GET")
	router.Handle("/roles/{scope}/{name}/permissions",
		manage(http.HandlerFunc(h.UpdateRolePermissions))).Methods("PUT")
	router.Handle("/roles/{scope}/{name}/impact",
		manage(http.HandlerFunc(h.AnalyzeImpact))).Methods("POST")

	router.HandleFunc("/users/{user_id}/permissions", h.GetUserPermissions).Methods("GET")
	router.HandleFunc("/users/{user_id}/permissions/check", h.CheckPermission).Methods("POST")
	router.Handle("/users/{user_id}/permissions/cache",
		manage(http.HandlerFunc(h.InvalidateUser))).Methods("DELETE")

	router.Handle("/audit/role-changes",
		auditRead(http.HandlerFunc(h.SearchAudit))).Methods("GET")
}

// GetCatalog returns every known permission grouped by category
func (h *Handlers) GetCatalog(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, PermissionCatalog())
}

// ListRoles returns the active role definitions for one scope
func (h *Handlers) ListRoles(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scopeVar(w, r)
	if !ok {
		return
	}
	roles, err := h.roles.ListRoles(r.Context(), scope)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list roles")
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"scope": scope,
		"roles": roles,
	})
}

// GetRole returns a single role definition
func (h *Handlers) GetRole(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scopeVar(w, r)
	if !ok {
		return
	}
	name := mux.Vars(r)["name"]
	role, err := h.roles.GetRole(r.Context(), scope, name)
	if err != nil {
		if errors.Is(err, permissions.ErrNotFound) {
			httputil.WriteNotFound(w, "role not found")
			return
		}
		h.logger.WithError(err).Error("Failed to get role")
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, role)
}

// UpdateRolePermissions replaces a role's permission set. The change is
// persisted, affected cache entries are invalidated and the change is
// recorded in the audit trail.
func (h *Handlers) UpdateRolePermissions(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scopeVar(w, r)
	if !ok {
		return
	}
	name := mux.Vars(r)["name"]

	var req struct {
		Permissions []string `json:"permissions"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Permissions == nil {
		httputil.WriteBadRequest(w, "permissions is required")
		return
	}

	actor := observability.GetUserID(r.Context())
	err := h.engine.UpdateRolePermissions(r.Context(), scope, name, req.Permissions, actor)
	if err != nil {
		if errors.Is(err, permissions.ErrNotFound) {
			httputil.WriteNotFound(w, "role not found")
			return
		}
		if errors.Is(err, permissions.ErrInvalidInput) {
			httputil.WriteBadRequest(w, err.Error())
			return
		}
		h.logger.WithError(err).WithFields(map[string]interface{}{
			"scope": scope,
			"role":  name,
		}).Error("Failed to update role permissions")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"scope":            scope,
		"role":             name,
		"permission_count": len(permissions.NewSet(req.Permissions...)),
	})
}

// AnalyzeImpact previews a role permission change without applying it
func (h *Handlers) AnalyzeImpact(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scopeVar(w, r)
	if !ok {
		return
	}
	name := mux.Vars(r)["name"]

	var req struct {
		Permissions []string `json:"permissions"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	impact, err := h.engine.AnalyzeRoleImpact(r.Context(), scope, name, req.Permissions)
	if err != nil {
		if errors.Is(err, permissions.ErrNotFound) {
			httputil.WriteNotFound(w, "role not found")
			return
		}
		h.logger.WithError(err).Error("Failed to analyze role impact")
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, impact)
}

// GetUserPermissions returns the user's compiled permission snapshot with
// its per-source breakdown. Pass refresh=true to bypass the cache.
func (h *Handlers) GetUserPermissions(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]
	refresh := r.URL.Query().Get("refresh") == "true"

	compiled, err := h.engine.CompileUserPermissions(r.Context(), userID, refresh)
	if err != nil {
		if errors.Is(err, permissions.ErrNotFound) {
			httputil.WriteNotFound(w, "user not found")
			return
		}
		h.logger.WithError(err).WithField("user_id", userID).Error("Failed to compile user permissions")
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, compiled)
}

// CheckPermission evaluates a single permission for a user in an optional
// geographic context
func (h *Handlers) CheckPermission(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]

	var req struct {
		Permission   string `json:"permission"`
		ProvinceCode string `json:"province_code,omitempty"`
		RegionID     string `json:"region_id,omitempty"`
		OfficeID     string `json:"office_id,omitempty"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Permission == "" {
		httputil.WriteBadRequest(w, "permission is required")
		return
	}

	access := &permissions.AccessContext{
		ProvinceCode: req.ProvinceCode,
		RegionID:     req.RegionID,
		OfficeID:     req.OfficeID,
	}
	allowed := h.engine.Authorize(r.Context(), userID, req.Permission, access)
	httputil.WriteSuccess(w, map[string]interface{}{
		"user_id":    userID,
		"permission": req.Permission,
		"allowed":    allowed,
	})
}

// InvalidateUser drops the user's cached compiled permissions
func (h *Handlers) InvalidateUser(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]
	if err := h.engine.InvalidateUser(r.Context(), userID); err != nil {
		h.logger.WithError(err).WithField("user_id", userID).Error("Failed to invalidate user cache")
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"user_id":     userID,
		"invalidated": true,
	})
}

// SearchAudit queries the role change trail. Filters: scope, role, action,
// since (RFC 3339), limit.
func (h *Handlers) SearchAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := audit.Filter{
		RoleScope: q.Get("scope"),
		RoleName:  q.Get("role"),
		Action:    audit.Action(q.Get("action")),
	}
	if since := q.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			httputil.WriteBadRequest(w, "invalid since timestamp, expected RFC 3339")
			return
		}
		filter.Since = t
	}
	limit, err := httputil.QueryInt(r, "limit", 100)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	filter.Limit = limit

	entries, err := h.trail.Search(r.Context(), filter)
	if err != nil {
		h.logger.WithError(err).Error("Failed to search audit trail")
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

func (h *Handlers) scopeVar(w http.ResponseWriter, r *http.Request) (permissions.Scope, bool) {
	scope := permissions.Scope(mux.Vars(r)["scope"])
	if !scope.Valid() {
		httputil.WriteBadRequest(w, "scope must be system, region or office")
		return "", false
	}
	return scope, true
}
