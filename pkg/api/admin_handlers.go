package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/lumenfeed/lumen/pkg/account"
	"github.com/lumenfeed/lumen/pkg/httputil"
	"github.com/lumenfeed/lumen/pkg/observability"
)

// RoleStore is the role/permission administration surface. Satisfied by
// *account.Store.
type RoleStore interface {
	GetRole(ctx context.Context, roleID int64) (*account.Role, error)
	ExistsRoleName(ctx context.Context, name string) (bool, error)
	CreateRole(ctx context.Context, role *account.Role) error
	UpdateRole(ctx context.Context, role *account.Role) error
	DeleteRole(ctx context.Context, roleID int64) error
	ListRoles(ctx context.Context) ([]account.Role, error)

	GetPermission(ctx context.Context, id int64) (*account.Permission, error)
	ExistsPermission(ctx context.Context, module, apiPath, method string) (bool, error)
	CreatePermission(ctx context.Context, p *account.Permission) error
	UpdatePermission(ctx context.Context, p *account.Permission) error
	DeletePermission(ctx context.Context, id int64) error
	ListPermissions(ctx context.Context) ([]account.Permission, error)
}

// PermCacheInvalidator drops cached role permissions after admin writes.
// Satisfied by *authz.PermissionCache.
type PermCacheInvalidator interface {
	Invalidate(ctx context.Context, roleID int64)
	InvalidateAll(ctx context.Context)
}

// AdminHandlers handles role and permission administration. The routes are
// expected to be registered behind the authorizer.
type AdminHandlers struct {
	store  RoleStore
	cache  PermCacheInvalidator
	logger *observability.Logger
}

// NewAdminHandlers creates the admin handlers. cache may be nil when the
// authorizer runs without one.
func NewAdminHandlers(store RoleStore, cache PermCacheInvalidator, logger *observability.Logger) *AdminHandlers {
	return &AdminHandlers{store: store, cache: cache, logger: logger}
}

// RegisterRoutes registers the admin CRUD routes on a subrouter mounted
// under /api/v1.
func (h *AdminHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/roles", h.createRole).Methods("POST")
	router.HandleFunc("/roles", h.listRoles).Methods("GET")
	router.HandleFunc("/roles/{id}", h.getRole).Methods("GET")
	router.HandleFunc("/roles/{id}", h.updateRole).Methods("PUT")
	router.HandleFunc("/roles/{id}", h.deleteRole).Methods("DELETE")

	router.HandleFunc("/permissions", h.createPermission).Methods("POST")
	router.HandleFunc("/permissions", h.listPermissions).Methods("GET")
	router.HandleFunc("/permissions/{id}", h.getPermission).Methods("GET")
	router.HandleFunc("/permissions/{id}", h.updatePermission).Methods("PUT")
	router.HandleFunc("/permissions/{id}", h.deletePermission).Methods("DELETE")
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id, err == nil && id > 0
}

// rolePayload is the create/update request body for roles. Permissions are
// attached by id.
type rolePayload struct {
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	Active        *bool   `json:"active"`
	PermissionIDs []int64 `json:"permission_ids"`
}

// createRole handles POST /api/v1/roles
func (h *AdminHandlers) createRole(w http.ResponseWriter, r *http.Request) {
	var req rolePayload
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}
	if req.Name == "" {
		httputil.WriteBadRequest(w, "role name is required")
		return
	}

	taken, err := h.store.ExistsRoleName(r.Context(), req.Name)
	if err != nil {
		h.internal(w, r, err, "role uniqueness check failed")
		return
	}
	if taken {
		httputil.WriteConflict(w, "role name already exists")
		return
	}

	role := &account.Role{
		Name:        req.Name,
		Description: req.Description,
		Active:      req.Active == nil || *req.Active,
		Permissions: permissionRefs(req.PermissionIDs),
	}
	if err := h.store.CreateRole(r.Context(), role); err != nil {
		h.internal(w, r, err, "role creation failed")
		return
	}

	httputil.WriteCreated(w, role)
}

// getRole handles GET /api/v1/roles/{id}
func (h *AdminHandlers) getRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		httputil.WriteBadRequest(w, "invalid role id")
		return
	}

	role, err := h.store.GetRole(r.Context(), id)
	if errors.Is(err, account.ErrNotFound) {
		httputil.WriteNotFoundError(w, "role not found")
		return
	}
	if err != nil {
		h.internal(w, r, err, "role lookup failed")
		return
	}

	httputil.WriteSuccess(w, role)
}

// listRoles handles GET /api/v1/roles
func (h *AdminHandlers) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.store.ListRoles(r.Context())
	if err != nil {
		h.internal(w, r, err, "role listing failed")
		return
	}
	httputil.WriteSuccess(w, roles)
}

// updateRole handles PUT /api/v1/roles/{id}
func (h *AdminHandlers) updateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		httputil.WriteBadRequest(w, "invalid role id")
		return
	}

	var req rolePayload
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}
	if req.Name == "" {
		httputil.WriteBadRequest(w, "role name is required")
		return
	}

	current, err := h.store.GetRole(r.Context(), id)
	if errors.Is(err, account.ErrNotFound) {
		httputil.WriteNotFoundError(w, "role not found")
		return
	}
	if err != nil {
		h.internal(w, r, err, "role lookup failed")
		return
	}

	if req.Name != current.Name {
		taken, err := h.store.ExistsRoleName(r.Context(), req.Name)
		if err != nil {
			h.internal(w, r, err, "role uniqueness check failed")
			return
		}
		if taken {
			httputil.WriteConflict(w, "role name already exists")
			return
		}
	}

	role := &account.Role{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		Active:      req.Active == nil || *req.Active,
		Permissions: permissionRefs(req.PermissionIDs),
	}
	if err := h.store.UpdateRole(r.Context(), role); err != nil {
		h.internal(w, r, err, "role update failed")
		return
	}
	h.invalidateRole(r.Context(), id)

	httputil.WriteSuccess(w, role)
}

// deleteRole handles DELETE /api/v1/roles/{id}
func (h *AdminHandlers) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		httputil.WriteBadRequest(w, "invalid role id")
		return
	}

	err := h.store.DeleteRole(r.Context(), id)
	if errors.Is(err, account.ErrNotFound) {
		httputil.WriteNotFoundError(w, "role not found")
		return
	}
	if err != nil {
		h.internal(w, r, err, "role deletion failed")
		return
	}
	h.invalidateRole(r.Context(), id)

	httputil.WriteNoContent(w)
}

// permissionPayload is the create/update request body for permissions
type permissionPayload struct {
	Name    string `json:"name"`
	Method  string `json:"method"`
	APIPath string `json:"api_path"`
	Module  string `json:"module"`
}

func (p permissionPayload) validate() string {
	switch {
	case p.Name == "":
		return "permission name is required"
	case p.Method == "":
		return "method is required"
	case p.APIPath == "":
		return "api_path is required"
	case p.Module == "":
		return "module is required"
	}
	return ""
}

// createPermission handles POST /api/v1/permissions
func (h *AdminHandlers) createPermission(w http.ResponseWriter, r *http.Request) {
	var req permissionPayload
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		httputil.WriteBadRequest(w, msg)
		return
	}

	taken, err := h.store.ExistsPermission(r.Context(), req.Module, req.APIPath, req.Method)
	if err != nil {
		h.internal(w, r, err, "permission uniqueness check failed")
		return
	}
	if taken {
		httputil.WriteConflict(w, "permission already exists for this module, path and method")
		return
	}

	perm := &account.Permission{
		Name:    req.Name,
		Method:  req.Method,
		APIPath: req.APIPath,
		Module:  req.Module,
	}
	if err := h.store.CreatePermission(r.Context(), perm); err != nil {
		h.internal(w, r, err, "permission creation failed")
		return
	}

	httputil.WriteCreated(w, perm)
}

// getPermission handles GET /api/v1/permissions/{id}
func (h *AdminHandlers) getPermission(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		httputil.WriteBadRequest(w, "invalid permission id")
		return
	}

	perm, err := h.store.GetPermission(r.Context(), id)
	if errors.Is(err, account.ErrNotFound) {
		httputil.WriteNotFoundError(w, "permission not found")
		return
	}
	if err != nil {
		h.internal(w, r, err, "permission lookup failed")
		return
	}

	httputil.WriteSuccess(w, perm)
}

// listPermissions handles GET /api/v1/permissions
func (h *AdminHandlers) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.store.ListPermissions(r.Context())
	if err != nil {
		h.internal(w, r, err, "permission listing failed")
		return
	}
	httputil.WriteSuccess(w, perms)
}

// updatePermission handles PUT /api/v1/permissions/{id}
func (h *AdminHandlers) updatePermission(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		httputil.WriteBadRequest(w, "invalid permission id")
		return
	}

	var req permissionPayload
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		httputil.WriteBadRequest(w, msg)
		return
	}

	current, err := h.store.GetPermission(r.Context(), id)
	if errors.Is(err, account.ErrNotFound) {
		httputil.WriteNotFoundError(w, "permission not found")
		return
	}
	if err != nil {
		h.internal(w, r, err, "permission lookup failed")
		return
	}

	if req.Module != current.Module || req.APIPath != current.APIPath || req.Method != current.Method {
		taken, err := h.store.ExistsPermission(r.Context(), req.Module, req.APIPath, req.Method)
		if err != nil {
			h.internal(w, r, err, "permission uniqueness check failed")
			return
		}
		if taken {
			httputil.WriteConflict(w, "permission already exists for this module, path and method")
			return
		}
	}

	perm := &account.Permission{
		ID:      id,
		Name:    req.Name,
		Method:  req.Method,
		APIPath: req.APIPath,
		Module:  req.Module,
	}
	if err := h.store.UpdatePermission(r.Context(), perm); err != nil {
		h.internal(w, r, err, "permission update failed")
		return
	}
	h.invalidateAllRoles(r.Context())

	httputil.WriteSuccess(w, perm)
}

// deletePermission handles DELETE /api/v1/permissions/{id}
func (h *AdminHandlers) deletePermission(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		httputil.WriteBadRequest(w, "invalid permission id")
		return
	}

	err := h.store.DeletePermission(r.Context(), id)
	if errors.Is(err, account.ErrNotFound) {
		httputil.WriteNotFoundError(w, "permission not found")
		return
	}
	if err != nil {
		h.internal(w, r, err, "permission deletion failed")
		return
	}
	h.invalidateAllRoles(r.Context())

	httputil.WriteNoContent(w)
}

func permissionRefs(ids []int64) []account.Permission {
	perms := make([]account.Permission, 0, len(ids))
	for _, id := range ids {
		perms = append(perms, account.Permission{ID: id})
	}
	return perms
}

func (h *AdminHandlers) invalidateRole(ctx context.Context, roleID int64) {
	if h.cache != nil {
		h.cache.Invalidate(ctx, roleID)
	}
}

// invalidateAllRoles runs after permission writes, which can affect any
// role holding the permission.
func (h *AdminHandlers) invalidateAllRoles(ctx context.Context) {
	if h.cache != nil {
		h.cache.InvalidateAll(ctx)
	}
}

func (h *AdminHandlers) internal(w http.ResponseWriter, r *http.Request, err error, msg string) {
	h.logger.WithContext(r.Context()).WithError(err).Error(msg)
	httputil.WriteInternalError(w, errors.New(msg))
}
