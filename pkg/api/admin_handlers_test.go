package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenfeed/lumen/pkg/account"
)

// fakeRoleStore is an in-memory RoleStore
type fakeRoleStore struct {
	roles     map[int64]*account.Role
	perms     map[int64]*account.Permission
	nextRole  int64
	nextPerm  int64
}

func newFakeRoleStore() *fakeRoleStore {
	return &fakeRoleStore{
		roles:    make(map[int64]*account.Role),
		perms:    make(map[int64]*account.Permission),
		nextRole: 1,
		nextPerm: 1,
	}
}

func (f *fakeRoleStore) GetRole(_ context.Context, roleID int64) (*account.Role, error) {
	if r, ok := f.roles[roleID]; ok {
		copied := *r
		return &copied, nil
	}
	return nil, account.ErrNotFound
}

func (f *fakeRoleStore) ExistsRoleName(_ context.Context, name string) (bool, error) {
	for _, r := range f.roles {
		if r.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRoleStore) CreateRole(_ context.Context, role *account.Role) error {
	role.ID = f.nextRole
	f.nextRole++
	copied := *role
	f.roles[role.ID] = &copied
	return nil
}

func (f *fakeRoleStore) UpdateRole(_ context.Context, role *account.Role) error {
	if _, ok := f.roles[role.ID]; !ok {
		return account.ErrNotFound
	}
	copied := *role
	f.roles[role.ID] = &copied
	return nil
}

func (f *fakeRoleStore) DeleteRole(_ context.Context, roleID int64) error {
	if _, ok := f.roles[roleID]; !ok {
		return account.ErrNotFound
	}
	delete(f.roles, roleID)
	return nil
}

func (f *fakeRoleStore) ListRoles(_ context.Context) ([]account.Role, error) {
	out := make([]account.Role, 0, len(f.roles))
	for _, r := range f.roles {
		out = append(out, *r)
	}
	return out, nil
}

func (f *fakeRoleStore) GetPermission(_ context.Context, id int64) (*account.Permission, error) {
	if p, ok := f.perms[id]; ok {
		copied := *p
		return &copied, nil
	}
	return nil, account.ErrNotFound
}

func (f *fakeRoleStore) ExistsPermission(_ context.Context, module, apiPath, method string) (bool, error) {
	for _, p := range f.perms {
		if p.Module == module && p.APIPath == apiPath && p.Method == method {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRoleStore) CreatePermission(_ context.Context, p *account.Permission) error {
	p.ID = f.nextPerm
	f.nextPerm++
	copied := *p
	f.perms[p.ID] = &copied
	return nil
}

func (f *fakeRoleStore) UpdatePermission(_ context.Context, p *account.Permission) error {
	if _, ok := f.perms[p.ID]; !ok {
		return account.ErrNotFound
	}
	copied := *p
	f.perms[p.ID] = &copied
	return nil
}

func (f *fakeRoleStore) DeletePermission(_ context.Context, id int64) error {
	if _, ok := f.perms[id]; !ok {
		return account.ErrNotFound
	}
	delete(f.perms, id)
	return nil
}

func (f *fakeRoleStore) ListPermissions(_ context.Context) ([]account.Permission, error) {
	out := make([]account.Permission, 0, len(f.perms))
	for _, p := range f.perms {
		out = append(out, *p)
	}
	return out, nil
}

// adminPerms grants full access to the admin routes
func fullAdminPerms() []account.Permission {
	var out []account.Permission
	for _, path := range []string{
		"/api/v1/roles", "/api/v1/roles/{id}",
		"/api/v1/permissions", "/api/v1/permissions/{id}",
	} {
		for _, method := range []string{"GET", "POST", "PUT", "DELETE"} {
			out = append(out, account.Permission{Method: method, APIPath: path, Module: "admin"})
		}
	}
	return out
}

func adminHarness(t *testing.T) (*harness, string) {
	t.Helper()

	h := newHarness(t, rolePerms{1: fullAdminPerms()})
	admin := h.accounts.add(t, "admin@x.com", "secret1",
		&account.Role{ID: 1, Name: "admin", Active: true})
	return h, h.accessToken(t, admin)
}

func TestAdminRoutesRequireAuthentication(t *testing.T) {
	h, _ := adminHarness(t)

	rec := do(h, http.MethodGet, "/api/v1/roles", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminRoutesRequirePermission(t *testing.T) {
	h, _ := adminHarness(t)

	// Authenticated but role 2 has no grants
	limited := h.accounts.add(t, "limited@x.com", "secret1",
		&account.Role{ID: 2, Name: "viewer", Active: true})

	rec := do(h, http.MethodGet, "/api/v1/roles", "", withBearer(h.accessToken(t, limited)))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRoleCRUD(t *testing.T) {
	h, admin := adminHarness(t)

	rec := do(h, http.MethodPost, "/api/v1/roles",
		`{"name":"editor","description":"can edit","permission_ids":[1,2]}`, withBearer(admin))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"editor"`)

	rec = do(h, http.MethodGet, "/api/v1/roles/1", "", withBearer(admin))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(h, http.MethodGet, "/api/v1/roles", "", withBearer(admin))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(h, http.MethodPut, "/api/v1/roles/1",
		`{"name":"editor","description":"updated","active":false}`, withBearer(admin))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"active":false`)

	rec = do(h, http.MethodDelete, "/api/v1/roles/1", "", withBearer(admin))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(h, http.MethodGet, "/api/v1/roles/1", "", withBearer(admin))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRoleNameUniqueness(t *testing.T) {
	h, admin := adminHarness(t)

	rec := do(h, http.MethodPost, "/api/v1/roles", `{"name":"editor"}`, withBearer(admin))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(h, http.MethodPost, "/api/v1/roles", `{"name":"editor"}`, withBearer(admin))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRoleValidation(t *testing.T) {
	h, admin := adminHarness(t)

	rec := do(h, http.MethodPost, "/api/v1/roles", `{"description":"no name"}`, withBearer(admin))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodGet, "/api/v1/roles/abc", "", withBearer(admin))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPermissionCRUD(t *testing.T) {
	h, admin := adminHarness(t)

	rec := do(h, http.MethodPost, "/api/v1/permissions",
		`{"name":"list users","method":"GET","api_path":"/api/v1/users","module":"users"}`, withBearer(admin))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(h, http.MethodGet, "/api/v1/permissions/1", "", withBearer(admin))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"api_path":"/api/v1/users"`)

	rec = do(h, http.MethodPut, "/api/v1/permissions/1",
		`{"name":"list users","method":"GET","api_path":"/api/v1/users/{id}","module":"users"}`, withBearer(admin))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(h, http.MethodDelete, "/api/v1/permissions/1", "", withBearer(admin))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(h, http.MethodGet, "/api/v1/permissions/1", "", withBearer(admin))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPermissionUniqueness(t *testing.T) {
	h, admin := adminHarness(t)

	body := `{"name":"list users","method":"GET","api_path":"/api/v1/users","module":"users"}`
	rec := do(h, http.MethodPost, "/api/v1/permissions", body, withBearer(admin))
	require.Equal(t, http.StatusCreated, rec.Code)

	// Same (module, api_path, method) triple is rejected even under a
	// different display name
	dup := `{"name":"users listing","method":"GET","api_path":"/api/v1/users","module":"users"}`
	rec = do(h, http.MethodPost, "/api/v1/permissions", dup, withBearer(admin))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestPermissionValidation(t *testing.T) {
	h, admin := adminHarness(t)

	rec := do(h, http.MethodPost, "/api/v1/permissions",
		`{"name":"incomplete","method":"GET"}`, withBearer(admin))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
