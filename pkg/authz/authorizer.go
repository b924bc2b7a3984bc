package authz

import (
	"context"
	"fmt"

	"github.com/lumenfeed/lumen/pkg/token"
)

// Authorizer answers whether a principal may perform a request
type Authorizer struct {
	perms PermissionSource
}

// NewAuthorizer creates an authorizer over the given permission source,
// usually a *PermissionCache.
func NewAuthorizer(perms PermissionSource) *Authorizer {
	return &Authorizer{perms: perms}
}

// Authorize checks the principal's role permissions against the request.
// Returns nil when allowed, ErrNoPermissions when the principal has no role
// or the role carries no permissions, and ErrPermissionDenied (wrapped with
// the request detail) when permissions exist but none match.
func (a *Authorizer) Authorize(ctx context.Context, claims *token.Claims, method, routeTemplate, rawPath string) error {
	if claims.UserRoleID == nil {
		return ErrNoPermissions
	}

	perms, err := a.perms.GetRolePermissions(ctx, *claims.UserRoleID)
	if err != nil {
		return fmt.Errorf("failed to load role permissions: %w", err)
	}
	if len(perms) == 0 {
		return ErrNoPermissions
	}

	if AnyMatch(perms, method, routeTemplate, rawPath) {
		return nil
	}

	return fmt.Errorf("%w: no permission covers %s %s (route %s)", ErrPermissionDenied, method, rawPath, routeTemplate)
}
