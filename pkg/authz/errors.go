package authz

import "errors"

var (
	// ErrNoPermissions means the principal's account or role carries no
	// permissions at all, so nothing could possibly match.
	ErrNoPermissions = errors.New("authz: account has no permissions")

	// ErrPermissionDenied means permissions exist but none matched the
	// request.
	ErrPermissionDenied = errors.New("authz: permission denied")
)
