package authz

import (
	"strings"

	"github.com/lumenfeed/lumen/pkg/account"
)

// MatchesRequest reports whether the permission covers the request. The
// method comparison is case-insensitive. When a resolved route template is
// available (e.g. /api/v1/roles/{id}) it is authoritative: the permission
// path must equal it exactly. Only when no template is available is the
// permission path wildcard-matched against the raw URI path.
func MatchesRequest(p account.Permission, method, routeTemplate, rawPath string) bool {
	if !strings.EqualFold(p.Method, method) {
		return false
	}
	if routeTemplate != "" {
		return p.APIPath == routeTemplate
	}
	return MatchPattern(p.APIPath, rawPath)
}

// AnyMatch reports whether any permission in the set covers the request
func AnyMatch(perms []account.Permission, method, routeTemplate, rawPath string) bool {
	for _, p := range perms {
		if MatchesRequest(p, method, routeTemplate, rawPath) {
			return true
		}
	}
	return false
}

// MatchPattern matches a concrete path against a pattern whose {name}
// placeholders each stand in for exactly one path segment. Placeholders
// never cross a slash: /api/v1/roles/{id} matches /api/v1/roles/7 but not
// /api/v1/roles/7/extra.
func MatchPattern(pattern, path string) bool {
	patSegs := splitPath(pattern)
	pathSegs := splitPath(path)
	if len(patSegs) != len(pathSegs) {
		return false
	}
	for i, seg := range patSegs {
		if isPlaceholder(seg) {
			if pathSegs[i] == "" {
				return false
			}
			continue
		}
		if seg != pathSegs[i] {
			return false
		}
	}
	return true
}

func splitPath(p string) []string {
	return strings.Split(strings.Trim(p, "/"), "/")
}

func isPlaceholder(seg string) bool {
	return len(seg) > 1 && seg[0] == '{' && seg[len(seg)-1] == '}'
}
