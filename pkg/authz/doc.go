// Package authz decides whether an authenticated principal may perform an
// HTTP request, based on the permissions attached to the principal's role.
//
// A permission names a method and an API path pattern like
// /api/v1/roles/{id}. A request is allowed when any role permission matches:
// the method compared case-insensitively and the pattern equal to the
// resolved route template. Only when no template resolved is the pattern
// wildcard-matched against the raw URI path, with every {name} placeholder
// standing in for exactly one path segment.
//
// Role permissions are read through a two-tier cache (in-process LRU plus
// optional Redis) keyed by role id. Cache failures fall back to the
// database; they never turn into a deny.
package authz
