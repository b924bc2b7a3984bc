package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lumenfeed/lumen/pkg/account"
)

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"/api/v1/roles/{id}", "/api/v1/roles/7", true},
		{"/api/v1/roles/{id}", "/api/v1/roles/7/extra", false},
		{"/api/v1/roles/{id}", "/api/v1/roles", false},
		{"/api/v1/roles", "/api/v1/roles", true},
		{"/api/v1/roles", "/api/v1/permissions", false},
		{"/api/v1/users/{id}/posts/{postId}", "/api/v1/users/1/posts/2", true},
		{"/api/v1/users/{id}/posts/{postId}", "/api/v1/users/1/posts", false},
		{"/storage/{file}", "/storage/a.png", true},
		{"/storage/{file}", "/storage/a/b.png", false},
		// Trailing slashes are insignificant
		{"/api/v1/roles/", "/api/v1/roles", true},
		{"/", "/", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MatchPattern(tt.pattern, tt.path),
			"pattern %q vs path %q", tt.pattern, tt.path)
	}
}

func TestMatchesRequestMethodCaseInsensitive(t *testing.T) {
	p := account.Permission{Method: "get", APIPath: "/api/v1/users/{id}"}

	assert.True(t, MatchesRequest(p, "GET", "", "/api/v1/users/42"))
	assert.False(t, MatchesRequest(p, "POST", "", "/api/v1/users/42"))
}

func TestMatchesRequestRouteTemplateIsAuthoritative(t *testing.T) {
	p := account.Permission{Method: "GET", APIPath: "/api/v1/roles/{id}"}

	assert.True(t, MatchesRequest(p, "GET", "/api/v1/roles/{id}", "/api/v1/roles/7"))

	// Wildcard matching applies only when no template resolved
	assert.True(t, MatchesRequest(p, "GET", "", "/api/v1/roles/7"))

	// A non-matching template denies outright, with no raw-path fallback
	assert.False(t, MatchesRequest(p, "GET", "/api/v1/other/{id}", "/api/v1/other/7"))
}

func TestMatchesRequestTemplateBlocksSiblingRoutes(t *testing.T) {
	// A placeholder grant must not leak onto literal sibling routes that the
	// raw path would wildcard-match.
	p := account.Permission{Method: "GET", APIPath: "/api/v1/users/{id}"}

	assert.False(t, MatchesRequest(p, "GET", "/api/v1/users/export", "/api/v1/users/export"))
	assert.True(t, MatchesRequest(p, "GET", "/api/v1/users/{id}", "/api/v1/users/export"))
}

func TestAnyMatch(t *testing.T) {
	perms := []account.Permission{
		{Method: "GET", APIPath: "/api/v1/roles"},
		{Method: "POST", APIPath: "/api/v1/roles"},
		{Method: "GET", APIPath: "/api/v1/users/{id}"},
	}

	assert.True(t, AnyMatch(perms, "GET", "", "/api/v1/users/42"))
	assert.False(t, AnyMatch(perms, "POST", "", "/api/v1/users/42"))
	assert.True(t, AnyMatch(perms, "post", "", "/api/v1/roles"))
	assert.False(t, AnyMatch(perms, "DELETE", "", "/api/v1/roles"))
	assert.False(t, AnyMatch(nil, "GET", "", "/api/v1/roles"))
}
