// Package api exposes the HTTP surface: login, refresh, logout,
// registration, the social OAuth flow, and the role/permission admin CRUD.
// Handlers translate between HTTP and the auth/oauth/account services and
// own the refresh-token cookie.
package api
