// Package token mints and verifies the signed access and refresh tokens.
//
// Both token kinds share one claim shape: the registered subject/issued-at/
// expiry plus a denormalized user snapshot, so the API can serve most
// requests without touching the database. Access and refresh tokens differ
// only in TTL and transport (Authorization header vs. HTTP-only cookie).
//
// The service is purely computational. Persisting a refresh token into the
// account's slot is the caller's decision; only the login and refresh flows
// do it, while every other request merely verifies.
package token
