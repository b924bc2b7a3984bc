package auth

import "errors"

// Domain errors surfaced to callers as 4xx outcomes. None are retried by
// this subsystem; retry policy, if any, belongs to the client.
var (
	// ErrInvalidCredentials covers both an unknown email and a password
	// mismatch, so a failed login does not reveal whether the account exists.
	ErrInvalidCredentials = errors.New("auth: invalid email or password")

	// ErrAccountBlocked is returned when the account's blocked flag is set.
	// During password login it is raised only after the password verified.
	ErrAccountBlocked = errors.New("auth: account is blocked")

	// ErrInvalidToken is returned for any token signature, structure, or
	// expiry failure. Decode failures short-circuit before any claim is read.
	ErrInvalidToken = errors.New("auth: invalid or expired token")

	// ErrStaleRefreshToken is returned when a refresh token verifies
	// cryptographically but no longer matches the account's stored slot.
	ErrStaleRefreshToken = errors.New("auth: refresh token is stale or unknown")

	// ErrEmailTaken is returned by registration for a duplicate email.
	ErrEmailTaken = errors.New("auth: email is already registered")
)
