// Package account holds the account, role, and permission domain model and
// its PostgreSQL persistence.
//
// Each account carries at most one refresh token at a time. Rotating the
// token unconditionally overwrites the stored slot, so concurrent logins on
// two devices leave exactly one of them with a usable refresh token. The
// database is the system of record and serializes those writes.
package account
