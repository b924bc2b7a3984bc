// Package auth orchestrates credential verification and session issuance:
// password login, refresh-token rotation, logout, and registration.
//
// Password login and OAuth login converge on one token-issuance path
// (IssueSession), so every successful authentication rotates the account's
// single refresh-token slot the same way. Presenting a refresh token that
// was since superseded fails even though its signature still verifies.
package auth
