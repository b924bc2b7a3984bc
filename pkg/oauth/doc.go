// Package oauth resolves OAuth-provider identities to local accounts.
//
// Exactly two providers are supported: Google (through its OIDC discovery
// and userinfo endpoints) and Facebook (through the Graph API). A callback
// moves through code exchange, profile fetch, normalization into a
// provider-neutral Profile, and finally create-or-merge resolution against
// the account store. Provider fields never erase local data: a merge only
// overwrites what the provider actually supplied.
package oauth
