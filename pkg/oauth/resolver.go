package oauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/lumenfeed/lumen/pkg/account"
	"github.com/lumenfeed/lumen/pkg/auth"
)

// AccountStore is the persistence the resolver needs. Satisfied by
// *account.Store.
type AccountStore interface {
	GetByEmail(ctx context.Context, email string) (*account.Account, error)
	Create(ctx context.Context, a *account.Account) error
	Update(ctx context.Context, a *account.Account) error
}

// Resolver turns a provider profile into a local account
type Resolver struct {
	accounts AccountStore
}

// NewResolver creates a resolver over the given store
func NewResolver(accounts AccountStore) *Resolver {
	return &Resolver{accounts: accounts}
}

// Resolve finds or creates the account matching the profile's email.
//
// A new account gets the profile fields verbatim and no password hash. An
// existing account is merged non-destructively: only fields the provider
// actually supplied overwrite local values, and the update is skipped
// entirely when nothing changed. Blocked accounts are rejected regardless of
// which provider vouched for them.
func (r *Resolver) Resolve(ctx context.Context, p Profile) (*account.Account, error) {
	if p.Email == "" {
		return nil, ErrProfileIncomplete
	}

	acct, err := r.accounts.GetByEmail(ctx, p.Email)
	if errors.Is(err, account.ErrNotFound) {
		acct = &account.Account{
			Email:     p.Email,
			FirstName: p.FirstName,
			LastName:  p.LastName,
			Avatar:    p.Avatar,
		}
		if err := r.accounts.Create(ctx, acct); err != nil {
			return nil, fmt.Errorf("failed to create account from provider profile: %w", err)
		}
		return acct, nil
	}
	if err != nil {
		return nil, fmt.Errorf("provider account lookup failed: %w", err)
	}

	if acct.IsBlocked {
		return nil, auth.ErrAccountBlocked
	}

	if merge(acct, p) {
		if err := r.accounts.Update(ctx, acct); err != nil {
			return nil, fmt.Errorf("failed to merge provider profile: %w", err)
		}
	}

	return acct, nil
}

// merge copies non-empty provider fields onto the account and reports
// whether anything changed.
func merge(acct *account.Account, p Profile) bool {
	changed := false
	if p.FirstName != "" && p.FirstName != acct.FirstName {
		acct.FirstName = p.FirstName
		changed = true
	}
	if p.LastName != "" && p.LastName != acct.LastName {
		acct.LastName = p.LastName
		changed = true
	}
	if p.Avatar != "" && p.Avatar != acct.Avatar {
		acct.Avatar = p.Avatar
		changed = true
	}
	return changed
}
