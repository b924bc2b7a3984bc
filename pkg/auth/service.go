package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/lumenfeed/lumen/pkg/account"
	"github.com/lumenfeed/lumen/pkg/token"
)

// AccountStore is the account persistence the service needs. Satisfied by
// *account.Store.
type AccountStore interface {
	GetByEmail(ctx context.Context, email string) (*account.Account, error)
	GetByRefreshTokenAndEmail(ctx context.Context, token, email string) (*account.Account, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, a *account.Account) error
	UpdateRefreshToken(ctx context.Context, email string, token *string) error
}

// Session is the result of a successful authentication: the account plus a
// freshly minted access/refresh pair. The refresh token has already been
// persisted into the account's slot when a Session is returned.
type Session struct {
	Account      *account.Account
	AccessToken  string
	RefreshToken string
}

// Service implements the credential flows
type Service struct {
	accounts AccountStore
	tokens   *token.Service
}

// NewService creates an auth service
func NewService(accounts AccountStore, tokens *token.Service) *Service {
	return &Service{
		accounts: accounts,
		tokens:   tokens,
	}
}

// Login verifies an email/password pair and issues a session.
//
// The blocked-account check runs after password verification, matching the
// upstream behavior: a blocked account answers a wrong password exactly like
// an active account does.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	acct, err := s.accounts.GetByEmail(ctx, email)
	if errors.Is(err, account.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("login lookup failed: %w", err)
	}

	if acct.PasswordHash == nil {
		// OAuth-only account; there is no password to match
		return nil, ErrInvalidCredentials
	}

	if bcrypt.CompareHashAndPassword([]byte(*acct.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	if acct.IsBlocked {
		return nil, ErrAccountBlocked
	}

	return s.IssueSession(ctx, acct)
}

// IssueSession mints an access/refresh pair and rotates the account's
// refresh-token slot. Both password login and the OAuth callback end here.
func (s *Service) IssueSession(ctx context.Context, acct *account.Account) (*Session, error) {
	access, err := s.tokens.IssueAccessToken(acct)
	if err != nil {
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}

	refresh, err := s.tokens.IssueRefreshToken(acct)
	if err != nil {
		return nil, fmt.Errorf("failed to issue refresh token: %w", err)
	}

	// Unconditional overwrite: the previous refresh token, if any, stops
	// matching the slot and can no longer be exchanged.
	if err := s.accounts.UpdateRefreshToken(ctx, acct.Email, &refresh); err != nil {
		return nil, fmt.Errorf("failed to rotate refresh token: %w", err)
	}

	return &Session{
		Account:      acct,
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}

// Refresh exchanges a refresh token for a new session, rotating the stored
// slot. Each refresh token is usable exactly once: the act of exchanging it
// replaces it.
func (s *Service) Refresh(ctx context.Context, rawRefreshToken string) (*Session, error) {
	claims, err := s.tokens.Verify(rawRefreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}

	acct, err := s.accounts.GetByRefreshTokenAndEmail(ctx, rawRefreshToken, claims.Subject)
	if errors.Is(err, account.ErrNotFound) {
		return nil, ErrStaleRefreshToken
	}
	if err != nil {
		return nil, fmt.Errorf("refresh lookup failed: %w", err)
	}

	return s.IssueSession(ctx, acct)
}

// Logout clears the account's refresh-token slot. Outstanding access tokens
// stay valid until natural expiry; that staleness window is accepted.
func (s *Service) Logout(ctx context.Context, email string) error {
	err := s.accounts.UpdateRefreshToken(ctx, email, nil)
	if errors.Is(err, account.ErrNotFound) {
		return nil
	}
	return err
}

// RegisterInput carries the registration form fields
type RegisterInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Register creates a new password-based account
func (s *Service) Register(ctx context.Context, in RegisterInput) (*account.Account, error) {
	exists, err := s.accounts.ExistsByEmail(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("registration lookup failed: %w", err)
	}
	if exists {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	hashStr := string(hash)

	acct := &account.Account{
		Email:        in.Email,
		PasswordHash: &hashStr,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
	}

	if err := s.accounts.Create(ctx, acct); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	return acct, nil
}
