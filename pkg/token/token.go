package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lumenfeed/lumen/pkg/account"
)

// ErrInvalid is returned for any signature, structure, or expiry failure.
// Claims are never partially trusted: a token that fails verification
// yields no claim data at all.
var ErrInvalid = errors.New("token: invalid or expired")

// signingMethod is pinned to HS512; tokens declaring any other algorithm
// are rejected before signature verification.
var signingMethod = jwt.SigningMethodHS512

// Claims is the signed payload carried by both access and refresh tokens
type Claims struct {
	UserID       int64   `json:"user_id"`
	UserEmail    string  `json:"user_email"`
	UserFullName string  `json:"user_fullname"`
	UserIsAdmin  bool    `json:"user_is_admin"`
	UserRoleID   *int64  `json:"user_role_id"`
	UserRoleName *string `json:"user_role_name"`
	jwt.RegisteredClaims
}

// Service mints and verifies signed tokens with a single shared symmetric key
type Service struct {
	key        []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewService creates a token service. TTLs apply from issue time; expiry is
// checked strictly against the verifier's clock with no leeway.
func NewService(key []byte, accessTTL, refreshTTL time.Duration) *Service {
	return &Service{
		key:        key,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// WithClock overrides the time source, for tests
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// IssueAccessToken mints a short-lived access token for the account
func (s *Service) IssueAccessToken(a *account.Account) (string, error) {
	return s.issue(a, s.accessTTL)
}

// IssueRefreshToken mints a long-lived refresh token for the account
func (s *Service) IssueRefreshToken(a *account.Account) (string, error) {
	return s.issue(a, s.refreshTTL)
}

func (s *Service) issue(a *account.Account, ttl time.Duration) (string, error) {
	now := s.now()

	claims := Claims{
		UserID:       a.ID,
		UserEmail:    a.Email,
		UserFullName: a.FullName(),
		UserIsAdmin:  a.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   a.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if a.Role != nil {
		claims.UserRoleID = &a.Role.ID
		claims.UserRoleName = &a.Role.Name
	}

	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// Verify checks the signature and expiry of a raw token and returns its
// claims. Any failure yields ErrInvalid.
func (s *Service) Verify(raw string) (*Claims, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(raw, claims,
		func(t *jwt.Token) (interface{}, error) {
			return s.key, nil
		},
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, ErrInvalid
	}

	return claims, nil
}
