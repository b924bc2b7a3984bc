package account

import (
	"strings"
	"time"
)

// Account represents a user account. PasswordHash is nil for accounts
// created through an OAuth provider; RefreshToken is the account's single
// refresh-token slot, nil when logged out.
type Account struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash *string   `json:"-"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Avatar       string    `json:"avatar,omitempty"`
	CoverPhoto   string    `json:"cover_photo,omitempty"`
	IsAdmin      bool      `json:"is_admin"`
	IsBlocked    bool      `json:"is_blocked"`
	RefreshToken *string   `json:"-"`
	Role         *Role     `json:"role,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// FullName joins the name parts the way the login response presents them
func (a *Account) FullName() string {
	return strings.TrimSpace(a.LastName + " " + a.FirstName)
}

// Role is a named bundle of permissions assigned to an account
type Role struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Active      bool         `json:"active"`
	Permissions []Permission `json:"permissions,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Permission grants one (HTTP method, path pattern) pair, tagged with the
// API module it belongs to. No two permissions share (module, path, method).
type Permission struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Method    string    `json:"method"`
	APIPath   string    `json:"api_path"`
	Module    string    `json:"module"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
