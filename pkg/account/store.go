package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("account: not found")

// Store handles account, role, and permission persistence
type Store struct {
	db *sql.DB
}

// NewStore creates a new store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const accountColumns = `
	u.id, u.email, u.password_hash, u.first_name, u.last_name,
	u.avatar, u.cover_photo, u.is_admin, u.is_blocked, u.refresh_token,
	u.created_at, u.updated_at,
	r.id, r.name, r.description, r.active, r.created_at, r.updated_at
`

const accountFrom = `
	FROM users u
	LEFT JOIN roles r ON r.id = u.role_id
`

// GetByEmail retrieves an account (with its role, if any) by email
func (s *Store) GetByEmail(ctx context.Context, email string) (*Account, error) {
	query := `SELECT` + accountColumns + accountFrom + `WHERE u.email = $1`
	return s.scanAccount(s.db.QueryRowContext(ctx, query, email))
}

// GetByID retrieves an account by ID
func (s *Store) GetByID(ctx context.Context, id int64) (*Account, error) {
	query := `SELECT` + accountColumns + accountFrom + `WHERE u.id = $1`
	return s.scanAccount(s.db.QueryRowContext(ctx, query, id))
}

// GetByRefreshTokenAndEmail retrieves the account whose stored refresh-token
// slot and email both match exactly. A signed token that was since
// superseded will not match even though its signature still verifies.
func (s *Store) GetByRefreshTokenAndEmail(ctx context.Context, token, email string) (*Account, error) {
	query := `SELECT` + accountColumns + accountFrom + `WHERE u.refresh_token = $1 AND u.email = $2`
	return s.scanAccount(s.db.QueryRowContext(ctx, query, token, email))
}

// ExistsByEmail reports whether an account with the email exists
func (s *Store) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return exists, nil
}

// Create inserts a new account
func (s *Store) Create(ctx context.Context, a *Account) error {
	query := `
		INSERT INTO users (email, password_hash, first_name, last_name, avatar, cover_photo, is_admin, is_blocked, role_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`

	now := time.Now()
	var roleID *int64
	if a.Role != nil {
		roleID = &a.Role.ID
	}

	err := s.db.QueryRowContext(ctx, query,
		a.Email,
		a.PasswordHash,
		a.FirstName,
		a.LastName,
		a.Avatar,
		a.CoverPhoto,
		a.IsAdmin,
		a.IsBlocked,
		roleID,
		now,
		now,
	).Scan(&a.ID)

	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}

	a.CreatedAt = now
	a.UpdatedAt = now
	return nil
}

// Update persists profile fields and flags of an existing account
func (s *Store) Update(ctx context.Context, a *Account) error {
	query := `
		UPDATE users
		SET first_name = $1, last_name = $2, avatar = $3, cover_photo = $4,
		    is_admin = $5, is_blocked = $6, role_id = $7, updated_at = $8
		WHERE id = $9
	`

	now := time.Now()
	var roleID *int64
	if a.Role != nil {
		roleID = &a.Role.ID
	}

	result, err := s.db.ExecContext(ctx, query,
		a.FirstName,
		a.LastName,
		a.Avatar,
		a.CoverPhoto,
		a.IsAdmin,
		a.IsBlocked,
		roleID,
		now,
		a.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	a.UpdatedAt = now
	return nil
}

// UpdateRefreshToken unconditionally overwrites the account's refresh-token
// slot. A nil token clears the slot (logout). There is no comparison against
// the previous value; last writer wins.
func (s *Store) UpdateRefreshToken(ctx context.Context, email string, token *string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET refresh_token = $1, updated_at = $2 WHERE email = $3`,
		token, time.Now(), email)
	if err != nil {
		return fmt.Errorf("failed to update refresh token: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update refresh token: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// scanAccount scans one account row with its optional role
func (s *Store) scanAccount(row *sql.Row) (*Account, error) {
	var a Account
	var passwordHash, refreshToken sql.NullString
	var roleID sql.NullInt64
	var roleName, roleDescription sql.NullString
	var roleActive sql.NullBool
	var roleCreated, roleUpdated sql.NullTime

	err := row.Scan(
		&a.ID,
		&a.Email,
		&passwordHash,
		&a.FirstName,
		&a.LastName,
		&a.Avatar,
		&a.CoverPhoto,
		&a.IsAdmin,
		&a.IsBlocked,
		&refreshToken,
		&a.CreatedAt,
		&a.UpdatedAt,
		&roleID,
		&roleName,
		&roleDescription,
		&roleActive,
		&roleCreated,
		&roleUpdated,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}

	if passwordHash.Valid {
		hash := passwordHash.String
		a.PasswordHash = &hash
	}
	if refreshToken.Valid {
		token := refreshToken.String
		a.RefreshToken = &token
	}
	if roleID.Valid {
		a.Role = &Role{
			ID:          roleID.Int64,
			Name:        roleName.String,
			Description: roleDescription.String,
			Active:      roleActive.Bool,
			CreatedAt:   roleCreated.Time,
			UpdatedAt:   roleUpdated.Time,
		}
	}

	return &a, nil
}
