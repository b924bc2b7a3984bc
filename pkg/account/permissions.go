package account

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// GetPermission retrieves a permission by ID
func (s *Store) GetPermission(ctx context.Context, id int64) (*Permission, error) {
	var p Permission
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, method, api_path, module, created_at, updated_at
		FROM permissions
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Method, &p.APIPath, &p.Module, &p.CreatedAt, &p.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get permission: %w", err)
	}

	return &p, nil
}

// ExistsPermission reports whether a permission with the same
// (module, api_path, method) triple exists
func (s *Store) ExistsPermission(ctx context.Context, module, apiPath, method string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM permissions WHERE module = $1 AND api_path = $2 AND method = $3)
	`, module, apiPath, method).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check permission: %w", err)
	}
	return exists, nil
}

// CreatePermission inserts a new permission
func (s *Store) CreatePermission(ctx context.Context, p *Permission) error {
	now := time.Now()
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO permissions (name, method, api_path, module, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, p.Name, p.Method, p.APIPath, p.Module, now, now).Scan(&p.ID)

	if err != nil {
		return fmt.Errorf("failed to create permission: %w", err)
	}

	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

// UpdatePermission updates an existing permission
func (s *Store) UpdatePermission(ctx context.Context, p *Permission) error {
	now := time.Now()
	result, err := s.db.ExecContext(ctx, `
		UPDATE permissions SET name = $1, method = $2, api_path = $3, module = $4, updated_at = $5
		WHERE id = $6
	`, p.Name, p.Method, p.APIPath, p.Module, now, p.ID)
	if err != nil {
		return fmt.Errorf("failed to update permission: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update permission: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	p.UpdatedAt = now
	return nil
}

// DeletePermission removes a permission and its role bindings
func (s *Store) DeletePermission(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM permissions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete permission: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete permission: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// ListPermissions returns all permissions ordered by module then path
func (s *Store) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, method, api_path, module, created_at, updated_at
		FROM permissions
		ORDER BY module, api_path, method
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list permissions: %w", err)
	}
	defer rows.Close()

	var permissions []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Method, &p.APIPath, &p.Module, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		permissions = append(permissions, p)
	}

	return permissions, rows.Err()
}
