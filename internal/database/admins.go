package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"woodslot/internal/models"
)

// UpsertAdmin creates the admin or replaces its password hash.
func (db *DB) UpsertAdmin(ctx context.Context, admin *models.Admin) error {
	_, err := db.ExecContext(ctx, `
        INSERT INTO admins (first_name, password_hash, created_at)
        VALUES (?, ?, ?)
        ON CONFLICT(first_name) DO UPDATE SET password_hash = excluded.password_hash`,
		admin.FirstName, admin.PasswordHash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert admin: %w", err)
	}

	stored, err := db.GetAdminByFirstName(ctx, admin.FirstName)
	if err != nil {
		return err
	}
	*admin = *stored
	return nil
}

func (db *DB) GetAdminByFirstName(ctx context.Context, firstName string) (*models.Admin, error) {
	return db.queryAdmin(ctx, `SELECT id, first_name, password_hash, created_at FROM admins WHERE first_name = ?`, firstName)
}

func (db *DB) GetAdminByID(ctx context.Context, id int64) (*models.Admin, error) {
	return db.queryAdmin(ctx, `SELECT id, first_name, password_hash, created_at FROM admins WHERE id = ?`, id)
}

func (db *DB) queryAdmin(ctx context.Context, query string, args ...any) (*models.Admin, error) {
	var a models.Admin
	var createdAt sql.NullTime
	err := db.QueryRowContext(ctx, query, args...).Scan(&a.ID, &a.FirstName, &a.PasswordHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAdminNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get admin: %w", err)
	}
	a.CreatedAt = createdAt.Time
	return &a, nil
}
