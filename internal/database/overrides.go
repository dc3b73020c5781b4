package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"woodslot/internal/models"
)

// UpsertOverride creates or replaces the override for override.Day.
func (db *DB) UpsertOverride(ctx context.Context, override *models.AvailabilityOverride) error {
	now := time.Now().UTC()
	_, err := db.ExecContext(ctx, `
        INSERT INTO availability_overrides (day, status, comment, updated_at)
        VALUES (?, ?, ?, ?)
        ON CONFLICT(day) DO UPDATE SET
            status = excluded.status,
            comment = excluded.comment,
            updated_at = excluded.updated_at`,
		override.Day, override.Status, override.Comment, now)
	if err != nil {
		return fmt.Errorf("failed to upsert availability override: %w", err)
	}

	// LastInsertId is not reliable for the update branch of an upsert.
	stored, err := db.GetOverride(ctx, override.Day)
	if err != nil {
		return err
	}
	*override = *stored
	return nil
}

// GetOverride returns the override for day, or nil when none was set.
func (db *DB) GetOverride(ctx context.Context, day string) (*models.AvailabilityOverride, error) {
	var o models.AvailabilityOverride
	var updatedAt sql.NullTime
	err := db.QueryRowContext(ctx,
		`SELECT id, day, status, comment, updated_at FROM availability_overrides WHERE day = ?`, day).
		Scan(&o.ID, &o.Day, &o.Status, &o.Comment, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get availability override: %w", err)
	}
	o.UpdatedAt = updatedAt.Time
	return &o, nil
}

// ListOverridesBetween returns overrides for days in [from, to] keyed by day.
func (db *DB) ListOverridesBetween(ctx context.Context, from, to string) (map[string]*models.AvailabilityOverride, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, day, status, comment, updated_at FROM availability_overrides WHERE day BETWEEN ? AND ?`, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list availability overrides: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*models.AvailabilityOverride)
	for rows.Next() {
		var o models.AvailabilityOverride
		var updatedAt sql.NullTime
		if err := rows.Scan(&o.ID, &o.Day, &o.Status, &o.Comment, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan availability override: %w", err)
		}
		o.UpdatedAt = updatedAt.Time
		out[o.Day] = &o
	}
	return out, rows.Err()
}
