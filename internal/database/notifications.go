package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"woodslot/internal/models"
)

// CreateSubscription records interest in day. A second subscription for the
// same (email, day) pair fails with ErrDuplicateSubscription.
func (db *DB) CreateSubscription(ctx context.Context, sub *models.NotificationSubscription) error {
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx,
		`INSERT INTO notifications (email, day, created_at) VALUES (?, ?, ?)`,
		sub.Email, sub.Day, now)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateSubscription
		}
		return fmt.Errorf("failed to create subscription: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	sub.ID = id
	sub.CreatedAt = now
	return nil
}

func (db *DB) ListSubscriptions(ctx context.Context, day string) ([]*models.NotificationSubscription, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, email, day, created_at FROM notifications WHERE day = ? ORDER BY id`, day)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	subs := make([]*models.NotificationSubscription, 0)
	for rows.Next() {
		var s models.NotificationSubscription
		var createdAt sql.NullTime
		if err := rows.Scan(&s.ID, &s.Email, &s.Day, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		s.CreatedAt = createdAt.Time
		subs = append(subs, &s)
	}
	return subs, rows.Err()
}

func (db *DB) DeleteSubscription(ctx context.Context, email, day string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM notifications WHERE email = ? AND day = ?`, email, day)
	if err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	return nil
}

// DeleteSubscriptionsBefore removes subscriptions for days strictly before day
// and returns how many rows were removed.
func (db *DB) DeleteSubscriptionsBefore(ctx context.Context, day string) (int64, error) {
	result, err := db.ExecContext(ctx, `DELETE FROM notifications WHERE day < ?`, day)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale subscriptions: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}
