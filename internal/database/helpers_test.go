package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"woodslot/internal/models"
)

var errBookingNotFound = errors.New("booking not found")

// createBooking inserts without a capacity check.
func (db *DB) createBooking(ctx context.Context, booking *models.Booking) error {
	return insertBooking(ctx, db.DB, booking)
}

func (db *DB) getBooking(ctx context.Context, id int64) (*models.Booking, error) {
	row := db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return b, nil
}

func (db *DB) countSubscriptions(ctx context.Context, day string) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE day = ?`, day).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count subscriptions: %w", err)
	}
	return count, nil
}
