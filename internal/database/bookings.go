package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"woodslot/internal/models"
)

const bookingColumns = `id, phone_number, first_name, last_name, day, start_hour, end_hour, role, created_at`

func (db *DB) CountBookings(ctx context.Context, day string) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings WHERE day = ?`, day).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}

// CountBookingsBetween returns booking counts per day for days in [from, to].
// Days without bookings are absent from the map.
func (db *DB) CountBookingsBetween(ctx context.Context, from, to string) (map[string]int, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT day, COUNT(*) FROM bookings WHERE day BETWEEN ? AND ? GROUP BY day`, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to count bookings by day: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var day string
		var count int
		if err := rows.Scan(&day, &count); err != nil {
			return nil, fmt.Errorf("failed to scan booking count: %w", err)
		}
		counts[day] = count
	}
	return counts, rows.Err()
}

// CreateBookingWithQuota counts the day's bookings and inserts the new one in
// the same transaction. It returns ErrCapacityExceeded when quota bookings
// already exist.
func (db *DB) CreateBookingWithQuota(ctx context.Context, booking *models.Booking, quota int) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var bookedCount int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings WHERE day = ?`, booking.Day).Scan(&bookedCount)
	if err != nil {
		return fmt.Errorf("failed to check availability in tx: %w", err)
	}

	if bookedCount >= quota {
		return ErrCapacityExceeded
	}

	if err := insertBooking(ctx, tx, booking); err != nil {
		return err
	}

	return tx.Commit()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertBooking(ctx context.Context, ex execer, booking *models.Booking) error {
	if booking.Role == "" {
		booking.Role = models.RoleUser
	}
	now := time.Now().UTC()

	result, err := ex.ExecContext(ctx,
		`INSERT INTO bookings (phone_number, first_name, last_name, day, start_hour, end_hour, role, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		booking.PhoneNumber,
		booking.FirstName,
		booking.LastName,
		booking.Day,
		booking.StartHour,
		booking.EndHour,
		booking.Role,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	booking.ID = id
	booking.CreatedAt = now
	return nil
}

// DeleteBooking removes the booking and returns the day it belonged to. The
// day is read in the same transaction, before the row disappears. A missing
// id is not an error: found is false and day is empty.
func (db *DB) DeleteBooking(ctx context.Context, id int64) (day string, found bool, err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	err = tx.QueryRowContext(ctx, `SELECT day FROM bookings WHERE id = ?`, id).Scan(&day)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read booking day: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id); err != nil {
		return "", false, fmt.Errorf("failed to delete booking: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", false, fmt.Errorf("failed to commit booking delete: %w", err)
	}
	return day, true, nil
}

// DeleteAllBookings empties the bookings table and returns the distinct days
// that had at least one booking, in ascending order.
func (db *DB) DeleteAllBookings(ctx context.Context) ([]string, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	rows, err := tx.QueryContext(ctx, `SELECT DISTINCT day FROM bookings ORDER BY day`)
	if err != nil {
		return nil, fmt.Errorf("failed to list booked days: %w", err)
	}
	var days []string
	for rows.Next() {
		var day string
		if err := rows.Scan(&day); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan booked day: %w", err)
		}
		days = append(days, day)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM bookings`); err != nil {
		return nil, fmt.Errorf("failed to delete bookings: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit purge: %w", err)
	}
	return days, nil
}

func (db *DB) ListBookingsByDay(ctx context.Context, day string) ([]*models.Booking, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE day = ? ORDER BY start_hour, id`, day)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	bookings := make([]*models.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBooking(s scanner) (*models.Booking, error) {
	var b models.Booking
	var createdAt sql.NullTime
	err := s.Scan(
		&b.ID, &b.PhoneNumber, &b.FirstName, &b.LastName, &b.Day,
		&b.StartHour, &b.EndHour, &b.Role, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	b.CreatedAt = createdAt.Time
	return &b, nil
}
