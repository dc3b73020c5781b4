package database

import "errors"

var (
	ErrCapacityExceeded      = errors.New("maximum bookings reached for this date")
	ErrDuplicateSubscription = errors.New("already subscribed for notifications for this date")
	ErrAdminNotFound         = errors.New("admin not found")
)
