package database

import (
	"context"
	"testing"

	"woodslot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDB_ErrorPaths(t *testing.T) {
	db, err := NewDB(":memory:", nil)
	require.NoError(t, err)
	db.Close() // Close the DB to trigger errors

	ctx := context.Background()

	t.Run("CountBookings_Error", func(t *testing.T) {
		_, err := db.CountBookings(ctx, "2025-06-05")
		assert.Error(t, err)
	})

	t.Run("CreateBookingWithQuota_Error", func(t *testing.T) {
		err := db.CreateBookingWithQuota(ctx, &models.Booking{Day: "2025-06-05"}, 10)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrCapacityExceeded)
	})

	t.Run("DeleteBooking_Error", func(t *testing.T) {
		_, _, err := db.DeleteBooking(ctx, 1)
		assert.Error(t, err)
	})

	t.Run("CreateSubscription_Error", func(t *testing.T) {
		err := db.CreateSubscription(ctx, &models.NotificationSubscription{Email: "a@b.c", Day: "2025-06-05"})
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrDuplicateSubscription)
	})

	t.Run("ListSubscriptions_Error", func(t *testing.T) {
		_, err := db.ListSubscriptions(ctx, "2025-06-05")
		assert.Error(t, err)
	})

	t.Run("GetOverride_Error", func(t *testing.T) {
		_, err := db.GetOverride(ctx, "2025-06-05")
		assert.Error(t, err)
	})

	t.Run("GetAdmin_Error", func(t *testing.T) {
		_, err := db.GetAdminByFirstName(ctx, "Claire")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrAdminNotFound)
	})
}
