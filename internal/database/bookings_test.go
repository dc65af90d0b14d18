package database

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"carwash/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	logger := zerolog.New(io.Discard)
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestBooking(id string) *models.Booking {
	return &models.Booking{
		ID:           id,
		Service:      "Complete Detailing — Cars",
		Date:         "2025-03-14",
		Time:         "10:00",
		CustomerName: "Jane Doe",
		Phone:        "+2348012345678",
		Email:        "jane@example.com",
		Notes:        "Back seat needs attention",
		Photos:       []models.Photo{{URL: "/uploads/a.jpg", StoragePath: "booking_photos/x/a.jpg"}},
		Status:       models.StatusPending,
		CreatedAt:    time.Now(),
	}
}

func TestCreateAndGetBooking(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	booking := newTestBooking("b1")
	require.NoError(t, db.CreateBooking(ctx, booking))

	got, err := db.GetBooking(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, booking.Service, got.Service)
	assert.Equal(t, booking.Email, got.Email)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Len(t, got.Photos, 1)
	assert.Equal(t, "/uploads/a.jpg", got.Photos[0].URL)
	assert.Nil(t, got.ConfirmedAt)
}

func TestGetBookingNotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.GetBooking(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestListBookingsNewestFirst(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"old", "mid", "new"} {
		b := newTestBooking(id)
		b.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, db.CreateBooking(ctx, b))
	}

	bookings, err := db.ListBookings(ctx)
	require.NoError(t, err)
	require.Len(t, bookings, 3)
	assert.Equal(t, "new", bookings[0].ID)
	assert.Equal(t, "mid", bookings[1].ID)
	assert.Equal(t, "old", bookings[2].ID)
}

func TestConfirmBooking(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.CreateBooking(ctx, newTestBooking("b1")))
	require.NoError(t, db.ConfirmBooking(ctx, "b1", "Arrive early", time.Now()))

	got, err := db.GetBooking(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, got.Status)
	assert.Equal(t, "Arrive early", got.AdminMessage)
	require.NotNil(t, got.ConfirmedAt)
}

func TestConfirmBookingGuards(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	// Missing booking
	err := db.ConfirmBooking(ctx, "missing", "", time.Now())
	assert.ErrorIs(t, err, ErrBookingNotFound)

	// Already confirmed
	require.NoError(t, db.CreateBooking(ctx, newTestBooking("b1")))
	require.NoError(t, db.ConfirmBooking(ctx, "b1", "", time.Now()))
	err = db.ConfirmBooking(ctx, "b1", "", time.Now())
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// Cancelled bookings stay cancelled
	require.NoError(t, db.CreateBooking(ctx, newTestBooking("b2")))
	require.NoError(t, db.CancelBooking(ctx, "b2", "", time.Now()))
	err = db.ConfirmBooking(ctx, "b2", "", time.Now())
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

type brokenResult struct{ err error }

func (r brokenResult) LastInsertId() (int64, error) { return 0, r.err }
func (r brokenResult) RowsAffected() (int64, error) { return 0, r.err }

func TestCheckTransitionSurfacesDriverError(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	driverErr := errors.New("driver gave up")
	err := db.checkTransition(ctx, brokenResult{err: driverErr}, "b1")
	require.Error(t, err)
	assert.ErrorIs(t, err, driverErr)
	assert.NotErrorIs(t, err, ErrInvalidTransition)
	assert.NotErrorIs(t, err, ErrBookingNotFound)
}

func TestCompleteBooking(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.CreateBooking(ctx, newTestBooking("b1")))

	// Pending cannot be completed directly
	err := db.CompleteBooking(ctx, "b1", time.Now())
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, db.ConfirmBooking(ctx, "b1", "", time.Now()))
	require.NoError(t, db.CompleteBooking(ctx, "b1", time.Now()))

	got, err := db.GetBooking(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)

	// Completed is terminal
	err = db.CancelBooking(ctx, "b1", "changed my mind", time.Now())
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCancelBooking(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	// From pending
	require.NoError(t, db.CreateBooking(ctx, newTestBooking("b1")))
	require.NoError(t, db.CancelBooking(ctx, "b1", "no show", time.Now()))
	got, err := db.GetBooking(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.Status)
	assert.Equal(t, "no show", got.CancelReason)
	require.NotNil(t, got.CancelledAt)

	// From confirmed
	require.NoError(t, db.CreateBooking(ctx, newTestBooking("b2")))
	require.NoError(t, db.ConfirmBooking(ctx, "b2", "", time.Now()))
	require.NoError(t, db.CancelBooking(ctx, "b2", "", time.Now()))
	got, err = db.GetBooking(ctx, "b2")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.Status)

	// Double cancel
	err = db.CancelBooking(ctx, "b2", "", time.Now())
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestBookingWithoutPhotos(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	b := newTestBooking("b1")
	b.Photos = nil
	require.NoError(t, db.CreateBooking(ctx, b))

	got, err := db.GetBooking(ctx, "b1")
	require.NoError(t, err)
	assert.NotNil(t, got.Photos)
	assert.Empty(t, got.Photos)
}
