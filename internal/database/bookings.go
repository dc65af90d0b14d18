package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"carwash/internal/models"
)

func (db *DB) CreateBooking(ctx context.Context, booking *models.Booking) error {
	photos, err := json.Marshal(booking.Photos)
	if err != nil {
		return fmt.Errorf("failed to marshal photos: %w", err)
	}

	query := `INSERT INTO bookings (
				id, service, date, time, customer_name, phone, email,
				notes, photos, status, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = time.Now()
	}
	_, err = db.ExecContext(ctx, query,
		booking.ID,
		booking.Service,
		booking.Date,
		booking.Time,
		booking.CustomerName,
		booking.Phone,
		booking.Email,
		booking.Notes,
		string(photos),
		booking.Status,
		booking.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

const bookingColumns = `id, service, date, time, customer_name, phone, email,
                 notes, photos, status, admin_message, cancel_reason,
                 created_at, confirmed_at, completed_at, cancelled_at`

func (db *DB) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	booking, err := scanBooking(db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return booking, nil
}

// ListBookings returns all bookings, newest first. The admin feed rebuilds
// its whole view from this snapshot on every change.
func (db *DB) ListBookings(ctx context.Context) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings ORDER BY created_at DESC`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// ConfirmBooking transitions pending -> confirmed, storing the operator
// message and stamping confirmed_at. The WHERE guard keeps the transition
// monotonic even when two operators race on a stale snapshot.
func (db *DB) ConfirmBooking(ctx context.Context, id, adminMessage string, at time.Time) error {
	query := `UPDATE bookings SET status = ?, admin_message = ?, confirmed_at = ?
	          WHERE id = ? AND status = ?`
	result, err := db.ExecContext(ctx, query, models.StatusConfirmed, adminMessage, at, id, models.StatusPending)
	if err != nil {
		return fmt.Errorf("failed to confirm booking: %w", err)
	}
	return db.checkTransition(ctx, result, id)
}

// CompleteBooking transitions confirmed -> completed.
func (db *DB) CompleteBooking(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE bookings SET status = ?, completed_at = ?
	          WHERE id = ? AND status = ?`
	result, err := db.ExecContext(ctx, query, models.StatusCompleted, at, id, models.StatusConfirmed)
	if err != nil {
		return fmt.Errorf("failed to complete booking: %w", err)
	}
	return db.checkTransition(ctx, result, id)
}

// CancelBooking transitions pending or confirmed -> cancelled.
func (db *DB) CancelBooking(ctx context.Context, id, reason string, at time.Time) error {
	query := `UPDATE bookings SET status = ?, cancel_reason = ?, cancelled_at = ?
	          WHERE id = ? AND status IN (?, ?)`
	result, err := db.ExecContext(ctx, query, models.StatusCancelled, reason, at, id,
		models.StatusPending, models.StatusConfirmed)
	if err != nil {
		return fmt.Errorf("failed to cancel booking: %w", err)
	}
	return db.checkTransition(ctx, result, id)
}

// checkTransition distinguishes a missing booking from a status guard miss
// when a guarded UPDATE touched no rows.
func (db *DB) checkTransition(ctx context.Context, result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows > 0 {
		return nil
	}
	if _, err := db.GetBooking(ctx, id); err != nil {
		return err
	}
	return ErrInvalidTransition
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var (
		b            models.Booking
		customerName sql.NullString
		phone        sql.NullString
		notes        sql.NullString
		photos       string
		adminMessage sql.NullString
		cancelReason sql.NullString
		confirmedAt  sql.NullTime
		completedAt  sql.NullTime
		cancelledAt  sql.NullTime
	)

	err := row.Scan(
		&b.ID, &b.Service, &b.Date, &b.Time, &customerName, &phone, &b.Email,
		&notes, &photos, &b.Status, &adminMessage, &cancelReason,
		&b.CreatedAt, &confirmedAt, &completedAt, &cancelledAt,
	)
	if err != nil {
		return nil, err
	}

	b.CustomerName = customerName.String
	b.Phone = phone.String
	b.Notes = notes.String
	b.AdminMessage = adminMessage.String
	b.CancelReason = cancelReason.String
	if confirmedAt.Valid {
		b.ConfirmedAt = &confirmedAt.Time
	}
	if completedAt.Valid {
		b.CompletedAt = &completedAt.Time
	}
	if cancelledAt.Valid {
		b.CancelledAt = &cancelledAt.Time
	}

	if err := json.Unmarshal([]byte(photos), &b.Photos); err != nil {
		return nil, fmt.Errorf("failed to unmarshal photos for booking %s: %w", b.ID, err)
	}
	if b.Photos == nil {
		b.Photos = []models.Photo{}
	}
	return &b, nil
}
