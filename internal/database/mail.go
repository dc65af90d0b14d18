package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"carwash/internal/models"
)

// EnqueueMail writes one mail request. The key is deterministic per
// booking and kind, so retrying a failed action overwrites the record
// instead of queueing a duplicate email.
func (db *DB) EnqueueMail(ctx context.Context, req *models.MailRequest) error {
	if req.Key == "" {
		req.Key = models.MailKey(req.BookingID, req.Kind)
	}
	if req.Status == "" {
		req.Status = models.MailStatusQueued
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}

	query := `INSERT OR REPLACE INTO mail_outbox
	            (key, booking_id, kind, to_addr, subject, html, status, attempts, last_error, created_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, 0, '', ?)`
	_, err := db.ExecContext(ctx, query,
		req.Key,
		req.BookingID,
		req.Kind,
		req.To,
		req.Message.Subject,
		req.Message.HTML,
		req.Status,
		req.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue mail %s: %w", req.Key, err)
	}
	return nil
}

const mailColumns = `key, booking_id, kind, to_addr, subject, html, status,
	             attempts, last_error, created_at, dispatched_at, next_retry_at`

func (db *DB) GetMailRequest(ctx context.Context, key string) (*models.MailRequest, error) {
	query := `SELECT ` + mailColumns + ` FROM mail_outbox WHERE key = ?`
	req, err := scanMailRequest(db.QueryRowContext(ctx, query, key))
	if err != nil {
		return nil, fmt.Errorf("failed to get mail request %s: %w", key, err)
	}
	return req, nil
}

// GetQueuedMail returns mail requests ready for dispatch, oldest first.
func (db *DB) GetQueuedMail(ctx context.Context, limit int) ([]*models.MailRequest, error) {
	query := `SELECT ` + mailColumns + ` FROM mail_outbox
	          WHERE status IN (?, ?) AND (next_retry_at IS NULL OR next_retry_at <= ?)
	          ORDER BY created_at ASC LIMIT ?`
	rows, err := db.QueryContext(ctx, query, models.MailStatusQueued, models.MailStatusRetry, time.Now(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get queued mail: %w", err)
	}
	defer rows.Close()

	var reqs []*models.MailRequest
	for rows.Next() {
		req, err := scanMailRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mail request: %w", err)
		}
		reqs = append(reqs, req)
	}
	return reqs, rows.Err()
}

func (db *DB) MarkMailDispatched(ctx context.Context, key string) error {
	query := `UPDATE mail_outbox SET status = ?, dispatched_at = ?, next_retry_at = NULL WHERE key = ?`
	_, err := db.ExecContext(ctx, query, models.MailStatusDispatched, time.Now(), key)
	if err != nil {
		return fmt.Errorf("failed to mark mail dispatched: %w", err)
	}
	return nil
}

func (db *DB) MarkMailRetry(ctx context.Context, key, lastError string, nextRetryAt time.Time) error {
	query := `UPDATE mail_outbox SET status = ?, last_error = ?, next_retry_at = ?, attempts = attempts + 1 WHERE key = ?`
	_, err := db.ExecContext(ctx, query, models.MailStatusRetry, lastError, nextRetryAt, key)
	if err != nil {
		return fmt.Errorf("failed to mark mail for retry: %w", err)
	}
	return nil
}

func (db *DB) MarkMailFailed(ctx context.Context, key, lastError string) error {
	query := `UPDATE mail_outbox SET status = ?, last_error = ?, next_retry_at = NULL, attempts = attempts + 1 WHERE key = ?`
	_, err := db.ExecContext(ctx, query, models.MailStatusFailed, lastError, key)
	if err != nil {
		return fmt.Errorf("failed to mark mail failed: %w", err)
	}
	return nil
}

// CountMailForBooking reports how many mail requests exist for a booking.
func (db *DB) CountMailForBooking(ctx context.Context, bookingID string) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM mail_outbox WHERE booking_id = ?`, bookingID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count mail for booking: %w", err)
	}
	return count, nil
}

func scanMailRequest(row rowScanner) (*models.MailRequest, error) {
	var (
		req          models.MailRequest
		lastError    sql.NullString
		dispatchedAt sql.NullTime
		nextRetryAt  sql.NullTime
	)
	err := row.Scan(
		&req.Key, &req.BookingID, &req.Kind, &req.To, &req.Message.Subject, &req.Message.HTML,
		&req.Status, &req.Attempts, &lastError, &req.CreatedAt, &dispatchedAt, &nextRetryAt,
	)
	if err != nil {
		return nil, err
	}
	req.LastError = lastError.String
	if dispatchedAt.Valid {
		req.DispatchedAt = &dispatchedAt.Time
	}
	if nextRetryAt.Valid {
		req.NextRetryAt = &nextRetryAt.Time
	}
	return &req, nil
}
