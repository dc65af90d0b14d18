package database

import (
	"context"
	"testing"
	"time"

	"carwash/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMail(bookingID, kind string) *models.MailRequest {
	return &models.MailRequest{
		BookingID: bookingID,
		Kind:      kind,
		To:        "jane@example.com",
		Message: models.MailMessage{
			Subject: "Booking received",
			HTML:    "<p>Hi</p>",
		},
	}
}

func TestEnqueueMail(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	req := newTestMail("b1", models.MailKindCustomer)
	require.NoError(t, db.EnqueueMail(ctx, req))
	assert.Equal(t, "b1_customer", req.Key)
	assert.Equal(t, models.MailStatusQueued, req.Status)

	got, err := db.GetMailRequest(ctx, "b1_customer")
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", got.To)
	assert.Equal(t, "Booking received", got.Message.Subject)
	assert.Equal(t, 0, got.Attempts)
}

func TestEnqueueMailOverwritesByKey(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.EnqueueMail(ctx, newTestMail("b1", models.MailKindConfirmed)))

	updated := newTestMail("b1", models.MailKindConfirmed)
	updated.Message.Subject = "Your service is confirmed"
	require.NoError(t, db.EnqueueMail(ctx, updated))

	queued, err := db.GetQueuedMail(ctx, 10)
	require.NoError(t, err)
	require.Len(t, queued, 1)
	assert.Equal(t, "Your service is confirmed", queued[0].Message.Subject)
}

func TestGetQueuedMailSkipsDispatchedAndFuture(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.EnqueueMail(ctx, newTestMail("b1", models.MailKindCustomer)))
	require.NoError(t, db.EnqueueMail(ctx, newTestMail("b2", models.MailKindCustomer)))
	require.NoError(t, db.EnqueueMail(ctx, newTestMail("b3", models.MailKindCustomer)))

	require.NoError(t, db.MarkMailDispatched(ctx, "b1_customer"))
	require.NoError(t, db.MarkMailRetry(ctx, "b2_customer", "connection refused", time.Now().Add(time.Hour)))

	queued, err := db.GetQueuedMail(ctx, 10)
	require.NoError(t, err)
	require.Len(t, queued, 1)
	assert.Equal(t, "b3_customer", queued[0].Key)
}

func TestMarkMailRetryBecomesDueAgain(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.EnqueueMail(ctx, newTestMail("b1", models.MailKindCustomer)))
	require.NoError(t, db.MarkMailRetry(ctx, "b1_customer", "timeout", time.Now().Add(-time.Second)))

	queued, err := db.GetQueuedMail(ctx, 10)
	require.NoError(t, err)
	require.Len(t, queued, 1)
	assert.Equal(t, models.MailStatusRetry, queued[0].Status)
	assert.Equal(t, 1, queued[0].Attempts)
	assert.Equal(t, "timeout", queued[0].LastError)
}

func TestMarkMailFailed(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.EnqueueMail(ctx, newTestMail("b1", models.MailKindAdmin)))
	require.NoError(t, db.MarkMailFailed(ctx, "b1_admin", "mailbox rejected"))

	got, err := db.GetMailRequest(ctx, "b1_admin")
	require.NoError(t, err)
	assert.Equal(t, models.MailStatusFailed, got.Status)
	assert.Equal(t, "mailbox rejected", got.LastError)

	queued, err := db.GetQueuedMail(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, queued)
}

func TestCountMailForBooking(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.EnqueueMail(ctx, newTestMail("b1", models.MailKindCustomer)))
	require.NoError(t, db.EnqueueMail(ctx, newTestMail("b1", models.MailKindAdmin)))
	require.NoError(t, db.EnqueueMail(ctx, newTestMail("b2", models.MailKindCustomer)))

	count, err := db.CountMailForBooking(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
