package domain

import (
	"context"
	"time"

	"carwash/internal/models"
)

type BookingRepository interface {
	CreateBooking(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	ListBookings(ctx context.Context) ([]*models.Booking, error)
	ConfirmBooking(ctx context.Context, id, adminMessage string, at time.Time) error
	CompleteBooking(ctx context.Context, id string, at time.Time) error
	CancelBooking(ctx context.Context, id, reason string, at time.Time) error
}

// MailOutbox holds mail requests until the dispatch worker hands them off.
type MailOutbox interface {
	EnqueueMail(ctx context.Context, req *models.MailRequest) error
	GetMailRequest(ctx context.Context, key string) (*models.MailRequest, error)
	GetQueuedMail(ctx context.Context, limit int) ([]*models.MailRequest, error)
	MarkMailDispatched(ctx context.Context, key string) error
	MarkMailRetry(ctx context.Context, key, lastError string, nextRetryAt time.Time) error
	MarkMailFailed(ctx context.Context, key, lastError string) error
}

// ObjectStore uploads binary content and returns a retrievable URL.
type ObjectStore interface {
	Upload(ctx context.Context, path string, content []byte, contentType string) (string, error)
}

// LockRepository provides short-lived per-booking action locks and simple
// counters for login throttling.
type LockRepository interface {
	AcquireActionLock(ctx context.Context, bookingID string, ttl time.Duration) (bool, error)
	ReleaseActionLock(ctx context.Context, bookingID string) error
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// BookingFeed produces full booking snapshots: one on subscribe, then one
// after every mutation, until the returned cancel func is called.
type BookingFeed interface {
	Subscribe(ctx context.Context) (<-chan []*models.Booking, func(), error)
}

type BookingService interface {
	Services() []string
	Slots() []string
	SubmitBooking(ctx context.Context, req *models.BookingRequest) (*models.Booking, error)
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	ListBookings(ctx context.Context) ([]*models.Booking, error)
	ConfirmBooking(ctx context.Context, id, message string) error
	CompleteBooking(ctx context.Context, id string) error
	CancelBooking(ctx context.Context, id, reason string) error
}

type AuthService interface {
	Login(ctx context.Context, email, password string) (string, error)
	VerifyToken(token string) (string, error)
	IsAdmin(email string) bool
}
