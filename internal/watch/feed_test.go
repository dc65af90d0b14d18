package watch

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"carwash/internal/events"
	"carwash/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRepo struct {
	mu       sync.Mutex
	bookings []*models.Booking
	err      error
}

func (r *stubRepo) set(bookings []*models.Booking) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bookings = bookings
}

func (r *stubRepo) ListBookings(ctx context.Context) ([]*models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return r.bookings, nil
}

func (r *stubRepo) CreateBooking(ctx context.Context, b *models.Booking) error { return nil }
func (r *stubRepo) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	return nil, nil
}
func (r *stubRepo) ConfirmBooking(ctx context.Context, id, msg string, at time.Time) error {
	return nil
}
func (r *stubRepo) CompleteBooking(ctx context.Context, id string, at time.Time) error { return nil }
func (r *stubRepo) CancelBooking(ctx context.Context, id, reason string, at time.Time) error {
	return nil
}

func newTestFeed(repo *stubRepo) (*BookingFeed, *events.EventBus) {
	bus := events.NewEventBus()
	logger := zerolog.New(io.Discard)
	return NewBookingFeed(repo, bus, &logger), bus
}

func TestSubscribeDeliversInitialSnapshot(t *testing.T) {
	repo := &stubRepo{bookings: []*models.Booking{{ID: "b1"}}}
	feed, _ := newTestFeed(repo)

	ch, cancel, err := feed.Subscribe(context.Background())
	require.NoError(t, err)
	defer cancel()

	select {
	case snapshot := <-ch:
		require.Len(t, snapshot, 1)
		assert.Equal(t, "b1", snapshot[0].ID)
	case <-time.After(time.Second):
		t.Fatal("no initial snapshot")
	}
}

func TestEventTriggersFreshSnapshot(t *testing.T) {
	repo := &stubRepo{bookings: []*models.Booking{{ID: "b1"}}}
	feed, bus := newTestFeed(repo)

	ch, cancel, err := feed.Subscribe(context.Background())
	require.NoError(t, err)
	defer cancel()
	<-ch // drain initial snapshot

	repo.set([]*models.Booking{{ID: "b2"}, {ID: "b1"}})
	require.NoError(t, bus.PublishJSON(events.EventBookingCreated,
		events.BookingEventPayload{BookingID: "b2", Status: models.StatusPending}))

	select {
	case snapshot := <-ch:
		require.Len(t, snapshot, 2)
		assert.Equal(t, "b2", snapshot[0].ID)
	case <-time.After(time.Second):
		t.Fatal("no snapshot after event")
	}
}

func TestStaleSnapshotIsReplaced(t *testing.T) {
	repo := &stubRepo{}
	feed, bus := newTestFeed(repo)

	ch, cancel, err := feed.Subscribe(context.Background())
	require.NoError(t, err)
	defer cancel()
	<-ch

	// Two mutations before the consumer reads: only the latest list matters.
	repo.set([]*models.Booking{{ID: "b1"}})
	require.NoError(t, bus.PublishJSON(events.EventBookingCreated, events.BookingEventPayload{BookingID: "b1"}))
	repo.set([]*models.Booking{{ID: "b1", Status: models.StatusConfirmed}})
	require.NoError(t, bus.PublishJSON(events.EventBookingConfirmed, events.BookingEventPayload{BookingID: "b1"}))

	snapshot := <-ch
	require.Len(t, snapshot, 1)
	assert.Equal(t, models.StatusConfirmed, snapshot[0].Status)
}

func TestCancelStopsDelivery(t *testing.T) {
	repo := &stubRepo{}
	feed, bus := newTestFeed(repo)

	ch, cancel, err := feed.Subscribe(context.Background())
	require.NoError(t, err)
	<-ch

	cancel()
	cancel() // second call is a no-op

	require.NoError(t, bus.PublishJSON(events.EventBookingCreated, events.BookingEventPayload{BookingID: "b1"}))

	_, open := <-ch
	assert.False(t, open)
}

func TestSubscribeListError(t *testing.T) {
	repo := &stubRepo{err: errors.New("db closed")}
	feed, _ := newTestFeed(repo)

	_, _, err := feed.Subscribe(context.Background())
	assert.Error(t, err)
}
