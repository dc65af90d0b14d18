package watch

import (
	"context"
	"sync"
	"time"

	"carwash/internal/domain"
	"carwash/internal/events"
	"carwash/internal/models"

	"github.com/rs/zerolog"
)

const snapshotTimeout = 10 * time.Second

// BookingFeed turns booking events into full-list snapshots for the admin
// dashboard. There is no diffing: every mutation re-reads the whole list,
// newest first, and pushes it to every subscriber. Each subscriber channel
// is buffered with capacity one and a stale snapshot is dropped in favor of
// the newer one, so a slow consumer only ever misses intermediate states.
type BookingFeed struct {
	repo   domain.BookingRepository
	logger *zerolog.Logger

	mu     sync.Mutex
	subs   map[int64]chan []*models.Booking
	nextID int64
}

func NewBookingFeed(repo domain.BookingRepository, bus *events.EventBus, logger *zerolog.Logger) *BookingFeed {
	f := &BookingFeed{
		repo:   repo,
		logger: logger,
		subs:   make(map[int64]chan []*models.Booking),
	}

	for _, eventType := range []string{
		events.EventBookingCreated,
		events.EventBookingConfirmed,
		events.EventBookingCompleted,
		events.EventBookingCancelled,
	} {
		bus.Subscribe(eventType, f.onEvent)
	}
	return f
}

// Subscribe registers a consumer. The channel carries the current snapshot
// immediately, then a fresh one after every booking change. The returned
// cancel func unregisters and closes the channel; it is safe to call twice.
func (f *BookingFeed) Subscribe(ctx context.Context) (<-chan []*models.Booking, func(), error) {
	snapshot, err := f.repo.ListBookings(ctx)
	if err != nil {
		return nil, nil, err
	}

	ch := make(chan []*models.Booking, 1)
	ch <- snapshot

	f.mu.Lock()
	f.nextID++
	id := f.nextID
	f.subs[id] = ch
	f.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel, nil
}

func (f *BookingFeed) onEvent(*events.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()

	snapshot, err := f.repo.ListBookings(ctx)
	if err != nil {
		f.logger.Error().Err(err).Msg("booking feed: list bookings")
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		// Replace a pending stale snapshot instead of blocking.
		select {
		case ch <- snapshot:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snapshot:
			default:
			}
		}
	}
	return nil
}
