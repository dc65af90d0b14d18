package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"carwash/internal/config"
	"carwash/internal/database"
	"carwash/internal/domain"
	"carwash/internal/events"
	"carwash/internal/mail"
	"carwash/internal/metrics"
	"carwash/internal/models"
	"carwash/internal/storage"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type BookingService struct {
	repo     domain.BookingRepository
	outbox   domain.MailOutbox
	store    domain.ObjectStore
	eventBus domain.EventPublisher
	mail     *mail.Builder
	cfg      config.BookingConfig
	services []string
	logger   *zerolog.Logger
}

func NewBookingService(
	repo domain.BookingRepository,
	outbox domain.MailOutbox,
	store domain.ObjectStore,
	eventBus domain.EventPublisher,
	builder *mail.Builder,
	cfg config.BookingConfig,
	services []string,
	logger *zerolog.Logger,
) *BookingService {
	if cfg.OpenHour == 0 && cfg.CloseHour == 0 {
		cfg.OpenHour = models.DefaultOpenHour
		cfg.CloseHour = models.DefaultCloseHour
	}
	if cfg.SlotMinutes <= 0 {
		cfg.SlotMinutes = models.DefaultSlotMinutes
	}
	return &BookingService{
		repo:     repo,
		outbox:   outbox,
		store:    store,
		eventBus: eventBus,
		mail:     builder,
		cfg:      cfg,
		services: services,
		logger:   logger,
	}
}

// Services returns the offered service catalog.
func (s *BookingService) Services() []string {
	out := make([]string, len(s.services))
	copy(out, s.services)
	return out
}

// Slots lists the bookable times from opening to closing hour (exclusive),
// zero-padded HH:MM, recomputed on every call.
func (s *BookingService) Slots() []string {
	var slots []string
	for hour := s.cfg.OpenHour; hour < s.cfg.CloseHour; hour++ {
		for m := 0; m < 60; m += s.cfg.SlotMinutes {
			slots = append(slots, fmt.Sprintf("%02d:%02d", hour, m))
		}
	}
	return slots
}

// SubmitBooking validates the intake form, uploads photos, creates the
// booking and queues the two notification emails. Validation and upload
// failures abort before anything is written. A mail-queue failure after the
// booking INSERT is surfaced to the caller while the booking stays; there is
// no transaction spanning both tables and the object store.
func (s *BookingService) SubmitBooking(ctx context.Context, req *models.BookingRequest) (*models.Booking, error) {
	email := strings.TrimSpace(req.Email)
	if !emailPattern.MatchString(email) {
		return nil, database.ErrInvalidEmail
	}
	if err := s.validateSlot(req); err != nil {
		return nil, err
	}

	bookingKey := models.StorageKey(req.Date, req.Time)
	photos := make([]models.Photo, 0, len(req.Photos))
	for _, up := range req.Photos {
		path := storage.ObjectPath(bookingKey, up.Filename, time.Now())
		url, err := s.store.Upload(ctx, path, up.Data, up.ContentType)
		if err != nil {
			return nil, fmt.Errorf("failed to upload photo %s: %w", up.Filename, err)
		}
		photos = append(photos, models.Photo{URL: url, StoragePath: path})
	}

	booking := &models.Booking{
		ID:           uuid.NewString(),
		Service:      req.Service,
		Date:         req.Date,
		Time:         req.Time,
		CustomerName: strings.TrimSpace(req.CustomerName),
		Phone:        strings.TrimSpace(req.Phone),
		Email:        email,
		Notes:        strings.TrimSpace(req.Notes),
		Photos:       photos,
		Status:       models.StatusPending,
		CreatedAt:    time.Now(),
	}

	if err := s.repo.CreateBooking(ctx, booking); err != nil {
		return nil, err
	}
	metrics.IncBookingCreated()

	receipt, err := s.mail.CustomerReceipt(booking)
	if err != nil {
		return nil, err
	}
	if err := s.enqueueMail(ctx, booking, models.MailKindCustomer, booking.Email, receipt); err != nil {
		return nil, err
	}

	notice, err := s.mail.BusinessNotice(booking)
	if err != nil {
		return nil, err
	}
	if err := s.enqueueMail(ctx, booking, models.MailKindAdmin, s.cfg.BusinessEmail, notice); err != nil {
		return nil, err
	}

	s.publishEvent(events.EventBookingCreated, booking, "customer")
	return booking, nil
}

// ConfirmBooking moves a pending booking to confirmed and queues the
// confirmation email. A booking without a customer email cannot be
// confirmed; its status is left untouched.
func (s *BookingService) ConfirmBooking(ctx context.Context, id, message string) error {
	booking, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return err
	}
	if strings.TrimSpace(booking.Email) == "" {
		return database.ErrNoCustomerEmail
	}

	message = strings.TrimSpace(message)
	now := time.Now()
	if err := s.repo.ConfirmBooking(ctx, id, message, now); err != nil {
		return err
	}
	metrics.IncTransition(models.StatusConfirmed)

	booking.Status = models.StatusConfirmed
	booking.AdminMessage = message
	booking.ConfirmedAt = &now

	confirmation, err := s.mail.Confirmation(booking)
	if err != nil {
		return err
	}
	if err := s.enqueueMail(ctx, booking, models.MailKindConfirmed, booking.Email, confirmation); err != nil {
		return err
	}

	s.publishEvent(events.EventBookingConfirmed, booking, "operator")
	return nil
}

// CompleteBooking moves a confirmed booking to completed. No email is sent.
func (s *BookingService) CompleteBooking(ctx context.Context, id string) error {
	if err := s.repo.CompleteBooking(ctx, id, time.Now()); err != nil {
		return err
	}
	metrics.IncTransition(models.StatusCompleted)

	booking, err := s.repo.GetBooking(ctx, id)
	if err == nil {
		s.publishEvent(events.EventBookingCompleted, booking, "operator")
	}
	return nil
}

// CancelBooking cancels a pending or confirmed booking, storing the
// optional reason. No email is sent.
func (s *BookingService) CancelBooking(ctx context.Context, id, reason string) error {
	if err := s.repo.CancelBooking(ctx, id, strings.TrimSpace(reason), time.Now()); err != nil {
		return err
	}
	metrics.IncTransition(models.StatusCancelled)

	booking, err := s.repo.GetBooking(ctx, id)
	if err == nil {
		s.publishEvent(events.EventBookingCancelled, booking, "operator")
	}
	return nil
}

func (s *BookingService) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	return s.repo.GetBooking(ctx, id)
}

func (s *BookingService) ListBookings(ctx context.Context) ([]*models.Booking, error) {
	return s.repo.ListBookings(ctx)
}

func (s *BookingService) validateSlot(req *models.BookingRequest) error {
	found := false
	for _, svc := range s.services {
		if svc == req.Service {
			found = true
			break
		}
	}
	if !found {
		return database.ErrUnknownService
	}

	if _, err := time.Parse("2006-01-02", req.Date); err != nil {
		return database.ErrInvalidDate
	}

	for _, slot := range s.Slots() {
		if slot == req.Time {
			return nil
		}
	}
	return database.ErrInvalidSlot
}

func (s *BookingService) enqueueMail(ctx context.Context, booking *models.Booking, kind, to string, msg models.MailMessage) error {
	req := &models.MailRequest{
		Key:       models.MailKey(booking.ID, kind),
		BookingID: booking.ID,
		Kind:      kind,
		To:        to,
		Message:   msg,
	}
	if err := s.outbox.EnqueueMail(ctx, req); err != nil {
		return fmt.Errorf("failed to queue %s mail: %w", kind, err)
	}
	metrics.IncMailEnqueued(kind)
	return nil
}

func (s *BookingService) publishEvent(eventType string, booking *models.Booking, changedBy string) {
	if s.eventBus == nil {
		return
	}

	payload := events.BookingEventPayload{
		BookingID:    booking.ID,
		Service:      booking.Service,
		Date:         booking.Date,
		Time:         booking.Time,
		CustomerName: booking.CustomerName,
		Status:       booking.Status,
		ChangedBy:    changedBy,
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("booking_id", booking.ID).Msg("publish event error")
	}
}
