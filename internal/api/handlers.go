package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"carwash/internal/database"
	"carwash/internal/export"
	"carwash/internal/models"
	"carwash/internal/service"
)

const (
	maxUploadBytes = 32 << 20
	maxPhotos      = 5
)

// bookingView is the API shape of a booking, with the actions the operator
// may take next derived server side.
type bookingView struct {
	*models.Booking
	Actions []string `json:"actions"`
}

func newBookingView(b *models.Booking) bookingView {
	actions := b.AllowedActions()
	if actions == nil {
		actions = []string{}
	}
	return bookingView{Booking: b, Actions: actions}
}

func (s *HTTPServer) handleSubmitBooking(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	req, err := parseBookingForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	booking, err := s.booking.SubmitBooking(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, newBookingView(booking))
}

func parseBookingForm(r *http.Request) (*models.BookingRequest, error) {
	contentType := r.Header.Get("Content-Type")

	req := &models.BookingRequest{}
	if strings.HasPrefix(contentType, "application/json") {
		var body struct {
			Service string `json:"service"`
			Date    string `json:"date"`
			Time    string `json:"time"`
			Name    string `json:"name"`
			Phone   string `json:"phone"`
			Email   string `json:"email"`
			Notes   string `json:"notes"`
		}
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&body); err != nil {
			return nil, fmt.Errorf("invalid JSON body")
		}
		req.Service = body.Service
		req.Date = body.Date
		req.Time = body.Time
		req.CustomerName = body.Name
		req.Phone = body.Phone
		req.Email = body.Email
		req.Notes = body.Notes
		return req, nil
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, fmt.Errorf("invalid multipart form")
	}

	req.Service = r.FormValue("service")
	req.Date = r.FormValue("date")
	req.Time = r.FormValue("time")
	req.CustomerName = r.FormValue("name")
	req.Phone = r.FormValue("phone")
	req.Email = r.FormValue("email")
	req.Notes = r.FormValue("notes")

	if r.MultipartForm != nil {
		files := r.MultipartForm.File["photos"]
		if len(files) > maxPhotos {
			return nil, fmt.Errorf("too many photos; at most %d allowed", maxPhotos)
		}
		for _, fh := range files {
			f, err := fh.Open()
			if err != nil {
				return nil, fmt.Errorf("failed to read photo %s", fh.Filename)
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				return nil, fmt.Errorf("failed to read photo %s", fh.Filename)
			}
			req.Photos = append(req.Photos, models.PhotoUpload{
				Filename:    fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Data:        data,
			})
		}
	}
	return req, nil
}

func (s *HTTPServer) handleServices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": s.booking.Services()})
}

func (s *HTTPServer) handleSlots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"slots": s.booking.Slots()})
}

func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	bookings, err := s.booking.ListBookings(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	views := make([]bookingView, 0, len(bookings))
	for _, b := range bookings {
		views = append(views, newBookingView(b))
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": views})
}

// handleAdminBookings dispatches the subtree under /api/v1/admin/bookings/:
// the watch stream, the export download and the per-booking actions.
func (s *HTTPServer) handleAdminBookings(w http.ResponseWriter, r *http.Request) {
	const prefix = "/api/v1/admin/bookings/"
	rest := strings.TrimPrefix(r.URL.Path, prefix)

	switch rest {
	case "watch":
		s.handleWatch(w, r)
		return
	case "export":
		s.handleExport(w, r)
		return
	}

	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	s.handleBookingAction(w, r, parts[0], parts[1])
}

func (s *HTTPServer) handleBookingAction(w http.ResponseWriter, r *http.Request, id, action string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body struct {
		Message string `json:"message"`
		Reason  string `json:"reason"`
	}
	if r.Body != nil {
		// The body is optional for all three actions.
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	ttl := time.Duration(models.DefaultActionLockTTL) * time.Second
	acquired, err := s.locks.AcquireActionLock(r.Context(), id, ttl)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if !acquired {
		writeError(w, http.StatusConflict, "another action for this booking is in progress")
		return
	}
	defer func() {
		// The request context may already be cancelled by a client
		// disconnect; the lock still has to go.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.locks.ReleaseActionLock(releaseCtx, id)
	}()

	switch action {
	case models.ActionConfirm:
		err = s.booking.ConfirmBooking(r.Context(), id, body.Message)
	case models.ActionComplete:
		err = s.booking.CompleteBooking(r.Context(), id)
	case models.ActionCancel:
		err = s.booking.CancelBooking(r.Context(), id, body.Reason)
	default:
		writeError(w, http.StatusNotFound, "unknown action")
		return
	}
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	booking, err := s.booking.GetBooking(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newBookingView(booking))
}

// handleWatch streams booking snapshots over SSE: one full list right away,
// then a fresh one after every mutation.
func (s *HTTPServer) handleWatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	snapshots, cancel, err := s.feed.Subscribe(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case bookings, open := <-snapshots:
			if !open {
				return
			}
			views := make([]bookingView, 0, len(bookings))
			for _, b := range bookings {
				views = append(views, newBookingView(b))
			}
			data, err := json.Marshal(map[string]any{"bookings": views})
			if err != nil {
				s.logger.Error().Err(err).Msg("failed to marshal booking snapshot")
				continue
			}
			fmt.Fprintf(w, "event: bookings\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	from := strings.TrimSpace(r.URL.Query().Get("from"))
	to := strings.TrimSpace(r.URL.Query().Get("to"))
	for _, d := range []string{from, to} {
		if d == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", d); err != nil {
			writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
			return
		}
	}

	bookings, err := s.booking.ListBookings(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	bookings = filterByDateRange(bookings, from, to)

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(time.Now())))
	if err := export.WriteBookings(w, bookings); err != nil {
		s.logger.Error().Err(err).Msg("failed to write export")
	}
}

// filterByDateRange keeps bookings whose date falls inside [from, to].
// ISO dates compare lexically, so plain string comparison is enough.
func filterByDateRange(bookings []*models.Booking, from, to string) []*models.Booking {
	if from == "" && to == "" {
		return bookings
	}
	out := make([]*models.Booking, 0, len(bookings))
	for _, b := range bookings {
		if from != "" && b.Date < from {
			continue
		}
		if to != "" && b.Date > to {
			continue
		}
		out = append(out, b)
	}
	return out
}

func (s *HTTPServer) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrInvalidEmail),
		errors.Is(err, database.ErrInvalidDate),
		errors.Is(err, database.ErrInvalidSlot),
		errors.Is(err, database.ErrUnknownService):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, database.ErrBookingNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, database.ErrNoCustomerEmail):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, database.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrNotAuthorized):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrTooManyAttempts):
		writeError(w, http.StatusTooManyRequests, err.Error())
	default:
		s.logger.Error().Err(err).Msg("internal error")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
