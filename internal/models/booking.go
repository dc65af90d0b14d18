package models

import (
	"strings"
	"time"
)

// Photo is a single uploaded image attached to a booking.
type Photo struct {
	URL         string `json:"url"`
	StoragePath string `json:"storagePath"`
}

type Booking struct {
	ID           string     `json:"id"`
	Service      string     `json:"service"`
	Date         string     `json:"date"` // 2006-01-02
	Time         string     `json:"time"` // HH:MM
	CustomerName string     `json:"customerName"`
	Phone        string     `json:"phone"`
	Email        string     `json:"email"`
	Notes        string     `json:"notes,omitempty"`
	Photos       []Photo    `json:"photos"`
	Status       string     `json:"status"` // pending, confirmed, completed, cancelled
	AdminMessage string     `json:"adminMessage,omitempty"`
	CancelReason string     `json:"cancelReason,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	ConfirmedAt  *time.Time `json:"confirmedAt,omitempty"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
	CancelledAt  *time.Time `json:"cancelledAt,omitempty"`
}

// AllowedActions derives the operator actions available for the current
// status. Completed and cancelled bookings allow nothing.
func (b *Booking) AllowedActions() []string {
	switch b.Status {
	case StatusPending:
		return []string{ActionConfirm, ActionCancel}
	case StatusConfirmed:
		return []string{ActionComplete, ActionCancel}
	default:
		return nil
	}
}

// StorageKey namespaces photo uploads by the booked slot, e.g.
// "2025-03-14_10-00".
func StorageKey(date, slot string) string {
	return date + "_" + strings.ReplaceAll(slot, ":", "-")
}

// PhotoUpload carries one file from the intake form to the object store.
type PhotoUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// BookingRequest is the intake form submission.
type BookingRequest struct {
	Service      string
	Date         string
	Time         string
	CustomerName string
	Phone        string
	Email        string
	Notes        string
	Photos       []PhotoUpload
}
