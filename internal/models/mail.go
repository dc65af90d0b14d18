package models

import "time"

// MailMessage is the rendered subject/body pair handed to the dispatcher.
type MailMessage struct {
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// MailRequest is one outbound email instruction. It is keyed
// "{bookingID}_{kind}" so re-submitting the same intent overwrites rather
// than duplicates. The service only ever writes these; the dispatch worker
// owns them afterwards.
type MailRequest struct {
	Key          string      `json:"key"`
	BookingID    string      `json:"bookingId"`
	Kind         string      `json:"kind"` // customer, admin, confirmed
	To           string      `json:"to"`
	Message      MailMessage `json:"message"`
	Status       string      `json:"status"`
	Attempts     int         `json:"attempts"`
	LastError    string      `json:"lastError,omitempty"`
	CreatedAt    time.Time   `json:"createdAt"`
	DispatchedAt *time.Time  `json:"dispatchedAt,omitempty"`
	NextRetryAt  *time.Time  `json:"nextRetryAt,omitempty"`
}

func MailKey(bookingID, kind string) string {
	return bookingID + "_" + kind
}
