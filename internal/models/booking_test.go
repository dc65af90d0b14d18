package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowedActions(t *testing.T) {
	tests := []struct {
		status  string
		actions []string
	}{
		{StatusPending, []string{ActionConfirm, ActionCancel}},
		{StatusConfirmed, []string{ActionComplete, ActionCancel}},
		{StatusCompleted, nil},
		{StatusCancelled, nil},
		{"garbage", nil},
	}

	for _, tt := range tests {
		b := &Booking{Status: tt.status}
		assert.Equal(t, tt.actions, b.AllowedActions(), "status %s", tt.status)
	}
}

func TestStorageKey(t *testing.T) {
	assert.Equal(t, "2025-03-14_10-00", StorageKey("2025-03-14", "10:00"))
	assert.Equal(t, "2025-01-02_09-30", StorageKey("2025-01-02", "09:30"))
}

func TestMailKey(t *testing.T) {
	assert.Equal(t, "abc_customer", MailKey("abc", MailKindCustomer))
	assert.Equal(t, "abc_admin", MailKey("abc", MailKindAdmin))
	assert.Equal(t, "abc_confirmed", MailKey("abc", MailKindConfirmed))
}
