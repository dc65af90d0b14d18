package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishJSON(t *testing.T) {
	bus := NewEventBus()

	var got BookingEventPayload
	bus.Subscribe(EventBookingCreated, func(ev *Event) error {
		return json.Unmarshal(ev.Payload, &got)
	})

	payload := BookingEventPayload{BookingID: "b1", Service: "Complete Detailing", Status: "pending"}
	require.NoError(t, bus.PublishJSON(EventBookingCreated, payload))
	assert.Equal(t, payload, got)
}

func TestPublishOnlyMatchingType(t *testing.T) {
	bus := NewEventBus()

	created, confirmed := 0, 0
	bus.Subscribe(EventBookingCreated, func(*Event) error { created++; return nil })
	bus.Subscribe(EventBookingConfirmed, func(*Event) error { confirmed++; return nil })

	require.NoError(t, bus.PublishJSON(EventBookingCreated, BookingEventPayload{BookingID: "b1"}))
	assert.Equal(t, 1, created)
	assert.Equal(t, 0, confirmed)
}

func TestPublishJSONNilBus(t *testing.T) {
	var bus *EventBus
	assert.NoError(t, bus.PublishJSON(EventBookingCreated, nil))
}
