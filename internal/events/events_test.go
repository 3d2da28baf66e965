package events

import (
	"errors"
	"testing"
	"time"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus()

	var received *Event
	var callCount int

	bus.Subscribe(func(event *Event) error {
		received = event
		callCount++
		return nil
	}, EventBookingCreated)

	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	err := bus.PublishJSON(EventBookingCreated, BookingEventPayload{BookingID: "b1", GardenID: "g1", StartDate: start})
	if err != nil {
		t.Fatalf("PublishJSON failed: %v", err)
	}

	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}
	if received.Type != EventBookingCreated {
		t.Errorf("expected type %s, got %s", EventBookingCreated, received.Type)
	}

	var decoded BookingEventPayload
	if err := received.Decode(&decoded); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if decoded.BookingID != "b1" || !decoded.StartDate.Equal(start) {
		t.Errorf("unexpected payload %+v", decoded)
	}
}

func TestEventBusMultipleTypes(t *testing.T) {
	bus := NewEventBus()
	var count1, count2 int

	bus.Subscribe(func(_ *Event) error { count1++; return nil }, EventGardenCreated, EventGardenDeleted)
	bus.Subscribe(func(_ *Event) error { count2++; return nil }, EventGardenDeleted)

	bus.Publish(&Event{Type: EventGardenCreated})
	bus.Publish(&Event{Type: EventGardenDeleted})

	if count1 != 2 || count2 != 1 {
		t.Errorf("expected 2 and 1 calls, got %d and %d", count1, count2)
	}
}

func TestEventBusHandlerErrors(t *testing.T) {
	bus := NewEventBus()
	var reported []string
	bus.OnError(func(eventType string, err error) { reported = append(reported, eventType+": "+err.Error()) })

	called := false
	bus.Subscribe(func(_ *Event) error { return errors.New("boom") }, EventMessageSent)
	bus.Subscribe(func(_ *Event) error { called = true; return nil }, EventMessageSent)

	bus.Publish(&Event{Type: EventMessageSent})

	if !called {
		t.Error("second handler must still run after the first fails")
	}
	if len(reported) != 1 || reported[0] != "message_sent: boom" {
		t.Errorf("unexpected reported errors %v", reported)
	}
}

func TestEventBusNoSubscribers(t *testing.T) {
	bus := NewEventBus()
	bus.Publish(&Event{Type: "unknown"})
	if err := bus.PublishJSON("unknown", nil); err != nil {
		t.Errorf("PublishJSON failed: %v", err)
	}

	var nilBus *EventBus
	if err := nilBus.PublishJSON(EventBookingCreated, nil); err != nil {
		t.Errorf("nil bus must be a no-op, got %v", err)
	}
}

func TestPublishJSONMarshalError(t *testing.T) {
	bus := NewEventBus()
	if err := bus.PublishJSON("bad", make(chan int)); err == nil {
		t.Error("expected marshal error")
	}
}
