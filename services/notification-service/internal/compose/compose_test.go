package compose

import (
	"strings"
	"testing"
)

func TestParseBookingEventRequiresIDAndRecipient(t *testing.T) {
	if _, err := ParseBookingEvent([]byte(`{"booking_id":"b-1"}`)); err == nil {
		t.Fatalf("expected error without customer_email")
	}
	if _, err := ParseBookingEvent([]byte(`not json`)); err == nil {
		t.Fatalf("expected error for malformed payload")
	}
	evt, err := ParseBookingEvent([]byte(`{"booking_id":"b-1","customer_email":"dana@example.com","date":"2025-03-10"}`))
	if err != nil {
		t.Fatalf("ParseBookingEvent: %v", err)
	}
	if evt.Date != "2025-03-10" {
		t.Fatalf("date = %q", evt.Date)
	}
}

func TestBookingMessagesAddressTheCustomer(t *testing.T) {
	evt := BookingEvent{
		BookingID:     "b-1",
		CustomerName:  "Dana",
		CustomerEmail: "dana@example.com",
		Date:          "2025-03-10",
		StartTime:     "18:00",
		EndTime:       "19:00",
	}

	for _, msg := range []Message{BookingConfirmation(evt), BookingCancellation(evt), BookingReminder(evt)} {
		if msg.Recipient != "dana@example.com" {
			t.Fatalf("recipient = %q", msg.Recipient)
		}
		if !strings.Contains(msg.Body, "Hi Dana") {
			t.Fatalf("body does not greet customer: %q", msg.Body)
		}
		if !strings.Contains(msg.Body, "2025-03-10") || !strings.Contains(msg.Body, "18:00") {
			t.Fatalf("body missing booking details: %q", msg.Body)
		}
	}
}

func TestSubscriptionAutoCancelledMentionsLastBookedDate(t *testing.T) {
	msg := SubscriptionAutoCancelled(SubscriptionEvent{
		SubscriptionID: "sub-1",
		CustomerEmail:  "dana@example.com",
		Interval:       "weekly",
	})
	if strings.Contains(msg.Body, "last booked date") {
		t.Fatalf("unexpected last-date sentence without a date: %q", msg.Body)
	}

	msg = SubscriptionAutoCancelled(SubscriptionEvent{
		SubscriptionID:  "sub-1",
		CustomerEmail:   "dana@example.com",
		Interval:        "weekly",
		LastBookingDate: "2025-02-01",
	})
	if !strings.Contains(msg.Body, "2025-02-01") {
		t.Fatalf("body missing last booked date: %q", msg.Body)
	}

	msg = SubscriptionAutoCancelled(SubscriptionEvent{
		SubscriptionID: "sub-1",
		CustomerEmail:  "dana@example.com",
		Interval:       "weekly",
		CustomerName:   "",
	})
	if !strings.HasPrefix(msg.Body, "Hello,") {
		t.Fatalf("missing neutral greeting: %q", msg.Body)
	}
}
