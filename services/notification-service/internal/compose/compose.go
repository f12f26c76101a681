// Package compose turns domain event payloads into customer-facing email text.
package compose

import (
	"encoding/json"
	"fmt"
	"strings"
)

// BookingEvent is the shared payload shape of the booking.* topics.
type BookingEvent struct {
	BookingID      string `json:"booking_id"`
	VenueID        string `json:"venue_id"`
	CustomerID     string `json:"customer_id"`
	CustomerName   string `json:"customer_name"`
	CustomerEmail  string `json:"customer_email"`
	Date           string `json:"date"`
	StartTime      string `json:"start_time"`
	EndTime        string `json:"end_time"`
	SubscriptionID string `json:"subscription_id"`
}

type SubscriptionEvent struct {
	SubscriptionID  string `json:"subscription_id"`
	VenueID         string `json:"venue_id"`
	CustomerID      string `json:"customer_id"`
	CustomerName    string `json:"customer_name"`
	CustomerEmail   string `json:"customer_email"`
	Interval        string `json:"interval"`
	LastBookingDate string `json:"last_booking_date"`
}

type Message struct {
	Recipient string
	Subject   string
	Body      string
}

func ParseBookingEvent(raw []byte) (BookingEvent, error) {
	var evt BookingEvent
	if err := json.Unmarshal(raw, &evt); err != nil {
		return BookingEvent{}, err
	}
	if evt.BookingID == "" || evt.CustomerEmail == "" {
		return BookingEvent{}, fmt.Errorf("booking event missing required fields")
	}
	return evt, nil
}

func ParseSubscriptionEvent(raw []byte) (SubscriptionEvent, error) {
	var evt SubscriptionEvent
	if err := json.Unmarshal(raw, &evt); err != nil {
		return SubscriptionEvent{}, err
	}
	if evt.SubscriptionID == "" || evt.CustomerEmail == "" {
		return SubscriptionEvent{}, fmt.Errorf("subscription event missing required fields")
	}
	return evt, nil
}

func BookingConfirmation(evt BookingEvent) Message {
	return Message{
		Recipient: evt.CustomerEmail,
		Subject:   "Your booking is confirmed",
		Body: fmt.Sprintf("%s, your booking on %s from %s to %s is confirmed.",
			greetingName(evt.CustomerName), evt.Date, evt.StartTime, evt.EndTime),
	}
}

func BookingCancellation(evt BookingEvent) Message {
	return Message{
		Recipient: evt.CustomerEmail,
		Subject:   "Your booking was cancelled",
		Body: fmt.Sprintf("%s, your booking on %s from %s to %s has been cancelled.",
			greetingName(evt.CustomerName), evt.Date, evt.StartTime, evt.EndTime),
	}
}

func BookingReminder(evt BookingEvent) Message {
	return Message{
		Recipient: evt.CustomerEmail,
		Subject:   "Upcoming booking reminder",
		Body: fmt.Sprintf("%s, a reminder: your booking is on %s from %s to %s.",
			greetingName(evt.CustomerName), evt.Date, evt.StartTime, evt.EndTime),
	}
}

func SubscriptionAutoCancelled(evt SubscriptionEvent) Message {
	body := fmt.Sprintf("%s, your %s subscription was cancelled after a period of inactivity.",
		greetingName(evt.CustomerName), evt.Interval)
	if evt.LastBookingDate != "" {
		body = fmt.Sprintf("%s The last booked date was %s.", body, evt.LastBookingDate)
	}
	return Message{
		Recipient: evt.CustomerEmail,
		Subject:   "Your recurring booking was cancelled",
		Body:      body,
	}
}

func greetingName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "Hello"
	}
	return "Hi " + name
}
