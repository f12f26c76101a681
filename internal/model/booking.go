package model

import "time"

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
)

// Blocks reports whether a booking in this status still occupies its slot.
// Completed bookings keep blocking so the same interval cannot be re-sold;
// cancelled bookings never block.
func (s BookingStatus) Blocks() bool {
	return s == BookingPending || s == BookingConfirmed || s == BookingCompleted
}

// Booking is a concrete reservation of one slot at a venue on one calendar day.
// Date is timezone-naive: a UTC-midnight time.Time standing in for a calendar date.
type Booking struct {
	ID             string
	VenueID        string
	CustomerID     string
	CustomerName   string
	CustomerEmail  string
	Date           time.Time
	StartTime      string
	EndTime        string
	Status         BookingStatus
	SubscriptionID string // set only when materialized from a subscription
	ReminderSent   bool
	CancelledAt    *time.Time
	CreatedAt      time.Time
}
