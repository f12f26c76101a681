package model

import "time"

type Interval string

const (
	IntervalEveryday Interval = "everyday"
	IntervalWeekly   Interval = "weekly"
	IntervalMonthly  Interval = "monthly"
)

type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

// Subscription is a recurring commitment to the same time window at a venue.
// Exactly one of DayOfWeek / DayOfMonth is meaningful, selected by Interval;
// StartDate is the anchor the cadence was derived from.
type Subscription struct {
	ID                string
	VenueID           string
	CustomerID        string
	CustomerName      string
	CustomerEmail     string
	Interval          Interval
	DayOfWeek         time.Weekday // weekly anchor
	DayOfMonth        int          // monthly anchor, 1-31
	StartDate         time.Time
	StartTime         string
	EndTime           string
	Status            SubscriptionStatus
	CancelAtPeriodEnd bool
	LastBookingDate   time.Time // zero until the first materialization
	CreatedAt         time.Time
}

// DateOnly truncates t to its UTC calendar day.
func DateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
