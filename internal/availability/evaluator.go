// Package availability answers whether a candidate interval at a venue on a
// date is free of existing commitments.
package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/fieldbook/internal/model"
	"github.com/md-rashed-zaman/fieldbook/internal/recurrence"
	"github.com/md-rashed-zaman/fieldbook/internal/schedule"
	"github.com/md-rashed-zaman/fieldbook/internal/timeofday"
)

type ConflictType string

const (
	ConflictBooking   ConflictType = "booking"
	ConflictRecurring ConflictType = "recurring"
)

// Result is the structured answer for an availability check. Checks never
// surface conflicts as errors; an error return means the check itself could
// not run (storage failure or corrupted record).
type Result struct {
	Available    bool         `json:"available"`
	Reason       string       `json:"reason,omitempty"`
	ConflictType ConflictType `json:"conflict_type,omitempty"`
}

// BookingSource loads the bookings that still block their slot on a given
// day (cancelled bookings excluded).
type BookingSource interface {
	ListBlockingByVenueDate(ctx context.Context, venueID string, date time.Time) ([]model.Booking, error)
}

// RecurringChecker reports the first recurring claim on a slot, if any.
type RecurringChecker interface {
	FirstConflict(ctx context.Context, venueID string, date time.Time, candidate schedule.Interval) (*recurrence.Match, error)
}

type Evaluator struct {
	bookings  BookingSource
	recurring RecurringChecker
}

func NewEvaluator(bookings BookingSource, recurring RecurringChecker) *Evaluator {
	return &Evaluator{bookings: bookings, recurring: recurring}
}

// Check decides whether the candidate interval is free. Concrete bookings are
// checked before projected recurrences: a stored booking is a stronger
// commitment, so when both would conflict the booking wins the report.
func (e *Evaluator) Check(ctx context.Context, venueID string, date time.Time, candidate schedule.Interval, excludeBookingID string) (Result, error) {
	date = model.DateOnly(date)

	blocking, err := e.bookings.ListBlockingByVenueDate(ctx, venueID, date)
	if err != nil {
		return Result{}, fmt.Errorf("list bookings for venue %s on %s: %w", venueID, date.Format("2006-01-02"), err)
	}

	for _, b := range blocking {
		if excludeBookingID != "" && b.ID == excludeBookingID {
			continue
		}
		win, err := bookingWindow(b)
		if err != nil {
			return Result{}, err
		}
		if schedule.Overlaps(candidate, win) {
			return Result{
				Available:    false,
				Reason:       fmt.Sprintf("booked between %s and %s", win.Start, win.End),
				ConflictType: ConflictBooking,
			}, nil
		}
	}

	if e.recurring != nil {
		match, err := e.recurring.FirstConflict(ctx, venueID, date, candidate)
		if err != nil {
			return Result{}, err
		}
		if match != nil {
			return Result{
				Available:    false,
				Reason:       match.Reason,
				ConflictType: ConflictRecurring,
			}, nil
		}
	}

	return Result{Available: true}, nil
}

func bookingWindow(b model.Booking) (schedule.Interval, error) {
	start, err := timeofday.Parse(b.StartTime)
	if err != nil {
		return schedule.Interval{}, fmt.Errorf("booking %s start time: %w", b.ID, err)
	}
	end, err := timeofday.Parse(b.EndTime)
	if err != nil {
		return schedule.Interval{}, fmt.Errorf("booking %s end time: %w", b.ID, err)
	}
	return schedule.Interval{Start: start, End: end}, nil
}
