package recurrence

import (
	"context"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/fieldbook/internal/model"
	"github.com/md-rashed-zaman/fieldbook/internal/schedule"
	"github.com/md-rashed-zaman/fieldbook/internal/timeofday"
)

// SubscriptionSource lists the active subscriptions that can claim slots at a venue.
type SubscriptionSource interface {
	ListActiveByVenue(ctx context.Context, venueID string) ([]model.Subscription, error)
}

// BookingSource lists the stored one-off bookings a new subscription could collide with.
type BookingSource interface {
	ListOneOffBetween(ctx context.Context, venueID string, from, to time.Time) ([]model.Booking, error)
}

// VenueSource resolves a venue's operating-day tokens.
type VenueSource interface {
	Get(ctx context.Context, venueID string) (model.Venue, error)
}

// Match is a recurring commitment that claims the candidate slot.
type Match struct {
	Subscription model.Subscription
	Reason       string
}

// Collision is a one-off booking that a proposed subscription's cadence would land on.
type Collision struct {
	Date    time.Time
	Booking model.Booking
}

// Candidate describes a subscription being proposed, before it exists in storage.
type Candidate struct {
	VenueID    string
	Interval   model.Interval
	AnchorDate time.Time
	Window     schedule.Interval
}

type Resolver struct {
	subs   SubscriptionSource
	venues VenueSource
	books  BookingSource
}

func NewResolver(subs SubscriptionSource, venues VenueSource, books BookingSource) *Resolver {
	return &Resolver{subs: subs, venues: venues, books: books}
}

// FirstConflict checks one date against every active subscription at the
// venue and returns the first whose occurrence overlaps the candidate
// interval, or nil when the slot is clear of recurring claims.
func (r *Resolver) FirstConflict(ctx context.Context, venueID string, date time.Time, candidate schedule.Interval) (*Match, error) {
	venue, err := r.venues.Get(ctx, venueID)
	if err != nil {
		return nil, fmt.Errorf("load venue %s: %w", venueID, err)
	}

	subs, err := r.subs.ListActiveByVenue(ctx, venueID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions for venue %s: %w", venueID, err)
	}

	for _, sub := range subs {
		due, err := DueOn(sub, venue.OperatingDays, date)
		if err != nil {
			return nil, fmt.Errorf("subscription %s: %w", sub.ID, err)
		}
		if !due {
			continue
		}

		win, err := subscriptionWindow(sub)
		if err != nil {
			return nil, err
		}
		if schedule.Overlaps(candidate, win) {
			return &Match{Subscription: sub, Reason: matchReason(sub, win)}, nil
		}
	}
	return nil, nil
}

// ScanWindow enumerates every non-cancelled one-off booking for the venue
// inside the horizon and reports each one the proposed cadence would land on.
// It collects the full list instead of failing fast so the caller can show
// every conflict in a single response.
func (r *Resolver) ScanWindow(ctx context.Context, cand Candidate, horizonDays int) ([]Collision, error) {
	if horizonDays <= 0 {
		return nil, nil
	}

	from := model.DateOnly(cand.AnchorDate)
	to := from.AddDate(0, 0, horizonDays)

	bookings, err := r.books.ListOneOffBetween(ctx, cand.VenueID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list bookings for venue %s: %w", cand.VenueID, err)
	}

	var out []Collision
	for _, b := range bookings {
		if !cadenceLandsOn(cand, b.Date) {
			continue
		}
		win, err := bookingWindow(b)
		if err != nil {
			return nil, err
		}
		if schedule.Overlaps(cand.Window, win) {
			out = append(out, Collision{Date: b.Date, Booking: b})
		}
	}
	return out, nil
}

// cadenceLandsOn applies the proposal's cadence to a booking's date: everyday
// claims every date, weekly the anchor's weekday, monthly the anchor's
// day-of-month (clamped for short months).
func cadenceLandsOn(cand Candidate, date time.Time) bool {
	switch cand.Interval {
	case model.IntervalEveryday:
		return true
	case model.IntervalWeekly:
		return date.Weekday() == cand.AnchorDate.Weekday()
	case model.IntervalMonthly:
		return date.Day() == clampDayOfMonth(cand.AnchorDate.Day(), date.Year(), date.Month())
	default:
		return false
	}
}

func subscriptionWindow(sub model.Subscription) (schedule.Interval, error) {
	start, err := timeofday.Parse(sub.StartTime)
	if err != nil {
		return schedule.Interval{}, fmt.Errorf("subscription %s start time: %w", sub.ID, err)
	}
	end, err := timeofday.Parse(sub.EndTime)
	if err != nil {
		return schedule.Interval{}, fmt.Errorf("subscription %s end time: %w", sub.ID, err)
	}
	return schedule.Interval{Start: start, End: end}, nil
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

func matchReason(sub model.Subscription, win schedule.Interval) string {
	switch sub.Interval {
	case model.IntervalEveryday:
		return fmt.Sprintf("reserved by a daily subscription between %s and %s", win.Start, win.End)
	case model.IntervalWeekly:
		return fmt.Sprintf("reserved by a weekly subscription every %s between %s and %s", sub.DayOfWeek, win.Start, win.End)
	case model.IntervalMonthly:
		return fmt.Sprintf("reserved by a monthly subscription on day %d between %s and %s", sub.DayOfMonth, win.Start, win.End)
	default:
		return "reserved by a recurring subscription"
	}
}
