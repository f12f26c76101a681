package recurrence

import (
	"context"
	"testing"
	"time"

	"github.com/md-rashed-zaman/fieldbook/internal/model"
	"github.com/md-rashed-zaman/fieldbook/internal/schedule"
	"github.com/md-rashed-zaman/fieldbook/internal/timeofday"
)

type fakeSubs struct {
	subs []model.Subscription
}

func (f *fakeSubs) ListActiveByVenue(_ context.Context, _ string) ([]model.Subscription, error) {
	return f.subs, nil
}

type fakeVenues struct {
	venue model.Venue
}

func (f *fakeVenues) Get(_ context.Context, _ string) (model.Venue, error) {
	return f.venue, nil
}

type fakeBookings struct {
	bookings []model.Booking
}

func (f *fakeBookings) ListOneOffBetween(_ context.Context, _ string, from, to time.Time) ([]model.Booking, error) {
	var out []model.Booking
	for _, b := range f.bookings {
		if !b.Date.Before(from) && b.Date.Before(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

func window(start, end string) schedule.Interval {
	s, _ := timeofday.Parse(start)
	e, _ := timeofday.Parse(end)
	return schedule.Interval{Start: s, End: e}
}

func TestFirstConflictWeeklySubscription(t *testing.T) {
	weekly := model.Subscription{
		ID:        "sub-1",
		Interval:  model.IntervalWeekly,
		DayOfWeek: time.Monday,
		StartTime: "09:00",
		EndTime:   "10:00",
		Status:    model.SubscriptionActive,
	}
	r := NewResolver(&fakeSubs{subs: []model.Subscription{weekly}}, &fakeVenues{}, &fakeBookings{})

	mon := date(2024, 6, 3)
	match, err := r.FirstConflict(context.Background(), "venue-1", mon, window("09:30", "09:45"))
	if err != nil {
		t.Fatalf("FirstConflict: %v", err)
	}
	if match == nil {
		t.Fatal("expected a conflict on Monday inside the subscription window")
	}
	if match.Subscription.ID != "sub-1" {
		t.Fatalf("unexpected subscription %s", match.Subscription.ID)
	}
	if match.Reason == "" {
		t.Fatal("expected a human-readable reason")
	}

	tue := date(2024, 6, 4)
	match, err = r.FirstConflict(context.Background(), "venue-1", tue, window("09:30", "09:45"))
	if err != nil {
		t.Fatalf("FirstConflict: %v", err)
	}
	if match != nil {
		t.Fatalf("expected no conflict on Tuesday, got %+v", match)
	}
}

func TestFirstConflictTouchingWindowIsClear(t *testing.T) {
	daily := model.Subscription{
		ID:        "sub-2",
		Interval:  model.IntervalEveryday,
		StartTime: "09:00",
		EndTime:   "10:00",
	}
	r := NewResolver(&fakeSubs{subs: []model.Subscription{daily}}, &fakeVenues{}, &fakeBookings{})

	match, err := r.FirstConflict(context.Background(), "venue-1", date(2024, 6, 3), window("10:00", "11:00"))
	if err != nil {
		t.Fatalf("FirstConflict: %v", err)
	}
	if match != nil {
		t.Fatalf("touching intervals must not conflict, got %+v", match)
	}
}

func TestScanWindowReportsAllCollisions(t *testing.T) {
	// Two Mondays with overlapping one-off bookings, one Monday clear, one
	// Tuesday booking that the weekly cadence never lands on.
	books := &fakeBookings{bookings: []model.Booking{
		{ID: "b1", Date: date(2024, 6, 3), StartTime: "09:00", EndTime: "09:30", Status: model.BookingConfirmed},
		{ID: "b2", Date: date(2024, 6, 10), StartTime: "09:45", EndTime: "10:15", Status: model.BookingConfirmed},
		{ID: "b3", Date: date(2024, 6, 17), StartTime: "11:00", EndTime: "11:30", Status: model.BookingConfirmed},
		{ID: "b4", Date: date(2024, 6, 4), StartTime: "09:00", EndTime: "09:30", Status: model.BookingConfirmed},
	}}
	r := NewResolver(&fakeSubs{}, &fakeVenues{}, books)

	cand := Candidate{
		VenueID:    "venue-1",
		Interval:   model.IntervalWeekly,
		AnchorDate: date(2024, 6, 3), // a Monday
		Window:     window("09:00", "10:00"),
	}
	collisions, err := r.ScanWindow(context.Background(), cand, 60)
	if err != nil {
		t.Fatalf("ScanWindow: %v", err)
	}
	if len(collisions) != 2 {
		t.Fatalf("expected 2 collisions, got %d", len(collisions))
	}
	if collisions[0].Booking.ID != "b1" || collisions[1].Booking.ID != "b2" {
		t.Fatalf("unexpected collisions %+v", collisions)
	}
}

func TestScanWindowEverydayCadenceMatchesEveryDate(t *testing.T) {
	books := &fakeBookings{bookings: []model.Booking{
		{ID: "b1", Date: date(2024, 6, 4), StartTime: "09:00", EndTime: "09:30"},
	}}
	r := NewResolver(&fakeSubs{}, &fakeVenues{}, books)

	cand := Candidate{
		VenueID:    "venue-1",
		Interval:   model.IntervalEveryday,
		AnchorDate: date(2024, 6, 3),
		Window:     window("09:00", "10:00"),
	}
	collisions, err := r.ScanWindow(context.Background(), cand, 60)
	if err != nil {
		t.Fatalf("ScanWindow: %v", err)
	}
	if len(collisions) != 1 {
		t.Fatalf("expected 1 collision, got %d", len(collisions))
	}
}

func TestScanWindowMonthlyClampsAnchorDay(t *testing.T) {
	// Anchor on the 31st; a February 28th booking must still collide.
	books := &fakeBookings{bookings: []model.Booking{
		{ID: "feb", Date: date(2025, 2, 28), StartTime: "09:00", EndTime: "09:30"},
	}}
	r := NewResolver(&fakeSubs{}, &fakeVenues{}, books)

	cand := Candidate{
		VenueID:    "venue-1",
		Interval:   model.IntervalMonthly,
		AnchorDate: date(2025, 1, 31),
		Window:     window("09:00", "10:00"),
	}
	collisions, err := r.ScanWindow(context.Background(), cand, 60)
	if err != nil {
		t.Fatalf("ScanWindow: %v", err)
	}
	if len(collisions) != 1 {
		t.Fatalf("expected the clamped February date to collide, got %d collisions", len(collisions))
	}
}
