package availability

import (
	"context"
	"testing"
	"time"

	"github.com/md-rashed-zaman/fieldbook/internal/model"
	"github.com/md-rashed-zaman/fieldbook/internal/recurrence"
	"github.com/md-rashed-zaman/fieldbook/internal/schedule"
	"github.com/md-rashed-zaman/fieldbook/internal/timeofday"
)

type fakeBookingSource struct {
	bookings []model.Booking
}

func (f *fakeBookingSource) ListBlockingByVenueDate(_ context.Context, _ string, date time.Time) ([]model.Booking, error) {
	var out []model.Booking
	for _, b := range f.bookings {
		if b.Date.Equal(date) && b.Status.Blocks() {
			out = append(out, b)
		}
	}
	return out, nil
}

type fakeRecurring struct {
	match *recurrence.Match
}

func (f *fakeRecurring) FirstConflict(_ context.Context, _ string, _ time.Time, _ schedule.Interval) (*recurrence.Match, error) {
	return f.match, nil
}

func window(start, end string) schedule.Interval {
	s, _ := timeofday.Parse(start)
	e, _ := timeofday.Parse(end)
	return schedule.Interval{Start: s, End: e}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCheckBookingConflict(t *testing.T) {
	books := &fakeBookingSource{bookings: []model.Booking{
		{ID: "b1", Date: day(2024, 6, 1), StartTime: "10:00", EndTime: "10:30", Status: model.BookingConfirmed},
	}}
	e := NewEvaluator(books, &fakeRecurring{})

	res, err := e.Check(context.Background(), "venue-1", day(2024, 6, 1), window("10:15", "10:45"), "")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.Available {
		t.Fatal("expected unavailable")
	}
	if res.ConflictType != ConflictBooking {
		t.Fatalf("expected booking conflict, got %q", res.ConflictType)
	}
}

func TestCheckCancelledBookingNeverBlocks(t *testing.T) {
	books := &fakeBookingSource{bookings: []model.Booking{
		{ID: "b1", Date: day(2024, 6, 1), StartTime: "10:00", EndTime: "10:30", Status: model.BookingCancelled},
	}}
	e := NewEvaluator(books, &fakeRecurring{})

	res, err := e.Check(context.Background(), "venue-1", day(2024, 6, 1), window("10:00", "10:30"), "")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !res.Available {
		t.Fatalf("cancelled booking must not block: %+v", res)
	}
}

func TestCheckCompletedBookingStillBlocks(t *testing.T) {
	books := &fakeBookingSource{bookings: []model.Booking{
		{ID: "b1", Date: day(2024, 6, 1), StartTime: "10:00", EndTime: "10:30", Status: model.BookingCompleted},
	}}
	e := NewEvaluator(books, &fakeRecurring{})

	res, err := e.Check(context.Background(), "venue-1", day(2024, 6, 1), window("10:00", "10:30"), "")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.Available {
		t.Fatal("completed booking must still block the interval")
	}
}

func TestCheckExcludesBookingBeingEdited(t *testing.T) {
	books := &fakeBookingSource{bookings: []model.Booking{
		{ID: "b1", Date: day(2024, 6, 1), StartTime: "10:00", EndTime: "10:30", Status: model.BookingConfirmed},
	}}
	e := NewEvaluator(books, &fakeRecurring{})

	res, err := e.Check(context.Background(), "venue-1", day(2024, 6, 1), window("10:00", "10:30"), "b1")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !res.Available {
		t.Fatalf("excluded booking must not conflict with itself: %+v", res)
	}
}

func TestCheckRecurringConflict(t *testing.T) {
	match := &recurrence.Match{
		Subscription: model.Subscription{ID: "sub-1", Interval: model.IntervalWeekly},
		Reason:       "reserved by a weekly subscription every Monday between 09:00 and 10:00",
	}
	e := NewEvaluator(&fakeBookingSource{}, &fakeRecurring{match: match})

	res, err := e.Check(context.Background(), "venue-1", day(2024, 6, 3), window("09:30", "09:45"), "")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.Available {
		t.Fatal("expected recurring conflict")
	}
	if res.ConflictType != ConflictRecurring {
		t.Fatalf("expected recurring conflict type, got %q", res.ConflictType)
	}
	if res.Reason != match.Reason {
		t.Fatalf("expected resolver reason to pass through, got %q", res.Reason)
	}
}

func TestCheckBookingConflictWinsOverRecurring(t *testing.T) {
	books := &fakeBookingSource{bookings: []model.Booking{
		{ID: "b1", Date: day(2024, 6, 3), StartTime: "09:00", EndTime: "10:00", Status: model.BookingConfirmed},
	}}
	match := &recurrence.Match{Reason: "reserved by a daily subscription between 09:00 and 10:00"}
	e := NewEvaluator(books, &fakeRecurring{match: match})

	res, err := e.Check(context.Background(), "venue-1", day(2024, 6, 3), window("09:30", "09:45"), "")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.ConflictType != ConflictBooking {
		t.Fatalf("booking conflict must take priority, got %q", res.ConflictType)
	}
}

func TestCheckFreeSlot(t *testing.T) {
	e := NewEvaluator(&fakeBookingSource{}, &fakeRecurring{})

	res, err := e.Check(context.Background(), "venue-1", day(2024, 6, 4), window("09:30", "09:45"), "")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !res.Available {
		t.Fatalf("expected available, got %+v", res)
	}
	if res.Reason != "" || res.ConflictType != "" {
		t.Fatalf("available result must not carry conflict details: %+v", res)
	}
}
