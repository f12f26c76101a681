package reconcile

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/md-rashed-zaman/fieldbook/internal/availability"
	"github.com/md-rashed-zaman/fieldbook/internal/model"
	"github.com/md-rashed-zaman/fieldbook/internal/schedule"
)

type memSubs struct {
	mu   sync.Mutex
	subs map[string]*model.Subscription
}

func newMemSubs(subs ...model.Subscription) *memSubs {
	m := &memSubs{subs: make(map[string]*model.Subscription)}
	for i := range subs {
		s := subs[i]
		m.subs[s.ID] = &s
	}
	return m
}

func (m *memSubs) ListActive(ctx context.Context) ([]model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Subscription
	for _, s := range m.subs {
		if s.Status == model.SubscriptionActive {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memSubs) SetLastBookingDate(ctx context.Context, id string, date time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[id].LastBookingDate = date
	return nil
}

func (m *memSubs) Cancel(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[id].Status = model.SubscriptionCancelled
	return nil
}

type memBookings struct {
	mu       sync.Mutex
	bookings []model.Booking
}

func (m *memBookings) HasForSubscriptionOn(ctx context.Context, subscriptionID string, date time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bookings {
		if b.SubscriptionID == subscriptionID && b.Date.Equal(date) && b.Status != model.BookingCancelled {
			return true, nil
		}
	}
	return false, nil
}

func (m *memBookings) CreateMaterialized(ctx context.Context, booking model.Booking) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bookings {
		if b.SubscriptionID == booking.SubscriptionID && b.Date.Equal(booking.Date) && b.Status != model.BookingCancelled {
			return false, nil
		}
	}
	m.bookings = append(m.bookings, booking)
	return true, nil
}

func (m *memBookings) LatestForSubscription(ctx context.Context, subscriptionID string) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *model.Booking
	for i := range m.bookings {
		b := m.bookings[i]
		if b.SubscriptionID != subscriptionID || b.Status == model.BookingCancelled {
			continue
		}
		if latest == nil || b.Date.After(latest.Date) {
			latest = &b
		}
	}
	return latest, nil
}

func (m *memBookings) ListNeedingReminder(ctx context.Context, from, to time.Time) ([]model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Booking
	for _, b := range m.bookings {
		if !b.ReminderSent && b.Status == model.BookingConfirmed && !b.Date.Before(model.DateOnly(from)) && b.Date.Before(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memBookings) MarkReminderSent(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.bookings {
		if m.bookings[i].ID == id {
			m.bookings[i].ReminderSent = true
		}
	}
	return nil
}

func (m *memBookings) active() []model.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Booking
	for _, b := range m.bookings {
		if b.Status != model.BookingCancelled {
			out = append(out, b)
		}
	}
	return out
}

type memVenues struct {
	venues map[string]model.Venue
}

func (m *memVenues) Get(ctx context.Context, id string) (model.Venue, error) {
	return m.venues[id], nil
}

type stubAvail struct {
	result availability.Result
}

func (s *stubAvail) Check(ctx context.Context, venueID string, date time.Time, candidate schedule.Interval, excludeBookingID string) (availability.Result, error) {
	return s.result, nil
}

type recordedEvents struct {
	mu        sync.Mutex
	created   []model.Booking
	reminders []model.Booking
	cancelled []model.Subscription
}

func (r *recordedEvents) BookingCreated(ctx context.Context, b model.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, b)
	return nil
}

func (r *recordedEvents) BookingReminderDue(ctx context.Context, b model.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reminders = append(r.reminders, b)
	return nil
}

func (r *recordedEvents) SubscriptionAutoCancelled(ctx context.Context, s model.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled = append(r.cancelled, s)
	return nil
}

func date(y int, mo time.Month, d int) time.Time {
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}

func testVenue() model.Venue {
	return model.Venue{
		ID:            "venue-1",
		Name:          "Riverside Pitch",
		OpenTime:      "08:00",
		CloseTime:     "22:00",
		SlotMinutes:   60,
		OperatingDays: []string{"everyday"},
		Active:        true,
		Approved:      true,
	}
}

func testSub(id string) model.Subscription {
	return model.Subscription{
		ID:            id,
		VenueID:       "venue-1",
		CustomerID:    "cust-1",
		CustomerName:  "Dana",
		CustomerEmail: "dana@example.com",
		Interval:      model.IntervalEveryday,
		StartDate:     date(2025, time.March, 1),
		StartTime:     "18:00",
		EndTime:       "19:00",
		Status:        model.SubscriptionActive,
	}
}

func newTestEngine(subs *memSubs, books *memBookings, avail AvailabilityChecker, events Events, now time.Time) *Engine {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	venues := &memVenues{venues: map[string]model.Venue{"venue-1": testVenue()}}
	return NewEngine(subs, books, venues, avail, events, logger, Config{
		MaxAdvanceDays:      30,
		AutoCancelAfterDays: 14,
		Now:                 func() time.Time { return now },
	})
}

func TestRunDailyCreatesNextOccurrence(t *testing.T) {
	sub := testSub("sub-1")
	sub.LastBookingDate = date(2025, time.March, 9)
	subs := newMemSubs(sub)
	books := &memBookings{}
	events := &recordedEvents{}
	eng := newTestEngine(subs, books, &stubAvail{result: availability.Result{Available: true}}, events, date(2025, time.March, 10))

	sum := eng.RunDaily(context.Background())

	if sum.Created != 1 || sum.Failed != 0 {
		t.Fatalf("summary = %+v, want one created", sum)
	}
	got := books.active()
	if len(got) != 1 {
		t.Fatalf("bookings = %d, want 1", len(got))
	}
	b := got[0]
	if !b.Date.Equal(date(2025, time.March, 10)) {
		t.Fatalf("booking date = %s, want 2025-03-10", b.Date.Format("2006-01-02"))
	}
	if b.Status != model.BookingConfirmed || b.SubscriptionID != "sub-1" {
		t.Fatalf("booking = %+v, want confirmed for sub-1", b)
	}
	if !subs.subs["sub-1"].LastBookingDate.Equal(b.Date) {
		t.Fatalf("last booking date not advanced: %s", subs.subs["sub-1"].LastBookingDate)
	}
	if len(events.created) != 1 {
		t.Fatalf("created events = %d, want 1", len(events.created))
	}
}

func TestRunDailyFirstOccurrenceUsesAnchor(t *testing.T) {
	sub := testSub("sub-1")
	sub.StartDate = date(2025, time.March, 15)
	subs := newMemSubs(sub)
	books := &memBookings{}
	eng := newTestEngine(subs, books, &stubAvail{result: availability.Result{Available: true}}, &recordedEvents{}, date(2025, time.March, 10))

	sum := eng.RunDaily(context.Background())

	if sum.Created != 1 {
		t.Fatalf("summary = %+v, want one created", sum)
	}
	if got := books.active()[0].Date; !got.Equal(date(2025, time.March, 15)) {
		t.Fatalf("first occurrence date = %s, want the anchor", got.Format("2006-01-02"))
	}
}

func TestRunDailySkipsExistingBooking(t *testing.T) {
	sub := testSub("sub-1")
	sub.LastBookingDate = date(2025, time.March, 9)
	subs := newMemSubs(sub)
	books := &memBookings{bookings: []model.Booking{{
		ID:             "b-existing",
		SubscriptionID: "sub-1",
		VenueID:        "venue-1",
		Date:           date(2025, time.March, 10),
		Status:         model.BookingConfirmed,
	}}}
	events := &recordedEvents{}
	eng := newTestEngine(subs, books, &stubAvail{result: availability.Result{Available: true}}, events, date(2025, time.March, 10))

	sum := eng.RunDaily(context.Background())

	if sum.Skipped != 1 || sum.Created != 0 || sum.Failed != 0 {
		t.Fatalf("summary = %+v, want one skipped", sum)
	}
	if len(events.created) != 0 {
		t.Fatalf("no event expected, got %d", len(events.created))
	}
}

func TestRunDailySlotConflictIsSkipNotFailure(t *testing.T) {
	sub := testSub("sub-1")
	sub.LastBookingDate = date(2025, time.March, 9)
	subs := newMemSubs(sub)
	books := &memBookings{}
	avail := &stubAvail{result: availability.Result{
		Available:    false,
		Reason:       "slot already booked",
		ConflictType: availability.ConflictBooking,
	}}
	eng := newTestEngine(subs, books, avail, &recordedEvents{}, date(2025, time.March, 10))

	sum := eng.RunDaily(context.Background())

	if sum.Skipped != 1 || sum.Failed != 0 || sum.Created != 0 {
		t.Fatalf("summary = %+v, want conflict counted as skip", sum)
	}
	if len(books.active()) != 0 {
		t.Fatalf("no booking expected")
	}
}

func TestRunDailySkipsBeyondAdvanceHorizon(t *testing.T) {
	sub := testSub("sub-1")
	sub.StartDate = date(2025, time.June, 1)
	subs := newMemSubs(sub)
	books := &memBookings{}
	eng := newTestEngine(subs, books, &stubAvail{result: availability.Result{Available: true}}, &recordedEvents{}, date(2025, time.March, 10))

	sum := eng.RunDaily(context.Background())

	if sum.Skipped != 1 || sum.Created != 0 {
		t.Fatalf("summary = %+v, want far-future occurrence skipped", sum)
	}
}

func TestRunDailyAutoCancelsStaleSubscription(t *testing.T) {
	sub := testSub("sub-1")
	sub.LastBookingDate = date(2025, time.February, 1)
	subs := newMemSubs(sub)
	books := &memBookings{}
	events := &recordedEvents{}
	eng := newTestEngine(subs, books, &stubAvail{result: availability.Result{Available: true}}, events, date(2025, time.March, 10))

	sum := eng.RunDaily(context.Background())

	if sum.Cancelled != 1 || sum.Created != 0 || sum.Failed != 0 {
		t.Fatalf("summary = %+v, want exactly one cancellation", sum)
	}
	if subs.subs["sub-1"].Status != model.SubscriptionCancelled {
		t.Fatalf("subscription not cancelled")
	}
	if len(events.cancelled) != 1 {
		t.Fatalf("cancel events = %d, want 1", len(events.cancelled))
	}
	if len(books.active()) != 0 {
		t.Fatalf("no booking expected for cancelled subscription")
	}
}

func TestRunDailyClosesSubscriptionFlaggedForPeriodEnd(t *testing.T) {
	sub := testSub("sub-1")
	sub.LastBookingDate = date(2025, time.March, 9)
	sub.CancelAtPeriodEnd = true
	subs := newMemSubs(sub)
	books := &memBookings{}
	events := &recordedEvents{}
	eng := newTestEngine(subs, books, &stubAvail{result: availability.Result{Available: true}}, events, date(2025, time.March, 10))

	sum := eng.RunDaily(context.Background())

	if sum.Cancelled != 1 || sum.Created != 0 {
		t.Fatalf("summary = %+v, want cancellation instead of a new booking", sum)
	}
	if subs.subs["sub-1"].Status != model.SubscriptionCancelled {
		t.Fatalf("subscription not cancelled")
	}
	if len(books.active()) != 0 {
		t.Fatalf("no booking expected after period end")
	}
	if len(events.cancelled) != 1 {
		t.Fatalf("cancel events = %d, want 1", len(events.cancelled))
	}
}

func TestRunDailyLapsedButFreshRederivesFromToday(t *testing.T) {
	// Two missed days is inside the inactivity threshold; the subscription
	// survives and the next occurrence is recomputed relative to today.
	sub := testSub("sub-1")
	sub.LastBookingDate = date(2025, time.March, 7)
	subs := newMemSubs(sub)
	books := &memBookings{}
	eng := newTestEngine(subs, books, &stubAvail{result: availability.Result{Available: true}}, &recordedEvents{}, date(2025, time.March, 10))

	sum := eng.RunDaily(context.Background())

	if sum.Created != 1 || sum.Cancelled != 0 {
		t.Fatalf("summary = %+v, want recovery via recomputation", sum)
	}
	if got := books.active()[0].Date; got.Before(date(2025, time.March, 10)) {
		t.Fatalf("recomputed occurrence %s is in the past", got.Format("2006-01-02"))
	}
}

func TestRunHourlyMaterializesAfterElapsedBooking(t *testing.T) {
	sub := testSub("sub-1")
	sub.LastBookingDate = date(2025, time.March, 10)
	subs := newMemSubs(sub)
	books := &memBookings{bookings: []model.Booking{{
		ID:             "b-1",
		SubscriptionID: "sub-1",
		VenueID:        "venue-1",
		Date:           date(2025, time.March, 10),
		StartTime:      "18:00",
		EndTime:        "19:00",
		Status:         model.BookingConfirmed,
	}}}
	events := &recordedEvents{}
	now := time.Date(2025, time.March, 10, 20, 0, 0, 0, time.UTC)
	eng := newTestEngine(subs, books, &stubAvail{result: availability.Result{Available: true}}, events, now)

	sum := eng.RunHourly(context.Background())

	if sum.Created != 1 {
		t.Fatalf("summary = %+v, want follow-up occurrence created", sum)
	}
	var next *model.Booking
	for _, b := range books.active() {
		if b.ID != "b-1" {
			next = &b
		}
	}
	if next == nil || !next.Date.Equal(date(2025, time.March, 11)) {
		t.Fatalf("expected follow-up booking on 2025-03-11, got %+v", next)
	}
}

func TestRunHourlySkipsWhileBookingInProgress(t *testing.T) {
	sub := testSub("sub-1")
	sub.LastBookingDate = date(2025, time.March, 10)
	subs := newMemSubs(sub)
	books := &memBookings{bookings: []model.Booking{{
		ID:             "b-1",
		SubscriptionID: "sub-1",
		VenueID:        "venue-1",
		Date:           date(2025, time.March, 10),
		StartTime:      "18:00",
		EndTime:        "19:00",
		Status:         model.BookingConfirmed,
	}}}
	now := time.Date(2025, time.March, 10, 18, 30, 0, 0, time.UTC)
	eng := newTestEngine(subs, books, &stubAvail{result: availability.Result{Available: true}}, &recordedEvents{}, now)

	sum := eng.RunHourly(context.Background())

	if sum.Created != 0 || sum.Skipped != 1 {
		t.Fatalf("summary = %+v, want skip while window is still open", sum)
	}
}

func TestConcurrentRunsMaterializeExactlyOnce(t *testing.T) {
	sub := testSub("sub-1")
	sub.LastBookingDate = date(2025, time.March, 9)
	subs := newMemSubs(sub)
	books := &memBookings{}
	events := &recordedEvents{}
	eng := newTestEngine(subs, books, &stubAvail{result: availability.Result{Available: true}}, events, date(2025, time.March, 10))

	var wg sync.WaitGroup
	sums := make([]Summary, 8)
	for i := range sums {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sums[i] = eng.RunDaily(context.Background())
		}(i)
	}
	wg.Wait()

	if got := len(books.active()); got != 1 {
		t.Fatalf("bookings = %d, want exactly one despite concurrent runs", got)
	}
	created := 0
	for _, s := range sums {
		created += s.Created
		if s.Failed != 0 {
			t.Fatalf("no run should fail, got %+v", s)
		}
	}
	if created != 1 {
		t.Fatalf("created total = %d, want 1", created)
	}
}

func TestDailySweepFlagsUpcomingReminders(t *testing.T) {
	subs := newMemSubs()
	books := &memBookings{bookings: []model.Booking{
		{
			ID:       "b-soon",
			VenueID:  "venue-1",
			Date:     date(2025, time.March, 10),
			EndTime:  "19:00",
			Status:   model.BookingConfirmed,
		},
		{
			ID:       "b-later",
			VenueID:  "venue-1",
			Date:     date(2025, time.March, 20),
			EndTime:  "19:00",
			Status:   model.BookingConfirmed,
		},
	}}
	events := &recordedEvents{}
	eng := newTestEngine(subs, books, &stubAvail{result: availability.Result{Available: true}}, events, date(2025, time.March, 10))

	eng.RunDaily(context.Background())

	if len(events.reminders) != 1 || events.reminders[0].ID != "b-soon" {
		t.Fatalf("reminders = %+v, want only the imminent booking", events.reminders)
	}
	for _, b := range books.active() {
		if b.ID == "b-soon" && !b.ReminderSent {
			t.Fatalf("imminent booking not flagged")
		}
		if b.ID == "b-later" && b.ReminderSent {
			t.Fatalf("distant booking should not be flagged")
		}
	}
}
