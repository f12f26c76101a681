// Package reconcile turns due subscriptions into concrete bookings. It is
// designed to run in overlapping invocations: the only synchronization is the
// storage layer's conditional insert keyed on (subscription, date).
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/fieldbook/internal/availability"
	"github.com/md-rashed-zaman/fieldbook/internal/model"
	"github.com/md-rashed-zaman/fieldbook/internal/recurrence"
	"github.com/md-rashed-zaman/fieldbook/internal/schedule"
	"github.com/md-rashed-zaman/fieldbook/internal/timeofday"
)

type SubscriptionStore interface {
	ListActive(ctx context.Context) ([]model.Subscription, error)
	SetLastBookingDate(ctx context.Context, id string, date time.Time) error
	Cancel(ctx context.Context, id string) error
}

type BookingStore interface {
	// HasForSubscriptionOn reports whether a non-cancelled booking already
	// exists for the (subscription, date) pair.
	HasForSubscriptionOn(ctx context.Context, subscriptionID string, date time.Time) (bool, error)
	// CreateMaterialized inserts the booking only if no non-cancelled booking
	// exists for its (subscription, date) pair. Returns false when a
	// concurrent run won the race; the later writer must skip, never duplicate.
	CreateMaterialized(ctx context.Context, b model.Booking) (bool, error)
	// LatestForSubscription returns the most recent non-cancelled booking for
	// the subscription, or nil when none exists.
	LatestForSubscription(ctx context.Context, subscriptionID string) (*model.Booking, error)
	ListNeedingReminder(ctx context.Context, from, to time.Time) ([]model.Booking, error)
	MarkReminderSent(ctx context.Context, id string) error
}

type VenueStore interface {
	Get(ctx context.Context, id string) (model.Venue, error)
}

type AvailabilityChecker interface {
	Check(ctx context.Context, venueID string, date time.Time, candidate schedule.Interval, excludeBookingID string) (availability.Result, error)
}

// Events receives the structured notifications the core emits; it never
// formats user-facing messages.
type Events interface {
	BookingCreated(ctx context.Context, b model.Booking) error
	BookingReminderDue(ctx context.Context, b model.Booking) error
	SubscriptionAutoCancelled(ctx context.Context, s model.Subscription) error
}

type Config struct {
	// MaxAdvanceDays bounds how far into the future occurrences are materialized.
	MaxAdvanceDays int
	// AutoCancelAfterDays is the inactivity threshold: a subscription whose
	// next occurrence is in the past and whose last materialized booking is
	// older than this gets cancelled.
	AutoCancelAfterDays int
	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

type Summary struct {
	Created   int
	Skipped   int
	Failed    int
	Cancelled int
}

type Engine struct {
	subs   SubscriptionStore
	books  BookingStore
	venues VenueStore
	avail  AvailabilityChecker
	events Events
	logger *slog.Logger
	cfg    Config
}

func NewEngine(subs SubscriptionStore, books BookingStore, venues VenueStore, avail AvailabilityChecker, events Events, logger *slog.Logger, cfg Config) *Engine {
	if cfg.MaxAdvanceDays <= 0 {
		cfg.MaxAdvanceDays = 30
	}
	if cfg.AutoCancelAfterDays <= 0 {
		cfg.AutoCancelAfterDays = 14
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Engine{
		subs:   subs,
		books:  books,
		venues: venues,
		avail:  avail,
		events: events,
		logger: logger,
		cfg:    cfg,
	}
}

type outcome int

const (
	outcomeCreated outcome = iota
	outcomeSkipped
	outcomeCancelled
)

// RunDaily projects every active subscription forward from its last
// materialized date and materializes the next due occurrence. It also sweeps
// for bookings starting within 24 hours that still need a reminder.
func (e *Engine) RunDaily(ctx context.Context) Summary {
	var sum Summary

	subs, err := e.subs.ListActive(ctx)
	if err != nil {
		e.logger.Error("daily pass: list subscriptions failed", "err", err)
		sum.Failed++
		return sum
	}

	for _, sub := range subs {
		from := sub.LastBookingDate
		out, err := e.materializeNext(ctx, sub, from)
		e.tally(&sum, sub.ID, out, err)
	}

	e.sweepReminders(ctx)
	return sum
}

// RunHourly reacts to bookings whose window has just closed: for each active
// subscription with an elapsed latest booking it materializes the following
// occurrence, without waiting for the next daily pass.
func (e *Engine) RunHourly(ctx context.Context) Summary {
	var sum Summary

	subs, err := e.subs.ListActive(ctx)
	if err != nil {
		e.logger.Error("hourly pass: list subscriptions failed", "err", err)
		sum.Failed++
		return sum
	}

	now := e.cfg.Now().UTC()
	for _, sub := range subs {
		latest, err := e.books.LatestForSubscription(ctx, sub.ID)
		if err != nil {
			e.tally(&sum, sub.ID, outcomeSkipped, fmt.Errorf("latest booking: %w", err))
			continue
		}
		if latest == nil || !(latest.Status == model.BookingConfirmed || latest.Status == model.BookingCompleted) {
			sum.Skipped++
			continue
		}
		elapsed, err := bookingElapsed(*latest, now)
		if err != nil {
			e.tally(&sum, sub.ID, outcomeSkipped, err)
			continue
		}
		if !elapsed {
			sum.Skipped++
			continue
		}

		out, err := e.materializeNext(ctx, sub, latest.Date)
		e.tally(&sum, sub.ID, out, err)
	}
	return sum
}

// materializeNext runs the shared skip rules for one subscription. Errors are
// isolated per subscription by the callers; a failure here never aborts the
// batch.
func (e *Engine) materializeNext(ctx context.Context, sub model.Subscription, from time.Time) (outcome, error) {
	venue, err := e.venues.Get(ctx, sub.VenueID)
	if err != nil {
		return outcomeSkipped, fmt.Errorf("load venue %s: %w", sub.VenueID, err)
	}

	today := model.DateOnly(e.cfg.Now())

	// A subscriber who opted out keeps any already-materialized booking but
	// gets nothing new; the subscription closes instead.
	if sub.CancelAtPeriodEnd && !sub.LastBookingDate.IsZero() {
		return e.cancelSubscription(ctx, sub)
	}

	var next time.Time
	if from.IsZero() {
		// Never materialized: the first occurrence is the anchor itself.
		next = model.DateOnly(sub.StartDate)
	} else {
		next, err = recurrence.NextOccurrence(sub, venue.OperatingDays, from)
		if err != nil {
			return outcomeSkipped, err
		}
	}

	if next.Before(today) {
		if !sub.LastBookingDate.IsZero() && today.Sub(model.DateOnly(sub.LastBookingDate)) > time.Duration(e.cfg.AutoCancelAfterDays)*24*time.Hour {
			return e.cancelSubscription(ctx, sub)
		}
		// The scheduler missed one or more cycles; re-derive from the anchor.
		next, err = recurrence.NextValidOccurrenceFrom(sub, venue.OperatingDays, today)
		if err != nil {
			return outcomeSkipped, err
		}
	}

	if next.After(today.AddDate(0, 0, e.cfg.MaxAdvanceDays)) {
		return outcomeSkipped, nil
	}

	exists, err := e.books.HasForSubscriptionOn(ctx, sub.ID, next)
	if err != nil {
		return outcomeSkipped, fmt.Errorf("check existing booking: %w", err)
	}
	if exists {
		return outcomeSkipped, nil
	}

	window, err := subscriptionWindow(sub)
	if err != nil {
		return outcomeSkipped, err
	}

	res, err := e.avail.Check(ctx, sub.VenueID, next, window, "")
	if err != nil {
		return outcomeSkipped, fmt.Errorf("availability check: %w", err)
	}
	if !res.Available {
		// Expected: the slot is already visible as taken in the UI. A silent
		// skip, not a failure.
		e.logger.Debug("occurrence slot taken",
			"subscription_id", sub.ID,
			"date", next.Format("2006-01-02"),
			"conflict_type", res.ConflictType,
		)
		return outcomeSkipped, nil
	}

	booking := model.Booking{
		ID:             uuid.NewString(),
		VenueID:        sub.VenueID,
		CustomerID:     sub.CustomerID,
		CustomerName:   sub.CustomerName,
		CustomerEmail:  sub.CustomerEmail,
		Date:           next,
		StartTime:      sub.StartTime,
		EndTime:        sub.EndTime,
		Status:         model.BookingConfirmed,
		SubscriptionID: sub.ID,
	}

	inserted, err := e.books.CreateMaterialized(ctx, booking)
	if err != nil {
		return outcomeSkipped, fmt.Errorf("create booking: %w", err)
	}
	if !inserted {
		// A concurrent run (daily vs hourly, or an overlapping invocation)
		// already materialized this occurrence.
		return outcomeSkipped, nil
	}

	if err := e.subs.SetLastBookingDate(ctx, sub.ID, next); err != nil {
		e.logger.Error("advance last booking date failed", "subscription_id", sub.ID, "err", err)
	}
	if err := e.events.BookingCreated(ctx, booking); err != nil {
		e.logger.Error("booking created event failed", "booking_id", booking.ID, "err", err)
	}

	return outcomeCreated, nil
}

func (e *Engine) cancelSubscription(ctx context.Context, sub model.Subscription) (outcome, error) {
	if err := e.subs.Cancel(ctx, sub.ID); err != nil {
		return outcomeSkipped, fmt.Errorf("auto-cancel: %w", err)
	}
	sub.Status = model.SubscriptionCancelled
	if err := e.events.SubscriptionAutoCancelled(ctx, sub); err != nil {
		e.logger.Error("auto-cancel event failed", "subscription_id", sub.ID, "err", err)
	}
	e.logger.Info("subscription auto-cancelled",
		"subscription_id", sub.ID,
		"last_booking_date", sub.LastBookingDate.Format("2006-01-02"),
	)
	return outcomeCancelled, nil
}

func (e *Engine) sweepReminders(ctx context.Context) {
	now := e.cfg.Now().UTC()
	due, err := e.books.ListNeedingReminder(ctx, now, now.Add(24*time.Hour))
	if err != nil {
		e.logger.Error("reminder sweep failed", "err", err)
		return
	}
	for _, b := range due {
		if err := e.books.MarkReminderSent(ctx, b.ID); err != nil {
			e.logger.Error("mark reminder sent failed", "booking_id", b.ID, "err", err)
			continue
		}
		if err := e.events.BookingReminderDue(ctx, b); err != nil {
			e.logger.Error("reminder event failed", "booking_id", b.ID, "err", err)
		}
	}
}

func (e *Engine) tally(sum *Summary, subscriptionID string, out outcome, err error) {
	if err != nil {
		// Per-subscription failures are recorded and the batch moves on.
		// Only genuine errors count as failed; conflict skips never do.
		sum.Failed++
		e.logger.Error("subscription reconciliation failed",
			"subscription_id", subscriptionID,
			"err", err,
		)
		return
	}
	switch out {
	case outcomeCreated:
		sum.Created++
	case outcomeCancelled:
		sum.Cancelled++
	default:
		sum.Skipped++
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

func bookingElapsed(b model.Booking, now time.Time) (bool, error) {
	end, err := timeofday.Parse(b.EndTime)
	if err != nil {
		return false, fmt.Errorf("booking %s end time: %w", b.ID, err)
	}
	endAt := model.DateOnly(b.Date).Add(time.Duration(end) * time.Minute)
	return endAt.Before(now), nil
}
