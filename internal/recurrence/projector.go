// Package recurrence projects subscription cadences onto calendar dates and
// detects collisions between recurring commitments and one-off bookings.
package recurrence

import (
	"errors"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/fieldbook/internal/model"
	"github.com/md-rashed-zaman/fieldbook/internal/schedule"
)

var (
	// ErrUnknownInterval indicates a corrupted subscription record. Fatal,
	// not retryable.
	ErrUnknownInterval = errors.New("unknown subscription interval")

	// ErrNoOperatingDay means no operating day was found within a full week
	// of candidates. The venue's operating-day configuration contradicts
	// itself; callers must treat this as a scheduling anomaly.
	ErrNoOperatingDay = errors.New("no operating day within 7 days")
)

// NextOccurrence computes the next calendar date the subscription is due,
// strictly after the given date.
//
// Everyday advances one day, then steps forward (at most 7 times) until the
// venue operates on the candidate date. Weekly is a fixed 7-day cadence.
// Monthly adds one calendar month with the day-of-month clamped to the last
// valid day of the target month.
func NextOccurrence(sub model.Subscription, operatingDays []string, after time.Time) (time.Time, error) {
	after = model.DateOnly(after)

	switch sub.Interval {
	case model.IntervalEveryday:
		candidate := after.AddDate(0, 0, 1)
		for i := 0; i < 7; i++ {
			if schedule.OperatesOn(operatingDays, candidate) {
				return candidate, nil
			}
			candidate = candidate.AddDate(0, 0, 1)
		}
		return time.Time{}, ErrNoOperatingDay
	case model.IntervalWeekly:
		return after.AddDate(0, 0, 7), nil
	case model.IntervalMonthly:
		return addMonthClamped(after, sub.DayOfMonth), nil
	default:
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnknownInterval, sub.Interval)
	}
}

// NextValidOccurrenceFrom recomputes the next occurrence strictly after today,
// re-deriving the target from the subscription's original anchor instead of a
// missed occurrence. Used when the naive projection from the last materialized
// date lands in the past because the scheduler skipped cycles.
func NextValidOccurrenceFrom(sub model.Subscription, operatingDays []string, today time.Time) (time.Time, error) {
	today = model.DateOnly(today)

	switch sub.Interval {
	case model.IntervalEveryday:
		return NextOccurrence(sub, operatingDays, today)
	case model.IntervalWeekly:
		candidate := today.AddDate(0, 0, 1)
		for candidate.Weekday() != sub.DayOfWeek {
			candidate = candidate.AddDate(0, 0, 1)
		}
		return candidate, nil
	case model.IntervalMonthly:
		candidate := dateInMonthClamped(today.Year(), today.Month(), sub.DayOfMonth)
		if !candidate.After(today) {
			candidate = dateInMonthClamped(today.Year(), today.Month()+1, sub.DayOfMonth)
		}
		return candidate, nil
	default:
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnknownInterval, sub.Interval)
	}
}

// DueOn reports whether the subscription's cadence lands on the given date.
func DueOn(sub model.Subscription, operatingDays []string, date time.Time) (bool, error) {
	date = model.DateOnly(date)

	switch sub.Interval {
	case model.IntervalEveryday:
		return schedule.OperatesOn(operatingDays, date), nil
	case model.IntervalWeekly:
		return date.Weekday() == sub.DayOfWeek, nil
	case model.IntervalMonthly:
		return date.Day() == clampDayOfMonth(sub.DayOfMonth, date.Year(), date.Month()), nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownInterval, sub.Interval)
	}
}

// addMonthClamped moves one calendar month past `after`, targeting dayOfMonth
// but never spilling into the following month (the 31st due in February
// becomes the 28th or 29th).
func addMonthClamped(after time.Time, dayOfMonth int) time.Time {
	if dayOfMonth <= 0 {
		dayOfMonth = after.Day()
	}
	return dateInMonthClamped(after.Year(), after.Month()+1, dayOfMonth)
}

func dateInMonthClamped(year int, month time.Month, day int) time.Time {
	// time.Date normalizes month overflow (month 13 becomes January next year).
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return time.Date(first.Year(), first.Month(), clampDayOfMonth(day, first.Year(), first.Month()), 0, 0, 0, 0, time.UTC)
}

func clampDayOfMonth(day int, year int, month time.Month) int {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day < 1 {
		return 1
	}
	if day > last {
		return last
	}
	return day
}
