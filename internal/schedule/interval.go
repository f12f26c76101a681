// Package schedule turns a venue's operating configuration into discrete
// bookable slots and decides when two time ranges collide.
package schedule

import "github.com/md-rashed-zaman/fieldbook/internal/timeofday"

// Interval is a half-open [Start,End) clock-time range within one day.
type Interval struct {
	Start timeofday.Minutes
	End   timeofday.Minutes
}

// Overlaps reports whether two half-open intervals intersect. Touching
// intervals (one ending exactly when the other starts) do not overlap.
// Every time-range comparison in the system goes through this predicate
// so tie-break semantics stay consistent.
func Overlaps(a, b Interval) bool {
	return a.Start < b.End && b.Start < a.End
}
