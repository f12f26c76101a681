package schedule

import "github.com/md-rashed-zaman/fieldbook/internal/timeofday"

// Slots steps from open to close in fixed increments and returns the ordered
// candidate slots for one day. A trailing slot that would run past closing
// time is dropped rather than shortened. Same inputs always produce the same
// sequence.
func Slots(open, close timeofday.Minutes, granularityMinutes int) []Interval {
	if granularityMinutes <= 0 || close <= open {
		return nil
	}

	step := timeofday.Minutes(granularityMinutes)
	var out []Interval
	for start := open; start+step <= close; start += step {
		out = append(out, Interval{Start: start, End: start + step})
	}
	return out
}
