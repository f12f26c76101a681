// Package timeofday parses the clock-time strings stored on venues, bookings
// and subscriptions into minutes since midnight.
package timeofday

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidTimeFormat flags a malformed persisted time string. Times are
// normalized when records are written, so hitting this at read time is a
// data-integrity problem, not a user input problem.
var ErrInvalidTimeFormat = errors.New("invalid time format")

// Minutes is a clock time as minutes since midnight, 0..1439.
type Minutes int

// Parse accepts 24-hour "HH:MM" and 12-hour "H:MMAM"/"H:MMPM" (case-insensitive,
// no space before the meridiem). "12:00AM" parses to 0 and "12:00PM" to 720.
func Parse(s string) (Minutes, error) {
	raw := strings.ToUpper(strings.TrimSpace(s))

	meridiem := ""
	if strings.HasSuffix(raw, "AM") || strings.HasSuffix(raw, "PM") {
		meridiem = raw[len(raw)-2:]
		raw = raw[:len(raw)-2]
	}

	hh, mm, ok := strings.Cut(raw, ":")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, s)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, s)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || len(mm) != 2 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, s)
	}

	switch meridiem {
	case "":
		if hour < 0 || hour > 23 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, s)
		}
	case "AM":
		if hour < 1 || hour > 12 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, s)
		}
		if hour == 12 {
			hour = 0
		}
	case "PM":
		if hour < 1 || hour > 12 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, s)
		}
		if hour != 12 {
			hour += 12
		}
	}

	return Minutes(hour*60 + minute), nil
}

// String formats back to zero-padded 24-hour "HH:MM".
func (m Minutes) String() string {
	return fmt.Sprintf("%02d:%02d", int(m)/60, int(m)%60)
}
