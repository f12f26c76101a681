package schedule

import (
	"strings"
	"time"
)

// OperatesOn resolves a venue's operating-day tokens against a concrete date.
// Tokens are individual weekday names or the aggregates "everyday", "weekdays"
// and "weekends"; the result is a logical OR across all tokens, so a venue
// configured with both "weekdays" and "Saturday" operates six days a week.
//
// An empty token list means the venue operates every day. This permissive
// default is deliberate and load-bearing; see the operating-days tests before
// changing it.
func OperatesOn(tokens []string, date time.Time) bool {
	if len(tokens) == 0 {
		return true
	}

	wd := date.Weekday()
	for _, tok := range tokens {
		switch strings.ToLower(strings.TrimSpace(tok)) {
		case "everyday":
			return true
		case "weekdays":
			if wd >= time.Monday && wd <= time.Friday {
				return true
			}
		case "weekends":
			if wd == time.Saturday || wd == time.Sunday {
				return true
			}
		case strings.ToLower(wd.String()):
			return true
		}
	}
	return false
}

// ValidOperatingDayToken reports whether the (already lowercased, trimmed)
// token is one the resolver understands.
func ValidOperatingDayToken(token string) bool {
	switch token {
	case "everyday", "weekdays", "weekends",
		"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday":
		return true
	}
	return false
}
