package model

import "time"

// Venue is a bookable field with configured operating hours.
// OpenTime and CloseTime are "HH:MM" strings, normalized at write time;
// anything malformed in storage is a data-integrity error, not user input.
type Venue struct {
	ID            string
	OwnerID       string
	Name          string
	OpenTime      string
	CloseTime     string
	SlotMinutes   int
	OperatingDays []string
	Active        bool
	Approved      bool
	Blocked       bool
	CreatedAt     time.Time
}

// Bookable reports whether the venue accepts new commitments at all.
func (v Venue) Bookable() bool {
	return v.Active && v.Approved && !v.Blocked
}
