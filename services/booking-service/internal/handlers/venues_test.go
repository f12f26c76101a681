package handlers

import (
	"testing"

	"github.com/md-rashed-zaman/fieldbook/internal/model"
)

func TestApplyVenueRequestNormalizesTimes(t *testing.T) {
	var venue model.Venue
	err := applyVenueRequest(&venue, venueRequest{
		Name:          "  Harbor Courts ",
		OpenTime:      "9:00AM",
		CloseTime:     "10:30PM",
		SlotMinutes:   90,
		OperatingDays: []string{"Weekdays", " saturday "},
	})
	if err != nil {
		t.Fatalf("applyVenueRequest: %v", err)
	}
	if venue.Name != "Harbor Courts" {
		t.Fatalf("name = %q", venue.Name)
	}
	if venue.OpenTime != "09:00" || venue.CloseTime != "22:30" {
		t.Fatalf("times = %q-%q, want canonical 24-hour form", venue.OpenTime, venue.CloseTime)
	}
	if len(venue.OperatingDays) != 2 || venue.OperatingDays[0] != "weekdays" || venue.OperatingDays[1] != "saturday" {
		t.Fatalf("operating days = %v", venue.OperatingDays)
	}
}

func TestApplyVenueRequestRejectsInvalidInput(t *testing.T) {
	base := venueRequest{
		Name:        "Court",
		OpenTime:    "09:00",
		CloseTime:   "17:00",
		SlotMinutes: 60,
	}

	cases := []struct {
		name   string
		mutate func(*venueRequest)
	}{
		{"empty name", func(r *venueRequest) { r.Name = "  " }},
		{"bad open time", func(r *venueRequest) { r.OpenTime = "25:00" }},
		{"close before open", func(r *venueRequest) { r.CloseTime = "08:00" }},
		{"close equals open", func(r *venueRequest) { r.CloseTime = "09:00" }},
		{"zero slot minutes", func(r *venueRequest) { r.SlotMinutes = 0 }},
		{"unknown day token", func(r *venueRequest) { r.OperatingDays = []string{"neverday"} }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := base
			tc.mutate(&req)
			var venue model.Venue
			if err := applyVenueRequest(&venue, req); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
