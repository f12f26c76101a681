package timeofday

import (
	"errors"
	"testing"
)

func TestParse24Hour(t *testing.T) {
	cases := map[string]Minutes{
		"00:00": 0,
		"09:00": 540,
		"9:05":  545,
		"12:00": 720,
		"23:59": 1439,
	}
	for in, want := range cases {
		got, err := Parse(in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("Parse(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestParse12Hour(t *testing.T) {
	cases := map[string]Minutes{
		"12:00AM": 0,   // midnight
		"12:00PM": 720, // noon
		"1:00AM":  60,
		"9:30am":  570,
		"1:00PM":  780,
		"11:45pm": 1425,
	}
	for in, want := range cases {
		got, err := Parse(in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("Parse(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "9", "25:00", "09:60", "13:00PM", "0:30AM", "9:5", "nine o'clock"} {
		if _, err := Parse(in); !errors.Is(err, ErrInvalidTimeFormat) {
			t.Fatalf("Parse(%q): expected ErrInvalidTimeFormat, got %v", in, err)
		}
	}
}

func TestMinutesString(t *testing.T) {
	if got := Minutes(545).String(); got != "09:05" {
		t.Fatalf("expected 09:05, got %s", got)
	}
	if got := Minutes(0).String(); got != "00:00" {
		t.Fatalf("expected 00:00, got %s", got)
	}
}
