package schedule

import (
	"testing"
	"time"

	"github.com/md-rashed-zaman/fieldbook/internal/timeofday"
)

func TestOverlapsSymmetry(t *testing.T) {
	pairs := []struct {
		a, b Interval
		want bool
	}{
		{Interval{0, 30}, Interval{15, 45}, true},
		{Interval{0, 30}, Interval{30, 60}, false}, // touching, not overlapping
		{Interval{0, 60}, Interval{15, 30}, true},  // containment
		{Interval{0, 30}, Interval{45, 60}, false},
		{Interval{600, 630}, Interval{615, 645}, true},
	}
	for _, p := range pairs {
		if got := Overlaps(p.a, p.b); got != p.want {
			t.Fatalf("Overlaps(%v, %v) = %v, want %v", p.a, p.b, got, p.want)
		}
		if Overlaps(p.a, p.b) != Overlaps(p.b, p.a) {
			t.Fatalf("Overlaps not symmetric for %v, %v", p.a, p.b)
		}
	}
}

func TestSlotsMorningWindow(t *testing.T) {
	open, _ := timeofday.Parse("09:00")
	close, _ := timeofday.Parse("12:00")

	slots := Slots(open, close, 30)
	if len(slots) != 6 {
		t.Fatalf("expected 6 slots, got %d", len(slots))
	}
	if slots[0].Start.String() != "09:00" || slots[0].End.String() != "09:30" {
		t.Fatalf("unexpected first slot %v", slots[0])
	}
	if slots[5].Start.String() != "11:30" || slots[5].End.String() != "12:00" {
		t.Fatalf("unexpected last slot %v", slots[5])
	}
}

func TestSlotsDropsTrailingPartial(t *testing.T) {
	open, _ := timeofday.Parse("09:00")
	close, _ := timeofday.Parse("10:45")

	slots := Slots(open, close, 30)
	// 09:00-09:30, 09:30-10:00, 10:00-10:30; 10:30-11:00 would overrun.
	if len(slots) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(slots))
	}
	if slots[2].End.String() != "10:30" {
		t.Fatalf("expected last slot to end 10:30, got %s", slots[2].End)
	}
}

func TestSlotsDegenerateInputs(t *testing.T) {
	if got := Slots(600, 600, 30); got != nil {
		t.Fatalf("expected no slots for zero-width window, got %v", got)
	}
	if got := Slots(600, 660, 0); got != nil {
		t.Fatalf("expected no slots for zero granularity, got %v", got)
	}
}

func TestOperatesOnWeekends(t *testing.T) {
	tokens := []string{"weekends"}
	// 2024-06-01 is a Saturday.
	for day := 1; day <= 7; day++ {
		date := time.Date(2024, 6, day, 0, 0, 0, 0, time.UTC)
		want := date.Weekday() == time.Saturday || date.Weekday() == time.Sunday
		if got := OperatesOn(tokens, date); got != want {
			t.Fatalf("OperatesOn(weekends, %s %s) = %v, want %v", date.Format("2006-01-02"), date.Weekday(), got, want)
		}
	}
}

func TestOperatesOnTokenUnion(t *testing.T) {
	tokens := []string{"weekdays", "Saturday"}
	sat := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	sun := time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)
	mon := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)

	if !OperatesOn(tokens, sat) {
		t.Fatal("expected Saturday to operate")
	}
	if OperatesOn(tokens, sun) {
		t.Fatal("expected Sunday to be closed")
	}
	if !OperatesOn(tokens, mon) {
		t.Fatal("expected Monday to operate")
	}
}

func TestOperatesOnEmptyTokensIsPermissive(t *testing.T) {
	// Unconfigured venues operate every day.
	for day := 1; day <= 7; day++ {
		date := time.Date(2024, 6, day, 0, 0, 0, 0, time.UTC)
		if !OperatesOn(nil, date) {
			t.Fatalf("expected empty token list to operate on %s", date.Weekday())
		}
	}
}

func TestOperatesOnCaseInsensitiveWeekdayName(t *testing.T) {
	wed := time.Date(2024, 6, 5, 0, 0, 0, 0, time.UTC)
	if !OperatesOn([]string{"wednesday"}, wed) {
		t.Fatal("expected lowercase weekday name to match")
	}
	if OperatesOn([]string{"wednesday"}, wed.AddDate(0, 0, 1)) {
		t.Fatal("expected Thursday to be closed")
	}
}
