package points

import (
	"testing"
	"time"
)

func TestNewSummary(t *testing.T) {
	s := NewSummary(120, 45)
	if s.Balance != 75 {
		t.Errorf("balance = %d, want 75", s.Balance)
	}

	// Admin penalties can push earned below committed; the summary reports it.
	s = NewSummary(10, 25)
	if s.Balance != -15 {
		t.Errorf("balance = %d, want -15", s.Balance)
	}
}

func TestGoalTarget(t *testing.T) {
	tests := []struct {
		totalCost     int
		parentPercent int
		want          int
	}{
		{200, 50, 100},
		{200, 0, 200},
		{200, 100, 0},
		{199, 50, 100}, // 99.5 rounds up
		{100, 33, 67},  // 67.0
		{150, 33, 101}, // 100.5 rounds up
	}
	for _, tt := range tests {
		if got := GoalTarget(tt.totalCost, tt.parentPercent); got != tt.want {
			t.Errorf("GoalTarget(%d, %d) = %d, want %d", tt.totalCost, tt.parentPercent, got, tt.want)
		}
	}
}

func TestCooldownEnd(t *testing.T) {
	last := time.Date(2025, 3, 10, 15, 30, 0, 0, time.UTC)
	end := CooldownEnd(last, 7)
	want := time.Date(2025, 3, 17, 15, 30, 0, 0, time.UTC)
	if !end.Equal(want) {
		t.Errorf("end = %v, want %v", end, want)
	}

	// Zero cooldown means immediately requestable again.
	if !CooldownEnd(last, 0).Equal(last) {
		t.Error("zero cooldown should return the last timestamp unchanged")
	}
}

func TestDayBounds(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	now := time.Date(2025, 6, 15, 22, 45, 0, 0, loc)
	start, end := DayBounds(now)

	if start.Hour() != 0 || start.Day() != 15 {
		t.Errorf("start = %v, want midnight June 15", start)
	}
	if end.Day() != 16 {
		t.Errorf("end = %v, want midnight June 16", end)
	}
	if !now.After(start) || !now.Before(end) {
		t.Error("now should fall inside its own day bounds")
	}

	// The window is the local day, not the UTC day.
	if start.UTC().Day() == start.Day() && start.UTC().Hour() == 0 {
		t.Error("bounds should be computed in local time")
	}
}
