package availability

import (
	"testing"
	"time"
)

func TestOverlaps(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	at := func(h, m int) time.Time { return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute) }

	cases := []struct {
		name                           string
		aStart, aEnd, bStart, bEnd     time.Time
		want                           bool
	}{
		{"disjoint", at(9, 0), at(9, 30), at(10, 0), at(10, 30), false},
		{"identical", at(9, 0), at(9, 30), at(9, 0), at(9, 30), true},
		{"partial", at(9, 0), at(9, 30), at(9, 15), at(9, 45), true},
		{"contained", at(9, 0), at(10, 0), at(9, 15), at(9, 30), true},
		{"touching boundary is free", at(9, 0), at(9, 30), at(9, 30), at(10, 0), false},
		{"touching other side", at(9, 30), at(10, 0), at(9, 0), at(9, 30), false},
	}
	for _, tc := range cases {
		if got := Overlaps(tc.aStart, tc.aEnd, tc.bStart, tc.bEnd); got != tc.want {
			t.Errorf("%s: Overlaps = %v, want %v", tc.name, got, tc.want)
		}
		// The predicate is symmetric.
		if got := Overlaps(tc.bStart, tc.bEnd, tc.aStart, tc.aEnd); got != tc.want {
			t.Errorf("%s (swapped): Overlaps = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestAvailableSlots_ExcludesBookedTime(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC) // a Monday
	windowStart := day.Add(9 * time.Hour)
	windowEnd := day.Add(17 * time.Hour)

	busy := []Interval{
		{Start: day.Add(10 * time.Hour), End: day.Add(10*time.Hour + 30*time.Minute)},
	}

	slots := AvailableSlots(windowStart, windowEnd, 30*time.Minute, 30*time.Minute, busy, day)

	has := func(want time.Time) bool {
		for _, s := range slots {
			if s.Equal(want) {
				return true
			}
		}
		return false
	}

	if has(day.Add(10 * time.Hour)) {
		t.Error("10:00 slot should be excluded by the existing booking")
	}
	if !has(day.Add(9*time.Hour + 30*time.Minute)) {
		t.Error("9:30 slot should be available (ends exactly when the booking starts)")
	}
	if !has(day.Add(10*time.Hour + 30*time.Minute)) {
		t.Error("10:30 slot should be available (starts exactly when the booking ends)")
	}
}

func TestAvailableSlots_SkipsPast(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	windowStart := day.Add(9 * time.Hour)
	windowEnd := day.Add(10 * time.Hour)

	now := day.Add(9*time.Hour + 31*time.Minute)
	slots := AvailableSlots(windowStart, windowEnd, 15*time.Minute, 15*time.Minute, nil, now)
	// 09:00, 09:15, 09:30 are in the past (start < now). 09:45 is future.
	if len(slots) != 1 {
		t.Fatalf("expected 1 slot, got %d", len(slots))
	}
	if !slots[0].Equal(day.Add(9*time.Hour + 45*time.Minute)) {
		t.Fatalf("expected slot 09:45, got %s", slots[0].Format(time.RFC3339))
	}
}

func TestAvailableSlots_DegenerateInputs(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	if got := AvailableSlots(start, start, 30*time.Minute, 30*time.Minute, nil, time.Time{}); got != nil {
		t.Errorf("empty window should yield no slots, got %v", got)
	}
	if got := AvailableSlots(start, start.Add(time.Hour), 0, 30*time.Minute, nil, time.Time{}); got != nil {
		t.Errorf("zero duration should yield no slots, got %v", got)
	}
	if got := AvailableSlots(start, start.Add(15*time.Minute), 30*time.Minute, 15*time.Minute, nil, time.Time{}); got != nil {
		t.Errorf("window shorter than duration should yield no slots, got %v", got)
	}
}
