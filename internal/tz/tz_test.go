package tz

import (
	"testing"
	"time"
)

func TestDayBounds(t *testing.T) {
	start, end, err := DayBounds("2024-05-01")
	if err != nil {
		t.Fatalf("DayBounds: %v", err)
	}
	if start.Hour() != 0 || start.Minute() != 0 || start.Second() != 0 {
		t.Errorf("start = %v, want local midnight", start)
	}
	// Local midnight at the fixed -03 offset is 03:00 UTC.
	if got := start.UTC().Hour(); got != 3 {
		t.Errorf("start UTC hour = %d, want 3", got)
	}
	if want := start.Add(24*time.Hour - time.Second); !end.Equal(want) {
		t.Errorf("end = %v, want %v", end, want)
	}

	if _, _, err := DayBounds("01/05/2024"); err == nil {
		t.Error("malformed date should fail")
	}
}

func TestNextDay(t *testing.T) {
	cases := map[string]string{
		"2024-05-01": "2024-05-02",
		"2024-02-28": "2024-02-29", // leap year
		"2024-12-31": "2025-01-01",
		"garbage":    "garbage",
	}
	for in, want := range cases {
		if got := NextDay(in); got != want {
			t.Errorf("NextDay(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidDate(t *testing.T) {
	for _, ok := range []string{"2024-05-01", "2024-02-29"} {
		if !ValidDate(ok) {
			t.Errorf("ValidDate(%q) = false", ok)
		}
	}
	for _, bad := range []string{"", "2024-13-01", "2024-02-30", "01-05-2024", "2024-5-1"} {
		if ValidDate(bad) {
			t.Errorf("ValidDate(%q) = true", bad)
		}
	}
}

func TestTodayShape(t *testing.T) {
	today := Today()
	if !ValidDate(today) {
		t.Fatalf("Today() = %q, not a valid date", today)
	}
	if _, err := time.ParseInLocation("2006-01-02", today, Zone); err != nil {
		t.Fatalf("Today() = %q: %v", today, err)
	}
}
