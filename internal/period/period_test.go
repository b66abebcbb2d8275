package period

import (
	"testing"
	"time"
)

func TestIDFormatsISOWeek(t *testing.T) {
	cases := []struct {
		at   time.Time
		want string
	}{
		// Monday of 2024 week 5.
		{time.Date(2024, 1, 29, 12, 0, 0, 0, time.UTC), "2024-W05"},
		// Sunday still belongs to the same ISO week.
		{time.Date(2024, 2, 4, 23, 59, 0, 0, time.UTC), "2024-W05"},
		// Jan 1st 2023 was a Sunday: ISO week 52 of 2022.
		{time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), "2022-W52"},
		// Dec 30th 2024 (Monday) is already week 1 of 2025.
		{time.Date(2024, 12, 30, 9, 0, 0, 0, time.UTC), "2025-W01"},
	}
	for _, c := range cases {
		if got := ID(c.at); got != c.want {
			t.Fatalf("ID(%v) = %q, want %q", c.at, got, c.want)
		}
	}
}

func TestBoundsMondayToSunday(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("load tz: %v", err)
	}

	start, end := Bounds(2024, 5, berlin)
	if start.Weekday() != time.Monday {
		t.Fatalf("start weekday = %v, want Monday", start.Weekday())
	}
	if end.Weekday() != time.Sunday {
		t.Fatalf("end weekday = %v, want Sunday", end.Weekday())
	}
	if got := start.Format("2006-01-02"); got != "2024-01-29" {
		t.Fatalf("start = %s, want 2024-01-29", got)
	}
	if got := end.Format("2006-01-02"); got != "2024-02-04" {
		t.Fatalf("end = %s, want 2024-02-04", got)
	}
}

func TestBoundsRoundTripsCurrent(t *testing.T) {
	// Every day of a sample year maps back into its own week's bounds.
	for day := 0; day < 365; day += 13 {
		at := time.Date(2025, 1, 1, 15, 0, 0, 0, time.UTC).AddDate(0, 0, day)
		_, y, w := Current(at)
		start, end := Bounds(y, w, time.UTC)
		if at.Before(start) || at.After(end.AddDate(0, 0, 1)) {
			t.Fatalf("day %v outside bounds [%v, %v]", at, start, end)
		}
	}
}
