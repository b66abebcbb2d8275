// Package period derives leaderboard period identity from wall-clock time.
//
// A period is one ISO calendar week (Monday through Sunday) in the bot's
// configured time zone, identified as "{year}-W{week:02d}". Everything that
// partitions gifts or gates schedule triggers keys off this identity, and it
// is always computed fresh from the clock, never cached across a boundary.
package period

import (
	"fmt"
	"time"
)

// ID returns the period id for the given local time, e.g. "2024-W05".
func ID(t time.Time) string {
	y, w := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", y, w)
}

// Current returns the period id together with its ISO year and week.
func Current(t time.Time) (id string, year, week int) {
	year, week = t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week), year, week
}

// Bounds returns the first (Monday) and last (Sunday) calendar day of the
// given ISO week, at midnight in loc.
func Bounds(year, week int, loc *time.Location) (start, end time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	// January 4th is always inside ISO week 1.
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, loc)
	offset := (int(jan4.Weekday()) + 6) % 7 // days since Monday
	week1Mon := jan4.AddDate(0, 0, -offset)
	start = week1Mon.AddDate(0, 0, (week-1)*7)
	end = start.AddDate(0, 0, 6)
	return start, end
}
