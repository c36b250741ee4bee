package queue

import "time"

// =============================================================================
// CALENDAR-DAY HELPERS
// =============================================================================
// Missed-cycle math is midnight-to-midnight in UTC, never elapsed hours:
// a swap at 23:50 followed by a tick at 00:10 is one day apart, not zero.

// DayOf truncates a time to its UTC calendar day.
func DayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Today returns the current UTC calendar day.
func Today() time.Time {
	return DayOf(time.Now())
}

// DaysBetween returns the number of whole calendar days from one day to
// another. Negative if to precedes from.
func DaysBetween(from, to time.Time) int {
	return int(DayOf(to).Sub(DayOf(from)).Hours() / 24)
}

// SameDay reports whether two times fall on the same UTC calendar day.
func SameDay(a, b time.Time) bool {
	return DayOf(a).Equal(DayOf(b))
}
