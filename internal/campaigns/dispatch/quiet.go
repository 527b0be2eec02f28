package dispatch

import "time"

// InQuietHours reports whether the hour falls inside the half-open quiet
// window [start, end). A window where start > end wraps over midnight, so
// [22, 6) covers 22:00 through 05:59. start == end means no quiet window.
func InQuietHours(hour, start, end int) bool {
	if start == end {
		return false
	}
	if start < end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}

// NextAllowedTime returns the earliest send time at or after t that falls
// outside the quiet window. Inside the window the send moves to the window's
// end hour, rolling to the next day when the window wraps past midnight.
func NextAllowedTime(t time.Time, start, end int) time.Time {
	if !InQuietHours(t.Hour(), start, end) {
		return t
	}

	day := t
	if start > end && t.Hour() >= start {
		day = t.AddDate(0, 0, 1)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), end, 0, 0, 0, t.Location())
}
