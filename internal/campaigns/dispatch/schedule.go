package dispatch

import "time"

// SequenceSendTimes spreads n sends over time: item i gets start + step*i,
// and any slot landing inside the quiet window moves to the window's end
// (next day when the window wraps past the slot's hour). The result is
// monotonically non-decreasing.
func SequenceSendTimes(start time.Time, step time.Duration, n int, quietStart, quietEnd *int) []time.Time {
	if n <= 0 {
		return nil
	}

	times := make([]time.Time, 0, n)
	for i := 0; i < n; i++ {
		slot := start.Add(time.Duration(i) * step)
		if quietStart != nil && quietEnd != nil {
			slot = NextAllowedTime(slot, *quietStart, *quietEnd)
		}
		times = append(times, slot)
	}
	return times
}
