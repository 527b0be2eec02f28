package dispatch

import (
	"testing"
	"time"
)

func TestSequenceSendTimesFixedStep(t *testing.T) {
	start := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	times := SequenceSendTimes(start, 10*time.Minute, 3, nil, nil)

	if len(times) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(times))
	}
	for i, got := range times {
		want := start.Add(time.Duration(i) * 10 * time.Minute)
		if !got.Equal(want) {
			t.Fatalf("slot %d: expected %v, got %v", i, want, got)
		}
	}
}

func TestSequenceSendTimesDefersQuietSlots(t *testing.T) {
	// Quiet window [9,21): a 10:00 slot defers to 21:00 the same day.
	start := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	qs, qe := 9, 21
	times := SequenceSendTimes(start, 11*time.Hour, 3, &qs, &qe)

	wantFirst := time.Date(2026, 3, 10, 21, 0, 0, 0, time.UTC)
	if !times[0].Equal(wantFirst) {
		t.Fatalf("10:00 inside [9,21) must defer to same-day 21:00, got %v", times[0])
	}
	// 21:00 and 08:00 fall outside the window and keep their slots.
	if !times[1].Equal(start.Add(11*time.Hour)) || !times[2].Equal(start.Add(22*time.Hour)) {
		t.Fatalf("slots outside the window must not move: %v", times)
	}
}

func TestSequenceSendTimesWrappingWindow(t *testing.T) {
	// Window [22,6) wraps midnight. A 23:00 slot moves to 06:00 the next day.
	start := time.Date(2026, 3, 10, 21, 30, 0, 0, time.UTC)
	qs, qe := 22, 6
	times := SequenceSendTimes(start, 90*time.Minute, 2, &qs, &qe)

	if !times[0].Equal(start) {
		t.Fatalf("21:30 is outside [22,6), got %v", times[0])
	}
	want := time.Date(2026, 3, 11, 6, 0, 0, 0, time.UTC)
	if !times[1].Equal(want) {
		t.Fatalf("23:00 must defer to next-day 06:00, got %v", times[1])
	}
}

func TestSequenceSendTimesMonotonic(t *testing.T) {
	start := time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC)
	qs, qe := 22, 6
	times := SequenceSendTimes(start, time.Hour, 12, &qs, &qe)

	for i := 1; i < len(times); i++ {
		if times[i].Before(times[i-1]) {
			t.Fatalf("schedule must be non-decreasing: %v before %v", times[i], times[i-1])
		}
	}
}

func TestSequenceSendTimesEmpty(t *testing.T) {
	if got := SequenceSendTimes(time.Now(), time.Minute, 0, nil, nil); got != nil {
		t.Fatalf("expected nil for zero items, got %v", got)
	}
}
