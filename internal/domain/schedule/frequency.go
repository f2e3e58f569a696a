// Package schedule holds the frequency calendar shared by dispensing,
// attendance and adherence tracking: window bounds, next-due dates and
// expected-occurrence counts per scheduling frequency. All calendar math is
// done in UTC.
package schedule

import (
	"math"
	"time"
)

// MedicationFrequency governs dosing cadence.
type MedicationFrequency string

const (
	Daily      MedicationFrequency = "DAILY"
	TwiceDaily MedicationFrequency = "TWICE_DAILY"
	Weekly     MedicationFrequency = "WEEKLY"
	Monthly    MedicationFrequency = "MONTHLY"
)

// SessionFrequency governs expected program-session cadence. It is a distinct
// enum from MedicationFrequency (sessions are never twice-daily) but shares
// the same occurrence-counting semantics.
type SessionFrequency string

const (
	SessionDaily   SessionFrequency = "DAILY"
	SessionWeekly  SessionFrequency = "WEEKLY"
	SessionMonthly SessionFrequency = "MONTHLY"
)

// ValidMedicationFrequency reports whether f is a known dosing frequency.
func ValidMedicationFrequency(f MedicationFrequency) bool {
	_, ok := rules[f]
	return ok
}

// ValidSessionFrequency reports whether f is a known session frequency.
func ValidSessionFrequency(f SessionFrequency) bool {
	_, ok := rules[MedicationFrequency(f)]
	return ok
}

// rule bundles the per-frequency calendar behaviour so every component reads
// the same table instead of re-switching on the enum.
type rule struct {
	rangeFn    func(t time.Time) (time.Time, time.Time)
	nextDueFn  func(last time.Time) time.Time
	expectedFn func(days int) int
}

var rules = map[MedicationFrequency]rule{
	Daily: {
		rangeFn:    dayBounds,
		nextDueFn:  func(last time.Time) time.Time { return last.Add(24 * time.Hour) },
		expectedFn: func(days int) int { return days },
	},
	TwiceDaily: {
		// Twice-daily shares the daily window; its duplicate rule is a
		// per-day count cap, not window exclusivity.
		rangeFn:    dayBounds,
		nextDueFn:  func(last time.Time) time.Time { return last.Add(12 * time.Hour) },
		expectedFn: func(days int) int { return days * 2 },
	},
	Weekly: {
		// Trailing 7-day window, not the calendar week.
		rangeFn: func(t time.Time) (time.Time, time.Time) {
			t = t.UTC()
			return t.AddDate(0, 0, -7), t
		},
		nextDueFn:  func(last time.Time) time.Time { return last.AddDate(0, 0, 7) },
		expectedFn: func(days int) int { return ceilDiv(days, 7) },
	},
	Monthly: {
		rangeFn:   monthBounds,
		nextDueFn: addMonthClamped,
		// Fixed 30-day approximation; this drives adherence denominators.
		expectedFn: func(days int) int { return ceilDiv(days, 30) },
	},
}

// DateRange returns the scheduling window containing t for the given
// frequency. Unrecognized frequencies fall back to the daily range.
func DateRange(f MedicationFrequency, t time.Time) (start, end time.Time) {
	r, ok := rules[f]
	if !ok {
		return dayBounds(t)
	}
	return r.rangeFn(t)
}

// SessionDateRange is DateRange for session frequencies.
func SessionDateRange(f SessionFrequency, t time.Time) (start, end time.Time) {
	return DateRange(MedicationFrequency(f), t)
}

// NextDueDate returns when the next dose is due given the last one. An
// unknown frequency returns the input unchanged.
func NextDueDate(last time.Time, f MedicationFrequency) time.Time {
	r, ok := rules[f]
	if !ok {
		return last
	}
	return r.nextDueFn(last.UTC())
}

// DaysBetween returns |ceil((end - start) / 24h)|.
func DaysBetween(start, end time.Time) int {
	d := end.Sub(start)
	if d < 0 {
		d = -d
	}
	return int(math.Ceil(d.Hours() / 24))
}

// ExpectedOccurrences returns how many doses/sessions the frequency calls for
// between start and end. Unknown frequencies yield 0.
func ExpectedOccurrences(f MedicationFrequency, start, end time.Time) int {
	r, ok := rules[f]
	if !ok {
		return 0
	}
	return r.expectedFn(DaysBetween(start, end))
}

// ExpectedSessions is ExpectedOccurrences for session frequencies.
func ExpectedSessions(f SessionFrequency, start, end time.Time) int {
	return ExpectedOccurrences(MedicationFrequency(f), start, end)
}

// StartOfDay returns midnight UTC of t's calendar day.
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// EndOfDay returns 23:59:59.999 UTC of t's calendar day.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Millisecond)
}

// StartOfMonth returns midnight UTC on the first of t's calendar month.
func StartOfMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// EndOfMonth returns the last millisecond of t's calendar month.
func EndOfMonth(t time.Time) time.Time {
	return StartOfMonth(t).AddDate(0, 1, 0).Add(-time.Millisecond)
}

// SameCalendarDay reports whether a and b fall on the same UTC calendar day.
func SameCalendarDay(a, b time.Time) bool {
	return StartOfDay(a).Equal(StartOfDay(b))
}

func dayBounds(t time.Time) (time.Time, time.Time) {
	return StartOfDay(t), EndOfDay(t)
}

func monthBounds(t time.Time) (time.Time, time.Time) {
	return StartOfMonth(t), EndOfMonth(t)
}

// addMonthClamped advances one calendar month, clamping the day-of-month so
// Jan 31 lands on Feb 28/29 rather than normalizing into March.
func addMonthClamped(t time.Time) time.Time {
	t = t.UTC()
	y, m, d := t.Date()
	first := time.Date(y, m+1, 1, 0, 0, 0, 0, time.UTC)
	if last := daysIn(first.Year(), first.Month()); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func ceilDiv(n, d int) int {
	return (n + d - 1) / d
}
