package engine

import "time"

const day = 24 * time.Hour

// UTCMidnight truncates t to 00:00 of its UTC calendar day.
func UTCMidnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// IsBusinessDay reports whether t's UTC weekday is Monday..Friday. No holiday calendar.
func IsBusinessDay(t time.Time) bool {
	switch t.UTC().Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return true
}

// CountBusinessDays counts weekdays in the inclusive range [start, end].
// Both ends are normalized to UTC midnight. Returns 0 when start > end.
func CountBusinessDays(start, end time.Time) int {
	s, e := UTCMidnight(start), UTCMidnight(end)
	if s.After(e) {
		return 0
	}
	days := int(e.Sub(s)/day) + 1
	weeks := days / 7
	count := weeks * 5
	for d := s.AddDate(0, 0, weeks*7); !d.After(e); d = d.AddDate(0, 0, 1) {
		if IsBusinessDay(d) {
			count++
		}
	}
	return count
}

// BusinessDayDelay is the signed business-day distance of due from today.
//
//	due == today: 0
//	due  > today: -(business days in [today, due])      due in N days, today counted
//	due  < today: +(business days in (due, today])      N days late, due day not counted
func BusinessDayDelay(due, today time.Time) int {
	d, t := UTCMidnight(due), UTCMidnight(today)
	switch {
	case d.Equal(t):
		return 0
	case d.After(t):
		return -CountBusinessDays(t, d)
	default:
		return CountBusinessDays(d.AddDate(0, 0, 1), t)
	}
}
