package engine

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// January 2024: Mon 8, Fri 12, Sat 13, Sun 14, Mon 15.

func TestCountBusinessDays_SingleDay(t *testing.T) {
	for d := 8; d <= 14; d++ {
		day := date(2024, time.January, d)
		want := 1
		if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			want = 0
		}
		if got := CountBusinessDays(day, day); got != want {
			t.Errorf("CountBusinessDays(%s, same) = %d, want %d", day.Weekday(), got, want)
		}
	}
}

func TestCountBusinessDays(t *testing.T) {
	tests := []struct {
		name       string
		start, end time.Time
		want       int
	}{
		{"mon-fri", date(2024, 1, 8), date(2024, 1, 12), 5},
		{"mon-sun", date(2024, 1, 8), date(2024, 1, 14), 5},
		{"two weeks", date(2024, 1, 8), date(2024, 1, 21), 10},
		{"fri-mon", date(2024, 1, 12), date(2024, 1, 15), 2},
		{"weekend only", date(2024, 1, 13), date(2024, 1, 14), 0},
		{"start after end", date(2024, 1, 15), date(2024, 1, 8), 0},
		{"across month", date(2024, 1, 29), date(2024, 2, 2), 5},
		{"long span", date(2024, 1, 1), date(2024, 12, 31), 262},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CountBusinessDays(tt.start, tt.end); got != tt.want {
				t.Errorf("CountBusinessDays = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCountBusinessDays_NormalizesToUTCMidnight(t *testing.T) {
	start := time.Date(2024, 1, 8, 23, 59, 0, 0, time.UTC)
	end := time.Date(2024, 1, 9, 0, 1, 0, 0, time.UTC)
	if got := CountBusinessDays(start, end); got != 2 {
		t.Errorf("CountBusinessDays = %d, want 2", got)
	}
	loc := time.FixedZone("UTC-3", -3*3600)
	// 22:00 local on Sunday is 01:00 UTC Monday.
	sundayNightLocal := time.Date(2024, 1, 14, 22, 0, 0, 0, loc)
	if got := CountBusinessDays(sundayNightLocal, sundayNightLocal); got != 1 {
		t.Errorf("CountBusinessDays on UTC Monday = %d, want 1", got)
	}
}

func TestBusinessDayDelay(t *testing.T) {
	tests := []struct {
		name       string
		due, today time.Time
		want       int
	}{
		{"same day", date(2024, 1, 10), date(2024, 1, 10), 0},
		{"same day different hours", time.Date(2024, 1, 10, 1, 0, 0, 0, time.UTC), time.Date(2024, 1, 10, 23, 0, 0, 0, time.UTC), 0},
		{"due monday, today friday", date(2024, 1, 8), date(2024, 1, 12), 4},
		{"due wednesday, today next monday", date(2024, 1, 10), date(2024, 1, 15), 3},
		{"due friday, today monday after", date(2024, 1, 12), date(2024, 1, 15), 1},
		{"due saturday, today monday", date(2024, 1, 13), date(2024, 1, 15), 1},
		{"due tomorrow counts today", date(2024, 1, 16), date(2024, 1, 15), -2},
		{"due friday from monday", date(2024, 1, 12), date(2024, 1, 8), -5},
		{"due monday from saturday", date(2024, 1, 15), date(2024, 1, 13), -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BusinessDayDelay(tt.due, tt.today); got != tt.want {
				t.Errorf("BusinessDayDelay = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestBusinessDayDelay_SignFlipsAtDueDate(t *testing.T) {
	today := date(2024, 1, 10)
	if got := BusinessDayDelay(today.AddDate(0, 0, -1), today); got <= 0 {
		t.Errorf("past due delay = %d, want > 0", got)
	}
	if got := BusinessDayDelay(today, today); got != 0 {
		t.Errorf("due today delay = %d, want 0", got)
	}
	if got := BusinessDayDelay(today.AddDate(0, 0, 1), today); got >= 0 {
		t.Errorf("future due delay = %d, want < 0", got)
	}
}
