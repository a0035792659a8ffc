package engine

import (
	"fmt"
	"strings"
	"time"

	"lens-tracker/internal/logger"
)

// DisplayLayout is DD/MM/YYYY HH:mm.
const DisplayLayout = "02/01/2006 15:04"

const sortableLayout = "2006-01-02T15:04:05Z"

// EventDate is a normalized timestamp.
type EventDate struct {
	UTC      time.Time `json:"utc"`
	Display  string    `json:"display"`
	Sortable string    `json:"sortable"`
}

// Layouts without a zone are read as UTC wall-clock values. Order matters:
// ISO forms are tried before day-first forms.
var eventDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2/1/2006, 15:04:05",
	"2/1/2006",
	"2-1-2006 15:04:05",
	"2-1-2006 15:04",
	"2-1-2006, 15:04:05",
	"2-1-2006",
	time.RFC1123Z,
	time.RFC1123,
}

var minEventDate = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// ParseEventDate normalizes raw into a UTC instant with whole seconds.
// Any zone offset in raw is applied and then dropped; zone-less strings are
// already UTC. A date outside [2000-01-01, end of today UTC] is logged and
// still returned. ok is false only for empty or unparseable input.
func ParseEventDate(raw string) (EventDate, bool) {
	return parseEventDate(raw, time.Now())
}

// ParseDueDate reads a due date with the same layouts as ParseEventDate.
// Due dates are expected in the future, so no range warning is logged.
func ParseDueDate(raw string) (EventDate, bool) {
	return parseDate(raw, time.Time{}, false)
}

func parseEventDate(raw string, now time.Time) (EventDate, bool) {
	return parseDate(raw, now, true)
}

func parseDate(raw string, now time.Time, warn bool) (EventDate, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return EventDate{}, false
	}
	for _, layout := range eventDateLayouts {
		t, err := time.Parse(layout, raw)
		if err != nil {
			continue
		}
		u := t.UTC()
		u = time.Date(u.Year(), u.Month(), u.Day(), u.Hour(), u.Minute(), u.Second(), 0, time.UTC)
		if warn && (u.Before(minEventDate) || !u.Before(UTCMidnight(now).Add(day))) {
			logger.Warn("DATE", fmt.Sprintf("Date %q outside expected range", raw))
		}
		return EventDate{
			UTC:      u,
			Display:  u.Format(DisplayLayout),
			Sortable: u.Format(sortableLayout),
		}, true
	}
	return EventDate{}, false
}

// DisplayIn formats t as DD/MM/YYYY HH:mm in loc. Zero times format as "".
func DisplayIn(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DisplayLayout)
}
