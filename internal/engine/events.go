package engine

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"lens-tracker/internal/sheets"
)

// StatusEvent is one row of the canonical status log.
type StatusEvent struct {
	JobNumber string `json:"jobNumber"`
	Timestamp string `json:"timestamp"`
	Area      string `json:"area"`
	Status    string `json:"status"`
	User      string `json:"user"`
	DueDate   string `json:"dueDate,omitempty"`
	Display   string `json:"display,omitempty"`

	// At is the normalized timestamp; zero when Timestamp did not parse.
	At time.Time `json:"-"`
	// Seq is the row position in the source log, the tie-break for equal timestamps.
	Seq int `json:"-"`
}

// HasTime reports whether the event's timestamp parsed.
func (e StatusEvent) HasTime() bool { return !e.At.IsZero() }

// EventFromRow decodes a canonical log row. seq is the row position.
func EventFromRow(row sheets.Row, seq int) StatusEvent {
	ev := StatusEvent{
		JobNumber: strings.TrimSpace(row.Cell(sheets.ColJob)),
		Timestamp: strings.TrimSpace(row.Cell(sheets.ColTimestamp)),
		Area:      strings.TrimSpace(row.Cell(sheets.ColArea)),
		Status:    strings.TrimSpace(row.Cell(sheets.ColStatus)),
		User:      strings.TrimSpace(row.Cell(sheets.ColUser)),
		DueDate:   strings.TrimSpace(row.Cell(sheets.ColDueDate)),
		Seq:       seq,
	}
	if d, ok := ParseEventDate(ev.Timestamp); ok {
		ev.At = d.UTC
		ev.Display = d.Display
	}
	return ev
}

// EventsFromRows decodes a canonical log read (header already excluded by the range).
func EventsFromRows(rows []sheets.Row) []StatusEvent {
	out := make([]StatusEvent, 0, len(rows))
	for i, row := range rows {
		out = append(out, EventFromRow(row, i))
	}
	return out
}

// Row encodes the event for appending to the canonical log.
func (e StatusEvent) Row() sheets.Row {
	row := sheets.Row{e.JobNumber, e.Timestamp, e.Area, e.Status, e.User}
	if e.DueDate != "" {
		row = append(row, e.DueDate)
	}
	return row
}

// FoldStatus lower-cases s, strips accents and collapses whitespace, so
// "Digitación" and " digitacion " compare equal.
func FoldStatus(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.Join(strings.Fields(out), " "))
}

// statusSet is a set of folded status labels.
type statusSet map[string]struct{}

func newStatusSet(labels ...string) statusSet {
	s := make(statusSet, len(labels))
	for _, l := range labels {
		s[FoldStatus(l)] = struct{}{}
	}
	return s
}

func (s statusSet) has(status string) bool {
	_, ok := s[FoldStatus(status)]
	return ok
}
