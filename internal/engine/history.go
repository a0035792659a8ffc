package engine

import "sort"

// Histories groups canonical events per job.
type Histories struct {
	// Jobs holds each job's events in input order (unsorted).
	Jobs map[string][]StatusEvent
	// Order lists job numbers by first appearance in the input.
	Order []string
	// Dropped counts events without a job number.
	Dropped int
}

// BuildHistories groups events by job number, preserving input order inside
// each group. Events with an empty job number are dropped and counted.
func BuildHistories(events []StatusEvent) Histories {
	h := Histories{Jobs: make(map[string][]StatusEvent)}
	for _, ev := range events {
		if ev.JobNumber == "" {
			h.Dropped++
			continue
		}
		if _, ok := h.Jobs[ev.JobNumber]; !ok {
			h.Order = append(h.Order, ev.JobNumber)
		}
		h.Jobs[ev.JobNumber] = append(h.Jobs[ev.JobNumber], ev)
	}
	return h
}

// newerFirst is the total order used for "current status": parseable
// timestamps before unparseable ones, later instants first, and for equal
// instants the later row first.
func newerFirst(a, b StatusEvent) bool {
	if a.HasTime() != b.HasTime() {
		return a.HasTime()
	}
	if a.HasTime() && !a.At.Equal(b.At) {
		return a.At.After(b.At)
	}
	return a.Seq > b.Seq
}

// olderFirst orders chronologically; unparseable timestamps still sort last.
func olderFirst(a, b StatusEvent) bool {
	if a.HasTime() != b.HasTime() {
		return a.HasTime()
	}
	if a.HasTime() && !a.At.Equal(b.At) {
		return a.At.Before(b.At)
	}
	return a.Seq < b.Seq
}

// SortNewestFirst returns a copy of history, current event at index 0.
func SortNewestFirst(history []StatusEvent) []StatusEvent {
	out := append([]StatusEvent(nil), history...)
	sort.SliceStable(out, func(i, j int) bool { return newerFirst(out[i], out[j]) })
	return out
}

// SortChronological returns a copy of history, oldest first.
func SortChronological(history []StatusEvent) []StatusEvent {
	out := append([]StatusEvent(nil), history...)
	sort.SliceStable(out, func(i, j int) bool { return olderFirst(out[i], out[j]) })
	return out
}

// LatestEvent returns the job's current event.
func LatestEvent(history []StatusEvent) (StatusEvent, bool) {
	if len(history) == 0 {
		return StatusEvent{}, false
	}
	latest := history[0]
	for _, ev := range history[1:] {
		if newerFirst(ev, latest) {
			latest = ev
		}
	}
	return latest, true
}

// FirstSeen returns the earliest event with a parseable timestamp.
func FirstSeen(history []StatusEvent) (StatusEvent, bool) {
	var first StatusEvent
	found := false
	for _, ev := range history {
		if !ev.HasTime() {
			continue
		}
		if !found || olderFirst(ev, first) {
			first = ev
			found = true
		}
	}
	return first, found
}
