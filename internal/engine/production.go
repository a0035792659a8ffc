package engine

import (
	"sort"
	"time"
)

// MatrixJob is one in-process job placed in the production matrix.
type MatrixJob struct {
	JobNumber  string    `json:"jobNumber"`
	Status     string    `json:"status"`
	Area       string    `json:"area"`
	User       string    `json:"user"`
	FirstSeen  time.Time `json:"firstSeen"`
	LastUpdate time.Time `json:"lastUpdate"`
	AgeDays    int       `json:"ageDays"`
	Events     int       `json:"events"`
}

// MatrixCell is the set of jobs sharing an aging bucket and current status.
type MatrixCell struct {
	Count int         `json:"count"`
	Jobs  []MatrixJob `json:"jobs"`
}

// StatusTotal counts in-process jobs per current status across all buckets.
type StatusTotal struct {
	Count int `json:"count"`
}

// ProductionMatrix is aging bucket -> current status -> jobs, plus per-status totals.
type ProductionMatrix struct {
	Buckets map[AgingBucket]map[string]*MatrixCell `json:"buckets"`
	Totals  map[string]StatusTotal                 `json:"totals"`

	Jobs        int       `json:"jobs"`        // jobs placed in the matrix
	Terminal    int       `json:"terminal"`    // jobs excluded as terminal
	Undated     int       `json:"undated"`     // jobs with no parseable timestamp
	Dropped     int       `json:"dropped"`     // rows without a job number
	GeneratedAt time.Time `json:"generatedAt"` // "today" the matrix was computed for
}

// jobAccumulator keeps what the matrix needs per job while scanning once.
type jobAccumulator struct {
	first    StatusEvent
	hasFirst bool
	latest   StatusEvent
	events   int
}

// BuildMatrix ages every in-process job by business days since it was first
// seen and files it under its current status. Read-only; rebuilt per call.
func BuildMatrix(events []StatusEvent, now time.Time) ProductionMatrix {
	today := UTCMidnight(now)
	m := ProductionMatrix{
		Buckets:     make(map[AgingBucket]map[string]*MatrixCell, len(AgingBuckets)),
		Totals:      make(map[string]StatusTotal),
		GeneratedAt: today,
	}
	for _, b := range AgingBuckets {
		m.Buckets[b] = make(map[string]*MatrixCell)
	}

	jobs := make(map[string]*jobAccumulator)
	var order []string
	for _, ev := range events {
		if ev.JobNumber == "" {
			m.Dropped++
			continue
		}
		acc, ok := jobs[ev.JobNumber]
		if !ok {
			acc = &jobAccumulator{latest: ev}
			jobs[ev.JobNumber] = acc
			order = append(order, ev.JobNumber)
		} else if newerFirst(ev, acc.latest) {
			acc.latest = ev
		}
		acc.events++
		if ev.HasTime() && (!acc.hasFirst || olderFirst(ev, acc.first)) {
			acc.first = ev
			acc.hasFirst = true
		}
	}

	for _, job := range order {
		acc := jobs[job]
		if IsTerminal(acc.latest.Status) {
			m.Terminal++
			continue
		}
		if !acc.hasFirst {
			m.Undated++
			continue
		}
		age := BusinessDayDelay(acc.first.At, today)
		bucket := ClassifyAge(age)
		status := acc.latest.Status

		cell := m.Buckets[bucket][status]
		if cell == nil {
			cell = &MatrixCell{}
			m.Buckets[bucket][status] = cell
		}
		cell.Jobs = append(cell.Jobs, MatrixJob{
			JobNumber:  job,
			Status:     status,
			Area:       acc.latest.Area,
			User:       acc.latest.User,
			FirstSeen:  acc.first.At,
			LastUpdate: acc.latest.At,
			AgeDays:    age,
			Events:     acc.events,
		})
		cell.Count++

		total := m.Totals[status]
		total.Count++
		m.Totals[status] = total
		m.Jobs++
	}

	for _, byStatus := range m.Buckets {
		for _, cell := range byStatus {
			sort.Slice(cell.Jobs, func(i, j int) bool {
				if cell.Jobs[i].AgeDays != cell.Jobs[j].AgeDays {
					return cell.Jobs[i].AgeDays > cell.Jobs[j].AgeDays
				}
				return cell.Jobs[i].JobNumber < cell.Jobs[j].JobNumber
			})
		}
	}
	return m
}
