package engine

import (
	"sort"
	"time"
)

// DelayedJob is one overdue job in the delayed-jobs dashboard.
type DelayedJob struct {
	JobNumber string        `json:"jobNumber"`
	EntryDate time.Time     `json:"entryDate"`
	DueDate   time.Time     `json:"dueDate"`
	DelayDays int           `json:"delayDays"`
	Bucket    DueBucket     `json:"bucket"`
	Status    string        `json:"status"`
	Area      string        `json:"area"`
	User      string        `json:"user"`
	Historial []StatusEvent `json:"historial"`
}

// DelaySummary aggregates delay over the returned jobs. Average, Max and Min
// are nil when there are no delayed jobs.
type DelaySummary struct {
	Count        int               `json:"count"`
	AverageDelay *float64          `json:"averageDelay"`
	MaxDelay     *int              `json:"maxDelay"`
	MinDelay     *int              `json:"minDelay"`
	ByBucket     map[DueBucket]int `json:"byBucket"`
}

// DelayedDashboard is the delayed-jobs view.
type DelayedDashboard struct {
	Jobs        []DelayedJob `json:"jobs"`
	Summary     DelaySummary `json:"summary"`
	Excluded    int          `json:"excluded"` // pipeline jobs without a usable due date
	GeneratedAt time.Time    `json:"generatedAt"`
}

// GroupForDelayedDashboard returns pipeline-qualified jobs that are past their
// due date (DelayDays > 0), most delayed first.
func GroupForDelayedDashboard(events []StatusEvent, now time.Time) DelayedDashboard {
	today := UTCMidnight(now)
	h := BuildHistories(events)
	dash := DelayedDashboard{
		Jobs:        []DelayedJob{},
		Summary:     DelaySummary{ByBucket: make(map[DueBucket]int)},
		GeneratedAt: today,
	}

	for _, job := range h.Order {
		history := h.Jobs[job]
		if !QualifiesForPipeline(history) {
			continue
		}
		cls, ok := ClassifyDelay(history, today)
		if !ok {
			dash.Excluded++
			continue
		}
		if cls.DelayDays <= 0 {
			continue
		}
		latest, _ := LatestEvent(history)
		dash.Jobs = append(dash.Jobs, DelayedJob{
			JobNumber: job,
			EntryDate: cls.Intake.At,
			DueDate:   cls.DueDate,
			DelayDays: cls.DelayDays,
			Bucket:    cls.Bucket,
			Status:    latest.Status,
			Area:      latest.Area,
			User:      latest.User,
			Historial: SortChronological(history),
		})
	}

	sort.Slice(dash.Jobs, func(i, j int) bool {
		if dash.Jobs[i].DelayDays != dash.Jobs[j].DelayDays {
			return dash.Jobs[i].DelayDays > dash.Jobs[j].DelayDays
		}
		return dash.Jobs[i].JobNumber < dash.Jobs[j].JobNumber
	})
	dash.Summary = summarizeDelays(dash.Jobs)
	return dash
}

func summarizeDelays(jobs []DelayedJob) DelaySummary {
	s := DelaySummary{Count: len(jobs), ByBucket: make(map[DueBucket]int)}
	if len(jobs) == 0 {
		return s
	}
	sum := 0
	maxD, minD := jobs[0].DelayDays, jobs[0].DelayDays
	for _, j := range jobs {
		sum += j.DelayDays
		if j.DelayDays > maxD {
			maxD = j.DelayDays
		}
		if j.DelayDays < minD {
			minD = j.DelayDays
		}
		s.ByBucket[j.Bucket]++
	}
	avg := float64(sum) / float64(len(jobs))
	s.AverageDelay = &avg
	s.MaxDelay = &maxD
	s.MinDelay = &minD
	return s
}
