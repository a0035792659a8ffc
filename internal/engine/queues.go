package engine

import (
	"sort"
	"time"
)

// QueueJob is a pipeline job waiting in a due-date work queue.
type QueueJob struct {
	JobNumber string    `json:"jobNumber"`
	Status    string    `json:"status"`
	Area      string    `json:"area"`
	DueDate   time.Time `json:"dueDate"`
	Distance  int       `json:"distance"`
}

// DueQueues are the time-bounded work queues: every pipeline job with a due
// date, filed by due bucket and ordered by due date.
type DueQueues struct {
	Queues      map[DueBucket][]QueueJob `json:"queues"`
	Jobs        int                      `json:"jobs"`
	GeneratedAt time.Time                `json:"generatedAt"`
}

// BuildDueQueues files pipeline-qualified jobs under their due bucket.
func BuildDueQueues(events []StatusEvent, now time.Time) DueQueues {
	today := UTCMidnight(now)
	h := BuildHistories(events)
	q := DueQueues{
		Queues:      make(map[DueBucket][]QueueJob, len(DueBuckets)),
		GeneratedAt: today,
	}
	for _, b := range DueBuckets {
		q.Queues[b] = []QueueJob{}
	}
	for _, job := range h.Order {
		history := h.Jobs[job]
		if !QualifiesForPipeline(history) {
			continue
		}
		cls, ok := ClassifyDelay(history, today)
		if !ok {
			continue
		}
		latest, _ := LatestEvent(history)
		q.Queues[cls.Bucket] = append(q.Queues[cls.Bucket], QueueJob{
			JobNumber: job,
			Status:    latest.Status,
			Area:      latest.Area,
			DueDate:   cls.DueDate,
			Distance:  cls.DelayDays,
		})
		q.Jobs++
	}
	for _, jobs := range q.Queues {
		sort.Slice(jobs, func(i, j int) bool {
			if !jobs[i].DueDate.Equal(jobs[j].DueDate) {
				return jobs[i].DueDate.Before(jobs[j].DueDate)
			}
			return jobs[i].JobNumber < jobs[j].JobNumber
		})
	}
	return q
}
