package engine

import "time"

// StatusIntake is the intake event that carries the due date.
const StatusIntake = "Digitacion"

var (
	// A job whose current status is one of these has left production.
	terminalStatuses = newStatusSet("En despacho", "Despacho - En despacho", "Despachado", "Bodega - Anulada")
	// Any of these anywhere in a history keeps the job out of the delayed pipeline.
	// "Despachado" is included so the pipeline check agrees with the terminal set.
	dispatchStatuses = newStatusSet("En despacho", "Despacho - En despacho", "Despachado")
)

// IsTerminal reports whether status ends the active pipeline.
func IsTerminal(status string) bool { return terminalStatuses.has(status) }

// IsIntake reports whether status is the intake event.
func IsIntake(status string) bool { return FoldStatus(status) == FoldStatus(StatusIntake) }

// InProcess reports whether the job's current status is non-terminal.
func InProcess(history []StatusEvent) bool {
	latest, ok := LatestEvent(history)
	return ok && !IsTerminal(latest.Status)
}

// QualifiesForPipeline reports whether a job belongs in the pending/delayed
// pipeline: in process, with an intake event and no dispatch-like event.
func QualifiesForPipeline(history []StatusEvent) bool {
	if !InProcess(history) {
		return false
	}
	hasIntake := false
	for _, ev := range history {
		if dispatchStatuses.has(ev.Status) {
			return false
		}
		if IsIntake(ev.Status) {
			hasIntake = true
		}
	}
	return hasIntake
}

// IntakeEvent returns the most recent intake event.
func IntakeEvent(history []StatusEvent) (StatusEvent, bool) {
	var intake []StatusEvent
	for _, ev := range history {
		if IsIntake(ev.Status) {
			intake = append(intake, ev)
		}
	}
	return LatestEvent(intake)
}

// DueDateOf reads the due date off the most recent intake event.
func DueDateOf(history []StatusEvent) (time.Time, StatusEvent, bool) {
	intake, ok := IntakeEvent(history)
	if !ok {
		return time.Time{}, StatusEvent{}, false
	}
	due, ok := ParseDueDate(intake.DueDate)
	if !ok {
		return time.Time{}, intake, false
	}
	return UTCMidnight(due.UTC), intake, true
}

// DueBucket classifies business-day distance from a due date
// (positive = overdue, negative = due ahead).
type DueBucket string

const (
	DueMoreThan10Days   DueBucket = "moreThan10Days"
	DueMoreThan6Days    DueBucket = "moreThan6Days"
	DueMoreThan2Days    DueBucket = "moreThan2Days"
	DueTwoDays          DueBucket = "twoDays"
	DueOneDay           DueBucket = "oneDay"
	DueToday            DueBucket = "today"
	DueTomorrow         DueBucket = "tomorrow"
	DueDayAfterTomorrow DueBucket = "dayAfterTomorrow"
	DueThreeDaysOrMore  DueBucket = "threeDaysOrMore"
)

// DueBuckets lists every due bucket from most overdue to furthest ahead.
var DueBuckets = []DueBucket{
	DueMoreThan10Days, DueMoreThan6Days, DueMoreThan2Days, DueTwoDays, DueOneDay,
	DueToday, DueTomorrow, DueDayAfterTomorrow, DueThreeDaysOrMore,
}

// ClassifyDue maps a due-date distance to its bucket.
func ClassifyDue(distance int) DueBucket {
	switch {
	case distance > 10:
		return DueMoreThan10Days
	case distance > 6:
		return DueMoreThan6Days
	case distance > 2:
		return DueMoreThan2Days
	case distance == 2:
		return DueTwoDays
	case distance == 1:
		return DueOneDay
	case distance == 0:
		return DueToday
	case distance == -1:
		return DueTomorrow
	case distance == -2:
		return DueDayAfterTomorrow
	default:
		return DueThreeDaysOrMore
	}
}

// DueClassification is the due-date axis result for one job.
type DueClassification struct {
	DueDate   time.Time   `json:"dueDate"`
	Intake    StatusEvent `json:"intake"`
	DelayDays int         `json:"delayDays"`
	Bucket    DueBucket   `json:"bucket"`
}

// ClassifyDelay buckets a job by its due date. ok is false when the job has
// no intake event or its due date does not parse.
func ClassifyDelay(history []StatusEvent, today time.Time) (DueClassification, bool) {
	due, intake, ok := DueDateOf(history)
	if !ok {
		return DueClassification{}, false
	}
	delay := BusinessDayDelay(due, today)
	return DueClassification{
		DueDate:   due,
		Intake:    intake,
		DelayDays: delay,
		Bucket:    ClassifyDue(delay),
	}, true
}

// AgingBucket classifies business days since a job was first seen. It is a
// separate axis from DueBucket with its own thresholds.
type AgingBucket string

const (
	AgeMoreThan10Days AgingBucket = "ageMoreThan10Days"
	AgeMoreThan6Days  AgingBucket = "ageMoreThan6Days"
	AgeMoreThan2Days  AgingBucket = "ageMoreThan2Days"
	AgeOneDay         AgingBucket = "ageOneDay"
	AgeToday          AgingBucket = "ageToday"
	AgeTomorrow       AgingBucket = "ageTomorrow"
	AgeBeyondFourDays AgingBucket = "ageBeyondFourDays"
	// AgeOther holds distances no threshold covers (2, -2, -3, -4).
	AgeOther AgingBucket = "ageOther"
)

// AgingBuckets lists every aging bucket in display order.
var AgingBuckets = []AgingBucket{
	AgeMoreThan10Days, AgeMoreThan6Days, AgeMoreThan2Days, AgeOneDay,
	AgeToday, AgeTomorrow, AgeBeyondFourDays, AgeOther,
}

// ClassifyAge maps business days since first seen to its bucket.
func ClassifyAge(distance int) AgingBucket {
	switch {
	case distance > 10:
		return AgeMoreThan10Days
	case distance > 6:
		return AgeMoreThan6Days
	case distance > 2:
		return AgeMoreThan2Days
	case distance == 1:
		return AgeOneDay
	case distance == 0:
		return AgeToday
	case distance == -1:
		return AgeTomorrow
	case distance < -4:
		return AgeBeyondFourDays
	default:
		return AgeOther
	}
}
