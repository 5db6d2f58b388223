package dispatch

import (
	"time"

	"scheduled-dispatch/internal/models"
)

// StopReason explains why a recurring schedule produced no next occurrence.
type StopReason string

const (
	Continue             StopReason = ""
	StopNotRecurring     StopReason = "not-recurring"
	StopRepetitionsSpent StopReason = "repetitions-exhausted"
	StopEndTimeReached   StopReason = "end-time-reached"
	StopInvalidInterval  StopReason = "invalid-interval"
)

// Occurrence is the next run of a recurring schedule.
type Occurrence struct {
	Payload  models.Payload
	Delay    time.Duration
	Priority int
}

// NextOccurrence computes the run that follows p at now. Stop conditions are checked in order:
// remaining repetitions, end time, interval.
func NextOccurrence(p models.Payload, now time.Time) (Occurrence, StopReason) {
	rec, ok := p.Recurrence()
	if !ok {
		return Occurrence{}, StopNotRecurring
	}
	if rec.Remaining != nil && *rec.Remaining <= 1 {
		return Occurrence{}, StopRepetitionsSpent
	}
	if !rec.EndsAt.IsZero() && !now.Before(rec.EndsAt) {
		return Occurrence{}, StopEndTimeReached
	}
	if rec.Interval <= 0 {
		return Occurrence{}, StopInvalidInterval
	}

	next := p.Clone()
	next.ScheduledTime = now.Add(rec.Interval).UnixMilli()
	if next.RepeatingTimes != nil {
		*next.RepeatingTimes--
	}
	prev := now.UnixMilli()
	next.PreviousExecutionTime = &prev

	return Occurrence{
		Payload:  next,
		Delay:    rec.Interval,
		Priority: Priority(rec.Interval),
	}, Continue
}
