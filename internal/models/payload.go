package models

import (
	"time"
)

// Payload is the job body published onto the scheduled-messages queue.
//
// sessionName, apiEndpoint and domain may appear on the wire from older publishers; they have no
// field here so they are dropped on decode. Routing is always resolved at send time.
type Payload struct {
	EventType      string `json:"eventType,omitempty"`
	ScheduleID     int64  `json:"scheduleId"`
	WorkspaceID    int64  `json:"workspaceId,omitempty"`
	UserMobile     string `json:"userMobile"`
	Recipient      string `json:"recipient"`
	CustomerMobile string `json:"customerMobile,omitempty"`
	CustomerName   string `json:"customerName,omitempty"`
	Content        string `json:"content,omitempty"`

	// ScheduledTime is epoch milliseconds.
	ScheduledTime int64 `json:"scheduledTime"`

	IsRecurring bool `json:"isRecurring"`
	// RecurrenceInterval is milliseconds between occurrences.
	RecurrenceInterval int64 `json:"recurrenceInterval,omitempty"`
	// RepeatingTimes counts the occurrences left including the current one; nil is unbounded.
	RepeatingTimes *int `json:"repeatingTimes"`
	// EndTime is epoch milliseconds; nil or zero means no end.
	EndTime *int64 `json:"endTime"`

	ScheduledFile     string `json:"scheduledFile,omitempty"`
	ScheduledFileName string `json:"scheduledFileName,omitempty"`

	CreatedAt             int64  `json:"createdAt,omitempty"`
	PreviousExecutionTime *int64 `json:"previousExecutionTime,omitempty"`
}

// Recurrence is the recurring part of a payload. It only exists when IsRecurring is set.
type Recurrence struct {
	Interval time.Duration
	// Remaining is nil for an unbounded schedule.
	Remaining *int
	// EndsAt is the zero time when the schedule has no end.
	EndsAt time.Time
}

// Recurrence returns the recurrence settings, or false for one-off payloads.
func (p Payload) Recurrence() (Recurrence, bool) {
	if !p.IsRecurring {
		return Recurrence{}, false
	}
	r := Recurrence{
		Interval:  time.Duration(p.RecurrenceInterval) * time.Millisecond,
		Remaining: p.RepeatingTimes,
	}
	if p.EndTime != nil && *p.EndTime > 0 {
		r.EndsAt = time.UnixMilli(*p.EndTime)
	}
	return r, true
}

// HasFile reports whether the payload carries an attachment.
func (p Payload) HasFile() bool {
	return p.ScheduledFile != ""
}

// ScheduledAt converts ScheduledTime to a time.Time.
func (p Payload) ScheduledAt() time.Time {
	return time.UnixMilli(p.ScheduledTime)
}

// Clone returns a deep copy so pointer fields can be changed independently.
func (p Payload) Clone() Payload {
	out := p
	if p.RepeatingTimes != nil {
		v := *p.RepeatingTimes
		out.RepeatingTimes = &v
	}
	if p.EndTime != nil {
		v := *p.EndTime
		out.EndTime = &v
	}
	if p.PreviousExecutionTime != nil {
		v := *p.PreviousExecutionTime
		out.PreviousExecutionTime = &v
	}
	return out
}
