package queue

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"

	"scheduled-dispatch/internal/models"
)

// DefaultJobName is the name given to jobs enqueued without one.
const DefaultJobName = "send-message"

// State is where a job currently sits in the queue.
type State string

const (
	StateWaiting   State = "waiting"
	StateDelayed   State = "delayed"
	StateActive    State = "active"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Options control how a job is enqueued.
type Options struct {
	Name string
	// Delay postpones the first run; zero makes the job immediately runnable.
	Delay time.Duration
	// Priority orders runnable jobs; lower runs first.
	Priority int
	// Attempts caps executions; zero uses the queue default.
	Attempts int
}

// Job is a snapshot of a queued job.
type Job struct {
	ID           string
	Name         string
	Data         json.RawMessage
	State        State
	Priority     int
	Delay        time.Duration
	AttemptsMade int
	MaxAttempts  int
	StalledCount int
	LastError    string
	CreatedAt    time.Time
	RunAt        time.Time
	ProcessedAt  time.Time
	FinishedAt   time.Time
}

// Payload decodes the job data as a scheduled message.
func (j Job) Payload() (models.Payload, error) {
	var p models.Payload
	if err := json.Unmarshal(j.Data, &p); err != nil {
		return models.Payload{}, errors.Wrapf(err, "decode payload of job %s", j.ID)
	}
	return p, nil
}

func jobFromHash(id string, h map[string]string) Job {
	j := Job{
		ID:        id,
		Name:      h["name"],
		Data:      json.RawMessage(h["data"]),
		State:     State(h["state"]),
		LastError: h["last_error"],
	}
	j.Priority, _ = strconv.Atoi(h["priority"])
	j.AttemptsMade, _ = strconv.Atoi(h["attempts_made"])
	j.MaxAttempts, _ = strconv.Atoi(h["max_attempts"])
	j.StalledCount, _ = strconv.Atoi(h["stalled_count"])
	j.Delay = time.Duration(parseInt64(h["delay_ms"])) * time.Millisecond
	j.CreatedAt = msTime(h["created_at"])
	j.RunAt = msTime(h["run_at"])
	j.ProcessedAt = msTime(h["processed_on"])
	j.FinishedAt = msTime(h["finished_on"])
	return j
}

func parseInt64(s string) int64 {
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}

func msTime(s string) time.Time {
	ms := parseInt64(s)
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
