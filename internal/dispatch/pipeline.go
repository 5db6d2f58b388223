// Package dispatch runs one attempt of a scheduled message: it checks the user's live gateway
// connection, resolves the server hosting the session, sends the message, records the result
// and enqueues the next occurrence of recurring schedules.
package dispatch

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"scheduled-dispatch/internal/gateway"
	"scheduled-dispatch/internal/models"
	"scheduled-dispatch/internal/queue"
	"scheduled-dispatch/internal/telemetry"
)

// ConnectionResolver finds the live gateway session of a user.
type ConnectionResolver interface {
	ResolveConnection(ctx context.Context, userMobile string) (models.Connection, error)
}

// EndpointResolver finds the server currently hosting a session.
type EndpointResolver interface {
	ResolveEndpointDomain(ctx context.Context, sessionName string) (models.SessionEndpoint, bool, error)
}

// StatusRecorder persists the status of a schedule.
type StatusRecorder interface {
	UpdateScheduleStatus(ctx context.Context, scheduleID int64, status models.ScheduleStatus, logs *string) (bool, error)
}

// Sender performs the outbound gateway calls.
type Sender interface {
	SendText(ctx context.Context, endpoint string, msg gateway.TextMessage) (gateway.Result, error)
	SendFile(ctx context.Context, endpoint string, msg gateway.FileMessage) (gateway.Result, error)
}

// Enqueuer publishes follow-up jobs.
type Enqueuer interface {
	Enqueue(ctx context.Context, id string, data any, opts queue.Options) error
}

// MediaResolver turns a stored attachment reference into a URL the gateway can fetch.
type MediaResolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

// State is a step of a pipeline run.
type State string

const (
	StateValidating           State = "validating"
	StateCheckingConnection   State = "checking-connection"
	StateResolvingEndpoint    State = "resolving-endpoint"
	StateSending              State = "sending"
	StateRecording            State = "recording"
	StateCompleted            State = "completed"
	StateSchedulingRetry      State = "scheduling-retry"
	StateSchedulingRecurrence State = "scheduling-recurrence"
	StateTerminallyFailed     State = "terminally-failed"
)

// OutcomeKind classifies the result of a run.
type OutcomeKind int

const (
	Success OutcomeKind = iota
	RetryableFailure
	TerminalFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case Success:
		return "success"
	case RetryableFailure:
		return "retryable-failure"
	case TerminalFailure:
		return "terminal-failure"
	default:
		return "unknown"
	}
}

// Attempt identifies one execution of a queued job.
type Attempt struct {
	JobID string
	// Number is 1-indexed.
	Number      int
	MaxAttempts int
}

// Exhausted reports whether no attempt follows this one.
func (a Attempt) Exhausted() bool {
	return a.MaxAttempts > 0 && a.Number >= a.MaxAttempts
}

// ResolvedContext is computed on every attempt and never persisted.
type ResolvedContext struct {
	SessionName string
	Domain      string
	Endpoint    string
	MimeType    string
}

// Outcome is the result of one run.
type Outcome struct {
	Kind OutcomeKind
	// Stage is the step the run stopped in: the failing step, or StateRecording on success.
	Stage    State
	Err      error
	Context  ResolvedContext
	Delivery gateway.Result
	// Next is set when a recurring schedule was re-enqueued as NextJobID.
	Next      *Occurrence
	NextJobID string
}

// Final is the terminal state a run leads to before the queue applies the attempt budget.
func (o Outcome) Final() State {
	switch o.Kind {
	case Success:
		if o.Next != nil {
			return StateSchedulingRecurrence
		}
		return StateCompleted
	case RetryableFailure:
		return StateSchedulingRetry
	default:
		return StateTerminallyFailed
	}
}

// Options wires a Pipeline to its collaborators.
type Options struct {
	Connections ConnectionResolver
	Endpoints   EndpointResolver
	Statuses    StatusRecorder
	Sender      Sender
	Enqueuer    Enqueuer
	// Media is optional; without it attachment references are sent as-is.
	Media  MediaResolver
	Logger zerolog.Logger
	Now    func() time.Time
}

// Pipeline is safe for concurrent use; it holds no per-job state.
type Pipeline struct {
	connections ConnectionResolver
	endpoints   EndpointResolver
	statuses    StatusRecorder
	sender      Sender
	enqueuer    Enqueuer
	media       MediaResolver
	log         zerolog.Logger
	now         func() time.Time
}

// NewPipeline validates the wiring and builds a Pipeline.
func NewPipeline(opts Options) (*Pipeline, error) {
	switch {
	case opts.Connections == nil:
		return nil, errors.New("dispatch: connection resolver is required")
	case opts.Endpoints == nil:
		return nil, errors.New("dispatch: endpoint resolver is required")
	case opts.Statuses == nil:
		return nil, errors.New("dispatch: status recorder is required")
	case opts.Sender == nil:
		return nil, errors.New("dispatch: sender is required")
	case opts.Enqueuer == nil:
		return nil, errors.New("dispatch: enqueuer is required")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		connections: opts.Connections,
		endpoints:   opts.Endpoints,
		statuses:    opts.Statuses,
		sender:      opts.Sender,
		enqueuer:    opts.Enqueuer,
		media:       opts.Media,
		log:         opts.Logger,
		now:         now,
	}, nil
}

// Run executes one attempt. Connection and endpoint are looked up on every call, never cached.
func (p *Pipeline) Run(ctx context.Context, attempt Attempt, payload models.Payload) Outcome {
	log := p.log.With().
		Str("job_id", attempt.JobID).
		Int64("schedule_id", payload.ScheduleID).
		Int("attempt", attempt.Number).
		Logger()

	out := Outcome{Stage: StateValidating}
	log.Debug().Time("scheduled_at", payload.ScheduledAt()).Bool("recurring", payload.IsRecurring).Msg("attempt started")
	if err := Validate(payload); err != nil {
		log.Warn().Err(err).Msg("rejecting invalid payload")
		out.Kind = TerminalFailure
		out.Err = err
		return out
	}

	out.Stage = StateCheckingConnection
	conn, err := p.connections.ResolveConnection(ctx, payload.UserMobile)
	if err != nil {
		return out.retry(log, errors.Wrap(err, "resolve connection"))
	}
	if !conn.Connected || conn.SessionName == "" {
		return out.retry(log, errors.Wrapf(ErrNotConnected, "user %s", payload.UserMobile))
	}
	out.Context.SessionName = conn.SessionName

	out.Stage = StateResolvingEndpoint
	ep, found, err := p.endpoints.ResolveEndpointDomain(ctx, conn.SessionName)
	if err != nil {
		return out.retry(log, errors.Wrap(err, "resolve endpoint"))
	}
	if !found || ep.Domain == "" {
		return out.retry(log, errors.Wrapf(ErrNoEndpointMapping, "session %s", conn.SessionName))
	}
	out.Context.Domain = ep.Domain

	out.Stage = StateSending
	out.Delivery, err = p.send(ctx, payload, &out.Context)
	if err != nil {
		return out.retry(log, err)
	}

	out.Stage = StateRecording
	updated, err := p.statuses.UpdateScheduleStatus(ctx, payload.ScheduleID, models.StatusSent, nil)
	if err != nil {
		return out.retry(log, errors.Wrap(err, "record sent status"))
	}
	if !updated {
		log.Warn().Msg("schedule row missing while recording sent status")
	}

	out.Kind = Success
	log.Info().
		Str("session", out.Context.SessionName).
		Str("endpoint", out.Context.Endpoint).
		Int("status", out.Delivery.StatusCode).
		Msg("message sent")

	if payload.IsRecurring {
		p.scheduleNext(ctx, log, payload, &out)
	}
	return out
}

func (o Outcome) retry(log zerolog.Logger, err error) Outcome {
	o.Kind = RetryableFailure
	o.Err = err
	log.Warn().Err(err).Str("stage", string(o.Stage)).Msg("attempt failed")
	return o
}

func (p *Pipeline) send(ctx context.Context, payload models.Payload, rc *ResolvedContext) (gateway.Result, error) {
	if !payload.HasFile() {
		rc.Endpoint = gateway.TextURL(rc.Domain)
		start := time.Now()
		res, err := p.sender.SendText(ctx, rc.Endpoint, gateway.TextMessage{
			ChatID:                 payload.Recipient,
			Text:                   payload.Content,
			LinkPreview:            true,
			LinkPreviewHighQuality: false,
			Session:                rc.SessionName,
		})
		telemetry.SendDuration.WithLabelValues("text").Observe(time.Since(start).Seconds())
		if err != nil {
			return res, &SendError{Endpoint: rc.Endpoint, Err: err}
		}
		return res, nil
	}

	route := gateway.RouteFile(payload.ScheduledFileName, rc.Domain)
	rc.Endpoint = route.URL
	rc.MimeType = route.MimeType

	fileURL := payload.ScheduledFile
	if p.media != nil {
		resolved, err := p.media.Resolve(ctx, payload.ScheduledFile)
		if err != nil {
			return gateway.Result{}, &SendError{Endpoint: rc.Endpoint, Err: err}
		}
		fileURL = resolved
	}

	start := time.Now()
	res, err := p.sender.SendFile(ctx, rc.Endpoint, gateway.FileMessage{
		ChatID: payload.Recipient,
		File: gateway.File{
			Mimetype: route.MimeType,
			Filename: payload.ScheduledFileName,
			URL:      fileURL,
		},
		Caption: payload.Content,
		Session: rc.SessionName,
	})
	telemetry.SendDuration.WithLabelValues(string(route.Category)).Observe(time.Since(start).Seconds())
	if err != nil {
		return res, &SendError{Endpoint: rc.Endpoint, Err: err}
	}
	return res, nil
}

// scheduleNext enqueues the following occurrence. Failures here are logged and never fail
// the occurrence that was already delivered.
func (p *Pipeline) scheduleNext(ctx context.Context, log zerolog.Logger, payload models.Payload, out *Outcome) {
	now := p.now()
	occ, stop := NextOccurrence(payload, now)
	switch stop {
	case Continue:
	case StopInvalidInterval:
		log.Error().Int64("interval_ms", payload.RecurrenceInterval).Msg("invalid recurrence interval, recurrence stopped")
		return
	default:
		log.Info().Str("reason", string(stop)).Msg("recurring schedule finished")
		return
	}

	jobID := NewJobID(payload.ScheduleID, now)
	err := p.enqueuer.Enqueue(ctx, jobID, occ.Payload, queue.Options{
		Delay:    occ.Delay,
		Priority: occ.Priority,
	})
	if err != nil {
		log.Error().Err(err).Str("next_job_id", jobID).Msg("failed to enqueue next occurrence")
		return
	}
	telemetry.RecurrencesEnqueued.Inc()

	out.Next = &occ
	out.NextJobID = jobID
	evt := log.Info().
		Str("next_job_id", jobID).
		Dur("next_in", occ.Delay).
		Int("priority", occ.Priority)
	if occ.Payload.RepeatingTimes != nil {
		evt = evt.Int("remaining", *occ.Payload.RepeatingTimes)
	}
	evt.Msg("recurring message re-queued")
}

// HandleExhausted records the schedule as failed once no attempts remain. cause is the error
// of the last attempt.
func (p *Pipeline) HandleExhausted(ctx context.Context, attempt Attempt, payload models.Payload, cause error) error {
	msg := "Unknown error after all retries"
	if cause != nil {
		msg = cause.Error()
	}
	if _, err := p.statuses.UpdateScheduleStatus(ctx, payload.ScheduleID, models.StatusFailed, &msg); err != nil {
		return errors.Wrapf(err, "record failed status for schedule %d", payload.ScheduleID)
	}
	p.log.Error().
		Str("job_id", attempt.JobID).
		Int64("schedule_id", payload.ScheduleID).
		Int("attempts", attempt.Number).
		Str("reason", msg).
		Msg("schedule failed after all retries")
	return nil
}
