package worker

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"scheduled-dispatch/internal/dispatch"
	"scheduled-dispatch/internal/models"
	"scheduled-dispatch/internal/queue"
	"scheduled-dispatch/internal/telemetry"
)

// Queue is the subset of the job queue the processor drives.
type Queue interface {
	PromoteDelayed(ctx context.Context, now time.Time, limit int64) (int, error)
	RequeueStalled(ctx context.Context, now time.Time, limit int64) (queue.Stalled, error)
	Reserve(ctx context.Context, now time.Time) (queue.Job, error)
	ExtendLease(ctx context.Context, id string, until time.Time) error
	Release(ctx context.Context, id string) error
	Complete(ctx context.Context, id string, now time.Time) error
	Retry(ctx context.Context, id string, runAt time.Time, reason string) error
	Fail(ctx context.Context, id string, now time.Time, reason string) error
	Get(ctx context.Context, id string) (queue.Job, error)
	Trim(ctx context.Context, now time.Time, r queue.Retention) (int, error)
	Counts(ctx context.Context) (queue.Counts, error)
}

// Dispatcher runs one attempt of a job and records exhausted schedules.
type Dispatcher interface {
	Run(ctx context.Context, attempt dispatch.Attempt, payload models.Payload) dispatch.Outcome
	HandleExhausted(ctx context.Context, attempt dispatch.Attempt, payload models.Payload, cause error) error
}

// Limiter throttles job starts across all workers.
type Limiter interface {
	Allow(ctx context.Context) (bool, time.Duration, error)
}

// Report describes how a job attempt ended.
type Report struct {
	Job     queue.Job
	Attempt dispatch.Attempt
	Outcome dispatch.Outcome
	// Final is true when the job will not run again.
	Final bool
}

// Observer callbacks run synchronously after each outcome. They may be called from several
// goroutines at once.
type Observer struct {
	OnCompleted func(ctx context.Context, r Report)
	OnFailed    func(ctx context.Context, r Report)
	OnStalled   func(ctx context.Context, jobID string)
}

// Options configure a Processor.
type Options struct {
	Queue      Queue
	Dispatcher Dispatcher
	// Limiter is optional.
	Limiter Limiter
	Logger  zerolog.Logger

	WorkerID     string
	Concurrency  int
	PollInterval time.Duration
	// Lease must match the queue visibility timeout; it is re-applied while a job waits on the limiter.
	Lease                time.Duration
	BatchSize            int64
	Retention            queue.Retention
	HousekeepingSchedule string
	Backoff              func(attempt int) time.Duration
	Observers            []Observer
	Now                  func() time.Time
}

// Processor drives the worker execution loop.
type Processor struct {
	queue        Queue
	dispatcher   Dispatcher
	limiter      Limiter
	log          zerolog.Logger
	concurrency  int
	pollInterval time.Duration
	lease        time.Duration
	batch        int64
	retention    queue.Retention
	housekeeping string
	backoff      func(int) time.Duration
	observers    []Observer
	now          func() time.Time

	mu           sync.Mutex
	lastMaintain time.Time
}

// NewProcessor builds a processor. Queue and Dispatcher are required.
func NewProcessor(opts Options) (*Processor, error) {
	if opts.Queue == nil || opts.Dispatcher == nil {
		return nil, errors.New("worker: queue and dispatcher are required")
	}
	p := &Processor{
		queue:        opts.Queue,
		dispatcher:   opts.Dispatcher,
		limiter:      opts.Limiter,
		log:          opts.Logger.With().Str("worker_id", opts.WorkerID).Logger(),
		concurrency:  opts.Concurrency,
		pollInterval: opts.PollInterval,
		lease:        opts.Lease,
		batch:        opts.BatchSize,
		retention:    opts.Retention,
		housekeeping: opts.HousekeepingSchedule,
		backoff:      opts.Backoff,
		observers:    opts.Observers,
		now:          opts.Now,
	}
	if p.concurrency <= 0 {
		p.concurrency = 10
	}
	if p.pollInterval <= 0 {
		p.pollInterval = time.Second
	}
	if p.lease <= 0 {
		p.lease = 90 * time.Second
	}
	if p.batch <= 0 {
		p.batch = 100
	}
	if p.backoff == nil {
		p.backoff = dispatch.Backoff
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p, nil
}

// Run pulls jobs until ctx is cancelled, then waits for in-flight jobs to finish.
func (p *Processor) Run(ctx context.Context) error {
	var sched *cron.Cron
	if p.housekeeping != "" {
		sched = cron.New()
		if _, err := sched.AddFunc(p.housekeeping, func() { p.Housekeep(ctx) }); err != nil {
			return errors.Wrapf(err, "housekeeping schedule %q", p.housekeeping)
		}
		sched.Start()
	}

	sem := semaphore.NewWeighted(int64(p.concurrency))
	var wg sync.WaitGroup

	p.log.Info().Int("concurrency", p.concurrency).Dur("lease", p.lease).Msg("worker started")
	for ctx.Err() == nil {
		p.maintain(ctx)

		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		job, err := p.queue.Reserve(ctx, p.now())
		if err != nil {
			sem.Release(1)
			if !errors.Is(err, queue.ErrJobNotFound) && ctx.Err() == nil {
				p.log.Error().Err(err).Msg("reserve job")
			}
			sleep(ctx, p.pollInterval)
			continue
		}

		wg.Add(1)
		go func(job queue.Job) {
			defer wg.Done()
			defer sem.Release(1)
			p.process(ctx, job)
		}(job)
	}

	p.log.Info().Msg("worker draining in-flight jobs")
	wg.Wait()
	if sched != nil {
		<-sched.Stop().Done()
	}
	p.log.Info().Msg("worker stopped")
	return nil
}

// maintain promotes due delayed jobs and reclaims expired leases, at most once per poll interval.
func (p *Processor) maintain(ctx context.Context) {
	p.mu.Lock()
	now := p.now()
	if now.Sub(p.lastMaintain) < p.pollInterval {
		p.mu.Unlock()
		return
	}
	p.lastMaintain = now
	p.mu.Unlock()

	if _, err := p.queue.PromoteDelayed(ctx, now, p.batch); err != nil && ctx.Err() == nil {
		p.log.Error().Err(err).Msg("promote delayed jobs")
	}
	stalled, err := p.queue.RequeueStalled(ctx, now, p.batch)
	if err != nil {
		if ctx.Err() == nil {
			p.log.Error().Err(err).Msg("requeue stalled jobs")
		}
		return
	}
	for _, id := range stalled.Requeued {
		p.log.Warn().Str("job_id", id).Msg("job lease expired, requeued")
		p.notifyStalled(ctx, id)
	}
	for _, id := range stalled.Failed {
		p.notifyStalled(ctx, id)
		p.failStalled(ctx, id)
	}
}

func (p *Processor) notifyStalled(ctx context.Context, id string) {
	telemetry.JobsStalled.Inc()
	for _, o := range p.observers {
		if o.OnStalled != nil {
			o.OnStalled(ctx, id)
		}
	}
}

// failStalled finishes a job the queue failed for stalling too often, the same way an exhausted
// retryable failure is finished.
func (p *Processor) failStalled(ctx context.Context, id string) {
	log := p.log.With().Str("job_id", id).Logger()
	job, err := p.queue.Get(ctx, id)
	if err != nil {
		log.Error().Err(err).Msg("load stalled job")
		return
	}
	attempt := dispatch.Attempt{JobID: id, Number: job.AttemptsMade + 1, MaxAttempts: job.MaxAttempts}
	out := dispatch.Outcome{Kind: dispatch.RetryableFailure, Err: queue.ErrStalledLimit}
	telemetry.JobsFailed.WithLabelValues(dispatch.FailureReason(out.Err)).Inc()
	log.Warn().Int("stalls", job.StalledCount).Msg("job stalled too often, failed")

	payload, err := job.Payload()
	if err != nil {
		log.Error().Err(err).Msg("decode stalled job")
	} else if err := p.dispatcher.HandleExhausted(ctx, attempt, payload, out.Err); err != nil {
		log.Error().Err(err).Msg("record exhausted schedule")
	}
	p.notify(ctx, Report{Job: job, Attempt: attempt, Outcome: out, Final: true}, false)
}

// Housekeep trims finished jobs and refreshes the queue depth gauges.
func (p *Processor) Housekeep(ctx context.Context) {
	now := p.now()
	if n, err := p.queue.Trim(ctx, now, p.retention); err != nil {
		p.log.Error().Err(err).Msg("trim finished jobs")
	} else if n > 0 {
		p.log.Debug().Int("removed", n).Msg("trimmed finished jobs")
	}
	counts, err := p.queue.Counts(ctx)
	if err != nil {
		p.log.Error().Err(err).Msg("count jobs")
		return
	}
	telemetry.QueueDepth.WithLabelValues(string(queue.StateWaiting)).Set(float64(counts.Waiting))
	telemetry.QueueDepth.WithLabelValues(string(queue.StateDelayed)).Set(float64(counts.Delayed))
	telemetry.QueueDepth.WithLabelValues(string(queue.StateActive)).Set(float64(counts.Active))
	telemetry.QueueDepth.WithLabelValues(string(queue.StateCompleted)).Set(float64(counts.Completed))
	telemetry.QueueDepth.WithLabelValues(string(queue.StateFailed)).Set(float64(counts.Failed))
}

// process runs one reserved job. Once started, a job is not cancelled by shutdown.
func (p *Processor) process(ctx context.Context, job queue.Job) {
	runCtx := context.WithoutCancel(ctx)
	telemetry.InFlightGauge.Inc()
	defer telemetry.InFlightGauge.Dec()

	if !p.waitForLimiter(ctx, job) {
		if err := p.queue.Release(runCtx, job.ID); err != nil {
			p.log.Error().Err(err).Str("job_id", job.ID).Msg("release job on shutdown")
		}
		return
	}

	attempt := dispatch.Attempt{
		JobID:       job.ID,
		Number:      job.AttemptsMade + 1,
		MaxAttempts: job.MaxAttempts,
	}
	payload, err := job.Payload()
	if err != nil {
		p.finish(runCtx, job, attempt, models.Payload{}, dispatch.Outcome{
			Kind:  dispatch.TerminalFailure,
			Stage: dispatch.StateValidating,
			Err:   &dispatch.ValidationError{Reasons: []string{err.Error()}},
		})
		return
	}
	out := p.dispatcher.Run(runCtx, attempt, payload)
	p.finish(runCtx, job, attempt, payload, out)
}

// waitForLimiter blocks until the limiter admits the job, keeping its lease alive. It returns
// false if ctx ends first. Limiter errors let the job through.
func (p *Processor) waitForLimiter(ctx context.Context, job queue.Job) bool {
	if p.limiter == nil {
		return true
	}
	for {
		allowed, retryAfter, err := p.limiter.Allow(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return false
			}
			p.log.Warn().Err(err).Str("job_id", job.ID).Msg("rate limiter unavailable")
			return true
		}
		if allowed {
			return true
		}
		telemetry.RateLimited.Inc()
		if err := p.queue.ExtendLease(ctx, job.ID, p.now().Add(retryAfter+p.lease)); err != nil && ctx.Err() == nil {
			p.log.Warn().Err(err).Str("job_id", job.ID).Msg("extend lease while throttled")
		}
		if !sleep(ctx, retryAfter) {
			return false
		}
	}
}

func (p *Processor) finish(ctx context.Context, job queue.Job, attempt dispatch.Attempt, payload models.Payload, out dispatch.Outcome) {
	log := p.log.With().Str("job_id", job.ID).Int("attempt", attempt.Number).Logger()
	now := p.now()
	report := Report{Job: job, Attempt: attempt, Outcome: out}

	switch {
	case out.Kind == dispatch.Success:
		if err := p.queue.Complete(ctx, job.ID, now); err != nil {
			if leaseLost(log, err) {
				return
			}
			log.Error().Err(err).Msg("complete job")
		}
		telemetry.JobsCompleted.Inc()
		report.Final = true
		p.notify(ctx, report, true)

	case out.Kind == dispatch.RetryableFailure && !attempt.Exhausted():
		wait := p.backoff(attempt.Number)
		if err := p.queue.Retry(ctx, job.ID, now.Add(wait), errorText(out.Err)); err != nil {
			if leaseLost(log, err) {
				return
			}
			log.Error().Err(err).Msg("schedule retry")
		}
		telemetry.JobsRetried.Inc()
		log.Info().Dur("backoff", wait).Str("reason", dispatch.FailureReason(out.Err)).Msg("retry scheduled")
		p.notify(ctx, report, false)

	default:
		if err := p.queue.Fail(ctx, job.ID, now, errorText(out.Err)); err != nil {
			if leaseLost(log, err) {
				return
			}
			log.Error().Err(err).Msg("fail job")
		}
		telemetry.JobsFailed.WithLabelValues(dispatch.FailureReason(out.Err)).Inc()
		if out.Kind == dispatch.RetryableFailure {
			if err := p.dispatcher.HandleExhausted(ctx, attempt, payload, out.Err); err != nil {
				log.Error().Err(err).Msg("record exhausted schedule")
			}
		}
		report.Final = true
		p.notify(ctx, report, false)
	}
}

func (p *Processor) notify(ctx context.Context, r Report, completed bool) {
	for _, o := range p.observers {
		switch {
		case completed && o.OnCompleted != nil:
			o.OnCompleted(ctx, r)
		case !completed && o.OnFailed != nil:
			o.OnFailed(ctx, r)
		}
	}
}

// leaseLost reports whether the job was reclaimed while this worker ran it. The reclaimed copy
// owns the job from then on, so this outcome is dropped.
func leaseLost(log zerolog.Logger, err error) bool {
	if !errors.Is(err, queue.ErrLeaseLost) {
		return false
	}
	log.Warn().Err(err).Msg("lease expired before the job finished, outcome dropped")
	return true
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// sleep waits for d or until ctx ends. It reports whether the full duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
