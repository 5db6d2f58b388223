// Package queue is a Redis-backed delayed, prioritized job queue with leases, retries and
// retention of finished jobs.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"

	"scheduled-dispatch/internal/config"
)

var (
	// ErrJobNotFound is returned when a job id has no record.
	ErrJobNotFound = errors.New("job not found")
	// ErrDuplicateJob is returned by Enqueue when the id is already taken.
	ErrDuplicateJob = errors.New("job id already exists")
	// ErrLeaseLost is returned when a job is finished by a worker whose lease was reclaimed.
	ErrLeaseLost = errors.New("job lease lost")
	// ErrStalledLimit is the failure reason of jobs reclaimed more than MaxStalled times.
	ErrStalledLimit = errors.New("job stalled more than allowable limit")
)

// priorityStride separates priority bands in the wait set; epoch millis fit below it.
const priorityStride = int64(10_000_000_000_000)

// Settings configure a RedisQueue.
type Settings struct {
	Name              string
	VisibilityTimeout time.Duration
	DefaultAttempts   int
	// MaxStalled is how often an expired lease may be reclaimed before the job fails. Zero means 1.
	MaxStalled int
}

// Retention bounds how long finished jobs are kept for inspection.
type Retention struct {
	CompletedAge   time.Duration
	CompletedCount int
	FailedAge      time.Duration
}

// Counts is the number of jobs per state.
type Counts struct {
	Waiting   int64 `json:"waiting"`
	Delayed   int64 `json:"delayed"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// RedisQueue coordinates waiting, delayed, active and finished job sets in Redis.
type RedisQueue struct {
	client        *redis.Client
	name          string
	jobPrefix     string
	waitKey       string
	delayedKey    string
	activeKey     string
	completedKey  string
	failedKey     string
	visibilityTTL time.Duration
	attempts      int
	maxStalled    int
}

// NewRedisClient builds a client from config.
func NewRedisClient(cfg config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

// NewRedisQueue builds a queue named settings.Name on client.
func NewRedisQueue(client *redis.Client, settings Settings) *RedisQueue {
	name := settings.Name
	if name == "" {
		name = "scheduled-messages"
	}
	visibility := settings.VisibilityTimeout
	if visibility == 0 {
		visibility = 90 * time.Second
	}
	attempts := settings.DefaultAttempts
	if attempts <= 0 {
		attempts = 3
	}
	maxStalled := settings.MaxStalled
	if maxStalled <= 0 {
		maxStalled = 1
	}
	base := "dispatch:" + name + ":"
	return &RedisQueue{
		client:        client,
		name:          name,
		jobPrefix:     base + "job:",
		waitKey:       base + "wait",
		delayedKey:    base + "delayed",
		activeKey:     base + "active",
		completedKey:  base + "completed",
		failedKey:     base + "failed",
		visibilityTTL: visibility,
		attempts:      attempts,
		maxStalled:    maxStalled,
	}
}

// Name is the queue name.
func (q *RedisQueue) Name() string { return q.name }

// VisibilityTimeout is the lease granted by Reserve.
func (q *RedisQueue) VisibilityTimeout() time.Duration { return q.visibilityTTL }

func (q *RedisQueue) jobKey(id string) string {
	return q.jobPrefix + id
}

func waitScore(priority int, runAt time.Time) string {
	return strconv.FormatInt(int64(priority)*priorityStride+runAt.UnixMilli(), 10)
}

func ms(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// Enqueue stores data under id. A positive delay parks the job in the delayed set.
func (q *RedisQueue) Enqueue(ctx context.Context, id string, data any, opts Options) error {
	if id == "" {
		return errors.New("enqueue: empty job id")
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return errors.Wrapf(err, "encode job %s", id)
	}
	name := opts.Name
	if name == "" {
		name = DefaultJobName
	}
	attempts := opts.Attempts
	if attempts <= 0 {
		attempts = q.attempts
	}
	now := time.Now()
	runAt := now
	state := StateWaiting
	if opts.Delay > 0 {
		runAt = now.Add(opts.Delay)
		state = StateDelayed
	}

	res, err := enqueueScript.Run(ctx, q.client,
		[]string{q.jobKey(id), q.waitKey, q.delayedKey},
		id, name, string(raw), opts.Priority, opts.Delay.Milliseconds(), attempts,
		ms(now), ms(runAt), waitScore(opts.Priority, runAt), string(state),
	).Int()
	if err != nil {
		return errors.Wrapf(err, "enqueue job %s", id)
	}
	if res == 0 {
		return errors.Wrapf(ErrDuplicateJob, "enqueue job %s", id)
	}
	return nil
}

// PromoteDelayed moves due delayed jobs into the wait set. It returns how many were promoted.
func (q *RedisQueue) PromoteDelayed(ctx context.Context, now time.Time, limit int64) (int, error) {
	n, err := promoteScript.Run(ctx, q.client, []string{q.delayedKey, q.waitKey}, q.jobPrefix, ms(now), limit).Int()
	if err != nil {
		return 0, errors.Wrap(err, "promote delayed jobs")
	}
	return n, nil
}

// Reserve takes the highest-priority waiting job and leases it until now plus the visibility
// timeout. It returns ErrJobNotFound when nothing is waiting.
func (q *RedisQueue) Reserve(ctx context.Context, now time.Time) (Job, error) {
	id, err := reserveScript.Run(ctx, q.client, []string{q.waitKey, q.activeKey},
		q.jobPrefix, ms(now.Add(q.visibilityTTL)), ms(now)).Text()
	if errors.Is(err, redis.Nil) {
		return Job{}, ErrJobNotFound
	}
	if err != nil {
		return Job{}, errors.Wrap(err, "reserve job")
	}
	return q.Get(ctx, id)
}

// ExtendLease pushes the visibility deadline of an active job to until.
func (q *RedisQueue) ExtendLease(ctx context.Context, id string, until time.Time) error {
	if err := q.client.ZScore(ctx, q.activeKey, id).Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return errors.Wrapf(ErrJobNotFound, "extend lease of %s", id)
		}
		return errors.Wrapf(err, "extend lease of %s", id)
	}
	return q.client.ZAddXX(ctx, q.activeKey, redis.Z{Score: float64(until.UnixMilli()), Member: id}).Err()
}

// Release returns an active job to the wait set without counting an attempt.
func (q *RedisQueue) Release(ctx context.Context, id string) error {
	if _, err := releaseScript.Run(ctx, q.client, []string{q.activeKey, q.waitKey, q.jobKey(id)}, id).Int(); err != nil {
		return errors.Wrapf(err, "release job %s", id)
	}
	return nil
}

// Complete records a successful attempt.
func (q *RedisQueue) Complete(ctx context.Context, id string, now time.Time) error {
	return q.move(ctx, id, q.completedKey, StateCompleted, ms(now), "", "finished_on", ms(now))
}

// Retry records a failed attempt and parks the job until runAt.
func (q *RedisQueue) Retry(ctx context.Context, id string, runAt time.Time, reason string) error {
	job, err := q.Get(ctx, id)
	if err != nil {
		return err
	}
	return q.move(ctx, id, q.delayedKey, StateDelayed, ms(runAt), reason,
		"run_at", ms(runAt), "wait_score", waitScore(job.Priority, runAt))
}

// Fail records a final failed attempt.
func (q *RedisQueue) Fail(ctx context.Context, id string, now time.Time, reason string) error {
	return q.move(ctx, id, q.failedKey, StateFailed, ms(now), reason, "finished_on", ms(now))
}

func (q *RedisQueue) move(ctx context.Context, id, target string, state State, score, reason string, fields ...string) error {
	args := make([]any, 0, 4+len(fields))
	args = append(args, id, string(state), score, reason)
	for _, f := range fields {
		args = append(args, f)
	}
	n, err := moveScript.Run(ctx, q.client, []string{q.activeKey, target, q.jobKey(id)}, args...).Int()
	if err != nil {
		return errors.Wrapf(err, "move job %s to %s", id, state)
	}
	switch n {
	case 0:
		return errors.Wrapf(ErrJobNotFound, "move job %s to %s", id, state)
	case -1:
		return errors.Wrapf(ErrLeaseLost, "move job %s to %s", id, state)
	}
	return nil
}

// Stalled lists the jobs reclaimed from expired leases.
type Stalled struct {
	// Requeued jobs are runnable again.
	Requeued []string
	// Failed jobs exceeded the stall limit and were moved to the failed set.
	Failed []string
}

// RequeueStalled reclaims jobs whose lease expired before now. A job is returned to the wait set
// until it has stalled more than MaxStalled times; after that it fails with ErrStalledLimit.
func (q *RedisQueue) RequeueStalled(ctx context.Context, now time.Time, limit int64) (Stalled, error) {
	res, err := requeueStalledScript.Run(ctx, q.client,
		[]string{q.activeKey, q.waitKey, q.failedKey},
		q.jobPrefix, ms(now), limit, q.maxStalled, ErrStalledLimit.Error(),
	).Slice()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Stalled{}, nil
		}
		return Stalled{}, errors.Wrap(err, "requeue stalled jobs")
	}
	var out Stalled
	if len(res) > 0 {
		out.Requeued = stringsOf(res[0])
	}
	if len(res) > 1 {
		out.Failed = stringsOf(res[1])
	}
	return out, nil
}

func stringsOf(v any) []string {
	items, _ := v.([]any)
	out := make([]string, 0, len(items))
	for _, item := range items {
		if id, ok := item.(string); ok {
			out = append(out, id)
		}
	}
	return out
}

// Get loads a job by id.
func (q *RedisQueue) Get(ctx context.Context, id string) (Job, error) {
	h, err := q.client.HGetAll(ctx, q.jobKey(id)).Result()
	if err != nil {
		return Job{}, errors.Wrapf(err, "load job %s", id)
	}
	if len(h) == 0 {
		return Job{}, errors.Wrapf(ErrJobNotFound, "load job %s", id)
	}
	return jobFromHash(id, h), nil
}

// Counts returns the size of every state set.
func (q *RedisQueue) Counts(ctx context.Context) (Counts, error) {
	pipe := q.client.Pipeline()
	waiting := pipe.ZCard(ctx, q.waitKey)
	delayed := pipe.ZCard(ctx, q.delayedKey)
	active := pipe.ZCard(ctx, q.activeKey)
	completed := pipe.ZCard(ctx, q.completedKey)
	failed := pipe.ZCard(ctx, q.failedKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return Counts{}, errors.Wrap(err, "count jobs")
	}
	return Counts{
		Waiting:   waiting.Val(),
		Delayed:   delayed.Val(),
		Active:    active.Val(),
		Completed: completed.Val(),
		Failed:    failed.Val(),
	}, nil
}

type jobRefs struct {
	ID          json.Number `json:"id"`
	ScheduleID  json.Number `json:"scheduleId"`
	WorkspaceID json.Number `json:"workspaceId"`
}

// FindBySchedule lists pending jobs (delayed, waiting or active) that belong to a schedule.
func (q *RedisQueue) FindBySchedule(ctx context.Context, scheduleID int64) ([]Job, error) {
	want := strconv.FormatInt(scheduleID, 10)
	prefix := fmt.Sprintf("schedule-%s-", want)
	return q.findPending(ctx, func(j Job, refs jobRefs) bool {
		return strings.Contains(j.ID, prefix) || refs.ScheduleID.String() == want || refs.ID.String() == want
	})
}

// FindByWorkspace lists pending jobs that belong to a workspace.
func (q *RedisQueue) FindByWorkspace(ctx context.Context, workspaceID int64) ([]Job, error) {
	want := strconv.FormatInt(workspaceID, 10)
	return q.findPending(ctx, func(_ Job, refs jobRefs) bool {
		return refs.WorkspaceID.String() == want
	})
}

func (q *RedisQueue) findPending(ctx context.Context, match func(Job, jobRefs) bool) ([]Job, error) {
	pipe := q.client.Pipeline()
	sets := []*redis.StringSliceCmd{
		pipe.ZRange(ctx, q.delayedKey, 0, -1),
		pipe.ZRange(ctx, q.waitKey, 0, -1),
		pipe.ZRange(ctx, q.activeKey, 0, -1),
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, errors.Wrap(err, "list pending jobs")
	}
	var ids []string
	for _, cmd := range sets {
		ids = append(ids, cmd.Val()...)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe = q.client.Pipeline()
	hashes := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		hashes[i] = pipe.HGetAll(ctx, q.jobKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, errors.Wrap(err, "load pending jobs")
	}

	var out []Job
	for i, cmd := range hashes {
		h := cmd.Val()
		if len(h) == 0 {
			continue
		}
		job := jobFromHash(ids[i], h)
		var refs jobRefs
		// Foreign payload shapes only lose the data match; the id match still applies.
		_ = json.Unmarshal(job.Data, &refs)
		if match(job, refs) {
			out = append(out, job)
		}
	}
	return out, nil
}

// Remove deletes a job from every set. It reports whether the job existed.
func (q *RedisQueue) Remove(ctx context.Context, id string) (bool, error) {
	pipe := q.client.TxPipeline()
	for _, key := range []string{q.waitKey, q.delayedKey, q.activeKey, q.completedKey, q.failedKey} {
		pipe.ZRem(ctx, key, id)
	}
	del := pipe.Del(ctx, q.jobKey(id))
	if _, err := pipe.Exec(ctx); err != nil {
		return false, errors.Wrapf(err, "remove job %s", id)
	}
	return del.Val() > 0, nil
}

// Trim drops finished jobs outside the retention window. It returns how many were dropped.
func (q *RedisQueue) Trim(ctx context.Context, now time.Time, r Retention) (int, error) {
	var doomed []string
	collect := func(key string, age time.Duration) error {
		if age <= 0 {
			return nil
		}
		ids, err := q.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{
			Min: "-inf",
			Max: ms(now.Add(-age)),
		}).Result()
		if err != nil {
			return errors.Wrapf(err, "scan %s", key)
		}
		if len(ids) > 0 {
			if err := q.client.ZRem(ctx, key, toAny(ids)...).Err(); err != nil {
				return errors.Wrapf(err, "trim %s", key)
			}
		}
		doomed = append(doomed, ids...)
		return nil
	}
	if err := collect(q.completedKey, r.CompletedAge); err != nil {
		return 0, err
	}
	if err := collect(q.failedKey, r.FailedAge); err != nil {
		return 0, err
	}

	if r.CompletedCount > 0 {
		total, err := q.client.ZCard(ctx, q.completedKey).Result()
		if err != nil {
			return 0, errors.Wrap(err, "count completed jobs")
		}
		if excess := total - int64(r.CompletedCount); excess > 0 {
			ids, err := q.client.ZRange(ctx, q.completedKey, 0, excess-1).Result()
			if err != nil {
				return 0, errors.Wrap(err, "scan completed jobs")
			}
			if err := q.client.ZRem(ctx, q.completedKey, toAny(ids)...).Err(); err != nil {
				return 0, errors.Wrap(err, "trim completed jobs")
			}
			doomed = append(doomed, ids...)
		}
	}
	if len(doomed) == 0 {
		return 0, nil
	}

	pipe := q.client.TxPipeline()
	for _, id := range doomed {
		pipe.Del(ctx, q.jobKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, errors.Wrap(err, "delete trimmed jobs")
	}
	return len(doomed), nil
}

// Ping checks the Redis connection.
func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

func toAny(ids []string) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

var enqueueScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1],
  'name', ARGV[2], 'data', ARGV[3], 'priority', ARGV[4], 'delay_ms', ARGV[5],
  'max_attempts', ARGV[6], 'attempts_made', '0', 'created_at', ARGV[7],
  'run_at', ARGV[8], 'wait_score', ARGV[9], 'state', ARGV[10])
if ARGV[10] == 'delayed' then
  redis.call('ZADD', KEYS[3], ARGV[8], ARGV[1])
else
  redis.call('ZADD', KEYS[2], ARGV[9], ARGV[1])
end
return 1
`)

var promoteScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[2], 'LIMIT', 0, tonumber(ARGV[3]))
for _, id in ipairs(ids) do
  redis.call('ZREM', KEYS[1], id)
  local key = ARGV[1] .. id
  local score = redis.call('HGET', key, 'wait_score')
  if score then
    redis.call('HSET', key, 'state', 'waiting')
    redis.call('ZADD', KEYS[2], score, id)
  end
end
return #ids
`)

var reserveScript = redis.NewScript(`
while true do
  local ids = redis.call('ZRANGE', KEYS[1], 0, 0)
  if #ids == 0 then
    return false
  end
  local id = ids[1]
  redis.call('ZREM', KEYS[1], id)
  local key = ARGV[1] .. id
  if redis.call('EXISTS', key) == 1 then
    redis.call('ZADD', KEYS[2], ARGV[2], id)
    redis.call('HSET', key, 'state', 'active', 'processed_on', ARGV[3])
    return id
  end
end
`)

var moveScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[3]) == 0 then
  return 0
end
if redis.call('ZREM', KEYS[1], ARGV[1]) == 0 then
  return -1
end
redis.call('HINCRBY', KEYS[3], 'attempts_made', 1)
redis.call('HSET', KEYS[3], 'state', ARGV[2])
if ARGV[4] ~= '' then
  redis.call('HSET', KEYS[3], 'last_error', ARGV[4])
end
for i = 5, #ARGV, 2 do
  redis.call('HSET', KEYS[3], ARGV[i], ARGV[i + 1])
end
redis.call('ZADD', KEYS[2], ARGV[3], ARGV[1])
return 1
`)

var releaseScript = redis.NewScript(`
if redis.call('ZREM', KEYS[1], ARGV[1]) == 0 then
  return 0
end
local score = redis.call('HGET', KEYS[3], 'wait_score')
if not score then
  return 0
end
redis.call('HSET', KEYS[3], 'state', 'waiting')
redis.call('ZADD', KEYS[2], score, ARGV[1])
return 1
`)

var requeueStalledScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[2], 'LIMIT', 0, tonumber(ARGV[3]))
local requeued = {}
local failed = {}
for _, id in ipairs(ids) do
  redis.call('ZREM', KEYS[1], id)
  local key = ARGV[1] .. id
  local score = redis.call('HGET', key, 'wait_score')
  if score then
    local stalls = redis.call('HINCRBY', key, 'stalled_count', 1)
    if stalls > tonumber(ARGV[4]) then
      redis.call('HSET', key, 'state', 'failed', 'last_error', ARGV[5], 'finished_on', ARGV[2])
      redis.call('ZADD', KEYS[3], ARGV[2], id)
      table.insert(failed, id)
    else
      redis.call('HSET', key, 'state', 'waiting')
      redis.call('ZADD', KEYS[2], score, id)
      table.insert(requeued, id)
    end
  end
end
return {requeued, failed}
`)
