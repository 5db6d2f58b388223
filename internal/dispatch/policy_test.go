package dispatch

import (
	"regexp"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scheduled-dispatch/internal/models"
	"scheduled-dispatch/internal/queue"
)

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }

func TestBackoff(t *testing.T) {
	assert.Equal(t, 60*time.Second, Backoff(1))
	for _, n := range []int{2, 3, 10} {
		assert.Equal(t, 120*time.Second, Backoff(n), "attempt %d", n)
	}
}

func TestPriority(t *testing.T) {
	cases := []struct {
		delay time.Duration
		want  int
	}{
		{0, 1},
		{59999 * time.Millisecond, 1},
		{time.Minute, 3},
		{299999 * time.Millisecond, 3},
		{5 * time.Minute, 5},
		{3599999 * time.Millisecond, 5},
		{time.Hour, 7},
		{48 * time.Hour, 7},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Priority(tc.delay), "delay %s", tc.delay)
	}
}

func validPayload() models.Payload {
	return models.Payload{
		ScheduleID:    42,
		UserMobile:    "91999",
		Recipient:     "919@c.us",
		Content:       "hi",
		ScheduledTime: time.Now().Add(time.Second).UnixMilli(),
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(validPayload()))

	p := validPayload()
	p.Content = ""
	p.ScheduledFile = "https://cdn.test/clip.mp4"
	p.ScheduledFileName = "clip.mp4"
	require.NoError(t, Validate(p), "file without text is valid")

	p.Content = "caption"
	require.NoError(t, Validate(p), "text becomes the caption of a file")
}

func TestValidateCollectsAllReasons(t *testing.T) {
	p := validPayload()
	p.Recipient = ""
	p.Content = ""
	p.ScheduledTime = 0

	err := Validate(p)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.False(t, IsRetryable(err))

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.ElementsMatch(t, []string{
		"recipient is required",
		"content or scheduledFile is required",
		"scheduledTime is required",
	}, verr.Reasons)
}

func TestValidateFieldRules(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*models.Payload)
		reason string
	}{
		{"schedule id", func(p *models.Payload) { p.ScheduleID = 0 }, "scheduleId is required"},
		{"user", func(p *models.Payload) { p.UserMobile = "  " }, "userMobile is required"},
		{"negative time", func(p *models.Payload) { p.ScheduledTime = -5 }, "scheduledTime must be a positive epoch milliseconds value"},
		{"file name", func(p *models.Payload) { p.ScheduledFile = "https://cdn.test/x" }, "scheduledFileName is required when scheduledFile is set"},
		{"interval", func(p *models.Payload) { p.IsRecurring = true }, "recurrenceInterval must be greater than 0 for recurring messages"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := validPayload()
			tc.mutate(&p)
			var verr *ValidationError
			require.True(t, errors.As(Validate(p), &verr))
			assert.Equal(t, []string{tc.reason}, verr.Reasons)
		})
	}
}

func TestNextOccurrence(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	p := validPayload()
	p.IsRecurring = true
	p.RecurrenceInterval = 600000
	p.RepeatingTimes = intPtr(2)

	occ, stop := NextOccurrence(p, now)
	require.Equal(t, Continue, stop)
	assert.Equal(t, 10*time.Minute, occ.Delay)
	assert.Equal(t, 5, occ.Priority)
	assert.Equal(t, now.UnixMilli()+600000, occ.Payload.ScheduledTime)
	require.NotNil(t, occ.Payload.RepeatingTimes)
	assert.Equal(t, 1, *occ.Payload.RepeatingTimes)
	require.NotNil(t, occ.Payload.PreviousExecutionTime)
	assert.Equal(t, now.UnixMilli(), *occ.Payload.PreviousExecutionTime)
	assert.Equal(t, 2, *p.RepeatingTimes, "source payload is not modified")
	assert.Equal(t, p.Recipient, occ.Payload.Recipient)

	_, stop = NextOccurrence(occ.Payload, now.Add(10*time.Minute))
	assert.Equal(t, StopRepetitionsSpent, stop)
}

func TestNextOccurrenceUnbounded(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	p := validPayload()
	p.IsRecurring = true
	p.RecurrenceInterval = 30000

	occ, stop := NextOccurrence(p, now)
	require.Equal(t, Continue, stop)
	assert.Nil(t, occ.Payload.RepeatingTimes)
	assert.Equal(t, 1, occ.Priority)
}

func TestNextOccurrenceStopOrder(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	base := validPayload()
	base.IsRecurring = true
	base.RecurrenceInterval = 60000

	p := base
	p.RepeatingTimes = intPtr(1)
	p.EndTime = int64Ptr(now.UnixMilli() - 1)
	p.RecurrenceInterval = 0
	_, stop := NextOccurrence(p, now)
	assert.Equal(t, StopRepetitionsSpent, stop, "repetitions are checked first")

	p = base
	p.EndTime = int64Ptr(now.UnixMilli())
	p.RecurrenceInterval = -1
	_, stop = NextOccurrence(p, now)
	assert.Equal(t, StopEndTimeReached, stop, "end time reached even when unbounded")

	p = base
	p.EndTime = int64Ptr(0)
	p.RecurrenceInterval = 0
	_, stop = NextOccurrence(p, now)
	assert.Equal(t, StopInvalidInterval, stop, "zero end time means no end")

	p = base
	p.IsRecurring = false
	_, stop = NextOccurrence(p, now)
	assert.Equal(t, StopNotRecurring, stop)
}

func TestNewJobID(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_123)
	a := NewJobID(42, now)
	b := NewJobID(42, now)
	assert.Regexp(t, regexp.MustCompile(`^schedule-42-1700000000123-[0-9a-f]{6}$`), a)
	assert.NotEqual(t, a, b)
}

func TestFailureReason(t *testing.T) {
	assert.Equal(t, "not_connected", FailureReason(errors.Wrap(ErrNotConnected, "user 1")))
	assert.Equal(t, "no_endpoint", FailureReason(errors.Wrap(ErrNoEndpointMapping, "session s")))
	assert.Equal(t, "send", FailureReason(&SendError{Endpoint: "x", Err: errors.New("boom")}))
	assert.Equal(t, "validation", FailureReason(&ValidationError{Reasons: []string{"x"}}))
	assert.Equal(t, "stalled", FailureReason(queue.ErrStalledLimit))
	assert.Equal(t, "internal", FailureReason(errors.New("db down")))
}
