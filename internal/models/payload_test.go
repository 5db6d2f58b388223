package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadDropsResolvedRoutingFields(t *testing.T) {
	raw := `{
		"scheduleId": 42,
		"userMobile": "91999",
		"recipient": "919@c.us",
		"content": "hi",
		"scheduledTime": 1700000000000,
		"sessionName": "stale-session",
		"apiEndpoint": "https://old.test/api/sendText",
		"domain": "https://old.test",
		"repeatingTimes": null,
		"endTime": null
	}`

	var p Payload
	require.NoError(t, json.Unmarshal([]byte(raw), &p))

	out, err := json.Marshal(p)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "sessionName")
	assert.NotContains(t, string(out), "apiEndpoint")
	assert.NotContains(t, string(out), "old.test")
	assert.Equal(t, int64(42), p.ScheduleID)
	assert.Nil(t, p.RepeatingTimes)
}

func TestPayloadRecurrence(t *testing.T) {
	two := 2
	end := int64(1800000000000)
	p := Payload{IsRecurring: true, RecurrenceInterval: 600000, RepeatingTimes: &two, EndTime: &end}

	r, ok := p.Recurrence()
	require.True(t, ok)
	assert.Equal(t, 10*time.Minute, r.Interval)
	assert.Equal(t, 2, *r.Remaining)
	assert.Equal(t, time.UnixMilli(end), r.EndsAt)

	_, ok = Payload{RecurrenceInterval: 600000}.Recurrence()
	assert.False(t, ok, "recurrence fields are ignored without isRecurring")

	zero := int64(0)
	r, ok = Payload{IsRecurring: true, RecurrenceInterval: 1000, EndTime: &zero}.Recurrence()
	require.True(t, ok)
	assert.True(t, r.EndsAt.IsZero())
}

func TestPayloadCloneIsDeep(t *testing.T) {
	n := 3
	p := Payload{RepeatingTimes: &n}
	c := p.Clone()
	*c.RepeatingTimes = 1

	assert.Equal(t, 3, *p.RepeatingTimes)
}

func TestScheduleStatusString(t *testing.T) {
	assert.Equal(t, "pending", StatusPending.String())
	assert.Equal(t, "sent", StatusSent.String())
	assert.Equal(t, "failed", StatusFailed.String())
	assert.Equal(t, -1, int(StatusFailed))
}
