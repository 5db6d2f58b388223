package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scheduled-dispatch/internal/config"
	"scheduled-dispatch/internal/models"
	"scheduled-dispatch/internal/queue"
)

func newTestServer(t *testing.T, rps float64) (http.Handler, *queue.RedisQueue, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	q := queue.NewRedisQueue(client, queue.Settings{Name: "scheduled-messages"})

	cfg := config.Config{APIRateLimitRPS: rps, CORSAllowedOrigins: []string{"*"}}
	return New(cfg, q, zerolog.Nop()).Router(), q, mr
}

type response struct {
	Success bool            `json:"success"`
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func do(t *testing.T, h http.Handler, method, path string) (int, response) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func seed(t *testing.T, q *queue.RedisQueue) {
	t.Helper()
	ctx := context.Background()
	jobs := []struct {
		id    string
		p     models.Payload
		delay time.Duration
	}{
		{"schedule-42-1-aaaaaa", models.Payload{ScheduleID: 42, WorkspaceID: 7, Recipient: "919@c.us", Content: "hi", ScheduledTime: 1}, time.Hour},
		{"schedule-43-1-bbbbbb", models.Payload{ScheduleID: 43, WorkspaceID: 7, Recipient: "918@c.us", ScheduledTime: 1, IsRecurring: true, RecurrenceInterval: 60000}, 0},
		{"schedule-44-1-cccccc", models.Payload{ScheduleID: 44, WorkspaceID: 8, Recipient: "917@c.us", ScheduledTime: 1}, 0},
	}
	for _, j := range jobs {
		require.NoError(t, q.Enqueue(ctx, j.id, j.p, queue.Options{Delay: j.delay, Priority: 5}))
	}
}

func TestHealth(t *testing.T) {
	h, _, mr := newTestServer(t, 0)

	code, body := do(t, h, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body.Status)

	code, body = do(t, h, http.MethodGet, "/api/schedule/health")
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, body.Success)
	var data map[string]any
	require.NoError(t, json.Unmarshal(body.Data, &data))
	assert.Equal(t, "scheduled-messages", data["queue"])

	mr.Close()
	code, body = do(t, h, http.MethodGet, "/api/schedule/health")
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.False(t, body.Success)
	assert.Equal(t, "unhealthy", body.Status)
}

func TestQueueStatus(t *testing.T) {
	h, q, _ := newTestServer(t, 0)
	seed(t, q)

	code, body := do(t, h, http.MethodGet, "/api/schedule/queue-status")
	require.Equal(t, http.StatusOK, code)
	var data map[string]any
	require.NoError(t, json.Unmarshal(body.Data, &data))
	assert.EqualValues(t, 2, data["waiting"])
	assert.EqualValues(t, 1, data["delayed"])
	assert.EqualValues(t, 3, data["total"])
}

func TestGetJob(t *testing.T) {
	h, q, _ := newTestServer(t, 0)
	seed(t, q)

	code, body := do(t, h, http.MethodGet, "/api/schedule/job/42")
	require.Equal(t, http.StatusOK, code)
	var v jobView
	require.NoError(t, json.Unmarshal(body.Data, &v))
	assert.Equal(t, "schedule-42-1-aaaaaa", v.ID)
	assert.Equal(t, int64(42), v.ScheduleID)
	assert.Equal(t, int64(7), v.WorkspaceID)
	assert.Equal(t, "delayed", v.State)
	assert.Equal(t, "hi", v.Content)
	assert.Equal(t, int64(3600000), v.Delay)
	assert.Equal(t, 5, v.Priority)

	code, body = do(t, h, http.MethodGet, "/api/schedule/job/999")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "No jobs found", body.Message)

	code, _ = do(t, h, http.MethodGet, "/api/schedule/job/abc")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestRemoveJob(t *testing.T) {
	h, q, _ := newTestServer(t, 0)
	seed(t, q)

	code, body := do(t, h, http.MethodDelete, "/api/schedule/job/42")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Removed 1 job(s)", body.Message)

	code, body = do(t, h, http.MethodDelete, "/api/schedule/job/42")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Removed 0 job(s)", body.Message)
}

func TestUserJobs(t *testing.T) {
	h, q, _ := newTestServer(t, 0)
	seed(t, q)

	code, body := do(t, h, http.MethodGet, "/api/schedule/user-jobs/7")
	require.Equal(t, http.StatusOK, code)
	var data struct {
		WorkspaceID int64     `json:"workspaceId"`
		Count       int       `json:"count"`
		Jobs        []jobView `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &data))
	assert.Equal(t, int64(7), data.WorkspaceID)
	assert.Equal(t, 2, data.Count)

	code, body = do(t, h, http.MethodDelete, "/api/schedule/user-jobs/7")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Removed 2 job(s) for workspace 7", body.Message)

	counts, err := q.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.Waiting+counts.Delayed)
}

func TestThrottle(t *testing.T) {
	h, _, _ := newTestServer(t, 1)

	code, _ := do(t, h, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, code)
	code, body := do(t, h, http.MethodGet, "/health")
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "rate limited", body.Message)
}

func TestNotFound(t *testing.T) {
	h, _, _ := newTestServer(t, 0)
	code, body := do(t, h, http.MethodGet, "/nope")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Route not found", body.Message)
}
