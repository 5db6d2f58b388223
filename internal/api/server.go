// Package api serves the queue monitoring and management endpoints.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"golang.org/x/time/rate"

	"scheduled-dispatch/internal/config"
	"scheduled-dispatch/internal/queue"
	"scheduled-dispatch/internal/telemetry"
)

// JobQueue is the subset of the queue the API reads and edits.
type JobQueue interface {
	Name() string
	Ping(ctx context.Context) error
	Counts(ctx context.Context) (queue.Counts, error)
	FindBySchedule(ctx context.Context, scheduleID int64) ([]queue.Job, error)
	FindByWorkspace(ctx context.Context, workspaceID int64) ([]queue.Job, error)
	Remove(ctx context.Context, id string) (bool, error)
}

// Server wires HTTP handlers for the admin API.
type Server struct {
	cfg     config.Config
	queue   JobQueue
	log     zerolog.Logger
	limiter *rate.Limiter
	now     func() time.Time
}

// New constructs the API server.
func New(cfg config.Config, q JobQueue, log zerolog.Logger) *Server {
	s := &Server{
		cfg:   cfg,
		queue: q,
		log:   log,
		now:   time.Now,
	}
	if cfg.APIRateLimitRPS > 0 {
		burst := int(cfg.APIRateLimitRPS)
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.APIRateLimitRPS), burst)
	}
	return s
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(hlog.NewHandler(s.log))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))
	r.Use(s.throttle)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "healthy", "timestamp": s.timestamp()})
	})
	r.Mount("/metrics", telemetry.Handler())

	r.Route("/api/schedule", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/queue-status", s.handleQueueStatus)
		r.Get("/job/{scheduleId}", s.handleGetJob)
		r.Delete("/job/{scheduleId}", s.handleRemoveJob)
		r.Get("/user-jobs/{workspaceId}", s.handleUserJobs)
		r.Delete("/user-jobs/{workspaceId}", s.handleRemoveUserJobs)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, envelope{Message: "Route not found"})
	})
	return r
}

type envelope struct {
	Success bool   `json:"success"`
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

type jobView struct {
	ID            string `json:"id"`
	ScheduleID    int64  `json:"scheduleId"`
	WorkspaceID   int64  `json:"workspaceId,omitempty"`
	State         string `json:"state"`
	Recipient     string `json:"recipient"`
	Content       string `json:"content,omitempty"`
	ScheduledTime int64  `json:"scheduledTime"`
	IsRecurring   bool   `json:"isRecurring"`
	AttemptsMade  int    `json:"attemptsMade"`
	Delay         int64  `json:"delay"`
	Priority      int    `json:"priority"`
}

func viewOf(j queue.Job) jobView {
	v := jobView{
		ID:           j.ID,
		State:        string(j.State),
		AttemptsMade: j.AttemptsMade,
		Delay:        j.Delay.Milliseconds(),
		Priority:     j.Priority,
	}
	// Jobs from other publishers may not decode; they are still listed by id and state.
	if p, err := j.Payload(); err == nil {
		v.ScheduleID = p.ScheduleID
		v.WorkspaceID = p.WorkspaceID
		v.Recipient = p.Recipient
		v.Content = p.Content
		v.ScheduledTime = p.ScheduledTime
		v.IsRecurring = p.IsRecurring
	}
	return v
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.queue.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusInternalServerError, envelope{Status: "unhealthy", Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Status:  "healthy",
		Data: map[string]any{
			"redis":     "ready",
			"queue":     s.queue.Name(),
			"timestamp": s.timestamp(),
		},
	})
}

func (s *Server) handleQueueStatus(w http.ResponseWriter, r *http.Request) {
	c, err := s.queue.Counts(r.Context())
	if err != nil {
		s.fail(w, r, "Failed to get queue status", err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Data: map[string]any{
			"waiting":   c.Waiting,
			"active":    c.Active,
			"completed": c.Completed,
			"failed":    c.Failed,
			"delayed":   c.Delayed,
			"total":     c.Waiting + c.Active + c.Delayed,
			"timestamp": s.timestamp(),
		},
	})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "scheduleId")
	if !ok {
		return
	}
	jobs, err := s.queue.FindBySchedule(r.Context(), id)
	if err != nil {
		s.fail(w, r, "Failed to get job", err)
		return
	}
	if len(jobs) == 0 {
		writeJSON(w, http.StatusNotFound, envelope{Message: "No jobs found"})
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: viewOf(jobs[0])})
}

func (s *Server) handleRemoveJob(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "scheduleId")
	if !ok {
		return
	}
	jobs, err := s.queue.FindBySchedule(r.Context(), id)
	if err != nil {
		s.fail(w, r, "Failed to remove job", err)
		return
	}
	removed := s.removeAll(r, jobs)
	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Message: fmt.Sprintf("Removed %d job(s)", removed),
		Data:    map[string]any{"success": true, "removed": removed, "scheduleId": id},
	})
}

func (s *Server) handleUserJobs(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "workspaceId")
	if !ok {
		return
	}
	jobs, err := s.queue.FindByWorkspace(r.Context(), id)
	if err != nil {
		s.fail(w, r, "Failed to get user jobs", err)
		return
	}
	views := make([]jobView, 0, len(jobs))
	for _, j := range jobs {
		views = append(views, viewOf(j))
	}
	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Data: map[string]any{
			"workspaceId": id,
			"count":       len(views),
			"jobs":        views,
		},
	})
}

func (s *Server) handleRemoveUserJobs(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "workspaceId")
	if !ok {
		return
	}
	jobs, err := s.queue.FindByWorkspace(r.Context(), id)
	if err != nil {
		s.fail(w, r, "Failed to remove user jobs", err)
		return
	}
	removed := s.removeAll(r, jobs)
	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Message: fmt.Sprintf("Removed %d job(s) for workspace %d", removed, id),
		Data:    map[string]any{"success": true, "removed": removed, "workspaceId": id},
	})
}

// removeAll removes jobs one by one; a failed removal is logged and skipped.
func (s *Server) removeAll(r *http.Request, jobs []queue.Job) int {
	removed := 0
	for _, j := range jobs {
		ok, err := s.queue.Remove(r.Context(), j.ID)
		if err != nil {
			hlog.FromRequest(r).Error().Err(err).Str("job_id", j.ID).Msg("failed to remove job")
			continue
		}
		if ok {
			removed++
		}
	}
	return removed
}

func (s *Server) throttle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			writeJSON(w, http.StatusTooManyRequests, envelope{Message: "rate limited"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	hlog.FromRequest(r).Error().Err(err).Msg(msg)
	writeJSON(w, http.StatusInternalServerError, envelope{Message: msg, Error: err.Error()})
}

func (s *Server) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Message: name + " must be a number"})
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
