package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"scheduled-dispatch/internal/config"
	"scheduled-dispatch/internal/dispatch"
	"scheduled-dispatch/internal/gateway"
	"scheduled-dispatch/internal/logging"
	"scheduled-dispatch/internal/media"
	"scheduled-dispatch/internal/queue"
	"scheduled-dispatch/internal/ratelimit"
	"scheduled-dispatch/internal/store"
	"scheduled-dispatch/internal/telemetry"
	"scheduled-dispatch/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat).With().Str("service", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("worker exited")
	}
}

func run(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	st, err := store.New(ctx, cfg.PostgresDSN,
		store.WithActiveStatus(cfg.ActiveSessionStatus),
		store.WithLogger(log),
	)
	if err != nil {
		return errors.Wrap(err, "connect postgres")
	}
	defer st.Close()
	if err := st.Ping(ctx); err != nil {
		return errors.Wrap(err, "ping postgres")
	}

	if cfg.RunMigrations {
		if err := st.RunMigrations(ctx); err != nil {
			return errors.Wrap(err, "migrations")
		}
	}

	rdb := queue.NewRedisClient(cfg)
	defer rdb.Close()
	q := queue.NewRedisQueue(rdb, queue.Settings{
		Name:              cfg.QueueName,
		VisibilityTimeout: cfg.VisibilityTimeout,
		DefaultAttempts:   cfg.MaxAttempts,
		MaxStalled:        cfg.MaxStalledCount,
	})
	if err := q.Ping(ctx); err != nil {
		return errors.Wrap(err, "connect redis")
	}

	resolver := media.NewResolver()
	if cfg.MediaS3Region != "" || cfg.MediaS3Endpoint != "" {
		resolver, err = media.NewS3Resolver(ctx, media.S3Config{
			Region:    cfg.MediaS3Region,
			Endpoint:  cfg.MediaS3Endpoint,
			PathStyle: cfg.MediaS3PathStyle,
			TTL:       cfg.MediaPresignTTL,
		})
		if err != nil {
			return errors.Wrap(err, "init media resolver")
		}
	}

	pipeline, err := dispatch.NewPipeline(dispatch.Options{
		Connections: st,
		Endpoints:   st,
		Statuses:    st,
		Sender:      gateway.NewClient(cfg.GatewayTimeout, gateway.WithClientLogger(log)),
		Enqueuer:    q,
		Media:       resolver,
		Logger:      log,
	})
	if err != nil {
		return err
	}

	workerID := cfg.WorkerID
	if workerID == "" {
		hostname, _ := os.Hostname()
		if hostname != "" {
			workerID = hostname
		} else {
			workerID = "worker-" + uuid.NewString()[:8]
		}
	}

	processor, err := worker.NewProcessor(worker.Options{
		Queue:                q,
		Dispatcher:           pipeline,
		Limiter:              ratelimit.NewWindow(rdb, "dispatch:"+cfg.QueueName+":limiter", cfg.RateLimitMax, cfg.RateLimitWindow),
		Logger:               log,
		WorkerID:             workerID,
		Concurrency:          cfg.WorkerConcurrency,
		PollInterval:         cfg.WorkerPollInterval,
		Lease:                cfg.VisibilityTimeout,
		BatchSize:            int64(cfg.MaintenanceBatch),
		HousekeepingSchedule: cfg.HousekeepingSchedule,
		Retention: queue.Retention{
			CompletedAge:   cfg.KeepCompletedAge,
			CompletedCount: cfg.KeepCompletedCount,
			FailedAge:      cfg.KeepFailedAge,
		},
		Observers: []worker.Observer{auditObserver(log)},
	})
	if err != nil {
		return err
	}

	metrics := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           telemetry.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return processor.Run(gctx)
	})
	g.Go(func() error {
		log.Info().Str("addr", cfg.MetricsAddr).Msg("metrics listening")
		if err := metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "metrics server")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metrics.Shutdown(shutdownCtx)
	})

	log.Info().
		Str("queue", cfg.QueueName).
		Int("concurrency", cfg.WorkerConcurrency).
		Int("rate_limit", cfg.RateLimitMax).
		Dur("rate_window", cfg.RateLimitWindow).
		Int("max_attempts", cfg.MaxAttempts).
		Msg("worker configured")
	return g.Wait()
}

// auditObserver logs the final fate of every job at info level.
func auditObserver(log zerolog.Logger) worker.Observer {
	return worker.Observer{
		OnCompleted: func(_ context.Context, r worker.Report) {
			evt := log.Info().
				Str("job_id", r.Job.ID).
				Int("attempt", r.Attempt.Number).
				Str("state", string(r.Outcome.Final()))
			if r.Outcome.NextJobID != "" {
				evt = evt.Str("next_job_id", r.Outcome.NextJobID)
			}
			evt.Msg("job completed")
		},
		OnFailed: func(_ context.Context, r worker.Report) {
			if !r.Final {
				return
			}
			log.Warn().
				Str("job_id", r.Job.ID).
				Int("attempts", r.Attempt.Number).
				Str("reason", dispatch.FailureReason(r.Outcome.Err)).
				Err(r.Outcome.Err).
				Msg("job failed")
		},
		OnStalled: func(_ context.Context, id string) {
			log.Warn().Str("job_id", id).Msg("job stalled")
		},
	}
}
