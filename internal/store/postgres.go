package store

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"scheduled-dispatch/internal/models"
)

// DefaultActiveStatus is the session status the gateway reports for a live session.
const DefaultActiveStatus = "WORKING"

// Store wraps pgxpool for Postgres persistence. All pipeline runs share one pool.
type Store struct {
	pool         *pgxpool.Pool
	activeStatus string
	log          zerolog.Logger
}

// Option customizes a Store.
type Option func(*Store)

// WithActiveStatus overrides the session status treated as connected.
func WithActiveStatus(status string) Option {
	return func(s *Store) {
		if status != "" {
			s.activeStatus = status
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Store) { s.log = log }
}

// New creates a pooled connection to Postgres.
func New(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "parse postgres dsn")
	}
	if cfg.MaxConns < 10 {
		cfg.MaxConns = 10
	}
	cfg.MaxConnIdleTime = 10 * time.Second
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "connect postgres")
	}
	s := &Store{pool: pool, activeStatus: DefaultActiveStatus, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// ResolveConnection reports whether userMobile has a live gateway session and which session
// serves it. The newest active row wins. Store errors are returned as-is for the caller to retry.
func (s *Store) ResolveConnection(ctx context.Context, userMobile string) (models.Connection, error) {
	var (
		session   pgtype.Text
		workspace pgtype.Int8
	)
	err := s.pool.QueryRow(ctx, `
		SELECT session_name, workspace_id
		FROM cloud_sync
		WHERE phone = $1 AND session_status = $2
		ORDER BY id DESC
		LIMIT 1
	`, userMobile, s.activeStatus).Scan(&session, &workspace)
	if errors.Is(err, pgx.ErrNoRows) {
		s.log.Warn().Str("phone", userMobile).Msg("user not connected to gateway")
		return models.Connection{Connected: false}, nil
	}
	if err != nil {
		return models.Connection{}, errors.Wrapf(err, "query cloud_sync for %s", userMobile)
	}

	conn := models.Connection{Connected: true, SessionName: session.String}
	if workspace.Valid {
		id := workspace.Int64
		conn.WorkspaceID = &id
	}
	s.log.Debug().Str("phone", userMobile).Str("session", conn.SessionName).Msg("gateway connection found")
	return conn, nil
}

// ResolveEndpointDomain returns the server domain currently assigned to a session.
// found is false when the session has no mapping.
func (s *Store) ResolveEndpointDomain(ctx context.Context, sessionName string) (models.SessionEndpoint, bool, error) {
	var domain string
	err := s.pool.QueryRow(ctx, `
		SELECT domain
		FROM cloud_session_server_mappings
		WHERE session_name = $1
		ORDER BY id DESC
		LIMIT 1
	`, sessionName).Scan(&domain)
	if errors.Is(err, pgx.ErrNoRows) {
		s.log.Warn().Str("session", sessionName).Msg("session server mapping not found")
		return models.SessionEndpoint{}, false, nil
	}
	if err != nil {
		return models.SessionEndpoint{}, false, errors.Wrapf(err, "query session mapping for %s", sessionName)
	}
	return models.SessionEndpoint{SessionName: sessionName, Domain: domain}, true, nil
}

// UpdateScheduleStatus writes the delivery status of a schedule. logs is left untouched when nil.
// It reports whether a row matched.
func (s *Store) UpdateScheduleStatus(ctx context.Context, scheduleID int64, status models.ScheduleStatus, logs *string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE customer_schedules
		SET status = $2, logs = COALESCE($3, logs)
		WHERE id = $1
	`, scheduleID, int(status), logs)
	if err != nil {
		return false, errors.Wrapf(err, "update schedule %d status", scheduleID)
	}
	if tag.RowsAffected() == 0 {
		s.log.Warn().Int64("schedule_id", scheduleID).Msg("schedule not found for status update")
		return false, nil
	}
	s.log.Info().
		Int64("schedule_id", scheduleID).
		Int("status", int(status)).
		Str("status_meaning", status.String()).
		Bool("has_logs", logs != nil).
		Msg("schedule status updated")
	return true, nil
}

// ScheduleStatus reads the current status and logs of a schedule.
func (s *Store) ScheduleStatus(ctx context.Context, scheduleID int64) (models.ScheduleStatus, *string, error) {
	var (
		status int
		logs   pgtype.Text
	)
	err := s.pool.QueryRow(ctx, `
		SELECT status, logs FROM customer_schedules WHERE id = $1
	`, scheduleID).Scan(&status, &logs)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil, errors.Wrapf(err, "schedule %d not found", scheduleID)
		}
		return 0, nil, errors.Wrap(err, "scan schedule")
	}
	return models.ScheduleStatus(status), textPtr(logs), nil
}

func textPtr(t pgtype.Text) *string {
	if t.Valid {
		return &t.String
	}
	return nil
}
