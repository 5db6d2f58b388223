package store

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scheduled-dispatch/internal/models"
)

// newTestStore connects to TEST_POSTGRES_DSN and resets the gateway tables.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}
	ctx := context.Background()
	st, err := New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(st.Close)

	require.NoError(t, st.RunMigrations(ctx))
	_, err = st.pool.Exec(ctx, `TRUNCATE cloud_sync, cloud_session_server_mappings, customer_schedules RESTART IDENTITY`)
	require.NoError(t, err)
	return st
}

func TestResolveConnection(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.pool.Exec(ctx, `
		INSERT INTO cloud_sync (phone, workspace_id, session_name, session_status) VALUES
		('91999', 7, 'old-session', 'WORKING'),
		('91999', 7, 'new-session', 'WORKING'),
		('91888', 8, 'gone', 'STOPPED')
	`)
	require.NoError(t, err)

	conn, err := st.ResolveConnection(ctx, "91999")
	require.NoError(t, err)
	assert.True(t, conn.Connected)
	assert.Equal(t, "new-session", conn.SessionName)
	require.NotNil(t, conn.WorkspaceID)
	assert.Equal(t, int64(7), *conn.WorkspaceID)

	conn, err = st.ResolveConnection(ctx, "91888")
	require.NoError(t, err)
	assert.False(t, conn.Connected, "non-active status is not connected")

	conn, err = st.ResolveConnection(ctx, "00000")
	require.NoError(t, err)
	assert.False(t, conn.Connected)
}

func TestResolveEndpointDomain(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.pool.Exec(ctx, `
		INSERT INTO cloud_session_server_mappings (session_name, domain) VALUES ('s1', 'https://waha1.test')
	`)
	require.NoError(t, err)

	ep, found, err := st.ResolveEndpointDomain(ctx, "s1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "https://waha1.test", ep.Domain)

	_, found, err = st.ResolveEndpointDomain(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestUpdateScheduleStatus(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.pool.Exec(ctx, `INSERT INTO customer_schedules (id, status) VALUES (42, 0)`)
	require.NoError(t, err)

	ok, err := st.UpdateScheduleStatus(ctx, 42, models.StatusSent, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	status, logs, err := st.ScheduleStatus(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSent, status)
	assert.Nil(t, logs)

	msg := "user not connected"
	ok, err = st.UpdateScheduleStatus(ctx, 42, models.StatusFailed, &msg)
	require.NoError(t, err)
	assert.True(t, ok)

	status, logs, err = st.ScheduleStatus(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, status)
	require.NotNil(t, logs)
	assert.Equal(t, msg, *logs)

	ok, err = st.UpdateScheduleStatus(ctx, 999, models.StatusSent, nil)
	require.NoError(t, err)
	assert.False(t, ok)
}
