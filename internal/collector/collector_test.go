package collector

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/banwatch/internal/fail2ban"
	"github.com/telhawk-systems/banwatch/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeLog(t *testing.T, lines string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fail2ban.log")
	require.NoError(t, os.WriteFile(path, []byte(lines), 0o644))
	return path
}

func newFileStore(t *testing.T) *store.FileStore {
	t.Helper()
	return store.OpenFile(filepath.Join(t.TempDir(), "events.json"), discardLogger())
}

func TestIngest_TagsEventsWithCollectionInstant(t *testing.T) {
	logPath := writeLog(t,
		"2025-01-01 00:00:00 Found 9.9.9.9\n"+
			"2025-01-01 00:00:05 Ban 9.9.9.9\n")

	st := newFileStore(t)
	c := New(st, logPath, 0, discardLogger())

	now := time.Date(2025, 1, 1, 0, 5, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Ingest())

	// Events are bucketed by observation time, not in-log time.
	got, err := c.Query(now, now)
	require.NoError(t, err)
	require.Len(t, got.Bans, 1)
	require.Len(t, got.Found, 1)
	assert.Equal(t, now, got.Bans[0].Timestamp)

	last, err := st.LastProcessed()
	require.NoError(t, err)
	assert.True(t, last.Equal(now))
}

func TestIngest_FirstRunLookback(t *testing.T) {
	// Only lines within the last 10 minutes of the first run are seen.
	logPath := writeLog(t,
		"2025-01-01 11:49:00 Ban 1.1.1.1\n"+ // 11 minutes before now
			"2025-01-01 11:55:00 Ban 2.2.2.2\n") // inside the lookback

	st := newFileStore(t)
	c := New(st, logPath, 0, discardLogger())
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Ingest())

	got, err := c.Query(now, now)
	require.NoError(t, err)
	require.Len(t, got.Bans, 1)
	assert.Equal(t, "2.2.2.2", got.Bans[0].Address)
}

func TestIngest_ClockSkewGuard(t *testing.T) {
	logPath := writeLog(t, "2025-01-01 11:58:00 Ban 4.4.4.4\n")

	st := newFileStore(t)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	// Checkpoint an hour in the future of "now".
	require.NoError(t, st.SetLastProcessed(now.Add(time.Hour)))

	c := New(st, logPath, 0, discardLogger())
	c.now = func() time.Time { return now }

	require.NoError(t, c.Ingest())

	// The lookback is clamped to 5 minutes before now, so the ban two
	// minutes back is collected instead of yielding an inverted window.
	got, err := c.Query(now, now)
	require.NoError(t, err)
	require.Len(t, got.Bans, 1)

	last, err := st.LastProcessed()
	require.NoError(t, err)
	assert.True(t, last.Equal(now), "checkpoint moves back to now")
}

func TestIngest_IncrementalDelta(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "fail2ban.log")
	require.NoError(t, os.WriteFile(logPath, []byte("2025-01-01 00:01:00 Ban 1.1.1.1\n"), 0o644))

	st := newFileStore(t)
	c := New(st, logPath, 0, discardLogger())

	t1 := time.Date(2025, 1, 1, 0, 2, 0, 0, time.UTC)
	c.now = func() time.Time { return t1 }
	require.NoError(t, c.Ingest())

	// Append a later line and ingest again from the checkpoint.
	require.NoError(t, os.WriteFile(logPath, []byte(
		"2025-01-01 00:01:00 Ban 1.1.1.1\n"+
			"2025-01-01 00:03:00 Ban 2.2.2.2\n"), 0o644))

	t2 := t1.Add(2 * time.Minute)
	c.now = func() time.Time { return t2 }
	require.NoError(t, c.Ingest())

	got, err := c.Query(t1.Add(-time.Hour), t2)
	require.NoError(t, err)
	require.Len(t, got.Bans, 2, "the first ban is not re-ingested")
}

func TestIngest_PrunesExpiredEvents(t *testing.T) {
	logPath := writeLog(t, "2025-01-01 00:00:30 Ban 1.1.1.1\n")

	st := newFileStore(t)
	c := New(st, logPath, time.Hour, discardLogger())

	t1 := time.Date(2025, 1, 1, 0, 1, 0, 0, time.UTC)
	c.now = func() time.Time { return t1 }
	require.NoError(t, c.Ingest())

	// Two hours later the stored event is past the 1h retention.
	t2 := t1.Add(2 * time.Hour)
	c.now = func() time.Time { return t2 }
	require.NoError(t, c.Ingest())

	got, err := c.Query(t1.Add(-time.Hour), t2)
	require.NoError(t, err)
	assert.Empty(t, got.Bans)
}

type failingStore struct {
	store.Store
	appendErr error
}

func (f *failingStore) Append(events []fail2ban.Event) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	return f.Store.Append(events)
}

func TestIngest_CheckpointNotAdvancedOnFailure(t *testing.T) {
	logPath := writeLog(t, "2025-01-01 00:00:30 Ban 1.1.1.1\n")

	inner := newFileStore(t)
	st := &failingStore{Store: inner, appendErr: errors.New("disk full")}
	c := New(st, logPath, 0, discardLogger())

	now := time.Date(2025, 1, 1, 0, 1, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.Error(t, c.Ingest())

	last, err := inner.LastProcessed()
	require.NoError(t, err)
	assert.True(t, last.IsZero(), "failed cycle must retry the same window")
}
