// Package collector incrementally ingests fail2ban log events into a
// persistent store, so report queries do not re-read the whole log.
package collector

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/telhawk-systems/banwatch/internal/fail2ban"
	"github.com/telhawk-systems/banwatch/internal/store"
)

const (
	// firstLookback bounds the initial scan when no checkpoint exists.
	firstLookback = 10 * time.Minute

	// skewLookback replaces a checkpoint that sits in the future
	// relative to now (clock skew or a stale snapshot).
	skewLookback = 5 * time.Minute

	// DefaultRetention is the horizon past which stored events are purged.
	DefaultRetention = 24 * time.Hour
)

// Collector ingests the log delta since its checkpoint into a Store and
// serves window queries from the accumulated history.
type Collector struct {
	store     store.Store
	logPath   string
	retention time.Duration
	logger    *slog.Logger

	now func() time.Time
}

// New creates a Collector over st reading from the log at logPath.
// A non-positive retention falls back to DefaultRetention.
func New(st store.Store, logPath string, retention time.Duration, logger *slog.Logger) *Collector {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Collector{
		store:     st,
		logPath:   logPath,
		retention: retention,
		logger:    logger,
		now:       time.Now,
	}
}

// Ingest scans the log for events since the checkpoint, appends them to
// the store, advances the checkpoint, prunes expired entries and
// persists the store. The checkpoint is not advanced on extraction
// failure, so the next cycle retries the same window.
//
// Appended events are re-tagged with the collection instant rather than
// their in-log timestamps: cross-cycle events are bucketed by when they
// were observed, not when they occurred. Window queries therefore skew
// whenever collection lags behind log writes; this is a known
// approximation.
func (c *Collector) Ingest() error {
	now := c.now()

	since, err := c.store.LastProcessed()
	if err != nil {
		return fmt.Errorf("read checkpoint: %w", err)
	}
	switch {
	case since.IsZero():
		since = now.Add(-firstLookback)
	case since.After(now):
		c.logger.Warn("checkpoint is in the future, clamping lookback",
			"checkpoint", since, "now", now)
		since = now.Add(-skewLookback)
	}

	ex, err := fail2ban.ExtractFile(c.logPath, fail2ban.Window{Start: since, End: now})
	if err != nil {
		return fmt.Errorf("extract %s: %w", c.logPath, err)
	}

	events := make([]fail2ban.Event, 0, ex.Total())
	for _, batch := range [][]fail2ban.Event{ex.Bans, ex.Unbans, ex.Found} {
		for _, ev := range batch {
			ev.Timestamp = now
			events = append(events, ev)
		}
	}

	if err := c.store.Append(events); err != nil {
		return fmt.Errorf("append events: %w", err)
	}
	if err := c.store.SetLastProcessed(now); err != nil {
		return fmt.Errorf("advance checkpoint: %w", err)
	}
	if err := c.store.Prune(now.Add(-c.retention)); err != nil {
		return fmt.Errorf("prune store: %w", err)
	}
	if err := c.store.Flush(); err != nil {
		return fmt.Errorf("persist store: %w", err)
	}

	c.logger.Debug("collection cycle complete",
		"since", since, "now", now,
		"bans", len(ex.Bans), "unbans", len(ex.Unbans), "found", len(ex.Found))
	return nil
}

// Query returns the stored events recorded inside [start, end].
func (c *Collector) Query(start, end time.Time) (fail2ban.Extraction, error) {
	return c.store.Query(fail2ban.Window{Start: start, End: end})
}
