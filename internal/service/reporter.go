// Package service runs the report cycle: collect, aggregate, render,
// deliver. Failures inside one cycle are logged and swallowed at the
// cycle boundary; a bad cycle never terminates the service.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/telhawk-systems/banwatch/internal/delivery"
	"github.com/telhawk-systems/banwatch/internal/fail2ban"
	"github.com/telhawk-systems/banwatch/internal/metrics"
	"github.com/telhawk-systems/banwatch/internal/report"
)

// Collector is the incremental ingestion source used in collector mode.
type Collector interface {
	Ingest() error
	Query(start, end time.Time) (fail2ban.Extraction, error)
}

// Config configures the report cycle.
type Config struct {
	LogPath         string
	ReportInterval  time.Duration
	CollectInterval time.Duration
	TopN            int
	SubjectPrefix   string
	DeliveryTimeout time.Duration

	// FirstRunWindow shortens the first report when the store starts
	// empty, so a misleadingly long empty history does not alarm.
	FirstRunWindow time.Duration
}

// Reporter periodically extracts a report window, aggregates it and
// hands the rendered result to the delivery channel. With a Collector
// it queries the accumulated store; without one it re-scans the log
// directly each cycle.
type Reporter struct {
	cfg       Config
	channel   delivery.Channel
	collector Collector
	logger    *slog.Logger

	now func() time.Time

	mu       sync.Mutex
	running  bool
	firstRun bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New creates a Reporter. collector may be nil for direct mode;
// firstRun marks an empty store at startup.
func New(cfg Config, channel delivery.Channel, collector Collector, firstRun bool, logger *slog.Logger) *Reporter {
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = 20 * time.Second
	}
	if cfg.FirstRunWindow <= 0 {
		cfg.FirstRunWindow = time.Hour
	}
	return &Reporter{
		cfg:       cfg,
		channel:   channel,
		collector: collector,
		firstRun:  firstRun && collector != nil,
		logger:    logger,
		now:       time.Now,
	}
}

// Start begins the reporting loop. Collection and reporting tick in a
// single goroutine, so the store has one writer and one reader,
// sequential in time.
func (r *Reporter) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("reporter already running")
	}
	r.running = true
	r.stopChan = make(chan struct{})
	r.mu.Unlock()

	r.logger.Info("reporter starting",
		"report_interval", r.cfg.ReportInterval,
		"collector", r.collector != nil,
		"delivery", r.channel.Type(),
	)

	r.wg.Add(1)
	go r.run(ctx)

	return nil
}

// Stop gracefully stops the reporting loop.
func (r *Reporter) Stop() error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return fmt.Errorf("reporter not running")
	}
	r.running = false
	close(r.stopChan)
	r.mu.Unlock()

	r.wg.Wait()
	r.logger.Info("reporter stopped")
	return nil
}

func (r *Reporter) run(ctx context.Context) {
	defer r.wg.Done()

	reportTicker := time.NewTicker(r.cfg.ReportInterval)
	defer reportTicker.Stop()

	var collectC <-chan time.Time
	if r.collector != nil {
		r.collect()
		interval := r.cfg.CollectInterval
		if interval <= 0 {
			interval = 10 * time.Minute
		}
		collectTicker := time.NewTicker(interval)
		defer collectTicker.Stop()
		collectC = collectTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopChan:
			return
		case <-collectC:
			r.collect()
		case <-reportTicker.C:
			r.RunCycle(ctx)
		}
	}
}

func (r *Reporter) collect() {
	if err := r.collector.Ingest(); err != nil {
		r.logger.Error("collection cycle failed", "error", err)
		metrics.CollectionCyclesTotal.WithLabelValues("error").Inc()
		return
	}
	metrics.CollectionCyclesTotal.WithLabelValues("ok").Inc()
}

// BuildReport computes the report for the window ending at now. The
// first report after an empty-store startup covers FirstRunWindow
// instead of the configured interval.
func (r *Reporter) BuildReport(now time.Time) (report.Data, string, error) {
	interval := r.cfg.ReportInterval
	if r.firstRun {
		interval = r.cfg.FirstRunWindow
		r.firstRun = false
	}
	w := fail2ban.Window{Start: now.Add(-interval), End: now}

	var (
		ex  fail2ban.Extraction
		err error
	)
	if r.collector != nil {
		ex, err = r.collector.Query(w.Start, w.End)
	} else {
		ex, err = fail2ban.ExtractFile(r.cfg.LogPath, w)
	}
	if err != nil {
		return report.Data{}, "", fmt.Errorf("collect report window: %w", err)
	}

	metrics.EventsExtractedTotal.WithLabelValues(string(fail2ban.KindBan)).Add(float64(len(ex.Bans)))
	metrics.EventsExtractedTotal.WithLabelValues(string(fail2ban.KindUnban)).Add(float64(len(ex.Unbans)))
	metrics.EventsExtractedTotal.WithLabelValues(string(fail2ban.KindFound)).Add(float64(len(ex.Found)))

	data := report.Aggregate(w, ex, r.cfg.TopN)
	return data, report.RenderText(data), nil
}

// RunCycle executes one full report cycle. All errors are handled here:
// logged, counted and dropped, so the loop proceeds to the next cycle.
func (r *Reporter) RunCycle(ctx context.Context) {
	now := r.now()

	data, text, err := r.BuildReport(now)
	if err != nil {
		r.logger.Error("report cycle failed", "error", err)
		metrics.CyclesTotal.WithLabelValues("error").Inc()
		return
	}

	metrics.LastReportFailedAttempts.Set(float64(data.TotalFailedAttempts))
	metrics.LastReportBannedAddresses.Set(float64(len(data.UniqueBanned)))

	html, err := report.RenderHTML(data, r.cfg.SubjectPrefix)
	if err != nil {
		// Deliver the text part rather than dropping the report.
		r.logger.Warn("html rendering failed", "error", err)
		html = ""
	}

	subject := report.Subject(r.cfg.SubjectPrefix, now)
	r.logger.Info("report ready",
		"report_id", data.ID,
		"window_start", data.WindowStart,
		"window_end", data.WindowEnd,
		"banned", len(data.UniqueBanned),
		"failed_attempts", data.TotalFailedAttempts,
	)

	sendCtx, cancel := context.WithTimeout(ctx, r.cfg.DeliveryTimeout)
	defer cancel()

	if err := r.channel.Send(sendCtx, subject, data, text, html); err != nil {
		r.logger.Error("report delivery failed",
			"provider", r.channel.Type(), "report_id", data.ID, "error", err)
		metrics.DeliveryErrorsTotal.WithLabelValues(r.channel.Type()).Inc()
		metrics.CyclesTotal.WithLabelValues("delivery_error").Inc()
		return
	}

	metrics.ReportsSentTotal.Inc()
	metrics.CyclesTotal.WithLabelValues("ok").Inc()
}
