// banwatch periodically scans a fail2ban log, aggregates ban/unban and
// failed-attempt events over a report window, and delivers a rendered
// summary.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/telhawk-systems/banwatch/internal/collector"
	"github.com/telhawk-systems/banwatch/internal/config"
	"github.com/telhawk-systems/banwatch/internal/delivery"
	"github.com/telhawk-systems/banwatch/internal/interval"
	"github.com/telhawk-systems/banwatch/internal/logging"
	"github.com/telhawk-systems/banwatch/internal/service"
	"github.com/telhawk-systems/banwatch/internal/store"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "banwatch",
	Short: "Fail2ban log report service",
	Long: `banwatch scans an intrusion-prevention log for ban, unban and
failed-attempt events, aggregates them over a sliding report window,
and delivers text and HTML summaries.`,
	Version: "0.1.0",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the periodic report loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate one report and print it to stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReport()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file")
	rootCmd.AddCommand(serveCmd, reportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup performs the fatal part of startup: configuration, interval
// validation and logging. Anything that fails here must abort before
// the loop begins.
func setup() (*config.Config, time.Duration, *slog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("load config: %w", err)
	}

	reportInterval, err := interval.Parse(cfg.Report.Interval)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("report interval: %w", err)
	}

	logger := logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format).
		With(logging.Service("banwatch"))
	logging.SetDefault(logger)

	return cfg, reportInterval, logger, nil
}

func openStore(cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	switch cfg.Store.Backend {
	case "sqlite":
		return store.OpenSQLite(cfg.Store.Path)
	case "file", "":
		return store.OpenFile(cfg.Store.Path, logger), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %q", cfg.Store.Backend)
	}
}

func buildReporter(cfg *config.Config, reportInterval time.Duration, channel delivery.Channel, logger *slog.Logger) (*service.Reporter, func(), error) {
	svcCfg := service.Config{
		LogPath:         cfg.Log.Path,
		ReportInterval:  reportInterval,
		CollectInterval: cfg.Collector.Interval,
		TopN:            cfg.Report.TopN,
		SubjectPrefix:   cfg.Report.SubjectPrefix,
		DeliveryTimeout: cfg.Delivery.Timeout,
		FirstRunWindow:  cfg.Collector.FirstRunWindow,
	}

	if !cfg.Collector.Enabled {
		return service.New(svcCfg, channel, nil, false, logger), func() {}, nil
	}

	st, err := openStore(cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open event store: %w", err)
	}

	firstRun, err := st.Empty()
	if err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("inspect event store: %w", err)
	}

	col := collector.New(st, cfg.Log.Path, cfg.Collector.Retention, logger)
	cleanup := func() {
		if err := st.Close(); err != nil {
			logger.Warn("closing event store failed", "error", err)
		}
	}
	return service.New(svcCfg, channel, col, firstRun, logger), cleanup, nil
}

func runServe() error {
	cfg, reportInterval, logger, err := setup()
	if err != nil {
		return err
	}

	channel, err := delivery.New(delivery.Options{
		Provider: cfg.Delivery.Provider,
		Timeout:  cfg.Delivery.Timeout,
		SMTP: delivery.SMTPOptions{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			User:     cfg.SMTP.User,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			To:       cfg.SMTP.To,
			StartTLS: cfg.SMTP.StartTLS,
		},
		Resend: delivery.ResendOptions{
			APIKey: cfg.Resend.APIKey,
			From:   cfg.Resend.From,
			To:     cfg.Resend.To,
		},
		Webhook: delivery.WebhookOptions{URL: cfg.Webhook.URL},
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("delivery provider: %w", err)
	}

	reporter, cleanup, err := buildReporter(cfg, reportInterval, channel, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if cfg.Metrics.Enabled {
		go func() {
			addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			logger.Info("metrics endpoint listening", "addr", addr)
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Error("metrics endpoint failed", "error", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := reporter.Start(ctx); err != nil {
		return err
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	return reporter.Stop()
}

func runReport() error {
	cfg, reportInterval, logger, err := setup()
	if err != nil {
		return err
	}

	// One-shot mode prints to stdout without delivery. The window
	// source follows the configuration: the accumulated store when the
	// collector is enabled, otherwise the log read directly.
	channel := delivery.NewLogChannel(logger)

	reporter, cleanup, err := buildReporter(cfg, reportInterval, channel, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	_, text, err := reporter.BuildReport(time.Now())
	if err != nil {
		return err
	}

	fmt.Println(text)
	return nil
}
