// Package metrics exposes banwatch's operational counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Report cycle metrics
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "banwatch_report_cycles_total",
			Help: "Total number of report cycles by outcome",
		},
		[]string{"status"},
	)

	CollectionCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "banwatch_collection_cycles_total",
			Help: "Total number of collection cycles by outcome",
		},
		[]string{"status"},
	)

	// Extraction metrics
	EventsExtractedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "banwatch_events_extracted_total",
			Help: "Total number of events extracted from the log by kind",
		},
		[]string{"kind"},
	)

	// Delivery metrics
	ReportsSentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "banwatch_reports_sent_total",
			Help: "Total number of reports delivered",
		},
	)

	DeliveryErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "banwatch_delivery_errors_total",
			Help: "Total number of failed report deliveries by provider",
		},
		[]string{"provider"},
	)

	// Report content metrics
	LastReportFailedAttempts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "banwatch_last_report_failed_attempts",
			Help: "Failed attempt count of the most recent report window",
		},
	)

	LastReportBannedAddresses = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "banwatch_last_report_banned_addresses",
			Help: "Unique banned address count of the most recent report window",
		},
	)
)
