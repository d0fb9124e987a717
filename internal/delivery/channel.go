// Package delivery sends rendered reports to an external consumer. The
// engine has no knowledge of transport; each provider is a Channel.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/telhawk-systems/banwatch/internal/report"
)

// ErrUnknownProvider is returned by New for an unrecognized delivery
// provider. This is a fatal misconfiguration, surfaced at startup.
var ErrUnknownProvider = errors.New("unknown delivery provider")

// Channel delivers one rendered report.
type Channel interface {
	Send(ctx context.Context, subject string, data report.Data, text, html string) error
	Type() string
}

// Options carries the provider-specific settings owned by the
// configuration loader.
type Options struct {
	Provider string
	Timeout  time.Duration

	SMTP    SMTPOptions
	Resend  ResendOptions
	Webhook WebhookOptions

	Logger *slog.Logger
}

// New builds the configured delivery channel. Unknown providers fail
// fast so a misconfigured service never runs silently.
func New(opts Options) (Channel, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	switch opts.Provider {
	case "smtp":
		return NewSMTPChannel(opts.SMTP), nil
	case "resend":
		return NewResendChannel(opts.Resend, opts.Timeout), nil
	case "webhook":
		return NewWebhookChannel(opts.Webhook.URL, opts.Timeout), nil
	case "log", "":
		return NewLogChannel(opts.Logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, opts.Provider)
	}
}

// LogChannel writes reports to the log, used by default and in tests.
type LogChannel struct {
	logger *slog.Logger
}

// NewLogChannel creates a log-based delivery channel.
func NewLogChannel(logger *slog.Logger) *LogChannel {
	return &LogChannel{logger: logger}
}

func (l *LogChannel) Type() string {
	return "log"
}

func (l *LogChannel) Send(ctx context.Context, subject string, data report.Data, text, html string) error {
	l.logger.InfoContext(ctx, "report generated",
		"subject", subject,
		"report_id", data.ID,
		"banned", len(data.UniqueBanned),
		"unbanned", len(data.UniqueUnbanned),
		"failed_attempts", data.TotalFailedAttempts,
	)
	return nil
}

// MultiChannel fans a report out to multiple channels. Delivery counts
// as successful when at least one channel accepts it.
type MultiChannel struct {
	channels []Channel
}

// NewMultiChannel creates a fan-out delivery channel.
func NewMultiChannel(channels ...Channel) *MultiChannel {
	return &MultiChannel{channels: channels}
}

func (m *MultiChannel) Type() string {
	return "multi"
}

func (m *MultiChannel) Send(ctx context.Context, subject string, data report.Data, text, html string) error {
	var lastErr error
	sent := 0

	for _, ch := range m.channels {
		if err := ch.Send(ctx, subject, data, text, html); err != nil {
			lastErr = fmt.Errorf("%s channel failed: %w", ch.Type(), err)
		} else {
			sent++
		}
	}

	if sent == 0 && len(m.channels) > 0 {
		return fmt.Errorf("all delivery channels failed: %w", lastErr)
	}
	return nil
}
