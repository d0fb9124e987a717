package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/telhawk-systems/banwatch/internal/report"
)

const defaultResendURL = "https://api.resend.com/emails"

// ResendOptions configures the Resend email API channel.
type ResendOptions struct {
	APIKey string
	From   string
	To     []string

	// URL overrides the API endpoint, for tests.
	URL string
}

// ResendChannel delivers reports through the Resend email API.
type ResendChannel struct {
	opts   ResendOptions
	client *http.Client
}

// NewResendChannel creates a Resend delivery channel.
func NewResendChannel(opts ResendOptions, timeout time.Duration) *ResendChannel {
	if opts.URL == "" {
		opts.URL = defaultResendURL
	}
	return &ResendChannel{
		opts:   opts,
		client: &http.Client{Timeout: timeout},
	}
}

func (r *ResendChannel) Type() string {
	return "resend"
}

func (r *ResendChannel) Send(ctx context.Context, subject string, data report.Data, text, html string) error {
	if r.opts.APIKey == "" || r.opts.From == "" {
		return errors.New("resend api key and from address must be set")
	}
	if len(r.opts.To) == 0 {
		return errors.New("resend recipient list is empty")
	}

	payload := map[string]interface{}{
		"from":    r.opts.From,
		"to":      r.opts.To,
		"subject": subject,
		"text":    text,
	}
	if html != "" {
		payload["html"] = html
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal resend payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.opts.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create resend request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.opts.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("send resend request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("resend api returned status %d: %s", resp.StatusCode, detail)
	}
	return nil
}
