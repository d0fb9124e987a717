package delivery

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/telhawk-systems/banwatch/internal/report"
)

// SMTPOptions configures the SMTP channel.
type SMTPOptions struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	To       []string
	StartTLS bool
}

// SMTPChannel delivers reports as multipart/alternative email over
// SMTP. Port 465 uses implicit TLS; other ports optionally STARTTLS.
type SMTPChannel struct {
	opts SMTPOptions
}

// NewSMTPChannel creates an SMTP delivery channel.
func NewSMTPChannel(opts SMTPOptions) *SMTPChannel {
	return &SMTPChannel{opts: opts}
}

func (s *SMTPChannel) Type() string {
	return "smtp"
}

func (s *SMTPChannel) Send(ctx context.Context, subject string, data report.Data, text, html string) error {
	if s.opts.Host == "" {
		return errors.New("smtp host must be set")
	}
	if len(s.opts.To) == 0 {
		return errors.New("smtp recipient list is empty")
	}

	msg := buildMessage(s.opts.From, s.opts.To, subject, text, html)
	addr := net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port))

	client, err := s.dial(ctx, addr)
	if err != nil {
		return err
	}
	defer client.Close()

	if s.opts.Port != 465 && s.opts.StartTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: s.opts.Host}); err != nil {
				return fmt.Errorf("smtp starttls: %w", err)
			}
		}
	}

	if s.opts.User != "" {
		auth := smtp.PlainAuth("", s.opts.User, s.opts.Password, s.opts.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(s.opts.From); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	for _, rcpt := range s.opts.To {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp rcpt %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("smtp write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close message: %w", err)
	}

	return client.Quit()
}

func (s *SMTPChannel) dial(ctx context.Context, addr string) (*smtp.Client, error) {
	dialer := &net.Dialer{}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("smtp dial %s: %w", addr, err)
	}

	// The context deadline bounds the whole SMTP conversation, not just
	// the dial; a stalled server must not outlive the delivery timeout.
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			conn.Close()
			return nil, fmt.Errorf("smtp set deadline: %w", err)
		}
	}

	if s.opts.Port == 465 {
		conn = tls.Client(conn, &tls.Config{ServerName: s.opts.Host})
	}

	client, err := smtp.NewClient(conn, s.opts.Host)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("smtp handshake %s: %w", addr, err)
	}
	return client, nil
}

// buildMessage assembles a multipart/alternative message with a plain
// text part and, when present, an HTML part.
func buildMessage(from string, to []string, subject, text, html string) []byte {
	const boundary = "banwatch-report-boundary"

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")

	if html == "" {
		b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
		b.WriteString(text)
		return []byte(b.String())
	}

	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(text)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
	b.WriteString(html)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return []byte(b.String())
}
