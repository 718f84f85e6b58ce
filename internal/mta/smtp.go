package mta

import (
	"context"
	"crypto/tls"
	"net"
	"regexp"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/pkg/errors"

	"github.com/ignite/mailcore/internal/domain"
)

var queuedAsRe = regexp.MustCompile(`(?i)queued as ([A-Za-z0-9]+)`)

// SMTPConfig describes the relay connection.
type SMTPConfig struct {
	Host     string
	Port     string
	HeloName string
	Username string
	Password string
	StartTLS bool
	Timeout  time.Duration
}

// SMTPSender relays messages to an SMTP server, normally the local Postfix.
type SMTPSender struct {
	cfg SMTPConfig
	now func() time.Time
}

// NewSMTPSender creates a relay sender.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	if cfg.Port == "" {
		cfg.Port = "25"
	}
	if cfg.HeloName == "" {
		cfg.HeloName = "localhost"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &SMTPSender{cfg: cfg, now: time.Now}
}

// Send implements Sender.
func (s *SMTPSender) Send(ctx context.Context, msg *domain.MTAMessage) (*domain.MTAReceipt, error) {
	raw, err := Compose(msg, s.now())
	if err != nil {
		return nil, errors.Wrap(err, "could not compose message")
	}

	dialer := net.Dialer{Timeout: s.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(s.cfg.Host, s.cfg.Port))
	if err != nil {
		return nil, errors.Wrap(err, "could not connect to mta")
	}
	deadline := time.Now().Add(s.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	c := smtp.NewClient(conn)
	defer c.Close()

	if err := c.Hello(s.cfg.HeloName); err != nil {
		return nil, errors.Wrap(err, "could not greet mta")
	}
	if s.cfg.StartTLS {
		if err := c.StartTLS(&tls.Config{ServerName: s.cfg.Host}); err != nil {
			return nil, errors.Wrap(err, "could not start tls")
		}
	}
	if s.cfg.Username != "" {
		if err := c.Auth(sasl.NewPlainClient("", s.cfg.Username, s.cfg.Password)); err != nil {
			return nil, errors.Wrap(err, "could not authenticate")
		}
	}
	if err := c.Mail(msg.From, nil); err != nil {
		return nil, errors.Wrap(err, "mta rejected sender")
	}
	if err := c.Rcpt(msg.To, nil); err != nil {
		return nil, errors.Wrap(err, "mta rejected recipient")
	}
	w, err := c.Data()
	if err != nil {
		return nil, errors.Wrap(err, "could not start data")
	}
	if _, err := w.Write(raw); err != nil {
		return nil, errors.Wrap(err, "could not write message")
	}
	resp, err := w.CloseWithResponse()
	if err != nil {
		return nil, errors.Wrap(err, "mta rejected message")
	}
	_ = c.Quit()

	return &domain.MTAReceipt{
		QueueID:  ParseQueueID(resp.StatusText),
		Code:     250,
		Response: resp.StatusText,
		At:       s.now(),
	}, nil
}

// ParseQueueID extracts the queue ID from a "250 2.0.0 Ok: queued as X"
// response. Responses without one yield "".
func ParseQueueID(resp string) string {
	m := queuedAsRe.FindStringSubmatch(resp)
	if m == nil {
		return ""
	}
	return m[1]
}

