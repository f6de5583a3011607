// Package mailer sends transactional email through SendGrid, or to the log
// when no API key is configured.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

// Email is one outbound message.
type Email struct {
	To       string
	ToName   string
	Subject  string
	TextBody string
	HTMLBody string
}

// Sender delivers an Email.
type Sender interface {
	Send(ctx context.Context, msg Email) error
}

// ErrNoRecipient is returned when msg.To is empty.
var ErrNoRecipient = errors.New("mailer: no recipient")

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

// SendGrid sends through the SendGrid v3 API.
type SendGrid struct {
	key  string
	from *sgmail.Email
	host string
}

// NewSendGrid builds a SendGrid sender.
func NewSendGrid(apiKey, fromAddr, fromName string) *SendGrid {
	return &SendGrid{
		key:  apiKey,
		from: sgmail.NewEmail(fromName, fromAddr),
		host: sendgridHost,
	}
}

// WithHost points the sender at another API host. Tests use it.
func (s *SendGrid) WithHost(host string) *SendGrid {
	s.host = host
	return s
}

func (s *SendGrid) build(msg Email) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = msg.Subject
	p.AddTos(sgmail.NewEmail(msg.ToName, msg.To))

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.AddPersonalizations(p)
	if msg.TextBody != "" {
		m.AddContent(sgmail.NewContent("text/plain", msg.TextBody))
	}
	if msg.HTMLBody != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTMLBody))
	}
	return m
}

// Send posts msg to SendGrid. A 4xx/5xx answer is an error.
func (s *SendGrid) Send(ctx context.Context, msg Email) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	req := sendgrid.GetRequest(s.key, sendgridEndpoint, s.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(s.build(msg))

	res, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid: status %d: %s", res.StatusCode, res.Body)
	}
	return nil
}

// LogMailer writes messages to the log instead of sending them.
type LogMailer struct {
	Log *zap.Logger
}

// Send logs msg.
func (l LogMailer) Send(_ context.Context, msg Email) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	l.Log.Info("email (not sent, no provider configured)",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("text", msg.TextBody))
	return nil
}

// New returns a SendGrid sender when apiKey is set, otherwise a LogMailer.
func New(apiKey, fromAddr, fromName string, logger *zap.Logger) Sender {
	if apiKey == "" {
		return LogMailer{Log: logger}
	}
	return NewSendGrid(apiKey, fromAddr, fromName)
}
