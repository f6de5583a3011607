// Package whatsapp sends text messages through the Z-API gateway.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// DefaultBaseURL is the public Z-API endpoint.
const DefaultBaseURL = "https://api.z-api.io"

var (
	// ErrNotConfigured is returned by Send when no instance or token is set.
	ErrNotConfigured = errors.New("whatsapp: not configured")
	// ErrBadPhone is returned when a phone number has no digits.
	ErrBadPhone = errors.New("whatsapp: invalid phone")
)

// Config holds Z-API credentials.
type Config struct {
	BaseURL     string
	Instance    string
	Token       string
	ClientToken string // sent as the Client-Token header when set
}

// Client posts messages to Z-API with retries.
type Client struct {
	cfg  Config
	http *retryablehttp.Client
	log  *zap.Logger
}

// New builds a client. A send is retried, backing off between 200ms and 2s
// up to three times, only when Z-API could not have accepted it: the
// connection was refused or the gateway answered 429.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = 10 * time.Second
	rc.Logger = nil
	rc.CheckRetry = retryUnsent
	return &Client{cfg: cfg, http: rc, log: logger}
}

// retryUnsent retries only attempts that cannot have delivered a message.
// A timeout or a 5xx may follow a send that went through.
func retryUnsent(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		var op *net.OpError
		return errors.As(err, &op) && op.Op == "dial", nil
	}
	return resp.StatusCode == http.StatusTooManyRequests, nil
}

// Enabled reports whether the client has credentials.
func (c *Client) Enabled() bool {
	return c != nil && c.cfg.Instance != "" && c.cfg.Token != ""
}

// SendResult is what Z-API answers for an accepted message.
type SendResult struct {
	MessageID string `json:"messageId"`
	ZaapID    string `json:"zaapId"`
}

// Send delivers message to phone. Non-digits are stripped from phone.
func (c *Client) Send(ctx context.Context, phone, message string) (SendResult, error) {
	if !c.Enabled() {
		return SendResult{}, ErrNotConfigured
	}
	digits := Digits(phone)
	if digits == "" {
		return SendResult{}, ErrBadPhone
	}

	body, err := json.Marshal(map[string]string{"phone": digits, "message": message})
	if err != nil {
		return SendResult{}, err
	}
	url := fmt.Sprintf("%s/instances/%s/token/%s/send-text",
		strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.Instance, c.cfg.Token)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return SendResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.ClientToken != "" {
		req.Header.Set("Client-Token", c.cfg.ClientToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return SendResult{}, fmt.Errorf("whatsapp: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return SendResult{}, fmt.Errorf("whatsapp: status %d: %s", resp.StatusCode, b)
	}

	var out SendResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil && !errors.Is(err, io.EOF) {
		c.log.Debug("z-api response not decoded", zap.Error(err))
	}
	return out, nil
}

// Digits strips everything but 0-9 from phone.
func Digits(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// InviteMessage is the WhatsApp text sent with an invite.
func InviteMessage(inviterName, roleName, link, expiresIn string) string {
	var b strings.Builder
	b.WriteString("🙏 *Igreja Bola de Neve*\n\n")
	fmt.Fprintf(&b, "Olá! Você foi convidado(a) por *%s* para fazer parte do nosso sistema como *%s*.\n\n", inviterName, roleName)
	if link != "" {
		b.WriteString("📱 *Acesse o link para completar seu cadastro:*\n")
		b.WriteString(link + "\n\n")
	}
	b.WriteString("🔐 Use seu email @boladeneve.com para fazer login.\n\n")
	if expiresIn != "" {
		fmt.Fprintf(&b, "⏰ Este convite expira em %s.\n\n", expiresIn)
	}
	b.WriteString("Deus abençoe! 🙌")
	return b.String()
}
