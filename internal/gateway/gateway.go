package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pizzeria-orders/internal/config"
	"pizzeria-orders/internal/logger"
	"pizzeria-orders/internal/models"
)

// Sender delivers a text message to a phone number. Implementations must
// treat the context deadline as the upper bound for the whole send.
type Sender interface {
	Send(ctx context.Context, toPhone, body string) error
}

// New selects the gateway implementation from configuration. Anything other
// than "twilio" gets the log-only sender, the non-production default.
func New(cfg config.GatewayConfig, log *logger.Logger) Sender {
	if cfg.Mode == "twilio" {
		return NewTwilioSender(cfg)
	}
	return &LogSender{logger: log}
}

// LogSender writes the message to the log instead of sending it.
type LogSender struct {
	logger *logger.Logger
}

func (s *LogSender) Send(_ context.Context, toPhone, body string) error {
	s.logger.Info("whatsapp_simulated", "WhatsApp message simulated", "", map[string]any{
		"to":   toPhone,
		"body": body,
	})
	return nil
}

const twilioBaseURL = "https://api.twilio.com"

// TwilioSender sends WhatsApp messages through the Twilio Messages API.
type TwilioSender struct {
	client     *http.Client
	baseURL    string
	accountSID string
	authToken  string
	from       string
}

func NewTwilioSender(cfg config.GatewayConfig) *TwilioSender {
	return &TwilioSender{
		client:     &http.Client{Timeout: 5 * time.Second},
		baseURL:    twilioBaseURL,
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		from:       cfg.From,
	}
}

func (s *TwilioSender) Send(ctx context.Context, toPhone, body string) error {
	form := url.Values{}
	form.Set("From", "whatsapp:"+s.from)
	form.Set("To", "whatsapp:"+toPhone)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.baseURL, s.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrDispatch, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(s.accountSID, s.authToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrDispatch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: twilio responded %s: %s", models.ErrDispatch, resp.Status, strings.TrimSpace(string(detail)))
	}

	return nil
}
