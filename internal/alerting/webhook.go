package alerting

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	gobreaker "github.com/sony/gobreaker/v2"

	"logguardd/internal/metrics"
	"logguardd/internal/types"
)

type webhookPayload struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Webhook posts alerts as JSON to a generic endpoint (Discord, Slack relays, custom).
// Repeated delivery failures open a circuit breaker so a dead endpoint costs nothing
// until the breaker half-opens again.
type Webhook struct {
	url     string
	enabled bool
	client  *http.Client
	cb      *gobreaker.CircuitBreaker[any]
	log     logrus.FieldLogger
}

// NewWebhook creates the sink from configuration
func NewWebhook(cfg types.WebhookConfig, log logrus.FieldLogger) *Webhook {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.VerifyTLS != nil && !*cfg.VerifyTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // operator opted out
	}

	w := &Webhook{
		url:     cfg.URL,
		enabled: cfg.Enabled,
		client: &http.Client{
			Timeout:   time.Duration(cfg.TimeoutSeconds) * time.Second,
			Transport: transport,
		},
		log: log.WithField("sink", "webhook"),
	}

	w.cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "alert-webhook",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			w.log.WithFields(logrus.Fields{"from": from.String(), "to": to.String()}).Warn("Webhook circuit breaker state change")
		},
	})
	return w
}

func (w *Webhook) Name() string { return "webhook" }

// Send delivers one alert. Failures are logged, never returned.
func (w *Webhook) Send(ctx context.Context, subject, body string) {
	if !w.enabled {
		w.log.Debug("Webhook disabled, alert skipped")
		return
	}
	if w.url == "" {
		w.log.Warn("Webhook URL not configured, alert skipped")
		return
	}

	_, err := w.cb.Execute(func() (any, error) {
		return nil, w.post(ctx, subject, body)
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		w.log.WithError(err).Warn("Webhook circuit open, alert dropped")
	case err != nil:
		w.log.WithError(err).Error("Failed to send webhook alert")
	default:
		metrics.AlertsSent.WithLabelValues(w.Name()).Inc()
		w.log.WithField("subject", subject).Info("Webhook alert sent")
	}
}

func (w *Webhook) post(ctx context.Context, subject, body string) error {
	payload, err := json.Marshal(webhookPayload{Title: subject, Message: body})
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return fmt.Errorf("webhook returned HTTP %d: %s", resp.StatusCode, snippet)
	}
	return nil
}
