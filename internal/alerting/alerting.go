package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// AlertConfig holds alerting configuration.
type AlertConfig struct {
	// WebhookURL is a generic webhook endpoint (Slack, Discord, or custom)
	WebhookURL string
	// WebhookType determines the payload format: "slack", "discord", or "generic".
	// Empty means detect from the URL.
	WebhookType string
	// MinFailuresBeforeAlert is the number of consecutive failed refreshes
	// needed before an alert goes out
	MinFailuresBeforeAlert int
	// Timeout for HTTP requests
	Timeout time.Duration
}

func (c AlertConfig) Enabled() bool { return c.WebhookURL != "" }

func detectType(url string) string {
	switch {
	case strings.Contains(url, "slack.com"):
		return "slack"
	case strings.Contains(url, "discord.com"):
		return "discord"
	default:
		return "generic"
	}
}

// Alerter sends alerts to the configured webhook.
type Alerter struct {
	cfg    AlertConfig
	client *http.Client
	log    logrus.FieldLogger
}

func NewAlerter(cfg AlertConfig, log logrus.FieldLogger) *Alerter {
	if cfg.WebhookType == "" {
		cfg.WebhookType = detectType(cfg.WebhookURL)
	}
	if cfg.MinFailuresBeforeAlert < 1 {
		cfg.MinFailuresBeforeAlert = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log.WithField("component", "alerting"),
	}
}

// RefreshAlert describes a failing price refresh.
type RefreshAlert struct {
	JobName             string
	ConsecutiveFailures int
	Error               string
	Duration            time.Duration
	LastSuccess         *time.Time
	Timestamp           time.Time
}

// SendRefreshAlert posts alert to the webhook once the failure threshold is met.
// It reports whether an alert was actually sent.
func (a *Alerter) SendRefreshAlert(ctx context.Context, alert RefreshAlert) (bool, error) {
	if !a.cfg.Enabled() {
		a.log.Debug("alerts disabled, skipping")
		return false, nil
	}

	if alert.ConsecutiveFailures < a.cfg.MinFailuresBeforeAlert {
		a.log.WithFields(logrus.Fields{
			"failures":  alert.ConsecutiveFailures,
			"threshold": a.cfg.MinFailuresBeforeAlert,
		}).Debug("failures below threshold, skipping")
		return false, nil
	}

	var payload []byte
	var err error

	switch a.cfg.WebhookType {
	case "slack":
		payload, err = buildSlackPayload(alert)
	case "discord":
		payload, err = buildDiscordPayload(alert)
	default:
		payload, err = buildGenericPayload(alert)
	}

	if err != nil {
		return false, fmt.Errorf("build payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return false, fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	a.log.WithFields(logrus.Fields{
		"job":      alert.JobName,
		"failures": alert.ConsecutiveFailures,
	}).Info("sent refresh alert")
	return true, nil
}

func lastSuccessText(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Format(time.RFC3339)
}

func buildSlackPayload(alert RefreshAlert) ([]byte, error) {
	payload := map[string]interface{}{
		"blocks": []map[string]interface{}{
			{
				"type": "header",
				"text": map[string]string{
					"type": "plain_text",
					"text": fmt.Sprintf(":x: Price refresh failing: %s", alert.JobName),
				},
			},
			{
				"type": "section",
				"fields": []map[string]string{
					{"type": "mrkdwn", "text": fmt.Sprintf("*Consecutive failures:*\n%d", alert.ConsecutiveFailures)},
					{"type": "mrkdwn", "text": fmt.Sprintf("*Duration:*\n%s", alert.Duration.Round(time.Millisecond))},
					{"type": "mrkdwn", "text": fmt.Sprintf("*Last success:*\n%s", lastSuccessText(alert.LastSuccess))},
					{"type": "mrkdwn", "text": fmt.Sprintf("*Timestamp:*\n%s", alert.Timestamp.Format(time.RFC3339))},
				},
			},
			{
				"type": "section",
				"text": map[string]string{
					"type": "mrkdwn",
					"text": fmt.Sprintf("*Error:*\n%s", alert.Error),
				},
			},
		},
	}

	return json.Marshal(payload)
}

func buildDiscordPayload(alert RefreshAlert) ([]byte, error) {
	color := 16776960 // Yellow
	if alert.LastSuccess == nil {
		color = 16711680 // Red
	}

	payload := map[string]interface{}{
		"embeds": []map[string]interface{}{
			{
				"title":       fmt.Sprintf("Price refresh failing: %s", alert.JobName),
				"description": alert.Error,
				"color":       color,
				"fields": []map[string]interface{}{
					{"name": "Consecutive failures", "value": fmt.Sprintf("%d", alert.ConsecutiveFailures), "inline": true},
					{"name": "Duration", "value": alert.Duration.Round(time.Millisecond).String(), "inline": true},
					{"name": "Last success", "value": lastSuccessText(alert.LastSuccess), "inline": true},
				},
				"timestamp": alert.Timestamp.Format(time.RFC3339),
			},
		},
	}

	return json.Marshal(payload)
}

func buildGenericPayload(alert RefreshAlert) ([]byte, error) {
	payload := map[string]interface{}{
		"alert_type":           "refresh_failure",
		"job_name":             alert.JobName,
		"consecutive_failures": alert.ConsecutiveFailures,
		"error":                alert.Error,
		"duration_ms":          alert.Duration.Milliseconds(),
		"last_success":         alert.LastSuccess,
		"timestamp":            alert.Timestamp.Format(time.RFC3339),
	}

	return json.Marshal(payload)
}
