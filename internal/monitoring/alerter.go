// Package monitoring raises alerts when a run's health crosses configured
// thresholds.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/gurnoornatt/supergoodleadgen/internal/config"
	"github.com/gurnoornatt/supergoodleadgen/internal/model"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertRenderFailureRate AlertType = "render_failure_rate"
	AlertRecordErrors      AlertType = "record_errors"
	AlertReconciled        AlertType = "reconciled_in_progress"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	RunID     string         `json:"run_id"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a RunSummary against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the summary against thresholds and returns any alerts.
func (a *Alerter) Evaluate(s *model.RunSummary) []Alert {
	if s == nil {
		return nil
	}
	var alerts []Alert
	now := time.Now().UTC()

	// Skipped rows never reached the renderer and are left out.
	attempted := s.Rendered + s.Failed
	if attempted > 0 && attempted >= a.cfg.MinRendered {
		rate := float64(s.Failed) / float64(attempted)
		if rate > a.cfg.FailureRateThreshold {
			alerts = append(alerts, Alert{
				Type:     AlertRenderFailureRate,
				Severity: "high",
				RunID:    s.RunID,
				Message: fmt.Sprintf(
					"Render failure rate %.1f%% exceeds threshold %.1f%% (%d of %d renders failed)",
					rate*100, a.cfg.FailureRateThreshold*100, s.Failed, attempted,
				),
				Details: map[string]any{
					"failure_rate": rate,
					"threshold":    a.cfg.FailureRateThreshold,
					"by_failure":   s.ByFailure,
				},
				Timestamp: now,
			})
		}
	}

	if s.Errors > 0 {
		alerts = append(alerts, Alert{
			Type:     AlertRecordErrors,
			Severity: "high",
			RunID:    s.RunID,
			Message:  fmt.Sprintf("%d record(s) hit a scoring or checkpoint error", s.Errors),
			Details: map[string]any{
				"errors": s.Errors,
				"total":  s.Total,
			},
			Timestamp: now,
		})
	}

	if s.Reconciled > 0 {
		alerts = append(alerts, Alert{
			Type:     AlertReconciled,
			Severity: "low",
			RunID:    s.RunID,
			Message:  fmt.Sprintf("%d checkpoint(s) were left in_progress by an earlier run", s.Reconciled),
			Details: map[string]any{
				"reconciled": s.Reconciled,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
