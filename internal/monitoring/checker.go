package monitoring

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gurnoornatt/supergoodleadgen/internal/config"
	"github.com/gurnoornatt/supergoodleadgen/internal/model"
)

// SummaryFunc returns the live run summary, or nil before the first chunk.
type SummaryFunc func() *model.RunSummary

// Checker runs periodic alert checks in the background. Each alert type is
// raised at most once per run.
type Checker struct {
	summary  SummaryFunc
	alerter  *Alerter
	interval time.Duration

	mu     sync.Mutex
	raised map[AlertType]bool
}

// NewChecker creates a background alert checker.
func NewChecker(summary SummaryFunc, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	interval := time.Duration(cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Checker{
		summary:  summary,
		alerter:  alerter,
		interval: interval,
		raised:   make(map[AlertType]bool),
	}
}

// Run starts the periodic check loop. It blocks until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Debug("starting alert checker", zap.Duration("interval", c.interval))

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("alert checker stopped")
			return
		case <-ticker.C:
			c.Check(ctx, c.summary())
		}
	}
}

// Check evaluates s and sends alerts not yet raised. It returns the alerts
// that were new.
func (c *Checker) Check(ctx context.Context, s *model.RunSummary) []Alert {
	var fresh []Alert
	c.mu.Lock()
	for _, a := range c.alerter.Evaluate(s) {
		if c.raised[a.Type] {
			continue
		}
		c.raised[a.Type] = true
		fresh = append(fresh, a)
	}
	c.mu.Unlock()

	if len(fresh) == 0 {
		return nil
	}
	for _, a := range fresh {
		zap.L().Warn("monitoring: "+a.Message,
			zap.String("type", string(a.Type)),
			zap.String("run_id", a.RunID),
		)
	}
	c.alerter.SendAlerts(ctx, fresh)
	return fresh
}
