package dispatch

import (
	"context"
	"fmt"
	"time"

	"meal-alert-service/internal/channels"
	"meal-alert-service/internal/logging"
	"meal-alert-service/internal/models"
)

// ReportStore persists delivery reports. Persistence is best-effort: a
// failing store never fails a delivery.
type ReportStore interface {
	SaveReport(ctx context.Context, report models.DeliveryReport) error
}

// BackoffDelay is the retry schedule contract: attempt n sleeps
// base * 2^n before retrying.
func BackoffDelay(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return base * time.Duration(1<<uint(attempt))
}

// Orchestrator fans one alert out across every channel, isolates
// per-channel failures, and drives the bounded retry loop. It holds no
// cross-call mutable state; each delivery is independent.
type Orchestrator struct {
	channels []channels.Channel
	store    ReportStore
	logger   *logging.Logger

	backoffBase time.Duration
	retryPause  time.Duration
	sleep       func(time.Duration)
}

// New constructs an Orchestrator over the external channels in the order
// they should be attempted (realtime, push, email).
func New(chs []channels.Channel, store ReportStore, logger *logging.Logger, backoffBase, retryPause time.Duration) *Orchestrator {
	if backoffBase <= 0 {
		backoffBase = time.Second
	}
	if retryPause <= 0 {
		retryPause = 500 * time.Millisecond
	}
	return &Orchestrator{
		channels:    chs,
		store:       store,
		logger:      logger,
		backoffBase: backoffBase,
		retryPause:  retryPause,
		sleep:       time.Sleep,
	}
}

// Deliver attempts every channel once. The dashboard result is recorded
// first: the alert's durable existence satisfies that channel, so at
// least one result exists even if every adapter fails outright. No
// channel error propagates; each is captured into its DeliveryResult.
func (o *Orchestrator) Deliver(ctx context.Context, alert models.Alert) models.DeliveryReport {
	report := models.DeliveryReport{AlertID: alert.ID, Timestamp: time.Now()}
	report.Append(models.DeliveryResult{
		Channel:        models.ChannelDashboard,
		Success:        true,
		RecipientCount: 1,
	})

	for _, ch := range o.channels {
		report.Append(o.attempt(ctx, ch, alert))
	}

	o.saveReport(ctx, report)
	return report
}

// Retry re-attempts only the named external channels, pausing between
// channels to avoid hammering providers. Dashboard is never retried.
func (o *Orchestrator) Retry(ctx context.Context, alert models.Alert, chs []models.Channel) []models.DeliveryResult {
	var results []models.DeliveryResult
	for _, name := range chs {
		if name == models.ChannelDashboard {
			continue
		}
		ch := o.channel(name)
		if ch == nil {
			continue
		}
		if len(results) > 0 {
			o.sleep(o.retryPause)
		}
		results = append(results, o.attempt(ctx, ch, alert))
	}
	return results
}

// DeliverWithRetry delivers, then retries the failing channels up to
// maxRetries times with exponential backoff. Exhausting retries with
// channels still failing is a degraded outcome, not an error: the
// dashboard channel always provides a delivery floor.
func (o *Orchestrator) DeliverWithRetry(ctx context.Context, alert models.Alert, maxRetries int) models.DeliveryReport {
	report := o.Deliver(ctx, alert)
	if report.FailedChannels == 0 {
		return report
	}

	retried := false
	for attempt := 1; attempt <= maxRetries; attempt++ {
		o.sleep(BackoffDelay(o.backoffBase, attempt))

		failed := report.FailedExternalChannels()
		o.logger.Infof("Retry attempt %d/%d for alert %s, channels: %v", attempt, maxRetries, alert.ID, failed)
		retried = true

		for _, res := range o.Retry(ctx, alert, failed) {
			if res.Success {
				report.Replace(res)
			}
		}
		if report.FailedChannels == 0 {
			break
		}
	}

	if report.FailedChannels > 0 {
		o.logger.Warnf("Alert %s delivery degraded after retries: %d channel(s) still failing", alert.ID, report.FailedChannels)
	}
	if retried {
		o.saveReport(ctx, report)
	}
	return report
}

// attempt wraps one channel call. An error, a zero recipient count, or
// even a panic becomes a failed DeliveryResult; nothing escapes to abort
// the other channels.
func (o *Orchestrator) attempt(ctx context.Context, ch channels.Channel, alert models.Alert) (res models.DeliveryResult) {
	res = models.DeliveryResult{Channel: ch.Name()}
	defer func() {
		if r := recover(); r != nil {
			res.Success = false
			res.RecipientCount = 0
			res.Error = fmt.Sprintf("%v", r)
			o.logger.Errorf("Channel %s panicked for alert %s: %v", ch.Name(), alert.ID, r)
		}
	}()

	n, err := ch.Send(ctx, alert)
	if err != nil {
		res.Error = err.Error()
		o.logger.Errorf("Channel %s failed for alert %s: %v", ch.Name(), alert.ID, err)
		return res
	}
	res.RecipientCount = n
	res.Success = n > 0
	return res
}

func (o *Orchestrator) channel(name models.Channel) channels.Channel {
	for _, ch := range o.channels {
		if ch.Name() == name {
			return ch
		}
	}
	return nil
}

// saveReport is fire-and-forget: its failure is logged, never returned.
func (o *Orchestrator) saveReport(ctx context.Context, report models.DeliveryReport) {
	if o.store == nil {
		return
	}
	if err := o.store.SaveReport(ctx, report); err != nil {
		o.logger.Errorf("Persist delivery report for alert %s failed: %v", report.AlertID, err)
	}
}

// SetSleeper replaces the sleep function. Tests use this to run the
// backoff schedule against a fake clock.
func (o *Orchestrator) SetSleeper(sleep func(time.Duration)) {
	o.sleep = sleep
}
