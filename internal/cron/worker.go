// Package cron runs the periodic upstream refresh.
package cron

import (
	"context"
	"strconv"
	"time"

	"github.com/bher20/stromdeals/internal/alerting"
	"github.com/bher20/stromdeals/internal/catalog"
	"github.com/bher20/stromdeals/internal/metrics"
	"github.com/bher20/stromdeals/internal/offers"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const (
	JobName = catalog.RefreshJob

	// IntervalSetting is the settings key that overrides the configured interval at runtime.
	IntervalSetting = "refresh_interval"

	lockKey         int64 = 42
	defaultInterval       = 15 * time.Minute
)

// Refresher forces a fetch from the vendor API.
type Refresher interface {
	Refresh(ctx context.Context) (offers.PriceDump, error)
}

// JobStore keeps run bookkeeping and the cross-instance lock.
type JobStore interface {
	GetSetting(ctx context.Context, key string) (string, error)
	AcquireAdvisoryLock(ctx context.Context, key int64) (bool, error)
	ReleaseAdvisoryLock(ctx context.Context, key int64) (bool, error)
	UpdateScheduledJob(ctx context.Context, name string, started time.Time, dur time.Duration, success bool, errMsg string) error
}

type Alerter interface {
	SendRefreshAlert(ctx context.Context, alert alerting.RefreshAlert) (bool, error)
}

type Worker struct {
	refresher Refresher
	store     JobStore
	alerter   Alerter
	interval  string
	tick      time.Duration
	log       logrus.FieldLogger

	failures    int
	lastSuccess *time.Time
}

// NewWorker builds a worker. interval is integer seconds or a standard cron
// expression; alerter may be nil.
func NewWorker(r Refresher, store JobStore, alerter Alerter, interval string, log logrus.FieldLogger) *Worker {
	return &Worker{
		refresher: r,
		store:     store,
		alerter:   alerter,
		interval:  interval,
		tick:      10 * time.Second,
		log:       log.WithField("component", "cron"),
	}
}

// NextRun computes when the job should run after last.
func NextRun(setting string, last time.Time) time.Time {
	// Try integer seconds
	if v, err := strconv.Atoi(setting); err == nil && v > 0 {
		return last.Add(time.Duration(v) * time.Second)
	}
	// Try cron expression
	if sched, err := cron.ParseStandard(setting); err == nil {
		return sched.Next(last)
	}
	return last.Add(defaultInterval)
}

// Run refreshes immediately and then on schedule until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	setting := w.interval
	if val, err := w.store.GetSetting(ctx, IntervalSetting); err == nil && val != "" {
		setting = val
	}

	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()

	w.log.WithField("interval", setting).Info("refresh worker starting")

	nextRun := time.Now()
	for {
		if !time.Now().Before(nextRun) {
			_ = w.RunOnce(ctx)
			nextRun = NextRun(setting, time.Now())
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if val, err := w.store.GetSetting(ctx, IntervalSetting); err == nil && val != "" && val != setting {
			w.log.WithFields(logrus.Fields{"from": setting, "to": val}).Info("interval updated")
			setting = val
			nextRun = NextRun(setting, time.Now())
		}
	}
}

// RunOnce performs one locked refresh with bookkeeping and alerting. It
// returns the refresh error, or nil when another instance holds the lock.
func (w *Worker) RunOnce(ctx context.Context) error {
	started := time.Now()

	ok, err := w.store.AcquireAdvisoryLock(ctx, lockKey)
	if err != nil {
		w.log.WithError(err).Warn("acquire advisory lock failed")
		metrics.UpdateJobMetrics(JobName, started, err)
		return err
	}
	if !ok {
		w.log.Info("advisory lock held by another worker, skipping run")
		return nil
	}

	var runErr error
	var offerCount int
	func() {
		defer func() {
			if _, err := w.store.ReleaseAdvisoryLock(ctx, lockKey); err != nil {
				w.log.WithError(err).Warn("release advisory lock failed")
			}
		}()
		d, err := w.refresher.Refresh(ctx)
		runErr = err
		offerCount = len(d.Offers)
	}()

	metrics.UpdateJobMetrics(JobName, started, runErr)
	dur := time.Since(started)
	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
	}
	if err := w.store.UpdateScheduledJob(ctx, JobName, started, dur, runErr == nil, errMsg); err != nil {
		w.log.WithError(err).Warn("update scheduled job failed")
	}

	entry := w.log.WithFields(logrus.Fields{"job": JobName, "duration": dur.String()})
	if runErr == nil {
		entry.WithField("offers", offerCount).Info("job completed")
		w.failures = 0
		w.lastSuccess = &started
		return nil
	}

	entry.WithError(runErr).Error("job failed")
	w.failures++
	if w.alerter != nil {
		_, err := w.alerter.SendRefreshAlert(ctx, alerting.RefreshAlert{
			JobName:             JobName,
			ConsecutiveFailures: w.failures,
			Error:               errMsg,
			Duration:            dur,
			LastSuccess:         w.lastSuccess,
			Timestamp:           time.Now(),
		})
		if err != nil {
			w.log.WithError(err).Warn("send alert failed")
		}
	}
	return runErr
}
