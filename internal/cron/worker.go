package cron

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/bher20/utilitybill/internal/alerting"
	"github.com/bher20/utilitybill/internal/export"
	"github.com/bher20/utilitybill/internal/metrics"
	"github.com/bher20/utilitybill/internal/storage"
)

const (
	jobName         = "export_history"
	defaultInterval = 24 * time.Hour
)

// HistorySource is the part of the history service the worker needs.
type HistorySource interface {
	Load(ctx context.Context) ([]storage.PeriodRecord, error)
}

// FailureAlerter is notified after each failed run.
type FailureAlerter interface {
	SendJobAlert(ctx context.Context, alert alerting.JobAlert) error
}

// ExportWorker periodically writes the history to an export file.
type ExportWorker struct {
	Source   HistorySource
	Schedule string // integer seconds or a standard cron expression
	Dir      string
	Format   string
	FontPath string
	Log      *zap.Logger
	// Alerter is optional.
	Alerter FailureAlerter

	// Tick is how often the loop checks whether a run is due.
	Tick time.Duration
	now  func() time.Time
}

// ValidateSchedule reports whether setting is usable by NextRun without
// falling back to the default interval.
func ValidateSchedule(setting string) error {
	setting = strings.TrimSpace(setting)
	if v, err := strconv.Atoi(setting); err == nil {
		if v <= 0 {
			return errors.New("schedule interval must be positive")
		}
		return nil
	}
	_, err := cron.ParseStandard(setting)
	return err
}

// NextRun returns the time of the run after lastRun. setting is either a
// number of seconds or a cron expression; anything else means daily.
func NextRun(setting string, lastRun time.Time) time.Time {
	setting = strings.TrimSpace(setting)
	if v, err := strconv.Atoi(setting); err == nil && v > 0 {
		return lastRun.Add(time.Duration(v) * time.Second)
	}
	if sched, err := cron.ParseStandard(setting); err == nil {
		return sched.Next(lastRun)
	}
	return lastRun.Add(defaultInterval)
}

// RunOnce writes one export and returns its path.
func (w *ExportWorker) RunOnce(ctx context.Context) (string, error) {
	started := w.clock()
	recs, err := w.Source.Load(ctx)
	if err != nil {
		metrics.UpdateJobMetrics(jobName, started, err)
		return "", err
	}
	path, err := export.WriteFile(w.Dir, w.Format, recs, started, export.Options{FontPath: w.FontPath})
	metrics.UpdateJobMetrics(jobName, started, err)
	return path, err
}

// Run loops until ctx is cancelled. The first export is written on the
// first tick, then on the schedule.
func (w *ExportWorker) Run(ctx context.Context) error {
	log := w.Log
	if log == nil {
		log = zap.NewNop()
	}
	tick := w.Tick
	if tick <= 0 {
		tick = 10 * time.Second
	}
	if err := ValidateSchedule(w.Schedule); err != nil {
		log.Warn("export schedule invalid, running daily", zap.String("schedule", w.Schedule), zap.Error(err))
	}

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	nextRun := w.clock()
	failures := 0
	log.Info("export worker starting",
		zap.String("schedule", w.Schedule),
		zap.String("dir", w.Dir),
		zap.String("format", w.Format))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if w.clock().Before(nextRun) {
				continue
			}
			started := w.clock()
			path, err := w.RunOnce(ctx)
			if err != nil {
				failures++
				log.Error("export failed", zap.String("job", jobName), zap.Int("consecutive_failures", failures), zap.Error(err))
				w.alert(ctx, log, failures, started, err)
			} else {
				failures = 0
				log.Info("export written",
					zap.String("job", jobName),
					zap.String("path", path),
					zap.Duration("duration", time.Since(started)))
			}
			nextRun = NextRun(w.Schedule, w.clock())
		}
	}
}

func (w *ExportWorker) alert(ctx context.Context, log *zap.Logger, failures int, started time.Time, runErr error) {
	if w.Alerter == nil {
		return
	}
	a := alerting.JobAlert{
		JobName:             jobName,
		ConsecutiveFailures: failures,
		LastError:           runErr.Error(),
		Duration:            w.clock().Sub(started),
		Timestamp:           w.clock(),
	}
	if err := w.Alerter.SendJobAlert(ctx, a); err != nil {
		log.Warn("failed to send export alert", zap.Error(err))
	}
}

func (w *ExportWorker) clock() time.Time {
	if w.now != nil {
		return w.now()
	}
	return time.Now()
}
