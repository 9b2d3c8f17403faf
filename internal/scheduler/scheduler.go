// Package scheduler runs the recurring billing jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stwalsh4118/rentledger/api/internal/config"
	"github.com/stwalsh4118/rentledger/api/internal/logger"
	"github.com/stwalsh4118/rentledger/api/internal/models"
	"github.com/stwalsh4118/rentledger/api/internal/services"
)

// Job names used in logs.
const (
	JobMonthlySweep = "monthly_sweep"
	JobMarkOverdue  = "mark_overdue"
)

// Scheduler triggers the monthly sweep and the overdue pass.
type Scheduler struct {
	cron    *cron.Cron
	billing services.BillingService
	log     *logger.Logger
	timeout time.Duration
	entries map[string]cron.EntryID
}

// New registers the billing jobs. Schedules are evaluated in the configured
// billing timezone. Nothing runs until Start is called.
func New(cfg config.BillingConfig, billing services.BillingService, log *logger.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid billing timezone %q: %w", cfg.Timezone, err)
	}

	log = log.Component("scheduler")
	cl := cronLogger{log: log}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		billing: billing,
		log:     log,
		timeout: cfg.JobTimeout,
		entries: make(map[string]cron.EntryID, 2),
	}

	if err := s.add(JobMonthlySweep, cfg.SweepCron, s.runSweep); err != nil {
		return nil, err
	}
	if err := s.add(JobMarkOverdue, cfg.OverdueCron, s.runOverdue); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) add(name, spec string, fn func()) error {
	id, err := s.cron.AddFunc(spec, fn)
	if err != nil {
		return fmt.Errorf("failed to schedule %s with %q: %w", name, spec, err)
	}
	s.entries[name] = id
	return nil
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	for name, id := range s.entries {
		s.log.Info("Scheduled job", map[string]interface{}{
			"job":      name,
			"next_run": s.cron.Entry(id).Next.Format(time.RFC3339),
		})
	}
}

// Stop stops scheduling and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("billing jobs still running: %w", ctx.Err())
	}
}

// NextRun reports when the named job fires next. The zero time means the
// scheduler is not running or the job is unknown.
func (s *Scheduler) NextRun(name string) time.Time {
	id, ok := s.entries[name]
	if !ok {
		return time.Time{}
	}
	return s.cron.Entry(id).Next
}

// NextRuns reports the next firing time of every registered job.
func (s *Scheduler) NextRuns() map[string]time.Time {
	runs := make(map[string]time.Time, len(s.entries))
	for name, id := range s.entries {
		runs[name] = s.cron.Entry(id).Next
	}
	return runs
}

func (s *Scheduler) jobContext() (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), s.timeout)
}

func (s *Scheduler) runSweep() {
	ctx, cancel := s.jobContext()
	defer cancel()

	s.log.Info("Starting scheduled job", map[string]interface{}{"job": JobMonthlySweep})
	report, err := s.billing.RunMonthlySweep(ctx, "")
	if err != nil {
		s.log.Error("Scheduled job failed", err, map[string]interface{}{"job": JobMonthlySweep})
		return
	}
	s.log.Info("Scheduled job finished", map[string]interface{}{
		"job":           JobMonthlySweep,
		"billing_month": report.BillingMonth,
		"billed":        report.Billed,
		"failed":        report.Failed,
		"total_charged": report.TotalCharged.StringFixed(models.MoneyPlaces),
	})
}

func (s *Scheduler) runOverdue() {
	ctx, cancel := s.jobContext()
	defer cancel()

	s.log.Info("Starting scheduled job", map[string]interface{}{"job": JobMarkOverdue})
	report, err := s.billing.MarkOverdue(ctx, "")
	if err != nil {
		s.log.Error("Scheduled job failed", err, map[string]interface{}{"job": JobMarkOverdue})
		return
	}
	s.log.Info("Scheduled job finished", map[string]interface{}{
		"job":           JobMarkOverdue,
		"billing_month": report.BillingMonth,
		"marked":        report.Marked,
		"failed":        report.Failed,
	})
}

// cronLogger routes the cron library's own logging through the app logger.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, pairs(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, err, pairs(keysAndValues))
}

func pairs(kv []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}
