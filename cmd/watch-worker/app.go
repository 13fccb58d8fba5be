package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/BearBump/AppWatch/config"
	"github.com/BearBump/AppWatch/internal/bootstrap"
	"github.com/BearBump/AppWatch/internal/metrics"
	"github.com/BearBump/AppWatch/internal/services/lifecycle"
	"github.com/BearBump/AppWatch/internal/services/report"
	"github.com/BearBump/AppWatch/internal/services/scheduler"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const jobMonthEndReport = "month-end-report"

type workerFactories struct {
	newStore    func(cfg *config.Config) (bootstrap.Store, error)
	newChecker  func(cfg *config.Config, rec metrics.Recorder) (lifecycle.Checker, func())
	newNotifier func(cfg *config.Config) (lifecycle.Notifier, func())
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newStore: func(cfg *config.Config) (bootstrap.Store, error) {
			return bootstrap.OpenStore(cfg, 60*time.Second)
		},
		newChecker: func(cfg *config.Config, rec metrics.Recorder) (lifecycle.Checker, func()) {
			return bootstrap.NewChecker(cfg, rec)
		},
		newNotifier: bootstrap.NewNotifier,
	}
}

type worker struct {
	cfg      *config.Config
	loc      *time.Location
	store    bootstrap.Store
	mgr      *lifecycle.Manager
	reports  *report.Builder
	gatherer prometheus.Gatherer
	closers  []func()
}

func newWorker(cfg *config.Config, f workerFactories) (*worker, error) {
	loc, err := bootstrap.Location(cfg.AppWatch.TimeZone)
	if err != nil {
		return nil, err
	}
	st, err := f.newStore(cfg)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	rec := metrics.New(reg)
	chk, closeChecker := f.newChecker(cfg, rec)
	notifier, closeNotifier := f.newNotifier(cfg)

	return &worker{
		cfg:   cfg,
		loc:   loc,
		store: st,
		mgr: lifecycle.New(st, chk, notifier).
			WithSettings(bootstrap.LifecycleSettings(cfg, loc)).
			WithMetrics(rec),
		reports:  report.New(st, notifier).WithSettings(bootstrap.ReportSettings(cfg, loc)),
		gatherer: reg,
		closers:  []func(){st.Close, closeChecker, closeNotifier},
	}, nil
}

func (w *worker) Close() {
	for i := len(w.closers) - 1; i >= 0; i-- {
		if w.closers[i] != nil {
			w.closers[i]()
		}
	}
}

// runJob runs one named job to completion.
func (w *worker) runJob(ctx context.Context, job string) error {
	var (
		st  lifecycle.SweepStats
		err error
	)
	switch job {
	case lifecycle.JobHourly:
		st, err = w.mgr.PeriodicSweep(ctx)
	case lifecycle.JobDaily:
		st, err = w.mgr.DailySweep(ctx)
	case lifecycle.JobReconcile:
		st, err = w.mgr.Reconcile(ctx)
	case lifecycle.JobResolveUnknown:
		st, err = w.mgr.ResolveUnknown(ctx)
	case jobMonthEndReport:
		posted, err := w.reports.PostIfMonthEnd(ctx, time.Now())
		if err != nil {
			return err
		}
		slog.Info("month-end report check", "posted", posted)
		return nil
	default:
		return errors.Wrap(scheduler.ErrUnknownJob, job)
	}
	if err != nil {
		return err
	}
	slog.Info("job finished", "job", job, "run_id", st.RunID, "processed", st.Processed, "failed", st.Failed)
	return nil
}

func (w *worker) schedule(s *scheduler.Scheduler) error {
	every := time.Duration(w.cfg.AppWatch.HourlySweepMinutes) * time.Minute
	if every <= 0 {
		every = time.Hour
	}
	dailyAt := w.cfg.AppWatch.DailySweepAt
	if dailyAt == "" {
		dailyAt = "09:00"
	}
	reportAt := w.cfg.AppWatch.MonthlyReportAt
	if reportAt == "" {
		reportAt = "21:00"
	}

	task := func(job string) scheduler.Task {
		return func(ctx context.Context) error { return w.runJob(ctx, job) }
	}
	if err := s.Every(lifecycle.JobHourly, every, task(lifecycle.JobHourly)); err != nil {
		return err
	}
	if err := s.DailyAt(lifecycle.JobDaily, dailyAt, task(lifecycle.JobDaily)); err != nil {
		return err
	}
	return s.DailyAt(jobMonthEndReport, reportAt, task(jobMonthEndReport))
}

// RunWatchWorker schedules the sweeps and serves the worker HTTP endpoints until
// ctx is cancelled.
func RunWatchWorker(ctx context.Context, cfg *config.Config, f workerFactories) error {
	w, err := newWorker(cfg, f)
	if err != nil {
		return err
	}
	defer w.Close()

	s, err := scheduler.New(w.loc)
	if err != nil {
		return err
	}
	if err := w.schedule(s); err != nil {
		return err
	}
	s.Start(ctx)
	defer func() {
		if err := s.Stop(); err != nil {
			slog.Error("stop scheduler", "error", err)
		}
	}()

	httpAddr := cfg.AppWatch.WorkerHTTPAddr
	if httpAddr == "" {
		httpAddr = ":8082"
	}
	err = runWorkerHTTPServer(ctx, workerHTTPOpts{
		httpAddr:  httpAddr,
		worker:    w,
		scheduler: s,
	})
	if err != nil {
		return err
	}
	return ctx.Err()
}
