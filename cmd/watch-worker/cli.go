package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BearBump/AppWatch/config"
	"github.com/BearBump/AppWatch/internal/services/lifecycle"
	"github.com/pkg/errors"
)

type Global struct {
	factories workerFactories
}

type CLI struct {
	Config  string `short:"c" help:"Configuration file path" env:"configPath" default:"config.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Run            RunCmd            `cmd:"" default:"1" help:"Run scheduled sweeps and the worker HTTP server"`
	Sweep          SweepCmd          `cmd:"" help:"Run one sweep and exit"`
	Reconcile      ReconcileCmd      `cmd:"" help:"Create tracked records for announcements that have none"`
	ResolveUnknown ResolveUnknownCmd `cmd:"" name:"resolve-unknown" help:"Re-check tracked apps with unknown status"`
	Report         ReportCmd         `cmd:"" help:"Build the monthly report"`
}

// AfterApply runs after flag parsing; setup logging once.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

func (c *CLI) load() (*config.Config, error) {
	cfg, err := config.LoadConfig(c.Config)
	if err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	return cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

type RunCmd struct{}

func (r *RunCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.load()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	if err := RunWatchWorker(ctx, cfg, g.factories); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

type SweepCmd struct {
	Kind string `arg:"" enum:"hourly,daily" help:"Sweep to run: hourly (pending monitors) or daily (live apps)"`
}

func (s *SweepCmd) Run(g *Global, root *CLI) error {
	return runOnce(g, root, s.Kind)
}

type ReconcileCmd struct{}

func (r *ReconcileCmd) Run(g *Global, root *CLI) error {
	return runOnce(g, root, lifecycle.JobReconcile)
}

type ResolveUnknownCmd struct{}

func (r *ResolveUnknownCmd) Run(g *Global, root *CLI) error {
	return runOnce(g, root, lifecycle.JobResolveUnknown)
}

func runOnce(g *Global, root *CLI, job string) error {
	cfg, err := root.load()
	if err != nil {
		return err
	}
	w, err := newWorker(cfg, g.factories)
	if err != nil {
		return err
	}
	defer w.Close()

	ctx, cancel := signalContext()
	defer cancel()
	return w.runJob(ctx, job)
}

type ReportCmd struct {
	Month string `help:"Month as YYYY-MM; defaults to the current month"`
	Post  bool   `help:"Post to the report channel instead of printing"`
}

func (r *ReportCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.load()
	if err != nil {
		return err
	}
	w, err := newWorker(cfg, g.factories)
	if err != nil {
		return err
	}
	defer w.Close()

	ctx, cancel := signalContext()
	defer cancel()

	month := r.Month
	if month == "" {
		month = w.reports.MonthKey(time.Now())
	}
	if r.Post {
		return w.reports.Post(ctx, month)
	}
	text, err := w.reports.BuildMonthlyReport(ctx, month)
	if err != nil {
		return err
	}
	fmt.Println(text)
	return nil
}
