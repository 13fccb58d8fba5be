package scheduler

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/pkg/errors"
)

var ErrUnknownJob = errors.New("unknown job")

type Task func(ctx context.Context) error

// Scheduler wraps gocron. Every job runs in singleton mode: a run that is still
// going when the next one is due makes the next one wait instead of overlapping.
type Scheduler struct {
	s   gocron.Scheduler
	loc *time.Location

	mu   sync.RWMutex
	ctx  context.Context
	jobs map[string]gocron.Job
}

func New(loc *time.Location) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	s, err := gocron.NewScheduler(gocron.WithLocation(loc))
	if err != nil {
		return nil, errors.Wrap(err, "create gocron scheduler")
	}
	return &Scheduler{
		s:    s,
		loc:  loc,
		ctx:  context.Background(),
		jobs: map[string]gocron.Job{},
	}, nil
}

func (s *Scheduler) Every(name string, interval time.Duration, task Task) error {
	if interval <= 0 {
		return errors.Errorf("job %s: interval must be positive", name)
	}
	return s.add(name, gocron.DurationJob(interval), task)
}

// DailyAt runs task once a day at hhmm ("HH:MM") in the scheduler's location.
func (s *Scheduler) DailyAt(name, hhmm string, task Task) error {
	h, m, err := ParseClock(hhmm)
	if err != nil {
		return errors.Wrapf(err, "job %s", name)
	}
	return s.add(name, gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(h, m, 0))), task)
}

func (s *Scheduler) add(name string, def gocron.JobDefinition, task Task) error {
	job, err := s.s.NewJob(
		def,
		gocron.NewTask(s.run, name, task),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return errors.Wrapf(err, "schedule job %s", name)
	}
	s.mu.Lock()
	s.jobs[name] = job
	s.mu.Unlock()
	return nil
}

func (s *Scheduler) run(name string, task Task) {
	s.mu.RLock()
	ctx := s.ctx
	s.mu.RUnlock()

	started := time.Now()
	slog.Info("scheduled job started", "job", name)
	if err := task(ctx); err != nil {
		slog.Error("scheduled job failed", "job", name, "error", err.Error(), "duration", time.Since(started).String())
		return
	}
	slog.Info("scheduled job finished", "job", name, "duration", time.Since(started).String())
}

// Start begins scheduling; jobs receive ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	slog.Info("starting scheduler", "jobs", len(s.jobs), "location", s.loc.String())
	s.s.Start()
}

func (s *Scheduler) Stop() error {
	slog.Info("stopping scheduler")
	return errors.Wrap(s.s.Shutdown(), "shutdown scheduler")
}

// Trigger runs a job now, outside its schedule. Singleton mode still applies.
func (s *Scheduler) Trigger(name string) error {
	s.mu.RLock()
	job, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return errors.Wrap(ErrUnknownJob, name)
	}
	return errors.Wrapf(job.RunNow(), "run %s", name)
}

type JobInfo struct {
	Name    string     `json:"name"`
	NextRun *time.Time `json:"nextRun,omitempty"`
	LastRun *time.Time `json:"lastRun,omitempty"`
}

func (s *Scheduler) Jobs() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]JobInfo, 0, len(s.jobs))
	for name, job := range s.jobs {
		info := JobInfo{Name: name}
		if t, err := job.NextRun(); err == nil && !t.IsZero() {
			info.NextRun = &t
		}
		if t, err := job.LastRun(); err == nil && !t.IsZero() {
			info.LastRun = &t
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ParseClock parses "HH:MM" (24h).
func ParseClock(hhmm string) (uint, uint, error) {
	hs, ms, ok := strings.Cut(strings.TrimSpace(hhmm), ":")
	if !ok {
		return 0, 0, errors.Errorf("bad time %q, want HH:MM", hhmm)
	}
	h, err := strconv.ParseUint(hs, 10, 8)
	if err != nil || h > 23 {
		return 0, 0, errors.Errorf("bad hour in %q", hhmm)
	}
	m, err := strconv.ParseUint(ms, 10, 8)
	if err != nil || m > 59 {
		return 0, 0, errors.Errorf("bad minute in %q", hhmm)
	}
	return uint(h), uint(m), nil
}
