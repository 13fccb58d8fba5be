package lifecycle

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/AppWatch/internal/metrics"
	"github.com/BearBump/AppWatch/internal/models"
	"github.com/BearBump/AppWatch/internal/services/checker"
)

type Repository interface {
	GetMonitor(ctx context.Context, key string) (*models.Monitor, error)
	UpsertMonitor(ctx context.Context, m *models.Monitor) (bool, error)
	ListMonitors(ctx context.Context) ([]*models.Monitor, error)
	DeleteMonitor(ctx context.Context, key string) error
	TouchMonitor(ctx context.Context, key string, liveRegions []string, at time.Time) error

	GetAnnouncement(ctx context.Context, key string) (*models.Announcement, error)
	InsertAnnouncement(ctx context.Context, a *models.Announcement) (bool, error)
	ListAnnouncements(ctx context.Context, monthKey string) ([]*models.Announcement, error)
	ClaimLaunchNotice(ctx context.Context, key string, at time.Time) (bool, error)
	ReleaseLaunchNotice(ctx context.Context, key string) error

	GetTracked(ctx context.Context, key string) (*models.TrackedApp, error)
	InsertTracked(ctx context.Context, t *models.TrackedApp) (bool, error)
	ListTracked(ctx context.Context, status string) ([]*models.TrackedApp, error)
	ListTrackedDue(ctx context.Context, status string, checkedBefore time.Time) ([]*models.TrackedApp, error)
	TransitionTracked(ctx context.Context, key string, from []string, to string, at time.Time) (bool, error)
	TouchTracked(ctx context.Context, key string, at time.Time) error
}

type Checker interface {
	CheckAll(ctx context.Context, id models.Identity, regions []string) models.CheckResult
}

type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

type Settings struct {
	Regions        []string
	DailyRegions   []string
	MaturationDays int
	RecheckAfter   time.Duration
	Location       *time.Location
}

type Manager struct {
	repo     Repository
	checker  Checker
	notifier Notifier
	metrics  metrics.Recorder

	regions        []string
	dailyRegions   []string
	maturationDays int
	recheckAfter   time.Duration
	loc            *time.Location
	now            func() time.Time

	startedAt    time.Time
	totalSweeps  atomic.Int64
	totalFailed  atomic.Int64
	totalPromote atomic.Int64
	lastMu       sync.Mutex
	lastRuns     map[string]SweepStats
}

func New(repo Repository, c Checker, n Notifier) *Manager {
	return &Manager{
		repo:           repo,
		checker:        c,
		notifier:       n,
		metrics:        metrics.Noop{},
		regions:        checker.DefaultRegions,
		dailyRegions:   checker.MajorRegions,
		maturationDays: 21,
		recheckAfter:   20 * time.Hour,
		loc:            time.UTC,
		now:            time.Now,
		startedAt:      time.Now().UTC(),
		lastRuns:       map[string]SweepStats{},
	}
}

func (m *Manager) WithSettings(s Settings) *Manager {
	if len(s.Regions) > 0 {
		m.regions = checker.NormalizeRegions(s.Regions, checker.DefaultRegions)
	}
	if len(s.DailyRegions) > 0 {
		m.dailyRegions = checker.NormalizeRegions(s.DailyRegions, checker.MajorRegions)
	}
	if s.MaturationDays > 0 {
		m.maturationDays = s.MaturationDays
	}
	if s.RecheckAfter > 0 {
		m.recheckAfter = s.RecheckAfter
	}
	if s.Location != nil {
		m.loc = s.Location
	}
	return m
}

func (m *Manager) WithMetrics(r metrics.Recorder) *Manager {
	if r != nil {
		m.metrics = r
	}
	return m
}

func (m *Manager) WithClock(now func() time.Time) *Manager {
	if now != nil {
		m.now = now
	}
	return m
}

// Regions is the full storefront set used for pending monitors.
func (m *Manager) Regions() []string { return m.regions }

// Sweep job names.
const (
	JobHourly         = "hourly"
	JobDaily          = "daily"
	JobResolveUnknown = "resolve-unknown"
	JobReconcile      = "reconcile"
)

type SweepStats struct {
	RunID      string    `json:"runId"`
	Job        string    `json:"job"`
	StartedAt  time.Time `json:"startedAt"`
	Duration   string    `json:"duration"`
	Processed  int       `json:"processed"`
	Promoted   int       `json:"promoted,omitempty"`
	Confirmed  int       `json:"confirmed,omitempty"`
	Terminated int       `json:"terminated,omitempty"`
	Created    int       `json:"created,omitempty"`
	Failed     int       `json:"failed"`
}

type Stats struct {
	StartedAt     time.Time             `json:"startedAt"`
	TotalSweeps   int64                 `json:"totalSweeps"`
	TotalFailed   int64                 `json:"totalFailed"`
	TotalLaunches int64                 `json:"totalLaunches"`
	LastRuns      map[string]SweepStats `json:"lastRuns,omitempty"`
}

func (m *Manager) Stats() Stats {
	st := Stats{
		StartedAt:     m.startedAt,
		TotalSweeps:   m.totalSweeps.Load(),
		TotalFailed:   m.totalFailed.Load(),
		TotalLaunches: m.totalPromote.Load(),
		LastRuns:      map[string]SweepStats{},
	}
	m.lastMu.Lock()
	for k, v := range m.lastRuns {
		st.LastRuns[k] = v
	}
	m.lastMu.Unlock()
	return st
}

func (m *Manager) finishSweep(st SweepStats) SweepStats {
	d := m.now().Sub(st.StartedAt)
	st.Duration = d.String()
	m.totalSweeps.Add(1)
	m.totalFailed.Add(int64(st.Failed))
	m.metrics.ObserveSweep(st.Job, d, st.Failed)

	m.lastMu.Lock()
	m.lastRuns[st.Job] = st
	m.lastMu.Unlock()
	return st
}
