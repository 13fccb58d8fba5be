package watch_api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/BearBump/AppWatch/internal/cache"
	"github.com/BearBump/AppWatch/internal/metrics"
	"github.com/BearBump/AppWatch/internal/models"
	"github.com/BearBump/AppWatch/internal/services/intake"
	"github.com/BearBump/AppWatch/internal/services/lifecycle"
	"github.com/BearBump/AppWatch/internal/services/report"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const maxBodyBytes = 1 << 20

type Checker interface {
	CheckAll(ctx context.Context, id models.Identity, regions []string) models.CheckResult
}

type Subscriber interface {
	Subscribe(ctx context.Context, req lifecycle.SubscribeRequest) (lifecycle.SubscribeResult, error)
}

type MessageHandler interface {
	HandleMessage(ctx context.Context, msg intake.Message) (string, error)
}

type EventRegistry interface {
	TryRegisterEvent(ctx context.Context, eventID string, at time.Time) (bool, error)
}

type Sweeper interface {
	Reconcile(ctx context.Context) (lifecycle.SweepStats, error)
	ResolveUnknown(ctx context.Context) (lifecycle.SweepStats, error)
}

type Reporter interface {
	Dashboard(ctx context.Context, now time.Time) ([]report.DashboardRow, error)
	BuildMonthlyReport(ctx context.Context, monthKey string) (string, error)
	Post(ctx context.Context, monthKey string) error
	MonthKey(t time.Time) string
}

type Deps struct {
	Checker    Checker
	Subscriber Subscriber
	Messages   MessageHandler
	Events     EventRegistry
	Sweeper    Sweeper
	Reports    Reporter
	Cache      cache.BytesCache
}

type Settings struct {
	APIKey          string
	SigningSecret   string
	SubmitChannelID string
	Regions         []string
	CacheTTL        time.Duration
}

// API serves the query, subscription, chat and admin endpoints.
type API struct {
	d Deps

	apiKey          string
	signingSecret   string
	submitChannelID string
	regions         []string
	cacheTTL        time.Duration

	metrics metrics.Recorder
	now     func() time.Time

	background sync.WaitGroup
}

func New(d Deps) *API {
	return &API{
		d:        d,
		cacheTTL: 5 * time.Minute,
		metrics:  metrics.Noop{},
		now:      time.Now,
	}
}

func (a *API) WithSettings(s Settings) *API {
	a.apiKey = s.APIKey
	a.signingSecret = s.SigningSecret
	a.submitChannelID = s.SubmitChannelID
	if len(s.Regions) > 0 {
		a.regions = s.Regions
	}
	if s.CacheTTL > 0 {
		a.cacheTTL = s.CacheTTL
	}
	return a
}

func (a *API) WithMetrics(m metrics.Recorder) *API {
	if m != nil {
		a.metrics = m
	}
	return a
}

func (a *API) WithClock(now func() time.Time) *API {
	if now != nil {
		a.now = now
	}
	return a
}

// Wait blocks until detached slash-command work has finished.
func (a *API) Wait() {
	a.background.Wait()
}

func (a *API) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/v1/check", a.checkGet)
	r.Post("/v1/check", a.checkPost)

	r.Group(func(r chi.Router) {
		r.Use(a.requireAPIKey)
		r.Post("/v1/monitors", a.createMonitor)

		r.Post("/admin/reconcile", a.reconcile)
		r.Post("/admin/resolve-unknown", a.resolveUnknown)
		r.Get("/admin/dashboard", a.dashboard)
		r.Get("/admin/report", a.previewReport)
		r.Post("/admin/report", a.postReport)
	})

	r.Post("/slack/events", a.slackEvents)
	r.Post("/slack/commands", a.slackCommand)

	return r
}

func (a *API) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get("X-API-Key")
		if a.apiKey == "" || subtle.ConstantTimeCompare([]byte(got), []byte(a.apiKey)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeText(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(text))
}
