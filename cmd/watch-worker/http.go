package main

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/BearBump/AppWatch/internal/services/scheduler"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type workerHTTPOpts struct {
	httpAddr string
	onListen func(httpAddr string)

	worker    *worker
	scheduler *scheduler.Scheduler
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newWorkerRouter(opts workerHTTPOpts) chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := opts.worker.store.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"lifecycle": opts.worker.mgr.Stats(),
			"jobs":      opts.scheduler.Jobs(),
		})
	})

	r.Get("/config", func(w http.ResponseWriter, r *http.Request) {
		// Secrets, webhook URLs and credentials are left out.
		cfg := opts.worker.cfg
		writeJSON(w, http.StatusOK, map[string]any{
			"timeZone":           opts.worker.loc.String(),
			"regions":            opts.worker.mgr.Regions(),
			"dailyRegions":       cfg.AppWatch.DailyRegions,
			"hourlySweepMinutes": cfg.AppWatch.HourlySweepMinutes,
			"dailySweepAt":       cfg.AppWatch.DailySweepAt,
			"monthlyReportAt":    cfg.AppWatch.MonthlyReportAt,
			"maturationDays":     cfg.AppWatch.MaturationDays,
			"recheckAfterHours":  cfg.AppWatch.RecheckAfterHours,
			"catalogMode":        cfg.Catalog.Mode,
			"rateLimitPerMinute": cfg.Catalog.RateLimitPerMinute,
			"kafkaEnabled":       len(cfg.KafkaBrokers()) > 0,
			"postgresEnabled":    cfg.PostgresConnString() != "",
			"redisEnabled":       cfg.RedisAddr() != "",
		})
	})

	r.Post("/trigger/{job}", func(w http.ResponseWriter, r *http.Request) {
		job := chi.URLParam(r, "job")
		if err := opts.scheduler.Trigger(job); err != nil {
			if errors.Is(err, scheduler.ErrUnknownJob) {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown job " + job})
				return
			}
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"job": job, "triggered": true})
	})

	r.Handle("/metrics", promhttp.HandlerFor(opts.worker.gatherer, promhttp.HandlerOpts{}))
	return r
}

func runWorkerHTTPServer(ctx context.Context, opts workerHTTPOpts) error {
	if opts.httpAddr == "" {
		opts.httpAddr = ":8082"
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	srv := &http.Server{Handler: newWorkerRouter(opts), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = lis.Close()
	}()

	if err := srv.Serve(lis); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
