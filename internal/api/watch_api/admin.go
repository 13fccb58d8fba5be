package watch_api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/BearBump/AppWatch/internal/models"
	"github.com/BearBump/AppWatch/internal/services/lifecycle"
)

func (a *API) reconcile(w http.ResponseWriter, r *http.Request) {
	a.runSweep(w, r, lifecycle.JobReconcile, a.d.Sweeper.Reconcile)
}

func (a *API) resolveUnknown(w http.ResponseWriter, r *http.Request) {
	a.runSweep(w, r, lifecycle.JobResolveUnknown, a.d.Sweeper.ResolveUnknown)
}

func (a *API) runSweep(w http.ResponseWriter, r *http.Request, job string, fn func(context.Context) (lifecycle.SweepStats, error)) {
	st, err := fn(r.Context())
	if err != nil {
		slog.Error("admin sweep", "job", job, "error", err)
		writeError(w, http.StatusInternalServerError, job+" failed")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (a *API) dashboard(w http.ResponseWriter, r *http.Request) {
	rows, err := a.d.Reports.Dashboard(r.Context(), a.now())
	if err != nil {
		slog.Error("admin dashboard", "error", err)
		writeError(w, http.StatusInternalServerError, "dashboard failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(rows), "apps": rows})
}

func (a *API) reportMonth(w http.ResponseWriter, r *http.Request) (string, bool) {
	month := r.URL.Query().Get("month")
	if month == "" {
		return a.d.Reports.MonthKey(a.now()), true
	}
	if _, err := time.Parse(models.MonthKeyLayout, month); err != nil {
		writeError(w, http.StatusBadRequest, "month must look like 2006-01")
		return "", false
	}
	return month, true
}

func (a *API) previewReport(w http.ResponseWriter, r *http.Request) {
	month, ok := a.reportMonth(w, r)
	if !ok {
		return
	}
	text, err := a.d.Reports.BuildMonthlyReport(r.Context(), month)
	if err != nil {
		slog.Error("admin report", "month", month, "error", err)
		writeError(w, http.StatusInternalServerError, "report failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"month": month, "text": text})
}

func (a *API) postReport(w http.ResponseWriter, r *http.Request) {
	month, ok := a.reportMonth(w, r)
	if !ok {
		return
	}
	if err := a.d.Reports.Post(r.Context(), month); err != nil {
		slog.Error("admin report post", "month", month, "error", err)
		writeError(w, http.StatusInternalServerError, "report failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"month": month, "posted": true})
}
