package watch_api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/BearBump/AppWatch/internal/models"
	"github.com/BearBump/AppWatch/internal/services/checker"
	"github.com/BearBump/AppWatch/internal/services/lifecycle"
	"github.com/pkg/errors"
)

const checkCacheControl = "public, max-age=60, s-maxage=300"

// regionList accepts both ["us","gb"] and "us,gb".
type regionList []string

func (r *regionList) UnmarshalJSON(b []byte) error {
	var arr []string
	if err := json.Unmarshal(b, &arr); err == nil {
		*r = arr
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return errors.Wrap(err, "countries must be an array or a comma separated string")
	}
	*r = checker.ParseRegions(s)
	return nil
}

type checkRequest struct {
	ID        string     `json:"id"`
	BundleID  string     `json:"bundleId"`
	Countries regionList `json:"countries"`
}

type monitorRequest struct {
	ID        string     `json:"id"`
	BundleID  string     `json:"bundleId"`
	Countries regionList `json:"countries"`
	Submitter string     `json:"submitter"`
	CheckNow  bool       `json:"checkNow"`
}

func (a *API) checkGet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	a.serveCheck(w, r, checkRequest{
		ID:        strings.TrimSpace(q.Get("id")),
		BundleID:  strings.TrimSpace(q.Get("bundleId")),
		Countries: checker.ParseRegions(q.Get("countries")),
	})
}

func (a *API) checkPost(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	a.serveCheck(w, r, req)
}

func (a *API) serveCheck(w http.ResponseWriter, r *http.Request, req checkRequest) {
	id := models.Identity{ID: req.ID, BundleID: req.BundleID}
	if err := id.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	regions := checker.NormalizeRegions(req.Countries, a.regions)
	cacheKey := "check:v1:" + id.Key() + ":" + strings.Join(regions, ",")

	w.Header().Set("Cache-Control", checkCacheControl)
	if a.d.Cache != nil {
		b, ok, err := a.d.Cache.Get(r.Context(), cacheKey)
		if err != nil {
			slog.Warn("check cache get failed", "key", cacheKey, "error", err)
		}
		a.metrics.IncCacheLookup(ok)
		if ok {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Cache", "HIT")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(b)
			return
		}
	}

	res := a.d.Checker.CheckAll(r.Context(), id, regions)
	b, err := json.Marshal(res)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encode result")
		return
	}
	// Results where every region failed are not worth remembering.
	if a.d.Cache != nil && !res.AllFailed() {
		if err := a.d.Cache.Set(r.Context(), cacheKey, b, a.cacheTTL); err != nil {
			slog.Warn("check cache set failed", "key", cacheKey, "error", err)
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Cache", "MISS")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func (a *API) createMonitor(w http.ResponseWriter, r *http.Request) {
	var req monitorRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	id := models.Identity{ID: strings.TrimSpace(req.ID), BundleID: strings.TrimSpace(req.BundleID)}
	if err := id.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := a.d.Subscriber.Subscribe(r.Context(), lifecycle.SubscribeRequest{
		Identity:  id,
		Regions:   req.Countries,
		Submitter: req.Submitter,
		Source:    "api",
		CheckNow:  req.CheckNow,
	})
	if err != nil {
		slog.Error("subscribe via api", "key", id.Key(), "error", err)
		writeError(w, http.StatusInternalServerError, "subscribe failed")
		return
	}
	status := http.StatusOK
	if res.Outcome == lifecycle.OutcomeSubscribed || res.Outcome == lifecycle.OutcomeLaunched {
		status = http.StatusCreated
	}
	writeJSON(w, status, res)
}
