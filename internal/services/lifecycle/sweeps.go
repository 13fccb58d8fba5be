package lifecycle

import (
	"context"
	"log/slog"
	"time"

	"github.com/BearBump/AppWatch/internal/models"
	"github.com/BearBump/AppWatch/internal/services/checker"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	errAllRegionsFailed = errors.New("all regions failed")
	errInconclusive     = errors.New("no live region and some regions failed")
)

// PeriodicSweep checks every pending monitor against its region set and launches
// the ones that are live anywhere. A failing monitor never stops the sweep.
func (m *Manager) PeriodicSweep(ctx context.Context) (SweepStats, error) {
	st := SweepStats{RunID: uuid.NewString(), Job: JobHourly, StartedAt: m.now().UTC()}
	log := slog.With("job", st.Job, "run_id", st.RunID)

	monitors, err := m.repo.ListMonitors(ctx)
	if err != nil {
		return st, errors.Wrap(err, "list monitors")
	}
	log.Info("sweep started", "monitors", len(monitors))

	for _, mon := range monitors {
		if ctx.Err() != nil {
			break
		}
		st.Processed++
		promoted, err := m.processMonitor(ctx, mon)
		if err != nil {
			st.Failed++
			log.Error("process monitor", "key", mon.Identity.Key(), "error", err.Error())
			continue
		}
		if promoted {
			st.Promoted++
		}
	}

	st = m.finishSweep(st)
	log.Info("sweep finished", "processed", st.Processed, "promoted", st.Promoted, "failed", st.Failed, "duration", st.Duration)
	return st, ctx.Err()
}

func (m *Manager) processMonitor(ctx context.Context, mon *models.Monitor) (bool, error) {
	key := mon.Identity.Key()

	// A monitor left behind by an interrupted launch.
	ann, err := m.repo.GetAnnouncement(ctx, key)
	if err != nil {
		return false, err
	}
	if ann != nil {
		slog.Info("finishing interrupted launch", "key", key)
		return m.completeLaunch(ctx, ann)
	}
	tr, err := m.repo.GetTracked(ctx, key)
	if err != nil {
		return false, err
	}
	if tr != nil {
		slog.Info("dropping stale monitor", "key", key)
		return false, errors.Wrap(m.repo.DeleteMonitor(ctx, key), "delete stale monitor")
	}

	regions := checker.NormalizeRegions(mon.Regions, m.regions)
	res := m.checker.CheckAll(ctx, mon.Identity, regions)
	if !res.IsLive() {
		if err := m.repo.TouchMonitor(ctx, key, res.LiveRegions(), m.now().UTC()); err != nil {
			return false, errors.Wrap(err, "touch monitor")
		}
		if res.AllFailed() {
			return false, errAllRegionsFailed
		}
		return false, nil
	}

	_, created, err := m.promote(ctx, mon.Identity, mon.Submitter, res)
	return created, err
}

// DailySweep rechecks live apps that were not checked within the recheck window,
// using the reduced daily region set.
func (m *Manager) DailySweep(ctx context.Context) (SweepStats, error) {
	st := SweepStats{RunID: uuid.NewString(), Job: JobDaily, StartedAt: m.now().UTC()}
	due, err := m.repo.ListTrackedDue(ctx, models.AppStatusLive, st.StartedAt.Add(-m.recheckAfter))
	if err != nil {
		return st, errors.Wrap(err, "list due apps")
	}
	return m.recheckAll(ctx, st, due)
}

// ResolveUnknown folds migrated records into the normal state machine.
func (m *Manager) ResolveUnknown(ctx context.Context) (SweepStats, error) {
	st := SweepStats{RunID: uuid.NewString(), Job: JobResolveUnknown, StartedAt: m.now().UTC()}
	unknown, err := m.repo.ListTracked(ctx, models.AppStatusUnknown)
	if err != nil {
		return st, errors.Wrap(err, "list unknown apps")
	}
	return m.recheckAll(ctx, st, unknown)
}

func (m *Manager) recheckAll(ctx context.Context, st SweepStats, apps []*models.TrackedApp) (SweepStats, error) {
	log := slog.With("job", st.Job, "run_id", st.RunID)
	log.Info("sweep started", "apps", len(apps))

	for _, t := range apps {
		if ctx.Err() != nil {
			break
		}
		st.Processed++
		to, err := m.recheck(ctx, t)
		if err != nil {
			st.Failed++
			log.Error("recheck app", "key", t.Identity.Key(), "error", err.Error())
			// Advance lastCheckedAt so a failing record waits for the next window.
			if terr := m.repo.TouchTracked(ctx, t.Identity.Key(), m.now().UTC()); terr != nil {
				log.Error("touch app", "key", t.Identity.Key(), "error", terr.Error())
			}
			continue
		}
		switch to {
		case models.AppStatusConfirmed:
			st.Confirmed++
		case models.AppStatusTerminated:
			st.Terminated++
		}
	}

	st = m.finishSweep(st)
	log.Info("sweep finished",
		"processed", st.Processed, "confirmed", st.Confirmed, "terminated", st.Terminated,
		"failed", st.Failed, "duration", st.Duration)
	return st, ctx.Err()
}

// recheck applies the post-launch rules once and returns the status moved to, or
// "" when the record only had lastCheckedAt advanced.
func (m *Manager) recheck(ctx context.Context, t *models.TrackedApp) (string, error) {
	if t.IsTerminal() {
		return "", nil
	}
	key := t.Identity.Key()
	res := m.checker.CheckAll(ctx, t.Identity, m.dailyRegions)
	// Termination needs every checked region to answer not-found.
	if res.AllFailed() {
		return "", errAllRegionsFailed
	}
	if res.Inconclusive() {
		return "", errors.Wrapf(errInconclusive, "%d of %d regions failed", res.ErrorCount, res.RegionsChecked)
	}

	now := m.now().UTC()
	days := DaysSince(t.FirstLiveAt, now)
	from := []string{models.AppStatusLive, models.AppStatusUnknown}

	var to string
	var notice models.Notification
	switch {
	case !res.IsLive():
		to = models.AppStatusTerminated
		notice = terminationNotice(t, days)
	case days >= m.maturationDays:
		to = models.AppStatusConfirmed
		notice = confirmationNotice(t)
	case t.Status == models.AppStatusUnknown:
		_, err := m.repo.TransitionTracked(ctx, key, []string{models.AppStatusUnknown}, models.AppStatusLive, now)
		return "", errors.Wrap(err, "resolve to live")
	default:
		return "", errors.Wrap(m.repo.TouchTracked(ctx, key, now), "touch app")
	}

	moved, err := m.repo.TransitionTracked(ctx, key, from, to, now)
	if err != nil {
		return "", errors.Wrap(err, "transition")
	}
	if !moved {
		return "", nil
	}

	m.metrics.IncTransition(to)
	slog.Info("app transitioned", "key", key, "status", to, "days", days)
	if err := m.notifier.Notify(ctx, notice); err != nil {
		slog.Error("transition notice", "key", key, "status", to, "error", err.Error())
	}
	return to, nil
}

// Reconcile backfills a tracked record for every announcement that has none.
// Running it again creates nothing new.
func (m *Manager) Reconcile(ctx context.Context) (SweepStats, error) {
	st := SweepStats{RunID: uuid.NewString(), Job: JobReconcile, StartedAt: m.now().UTC()}
	log := slog.With("job", st.Job, "run_id", st.RunID)

	anns, err := m.repo.ListAnnouncements(ctx, "")
	if err != nil {
		return st, errors.Wrap(err, "list announcements")
	}
	tracked, err := m.repo.ListTracked(ctx, "")
	if err != nil {
		return st, errors.Wrap(err, "list tracked apps")
	}
	have := make(map[string]struct{}, len(tracked))
	for _, t := range tracked {
		have[t.Identity.Key()] = struct{}{}
	}

	for _, a := range anns {
		key := a.Identity.Key()
		if _, ok := have[key]; ok {
			continue
		}
		st.Processed++
		created, err := m.repo.InsertTracked(ctx, &models.TrackedApp{
			Identity:    a.Identity,
			DisplayName: a.DisplayName,
			StoreLink:   a.StoreLink,
			Submitter:   a.Submitter,
			Status:      models.AppStatusUnknown,
			FirstLiveAt: a.AnnouncedAt,
		})
		if err != nil {
			st.Failed++
			log.Error("backfill tracked app", "key", key, "error", err.Error())
			continue
		}
		if created {
			st.Created++
			have[key] = struct{}{}
		}
	}

	st = m.finishSweep(st)
	log.Info("reconcile finished", "announcements", len(anns), "created", st.Created, "failed", st.Failed)
	return st, nil
}

// DaysSince counts whole days between from and now.
func DaysSince(from, now time.Time) int {
	if now.Before(from) {
		return 0
	}
	return int(now.Sub(from).Hours() / 24)
}
