package lifecycle

import (
	"context"
	"log/slog"

	"github.com/BearBump/AppWatch/internal/models"
	"github.com/BearBump/AppWatch/internal/services/checker"
	"github.com/pkg/errors"
)

// Subscribe outcomes.
const (
	OutcomeSubscribed        = "subscribed"
	OutcomeAlreadySubscribed = "already_subscribed"
	OutcomeAlreadyAnnounced  = "already_announced"
	OutcomeAlreadyTracked    = "already_tracked"
	OutcomeLaunched          = "launched"
)

type SubscribeRequest struct {
	Identity  models.Identity
	Regions   []string
	Submitter string
	Source    string
	// CheckNow runs a full check before creating the monitor; an app that is
	// already live is launched right away instead.
	CheckNow bool
}

type SubscribeResult struct {
	Outcome      string               `json:"outcome"`
	Key          string               `json:"key"`
	Announcement *models.Announcement `json:"announcement,omitempty"`
	Tracked      *models.TrackedApp   `json:"tracked,omitempty"`
	Check        *models.CheckResult  `json:"check,omitempty"`
}

// Subscribe is idempotent. Announcement is checked before tracking, and both
// before any monitor is written.
func (m *Manager) Subscribe(ctx context.Context, req SubscribeRequest) (SubscribeResult, error) {
	if err := req.Identity.Validate(); err != nil {
		return SubscribeResult{}, err
	}
	key := req.Identity.Key()
	out := SubscribeResult{Key: key}

	ann, err := m.repo.GetAnnouncement(ctx, key)
	if err != nil {
		return out, err
	}
	if ann != nil {
		out.Outcome = OutcomeAlreadyAnnounced
		out.Announcement = ann
		if ann.NotifiedAt != nil {
			return out, nil
		}
		// An earlier launch stopped before its notice went out.
		sent, err := m.completeLaunch(ctx, ann)
		if err != nil {
			return out, err
		}
		if sent {
			out.Outcome = OutcomeLaunched
		}
		return out, nil
	}

	tr, err := m.repo.GetTracked(ctx, key)
	if err != nil {
		return out, err
	}
	if tr != nil {
		out.Outcome = OutcomeAlreadyTracked
		out.Tracked = tr
		return out, nil
	}

	regions := checker.NormalizeRegions(req.Regions, m.regions)
	now := m.now().UTC()
	mon := &models.Monitor{
		Identity:  req.Identity,
		Regions:   regions,
		Submitter: req.Submitter,
		Source:    req.Source,
		CreatedAt: now,
		UpdatedAt: now,
	}

	existing, err := m.repo.GetMonitor(ctx, key)
	if err != nil {
		return out, err
	}
	if existing == nil && req.CheckNow {
		res := m.checker.CheckAll(ctx, req.Identity, regions)
		out.Check = &res
		if res.IsLive() {
			a, _, err := m.promote(ctx, req.Identity, req.Submitter, res)
			if err != nil {
				return out, err
			}
			out.Outcome = OutcomeLaunched
			out.Announcement = a
			return out, nil
		}
	}

	created, err := m.repo.UpsertMonitor(ctx, mon)
	if err != nil {
		return out, err
	}
	if created {
		out.Outcome = OutcomeSubscribed
		slog.Info("monitor created", "key", key, "regions", len(regions), "source", req.Source)
	} else {
		out.Outcome = OutcomeAlreadySubscribed
	}
	return out, nil
}

// promote writes the announcement and then completes the launch. Inserts are
// insert-if-absent, so a second promotion of the same app is harmless.
func (m *Manager) promote(ctx context.Context, id models.Identity, submitter string, res models.CheckResult) (*models.Announcement, bool, error) {
	launch, ok := checker.LaunchInfo(res)
	if !ok {
		return nil, false, errors.New("promote without live verdict")
	}
	now := m.now().UTC()

	ann := &models.Announcement{
		Identity:    id,
		DisplayName: launch.Name,
		StoreLink:   launch.Link,
		IconURL:     launch.IconURL,
		Submitter:   submitter,
		AnnouncedAt: now,
		MonthKey:    models.MonthKey(now.In(m.loc)),
	}
	created, err := m.repo.InsertAnnouncement(ctx, ann)
	if err != nil {
		return nil, false, errors.Wrap(err, "announce")
	}
	if !created {
		existing, err := m.repo.GetAnnouncement(ctx, id.Key())
		if err != nil {
			return nil, false, errors.Wrap(err, "reload announcement")
		}
		if existing != nil {
			ann = existing
		}
	}

	sent, err := m.completeLaunch(ctx, ann)
	if err != nil {
		return ann, false, err
	}
	if sent {
		slog.Info("app is live", "key", id.Key(), "name", ann.DisplayName, "regions", res.LiveCount)
	}
	return ann, sent, nil
}

// completeLaunch runs the steps after the announcement: track, send the launch
// notice, delete the monitor. Each step is safe to repeat, so a launch that
// failed part way is finished by whoever sees the announcement next. It reports
// whether this call sent the notice.
func (m *Manager) completeLaunch(ctx context.Context, ann *models.Announcement) (bool, error) {
	key := ann.Identity.Key()
	now := m.now().UTC()

	_, err := m.repo.InsertTracked(ctx, &models.TrackedApp{
		Identity:      ann.Identity,
		DisplayName:   ann.DisplayName,
		StoreLink:     ann.StoreLink,
		Submitter:     ann.Submitter,
		Status:        models.AppStatusLive,
		FirstLiveAt:   ann.AnnouncedAt,
		LastCheckedAt: &now,
	})
	if err != nil {
		return false, errors.Wrap(err, "track")
	}

	sent := false
	if ann.NotifiedAt == nil {
		claimed, err := m.repo.ClaimLaunchNotice(ctx, key, now)
		if err != nil {
			return false, errors.Wrap(err, "claim launch notice")
		}
		if claimed {
			if err := m.notifier.Notify(ctx, launchNotice(ann)); err != nil {
				if rerr := m.repo.ReleaseLaunchNotice(ctx, key); rerr != nil {
					slog.Error("release launch notice", "key", key, "error", rerr.Error())
				}
				return false, errors.Wrap(err, "launch notice")
			}
			ann.NotifiedAt = &now
			sent = true
			m.totalPromote.Add(1)
			m.metrics.IncTransition(models.AppStatusLive)
		}
	}

	if err := m.repo.DeleteMonitor(ctx, key); err != nil {
		return sent, errors.Wrap(err, "delete monitor")
	}
	return sent, nil
}
