package report

import (
	"context"
	"sort"
	"time"

	"github.com/BearBump/AppWatch/internal/models"
	"github.com/BearBump/AppWatch/internal/services/lifecycle"
	"github.com/pkg/errors"
)

// StatusUntracked marks an announcement that has no tracked record yet; reconcile
// fixes those.
const StatusUntracked = "untracked"

type DashboardRow struct {
	Key           string     `json:"key"`
	DisplayName   string     `json:"displayName"`
	StoreLink     string     `json:"storeLink"`
	Submitter     string     `json:"submitter,omitempty"`
	AnnouncedAt   time.Time  `json:"announcedAt"`
	MonthKey      string     `json:"monthKey"`
	Status        string     `json:"status"`
	DaysLive      int        `json:"daysLive"`
	LastCheckedAt *time.Time `json:"lastCheckedAt,omitempty"`
}

// Dashboard joins every announcement with its tracked status, newest first.
func (b *Builder) Dashboard(ctx context.Context, now time.Time) ([]DashboardRow, error) {
	anns, err := b.repo.ListAnnouncements(ctx, "")
	if err != nil {
		return nil, errors.Wrap(err, "list announcements")
	}
	tracked, err := b.repo.ListTracked(ctx, "")
	if err != nil {
		return nil, errors.Wrap(err, "list tracked apps")
	}
	byKey := make(map[string]*models.TrackedApp, len(tracked))
	for _, t := range tracked {
		byKey[t.Identity.Key()] = t
	}

	rows := make([]DashboardRow, 0, len(anns))
	for _, a := range anns {
		row := DashboardRow{
			Key:         a.Identity.Key(),
			DisplayName: a.DisplayName,
			StoreLink:   a.StoreLink,
			Submitter:   a.Submitter,
			AnnouncedAt: a.AnnouncedAt,
			MonthKey:    a.MonthKey,
			Status:      StatusUntracked,
		}
		if t, ok := byKey[row.Key]; ok {
			row.Status = t.Status
			row.LastCheckedAt = t.LastCheckedAt
			end := now
			switch {
			case t.TerminationAt != nil:
				end = *t.TerminationAt
			case t.ConfirmationAt != nil:
				end = *t.ConfirmationAt
			}
			row.DaysLive = lifecycle.DaysSince(t.FirstLiveAt, end)
		}
		rows = append(rows, row)
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].AnnouncedAt.After(rows[j].AnnouncedAt) })
	return rows, nil
}
