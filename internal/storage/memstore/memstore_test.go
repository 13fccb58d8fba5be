package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/BearBump/AppWatch/internal/models"
	"github.com/stretchr/testify/require"
)

func TestStore_MonitorUpsertMerges(t *testing.T) {
	ctx := context.Background()
	s := New()
	id := models.Identity{ID: "123456"}
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	created, err := s.UpsertMonitor(ctx, &models.Monitor{Identity: id, Regions: []string{"us"}, CreatedAt: t0, UpdatedAt: t0})
	require.NoError(t, err)
	require.True(t, created)

	created, err = s.UpsertMonitor(ctx, &models.Monitor{Identity: id, Regions: []string{"us", "gb"}, Submitter: "U1", UpdatedAt: t0.Add(time.Hour)})
	require.NoError(t, err)
	require.False(t, created)

	ms, err := s.ListMonitors(ctx)
	require.NoError(t, err)
	require.Len(t, ms, 1)
	require.Equal(t, []string{"us", "gb"}, ms[0].Regions)
	require.Equal(t, "U1", ms[0].Submitter)
	require.Equal(t, t0, ms[0].CreatedAt)

	require.NoError(t, s.TouchMonitor(ctx, id.Key(), []string{"gb"}, t0.Add(2*time.Hour)))
	m, err := s.GetMonitor(ctx, id.Key())
	require.NoError(t, err)
	require.Equal(t, []string{"gb"}, m.LastKnownLiveRegions)

	require.NoError(t, s.DeleteMonitor(ctx, id.Key()))
	m, err = s.GetMonitor(ctx, id.Key())
	require.NoError(t, err)
	require.Nil(t, m)
}

func TestStore_TrackedTransitionIsConditional(t *testing.T) {
	ctx := context.Background()
	s := New()
	id := models.Identity{BundleID: "com.example.app"}
	now := time.Now().UTC()

	ok, err := s.InsertTracked(ctx, &models.TrackedApp{Identity: id, Status: models.AppStatusLive, FirstLiveAt: now})
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = s.InsertTracked(ctx, &models.TrackedApp{Identity: id, Status: models.AppStatusUnknown})
	require.NoError(t, err)
	require.False(t, ok)

	moved, err := s.TransitionTracked(ctx, id.Key(), []string{models.AppStatusLive}, models.AppStatusTerminated, now)
	require.NoError(t, err)
	require.True(t, moved)

	moved, err = s.TransitionTracked(ctx, id.Key(), []string{models.AppStatusLive}, models.AppStatusConfirmed, now)
	require.NoError(t, err)
	require.False(t, moved)

	got, err := s.GetTracked(ctx, id.Key())
	require.NoError(t, err)
	require.Equal(t, models.AppStatusTerminated, got.Status)
	require.NotNil(t, got.TerminationAt)
	require.Nil(t, got.ConfirmationAt)
}

func TestStore_ListTrackedDue(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now().UTC()
	recent := now.Add(-time.Hour)

	_, _ = s.InsertTracked(ctx, &models.TrackedApp{Identity: models.Identity{ID: "11111"}, Status: models.AppStatusLive, FirstLiveAt: now})
	_, _ = s.InsertTracked(ctx, &models.TrackedApp{Identity: models.Identity{ID: "22222"}, Status: models.AppStatusLive, FirstLiveAt: now, LastCheckedAt: &recent})
	_, _ = s.InsertTracked(ctx, &models.TrackedApp{Identity: models.Identity{ID: "33333"}, Status: models.AppStatusConfirmed, FirstLiveAt: now})

	due, err := s.ListTrackedDue(ctx, models.AppStatusLive, now.Add(-20*time.Hour))
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, "11111", due[0].Identity.ID)

	all, err := s.ListTracked(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
}

func TestStore_AnnouncementsAndEvents(t *testing.T) {
	ctx := context.Background()
	s := New()
	t0 := time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"11111", "22222"} {
		at := t0.Add(time.Duration(-i) * time.Hour)
		ok, err := s.InsertAnnouncement(ctx, &models.Announcement{Identity: models.Identity{ID: id}, AnnouncedAt: at, MonthKey: models.MonthKey(at)})
		require.NoError(t, err)
		require.True(t, ok)
	}
	ok, err := s.InsertAnnouncement(ctx, &models.Announcement{Identity: models.Identity{ID: "11111"}, MonthKey: "2026-05"})
	require.NoError(t, err)
	require.False(t, ok)

	as, err := s.ListAnnouncements(ctx, "2026-05")
	require.NoError(t, err)
	require.Len(t, as, 2)
	require.Equal(t, "22222", as[0].Identity.ID)

	as, err = s.ListAnnouncements(ctx, "2026-04")
	require.NoError(t, err)
	require.Empty(t, as)

	first, err := s.TryRegisterEvent(ctx, "Ev1", t0)
	require.NoError(t, err)
	require.True(t, first)
	again, err := s.TryRegisterEvent(ctx, "Ev1", t0)
	require.NoError(t, err)
	require.False(t, again)
}

func TestStore_LaunchNoticeClaim(t *testing.T) {
	ctx := context.Background()
	s := New()
	t0 := time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)
	key := models.Identity{ID: "11111"}.Key()

	claimed, err := s.ClaimLaunchNotice(ctx, key, t0)
	require.NoError(t, err)
	require.False(t, claimed)

	_, err = s.InsertAnnouncement(ctx, &models.Announcement{Identity: models.Identity{ID: "11111"}, AnnouncedAt: t0})
	require.NoError(t, err)

	claimed, err = s.ClaimLaunchNotice(ctx, key, t0)
	require.NoError(t, err)
	require.True(t, claimed)
	claimed, err = s.ClaimLaunchNotice(ctx, key, t0.Add(time.Minute))
	require.NoError(t, err)
	require.False(t, claimed)

	a, err := s.GetAnnouncement(ctx, key)
	require.NoError(t, err)
	require.Equal(t, t0, *a.NotifiedAt)

	require.NoError(t, s.ReleaseLaunchNotice(ctx, key))
	claimed, err = s.ClaimLaunchNotice(ctx, key, t0.Add(time.Hour))
	require.NoError(t, err)
	require.True(t, claimed)
}
