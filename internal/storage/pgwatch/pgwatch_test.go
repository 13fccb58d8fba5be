package pgwatch

import (
	"context"
	"testing"
	"time"

	"github.com/BearBump/AppWatch/internal/models"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "admin",
			"POSTGRES_PASSWORD": "admin",
			"POSTGRES_DB":       "appwatch_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	host, err := pgC.Host(ctx)
	require.NoError(t, err)
	port, err := pgC.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := "postgres://admin:admin@" + host + ":" + port.Port() + "/appwatch_test?sslmode=disable"
	st, err := New(dsn)
	require.NoError(t, err)
	t.Cleanup(st.Close)
	return st
}

func TestPGWatch_RepoFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("needs docker")
	}
	ctx := context.Background()
	st := newTestStorage(t)
	require.NoError(t, st.Ping(ctx))

	id := models.Identity{ID: "1234567890"}
	now := time.Now().UTC().Truncate(time.Microsecond)

	// monitors: insert, merge, touch, delete
	created, err := st.UpsertMonitor(ctx, &models.Monitor{
		Identity: id, Regions: []string{"us", "gb"}, Submitter: "U1", Source: "api", CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)
	require.True(t, created)

	created, err = st.UpsertMonitor(ctx, &models.Monitor{
		Identity: id, Regions: []string{"gb", "de"}, Submitter: "U2", CreatedAt: now, UpdatedAt: now.Add(time.Minute),
	})
	require.NoError(t, err)
	require.False(t, created)

	m, err := st.GetMonitor(ctx, id.Key())
	require.NoError(t, err)
	require.Equal(t, []string{"us", "gb", "de"}, m.Regions)
	require.Equal(t, "U1", m.Submitter)
	require.Equal(t, id, m.Identity)

	require.NoError(t, st.TouchMonitor(ctx, id.Key(), []string{"us"}, now.Add(2*time.Minute)))
	ms, err := st.ListMonitors(ctx)
	require.NoError(t, err)
	require.Len(t, ms, 1)
	require.Equal(t, []string{"us"}, ms[0].LastKnownLiveRegions)

	require.NoError(t, st.DeleteMonitor(ctx, id.Key()))
	m, err = st.GetMonitor(ctx, id.Key())
	require.NoError(t, err)
	require.Nil(t, m)

	// announcements are immutable
	ok, err := st.InsertAnnouncement(ctx, &models.Announcement{
		Identity: id, DisplayName: "Demo", StoreLink: "https://apps.apple.com/us/app/id1234567890",
		AnnouncedAt: now, MonthKey: models.MonthKey(now),
	})
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = st.InsertAnnouncement(ctx, &models.Announcement{Identity: id, DisplayName: "Other", AnnouncedAt: now, MonthKey: "1999-01"})
	require.NoError(t, err)
	require.False(t, ok)

	a, err := st.GetAnnouncement(ctx, id.Key())
	require.NoError(t, err)
	require.Equal(t, "Demo", a.DisplayName)

	as, err := st.ListAnnouncements(ctx, models.MonthKey(now))
	require.NoError(t, err)
	require.Len(t, as, 1)
	as, err = st.ListAnnouncements(ctx, "")
	require.NoError(t, err)
	require.Len(t, as, 1)
	require.Nil(t, as[0].NotifiedAt)

	claimed, err := st.ClaimLaunchNotice(ctx, id.Key(), now)
	require.NoError(t, err)
	require.True(t, claimed)
	claimed, err = st.ClaimLaunchNotice(ctx, id.Key(), now)
	require.NoError(t, err)
	require.False(t, claimed)
	require.NoError(t, st.ReleaseLaunchNotice(ctx, id.Key()))
	claimed, err = st.ClaimLaunchNotice(ctx, id.Key(), now)
	require.NoError(t, err)
	require.True(t, claimed)
	a, err = st.GetAnnouncement(ctx, id.Key())
	require.NoError(t, err)
	require.NotNil(t, a.NotifiedAt)

	// tracked apps
	ok, err = st.InsertTracked(ctx, &models.TrackedApp{Identity: id, DisplayName: "Demo", Status: models.AppStatusLive, FirstLiveAt: now})
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = st.InsertTracked(ctx, &models.TrackedApp{Identity: id, Status: models.AppStatusUnknown, FirstLiveAt: now})
	require.NoError(t, err)
	require.False(t, ok)

	due, err := st.ListTrackedDue(ctx, models.AppStatusLive, now.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, due, 1)

	require.NoError(t, st.TouchTracked(ctx, id.Key(), now.Add(2*time.Hour)))
	due, err = st.ListTrackedDue(ctx, models.AppStatusLive, now.Add(time.Hour))
	require.NoError(t, err)
	require.Empty(t, due)

	moved, err := st.TransitionTracked(ctx, id.Key(), []string{models.AppStatusLive}, models.AppStatusConfirmed, now.Add(3*time.Hour))
	require.NoError(t, err)
	require.True(t, moved)
	moved, err = st.TransitionTracked(ctx, id.Key(), []string{models.AppStatusLive, models.AppStatusUnknown}, models.AppStatusTerminated, now)
	require.NoError(t, err)
	require.False(t, moved)

	tr, err := st.GetTracked(ctx, id.Key())
	require.NoError(t, err)
	require.Equal(t, models.AppStatusConfirmed, tr.Status)
	require.NotNil(t, tr.ConfirmationAt)
	require.Nil(t, tr.TerminationAt)

	confirmed, err := st.ListTracked(ctx, models.AppStatusConfirmed)
	require.NoError(t, err)
	require.Len(t, confirmed, 1)

	// chat event dedup
	first, err := st.TryRegisterEvent(ctx, "Ev42", now)
	require.NoError(t, err)
	require.True(t, first)
	again, err := st.TryRegisterEvent(ctx, "Ev42", now)
	require.NoError(t, err)
	require.False(t, again)
}
