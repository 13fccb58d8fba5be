package memstore

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/BearBump/AppWatch/internal/models"
)

// Store keeps every record in process memory. It satisfies the same contract as
// pgwatch and is used when no database is configured.
type Store struct {
	mu            sync.Mutex
	monitors      map[string]models.Monitor
	tracked       map[string]models.TrackedApp
	announcements map[string]models.Announcement
	events        map[string]time.Time
}

func New() *Store {
	return &Store{
		monitors:      map[string]models.Monitor{},
		tracked:       map[string]models.TrackedApp{},
		announcements: map[string]models.Announcement{},
		events:        map[string]time.Time{},
	}
}

func (s *Store) GetMonitor(_ context.Context, key string) (*models.Monitor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.monitors[key]
	if !ok {
		return nil, nil
	}
	return cloneMonitor(m), nil
}

// UpsertMonitor merges the region set into an existing monitor.
func (s *Store) UpsertMonitor(_ context.Context, m *models.Monitor) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := m.Identity.Key()
	cur, ok := s.monitors[key]
	if !ok {
		s.monitors[key] = *cloneMonitor(*m)
		return true, nil
	}
	for _, r := range m.Regions {
		if !slices.Contains(cur.Regions, r) {
			cur.Regions = append(cur.Regions, r)
		}
	}
	if cur.Submitter == "" {
		cur.Submitter = m.Submitter
	}
	cur.UpdatedAt = m.UpdatedAt
	s.monitors[key] = cur
	return false, nil
}

func (s *Store) ListMonitors(_ context.Context) ([]*models.Monitor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Monitor, 0, len(s.monitors))
	for _, m := range s.monitors {
		out = append(out, cloneMonitor(m))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) DeleteMonitor(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.monitors, key)
	return nil
}

func (s *Store) TouchMonitor(_ context.Context, key string, liveRegions []string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.monitors[key]
	if !ok {
		return nil
	}
	m.LastKnownLiveRegions = slices.Clone(liveRegions)
	m.UpdatedAt = at
	s.monitors[key] = m
	return nil
}

func (s *Store) GetAnnouncement(_ context.Context, key string) (*models.Announcement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.announcements[key]
	if !ok {
		return nil, nil
	}
	return cloneAnnouncement(a), nil
}

func (s *Store) InsertAnnouncement(_ context.Context, a *models.Announcement) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := a.Identity.Key()
	if _, ok := s.announcements[key]; ok {
		return false, nil
	}
	s.announcements[key] = *cloneAnnouncement(*a)
	return true, nil
}

// ClaimLaunchNotice marks the launch notice as sent unless someone already did.
func (s *Store) ClaimLaunchNotice(_ context.Context, key string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.announcements[key]
	if !ok || a.NotifiedAt != nil {
		return false, nil
	}
	a.NotifiedAt = &at
	s.announcements[key] = a
	return true, nil
}

func (s *Store) ReleaseLaunchNotice(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.announcements[key]
	if !ok {
		return nil
	}
	a.NotifiedAt = nil
	s.announcements[key] = a
	return nil
}

// ListAnnouncements returns announcements ordered by announcedAt. An empty month
// key lists all of them.
func (s *Store) ListAnnouncements(_ context.Context, monthKey string) ([]*models.Announcement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Announcement, 0, len(s.announcements))
	for _, a := range s.announcements {
		if monthKey != "" && a.MonthKey != monthKey {
			continue
		}
		out = append(out, cloneAnnouncement(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AnnouncedAt.Before(out[j].AnnouncedAt) })
	return out, nil
}

func (s *Store) GetTracked(_ context.Context, key string) (*models.TrackedApp, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tracked[key]
	if !ok {
		return nil, nil
	}
	return cloneTracked(t), nil
}

func (s *Store) InsertTracked(_ context.Context, t *models.TrackedApp) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := t.Identity.Key()
	if _, ok := s.tracked[key]; ok {
		return false, nil
	}
	s.tracked[key] = *cloneTracked(*t)
	return true, nil
}

// ListTracked filters by status; an empty status lists everything.
func (s *Store) ListTracked(_ context.Context, status string) ([]*models.TrackedApp, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.TrackedApp, 0)
	for _, t := range s.tracked {
		if status != "" && t.Status != status {
			continue
		}
		out = append(out, cloneTracked(t))
	}
	sortTracked(out)
	return out, nil
}

func (s *Store) ListTrackedDue(_ context.Context, status string, checkedBefore time.Time) ([]*models.TrackedApp, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.TrackedApp, 0)
	for _, t := range s.tracked {
		if t.Status != status {
			continue
		}
		if t.LastCheckedAt != nil && !t.LastCheckedAt.Before(checkedBefore) {
			continue
		}
		out = append(out, cloneTracked(t))
	}
	sortTracked(out)
	return out, nil
}

// TransitionTracked moves a record to status `to` only if its current status is
// one of from. It reports whether the transition happened.
func (s *Store) TransitionTracked(_ context.Context, key string, from []string, to string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tracked[key]
	if !ok || !slices.Contains(from, t.Status) {
		return false, nil
	}
	t.Status = to
	t.LastCheckedAt = &at
	switch to {
	case models.AppStatusTerminated:
		t.TerminationAt = &at
	case models.AppStatusConfirmed:
		t.ConfirmationAt = &at
	}
	s.tracked[key] = t
	return true, nil
}

func (s *Store) TouchTracked(_ context.Context, key string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tracked[key]
	if !ok {
		return nil
	}
	t.LastCheckedAt = &at
	s.tracked[key] = t
	return nil
}

func (s *Store) TryRegisterEvent(_ context.Context, eventID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[eventID]; ok {
		return false, nil
	}
	s.events[eventID] = at
	return true, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() {}

func cloneMonitor(m models.Monitor) *models.Monitor {
	m.Regions = slices.Clone(m.Regions)
	m.LastKnownLiveRegions = slices.Clone(m.LastKnownLiveRegions)
	return &m
}

func cloneAnnouncement(a models.Announcement) *models.Announcement {
	a.NotifiedAt = clonePtr(a.NotifiedAt)
	return &a
}

func cloneTracked(t models.TrackedApp) *models.TrackedApp {
	t.LastCheckedAt = clonePtr(t.LastCheckedAt)
	t.TerminationAt = clonePtr(t.TerminationAt)
	t.ConfirmationAt = clonePtr(t.ConfirmationAt)
	return &t
}

func clonePtr(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func sortTracked(ts []*models.TrackedApp) {
	sort.Slice(ts, func(i, j int) bool { return ts[i].FirstLiveAt.Before(ts[j].FirstLiveAt) })
}
