package pgwatch

import (
	"context"
	"time"

	"github.com/BearBump/AppWatch/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const monitorColumns = `key, regions, submitter, source, last_known_live_regions, created_at, updated_at`

func (s *Storage) GetMonitor(ctx context.Context, key string) (*models.Monitor, error) {
	row := s.db.QueryRow(ctx, `SELECT `+monitorColumns+` FROM monitors WHERE key = $1`, key)
	m, err := scanMonitor(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select monitor")
	}
	return m, nil
}

// UpsertMonitor merges the region set into an existing row; xmax = 0 only for a
// freshly inserted tuple.
func (s *Storage) UpsertMonitor(ctx context.Context, m *models.Monitor) (bool, error) {
	var inserted bool
	err := s.db.QueryRow(ctx, `
INSERT INTO monitors (key, regions, submitter, source, last_known_live_regions, created_at, updated_at)
VALUES ($1, $2, $3, $4, '{}', $5, $6)
ON CONFLICT (key) DO UPDATE SET
  regions = ARRAY(
    SELECT r FROM unnest(monitors.regions || EXCLUDED.regions) WITH ORDINALITY AS u(r, n)
    GROUP BY r ORDER BY min(n)
  ),
  submitter = CASE WHEN monitors.submitter = '' THEN EXCLUDED.submitter ELSE monitors.submitter END,
  updated_at = EXCLUDED.updated_at
RETURNING (xmax = 0)
`, m.Identity.Key(), nonNil(m.Regions), m.Submitter, m.Source, m.CreatedAt.UTC(), m.UpdatedAt.UTC()).Scan(&inserted)
	if err != nil {
		return false, errors.Wrap(err, "upsert monitor")
	}
	return inserted, nil
}

func (s *Storage) ListMonitors(ctx context.Context) ([]*models.Monitor, error) {
	rows, err := s.db.Query(ctx, `SELECT `+monitorColumns+` FROM monitors ORDER BY created_at ASC`)
	if err != nil {
		return nil, errors.Wrap(err, "select monitors")
	}
	defer rows.Close()

	var out []*models.Monitor
	for rows.Next() {
		m, err := scanMonitor(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan monitor")
		}
		out = append(out, m)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) DeleteMonitor(ctx context.Context, key string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM monitors WHERE key = $1`, key)
	return errors.Wrap(err, "delete monitor")
}

func (s *Storage) TouchMonitor(ctx context.Context, key string, liveRegions []string, at time.Time) error {
	_, err := s.db.Exec(ctx, `
UPDATE monitors SET last_known_live_regions = $2, updated_at = $3 WHERE key = $1
`, key, nonNil(liveRegions), at.UTC())
	return errors.Wrap(err, "touch monitor")
}

func scanMonitor(row pgx.Row) (*models.Monitor, error) {
	var m models.Monitor
	var key string
	if err := row.Scan(&key, &m.Regions, &m.Submitter, &m.Source, &m.LastKnownLiveRegions, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	id, err := models.IdentityFromKey(key)
	if err != nil {
		return nil, err
	}
	m.Identity = id
	return &m, nil
}

func nonNil(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}
