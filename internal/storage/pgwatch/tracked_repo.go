package pgwatch

import (
	"context"
	"time"

	"github.com/BearBump/AppWatch/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const trackedColumns = `key, display_name, store_link, submitter, status, first_live_at, last_checked_at, termination_at, confirmation_at`

func (s *Storage) GetTracked(ctx context.Context, key string) (*models.TrackedApp, error) {
	row := s.db.QueryRow(ctx, `SELECT `+trackedColumns+` FROM tracked_apps WHERE key = $1`, key)
	t, err := scanTracked(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select tracked app")
	}
	return t, nil
}

func (s *Storage) InsertTracked(ctx context.Context, t *models.TrackedApp) (bool, error) {
	tag, err := s.db.Exec(ctx, `
INSERT INTO tracked_apps (key, display_name, store_link, submitter, status, first_live_at, last_checked_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (key) DO NOTHING
`, t.Identity.Key(), t.DisplayName, t.StoreLink, t.Submitter, t.Status, t.FirstLiveAt.UTC(), t.LastCheckedAt)
	if err != nil {
		return false, errors.Wrap(err, "insert tracked app")
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Storage) ListTracked(ctx context.Context, status string) ([]*models.TrackedApp, error) {
	rows, err := s.db.Query(ctx, `
SELECT `+trackedColumns+`
FROM tracked_apps
WHERE $1::text = '' OR status = $1
ORDER BY first_live_at ASC
`, status)
	if err != nil {
		return nil, errors.Wrap(err, "select tracked apps")
	}
	return collectTracked(rows)
}

func (s *Storage) ListTrackedDue(ctx context.Context, status string, checkedBefore time.Time) ([]*models.TrackedApp, error) {
	rows, err := s.db.Query(ctx, `
SELECT `+trackedColumns+`
FROM tracked_apps
WHERE status = $1
  AND (last_checked_at IS NULL OR last_checked_at < $2)
ORDER BY first_live_at ASC
`, status, checkedBefore.UTC())
	if err != nil {
		return nil, errors.Wrap(err, "select due tracked apps")
	}
	return collectTracked(rows)
}

// TransitionTracked is a conditional update: rows already in a terminal status
// are never matched, so each transition notice is sent at most once.
func (s *Storage) TransitionTracked(ctx context.Context, key string, from []string, to string, at time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
UPDATE tracked_apps SET
  status = $2::text,
  last_checked_at = $3,
  termination_at = CASE WHEN $2::text = 'terminated' THEN $3 ELSE termination_at END,
  confirmation_at = CASE WHEN $2::text = 'confirmed' THEN $3 ELSE confirmation_at END
WHERE key = $1 AND status = ANY($4)
`, key, to, at.UTC(), from)
	if err != nil {
		return false, errors.Wrap(err, "transition tracked app")
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Storage) TouchTracked(ctx context.Context, key string, at time.Time) error {
	_, err := s.db.Exec(ctx, `UPDATE tracked_apps SET last_checked_at = $2 WHERE key = $1`, key, at.UTC())
	return errors.Wrap(err, "touch tracked app")
}

func collectTracked(rows pgx.Rows) ([]*models.TrackedApp, error) {
	defer rows.Close()

	var out []*models.TrackedApp
	for rows.Next() {
		t, err := scanTracked(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan tracked app")
		}
		out = append(out, t)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func scanTracked(row pgx.Row) (*models.TrackedApp, error) {
	var t models.TrackedApp
	var key string
	if err := row.Scan(
		&key, &t.DisplayName, &t.StoreLink, &t.Submitter, &t.Status,
		&t.FirstLiveAt, &t.LastCheckedAt, &t.TerminationAt, &t.ConfirmationAt,
	); err != nil {
		return nil, err
	}
	id, err := models.IdentityFromKey(key)
	if err != nil {
		return nil, err
	}
	t.Identity = id
	return &t, nil
}
