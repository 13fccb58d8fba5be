package pgwatch

import (
	"context"
	"time"

	"github.com/BearBump/AppWatch/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const announcementColumns = `key, display_name, store_link, icon_url, submitter, announced_at, month_key, notified_at`

func (s *Storage) GetAnnouncement(ctx context.Context, key string) (*models.Announcement, error) {
	row := s.db.QueryRow(ctx, `SELECT `+announcementColumns+` FROM announcements WHERE key = $1`, key)
	a, err := scanAnnouncement(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select announcement")
	}
	return a, nil
}

// InsertAnnouncement never overwrites: announcements are immutable once written.
func (s *Storage) InsertAnnouncement(ctx context.Context, a *models.Announcement) (bool, error) {
	tag, err := s.db.Exec(ctx, `
INSERT INTO announcements (key, display_name, store_link, icon_url, submitter, announced_at, month_key, notified_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (key) DO NOTHING
`, a.Identity.Key(), a.DisplayName, a.StoreLink, a.IconURL, a.Submitter, a.AnnouncedAt.UTC(), a.MonthKey, a.NotifiedAt)
	if err != nil {
		return false, errors.Wrap(err, "insert announcement")
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Storage) ListAnnouncements(ctx context.Context, monthKey string) ([]*models.Announcement, error) {
	rows, err := s.db.Query(ctx, `
SELECT `+announcementColumns+`
FROM announcements
WHERE $1::text = '' OR month_key = $1
ORDER BY announced_at ASC
`, monthKey)
	if err != nil {
		return nil, errors.Wrap(err, "select announcements")
	}
	defer rows.Close()

	var out []*models.Announcement
	for rows.Next() {
		a, err := scanAnnouncement(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan announcement")
		}
		out = append(out, a)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// ClaimLaunchNotice sets notified_at only while it is still empty, so exactly one
// caller gets to send the launch notice.
func (s *Storage) ClaimLaunchNotice(ctx context.Context, key string, at time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
UPDATE announcements SET notified_at = $2
WHERE key = $1 AND notified_at IS NULL
`, key, at.UTC())
	if err != nil {
		return false, errors.Wrap(err, "claim launch notice")
	}
	return tag.RowsAffected() == 1, nil
}

// ReleaseLaunchNotice hands the notice back after a failed send.
func (s *Storage) ReleaseLaunchNotice(ctx context.Context, key string) error {
	_, err := s.db.Exec(ctx, `UPDATE announcements SET notified_at = NULL WHERE key = $1`, key)
	return errors.Wrap(err, "release launch notice")
}

// TryRegisterEvent is first-writer-wins on the platform event id.
func (s *Storage) TryRegisterEvent(ctx context.Context, eventID string, at time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
INSERT INTO chat_events (event_id, received_at) VALUES ($1, $2)
ON CONFLICT (event_id) DO NOTHING
`, eventID, at.UTC())
	if err != nil {
		return false, errors.Wrap(err, "register chat event")
	}
	return tag.RowsAffected() == 1, nil
}

func scanAnnouncement(row pgx.Row) (*models.Announcement, error) {
	var a models.Announcement
	var key string
	if err := row.Scan(&key, &a.DisplayName, &a.StoreLink, &a.IconURL, &a.Submitter, &a.AnnouncedAt, &a.MonthKey, &a.NotifiedAt); err != nil {
		return nil, err
	}
	id, err := models.IdentityFromKey(key)
	if err != nil {
		return nil, err
	}
	a.Identity = id
	return &a, nil
}
