package pgwatch

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS monitors (
  key TEXT PRIMARY KEY,
  regions TEXT[] NOT NULL DEFAULT '{}',
  submitter TEXT NOT NULL DEFAULT '',
  source TEXT NOT NULL DEFAULT '',
  last_known_live_regions TEXT[] NOT NULL DEFAULT '{}',
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		`
CREATE TABLE IF NOT EXISTS announcements (
  key TEXT PRIMARY KEY,
  display_name TEXT NOT NULL,
  store_link TEXT NOT NULL,
  icon_url TEXT NOT NULL DEFAULT '',
  submitter TEXT NOT NULL DEFAULT '',
  announced_at TIMESTAMPTZ NOT NULL,
  month_key TEXT NOT NULL,
  notified_at TIMESTAMPTZ NULL
)`,
		`ALTER TABLE announcements ADD COLUMN IF NOT EXISTS notified_at TIMESTAMPTZ NULL`,
		`CREATE INDEX IF NOT EXISTS idx_announcements_month_key ON announcements(month_key, announced_at)`,
		`
CREATE TABLE IF NOT EXISTS tracked_apps (
  key TEXT PRIMARY KEY,
  display_name TEXT NOT NULL,
  store_link TEXT NOT NULL,
  submitter TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL,
  first_live_at TIMESTAMPTZ NOT NULL,
  last_checked_at TIMESTAMPTZ NULL,
  termination_at TIMESTAMPTZ NULL,
  confirmation_at TIMESTAMPTZ NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_tracked_apps_status_checked ON tracked_apps(status, last_checked_at)`,
		`
CREATE TABLE IF NOT EXISTS chat_events (
  event_id TEXT PRIMARY KEY,
  received_at TIMESTAMPTZ NOT NULL
)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
