package pglocker

import (
	"context"

	"github.com/pkg/errors"
)

// InitSchema creates the tables and indexes if they do not exist yet.
// "Unique among active" rules are partial unique indexes.
func (s *Storage) InitSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS statuses (
  id BIGSERIAL PRIMARY KEY,
  name TEXT NOT NULL,
  display_order INT NOT NULL,
  color TEXT NOT NULL DEFAULT '',
  active BOOLEAN NOT NULL DEFAULT TRUE,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_statuses_active_name ON statuses(name) WHERE active`,
		`CREATE INDEX IF NOT EXISTS idx_statuses_order ON statuses(display_order, id) WHERE active`,
		`
CREATE TABLE IF NOT EXISTS shipment_groups (
  id BIGSERIAL PRIMARY KEY,
  name TEXT NOT NULL,
  start_date DATE NULL,
  end_date DATE NULL,
  active BOOLEAN NOT NULL DEFAULT TRUE,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_shipment_groups_active_name ON shipment_groups(name) WHERE active`,
		`
CREATE TABLE IF NOT EXISTS packages (
  id BIGSERIAL PRIMARY KEY,
  tracking_number TEXT NOT NULL,
  service TEXT NULL,
  carrier TEXT NULL,
  sender TEXT NULL,
  weight_lb DOUBLE PRECISION NULL,
  ship_date DATE NULL,
  carrier_reference TEXT NULL,
  group_id BIGINT NULL REFERENCES shipment_groups(id),
  current_status_id BIGINT NULL REFERENCES statuses(id),
  registered_at TIMESTAMPTZ NOT NULL,
  active BOOLEAN NOT NULL DEFAULT TRUE
)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_packages_active_tracking ON packages(tracking_number) WHERE active`,
		`CREATE INDEX IF NOT EXISTS idx_packages_tracking ON packages(tracking_number, id DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_packages_group ON packages(group_id) WHERE active`,
		`
CREATE TABLE IF NOT EXISTS package_history (
  id BIGSERIAL PRIMARY KEY,
  package_id BIGINT NOT NULL REFERENCES packages(id),
  status_id BIGINT NOT NULL REFERENCES statuses(id),
  observation TEXT NULL,
  change_date DATE NOT NULL,
  change_time TIME NOT NULL,
  acting_user TEXT NULL,
  active BOOLEAN NOT NULL DEFAULT TRUE,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
		`CREATE INDEX IF NOT EXISTS idx_package_history_package ON package_history(package_id, id)`,
		`
CREATE TABLE IF NOT EXISTS lockers (
  id BIGSERIAL PRIMARY KEY,
  user_id BIGINT NOT NULL,
  code TEXT NOT NULL,
  first_name TEXT NOT NULL DEFAULT '',
  last_name TEXT NOT NULL DEFAULT '',
  active BOOLEAN NOT NULL DEFAULT TRUE
)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_lockers_active_user ON lockers(user_id) WHERE active`,
		`
CREATE TABLE IF NOT EXISTS locker_assignments (
  id BIGSERIAL PRIMARY KEY,
  package_id BIGINT NOT NULL REFERENCES packages(id),
  locker_id BIGINT NOT NULL REFERENCES lockers(id),
  weight_lb DOUBLE PRECISION NULL,
  observation TEXT NULL,
  assigned_at TIMESTAMPTZ NOT NULL,
  active BOOLEAN NOT NULL DEFAULT TRUE
)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_locker_assignments_active_package ON locker_assignments(package_id) WHERE active`,
		`CREATE INDEX IF NOT EXISTS idx_locker_assignments_locker ON locker_assignments(locker_id) WHERE active`,
	}

	for _, q := range stmts {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
