package pglocker

import (
	"context"

	"github.com/BearBump/LockerTrack/internal/models"
	"github.com/pkg/errors"
)

const historyColumns = `
  h.id, h.package_id, p.tracking_number, h.status_id, s.name, s.color, h.observation,
  to_char(h.change_date, 'YYYY-MM-DD'), to_char(h.change_time, 'HH24:MI:SS'),
  h.acting_user, h.active
FROM package_history h
JOIN packages p ON p.id = h.package_id
JOIN statuses s ON s.id = h.status_id`

func scanHistory(row rowScanner) (*models.HistoryEntry, error) {
	var e models.HistoryEntry
	if err := row.Scan(
		&e.ID, &e.PackageID, &e.TrackingNumber, &e.StatusID, &e.StatusName, &e.StatusColor, &e.Observation,
		&e.ChangeDate, &e.ChangeTime, &e.ActingUser, &e.Active,
	); err != nil {
		return nil, err
	}
	return &e, nil
}

func (q *queries) listHistory(ctx context.Context, sql string, args ...any) ([]*models.HistoryEntry, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "select history")
	}
	defer rows.Close()

	out := make([]*models.HistoryEntry, 0)
	for rows.Next() {
		e, err := scanHistory(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan history entry")
		}
		out = append(out, e)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (q *queries) ListActiveHistory(ctx context.Context) ([]*models.HistoryEntry, error) {
	return q.listHistory(ctx, `SELECT `+historyColumns+` WHERE h.active ORDER BY h.id DESC`)
}

func (q *queries) GetHistoryEntry(ctx context.Context, id uint64) (*models.HistoryEntry, error) {
	e, err := scanHistory(q.db.QueryRow(ctx, `SELECT `+historyColumns+` WHERE h.id = $1`, id))
	if err != nil {
		return nil, wrap(err, "select history entry")
	}
	return e, nil
}

func (q *queries) ListPackageHistory(ctx context.Context, packageID uint64, includeInactive bool) ([]*models.HistoryEntry, error) {
	return q.listHistory(ctx, `
SELECT `+historyColumns+`
WHERE h.package_id = $1 AND (h.active OR $2)
ORDER BY h.id
`, packageID, includeInactive)
}

func (q *queries) InsertHistoryEntry(ctx context.Context, in models.HistoryEntryCreate) (*models.HistoryEntry, error) {
	var id uint64
	err := q.db.QueryRow(ctx, `
INSERT INTO package_history (package_id, status_id, observation, change_date, change_time, acting_user)
VALUES ($1,$2,$3,$4::date,$5::time,$6)
RETURNING id
`, in.PackageID, in.StatusID, in.Observation, in.ChangeDate, in.ChangeTime, in.ActingUser).Scan(&id)
	if err != nil {
		return nil, wrap(err, "insert history entry")
	}
	return q.GetHistoryEntry(ctx, id)
}

func (q *queries) UpdateHistoryEntry(ctx context.Context, id uint64, patch models.HistoryPatch) (*models.HistoryEntry, error) {
	var out uint64
	err := q.db.QueryRow(ctx, `
UPDATE package_history
SET
  observation = COALESCE($2, observation),
  change_date = COALESCE($3::date, change_date),
  change_time = COALESCE($4::time, change_time),
  acting_user = COALESCE($5, acting_user)
WHERE id = $1 AND active
RETURNING id
`, id, patch.Observation, patch.ChangeDate, patch.ChangeTime, patch.ActingUser).Scan(&out)
	if err != nil {
		return nil, wrap(err, "update history entry")
	}
	return q.GetHistoryEntry(ctx, out)
}

func (q *queries) DeactivateHistoryEntry(ctx context.Context, id uint64) error {
	tag, err := q.db.Exec(ctx, `UPDATE package_history SET active = FALSE WHERE id = $1 AND active`, id)
	return affected(tag, err, "deactivate history entry")
}
