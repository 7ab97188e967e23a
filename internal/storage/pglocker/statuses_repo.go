package pglocker

import (
	"context"

	"github.com/BearBump/LockerTrack/internal/models"
	"github.com/pkg/errors"
)

const statusColumns = `id, name, display_order, color, active`

func scanStatus(row rowScanner) (*models.Status, error) {
	var st models.Status
	if err := row.Scan(&st.ID, &st.Name, &st.DisplayOrder, &st.Color, &st.Active); err != nil {
		return nil, err
	}
	return &st, nil
}

func (q *queries) ListActiveStatuses(ctx context.Context) ([]*models.Status, error) {
	rows, err := q.db.Query(ctx, `
SELECT `+statusColumns+`
FROM statuses
WHERE active
ORDER BY display_order, id
`)
	if err != nil {
		return nil, errors.Wrap(err, "select statuses")
	}
	defer rows.Close()

	out := make([]*models.Status, 0)
	for rows.Next() {
		st, err := scanStatus(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan status")
		}
		out = append(out, st)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (q *queries) GetStatus(ctx context.Context, id uint64) (*models.Status, error) {
	st, err := scanStatus(q.db.QueryRow(ctx, `SELECT `+statusColumns+` FROM statuses WHERE id = $1`, id))
	if err != nil {
		return nil, wrap(err, "select status")
	}
	return st, nil
}

func (q *queries) GetActiveStatusByName(ctx context.Context, name string) (*models.Status, error) {
	st, err := scanStatus(q.db.QueryRow(ctx, `SELECT `+statusColumns+` FROM statuses WHERE name = $1 AND active`, name))
	if err != nil {
		return nil, wrap(err, "select status by name")
	}
	return st, nil
}

func (q *queries) CreateStatus(ctx context.Context, in models.StatusCreate) (*models.Status, error) {
	st, err := scanStatus(q.db.QueryRow(ctx, `
INSERT INTO statuses (name, display_order, color)
VALUES ($1,$2,$3)
RETURNING `+statusColumns, in.Name, in.DisplayOrder, in.Color))
	if err != nil {
		return nil, wrap(err, "insert status")
	}
	return st, nil
}

func (q *queries) UpdateStatus(ctx context.Context, id uint64, patch models.StatusPatch) (*models.Status, error) {
	st, err := scanStatus(q.db.QueryRow(ctx, `
UPDATE statuses
SET
  name = COALESCE($2, name),
  display_order = COALESCE($3, display_order),
  color = COALESCE($4, color)
WHERE id = $1 AND active
RETURNING `+statusColumns, id, patch.Name, patch.DisplayOrder, patch.Color))
	if err != nil {
		return nil, wrap(err, "update status")
	}
	return st, nil
}

func (q *queries) DeactivateStatus(ctx context.Context, id uint64) error {
	tag, err := q.db.Exec(ctx, `UPDATE statuses SET active = FALSE WHERE id = $1 AND active`, id)
	return affected(tag, err, "deactivate status")
}
