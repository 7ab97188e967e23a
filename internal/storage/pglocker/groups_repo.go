package pglocker

import (
	"context"

	"github.com/BearBump/LockerTrack/internal/models"
	"github.com/pkg/errors"
)

const groupColumns = `id, name, to_char(start_date, 'YYYY-MM-DD'), to_char(end_date, 'YYYY-MM-DD'), active`

func scanGroup(row rowScanner) (*models.Group, error) {
	var g models.Group
	if err := row.Scan(&g.ID, &g.Name, &g.StartDate, &g.EndDate, &g.Active); err != nil {
		return nil, err
	}
	return &g, nil
}

func (q *queries) ListActiveGroups(ctx context.Context) ([]*models.Group, error) {
	rows, err := q.db.Query(ctx, `SELECT `+groupColumns+` FROM shipment_groups WHERE active ORDER BY id DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "select groups")
	}
	defer rows.Close()

	out := make([]*models.Group, 0)
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan group")
		}
		out = append(out, g)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (q *queries) GetGroup(ctx context.Context, id uint64) (*models.Group, error) {
	g, err := scanGroup(q.db.QueryRow(ctx, `SELECT `+groupColumns+` FROM shipment_groups WHERE id = $1`, id))
	if err != nil {
		return nil, wrap(err, "select group")
	}
	return g, nil
}

func (q *queries) GetActiveGroupByName(ctx context.Context, name string) (*models.Group, error) {
	g, err := scanGroup(q.db.QueryRow(ctx, `SELECT `+groupColumns+` FROM shipment_groups WHERE name = $1 AND active`, name))
	if err != nil {
		return nil, wrap(err, "select group by name")
	}
	return g, nil
}

func (q *queries) CreateGroup(ctx context.Context, in models.GroupCreate) (*models.Group, error) {
	g, err := scanGroup(q.db.QueryRow(ctx, `
INSERT INTO shipment_groups (name, start_date, end_date)
VALUES ($1, $2::date, $3::date)
RETURNING `+groupColumns, in.Name, in.StartDate, in.EndDate))
	if err != nil {
		return nil, wrap(err, "insert group")
	}
	return g, nil
}

func (q *queries) UpdateGroup(ctx context.Context, id uint64, patch models.GroupPatch) (*models.Group, error) {
	g, err := scanGroup(q.db.QueryRow(ctx, `
UPDATE shipment_groups
SET
  name = COALESCE($2, name),
  start_date = COALESCE($3::date, start_date),
  end_date = COALESCE($4::date, end_date)
WHERE id = $1 AND active
RETURNING `+groupColumns, id, patch.Name, patch.StartDate, patch.EndDate))
	if err != nil {
		return nil, wrap(err, "update group")
	}
	return g, nil
}

func (q *queries) DeactivateGroup(ctx context.Context, id uint64) error {
	tag, err := q.db.Exec(ctx, `UPDATE shipment_groups SET active = FALSE WHERE id = $1 AND active`, id)
	return affected(tag, err, "deactivate group")
}

func (q *queries) DeactivateGroupPackages(ctx context.Context, groupID uint64) ([]*models.Package, error) {
	rows, err := q.db.Query(ctx, `
WITH target AS (
  SELECT id FROM packages WHERE group_id = $1 AND active FOR UPDATE
)
UPDATE packages p
SET active = FALSE
FROM target
WHERE p.id = target.id
RETURNING `+packageReturning, groupID)
	if err != nil {
		return nil, errors.Wrap(err, "deactivate group packages")
	}
	defer rows.Close()

	out := make([]*models.Package, 0)
	for rows.Next() {
		p, err := scanPackageReturning(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan package")
		}
		out = append(out, p)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
