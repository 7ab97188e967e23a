package pglocker

import (
	"context"

	"github.com/BearBump/LockerTrack/internal/models"
	"github.com/pkg/errors"
)

const (
	packageColumns = `
  p.id, p.tracking_number, p.service, p.carrier, p.sender, p.weight_lb,
  to_char(p.ship_date, 'YYYY-MM-DD'), p.carrier_reference, p.group_id,
  p.current_status_id, s.name, p.registered_at, p.active`
	packageFrom = `
FROM packages p
LEFT JOIN statuses s ON s.id = p.current_status_id`
	packageReturning = `
  p.id, p.tracking_number, p.service, p.carrier, p.sender, p.weight_lb,
  to_char(p.ship_date, 'YYYY-MM-DD'), p.carrier_reference, p.group_id,
  p.current_status_id, p.registered_at, p.active`
)

func scanPackage(row rowScanner) (*models.Package, error) {
	var p models.Package
	if err := row.Scan(
		&p.ID, &p.TrackingNumber, &p.Service, &p.Carrier, &p.Sender, &p.WeightLB,
		&p.ShipDate, &p.CarrierReference, &p.GroupID,
		&p.CurrentStatusID, &p.CurrentStatus, &p.RegisteredAt, &p.Active,
	); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanPackageReturning(row rowScanner) (*models.Package, error) {
	var p models.Package
	if err := row.Scan(
		&p.ID, &p.TrackingNumber, &p.Service, &p.Carrier, &p.Sender, &p.WeightLB,
		&p.ShipDate, &p.CarrierReference, &p.GroupID,
		&p.CurrentStatusID, &p.RegisteredAt, &p.Active,
	); err != nil {
		return nil, err
	}
	return &p, nil
}

func (q *queries) GetPackage(ctx context.Context, id uint64) (*models.Package, error) {
	p, err := scanPackage(q.db.QueryRow(ctx, `SELECT `+packageColumns+packageFrom+` WHERE p.id = $1`, id))
	if err != nil {
		return nil, wrap(err, "select package")
	}
	return p, nil
}

func (q *queries) LockPackage(ctx context.Context, id uint64) (*models.Package, error) {
	p, err := scanPackage(q.db.QueryRow(ctx, `SELECT `+packageColumns+packageFrom+` WHERE p.id = $1 FOR UPDATE OF p`, id))
	if err != nil {
		return nil, wrap(err, "lock package")
	}
	return p, nil
}

func (q *queries) FindPackageByTracking(ctx context.Context, trackingNumber string, activeOnly bool) (*models.Package, error) {
	p, err := scanPackage(q.db.QueryRow(ctx, `
SELECT `+packageColumns+packageFrom+`
WHERE p.tracking_number = $1 AND (p.active OR NOT $2)
ORDER BY p.active DESC, p.id DESC
LIMIT 1
`, trackingNumber, activeOnly))
	if err != nil {
		return nil, wrap(err, "select package by tracking")
	}
	return p, nil
}

func (q *queries) ListActivePackages(ctx context.Context, f models.PackageFilter) ([]*models.Package, int, error) {
	var total int
	if err := q.db.QueryRow(ctx, `
SELECT count(*) FROM packages p
WHERE p.active AND ($1::bigint IS NULL OR p.group_id = $1)
`, f.GroupID).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count packages")
	}

	rows, err := q.db.Query(ctx, `
SELECT `+packageColumns+packageFrom+`
WHERE p.active AND ($1::bigint IS NULL OR p.group_id = $1)
ORDER BY p.id DESC
LIMIT $2 OFFSET $3
`, f.GroupID, f.Limit, f.Offset)
	if err != nil {
		return nil, 0, errors.Wrap(err, "select packages")
	}
	defer rows.Close()

	out := make([]*models.Package, 0, f.Limit)
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, "scan package")
		}
		out = append(out, p)
	}
	if rows.Err() != nil {
		return nil, 0, errors.Wrap(rows.Err(), "rows")
	}
	return out, total, nil
}

func (q *queries) CreatePackage(ctx context.Context, in models.PackageCreate) (*models.Package, error) {
	var id uint64
	err := q.db.QueryRow(ctx, `
INSERT INTO packages (
  tracking_number, service, carrier, sender, weight_lb, ship_date,
  carrier_reference, group_id, current_status_id, registered_at
)
VALUES ($1,$2,$3,$4,$5,$6::date,$7,$8,$9,$10)
RETURNING id
`, in.TrackingNumber, in.Service, in.Carrier, in.Sender, in.WeightLB, in.ShipDate,
		in.CarrierReference, in.GroupID, in.StatusID, in.RegisteredAt.UTC()).Scan(&id)
	if err != nil {
		return nil, wrap(err, "insert package")
	}
	return q.GetPackage(ctx, id)
}

func (q *queries) UpdatePackage(ctx context.Context, id uint64, patch models.PackagePatch) (*models.Package, error) {
	f := patch.PackageFields
	var out uint64
	err := q.db.QueryRow(ctx, `
UPDATE packages
SET
  tracking_number = COALESCE($2, tracking_number),
  service = COALESCE($3, service),
  carrier = COALESCE($4, carrier),
  sender = COALESCE($5, sender),
  weight_lb = COALESCE($6, weight_lb),
  ship_date = COALESCE($7::date, ship_date),
  carrier_reference = COALESCE($8, carrier_reference),
  group_id = COALESCE($9, group_id)
WHERE id = $1 AND active
RETURNING id
`, id, patch.TrackingNumber, f.Service, f.Carrier, f.Sender, f.WeightLB, f.ShipDate,
		f.CarrierReference, f.GroupID).Scan(&out)
	if err != nil {
		return nil, wrap(err, "update package")
	}
	return q.GetPackage(ctx, out)
}

func (q *queries) ReactivatePackage(ctx context.Context, id uint64, f models.PackageFields) (*models.Package, error) {
	var out uint64
	err := q.db.QueryRow(ctx, `
UPDATE packages
SET
  service = COALESCE($2, service),
  carrier = COALESCE($3, carrier),
  sender = COALESCE($4, sender),
  weight_lb = COALESCE($5, weight_lb),
  ship_date = COALESCE($6::date, ship_date),
  carrier_reference = COALESCE($7, carrier_reference),
  group_id = COALESCE($8, group_id),
  active = TRUE
WHERE id = $1
RETURNING id
`, id, f.Service, f.Carrier, f.Sender, f.WeightLB, f.ShipDate, f.CarrierReference, f.GroupID).Scan(&out)
	if err != nil {
		return nil, wrap(err, "reactivate package")
	}
	return q.GetPackage(ctx, out)
}

func (q *queries) SetPackageStatus(ctx context.Context, id uint64, statusID *uint64) error {
	tag, err := q.db.Exec(ctx, `UPDATE packages SET current_status_id = $2 WHERE id = $1`, id, statusID)
	return affected(tag, err, "update package status")
}

func (q *queries) DeactivatePackage(ctx context.Context, id uint64) error {
	tag, err := q.db.Exec(ctx, `UPDATE packages SET active = FALSE WHERE id = $1 AND active`, id)
	return affected(tag, err, "deactivate package")
}
