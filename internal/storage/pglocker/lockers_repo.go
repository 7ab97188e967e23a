package pglocker

import (
	"context"

	"github.com/BearBump/LockerTrack/internal/models"
	"github.com/pkg/errors"
)

const (
	lockerColumns     = `id, user_id, code, first_name, last_name, active`
	assignmentColumns = `
  a.id, a.package_id, a.locker_id, a.weight_lb, a.observation, a.assigned_at, a.active,
  p.tracking_number, l.code, s.name
FROM locker_assignments a
JOIN packages p ON p.id = a.package_id
JOIN lockers l ON l.id = a.locker_id
LEFT JOIN statuses s ON s.id = p.current_status_id`
)

func scanLocker(row rowScanner) (*models.Locker, error) {
	var l models.Locker
	if err := row.Scan(&l.ID, &l.UserID, &l.Code, &l.FirstName, &l.LastName, &l.Active); err != nil {
		return nil, err
	}
	return &l, nil
}

func scanAssignment(row rowScanner) (*models.Assignment, error) {
	var a models.Assignment
	if err := row.Scan(
		&a.ID, &a.PackageID, &a.LockerID, &a.WeightLB, &a.Observation, &a.AssignedAt, &a.Active,
		&a.TrackingNumber, &a.LockerCode, &a.CurrentStatus,
	); err != nil {
		return nil, err
	}
	return &a, nil
}

func (q *queries) GetLocker(ctx context.Context, id uint64) (*models.Locker, error) {
	l, err := scanLocker(q.db.QueryRow(ctx, `SELECT `+lockerColumns+` FROM lockers WHERE id = $1`, id))
	if err != nil {
		return nil, wrap(err, "select locker")
	}
	return l, nil
}

func (q *queries) GetLockerByUserID(ctx context.Context, userID int64) (*models.Locker, error) {
	l, err := scanLocker(q.db.QueryRow(ctx, `SELECT `+lockerColumns+` FROM lockers WHERE user_id = $1 AND active`, userID))
	if err != nil {
		return nil, wrap(err, "select locker by user")
	}
	return l, nil
}

func (q *queries) ListAssignments(ctx context.Context, lockerID *uint64) ([]*models.Assignment, error) {
	rows, err := q.db.Query(ctx, `
SELECT `+assignmentColumns+`
WHERE a.active AND ($1::bigint IS NULL OR a.locker_id = $1)
ORDER BY a.id DESC
`, lockerID)
	if err != nil {
		return nil, errors.Wrap(err, "select assignments")
	}
	defer rows.Close()

	out := make([]*models.Assignment, 0)
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan assignment")
		}
		out = append(out, a)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (q *queries) GetAssignment(ctx context.Context, id uint64) (*models.Assignment, error) {
	a, err := scanAssignment(q.db.QueryRow(ctx, `SELECT `+assignmentColumns+` WHERE a.id = $1`, id))
	if err != nil {
		return nil, wrap(err, "select assignment")
	}
	return a, nil
}

func (q *queries) ActiveAssignmentForPackage(ctx context.Context, packageID uint64) (*models.Assignment, error) {
	a, err := scanAssignment(q.db.QueryRow(ctx, `SELECT `+assignmentColumns+` WHERE a.package_id = $1 AND a.active`, packageID))
	if err != nil {
		return nil, wrap(err, "select package assignment")
	}
	return a, nil
}

func (q *queries) CreateAssignment(ctx context.Context, in models.AssignmentCreate) (*models.Assignment, error) {
	var id uint64
	err := q.db.QueryRow(ctx, `
INSERT INTO locker_assignments (package_id, locker_id, weight_lb, observation, assigned_at)
VALUES ($1,$2,$3,$4,$5)
RETURNING id
`, in.PackageID, in.LockerID, in.WeightLB, in.Observation, in.AssignedAt.UTC()).Scan(&id)
	if err != nil {
		return nil, wrap(err, "insert assignment")
	}
	return q.GetAssignment(ctx, id)
}

func (q *queries) UpdateAssignment(ctx context.Context, id uint64, patch models.AssignmentPatch) (*models.Assignment, error) {
	var out uint64
	err := q.db.QueryRow(ctx, `
UPDATE locker_assignments
SET
  package_id = COALESCE($2, package_id),
  locker_id = COALESCE($3, locker_id),
  weight_lb = COALESCE($4, weight_lb),
  observation = COALESCE($5, observation)
WHERE id = $1 AND active
RETURNING id
`, id, patch.PackageID, patch.LockerID, patch.WeightLB, patch.Observation).Scan(&out)
	if err != nil {
		return nil, wrap(err, "update assignment")
	}
	return q.GetAssignment(ctx, out)
}

func (q *queries) DeactivateAssignment(ctx context.Context, id uint64) error {
	tag, err := q.db.Exec(ctx, `UPDATE locker_assignments SET active = FALSE WHERE id = $1 AND active`, id)
	return affected(tag, err, "deactivate assignment")
}
