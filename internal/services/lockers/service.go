// Package lockers links packages to client lockers and serves the client's
// read-only view of their own locker.
package lockers

import (
	"context"
	"fmt"
	"time"

	"github.com/BearBump/LockerTrack/internal/apperrors"
	"github.com/BearBump/LockerTrack/internal/models"
	"github.com/BearBump/LockerTrack/internal/storage"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Service struct {
	store storage.Store
	log   *zap.Logger
	now   func() time.Time
}

func New(store storage.Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, log: log, now: time.Now}
}

type AssignRequest struct {
	PackageID   uint64
	LockerID    uint64
	WeightLB    *float64
	Observation *string
}

func (s *Service) GetLocker(ctx context.Context, id uint64) (*models.Locker, error) {
	l, err := activeLocker(ctx, s.store, id)
	if err != nil {
		return nil, apperrors.Internal(err, "get locker")
	}
	return l, nil
}

// ListAssignments returns active assignments, newest first. A nil lockerID
// lists every locker.
func (s *Service) ListAssignments(ctx context.Context, lockerID *uint64) ([]*models.Assignment, error) {
	out, err := s.store.ListAssignments(ctx, lockerID)
	if err != nil {
		return nil, apperrors.Internal(err, "list assignments")
	}
	return out, nil
}

func (s *Service) GetAssignment(ctx context.Context, id uint64) (*models.Assignment, error) {
	a, err := s.store.GetAssignment(ctx, id)
	if errors.Is(err, models.ErrNotFound) || (err == nil && !a.Active) {
		return nil, assignmentNotFound(id)
	}
	if err != nil {
		return nil, apperrors.Internal(err, "get assignment")
	}
	return a, nil
}

// Assign puts an active package into an active locker. A package holds at
// most one active assignment.
func (s *Service) Assign(ctx context.Context, req AssignRequest) (*models.Assignment, error) {
	if req.PackageID == 0 || req.LockerID == 0 {
		return nil, apperrors.Invalid("package id and locker id are required")
	}
	if req.WeightLB != nil && *req.WeightLB < 0 {
		return nil, apperrors.Invalid("weight must not be negative")
	}

	var out *models.Assignment
	err := s.store.RunInTx(ctx, func(ctx context.Context, q storage.Querier) error {
		if _, err := activePackage(ctx, q, req.PackageID); err != nil {
			return err
		}
		if _, err := activeLocker(ctx, q, req.LockerID); err != nil {
			return err
		}
		if err := ensureUnassigned(ctx, q, req.PackageID, 0); err != nil {
			return err
		}

		var err error
		out, err = q.CreateAssignment(ctx, models.AssignmentCreate{
			PackageID:   req.PackageID,
			LockerID:    req.LockerID,
			WeightLB:    req.WeightLB,
			Observation: req.Observation,
			AssignedAt:  s.now().UTC(),
		})
		if errors.Is(err, models.ErrDuplicate) {
			return alreadyAssigned(req.PackageID)
		}
		return err
	})
	if err != nil {
		return nil, apperrors.Internal(err, "assign package")
	}

	s.log.Info("package assigned",
		zap.Uint64("assignment_id", out.ID),
		zap.Uint64("package_id", out.PackageID),
		zap.Uint64("locker_id", out.LockerID),
	)
	return out, nil
}

func (s *Service) UpdateAssignment(ctx context.Context, id uint64, patch models.AssignmentPatch) (*models.Assignment, error) {
	if patch.Empty() {
		return nil, apperrors.Invalid("no fields to update")
	}
	if patch.WeightLB != nil && *patch.WeightLB < 0 {
		return nil, apperrors.Invalid("weight must not be negative")
	}

	var out *models.Assignment
	err := s.store.RunInTx(ctx, func(ctx context.Context, q storage.Querier) error {
		if patch.PackageID != nil {
			if _, err := activePackage(ctx, q, *patch.PackageID); err != nil {
				return err
			}
			if err := ensureUnassigned(ctx, q, *patch.PackageID, id); err != nil {
				return err
			}
		}
		if patch.LockerID != nil {
			if _, err := activeLocker(ctx, q, *patch.LockerID); err != nil {
				return err
			}
		}

		var err error
		out, err = q.UpdateAssignment(ctx, id, patch)
		switch {
		case errors.Is(err, models.ErrNotFound):
			return assignmentNotFound(id)
		case errors.Is(err, models.ErrDuplicate) && patch.PackageID != nil:
			return alreadyAssigned(*patch.PackageID)
		}
		return err
	})
	if err != nil {
		return nil, apperrors.Internal(err, "update assignment")
	}
	return out, nil
}

func (s *Service) Unassign(ctx context.Context, id uint64) error {
	err := s.store.DeactivateAssignment(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		return assignmentNotFound(id)
	}
	if err != nil {
		return apperrors.Internal(err, "deactivate assignment")
	}
	return nil
}

func activePackage(ctx context.Context, q storage.PackageQueries, id uint64) (*models.Package, error) {
	p, err := q.GetPackage(ctx, id)
	if errors.Is(err, models.ErrNotFound) || (err == nil && !p.Active) {
		return nil, apperrors.NotFound(apperrors.ReasonPackageNotFound, fmt.Sprintf("package %d not found", id))
	}
	return p, err
}

func activeLocker(ctx context.Context, q storage.LockerQueries, id uint64) (*models.Locker, error) {
	l, err := q.GetLocker(ctx, id)
	if errors.Is(err, models.ErrNotFound) || (err == nil && !l.Active) {
		return nil, apperrors.NotFound(apperrors.ReasonLockerNotFound, fmt.Sprintf("locker %d not found", id))
	}
	return l, err
}

func ensureUnassigned(ctx context.Context, q storage.LockerQueries, packageID, self uint64) error {
	a, err := q.ActiveAssignmentForPackage(ctx, packageID)
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if a.ID != self {
		return alreadyAssigned(packageID)
	}
	return nil
}

func assignmentNotFound(id uint64) error {
	return apperrors.NotFound(apperrors.ReasonAssignmentNotFound, fmt.Sprintf("assignment %d not found", id))
}

func alreadyAssigned(packageID uint64) error {
	return apperrors.Validation(apperrors.ReasonAlreadyAssigned, fmt.Sprintf("package %d is already assigned to a locker", packageID))
}
