package packages

import (
	"context"
	"strings"

	"github.com/BearBump/LockerTrack/internal/apperrors"
	"github.com/BearBump/LockerTrack/internal/broker/messages"
	"github.com/BearBump/LockerTrack/internal/models"
	"github.com/BearBump/LockerTrack/internal/services/ledger"
	"github.com/BearBump/LockerTrack/internal/storage"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	ActionCreated = "created"
	ActionUpdated = "updated"
)

type UpsertResult struct {
	Action string `json:"action"`
	ID     uint64 `json:"id"`
}

// Upsert is the import path. A package with the same tracking number, active
// or not, is updated and reactivated and only the statuses missing from its
// full history are backfilled. Otherwise the package is created with a full
// backfill.
func (s *Service) Upsert(ctx context.Context, row models.ImportRow, actingUser *string) (*UpsertResult, error) {
	row.TrackingNumber = strings.TrimSpace(row.TrackingNumber)
	if row.TrackingNumber == "" {
		return nil, apperrors.Invalid("tracking number is required")
	}
	if err := normalizeFields(&row.PackageFields); err != nil {
		return nil, err
	}

	at := s.now().UTC()
	var (
		res        UpsertResult
		pkg        *models.Package
		prevStatus *uint64
	)
	err := s.store.RunInTx(ctx, func(ctx context.Context, q storage.Querier) error {
		if err := ensureGroup(ctx, q, row.GroupID); err != nil {
			return err
		}
		var target *models.Status
		if row.StatusID != nil {
			var err error
			if target, err = ledger.ActiveStatus(ctx, q, *row.StatusID); err != nil {
				return err
			}
		}

		existing, err := q.FindPackageByTracking(ctx, row.TrackingNumber, false)
		switch {
		case errors.Is(err, models.ErrNotFound):
			p, err := q.CreatePackage(ctx, models.PackageCreate{
				TrackingNumber: row.TrackingNumber,
				PackageFields:  row.PackageFields,
				StatusID:       row.StatusID,
				RegisteredAt:   at,
			})
			if err != nil {
				return err
			}
			if target != nil {
				if _, err := ledger.Backfill(ctx, q, p.ID, target, at, false, actingUser); err != nil {
					return err
				}
			}
			res, pkg = UpsertResult{Action: ActionCreated, ID: p.ID}, p
			return nil
		case err != nil:
			return err
		}

		if existing, err = q.LockPackage(ctx, existing.ID); err != nil {
			return err
		}
		prevStatus = existing.CurrentStatusID
		p, err := q.ReactivatePackage(ctx, existing.ID, row.PackageFields)
		if err != nil {
			return err
		}
		if target != nil {
			if _, err := ledger.Backfill(ctx, q, p.ID, target, at, true, actingUser); err != nil {
				return err
			}
			if err := q.SetPackageStatus(ctx, p.ID, &target.ID); err != nil {
				return err
			}
			p.CurrentStatusID = &target.ID
		}
		res, pkg = UpsertResult{Action: ActionUpdated, ID: p.ID}, p
		return nil
	})
	if errors.Is(err, models.ErrDuplicate) {
		return nil, duplicateTracking(row.TrackingNumber)
	}
	if err != nil {
		return nil, apperrors.Internal(err, "upsert package")
	}

	s.log.Debug("package upserted",
		zap.String("tracking_number", pkg.TrackingNumber),
		zap.String("action", res.Action),
		zap.Uint64("package_id", res.ID),
	)
	s.evictViews(ctx, pkg.TrackingNumber)
	s.publish(ctx, messages.PackageChanged{
		PackageID:        pkg.ID,
		TrackingNumber:   pkg.TrackingNumber,
		Kind:             messages.ChangeImported,
		StatusID:         pkg.CurrentStatusID,
		PreviousStatusID: prevStatus,
		OccurredAt:       at,
	})
	return &res, nil
}
