package lockers

import (
	"context"
	"fmt"

	"github.com/BearBump/LockerTrack/internal/apperrors"
	"github.com/BearBump/LockerTrack/internal/models"
	"github.com/pkg/errors"
)

// MyLocker resolves the locker owned by an authenticated client.
func (s *Service) MyLocker(ctx context.Context, userID int64) (*models.Locker, error) {
	l, err := s.store.GetLockerByUserID(ctx, userID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, apperrors.NotFound(apperrors.ReasonLockerNotFound, fmt.Sprintf("no locker for user %d", userID))
	}
	if err != nil {
		return nil, apperrors.Internal(err, "get locker by user")
	}
	return l, nil
}

func (s *Service) MyPackages(ctx context.Context, userID int64) ([]*models.Assignment, error) {
	l, err := s.MyLocker(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.ListAssignments(ctx, &l.ID)
}

// MyPackageHistory returns the active history of a package assigned to the
// client's locker, oldest first. Packages in other lockers look absent.
func (s *Service) MyPackageHistory(ctx context.Context, userID int64, packageID uint64) ([]*models.HistoryEntry, error) {
	l, err := s.MyLocker(ctx, userID)
	if err != nil {
		return nil, err
	}
	a, err := s.store.ActiveAssignmentForPackage(ctx, packageID)
	if errors.Is(err, models.ErrNotFound) || (err == nil && a.LockerID != l.ID) {
		return nil, apperrors.NotFound(apperrors.ReasonPackageNotFound, fmt.Sprintf("package %d not found", packageID))
	}
	if err != nil {
		return nil, apperrors.Internal(err, "get package assignment")
	}

	hist, err := s.store.ListPackageHistory(ctx, packageID, false)
	if err != nil {
		return nil, apperrors.Internal(err, "list package history")
	}
	return hist, nil
}
