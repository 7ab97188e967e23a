package ledger

import (
	"context"
	"fmt"

	"github.com/BearBump/LockerTrack/internal/apperrors"
	"github.com/BearBump/LockerTrack/internal/broker/messages"
	"github.com/BearBump/LockerTrack/internal/models"
	"github.com/pkg/errors"
)

func (e *Engine) ListHistory(ctx context.Context) ([]*models.HistoryEntry, error) {
	out, err := e.store.ListActiveHistory(ctx)
	if err != nil {
		return nil, apperrors.Internal(err, "list history")
	}
	return out, nil
}

func (e *Engine) GetEntry(ctx context.Context, id uint64) (*models.HistoryEntry, error) {
	entry, err := activeEntry(ctx, e.store, id)
	if err != nil {
		return nil, apperrors.Internal(err, "get history entry")
	}
	return entry, nil
}

// PackageHistory returns the active entries of a package, newest first.
func (e *Engine) PackageHistory(ctx context.Context, packageID uint64) ([]*models.HistoryEntry, error) {
	if _, err := e.store.GetPackage(ctx, packageID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, apperrors.NotFound(apperrors.ReasonPackageNotFound, fmt.Sprintf("package %d not found", packageID))
		}
		return nil, apperrors.Internal(err, "get package")
	}
	hist, err := e.store.ListPackageHistory(ctx, packageID, false)
	if err != nil {
		return nil, apperrors.Internal(err, "list package history")
	}
	for i, j := 0, len(hist)-1; i < j; i, j = i+1, j-1 {
		hist[i], hist[j] = hist[j], hist[i]
	}
	return hist, nil
}

// UpdateEntry patches the descriptive fields of an active entry. Package and
// status are not patchable, so the package pointer cannot drift.
func (e *Engine) UpdateEntry(ctx context.Context, id uint64, patch models.HistoryPatch) (*models.HistoryEntry, error) {
	if patch.Empty() {
		return nil, apperrors.Invalid("no fields to update")
	}
	if patch.ChangeDate != nil {
		d, ok := models.NormalizeDate(*patch.ChangeDate)
		if !ok {
			return nil, apperrors.Invalid("change date must be YYYY-MM-DD")
		}
		patch.ChangeDate = &d
	}
	if patch.ChangeTime != nil {
		t, ok := models.NormalizeTime(*patch.ChangeTime)
		if !ok {
			return nil, apperrors.Invalid("change time must be HH:MM:SS")
		}
		patch.ChangeTime = &t
	}

	entry, err := e.store.UpdateHistoryEntry(ctx, id, patch)
	if errors.Is(err, models.ErrNotFound) {
		return nil, apperrors.NotFound(apperrors.ReasonHistoryEntryNotFound, fmt.Sprintf("history entry %d not found", id))
	}
	if err != nil {
		return nil, apperrors.Internal(err, "update history entry")
	}

	e.evictView(ctx, entry.TrackingNumber)
	e.publish(ctx, messages.PackageChanged{
		PackageID:      entry.PackageID,
		TrackingNumber: entry.TrackingNumber,
		Kind:           messages.ChangeUpdated,
		OccurredAt:     e.now().UTC(),
	})
	return entry, nil
}
