package ledger

import (
	"context"
	"fmt"

	"github.com/BearBump/LockerTrack/internal/apperrors"
	"github.com/BearBump/LockerTrack/internal/broker/messages"
	"github.com/BearBump/LockerTrack/internal/models"
	"github.com/BearBump/LockerTrack/internal/storage"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type ReversalResult struct {
	EntryID   uint64 `json:"entry_id"`
	PackageID uint64 `json:"package_id"`
	// Restored is false when no active entry remains and the package was
	// reset to no status.
	Restored   bool    `json:"restored"`
	StatusID   *uint64 `json:"status_id"`
	StatusName *string `json:"status_name"`

	trackingNumber   string
	previousStatusID *uint64
}

// DeactivateEntry hides a history entry and points the package back at the
// most recently created entry that is still active, or at no status.
func (e *Engine) DeactivateEntry(ctx context.Context, entryID uint64) (*ReversalResult, error) {
	if entryID == 0 {
		return nil, apperrors.Invalid("history entry id is required")
	}

	var res *ReversalResult
	err := e.store.RunInTx(ctx, func(ctx context.Context, q storage.Querier) error {
		entry, err := activeEntry(ctx, q, entryID)
		if err != nil {
			return err
		}
		p, err := q.LockPackage(ctx, entry.PackageID)
		if err != nil {
			return err
		}
		// re-read under the package lock
		if entry, err = activeEntry(ctx, q, entryID); err != nil {
			return err
		}

		full, err := q.ListPackageHistory(ctx, p.ID, true)
		if err != nil {
			return err
		}
		var prev *models.HistoryEntry
		for _, h := range full {
			if !h.Active || h.ID == entry.ID {
				continue
			}
			if prev == nil || h.ID > prev.ID {
				prev = h
			}
		}

		if err := q.DeactivateHistoryEntry(ctx, entry.ID); err != nil {
			return err
		}

		res = &ReversalResult{
			EntryID:          entry.ID,
			PackageID:        p.ID,
			trackingNumber:   p.TrackingNumber,
			previousStatusID: p.CurrentStatusID,
		}
		if prev == nil {
			return q.SetPackageStatus(ctx, p.ID, nil)
		}
		statusID, name := prev.StatusID, prev.StatusName
		res.Restored, res.StatusID, res.StatusName = true, &statusID, &name
		return q.SetPackageStatus(ctx, p.ID, &statusID)
	})
	if err != nil {
		return nil, apperrors.Internal(err, "deactivate history entry")
	}

	e.log.Info("history entry deactivated",
		zap.Uint64("entry_id", res.EntryID),
		zap.Uint64("package_id", res.PackageID),
		zap.Bool("restored", res.Restored),
	)
	e.evictView(ctx, res.trackingNumber)
	e.publish(ctx, messages.PackageChanged{
		PackageID:        res.PackageID,
		TrackingNumber:   res.trackingNumber,
		Kind:             messages.ChangeReversal,
		StatusID:         res.StatusID,
		PreviousStatusID: res.previousStatusID,
		OccurredAt:       e.now().UTC(),
	})
	return res, nil
}

func activeEntry(ctx context.Context, q storage.HistoryQueries, id uint64) (*models.HistoryEntry, error) {
	entry, err := q.GetHistoryEntry(ctx, id)
	if errors.Is(err, models.ErrNotFound) || (err == nil && !entry.Active) {
		return nil, apperrors.NotFound(apperrors.ReasonHistoryEntryNotFound, fmt.Sprintf("history entry %d not found", id))
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}
