package ledger

import (
	"context"
	"time"

	"github.com/BearBump/LockerTrack/internal/models"
	"github.com/BearBump/LockerTrack/internal/storage"
)

// Backfill writes the history a package registered mid-pipeline would have
// had: one entry per active status up to the target's display order, in
// (display_order, id) order with the target last, all stamped with at.
// The target entry is marked as the initial state. With onlyMissing set,
// statuses already present in the package's full history are skipped.
// Returns the number of entries written.
func Backfill(ctx context.Context, q storage.Querier, packageID uint64, target *models.Status, at time.Time, onlyMissing bool, actingUser *string) (int, error) {
	all, err := q.ListActiveStatuses(ctx)
	if err != nil {
		return 0, err
	}

	seq := make([]*models.Status, 0, len(all)+1)
	for _, st := range all {
		if st.ID != target.ID && st.DisplayOrder <= target.DisplayOrder {
			seq = append(seq, st)
		}
	}
	seq = append(seq, target)

	seen := map[uint64]struct{}{}
	if onlyMissing {
		hist, err := q.ListPackageHistory(ctx, packageID, true)
		if err != nil {
			return 0, err
		}
		for _, h := range hist {
			seen[h.StatusID] = struct{}{}
		}
	}

	at = at.UTC()
	date, clock := at.Format(models.DateLayout), at.Format(models.TimeLayout)
	written := 0
	for _, st := range seq {
		if _, ok := seen[st.ID]; ok {
			continue
		}
		obs := models.ObservationAutoRegistered
		if st.ID == target.ID {
			obs = models.ObservationInitialState
		}
		if _, err := q.InsertHistoryEntry(ctx, models.HistoryEntryCreate{
			PackageID:   packageID,
			StatusID:    st.ID,
			Observation: &obs,
			ChangeDate:  date,
			ChangeTime:  clock,
			ActingUser:  actingUser,
		}); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}
