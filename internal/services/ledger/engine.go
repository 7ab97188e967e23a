package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/BearBump/LockerTrack/internal/apperrors"
	"github.com/BearBump/LockerTrack/internal/broker/messages"
	"github.com/BearBump/LockerTrack/internal/models"
	"github.com/BearBump/LockerTrack/internal/storage"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const defaultMaxBatch = 1000

type EventSink interface {
	PackageChanged(ctx context.Context, msg messages.PackageChanged)
}

// ViewEvicter drops the cached public view of a tracking number.
type ViewEvicter interface {
	EvictTrackingView(ctx context.Context, tracking string) error
}

// Engine owns every write to a package's current status and its history.
type Engine struct {
	store    storage.Store
	events   EventSink
	views    ViewEvicter
	log      *zap.Logger
	now      func() time.Time
	maxBatch int
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithViewEvicter makes every committed write evict the package's cached
// tracking view, so lookups do not wait for the event projector.
func WithViewEvicter(v ViewEvicter) Option {
	return func(e *Engine) { e.views = v }
}

func WithMaxBatch(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxBatch = n
		}
	}
}

func New(store storage.Store, events EventSink, log *zap.Logger, opts ...Option) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{
		store:    store,
		events:   events,
		log:      log,
		now:      time.Now,
		maxBatch: defaultMaxBatch,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

type TransitionRequest struct {
	PackageID   uint64
	StatusID    uint64
	ChangeDate  string
	ChangeTime  string
	Observation *string
	ActingUser  *string
}

type BatchTransitionRequest struct {
	PackageIDs  []uint64
	StatusID    uint64
	ChangeDate  string
	ChangeTime  string
	Observation *string
	ActingUser  *string
}

type TransitionResult struct {
	PackageID        uint64               `json:"package_id"`
	TrackingNumber   string               `json:"tracking_number"`
	PreviousStatusID *uint64              `json:"previous_status_id,omitempty"`
	StatusID         uint64               `json:"status_id"`
	StatusName       string               `json:"status_name"`
	Entry            *models.HistoryEntry `json:"entry"`
}

// ApplyTransition moves an active package to an active status and appends
// the matching history entry in one transaction.
func (e *Engine) ApplyTransition(ctx context.Context, req TransitionRequest) (*TransitionResult, error) {
	if req.PackageID == 0 {
		return nil, apperrors.Invalid("package id is required")
	}
	date, clock, err := validateWhen(req.StatusID, req.ChangeDate, req.ChangeTime)
	if err != nil {
		return nil, err
	}
	req.ChangeDate, req.ChangeTime = date, clock

	var res *TransitionResult
	err = e.store.RunInTx(ctx, func(ctx context.Context, q storage.Querier) error {
		target, err := ActiveStatus(ctx, q, req.StatusID)
		if err != nil {
			return err
		}
		res, err = applyLocked(ctx, q, req, target)
		return err
	})
	if err != nil {
		return nil, apperrors.Internal(err, "apply transition")
	}

	e.evictView(ctx, res.TrackingNumber)
	e.publish(ctx, res.event(e.now()))
	return res, nil
}

// ApplyTransitionMultiple runs ApplyTransition per package, each in its own
// transaction. Only malformed input or an unusable target status fail the
// whole call.
func (e *Engine) ApplyTransitionMultiple(ctx context.Context, req BatchTransitionRequest) (*models.BatchResult, error) {
	if len(req.PackageIDs) == 0 {
		return nil, apperrors.Invalid("package ids are required")
	}
	if len(req.PackageIDs) > e.maxBatch {
		return nil, apperrors.Invalid("too many package ids (max %d)", e.maxBatch)
	}
	date, clock, err := validateWhen(req.StatusID, req.ChangeDate, req.ChangeTime)
	if err != nil {
		return nil, err
	}

	target, err := ActiveStatus(ctx, e.store, req.StatusID)
	if err != nil {
		return nil, apperrors.Internal(err, "load target status")
	}

	out := models.NewBatchResult(len(req.PackageIDs))
	for _, id := range req.PackageIDs {
		item := TransitionRequest{
			PackageID:   id,
			StatusID:    target.ID,
			ChangeDate:  date,
			ChangeTime:  clock,
			Observation: req.Observation,
			ActingUser:  req.ActingUser,
		}

		var res *TransitionResult
		err := e.store.RunInTx(ctx, func(ctx context.Context, q storage.Querier) error {
			var err error
			res, err = applyLocked(ctx, q, item, target)
			return err
		})

		switch {
		case err == nil:
			out.UpdatedCount++
			out.Details = append(out.Details, fmt.Sprintf("package %d: status set to %q", id, target.Name))
			e.evictView(ctx, res.TrackingNumber)
			e.publish(ctx, res.event(e.now()))
		case errors.Is(err, apperrors.ErrNoOpTransition):
			out.SkippedCount++
			out.Details = append(out.Details, fmt.Sprintf("package %d: skipped, already %q", id, target.Name))
		default:
			err = apperrors.Internal(err, "apply transition")
			out.Errors = append(out.Errors, itemError(id, err))
			out.Details = append(out.Details, fmt.Sprintf("package %d: %v", id, err))
			if apperrors.KindOf(err) == apperrors.KindInternal {
				e.log.Error("bulk transition item failed", zap.Uint64("package_id", id), zap.Error(err))
			}
		}
	}

	e.log.Info("bulk transition",
		zap.Uint64("status_id", target.ID),
		zap.Int("updated", out.UpdatedCount),
		zap.Int("skipped", out.SkippedCount),
		zap.Int("errors", len(out.Errors)),
	)
	return out, nil
}

func applyLocked(ctx context.Context, q storage.Querier, req TransitionRequest, target *models.Status) (*TransitionResult, error) {
	p, err := q.LockPackage(ctx, req.PackageID)
	if errors.Is(err, models.ErrNotFound) || (err == nil && !p.Active) {
		return nil, apperrors.NotFound(apperrors.ReasonPackageNotFound, fmt.Sprintf("package %d not found", req.PackageID))
	}
	if err != nil {
		return nil, err
	}

	if p.CurrentStatusID != nil && *p.CurrentStatusID == target.ID {
		return nil, apperrors.Validation(apperrors.ReasonNoOpTransition,
			fmt.Sprintf("package %d is already in status %q; same status may not be applied twice consecutively", p.ID, target.Name))
	}

	if err := q.SetPackageStatus(ctx, p.ID, &target.ID); err != nil {
		return nil, err
	}
	entry, err := q.InsertHistoryEntry(ctx, models.HistoryEntryCreate{
		PackageID:   p.ID,
		StatusID:    target.ID,
		Observation: req.Observation,
		ChangeDate:  req.ChangeDate,
		ChangeTime:  req.ChangeTime,
		ActingUser:  req.ActingUser,
	})
	if err != nil {
		return nil, err
	}

	return &TransitionResult{
		PackageID:        p.ID,
		TrackingNumber:   p.TrackingNumber,
		PreviousStatusID: p.CurrentStatusID,
		StatusID:         target.ID,
		StatusName:       target.Name,
		Entry:            entry,
	}, nil
}

func (r *TransitionResult) event(at time.Time) messages.PackageChanged {
	status := r.StatusID
	return messages.PackageChanged{
		PackageID:        r.PackageID,
		TrackingNumber:   r.TrackingNumber,
		Kind:             messages.ChangeTransition,
		StatusID:         &status,
		PreviousStatusID: r.PreviousStatusID,
		OccurredAt:       at.UTC(),
	}
}

// ActiveStatus loads a status that may be used as a transition target.
func ActiveStatus(ctx context.Context, q storage.StatusQueries, id uint64) (*models.Status, error) {
	st, err := q.GetStatus(ctx, id)
	if errors.Is(err, models.ErrNotFound) || (err == nil && !st.Active) {
		return nil, apperrors.NotFound(apperrors.ReasonStatusNotFound, fmt.Sprintf("status %d not found", id))
	}
	if err != nil {
		return nil, err
	}
	return st, nil
}

func validateWhen(statusID uint64, date, clock string) (string, string, error) {
	if statusID == 0 {
		return "", "", apperrors.Invalid("status id is required")
	}
	d, ok := models.NormalizeDate(date)
	if !ok {
		return "", "", apperrors.Invalid("change date must be YYYY-MM-DD")
	}
	t, ok := models.NormalizeTime(clock)
	if !ok {
		return "", "", apperrors.Invalid("change time must be HH:MM:SS")
	}
	return d, t, nil
}

func itemError(id uint64, err error) models.BatchItemError {
	return models.BatchItemError{ID: id, Reason: string(apperrors.ReasonOf(err)), Message: err.Error()}
}

func (e *Engine) evictView(ctx context.Context, tracking string) {
	if e.views == nil || tracking == "" {
		return
	}
	if err := e.views.EvictTrackingView(ctx, tracking); err != nil {
		e.log.Warn("tracking view evict", zap.String("tracking_number", tracking), zap.Error(err))
	}
}

func (e *Engine) publish(ctx context.Context, msg messages.PackageChanged) {
	if e.events == nil {
		return
	}
	e.events.PackageChanged(ctx, msg)
}
