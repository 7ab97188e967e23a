package packages

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BearBump/LockerTrack/internal/apperrors"
	"github.com/BearBump/LockerTrack/internal/broker/messages"
	"github.com/BearBump/LockerTrack/internal/cache"
	"github.com/BearBump/LockerTrack/internal/models"
	"github.com/BearBump/LockerTrack/internal/services/ledger"
	"github.com/BearBump/LockerTrack/internal/storage"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
	defaultMaxBatch  = 1000
)

type EventSink interface {
	PackageChanged(ctx context.Context, msg messages.PackageChanged)
}

type Service struct {
	store    storage.Store
	cache    cache.BytesCache
	viewTTL  time.Duration
	events   EventSink
	log      *zap.Logger
	now      func() time.Time
	maxBatch int
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithMaxBatch(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxBatch = n
		}
	}
}

// New builds the service. c may be nil, then tracking views are always read
// from storage.
func New(store storage.Store, c cache.BytesCache, viewTTL time.Duration, events EventSink, log *zap.Logger, opts ...Option) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		store:    store,
		cache:    c,
		viewTTL:  viewTTL,
		events:   events,
		log:      log,
		now:      time.Now,
		maxBatch: defaultMaxBatch,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

type CreateRequest struct {
	TrackingNumber string
	models.PackageFields
	StatusID   *uint64
	ActingUser *string
}

type Page struct {
	Items      []*models.Package `json:"items"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
	TotalPages int               `json:"total_pages"`
}

func (s *Service) List(ctx context.Context, page, limit int, groupID *uint64) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	items, total, err := s.store.ListActivePackages(ctx, models.PackageFilter{
		GroupID: groupID,
		Limit:   limit,
		Offset:  (page - 1) * limit,
	})
	if err != nil {
		return nil, apperrors.Internal(err, "list packages")
	}
	return &Page{
		Items:      items,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	}, nil
}

func (s *Service) Get(ctx context.Context, id uint64) (*models.Package, error) {
	p, err := s.store.GetPackage(ctx, id)
	if errors.Is(err, models.ErrNotFound) || (err == nil && !p.Active) {
		return nil, packageNotFound(id)
	}
	if err != nil {
		return nil, apperrors.Internal(err, "get package")
	}
	return p, nil
}

// GetByTracking looks at every package with that tracking number, the
// active one first.
func (s *Service) GetByTracking(ctx context.Context, tracking string) (*models.Package, error) {
	tracking = strings.TrimSpace(tracking)
	if tracking == "" {
		return nil, apperrors.Invalid("tracking number is required")
	}
	p, err := s.store.FindPackageByTracking(ctx, tracking, false)
	if errors.Is(err, models.ErrNotFound) {
		return nil, trackingNotFound(tracking)
	}
	if err != nil {
		return nil, apperrors.Internal(err, "get package by tracking")
	}
	return p, nil
}

// Create registers a package. With an initial status the history is
// backfilled up to that status.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Package, error) {
	req.TrackingNumber = strings.TrimSpace(req.TrackingNumber)
	if req.TrackingNumber == "" {
		return nil, apperrors.Invalid("tracking number is required")
	}
	if err := normalizeFields(&req.PackageFields); err != nil {
		return nil, err
	}

	registeredAt := s.now().UTC()
	var created *models.Package
	err := s.store.RunInTx(ctx, func(ctx context.Context, q storage.Querier) error {
		if err := ensureTrackingFree(ctx, q, req.TrackingNumber, 0); err != nil {
			return err
		}
		if err := ensureGroup(ctx, q, req.GroupID); err != nil {
			return err
		}
		var target *models.Status
		if req.StatusID != nil {
			var err error
			if target, err = ledger.ActiveStatus(ctx, q, *req.StatusID); err != nil {
				return err
			}
		}

		p, err := q.CreatePackage(ctx, models.PackageCreate{
			TrackingNumber: req.TrackingNumber,
			PackageFields:  req.PackageFields,
			StatusID:       req.StatusID,
			RegisteredAt:   registeredAt,
		})
		if errors.Is(err, models.ErrDuplicate) {
			return duplicateTracking(req.TrackingNumber)
		}
		if err != nil {
			return err
		}
		if target != nil {
			if _, err := ledger.Backfill(ctx, q, p.ID, target, registeredAt, false, req.ActingUser); err != nil {
				return err
			}
			name := target.Name
			p.CurrentStatus = &name
		}
		created = p
		return nil
	})
	if err != nil {
		return nil, apperrors.Internal(err, "create package")
	}

	s.log.Info("package registered", zap.Uint64("package_id", created.ID), zap.String("tracking_number", created.TrackingNumber))
	s.publish(ctx, messages.PackageChanged{
		PackageID:      created.ID,
		TrackingNumber: created.TrackingNumber,
		Kind:           messages.ChangeRegistered,
		StatusID:       created.CurrentStatusID,
		OccurredAt:     registeredAt,
	})
	return created, nil
}

// Update patches the descriptive fields and the tracking number of an
// active package. The current status is not part of the patch.
func (s *Service) Update(ctx context.Context, id uint64, patch models.PackagePatch) (*models.Package, error) {
	if patch.Empty() {
		return nil, apperrors.Invalid("no fields to update")
	}
	if patch.TrackingNumber != nil {
		tn := strings.TrimSpace(*patch.TrackingNumber)
		if tn == "" {
			return nil, apperrors.Invalid("tracking number must not be empty")
		}
		patch.TrackingNumber = &tn
	}
	if err := normalizeFields(&patch.PackageFields); err != nil {
		return nil, err
	}

	var before, after *models.Package
	err := s.store.RunInTx(ctx, func(ctx context.Context, q storage.Querier) error {
		p, err := q.LockPackage(ctx, id)
		if errors.Is(err, models.ErrNotFound) || (err == nil && !p.Active) {
			return packageNotFound(id)
		}
		if err != nil {
			return err
		}
		before = p

		if patch.TrackingNumber != nil {
			if err := ensureTrackingFree(ctx, q, *patch.TrackingNumber, id); err != nil {
				return err
			}
		}
		if err := ensureGroup(ctx, q, patch.GroupID); err != nil {
			return err
		}

		after, err = q.UpdatePackage(ctx, id, patch)
		if errors.Is(err, models.ErrDuplicate) && patch.TrackingNumber != nil {
			return duplicateTracking(*patch.TrackingNumber)
		}
		return err
	})
	if err != nil {
		return nil, apperrors.Internal(err, "update package")
	}

	msg := messages.PackageChanged{
		PackageID:      after.ID,
		TrackingNumber: after.TrackingNumber,
		Kind:           messages.ChangeUpdated,
		StatusID:       after.CurrentStatusID,
		OccurredAt:     s.now().UTC(),
	}
	if before.TrackingNumber != after.TrackingNumber {
		prev := before.TrackingNumber
		msg.PreviousTrackingNumber = &prev
	}
	s.evictViews(ctx, before.TrackingNumber, after.TrackingNumber)
	s.publish(ctx, msg)
	return after, nil
}

func (s *Service) Deactivate(ctx context.Context, id uint64) error {
	p, err := s.deactivateOne(ctx, id)
	if errors.Is(err, errAlreadyInactive) {
		return packageNotFound(id)
	}
	if err != nil {
		return apperrors.Internal(err, "deactivate package")
	}
	s.afterDeactivate(ctx, p)
	return nil
}

// DeactivateMultiple deactivates each package on its own. Already inactive
// packages are skipped and unknown ids are reported as errors.
func (s *Service) DeactivateMultiple(ctx context.Context, ids []uint64) (*models.BatchResult, error) {
	if len(ids) == 0 {
		return nil, apperrors.Invalid("package ids are required")
	}
	if len(ids) > s.maxBatch {
		return nil, apperrors.Invalid("too many package ids (max %d)", s.maxBatch)
	}

	out := models.NewBatchResult(len(ids))
	for _, id := range ids {
		p, err := s.deactivateOne(ctx, id)
		switch {
		case err == nil:
			out.UpdatedCount++
			out.Details = append(out.Details, fmt.Sprintf("package %d: deactivated", id))
			s.afterDeactivate(ctx, p)
		case errors.Is(err, errAlreadyInactive):
			out.SkippedCount++
			out.Details = append(out.Details, fmt.Sprintf("package %d: skipped, already inactive", id))
		default:
			err = apperrors.Internal(err, "deactivate package")
			out.Errors = append(out.Errors, models.BatchItemError{
				ID:      id,
				Reason:  string(apperrors.ReasonOf(err)),
				Message: err.Error(),
			})
			out.Details = append(out.Details, fmt.Sprintf("package %d: %v", id, err))
			if apperrors.KindOf(err) == apperrors.KindInternal {
				s.log.Error("bulk deactivate item failed", zap.Uint64("package_id", id), zap.Error(err))
			}
		}
	}

	s.log.Info("bulk deactivate",
		zap.Int("updated", out.UpdatedCount),
		zap.Int("skipped", out.SkippedCount),
		zap.Int("errors", len(out.Errors)),
	)
	return out, nil
}

var errAlreadyInactive = errors.New("package already inactive")

func (s *Service) deactivateOne(ctx context.Context, id uint64) (*models.Package, error) {
	var out *models.Package
	err := s.store.RunInTx(ctx, func(ctx context.Context, q storage.Querier) error {
		p, err := q.LockPackage(ctx, id)
		if errors.Is(err, models.ErrNotFound) {
			return packageNotFound(id)
		}
		if err != nil {
			return err
		}
		if !p.Active {
			return errAlreadyInactive
		}
		out = p
		return q.DeactivatePackage(ctx, id)
	})
	return out, err
}

func (s *Service) afterDeactivate(ctx context.Context, p *models.Package) {
	s.evictViews(ctx, p.TrackingNumber)
	s.publish(ctx, messages.PackageChanged{
		PackageID:      p.ID,
		TrackingNumber: p.TrackingNumber,
		Kind:           messages.ChangeDeactivated,
		StatusID:       p.CurrentStatusID,
		OccurredAt:     s.now().UTC(),
	})
}

func (s *Service) publish(ctx context.Context, msg messages.PackageChanged) {
	if s.events == nil {
		return
	}
	s.events.PackageChanged(ctx, msg)
}

func ensureTrackingFree(ctx context.Context, q storage.PackageQueries, tracking string, self uint64) error {
	other, err := q.FindPackageByTracking(ctx, tracking, true)
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if other.ID != self {
		return duplicateTracking(tracking)
	}
	return nil
}

func ensureGroup(ctx context.Context, q storage.GroupQueries, id *uint64) error {
	if id == nil {
		return nil
	}
	g, err := q.GetGroup(ctx, *id)
	if errors.Is(err, models.ErrNotFound) || (err == nil && !g.Active) {
		return apperrors.NotFound(apperrors.ReasonGroupNotFound, fmt.Sprintf("group %d not found", *id))
	}
	return err
}

func normalizeFields(f *models.PackageFields) error {
	if f.ShipDate != nil {
		d, ok := models.NormalizeDate(strings.TrimSpace(*f.ShipDate))
		if !ok {
			return apperrors.Invalid("ship date must be YYYY-MM-DD, got %q", *f.ShipDate)
		}
		f.ShipDate = &d
	}
	if f.WeightLB != nil && *f.WeightLB < 0 {
		return apperrors.Invalid("weight must not be negative")
	}
	return nil
}

func packageNotFound(id uint64) *apperrors.Error {
	return apperrors.NotFound(apperrors.ReasonPackageNotFound, fmt.Sprintf("package %d not found", id))
}

func trackingNotFound(tracking string) *apperrors.Error {
	return apperrors.NotFound(apperrors.ReasonPackageNotFound, fmt.Sprintf("no package with tracking number %q", tracking))
}

func duplicateTracking(tracking string) *apperrors.Error {
	return apperrors.Validation(apperrors.ReasonDuplicateTrackingNumber,
		fmt.Sprintf("an active package with tracking number %q already exists", tracking))
}
