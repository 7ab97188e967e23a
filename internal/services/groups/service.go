package groups

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BearBump/LockerTrack/internal/apperrors"
	"github.com/BearBump/LockerTrack/internal/broker/messages"
	"github.com/BearBump/LockerTrack/internal/models"
	"github.com/BearBump/LockerTrack/internal/storage"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type EventSink interface {
	PackageChanged(ctx context.Context, msg messages.PackageChanged)
}

type Service struct {
	store  storage.Store
	events EventSink
	log    *zap.Logger
}

func New(store storage.Store, events EventSink, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, events: events, log: log}
}

type DeactivateResult struct {
	GroupID             uint64 `json:"group_id"`
	PackagesDeactivated int    `json:"packages_deactivated"`
}

func (s *Service) List(ctx context.Context) ([]*models.Group, error) {
	out, err := s.store.ListActiveGroups(ctx)
	if err != nil {
		return nil, apperrors.Internal(err, "list groups")
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id uint64) (*models.Group, error) {
	g, err := s.store.GetGroup(ctx, id)
	if errors.Is(err, models.ErrNotFound) || (err == nil && !g.Active) {
		return nil, groupNotFound(id)
	}
	if err != nil {
		return nil, apperrors.Internal(err, "get group")
	}
	return g, nil
}

func (s *Service) Create(ctx context.Context, in models.GroupCreate) (*models.Group, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, apperrors.Invalid("name is required")
	}
	if err := normalizeDates(&in.StartDate, &in.EndDate); err != nil {
		return nil, err
	}
	if err := s.ensureNameFree(ctx, in.Name, 0); err != nil {
		return nil, err
	}

	g, err := s.store.CreateGroup(ctx, in)
	if errors.Is(err, models.ErrDuplicate) {
		return nil, duplicateName(in.Name)
	}
	if err != nil {
		return nil, apperrors.Internal(err, "create group")
	}
	return g, nil
}

func (s *Service) Update(ctx context.Context, id uint64, patch models.GroupPatch) (*models.Group, error) {
	if patch.Empty() {
		return nil, apperrors.Invalid("no fields to update")
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, apperrors.Invalid("name must not be empty")
		}
		patch.Name = &name
		if err := s.ensureNameFree(ctx, name, id); err != nil {
			return nil, err
		}
	}
	if err := normalizeDates(&patch.StartDate, &patch.EndDate); err != nil {
		return nil, err
	}

	g, err := s.store.UpdateGroup(ctx, id, patch)
	switch {
	case errors.Is(err, models.ErrNotFound):
		return nil, groupNotFound(id)
	case errors.Is(err, models.ErrDuplicate) && patch.Name != nil:
		return nil, duplicateName(*patch.Name)
	case err != nil:
		return nil, apperrors.Internal(err, "update group")
	}
	return g, nil
}

// Deactivate retires a group together with all of its active packages.
func (s *Service) Deactivate(ctx context.Context, id uint64) (*DeactivateResult, error) {
	var pkgs []*models.Package
	err := s.store.RunInTx(ctx, func(ctx context.Context, q storage.Querier) error {
		if err := q.DeactivateGroup(ctx, id); err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return groupNotFound(id)
			}
			return err
		}
		var err error
		pkgs, err = q.DeactivateGroupPackages(ctx, id)
		return err
	})
	if err != nil {
		return nil, apperrors.Internal(err, "deactivate group")
	}

	s.log.Info("group deactivated", zap.Uint64("group_id", id), zap.Int("packages", len(pkgs)))
	if s.events != nil {
		now := time.Now().UTC()
		for _, p := range pkgs {
			s.events.PackageChanged(ctx, messages.PackageChanged{
				PackageID:      p.ID,
				TrackingNumber: p.TrackingNumber,
				Kind:           messages.ChangeDeactivated,
				StatusID:       p.CurrentStatusID,
				OccurredAt:     now,
			})
		}
	}
	return &DeactivateResult{GroupID: id, PackagesDeactivated: len(pkgs)}, nil
}

func (s *Service) ensureNameFree(ctx context.Context, name string, self uint64) error {
	other, err := s.store.GetActiveGroupByName(ctx, name)
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	if err != nil {
		return apperrors.Internal(err, "check group name")
	}
	if other.ID != self {
		return duplicateName(name)
	}
	return nil
}

func normalizeDates(dates ...**string) error {
	for _, d := range dates {
		if *d == nil {
			continue
		}
		v, ok := models.NormalizeDate(strings.TrimSpace(**d))
		if !ok {
			return apperrors.Invalid("dates must be YYYY-MM-DD, got %q", **d)
		}
		*d = &v
	}
	return nil
}

func groupNotFound(id uint64) error {
	return apperrors.NotFound(apperrors.ReasonGroupNotFound, fmt.Sprintf("group %d not found", id))
}

func duplicateName(name string) error {
	return apperrors.Validation(apperrors.ReasonDuplicateName, fmt.Sprintf("an active group named %q already exists", name))
}
