package statuses

import (
	"context"
	"fmt"
	"strings"

	"github.com/BearBump/LockerTrack/internal/apperrors"
	"github.com/BearBump/LockerTrack/internal/models"
	"github.com/pkg/errors"
)

type Repository interface {
	ListActiveStatuses(ctx context.Context) ([]*models.Status, error)
	GetStatus(ctx context.Context, id uint64) (*models.Status, error)
	GetActiveStatusByName(ctx context.Context, name string) (*models.Status, error)
	CreateStatus(ctx context.Context, in models.StatusCreate) (*models.Status, error)
	UpdateStatus(ctx context.Context, id uint64, patch models.StatusPatch) (*models.Status, error)
	DeactivateStatus(ctx context.Context, id uint64) error
}

// Service manages the status catalog. Deactivating a status never touches
// packages or history already pointing at it.
type Service struct {
	repo Repository
}

func New(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context) ([]*models.Status, error) {
	out, err := s.repo.ListActiveStatuses(ctx)
	if err != nil {
		return nil, apperrors.Internal(err, "list statuses")
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id uint64) (*models.Status, error) {
	st, err := s.repo.GetStatus(ctx, id)
	if errors.Is(err, models.ErrNotFound) || (err == nil && !st.Active) {
		return nil, statusNotFound(id)
	}
	if err != nil {
		return nil, apperrors.Internal(err, "get status")
	}
	return st, nil
}

func (s *Service) GetByName(ctx context.Context, name string) (*models.Status, error) {
	st, err := s.repo.GetActiveStatusByName(ctx, strings.TrimSpace(name))
	if errors.Is(err, models.ErrNotFound) {
		return nil, apperrors.NotFound(apperrors.ReasonStatusNotFound, fmt.Sprintf("status %q not found", name))
	}
	if err != nil {
		return nil, apperrors.Internal(err, "get status by name")
	}
	return st, nil
}

func (s *Service) Create(ctx context.Context, in models.StatusCreate) (*models.Status, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Color = strings.TrimSpace(in.Color)
	if in.Name == "" {
		return nil, apperrors.Invalid("name is required")
	}
	if err := s.ensureNameFree(ctx, in.Name, 0); err != nil {
		return nil, err
	}

	st, err := s.repo.CreateStatus(ctx, in)
	if errors.Is(err, models.ErrDuplicate) {
		return nil, duplicateName(in.Name)
	}
	if err != nil {
		return nil, apperrors.Internal(err, "create status")
	}
	return st, nil
}

func (s *Service) Update(ctx context.Context, id uint64, patch models.StatusPatch) (*models.Status, error) {
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
	if patch.Color != nil {
		color := strings.TrimSpace(*patch.Color)
		patch.Color = &color
	}

	st, err := s.repo.UpdateStatus(ctx, id, patch)
	switch {
	case errors.Is(err, models.ErrNotFound):
		return nil, statusNotFound(id)
	case errors.Is(err, models.ErrDuplicate) && patch.Name != nil:
		return nil, duplicateName(*patch.Name)
	case err != nil:
		return nil, apperrors.Internal(err, "update status")
	}
	return st, nil
}

func (s *Service) Deactivate(ctx context.Context, id uint64) error {
	err := s.repo.DeactivateStatus(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		return statusNotFound(id)
	}
	if err != nil {
		return apperrors.Internal(err, "deactivate status")
	}
	return nil
}

// ensureNameFree fails when another active status already uses name.
func (s *Service) ensureNameFree(ctx context.Context, name string, self uint64) error {
	other, err := s.repo.GetActiveStatusByName(ctx, name)
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	if err != nil {
		return apperrors.Internal(err, "check status name")
	}
	if other.ID != self {
		return duplicateName(name)
	}
	return nil
}

func statusNotFound(id uint64) error {
	return apperrors.NotFound(apperrors.ReasonStatusNotFound, fmt.Sprintf("status %d not found", id))
}

func duplicateName(name string) error {
	return apperrors.Validation(apperrors.ReasonDuplicateName, fmt.Sprintf("an active status named %q already exists", name))
}
