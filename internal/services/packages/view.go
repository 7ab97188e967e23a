package packages

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/BearBump/LockerTrack/internal/apperrors"
	"github.com/BearBump/LockerTrack/internal/models"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func viewKey(tracking string) string {
	return "tracking:view:" + tracking
}

// TrackingView is the public lookup. Views are cached for viewTTL; cache
// failures fall back to storage.
func (s *Service) TrackingView(ctx context.Context, tracking string) (*models.TrackingView, error) {
	tracking = strings.TrimSpace(tracking)
	if tracking == "" {
		return nil, apperrors.Invalid("tracking number is required")
	}

	if s.cacheEnabled() {
		b, ok, err := s.cache.Get(ctx, viewKey(tracking))
		if err != nil {
			s.log.Warn("tracking view cache get", zap.String("tracking_number", tracking), zap.Error(err))
		}
		if ok {
			var v models.TrackingView
			if json.Unmarshal(b, &v) == nil {
				return &v, nil
			}
		}
	}

	v, err := s.buildView(ctx, tracking)
	if err != nil {
		return nil, err
	}
	s.storeView(ctx, v)
	return v, nil
}

// RefreshTrackingView rebuilds the cached view, or evicts it when the
// tracking number no longer has an active package.
func (s *Service) RefreshTrackingView(ctx context.Context, tracking string) error {
	if !s.cacheEnabled() {
		return nil
	}
	v, err := s.buildView(ctx, tracking)
	if errors.Is(err, apperrors.ErrPackageNotFound) {
		return s.cache.Del(ctx, viewKey(tracking))
	}
	if err != nil {
		return err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "marshal tracking view")
	}
	return s.cache.Set(ctx, viewKey(tracking), b, s.viewTTL)
}

func (s *Service) EvictTrackingView(ctx context.Context, tracking string) error {
	if !s.cacheEnabled() {
		return nil
	}
	return s.cache.Del(ctx, viewKey(tracking))
}

func (s *Service) buildView(ctx context.Context, tracking string) (*models.TrackingView, error) {
	p, err := s.store.FindPackageByTracking(ctx, tracking, true)
	if errors.Is(err, models.ErrNotFound) {
		return nil, trackingNotFound(tracking)
	}
	if err != nil {
		return nil, apperrors.Internal(err, "get package by tracking")
	}
	hist, err := s.store.ListPackageHistory(ctx, p.ID, false)
	if err != nil {
		return nil, apperrors.Internal(err, "list package history")
	}
	sort.SliceStable(hist, func(i, j int) bool {
		a, b := hist[i], hist[j]
		if a.ChangeDate != b.ChangeDate {
			return a.ChangeDate < b.ChangeDate
		}
		if a.ChangeTime != b.ChangeTime {
			return a.ChangeTime < b.ChangeTime
		}
		return a.ID < b.ID
	})

	v := &models.TrackingView{
		PackageID:        p.ID,
		TrackingNumber:   p.TrackingNumber,
		Service:          p.Service,
		Carrier:          p.Carrier,
		Sender:           p.Sender,
		WeightLB:         p.WeightLB,
		ShipDate:         p.ShipDate,
		CarrierReference: p.CarrierReference,
		CurrentStatus:    p.CurrentStatus,
		History:          make([]models.TrackingViewStep, 0, len(hist)),
	}
	for _, h := range hist {
		v.History = append(v.History, models.TrackingViewStep{
			Status:      h.StatusName,
			Color:       h.StatusColor,
			Observation: h.Observation,
			ChangeDate:  h.ChangeDate,
			ChangeTime:  h.ChangeTime,
		})
	}
	return v, nil
}

func (s *Service) storeView(ctx context.Context, v *models.TrackingView) {
	if !s.cacheEnabled() {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, viewKey(v.TrackingNumber), b, s.viewTTL); err != nil {
		s.log.Warn("tracking view cache set", zap.String("tracking_number", v.TrackingNumber), zap.Error(err))
	}
}

func (s *Service) evictViews(ctx context.Context, trackings ...string) {
	if !s.cacheEnabled() {
		return
	}
	keys := make([]string, 0, len(trackings))
	for _, t := range trackings {
		keys = append(keys, viewKey(t))
	}
	if err := s.cache.Del(ctx, keys...); err != nil {
		s.log.Warn("tracking view cache evict", zap.Strings("keys", keys), zap.Error(err))
	}
}

func (s *Service) cacheEnabled() bool {
	return s.cache != nil && s.viewTTL > 0
}
