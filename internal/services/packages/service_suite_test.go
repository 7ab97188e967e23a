package packages

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/BearBump/LockerTrack/internal/apperrors"
	"github.com/BearBump/LockerTrack/internal/broker/messages"
	"github.com/BearBump/LockerTrack/internal/models"
	"github.com/BearBump/LockerTrack/internal/storage/memlocker"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

type recordedEvents struct {
	mu   sync.Mutex
	msgs []messages.PackageChanged
}

func (r *recordedEvents) PackageChanged(ctx context.Context, msg messages.PackageChanged) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recordedEvents) last() messages.PackageChanged {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.msgs[len(r.msgs)-1]
}

type PackagesSuite struct {
	suite.Suite

	ctx    context.Context
	store  *memlocker.Store
	events *recordedEvents
	svc    *Service
	clock  time.Time
	st     []*models.Status
}

func TestPackagesSuite(t *testing.T) {
	suite.Run(t, new(PackagesSuite))
}

func (s *PackagesSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = memlocker.New()
	s.events = &recordedEvents{}
	s.clock = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	s.svc = New(s.store, nil, 0, s.events, zap.NewNop(),
		WithClock(func() time.Time { return s.clock }), WithMaxBatch(5))

	s.st = nil
	for i, name := range []string{"Received", "In transit", "In customs", "Delivered"} {
		st, err := s.store.CreateStatus(s.ctx, models.StatusCreate{Name: name, DisplayOrder: i + 1})
		s.Require().NoError(err)
		s.st = append(s.st, st)
	}
}

func ptr[T any](v T) *T { return &v }

func (s *PackagesSuite) history(id uint64, includeInactive bool) []*models.HistoryEntry {
	h, err := s.store.ListPackageHistory(s.ctx, id, includeInactive)
	s.Require().NoError(err)
	return h
}

func (s *PackagesSuite) TestCreate_BackfillsUpToInitialStatus() {
	p, err := s.svc.Create(s.ctx, CreateRequest{
		TrackingNumber: " TB-1 ",
		StatusID:       &s.st[2].ID,
		ActingUser:     ptr("admin@example.com"),
	})
	s.Require().NoError(err)
	s.Equal("TB-1", p.TrackingNumber)
	s.Equal(s.st[2].ID, *p.CurrentStatusID)
	s.Equal("In customs", *p.CurrentStatus)

	hist := s.history(p.ID, false)
	s.Require().Len(hist, 3)
	for i, h := range hist {
		s.Equal(s.st[i].ID, h.StatusID)
		s.Equal("2024-05-06", h.ChangeDate)
		s.Equal("07:08:09", h.ChangeTime)
		s.Equal("admin@example.com", *h.ActingUser)
	}
	s.Equal(models.ObservationAutoRegistered, *hist[0].Observation)
	s.Equal(models.ObservationInitialState, *hist[2].Observation)

	ev := s.events.last()
	s.Equal(messages.ChangeRegistered, ev.Kind)
	s.Equal(p.ID, ev.PackageID)
}

func (s *PackagesSuite) TestCreate_WithoutStatusWritesNoHistory() {
	p, err := s.svc.Create(s.ctx, CreateRequest{TrackingNumber: "TB-1"})
	s.Require().NoError(err)
	s.Nil(p.CurrentStatusID)
	s.Empty(s.history(p.ID, true))
}

func (s *PackagesSuite) TestCreate_Validation() {
	_, err := s.svc.Create(s.ctx, CreateRequest{TrackingNumber: "TB-1"})
	s.Require().NoError(err)

	_, err = s.svc.Create(s.ctx, CreateRequest{TrackingNumber: "TB-1"})
	s.ErrorIs(err, apperrors.ErrDuplicateTrackingNumber)

	_, err = s.svc.Create(s.ctx, CreateRequest{TrackingNumber: "TB-2", StatusID: ptr(uint64(99))})
	s.ErrorIs(err, apperrors.ErrStatusNotFound)

	_, err = s.svc.Create(s.ctx, CreateRequest{TrackingNumber: "TB-2", PackageFields: models.PackageFields{GroupID: ptr(uint64(7))}})
	s.ErrorIs(err, apperrors.ErrGroupNotFound)

	_, err = s.svc.Create(s.ctx, CreateRequest{TrackingNumber: "TB-2", PackageFields: models.PackageFields{ShipDate: ptr("05/06/2024")}})
	s.Equal(apperrors.ReasonInvalidInput, apperrors.ReasonOf(err))

	_, err = s.svc.Create(s.ctx, CreateRequest{TrackingNumber: "  "})
	s.Equal(apperrors.KindValidation, apperrors.KindOf(err))

	// rejected creations leave nothing behind
	page, err := s.svc.List(s.ctx, 1, 10, nil)
	s.Require().NoError(err)
	s.Equal(1, page.Total)
}

func (s *PackagesSuite) TestCreate_RollsBackWhenBackfillFails() {
	s.store.FailOn("InsertHistoryEntry", errors.New("disk full"))

	_, err := s.svc.Create(s.ctx, CreateRequest{TrackingNumber: "TB-1", StatusID: &s.st[1].ID})
	s.Equal(apperrors.KindInternal, apperrors.KindOf(err))

	_, err = s.svc.GetByTracking(s.ctx, "TB-1")
	s.ErrorIs(err, apperrors.ErrPackageNotFound)
}

func (s *PackagesSuite) TestUpdate() {
	a, err := s.svc.Create(s.ctx, CreateRequest{TrackingNumber: "TB-1"})
	s.Require().NoError(err)
	_, err = s.svc.Create(s.ctx, CreateRequest{TrackingNumber: "TB-2"})
	s.Require().NoError(err)

	_, err = s.svc.Update(s.ctx, a.ID, models.PackagePatch{TrackingNumber: ptr("TB-2")})
	s.ErrorIs(err, apperrors.ErrDuplicateTrackingNumber)

	upd, err := s.svc.Update(s.ctx, a.ID, models.PackagePatch{
		TrackingNumber: ptr("TB-9"),
		PackageFields:  models.PackageFields{Sender: ptr("ACME"), WeightLB: ptr(2.5)},
	})
	s.Require().NoError(err)
	s.Equal("TB-9", upd.TrackingNumber)
	s.Equal("ACME", *upd.Sender)

	ev := s.events.last()
	s.Equal(messages.ChangeUpdated, ev.Kind)
	s.Require().NotNil(ev.PreviousTrackingNumber)
	s.Equal("TB-1", *ev.PreviousTrackingNumber)

	_, err = s.svc.Update(s.ctx, a.ID, models.PackagePatch{})
	s.Equal(apperrors.ReasonInvalidInput, apperrors.ReasonOf(err))
	_, err = s.svc.Update(s.ctx, 404, models.PackagePatch{PackageFields: models.PackageFields{Sender: ptr("x")}})
	s.ErrorIs(err, apperrors.ErrPackageNotFound)
	_, err = s.svc.Update(s.ctx, a.ID, models.PackagePatch{PackageFields: models.PackageFields{WeightLB: ptr(-1.0)}})
	s.Equal(apperrors.ReasonInvalidInput, apperrors.ReasonOf(err))
}

func (s *PackagesSuite) TestListPaging() {
	for _, tn := range []string{"A", "B", "C", "D", "E"} {
		_, err := s.svc.Create(s.ctx, CreateRequest{TrackingNumber: tn})
		s.Require().NoError(err)
	}

	page, err := s.svc.List(s.ctx, 2, 2, nil)
	s.Require().NoError(err)
	s.Equal(5, page.Total)
	s.Equal(3, page.TotalPages)
	s.Require().Len(page.Items, 2)
	s.Equal("C", page.Items[0].TrackingNumber)

	page, err = s.svc.List(s.ctx, 0, 500, nil)
	s.Require().NoError(err)
	s.Equal(1, page.Page)
	s.Equal(maxPageLimit, page.Limit)
}

func (s *PackagesSuite) TestGetByTracking_PrefersActive() {
	old, err := s.svc.Create(s.ctx, CreateRequest{TrackingNumber: "TB-1"})
	s.Require().NoError(err)
	s.Require().NoError(s.svc.Deactivate(s.ctx, old.ID))

	got, err := s.svc.GetByTracking(s.ctx, "TB-1")
	s.Require().NoError(err)
	s.Equal(old.ID, got.ID)
	s.False(got.Active)

	fresh, err := s.svc.Create(s.ctx, CreateRequest{TrackingNumber: "TB-1"})
	s.Require().NoError(err)
	got, err = s.svc.GetByTracking(s.ctx, "TB-1")
	s.Require().NoError(err)
	s.Equal(fresh.ID, got.ID)

	_, err = s.svc.Get(s.ctx, old.ID)
	s.ErrorIs(err, apperrors.ErrPackageNotFound)
}

func (s *PackagesSuite) TestDeactivateMultiple_IsolatesItems() {
	a, err := s.svc.Create(s.ctx, CreateRequest{TrackingNumber: "A"})
	s.Require().NoError(err)
	b, err := s.svc.Create(s.ctx, CreateRequest{TrackingNumber: "B"})
	s.Require().NoError(err)
	s.Require().NoError(s.svc.Deactivate(s.ctx, b.ID))

	res, err := s.svc.DeactivateMultiple(s.ctx, []uint64{a.ID, 404, b.ID})
	s.Require().NoError(err)
	s.Equal(1, res.UpdatedCount)
	s.Equal(1, res.SkippedCount)
	s.Require().Len(res.Errors, 1)
	s.Equal(uint64(404), res.Errors[0].ID)
	s.Equal(string(apperrors.ReasonPackageNotFound), res.Errors[0].Reason)
	s.Len(res.Details, 3)

	s.ErrorIs(s.svc.Deactivate(s.ctx, a.ID), apperrors.ErrPackageNotFound)

	_, err = s.svc.DeactivateMultiple(s.ctx, nil)
	s.Equal(apperrors.ReasonInvalidInput, apperrors.ReasonOf(err))
	_, err = s.svc.DeactivateMultiple(s.ctx, []uint64{1, 2, 3, 4, 5, 6})
	s.Equal(apperrors.ReasonInvalidInput, apperrors.ReasonOf(err))
}

func (s *PackagesSuite) TestUpsert_CreatesWithFullBackfill() {
	res, err := s.svc.Upsert(s.ctx, models.ImportRow{TrackingNumber: "TB-1", StatusID: &s.st[1].ID}, nil)
	s.Require().NoError(err)
	s.Equal(ActionCreated, res.Action)
	s.Len(s.history(res.ID, false), 2)
	s.Equal(messages.ChangeImported, s.events.last().Kind)
}

func (s *PackagesSuite) TestUpsert_ReactivatesWithoutDuplicatingHistory() {
	p, err := s.svc.Create(s.ctx, CreateRequest{TrackingNumber: "TB-1", StatusID: &s.st[1].ID})
	s.Require().NoError(err)
	s.Require().NoError(s.svc.Deactivate(s.ctx, p.ID))

	res, err := s.svc.Upsert(s.ctx, models.ImportRow{
		TrackingNumber: "TB-1",
		PackageFields:  models.PackageFields{Carrier: ptr("DHL")},
		StatusID:       &s.st[2].ID,
	}, nil)
	s.Require().NoError(err)
	s.Equal(ActionUpdated, res.Action)
	s.Equal(p.ID, res.ID)

	got, err := s.svc.Get(s.ctx, p.ID)
	s.Require().NoError(err)
	s.True(got.Active)
	s.Equal("DHL", *got.Carrier)
	s.Equal(s.st[2].ID, *got.CurrentStatusID)

	hist := s.history(p.ID, true)
	s.Require().Len(hist, 3)
	s.Equal(s.st[2].ID, hist[2].StatusID)
	s.Equal(models.ObservationInitialState, *hist[2].Observation)

	// a repeated import adds nothing
	_, err = s.svc.Upsert(s.ctx, models.ImportRow{TrackingNumber: "TB-1", StatusID: &s.st[2].ID}, nil)
	s.Require().NoError(err)
	s.Len(s.history(p.ID, true), 3)
}

func (s *PackagesSuite) TestUpsert_FailureLeavesNoPartialState() {
	s.store.FailOn("SetPackageStatus", errors.New("conn reset"))
	p, err := s.svc.Create(s.ctx, CreateRequest{TrackingNumber: "TB-1"})
	s.Require().NoError(err)

	_, err = s.svc.Upsert(s.ctx, models.ImportRow{TrackingNumber: "TB-1", StatusID: &s.st[0].ID}, nil)
	s.Equal(apperrors.KindInternal, apperrors.KindOf(err))
	s.Empty(s.history(p.ID, true))
}
