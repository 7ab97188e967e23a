package statuses

import (
	"context"
	"errors"
	"testing"

	"github.com/BearBump/LockerTrack/internal/apperrors"
	"github.com/BearBump/LockerTrack/internal/models"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	statusesmocks "github.com/BearBump/LockerTrack/internal/services/statuses/mocks"
)

type ServiceSuite struct {
	suite.Suite

	repo *statusesmocks.MockRepository
	svc  *Service
}

func (s *ServiceSuite) SetupTest() {
	s.repo = &statusesmocks.MockRepository{}
	s.svc = New(s.repo)
}

func (s *ServiceSuite) TestCreate_TrimsAndChecksActiveNames() {
	s.repo.On("GetActiveStatusByName", mock.Anything, "Received").
		Return((*models.Status)(nil), models.ErrNotFound).
		Once()
	s.repo.On("CreateStatus", mock.Anything, models.StatusCreate{Name: "Received", DisplayOrder: 1, Color: "#fff"}).
		Return(&models.Status{ID: 1, Name: "Received", DisplayOrder: 1, Color: "#fff", Active: true}, nil).
		Once()

	st, err := s.svc.Create(context.Background(), models.StatusCreate{Name: "  Received ", DisplayOrder: 1, Color: "#fff"})
	s.Require().NoError(err)
	s.Require().Equal(uint64(1), st.ID)
	s.repo.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestCreate_DuplicateActiveName() {
	s.repo.On("GetActiveStatusByName", mock.Anything, "Received").
		Return(&models.Status{ID: 4, Name: "Received", Active: true}, nil).
		Once()

	_, err := s.svc.Create(context.Background(), models.StatusCreate{Name: "Received"})
	s.Require().ErrorIs(err, apperrors.ErrDuplicateName)
	s.repo.AssertNotCalled(s.T(), "CreateStatus", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestCreate_IndexRaceMapsToDuplicate() {
	s.repo.On("GetActiveStatusByName", mock.Anything, "Received").
		Return((*models.Status)(nil), models.ErrNotFound).
		Once()
	s.repo.On("CreateStatus", mock.Anything, mock.Anything).
		Return((*models.Status)(nil), models.ErrDuplicate).
		Once()

	_, err := s.svc.Create(context.Background(), models.StatusCreate{Name: "Received"})
	s.Require().ErrorIs(err, apperrors.ErrDuplicateName)
}

func (s *ServiceSuite) TestCreate_Validation() {
	_, err := s.svc.Create(context.Background(), models.StatusCreate{Name: "   "})
	s.Require().Equal(apperrors.KindValidation, apperrors.KindOf(err))
	s.repo.AssertNotCalled(s.T(), "GetActiveStatusByName", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestUpdate_RenameToOwnNameIsAllowed() {
	name := "Received"
	s.repo.On("GetActiveStatusByName", mock.Anything, "Received").
		Return(&models.Status{ID: 3, Name: "Received", Active: true}, nil).
		Once()
	s.repo.On("UpdateStatus", mock.Anything, uint64(3), models.StatusPatch{Name: &name}).
		Return(&models.Status{ID: 3, Name: "Received", Active: true}, nil).
		Once()

	_, err := s.svc.Update(context.Background(), 3, models.StatusPatch{Name: &name})
	s.Require().NoError(err)
	s.repo.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestUpdate_Errors() {
	_, err := s.svc.Update(context.Background(), 3, models.StatusPatch{})
	s.Require().Equal(apperrors.ReasonInvalidInput, apperrors.ReasonOf(err))

	order := 9
	s.repo.On("UpdateStatus", mock.Anything, uint64(404), mock.Anything).
		Return((*models.Status)(nil), models.ErrNotFound).
		Once()
	_, err = s.svc.Update(context.Background(), 404, models.StatusPatch{DisplayOrder: &order})
	s.Require().ErrorIs(err, apperrors.ErrStatusNotFound)
}

func (s *ServiceSuite) TestGet_InactiveIsNotFound() {
	s.repo.On("GetStatus", mock.Anything, uint64(2)).
		Return(&models.Status{ID: 2, Active: false}, nil).
		Once()
	_, err := s.svc.Get(context.Background(), 2)
	s.Require().ErrorIs(err, apperrors.ErrStatusNotFound)
}

func (s *ServiceSuite) TestList_StorageErrorIsInternal() {
	s.repo.On("ListActiveStatuses", mock.Anything).
		Return([]*models.Status(nil), errors.New("conn refused")).
		Once()
	_, err := s.svc.List(context.Background())
	s.Require().Equal(apperrors.KindInternal, apperrors.KindOf(err))
}

func (s *ServiceSuite) TestDeactivate() {
	s.repo.On("DeactivateStatus", mock.Anything, uint64(1)).Return(nil).Once()
	s.repo.On("DeactivateStatus", mock.Anything, uint64(2)).Return(models.ErrNotFound).Once()

	s.Require().NoError(s.svc.Deactivate(context.Background(), 1))
	s.Require().ErrorIs(s.svc.Deactivate(context.Background(), 2), apperrors.ErrStatusNotFound)
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}
