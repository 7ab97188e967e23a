package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/BearBump/LockerTrack/internal/broker/messages"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type writerMock struct {
	mock.Mock
}

func (m *writerMock) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

// packageEvent matches a single message on the events topic keyed by id
// whose body decodes to a PackageChanged of the given kind.
func packageEvent(id string, kind messages.ChangeKind, check func(messages.PackageChanged) bool) any {
	return mock.MatchedBy(func(msgs []kafka.Message) bool {
		if len(msgs) != 1 || msgs[0].Topic != "package.changed" || string(msgs[0].Key) != id {
			return false
		}
		var ev messages.PackageChanged
		if err := json.Unmarshal(msgs[0].Value, &ev); err != nil {
			return false
		}
		return ev.Kind == kind && (check == nil || check(ev))
	})
}

type ProducerSuite struct {
	suite.Suite
	wm   *writerMock
	logs *observer.ObservedLogs
	ep   *EventPublisher
}

func (s *ProducerSuite) SetupTest() {
	s.wm = &writerMock{}
	core, logs := observer.New(zap.WarnLevel)
	s.logs = logs
	s.ep = NewEventPublisher(newProducerWithWriter(s.wm), "package.changed", zap.New(core))
}

func (s *ProducerSuite) TestTransitionCarriesBothStatuses() {
	from, to := uint64(2), uint64(5)
	s.wm.On("WriteMessages", mock.Anything, packageEvent("88", messages.ChangeTransition, func(ev messages.PackageChanged) bool {
		return ev.TrackingNumber == "GUIA-88" && *ev.PreviousStatusID == 2 && *ev.StatusID == 5
	})).Return(nil).Once()

	s.ep.PackageChanged(context.Background(), messages.PackageChanged{
		PackageID:        88,
		TrackingNumber:   "GUIA-88",
		Kind:             messages.ChangeTransition,
		StatusID:         &to,
		PreviousStatusID: &from,
	})
	s.wm.AssertExpectations(s.T())
	s.Zero(s.logs.Len())
}

func (s *ProducerSuite) TestRetrackedPackageCarriesPreviousTracking() {
	prev := "GUIA-OLD"
	s.wm.On("WriteMessages", mock.Anything, packageEvent("9", messages.ChangeUpdated, func(ev messages.PackageChanged) bool {
		return ev.PreviousTrackingNumber != nil && *ev.PreviousTrackingNumber == "GUIA-OLD" && ev.StatusID == nil
	})).Return(nil).Once()

	s.ep.PackageChanged(context.Background(), messages.PackageChanged{
		PackageID:              9,
		TrackingNumber:         "GUIA-NEW",
		PreviousTrackingNumber: &prev,
		Kind:                   messages.ChangeUpdated,
	})
	s.wm.AssertExpectations(s.T())
}

func (s *ProducerSuite) TestBrokerFailureIsLoggedNotReturned() {
	s.wm.On("WriteMessages", mock.Anything, packageEvent("4", messages.ChangeDeactivated, nil)).
		Return(errors.New("leader not available")).Once()

	s.NotPanics(func() {
		s.ep.PackageChanged(context.Background(), messages.PackageChanged{PackageID: 4, TrackingNumber: "GUIA-4", Kind: messages.ChangeDeactivated})
	})
	s.wm.AssertExpectations(s.T())

	entries := s.logs.FilterMessage("publish package event").All()
	s.Require().Len(entries, 1)
	s.Equal("deactivated", entries[0].ContextMap()["kind"])
	s.Contains(entries[0].ContextMap()["error"], "kafka publish")
}

func TestProducerSuite(t *testing.T) {
	suite.Run(t, new(ProducerSuite))
}
