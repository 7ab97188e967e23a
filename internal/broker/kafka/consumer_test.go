package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/BearBump/LockerTrack/internal/broker/messages"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeReader struct {
	msgs      []kafka.Message
	err       error
	i         int
	committed []kafka.Message
	commitErr error
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if r.i < len(r.msgs) {
		m := r.msgs[r.i]
		r.i++
		return m, nil
	}
	if r.err != nil {
		return kafka.Message{}, r.err
	}
	return kafka.Message{}, errors.New("eof")
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	if r.commitErr != nil {
		return r.commitErr
	}
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error { return nil }

// published runs events through EventPublisher and returns what reached the
// topic, with offsets assigned the way a single partition would.
func published(t *testing.T, events ...messages.PackageChanged) []kafka.Message {
	t.Helper()
	var out []kafka.Message
	for i, ev := range events {
		fw := &fakeWriter{}
		NewEventPublisher(newProducerWithWriter(fw), "package-events", zap.NewNop()).PackageChanged(context.Background(), ev)
		require.Len(t, fw.last, 1)
		m := fw.last[0]
		m.Offset = int64(i)
		out = append(out, m)
	}
	return out
}

func TestConsumer_DeliversPublishedPackageEventsInOrder(t *testing.T) {
	prev := "GUIA-7-OLD"
	status := uint64(4)
	fr := &fakeReader{
		msgs: published(t,
			messages.PackageChanged{PackageID: 7, TrackingNumber: "GUIA-7", Kind: messages.ChangeTransition, StatusID: &status, OccurredAt: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)},
			messages.PackageChanged{PackageID: 7, TrackingNumber: "GUIA-7", PreviousTrackingNumber: &prev, Kind: messages.ChangeUpdated},
			messages.PackageChanged{PackageID: 7, TrackingNumber: "GUIA-7", Kind: messages.ChangeDeactivated},
		),
		err: context.Canceled,
	}
	c := newConsumerWithReader(fr)

	var got []messages.PackageChanged
	err := c.Consume(context.Background(), func(key, value []byte) error {
		require.Equal(t, []byte("7"), key)
		var ev messages.PackageChanged
		require.NoError(t, json.Unmarshal(value, &ev))
		got = append(got, ev)
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Contains(t, err.Error(), "fetch package event")

	require.Len(t, got, 3)
	require.Equal(t, messages.ChangeTransition, got[0].Kind)
	require.Equal(t, uint64(4), *got[0].StatusID)
	require.Equal(t, "GUIA-7-OLD", *got[1].PreviousTrackingNumber)
	require.Equal(t, messages.ChangeDeactivated, got[2].Kind)
	require.Len(t, fr.committed, 3)
}

func TestConsumer_EmptyValueCommittedWithoutHandler(t *testing.T) {
	fr := &fakeReader{
		msgs: append([]kafka.Message{{Key: []byte("3")}},
			published(t, messages.PackageChanged{PackageID: 3, TrackingNumber: "GUIA-3", Kind: messages.ChangeRegistered})...),
	}
	c := newConsumerWithReader(fr)

	calls := 0
	err := c.Consume(context.Background(), func(key, value []byte) error {
		calls++
		return nil
	})
	require.Error(t, err)
	require.Equal(t, 1, calls)
	require.Len(t, fr.committed, 2)
}

func TestConsumer_HandlerErrorLeavesEventUncommitted(t *testing.T) {
	msgs := published(t, messages.PackageChanged{PackageID: 12, TrackingNumber: "GUIA-12", Kind: messages.ChangeReversal})
	msgs[0].Partition = 2
	msgs[0].Offset = 41
	fr := &fakeReader{msgs: msgs}
	c := newConsumerWithReader(fr)

	want := errors.New("redis down")
	err := c.Consume(context.Background(), func(key, value []byte) error { return want })
	require.ErrorIs(t, err, want)
	require.Contains(t, err.Error(), "package event 12 at 2/41")
	require.Empty(t, fr.committed)
}

func TestConsumer_CommitErrorWrapped(t *testing.T) {
	fr := &fakeReader{
		msgs:      published(t, messages.PackageChanged{PackageID: 1, TrackingNumber: "GUIA-1", Kind: messages.ChangeImported}),
		commitErr: errors.New("coordinator gone"),
	}
	c := newConsumerWithReader(fr)

	err := c.Consume(context.Background(), func(key, value []byte) error { return nil })
	require.Error(t, err)
	require.Contains(t, err.Error(), "commit package event")
}

func TestNewConsumer_Close(t *testing.T) {
	c := NewConsumer([]string{"localhost:0"}, "package-events", "lockertrack-projector")
	require.NotNil(t, c)
	require.NoError(t, c.Close())
}
