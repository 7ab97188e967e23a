package kafka

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/BearBump/LockerTrack/internal/broker/messages"
	"go.uber.org/zap"
)

type publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// EventPublisher emits PackageChanged on the package events topic. Publishing
// is best effort: failures are logged and never surface to the caller, the
// database stays the source of truth.
type EventPublisher struct {
	p     publisher
	topic string
	log   *zap.Logger
}

func NewEventPublisher(p publisher, topic string, log *zap.Logger) *EventPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &EventPublisher{p: p, topic: topic, log: log}
}

func (e *EventPublisher) PackageChanged(ctx context.Context, msg messages.PackageChanged) {
	b, err := json.Marshal(msg)
	if err != nil {
		e.log.Error("marshal package event", zap.Uint64("package_id", msg.PackageID), zap.Error(err))
		return
	}
	key := []byte(strconv.FormatUint(msg.PackageID, 10))
	if err := e.p.Publish(ctx, e.topic, key, b); err != nil {
		e.log.Warn("publish package event",
			zap.Uint64("package_id", msg.PackageID),
			zap.String("kind", string(msg.Kind)),
			zap.Error(err),
		)
	}
}
