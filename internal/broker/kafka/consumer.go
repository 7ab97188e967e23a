package kafka

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads the package events topic. Messages are keyed by package id,
// so one package's events arrive in order on a single partition.
type Consumer struct {
	r messageReader
}

// NewConsumer joins groupID on topic. A group with no committed offset starts
// at the tail: tracking views older than the cache TTL have expired anyway.
func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	cfg := kafka.ReaderConfig{
		Brokers:           brokers,
		GroupID:           groupID,
		StartOffset:       kafka.LastOffset,
		MaxWait:           time.Second,
		HeartbeatInterval: 3 * time.Second,
		SessionTimeout:    30 * time.Second,
	}
	if groupID != "" {
		cfg.GroupTopics = []string{topic}
	} else {
		cfg.Topic = topic
	}
	return &Consumer{r: kafka.NewReader(cfg)}
}

func newConsumerWithReader(r messageReader) *Consumer {
	return &Consumer{r: r}
}

func (c *Consumer) Close() error {
	return c.r.Close()
}

// Consume hands every package event to handler and commits it once handler
// returns nil. Empty values carry no package change and are committed
// without reaching handler. A handler error stops consumption with the
// event left uncommitted.
func (c *Consumer) Consume(ctx context.Context, handler func(key, value []byte) error) error {
	for {
		msg, err := c.r.FetchMessage(ctx)
		if err != nil {
			return errors.Wrap(err, "fetch package event")
		}
		if len(msg.Value) > 0 {
			if err := handler(msg.Key, msg.Value); err != nil {
				return errors.Wrapf(err, "package event %s at %d/%d", msg.Key, msg.Partition, msg.Offset)
			}
		}
		if err := c.r.CommitMessages(ctx, msg); err != nil {
			return errors.Wrap(err, "commit package event")
		}
	}
}
