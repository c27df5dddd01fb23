package kafka

import (
	"context"
	"time"

	"github.com/example/ec-order-engine/internal/logger"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type MessageHandler func(ctx context.Context, key, value []byte) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer feeds one consumer group's messages to a handler and commits
// each offset after the handler returns.
type Consumer struct {
	reader  messageReader
	log     *zap.Logger
	backoff time.Duration
}

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	return newConsumer(reader, logger.Named("consumer").With(zap.String("topic", topic), zap.String("group", groupID)))
}

func newConsumer(r messageReader, log *zap.Logger) *Consumer {
	return &Consumer{reader: r, log: log, backoff: time.Second}
}

// Consume runs until ctx is done. A failing handler is logged and the
// message committed anyway, so one poison event cannot stall the group.
// Messages whose handling was cut short by shutdown are left uncommitted
// and redelivered.
func (c *Consumer) Consume(ctx context.Context, handler MessageHandler) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Error("error fetching message", zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.backoff):
			}
			continue
		}

		if err := handler(ctx, msg.Key, msg.Value); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Error("error handling message",
				zap.String("event_type", Header(msg, HeaderEventType)),
				zap.ByteString("key", msg.Key),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Warn("commit failed", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
