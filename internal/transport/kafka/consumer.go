// Package kafka moves order change records between Kafka and the order feed.
package kafka

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/IBM/sarama"

	"restaurant-orders/internal/apperr"
	"restaurant-orders/internal/feed"
	"restaurant-orders/internal/logx"
)

// HandleFunc processes a single order record from Kafka
type HandleFunc func(context.Context, feed.Record) error

// ErrorFunc receives consumer-level failures.
type ErrorFunc func(error)

var newConsumerGroup = sarama.NewConsumerGroup

// Consumer wraps a Sarama consumer group and dispatches records to a handler
type Consumer struct {
	logger  logx.Logger
	group   sarama.ConsumerGroup
	topic   string
	handler HandleFunc
	onError ErrorFunc
}

// NewConsumer creates a new Kafka consumer. It returns nil when Kafka is not configured.
func NewConsumer(logger logx.Logger, brokers []string, groupID, topic string, h HandleFunc, onError ErrorFunc) (*Consumer, error) {
	if len(brokers) == 0 || strings.TrimSpace(topic) == "" || strings.TrimSpace(groupID) == "" {
		return nil, nil
	}
	if logger == nil {
		logger = logx.Nop()
	}
	if onError == nil {
		onError = func(error) {}
	}

	cfg := sarama.NewConfig()
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	cfg.Consumer.Return.Errors = true

	group, err := newConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return nil, err
	}

	return &Consumer{
		logger:  logger,
		group:   group,
		topic:   topic,
		handler: h,
		onError: onError,
	}, nil
}

// Run consumes until ctx is done.
func (c *Consumer) Run(ctx context.Context) error {
	if c == nil {
		return nil
	}

	go c.forwardErrors(ctx)

	h := &groupHandler{c: c}
	for {
		if err := c.group.Consume(ctx, []string{c.topic}, h); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error("kafka consume error", logx.Err(err))
			c.onError(err)
			if !sleepWithContext(ctx, time.Second) {
				return ctx.Err()
			}
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// Close closes the consumer group.
func (c *Consumer) Close() error {
	if c == nil {
		return nil
	}
	return c.group.Close()
}

func (c *Consumer) forwardErrors(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-c.group.Errors():
			if !ok {
				return
			}
			c.logger.Warn("kafka consumer error", logx.Err(err))
			c.onError(err)
		}
	}
}

type groupHandler struct{ c *Consumer }

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	log := h.c.logger
	for msg := range claim.Messages() {
		var rec feed.Record
		if err := json.Unmarshal(msg.Value, &rec); err != nil {
			log.Warn("kafka bad json", logx.Int("partition", int(msg.Partition)), logx.Err(err))
			sess.MarkMessage(msg, "")
			continue
		}
		if strings.TrimSpace(rec.ID) == "" {
			log.Warn("kafka empty order id", logx.Int("partition", int(msg.Partition)))
			sess.MarkMessage(msg, "")
			continue
		}

		if err := h.c.handler(sess.Context(), rec); err != nil {
			if apperr.IsPermanent(err) {
				log.Warn("kafka handle failed, skipping message", logx.OrderID(rec.ID), logx.Err(err))
				sess.MarkMessage(msg, "")
				continue
			}
			log.Error("kafka handle failed, retrying", logx.OrderID(rec.ID), logx.Err(err))
			h.c.onError(err)
			return err
		}

		sess.MarkMessage(msg, "")
	}
	return nil
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
