package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/IBM/sarama"

	"restaurant-orders/internal/domain"
	"restaurant-orders/internal/feed"
	"restaurant-orders/internal/logx"
)

var newSyncProducer = sarama.NewSyncProducer

// Producer publishes order change records keyed by restaurant, so the records of one
// restaurant stay ordered within a partition.
type Producer struct {
	producer sarama.SyncProducer
	topic    string
}

// NewProducer creates a Producer. It returns nil when Kafka is not configured.
func NewProducer(brokers []string, topic string) (*Producer, error) {
	if len(brokers) == 0 || strings.TrimSpace(topic) == "" {
		return nil, nil
	}
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Return.Successes = true
	cfg.Producer.Idempotent = true
	cfg.Producer.Retry.Max = 3
	cfg.Net.MaxOpenRequests = 1

	p, err := newSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}
	return &Producer{producer: p, topic: topic}, nil
}

// PublishOrder sends the current state of an order.
func (p *Producer) PublishOrder(_ context.Context, o domain.Order) error {
	body, err := json.Marshal(feed.RecordFromOrder(o))
	if err != nil {
		return fmt.Errorf("encode order %s: %w", o.ID, err)
	}
	_, _, err = p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(o.RestaurantID),
		Value: sarama.ByteEncoder(body),
	})
	if err != nil {
		return fmt.Errorf("publish order %s: %w", o.ID, err)
	}
	return nil
}

// Close closes the producer.
func (p *Producer) Close() error {
	if p == nil {
		return nil
	}
	return p.producer.Close()
}

type statusStore interface {
	SetOrderStatus(ctx context.Context, orderID string, to domain.Status, extra domain.StatusExtra) (domain.Order, error)
}

// ChangeEmitter publishes every order written through it, so stream subscribers see
// the change. A failed publish is logged; the write already happened.
type ChangeEmitter struct {
	next     statusStore
	producer *Producer
	logger   logx.Logger
}

// NewChangeEmitter wraps next. A nil producer disables publishing.
func NewChangeEmitter(next statusStore, producer *Producer, logger logx.Logger) *ChangeEmitter {
	if logger == nil {
		logger = logx.Nop()
	}
	return &ChangeEmitter{next: next, producer: producer, logger: logger}
}

// SetOrderStatus writes through next and publishes the updated order.
func (e *ChangeEmitter) SetOrderStatus(ctx context.Context, orderID string, to domain.Status, extra domain.StatusExtra) (domain.Order, error) {
	order, err := e.next.SetOrderStatus(ctx, orderID, to, extra)
	if err != nil || e.producer == nil {
		return order, err
	}
	if pubErr := e.producer.PublishOrder(ctx, order); pubErr != nil {
		e.logger.Error("order change not published", logx.OrderID(order.ID), logx.Err(pubErr))
	}
	return order, nil
}
