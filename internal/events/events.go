// Package events publishes order lifecycle events after commit.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/d60-Lab/shipdesk/config"
	"github.com/d60-Lab/shipdesk/pkg/logger"
)

// Event types
const (
	TypeOrderCreated    = "order.created"
	TypeOrderDispatched = "order.dispatched"
	TypeOrdersDeleted   = "orders.deleted"
)

// Event 订单事件
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	TenantID   int64     `json:"tenant_id"`
	OrderIDs   []int64   `json:"order_ids"`
	Reference  string    `json:"reference_number,omitempty"`
	Waybill    string    `json:"waybill_number,omitempty"`
	Status     string    `json:"status,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// New 填充 id 与时间
func New(eventType string, tenantID int64, orderIDs ...int64) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		TenantID:   tenantID,
		OrderIDs:   orderIDs,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher 事件发布
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop 未启用 Kafka 时使用
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// Kafka 同步生产者，按租户分区保证同一租户内有序
type Kafka struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafka 连接 broker
func NewKafka(cfg config.KafkaConfig) (*Kafka, error) {
	sc := sarama.NewConfig()
	sc.Producer.Return.Successes = true
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Retry.Max = 3
	sc.Producer.Timeout = 5 * time.Second

	producer, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return NewKafkaWithProducer(producer, cfg.Topic), nil
}

func NewKafkaWithProducer(producer sarama.SyncProducer, topic string) *Kafka {
	return &Kafka{producer: producer, topic: topic}
}

func (k *Kafka) Publish(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(strconv.FormatInt(e.TenantID, 10)),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(e.Type)},
		},
	}
	partition, offset, err := k.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	logger.Debug("event published",
		zap.String("type", e.Type),
		zap.Int64("tenant_id", e.TenantID),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset))
	return nil
}

func (k *Kafka) Close() error {
	return k.producer.Close()
}

// FromConfig 根据配置选择 Kafka 或 Nop
func FromConfig(cfg config.KafkaConfig) (Publisher, error) {
	if !cfg.Enabled {
		return Nop{}, nil
	}
	return NewKafka(cfg)
}
