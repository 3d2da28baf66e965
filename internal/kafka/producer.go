package kafka

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"gardenplots/internal/config"
	"gardenplots/internal/models"

	"github.com/segmentio/kafka-go"
)

const (
	HeaderEventType = "event_type"
	HeaderOutboxID  = "outbox_id"
)

// Writer is the subset of *kafka.Writer the producer uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer streams outbox tasks to a single topic keyed by aggregate id,
// so all events of one booking or garden stay ordered within a partition.
type Producer struct {
	writer Writer
}

func NewProducer(cfg config.KafkaConfig) *Producer {
	return NewProducerWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	})
}

func NewProducerWithWriter(w Writer) *Producer {
	return &Producer{writer: w}
}

// Publish implements worker.Publisher.
func (p *Producer) Publish(ctx context.Context, task *models.OutboxTask) error {
	msg := kafka.Message{
		Key:   []byte(task.AggregateID),
		Value: []byte(task.Payload),
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(task.EventType)},
			{Key: HeaderOutboxID, Value: []byte(strconv.FormatInt(task.ID, 10))},
		},
		Time: task.CreatedAt,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write %s to kafka: %w", task.EventType, err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
