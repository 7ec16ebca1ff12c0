// Package events publishes laboratory lifecycle events to kafka. Delivery
// is fire and forget, a broker outage never fails the business operation.
package events

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/acme-health/labor/core/logger"
	"github.com/acme-health/labor/labor"
)

// Operation is the lifecycle operation an event reports.
type Operation string

// all published lifecycle operations
const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// Event is the wire format of a lifecycle event.
type Event struct {
	Resource  string          `json:"resource"`
	Operation Operation       `json:"operation"`
	LaborID   uuid.UUID       `json:"labor_id"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Publisher writes lifecycle events to a kafka topic. The zero value and
// a nil publisher are no-ops, so development setups can run without a
// broker.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher creates a publisher for the given brokers and topic.
// Without brokers it returns nil, which is a valid no-op publisher.
func NewPublisher(brokers []string, topic string) *Publisher {
	if len(brokers) == 0 {
		return nil
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		Async:                  true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Default().WithError(err).Warnln("cannot publish lifecycle event")
			}
		},
	}
	return &Publisher{writer: writer}
}

// Notify publishes a lifecycle event for the laboratory. Errors are
// logged, never returned.
func (p *Publisher) Notify(ctx context.Context, operation Operation, l *labor.Labor) {
	if p == nil || p.writer == nil {
		return
	}
	payload, err := json.Marshal(l)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Warnln("cannot marshal lifecycle event")
		return
	}
	event := Event{
		Resource:  "labor",
		Operation: operation,
		LaborID:   l.ID,
		Payload:   payload,
	}
	value, err := json.Marshal(event)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Warnln("cannot marshal lifecycle event")
		return
	}

	writeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = p.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(l.ID.String()),
		Value: value,
	})
	if err != nil {
		logger.FromContext(ctx).WithError(err).Warnln("cannot publish lifecycle event")
	}
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
