// Package events announces captured payments to downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/xxomega77xx/googlepay/internal/paypal"
)

const (
	DefaultTopic             = "payments-captured"
	EventTypePaymentCaptured = "PaymentCaptured"
)

type PaymentCapturedEvent struct {
	EventID       string        `json:"event_id"`
	OrderID       string        `json:"order_id"`
	OrderStatus   string        `json:"order_status"`
	CaptureID     string        `json:"capture_id,omitempty"`
	CaptureStatus string        `json:"capture_status,omitempty"`
	Amount        *paypal.Money `json:"amount,omitempty"`
	CapturedAt    time.Time     `json:"captured_at"`
}

// NewPaymentCapturedEvent builds the event for a capture result.
func NewPaymentCapturedEvent(result *paypal.CaptureResult, now time.Time) PaymentCapturedEvent {
	ev := PaymentCapturedEvent{
		EventID:     uuid.NewString(),
		OrderID:     result.ID,
		OrderStatus: result.Status.String(),
		CapturedAt:  now.UTC(),
	}
	if c, ok := result.FirstCapture(); ok {
		ev.CaptureID = c.ID
		ev.CaptureStatus = c.Status
		ev.Amount = c.Amount
	}
	return ev
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher implements paypal.CaptureNotifier on a Kafka topic, keyed
// by order id.
type KafkaPublisher struct {
	writer  messageWriter
	timeout time.Duration
	now     func() time.Time
}

func NewKafkaPublisher(topic string, brokers ...string) *KafkaPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return newKafkaPublisher(w)
}

func newKafkaPublisher(w messageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w, timeout: 5 * time.Second, now: time.Now}
}

func (p *KafkaPublisher) PaymentCaptured(ctx context.Context, result *paypal.CaptureResult) error {
	ev := NewPaymentCapturedEvent(result, p.now())
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal payment captured event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(ev.OrderID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventTypePaymentCaptured)},
			{Key: "event_id", Value: []byte(ev.EventID)},
		},
	}

	// the write outlives the request
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	if err := p.writer.WriteMessages(writeCtx, msg); err != nil {
		return fmt.Errorf("publish payment captured event: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// LogPublisher implements paypal.CaptureNotifier by logging the event. It is
// used when no broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) PaymentCaptured(ctx context.Context, result *paypal.CaptureResult) error {
	ev := NewPaymentCapturedEvent(result, time.Now())
	p.logger.InfoContext(ctx, "payment captured event",
		slog.String("event_id", ev.EventID),
		slog.String("order_id", ev.OrderID),
		slog.String("capture_id", ev.CaptureID),
		slog.String("capture_status", ev.CaptureStatus))
	return nil
}
