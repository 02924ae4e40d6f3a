package emitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/vietddude/ecosetu/internal/core/domain"
	"github.com/vietddude/ecosetu/internal/tracking/metrics"
)

// KafkaConfig holds the broker settings of the kafka sink.
type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaEmitter publishes events keyed by transaction id, so every entry of
// one chain lands on the same partition in sequence order.
type KafkaEmitter struct {
	writer  messageWriter
	timeout time.Duration
	log     *slog.Logger
}

func NewKafkaEmitter(cfg KafkaConfig, logger *slog.Logger) (*KafkaEmitter, error) {
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, errors.New("kafka topic must not be empty")
	}
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one kafka broker is required")
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
	return newKafkaEmitterWithWriter(writer, cfg.WriteTimeout, logger), nil
}

func newKafkaEmitterWithWriter(w messageWriter, timeout time.Duration, logger *slog.Logger) *KafkaEmitter {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaEmitter{
		writer:  w,
		timeout: timeout,
		log:     logger.With("component", "kafka_emitter"),
	}
}

func (e *KafkaEmitter) Emit(ctx context.Context, event *domain.Event) error {
	return e.EmitBatch(ctx, []*domain.Event{event})
}

func (e *KafkaEmitter) EmitBatch(ctx context.Context, events []*domain.Event) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(events))
	for _, ev := range events {
		value, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(ev.TransactionID),
			Value: value,
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(ev.Type)},
			},
		})
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if err := e.writer.WriteMessages(ctx, msgs...); err != nil {
		metrics.EventsEmitted.WithLabelValues(SinkKafka, "fail").Add(float64(len(msgs)))
		return fmt.Errorf("failed to write events: %w", err)
	}
	metrics.EventsEmitted.WithLabelValues(SinkKafka, "ok").Add(float64(len(msgs)))
	e.log.Debug("events published", "count", len(msgs))
	return nil
}

func (e *KafkaEmitter) Close() error {
	return e.writer.Close()
}
