package emitter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vietddude/ecosetu/internal/core/domain"
)

// Emitter defines the interface for publishing ledger events
type Emitter interface {
	// Emit sends a single event
	Emit(ctx context.Context, event *domain.Event) error

	// EmitBatch sends multiple events
	EmitBatch(ctx context.Context, events []*domain.Event) error

	// Close closes the emitter connection
	Close() error
}

// Sink names accepted in configuration.
const (
	SinkLog   = "log"
	SinkKafka = "kafka"
	SinkNone  = "none"
)

// Config selects and configures the event sink.
type Config struct {
	Sink  string      `yaml:"sink"`
	Kafka KafkaConfig `yaml:"kafka"`
}

// New builds the emitter selected by cfg.Sink.
func New(cfg Config, logger *slog.Logger) (Emitter, error) {
	switch cfg.Sink {
	case "", SinkLog:
		return NewLogEmitter(logger), nil
	case SinkKafka:
		k, err := NewKafkaEmitter(cfg.Kafka, logger)
		if err != nil {
			return nil, err
		}
		return k, nil
	case SinkNone:
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown event sink %q", cfg.Sink)
	}
}

// Nop discards every event.
type Nop struct{}

func (Nop) Emit(context.Context, *domain.Event) error { return nil }

func (Nop) EmitBatch(context.Context, []*domain.Event) error { return nil }

func (Nop) Close() error { return nil }

// LogEmitter writes events to the structured log.
type LogEmitter struct {
	log *slog.Logger
}

func NewLogEmitter(logger *slog.Logger) *LogEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEmitter{log: logger.With("component", "emitter")}
}

func (e *LogEmitter) Emit(ctx context.Context, event *domain.Event) error {
	e.log.Info("ledger event",
		"type", event.Type,
		"transaction_id", event.TransactionID,
		"sequence", event.Sequence,
		"status", event.Status,
		"hash", event.Hash,
	)
	return nil
}

func (e *LogEmitter) EmitBatch(ctx context.Context, events []*domain.Event) error {
	for _, ev := range events {
		_ = e.Emit(ctx, ev)
	}
	return nil
}

func (e *LogEmitter) Close() error { return nil }
