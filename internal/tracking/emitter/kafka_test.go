package emitter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/vietddude/ecosetu/internal/core/domain"
)

// =============================================================================
// Recording writer
// =============================================================================

type recordingWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func testEvent(id string, seq int) *domain.Event {
	return &domain.Event{
		Type:          domain.EventTypeStatusAppended,
		TransactionID: id,
		Sequence:      seq,
		Status:        domain.StatusPickedUp,
		Hash:          "abc",
		Timestamp:     time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC),
	}
}

func TestKafkaEmitter_KeysByTransaction(t *testing.T) {
	w := &recordingWriter{}
	e := newKafkaEmitterWithWriter(w, time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))

	events := []*domain.Event{testEvent("T1", 1), testEvent("T2", 3)}
	if err := e.EmitBatch(context.Background(), events); err != nil {
		t.Fatalf("emit batch: %v", err)
	}

	if len(w.msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(w.msgs))
	}
	if string(w.msgs[0].Key) != "T1" || string(w.msgs[1].Key) != "T2" {
		t.Errorf("unexpected keys: %q %q", w.msgs[0].Key, w.msgs[1].Key)
	}

	var decoded domain.Event
	if err := json.Unmarshal(w.msgs[1].Value, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Sequence != 3 || decoded.Type != domain.EventTypeStatusAppended {
		t.Errorf("unexpected payload: %+v", decoded)
	}

	if err := e.Close(); err != nil || !w.closed {
		t.Errorf("expected writer closed, err=%v", err)
	}
}

func TestKafkaEmitter_WriteError(t *testing.T) {
	w := &recordingWriter{err: errors.New("broker down")}
	e := newKafkaEmitterWithWriter(w, time.Second, nil)

	if err := e.Emit(context.Background(), testEvent("T1", 0)); err == nil {
		t.Error("expected write error")
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"default is log", Config{}, false},
		{"none", Config{Sink: SinkNone}, false},
		{"kafka without topic", Config{Sink: SinkKafka}, true},
		{"kafka", Config{Sink: SinkKafka, Kafka: KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "ledger"}}, false},
		{"unknown", Config{Sink: "carrier-pigeon"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := New(tt.cfg, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("wantErr=%v, got %v", tt.wantErr, err)
			}
			if e != nil {
				_ = e.Close()
			}
		})
	}
}
