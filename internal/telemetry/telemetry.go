// Package telemetry emits one structured event per pipeline decision, to
// the process log and optionally to a Kafka topic for external dashboards.
package telemetry

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// DecisionEvent is the wire format published per handled inbound message.
type DecisionEvent struct {
	TraceID   string    `json:"trace_id"`
	Channel   string    `json:"channel"`
	ContactID string    `json:"contact_id,omitempty"`
	Address   string    `json:"address"`
	Action    string    `json:"action"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Emitter publishes decision events. The zero value logs only; configure
// Kafka with NewEmitter.
type Emitter struct {
	writer *kafka.Writer
}

// NewEmitter creates an emitter. With empty brokers the emitter only logs.
func NewEmitter(brokers, topic string) *Emitter {
	e := &Emitter{}
	if strings.TrimSpace(brokers) == "" {
		return e
	}
	e.writer = &kafka.Writer{
		Addr:         kafka.TCP(strings.Split(brokers, ",")...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
	}
	return e
}

// EmitDecision records one decision outcome. Publishing is best effort;
// failures are logged and never surface to the pipeline.
func (e *Emitter) EmitDecision(ctx context.Context, ev DecisionEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	slog.Info("Decision",
		"trace_id", ev.TraceID,
		"channel", ev.Channel,
		"address", ev.Address,
		"action", ev.Action,
		"reason", ev.Reason)

	if e.writer == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		slog.Error("Telemetry marshal failed", "error", err)
		return
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := e.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(ev.Address),
		Value: payload,
	}); err != nil {
		slog.Warn("Telemetry publish failed", "error", err)
	}
}

// Close flushes and closes the Kafka writer if configured.
func (e *Emitter) Close() error {
	if e.writer == nil {
		return nil
	}
	return e.writer.Close()
}
