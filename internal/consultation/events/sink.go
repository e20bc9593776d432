// internal/consultation/events/sink.go
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Joe-rq/MedCrowd-sub000/internal/common/database"
	"github.com/Joe-rq/MedCrowd-sub000/internal/common/logger"
)

// Sink receives progress events. Implementations must return quickly; the
// publisher swallows errors and enforces a short delivery budget.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}

// publishBudget bounds one delivery attempt so a slow sink cannot stall a
// consultation step.
const publishBudget = 200 * time.Millisecond

// Publisher wraps a Sink with the fire-and-forget discipline. A nil sink
// drops everything.
type Publisher struct {
	sink Sink
	log  logger.Logger
}

// NewPublisher creates a Publisher delivering to sink.
func NewPublisher(sink Sink, log logger.Logger) *Publisher {
	return &Publisher{sink: sink, log: log}
}

// Emit delivers event best-effort. Delivery failure is logged at debug and
// otherwise ignored.
func (p *Publisher) Emit(ctx context.Context, event Event) {
	if p == nil || p.sink == nil {
		return
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishBudget)
	defer cancel()

	if err := p.sink.Publish(publishCtx, event); err != nil && p.log != nil {
		p.log.Debug("progress event dropped", map[string]interface{}{
			"consultationId": event.ConsultationID,
			"eventType":      string(event.Type),
			"error":          err.Error(),
		})
	}
}

// NopSink discards every event.
type NopSink struct{}

func (NopSink) Publish(context.Context, Event) error { return nil }

// LogSink writes events to the structured logger, useful in development.
type LogSink struct {
	log logger.Logger
}

func NewLogSink(log logger.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Publish(_ context.Context, event Event) error {
	s.log.Info("consultation progress", map[string]interface{}{
		"consultationId": event.ConsultationID,
		"eventType":      string(event.Type),
		"agentId":        event.AgentID,
		"round":          string(event.Round),
		"status":         string(event.Status),
	})
	return nil
}

// RedisSink publishes JSON events to a per-consultation channel so a live
// status display can subscribe.
type RedisSink struct {
	client *database.RedisClient
}

func NewRedisSink(client *database.RedisClient) *RedisSink {
	return &RedisSink{client: client}
}

// Channel returns the pub/sub channel name for one consultation.
func Channel(consultationID string) string {
	return "consultation:events:" + consultationID
}

func (s *RedisSink) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, Channel(event.ConsultationID), payload)
}
