package events

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// LogPublisher writes events to the structured log when no broker is configured.
type LogPublisher struct {
	log *zap.Logger
}

func NewLogPublisher(log *zap.Logger) *LogPublisher {
	return &LogPublisher{log: log.Named("events")}
}

func (p *LogPublisher) Publish(_ context.Context, evt Event) error {
	p.log.Info("event",
		zap.String("event_type", evt.Type),
		zap.String("event_id", evt.ID),
		zap.String("correlation_id", evt.CorrelationID),
		zap.Time("occurred_at", evt.OccurredAt),
		zap.Any("payload", evt.Payload),
	)
	return nil
}

// MemoryPublisher keeps events in memory. Used by tests.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (p *MemoryPublisher) Publish(_ context.Context, evt Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

// Types lists emitted event types in order.
func (p *MemoryPublisher) Types() []string {
	evts := p.Events()
	out := make([]string, 0, len(evts))
	for _, evt := range evts {
		out = append(out, evt.Type)
	}
	return out
}
