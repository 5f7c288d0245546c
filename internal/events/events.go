package events

import (
	"context"
	"time"

	"github.com/smallbiznis/dealshark/pkg/telemetry/correlation"
	"go.uber.org/zap"
)

const (
	DealCreated              = "deal.created"
	DealDeactivated          = "deal.deactivated"
	SubscriptionSubscribed   = "subscription.subscribed"
	SubscriptionUnsubscribed = "subscription.unsubscribed"
	ConversionRecorded       = "conversion.recorded"
)

const publishTimeout = 3 * time.Second

// Event is the envelope handed to the notification layer.
type Event struct {
	ID            string         `json:"id"`
	Type          string         `json:"type"`
	OccurredAt    time.Time      `json:"occurred_at"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	Key           string         `json:"-"`
	Payload       map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// New builds an event stamped with a fresh id and the request correlation id.
// key groups events that must stay ordered, such as a subscription id.
func New(ctx context.Context, eventType string, key string, at time.Time, payload map[string]any) Event {
	return Event{
		ID:            correlation.NewID(),
		Type:          eventType,
		OccurredAt:    at.UTC(),
		CorrelationID: correlation.ExtractCorrelationID(ctx),
		Key:           key,
		Payload:       payload,
	}
}

// Emit publishes best-effort. Callers have already committed, so failures are only logged.
func Emit(ctx context.Context, pub Publisher, log *zap.Logger, evt Event) {
	if pub == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := pub.Publish(ctx, evt); err != nil && log != nil {
		log.Warn("event publish failed",
			zap.String("event_type", evt.Type),
			zap.String("event_id", evt.ID),
			zap.Error(err),
		)
	}
}
