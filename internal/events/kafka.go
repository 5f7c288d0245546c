package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/smallbiznis/dealshark/internal/config"
	"go.uber.org/zap"
)

type KafkaPublisher struct {
	writer *kafka.Writer
	topic  string
	log    *zap.Logger
}

// NewKafkaPublisher returns an async publisher. Publish only enqueues, so a
// broker outage never blocks the request path; delivery failures are logged
// from the writer's completion callback and pending batches flush on Close.
func NewKafkaPublisher(cfg config.KafkaConfig, log *zap.Logger) *KafkaPublisher {
	p := &KafkaPublisher{topic: cfg.Topic, log: log.Named("events.kafka")}
	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		Completion:   p.onCompletion,
		Transport:    &kafka.Transport{ClientID: cfg.ClientID},
	}

	p.log.Info("kafka publisher initialized",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.Topic),
	)
	return p
}

func (p *KafkaPublisher) Publish(ctx context.Context, evt Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	key := evt.Key
	if key == "" {
		key = evt.ID
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(evt.Type)},
			{Key: "correlation_id", Value: []byte(evt.CorrelationID)},
		},
	})
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	p.log.Debug("event queued", zap.String("event_type", evt.Type), zap.String("event_id", evt.ID))
	return nil
}

func (p *KafkaPublisher) onCompletion(messages []kafka.Message, err error) {
	if err == nil {
		return
	}
	for _, msg := range messages {
		p.log.Warn("event delivery failed",
			zap.String("event_type", headerValue(msg.Headers, "event_type")),
			zap.ByteString("key", msg.Key),
			zap.Error(err),
		)
	}
}

func headerValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
