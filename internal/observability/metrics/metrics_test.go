package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("reward_type", "commission"),
		attribute.String("referrer_user_id", "456"),
		attribute.String("endpoint", "/r/:code"),
	)
	assert.Len(t, attrs, 2)
	keys := []attribute.Key{attrs[0].Key, attrs[1].Key}
	assert.Contains(t, keys, attribute.Key("reward_type"))
	assert.Contains(t, keys, attribute.Key("endpoint"))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordConversion(context.Background(), "commission", 500)
		m.RecordSubscribed(context.Background(), true)
		m.RecordRateLimitDenied(context.Background(), "/r/:code", "ip-rate")
	})
}

func TestNoopMetricsRecord(t *testing.T) {
	m := NewNoop()
	assert.NotNil(t, m)
	assert.NotPanics(t, func() {
		m.RecordDealCreated(context.Background(), "no_reward")
		m.RecordConversion(context.Background(), "no_reward", 0)
	})
}
