package tracing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsUnknownKeys(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/api/deals/:id"),
		attribute.String("referral_code", "secret"),
		attribute.Int("http.status_code", 200),
	)
	assert.Len(t, attrs, 2)
	for _, attr := range attrs {
		assert.NotEqual(t, attribute.Key("referral_code"), attr.Key)
	}
}

func TestSafeErrorTruncates(t *testing.T) {
	err := SafeError(errors.New("insert attribution: UNIQUE constraint failed: attribution_records.order_reference"))
	assert.EqualError(t, err, "insert attribution")
	assert.Nil(t, SafeError(nil))
}
