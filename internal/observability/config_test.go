package observability

import (
	"testing"

	"github.com/smallbiznis/dealshark/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfig(t *testing.T) {
	cfg := LoadConfig(config.Config{
		AppVersion:   "1.2.0",
		Environment:  "production",
		OTLPEndpoint: "collector:4317",
		Observability: config.ObservabilityConfig{
			LogLevel:      "info",
			OtelEnabled:   true,
			OtelProtocol:  "grpc",
			SamplingRatio: 3,
		},
	})

	assert.Equal(t, "dealshark", cfg.ServiceName)
	assert.True(t, cfg.OtelEnabled)
	assert.Equal(t, 1.0, cfg.OtelSamplingRatio)
	assert.False(t, cfg.Debug())
}

func TestLoadConfigDisablesOtelWithoutEndpoint(t *testing.T) {
	cfg := LoadConfig(config.Config{
		Environment:   "local",
		Observability: config.ObservabilityConfig{OtelEnabled: true},
	})

	assert.False(t, cfg.OtelEnabled)
	assert.True(t, cfg.Debug())
}
