package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	dealsCreated     metric.Int64Counter
	subscriptions    metric.Int64Counter
	unsubscriptions  metric.Int64Counter
	conversions      metric.Int64Counter
	commissionCents  metric.Int64Counter
	rateLimitAllowed metric.Int64Counter
	rateLimitDenied  metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "dealshark"
	}
	meter := provider.Meter(name)

	dealsCreated, err := meter.Int64Counter("dealshark_deals_created_total")
	if err != nil {
		return nil, err
	}
	subscriptions, err := meter.Int64Counter("dealshark_subscriptions_total")
	if err != nil {
		return nil, err
	}
	unsubscriptions, err := meter.Int64Counter("dealshark_unsubscriptions_total")
	if err != nil {
		return nil, err
	}
	conversions, err := meter.Int64Counter("dealshark_conversions_total")
	if err != nil {
		return nil, err
	}
	commissionCents, err := meter.Int64Counter("dealshark_commission_cents_total")
	if err != nil {
		return nil, err
	}
	rateLimitAllowed, err := meter.Int64Counter("dealshark_rate_limit_allowed_total")
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("dealshark_rate_limit_denied_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		dealsCreated:     dealsCreated,
		subscriptions:    subscriptions,
		unsubscriptions:  unsubscriptions,
		conversions:      conversions,
		commissionCents:  commissionCents,
		rateLimitAllowed: rateLimitAllowed,
		rateLimitDenied:  rateLimitDenied,
	}, nil
}

// NewNoop returns instruments bound to a noop provider, for tests and tools.
func NewNoop() *Metrics {
	m, _ := New(Config{}, noop.NewMeterProvider())
	return m
}

func (m *Metrics) RecordDealCreated(ctx context.Context, rewardType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("reward_type", strings.TrimSpace(rewardType)))
	m.dealsCreated.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordSubscribed counts subscribe calls that changed state.
func (m *Metrics) RecordSubscribed(ctx context.Context, reactivated bool) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.Bool("reactivated", reactivated))
	m.subscriptions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordUnsubscribed(ctx context.Context) {
	if m == nil {
		return
	}
	m.unsubscriptions.Add(ctx, 1)
}

// RecordConversion counts conversions and the commission they paid.
func (m *Metrics) RecordConversion(ctx context.Context, rewardType string, commissionCents int64) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("reward_type", strings.TrimSpace(rewardType)))
	m.conversions.Add(ctx, 1, metric.WithAttributes(attrs...))
	if commissionCents > 0 {
		m.commissionCents.Add(ctx, commissionCents, metric.WithAttributes(attrs...))
	}
}

// RecordRateLimitAllowed increments rate limit allow counts.
func (m *Metrics) RecordRateLimitAllowed(ctx context.Context, endpoint string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("endpoint", strings.TrimSpace(endpoint)))
	m.rateLimitAllowed.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitDenied increments rate limit deny counts.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"endpoint":    {},
	"status_code": {},
	"reward_type": {},
	"reactivated": {},
	"event_type":  {},
	"reason":      {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
