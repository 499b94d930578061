package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

type Observability struct {
	meterProvider       *metric.MeterProvider
	meter               otelmetric.Meter
	calculationCounter  otelmetric.Int64Counter
	calculationDuration otelmetric.Float64Histogram
	fallbackCounter     otelmetric.Int64Counter
}

func New(serviceName string) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	calculationCounter, _ := meter.Int64Counter(
		"capacity.calculations",
		otelmetric.WithDescription("Number of capacity calculations by resulting state"),
	)

	calculationDuration, _ := meter.Float64Histogram(
		"capacity.calculation.duration",
		otelmetric.WithDescription("Capacity calculation duration"),
		otelmetric.WithUnit("ms"),
	)

	fallbackCounter, _ := meter.Int64Counter(
		"capacity.fallbacks",
		otelmetric.WithDescription("Degraded capacity payloads served"),
	)

	return &Observability{
		meterProvider:       provider,
		meter:               meter,
		calculationCounter:  calculationCounter,
		calculationDuration: calculationDuration,
		fallbackCounter:     fallbackCounter,
	}
}

// NewNoop returns an Observability whose recorders do nothing.
func NewNoop() *Observability {
	return &Observability{}
}

func (o *Observability) RecordCalculation(ctx context.Context, state string, duration time.Duration) {
	attrs := otelmetric.WithAttributes(attribute.String("state", state))
	if o.calculationCounter != nil {
		o.calculationCounter.Add(ctx, 1, attrs)
	}
	if o.calculationDuration != nil {
		o.calculationDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

func (o *Observability) RecordFallback(ctx context.Context, reason string) {
	if o.fallbackCounter != nil {
		o.fallbackCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("reason", reason),
		))
	}
}

func (o *Observability) Shutdown() {
	if o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = o.meterProvider.Shutdown(ctx)
	}
}
