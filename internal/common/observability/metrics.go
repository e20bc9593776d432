// internal/common/observability/metrics.go

// Package observability bridges the OpenTelemetry meter provider to the
// Prometheus registry, so the /metrics endpoint serves both the engine's
// native counters and anything instrumented through otel.
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
	consultationCounter otelmetric.Int64Counter
	roundDuration       otelmetric.Float64Histogram
}

// New installs a Prometheus-backed meter provider as the global otel
// provider. Exporter failure degrades to a no-op Observability rather than
// blocking startup.
func New(serviceName string) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	consultationCounter, _ := meter.Int64Counter(
		"consultations.processed",
		otelmetric.WithDescription("Number of consultations processed"),
	)

	roundDuration, _ := meter.Float64Histogram(
		"consultations.round.duration",
		otelmetric.WithDescription("Query round duration"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider:       provider,
		meter:               meter,
		consultationCounter: consultationCounter,
		roundDuration:       roundDuration,
	}
}

// RecordConsultation counts one processed consultation by terminal status.
func (o *Observability) RecordConsultation(ctx context.Context, status string) {
	if o.consultationCounter != nil {
		o.consultationCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("status", status),
		))
	}
}

// RecordRoundDuration records how long one query round took.
func (o *Observability) RecordRoundDuration(ctx context.Context, duration time.Duration, round string) {
	if o.roundDuration != nil {
		o.roundDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("round", round),
		))
	}
}

func (o *Observability) Shutdown() {
	if o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		o.meterProvider.Shutdown(ctx)
	}
}
