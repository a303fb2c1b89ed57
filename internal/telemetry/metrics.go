package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

const meterName = "github.com/bobarin/speakrelay"

// Metrics records relay counters through an OpenTelemetry meter backed by a
// Prometheus exporter. A nil *Metrics is valid and records nothing.
type Metrics struct {
	provider *sdkmetric.MeterProvider
	handler  http.Handler

	requests  metric.Int64Counter
	synthesis metric.Float64Histogram
	playback  metric.Int64Counter
	deletions metric.Int64Counter
}

// New builds the meter provider on a dedicated registry so /metrics only
// exposes what this process records.
func New(serviceName string) (*Metrics, error) {
	reg := prometheus.NewRegistry()

	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	res := resource.NewSchemaless(attribute.String("service.name", serviceName))
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)
	meter := provider.Meter(meterName)

	m := &Metrics{
		provider: provider,
		handler:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}

	if m.requests, err = meter.Int64Counter("speak_requests",
		metric.WithDescription("Speak requests by input mode and outcome")); err != nil {
		return nil, err
	}
	if m.synthesis, err = meter.Float64Histogram("synthesis_duration",
		metric.WithUnit("s"),
		metric.WithDescription("Provider call latency")); err != nil {
		return nil, err
	}
	if m.playback, err = meter.Int64Counter("playback_launches",
		metric.WithDescription("Player launches by outcome")); err != nil {
		return nil, err
	}
	if m.deletions, err = meter.Int64Counter("temp_files_deleted",
		metric.WithDescription("Scheduled temp file deletions by outcome")); err != nil {
		return nil, err
	}

	return m, nil
}

// Handler serves the Prometheus exposition.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return m.handler
}

func (m *Metrics) RecordRequest(ctx context.Context, mode, outcome string) {
	if m == nil {
		return
	}
	m.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("mode", mode),
		attribute.String("outcome", outcome),
	))
}

func (m *Metrics) RecordSynthesis(ctx context.Context, provider, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.synthesis.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("outcome", outcome),
	))
}

func (m *Metrics) RecordPlayback(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.playback.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *Metrics) RecordDeletion(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.deletions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// Shutdown flushes and stops the meter provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}
