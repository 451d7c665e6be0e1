package observability

import (
	"context"
	"time"

	"job-notifier/internal/common/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Observability owns the OpenTelemetry meter provider and the batch run
// instruments. A zero value records nothing.
type Observability struct {
	meterProvider *metric.MeterProvider
	runCounter    otelmetric.Int64Counter
	runDuration   otelmetric.Float64Histogram
	contacts      otelmetric.Int64Counter
}

// New exports through the default Prometheus registry, so the values show up
// on the same /metrics endpoint as the client_golang collectors.
func New(serviceName string, log logger.Logger) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Warn("failed to create prometheus exporter, otel metrics disabled", map[string]interface{}{
			"error": err,
		})
		return &Observability{}
	}
	return NewWithReader(serviceName, exporter)
}

// NewWithReader builds the instruments on an arbitrary reader.
func NewWithReader(serviceName string, reader metric.Reader) *Observability {
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	runCounter, _ := meter.Int64Counter(
		"batch.runs",
		otelmetric.WithDescription("Number of batch runs"),
	)
	runDuration, _ := meter.Float64Histogram(
		"batch.duration",
		otelmetric.WithDescription("Batch run duration"),
		otelmetric.WithUnit("ms"),
	)
	contacts, _ := meter.Int64Counter(
		"batch.contacts",
		otelmetric.WithDescription("Contacts processed by outcome"),
	)

	return &Observability{
		meterProvider: provider,
		runCounter:    runCounter,
		runDuration:   runDuration,
		contacts:      contacts,
	}
}

func (o *Observability) RecordBatchRun(ctx context.Context, duration time.Duration, status string) {
	attrs := otelmetric.WithAttributes(attribute.String("status", status))
	if o.runCounter != nil {
		o.runCounter.Add(ctx, 1, attrs)
	}
	if o.runDuration != nil {
		o.runDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

func (o *Observability) RecordContacts(ctx context.Context, outcome string, n int) {
	if o.contacts != nil && n > 0 {
		o.contacts.Add(ctx, int64(n), otelmetric.WithAttributes(attribute.String("outcome", outcome)))
	}
}

func (o *Observability) Shutdown() {
	if o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = o.meterProvider.Shutdown(ctx)
	}
}
