package observability

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

// SetupTracing initializes OpenTelemetry tracing with stdout exporter (for demo; replace with OTLP in prod)
func SetupTracing(serviceName string) func() {
	exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		log.Fatalf("failed to initialize stdouttrace exporter: %v", err)
	}
	res, _ := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		),
	)
	provider := trace.NewTracerProvider(
		trace.WithBatcher(exp),
		trace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	return func() { _ = provider.Shutdown(context.Background()) }
}

// SetupPrometheusMetrics initializes Prometheus metrics exporter and exposes /metrics endpoint
func SetupPrometheusMetrics() *metric.MeterProvider {
	exp, err := prometheus.New()
	if err != nil {
		log.Fatalf("failed to initialize prometheus exporter: %v", err)
	}
	mp := metric.NewMeterProvider(metric.WithReader(exp))
	otel.SetMeterProvider(mp)
	go func() {
		http.Handle("/metrics", promhttp.Handler())
		_ = http.ListenAndServe(":2112", nil)
	}()
	return mp
}

// Metrics holds the service's domain instruments
type Metrics struct {
	MessagesAnalyzed otelmetric.Int64Counter
	SentimentFlips   otelmetric.Int64Counter
	InferenceLatency otelmetric.Float64Histogram
}

// NewMetrics creates the analysis instruments on the global meter provider
func NewMetrics() (*Metrics, error) {
	meter := otel.GetMeterProvider().Meter("chat-sentiment-backend")

	analyzed, err := meter.Int64Counter("messages_analyzed_total",
		otelmetric.WithDescription("Number of user messages run through the classifiers"))
	if err != nil {
		return nil, err
	}

	flips, err := meter.Int64Counter("sentiment_flips_total",
		otelmetric.WithDescription("Messages whose sentiment was flipped by irony arbitration"))
	if err != nil {
		return nil, err
	}

	latency, err := meter.Float64Histogram("inference_latency_seconds",
		otelmetric.WithDescription("Latency of hosted inference calls"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		MessagesAnalyzed: analyzed,
		SentimentFlips:   flips,
		InferenceLatency: latency,
	}, nil
}

// RecordInference records one inference round trip
func (m *Metrics) RecordInference(ctx context.Context, model string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.InferenceLatency.Record(ctx, elapsed.Seconds(),
		otelmetric.WithAttributes(
			attribute.String("model", model),
			attribute.String("status", status),
		))
}
