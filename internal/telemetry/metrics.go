package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all gateway metrics.
type Metrics struct {
	RequestCounter  metric.Int64Counter
	RequestDuration metric.Float64Histogram
	WidgetSends     metric.Int64Counter
	SupportLatency  metric.Float64Histogram
}

// InitMetrics initializes all gateway metrics.
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("lucy-support-gateway")

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	widgetSends, err := meter.Int64Counter(
		"widget.sends.total",
		metric.WithDescription("Widget messages relayed to the support endpoint"),
	)
	if err != nil {
		return nil, err
	}

	supportLatency, err := meter.Float64Histogram(
		"backend.support.duration",
		metric.WithDescription("Support endpoint round-trip duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:  requestCounter,
		RequestDuration: requestDuration,
		WidgetSends:     widgetSends,
		SupportLatency:  supportLatency,
	}, nil
}

// RecordRequest records one handled HTTP request.
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	if m == nil {
		return
	}
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.String("status", status),
	)
	m.RequestCounter.Add(ctx, 1, attrs)
	m.RequestDuration.Record(ctx, duration, attrs)
}

// RecordWidgetSend records one widget message relay and its backend latency.
func (m *Metrics) RecordWidgetSend(outcome string, seconds float64) {
	if m == nil {
		return
	}
	ctx := context.Background()
	m.WidgetSends.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	m.SupportLatency.Record(ctx, seconds, metric.WithAttributes(attribute.String("outcome", outcome)))
}
