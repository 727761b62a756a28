// Package observe provides application-wide observability primitives for
// ClosePath: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all ClosePath metrics.
const meterName = "github.com/MrWong99/closepath"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// AnalysisDuration tracks end-to-end scorecard latency as seen by a call.
	AnalysisDuration metric.Float64Histogram

	// LLMDuration tracks LLM inference latency inside the analyzer.
	LLMDuration metric.Float64Histogram

	// ToolExecutionDuration tracks MCP tool execution latency.
	ToolExecutionDuration metric.Float64Histogram

	// --- Counters ---

	// AnalysisRequests counts analysis outcomes. Use with attributes:
	//   attribute.String("source", ...), attribute.String("status", ...)
	AnalysisRequests metric.Int64Counter

	// AnalysisFallbacks counts scorecards produced by the local heuristic
	// after the analysis client failed. Use with attribute:
	//   attribute.String("reason", ...)
	AnalysisFallbacks metric.Int64Counter

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ToolCalls counts MCP tool invocations. Use with attributes:
	//   attribute.String("tool", ...), attribute.String("status", ...)
	ToolCalls metric.Int64Counter

	// Utterances counts transcript appends. Use with attribute:
	//   attribute.String("mode", ...)
	Utterances metric.Int64Counter

	// EventsPublished counts call events handed to the publisher. Use with
	// attributes: attribute.String("type", ...), attribute.String("status", ...)
	EventsPublished metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// CircuitTransitions counts circuit breaker state changes. Use with
	// attributes: attribute.String("provider", ...), attribute.String("state", ...)
	CircuitTransitions metric.Int64Counter

	// --- Gauges ---

	// ActiveCalls tracks the number of calls that have not ended.
	ActiveCalls metric.Int64UpDownCounter

	// ActiveStreams tracks the number of connected call websockets.
	ActiveStreams metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("route", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are the advisory bucket boundaries in seconds. [Views]
// replaces them for the analysis and LLM histograms when installed.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.AnalysisDuration, err = m.Float64Histogram("closepath.analysis.duration",
		metric.WithDescription("Latency of a scorecard analysis cycle."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = m.Float64Histogram("closepath.llm.duration",
		metric.WithDescription("Latency of LLM inference."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ToolExecutionDuration, err = m.Float64Histogram("closepath.tool_execution.duration",
		metric.WithDescription("Latency of MCP tool execution."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.AnalysisRequests, err = m.Int64Counter("closepath.analysis.requests",
		metric.WithDescription("Total analysis cycles by result source and status."),
	); err != nil {
		return nil, err
	}
	if met.AnalysisFallbacks, err = m.Int64Counter("closepath.analysis.fallbacks",
		metric.WithDescription("Total heuristic scorecards applied after an analysis failure."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("closepath.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ToolCalls, err = m.Int64Counter("closepath.tool.calls",
		metric.WithDescription("Total tool invocations by tool name and status."),
	); err != nil {
		return nil, err
	}
	if met.Utterances, err = m.Int64Counter("closepath.utterances",
		metric.WithDescription("Total utterances appended to call transcripts by call mode."),
	); err != nil {
		return nil, err
	}
	if met.EventsPublished, err = m.Int64Counter("closepath.events.published",
		metric.WithDescription("Total call events published by type and status."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("closepath.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.CircuitTransitions, err = m.Int64Counter("closepath.circuit.transitions",
		metric.WithDescription("Total circuit breaker state changes by provider and new state."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveCalls, err = m.Int64UpDownCounter("closepath.active_calls",
		metric.WithDescription("Number of calls that have not ended."),
	); err != nil {
		return nil, err
	}
	if met.ActiveStreams, err = m.Int64UpDownCounter("closepath.active_streams",
		metric.WithDescription("Number of connected call websockets."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("closepath.http.request.duration",
		metric.WithDescription("HTTP request latency by method and route."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordAnalysis records one analysis cycle: its latency and its outcome.
func (m *Metrics) RecordAnalysis(ctx context.Context, source, status string, seconds float64) {
	attrs := metric.WithAttributes(
		attribute.String("source", source),
		attribute.String("status", status),
	)
	m.AnalysisRequests.Add(ctx, 1, attrs)
	m.AnalysisDuration.Record(ctx, seconds, attrs)
}

// RecordFallback records a heuristic scorecard applied after a failure.
func (m *Metrics) RecordFallback(ctx context.Context, reason string) {
	m.AnalysisFallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordProviderRequest is a convenience method that records a provider
// request counter increment with the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordToolCall is a convenience method that records a tool call counter
// increment with the standard attribute set.
func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string) {
	m.ToolCalls.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("tool", tool),
			attribute.String("status", status),
		),
	)
}

// RecordUtterance records a transcript append for a call in mode.
func (m *Metrics) RecordUtterance(ctx context.Context, mode string) {
	m.Utterances.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", mode)))
}

// RecordEvent records a call event publish attempt.
func (m *Metrics) RecordEvent(ctx context.Context, eventType, status string) {
	m.EventsPublished.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("type", eventType),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordCircuitTransition records a circuit breaker entering state.
func (m *Metrics) RecordCircuitTransition(ctx context.Context, provider, state string) {
	m.CircuitTransitions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("state", state),
		),
	)
}
