package observe

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Resource attribute keys describing how this instance analyses calls.
const (
	AttrLLMProvider  = attribute.Key("closepath.llm.provider")
	AttrSTTProvider  = attribute.Key("closepath.stt.provider")
	AttrAnalysisMode = attribute.Key("closepath.analysis.mode")
)

// Analysis modes reported under [AttrAnalysisMode].
const (
	AnalysisModeDemo   = "demo"
	AnalysisModeLocal  = "local"
	AnalysisModeRemote = "remote"
)

// Bucket boundaries in seconds. A scorecard is one model round-trip with a
// 2000 token reply, so most of the mass sits between one and thirty seconds.
var (
	analysisBuckets = []float64{0.25, 0.5, 1, 2, 3, 5, 8, 12, 20, 30, 45, 60, 90}
	llmBuckets      = []float64{0.5, 1, 2, 3, 5, 8, 12, 20, 30, 45, 60}
)

// ProviderConfig configures the OpenTelemetry SDK providers.
type ProviderConfig struct {
	// ServiceName is the service name reported in telemetry. Default: "closepath".
	ServiceName string

	// ServiceVersion is the build version reported in telemetry.
	ServiceVersion string

	// InstanceID distinguishes replicas. Default: a random UUID.
	InstanceID string

	// LLMProvider and STTProvider are the configured provider names. Empty
	// values are reported as "none".
	LLMProvider string
	STTProvider string

	// AnalysisMode is one of the AnalysisMode constants.
	AnalysisMode string

	// TraceExporter is an optional span exporter. When nil, spans are
	// recorded but not exported.
	TraceExporter sdktrace.SpanExporter
}

// NewResource describes this ClosePath instance. The service attributes are
// schemaless so they merge with the SDK defaults whatever semconv version
// those use.
func NewResource(cfg ProviderConfig) (*resource.Resource, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "closepath"
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}
	return resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			attribute.String("service.instance.id", cfg.InstanceID),
			AttrLLMProvider.String(orNone(cfg.LLMProvider)),
			AttrSTTProvider.String(orNone(cfg.STTProvider)),
			AttrAnalysisMode.String(orNone(cfg.AnalysisMode)),
		),
	)
}

// Views rebuckets the analysis and LLM latency histograms for multi-second
// model calls. The other histograms keep the buckets set in [NewMetrics].
func Views() []sdkmetric.View {
	return []sdkmetric.View{
		sdkmetric.NewView(
			sdkmetric.Instrument{Name: "closepath.analysis.duration"},
			sdkmetric.Stream{Aggregation: sdkmetric.AggregationExplicitBucketHistogram{Boundaries: analysisBuckets}},
		),
		sdkmetric.NewView(
			sdkmetric.Instrument{Name: "closepath.llm.duration"},
			sdkmetric.Stream{Aggregation: sdkmetric.AggregationExplicitBucketHistogram{Boundaries: llmBuckets}},
		),
	}
}

// InitProvider registers global meter and tracer providers for the server:
// metrics go to a Prometheus exporter scraped at /metrics, spans to
// cfg.TraceExporter when set.
//
// The returned function flushes and closes both. Call it in a defer from main().
func InitProvider(ctx context.Context, cfg ProviderConfig) (shutdown func(context.Context) error, err error) {
	res, err := NewResource(cfg)
	if err != nil {
		return nil, err
	}

	promExp, err := promexporter.New()
	if err != nil {
		return nil, err
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExp),
		sdkmetric.WithView(Views()...),
	)
	otel.SetMeterProvider(mp)

	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if cfg.TraceExporter != nil {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(cfg.TraceExporter))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		return errors.Join(mp.Shutdown(ctx), tp.Shutdown(ctx))
	}, nil
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
