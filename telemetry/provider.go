// Package telemetry wires OpenTelemetry tracing for PoseKit: tracer lookup,
// an OTLP/HTTP tracer provider and global propagation.
package telemetry

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/contrib/propagators/aws/xray"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	pkerrors "github.com/AltairaLabs/PoseKit/errors"
)

const (
	// InstrumentationName is the OTel instrumentation scope name.
	InstrumentationName = "github.com/AltairaLabs/PoseKit"

	// InstrumentationVersion is the OTel instrumentation scope version.
	InstrumentationVersion = "0.1.0"
)

// ErrNoEndpoint is returned by NewTracerProvider without an endpoint.
var ErrNoEndpoint = errors.New("tracing endpoint is required")

// ProviderConfig describes where spans are exported and how the client is
// identified in them.
type ProviderConfig struct {
	// Endpoint is the OTLP/HTTP traces URL.
	Endpoint    string
	ServiceName string
	// Environment is recorded as deployment.environment.
	Environment string
	// SampleRatio keeps this fraction of root traces. 0 or 1 keeps all.
	SampleRatio float64
}

// Tracer returns the PoseKit tracer from tp, or from the global provider when tp is nil.
func Tracer(tp trace.TracerProvider) trace.Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer(InstrumentationName, trace.WithInstrumentationVersion(InstrumentationVersion))
}

// NewTracerProvider creates a batching provider that exports over OTLP/HTTP.
// Child spans follow their parent's sampling decision. The caller must
// Shutdown the returned provider.
func NewTracerProvider(ctx context.Context, cfg ProviderConfig) (*sdktrace.TracerProvider, error) {
	if cfg.Endpoint == "" {
		return nil, ErrNoEndpoint
	}
	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(cfg.Endpoint))
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(cfg.attributes()...))
	if err != nil {
		return nil, fmt.Errorf("failed to build trace resource: %w", err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(cfg.sampler()),
	), nil
}

func (c ProviderConfig) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("service.name", c.ServiceName),
		attribute.String("service.version", InstrumentationVersion),
	}
	if c.Environment != "" {
		attrs = append(attrs, attribute.String("deployment.environment", c.Environment))
	}
	return attrs
}

func (c ProviderConfig) sampler() sdktrace.Sampler {
	if c.SampleRatio <= 0 || c.SampleRatio >= 1 {
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(c.SampleRatio))
}

// SetupPropagation installs W3C TraceContext, Baggage and AWS X-Ray as the
// global text-map propagator, so REST calls carry trace headers the backend
// load balancer understands.
func SetupPropagation() {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
		xray.Propagator{},
	))
}

// EndSpan ends span, first marking it failed when err is set. A collaborator
// status code carried by err is recorded too.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		if status := pkerrors.StatusCode(err); status != 0 {
			span.SetAttributes(attribute.Int("http.response.status_code", status))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
