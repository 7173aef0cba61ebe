package telemetry

import (
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"

	pkerrors "github.com/AltairaLabs/PoseKit/errors"
)

func TestTracer(t *testing.T) {
	assert.NotNil(t, Tracer(nil))
	assert.NotNil(t, Tracer(noop.NewTracerProvider()))
}

func TestSetupPropagation(t *testing.T) {
	orig := otel.GetTextMapPropagator()
	defer otel.SetTextMapPropagator(orig)

	SetupPropagation()

	fields := otel.GetTextMapPropagator().Fields()
	assert.True(t, slices.Contains(fields, "traceparent"), "fields: %v", fields)
	assert.True(t, slices.Contains(fields, "X-Amzn-Trace-Id"), "fields: %v", fields)
}

func TestNewTracerProvider(t *testing.T) {
	tp, err := NewTracerProvider(t.Context(), ProviderConfig{
		Endpoint:    "http://localhost:0/v1/traces",
		ServiceName: "posekit-test",
		Environment: "development",
	})
	require.NoError(t, err)
	defer func() { _ = tp.Shutdown(t.Context()) }()
	assert.NotNil(t, Tracer(tp))

	_, err = NewTracerProvider(t.Context(), ProviderConfig{ServiceName: "posekit-test"})
	assert.ErrorIs(t, err, ErrNoEndpoint)
}

func TestProviderConfig_Attributes(t *testing.T) {
	attrs := ProviderConfig{ServiceName: "posekit", Environment: "production"}.attributes()
	assert.Contains(t, attrs, attribute.String("service.name", "posekit"))
	assert.Contains(t, attrs, attribute.String("deployment.environment", "production"))

	assert.Len(t, ProviderConfig{ServiceName: "posekit"}.attributes(), 2)
}

func TestProviderConfig_Sampler(t *testing.T) {
	assert.Contains(t, ProviderConfig{}.sampler().Description(), "AlwaysOnSampler")
	assert.Contains(t, ProviderConfig{SampleRatio: 1}.sampler().Description(), "AlwaysOnSampler")
	assert.Contains(t, ProviderConfig{SampleRatio: 0.25}.sampler().Description(), "TraceIDRatioBased{0.25}")
}

func TestEndSpan(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	tracer := Tracer(tp)

	_, ok := tracer.Start(t.Context(), "ok")
	EndSpan(ok, nil)
	_, failed := tracer.Start(t.Context(), "failed")
	EndSpan(failed, errors.New("boom"))
	_, rejected := tracer.Start(t.Context(), "rejected")
	EndSpan(rejected, pkerrors.New("restclient", "StartSession", pkerrors.ErrUnauthorized).WithStatusCode(401))

	spans := exp.GetSpans()
	require.Len(t, spans, 3)
	assert.Equal(t, codes.Unset, spans[0].Status.Code)
	assert.Equal(t, codes.Error, spans[1].Status.Code)
	assert.Equal(t, "boom", spans[1].Status.Description)
	assert.Empty(t, spans[1].Attributes)
	assert.Contains(t, spans[2].Attributes, attribute.Int("http.response.status_code", 401))
}
