package tracing

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/zzaxusl0a/APRS-notify/internal/pkg/logging"
)

// ВАЖНО: тесты модифицируют глобальный otel.SetTracerProvider(), t.Parallel() не использовать.

var hex32 = regexp.MustCompile(`^[0-9a-f]{32}$`)

func TestGenerateTraceID_Format(t *testing.T) {
	a := GenerateTraceID()
	b := GenerateTraceID()
	assert.Regexp(t, hex32, a)
	assert.NotEqual(t, a, b)
	assert.Regexp(t, hex32, fallbackTraceID())
}

func TestTraceIDContext(t *testing.T) {
	assert.Empty(t, TraceIDFromContext(context.Background()))
	ctx := WithTraceID(context.Background(), "abc")
	assert.Equal(t, "abc", TraceIDFromContext(ctx))
}

func TestEnsureTraceID(t *testing.T) {
	ctx, id := EnsureTraceID(context.Background())
	require.Regexp(t, hex32, id)
	assert.Equal(t, id, TraceIDFromContext(ctx))
	assert.Equal(t, id, trace.SpanContextFromContext(ctx).TraceID().String())

	ctx2, id2 := EnsureTraceID(ctx)
	assert.Equal(t, id, id2)
	assert.Equal(t, ctx, ctx2)
}

func TestContextWithOTelTraceID_Invalid(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, ctx, ContextWithOTelTraceID(ctx, "not-hex"))
}

func TestNewTracerProvider_Disabled(t *testing.T) {
	shutdown, err := NewTracerProvider(Config{}, logging.NewNopLogger())
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestNewTracerProvider_InvalidConfig(t *testing.T) {
	_, err := NewTracerProvider(Config{Enabled: true}, logging.NewNopLogger())
	assert.ErrorIs(t, err, ErrTracingEndpointRequired)
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{Enabled: true, Endpoint: "http://collector:4318", ServiceName: "svc", Timeout: time.Second, SamplingRate: 0.5}
	assert.NoError(t, valid.Validate())

	bad := valid
	bad.Endpoint = "collector"
	assert.ErrorIs(t, bad.Validate(), ErrTracingEndpointInvalidFormat)

	bad = valid
	bad.ServiceName = ""
	assert.ErrorIs(t, bad.Validate(), ErrTracingServiceNameRequired)

	bad = valid
	bad.Timeout = 0
	assert.ErrorIs(t, bad.Validate(), ErrTracingTimeoutInvalid)

	bad = valid
	bad.SamplingRate = 1.5
	assert.ErrorIs(t, bad.Validate(), ErrTracingSamplingRateInvalid)
}

func TestStartSpan_EndSpanRecordsError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	ctx, traceID := EnsureTraceID(context.Background())
	_, span := StartSpan(ctx, "monitor.evaluate", attribute.String("callsign", "N0CALL"))
	EndSpan(span, errors.New("feed down"))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "monitor.evaluate", spans[0].Name())
	assert.Equal(t, traceID, spans[0].SpanContext().TraceID().String())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}
