package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"
)

func recordingTracer(t *testing.T) (*Tracer, *tracetest.SpanRecorder) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return newTracer(provider), sr
}

func attrMap(kvs []attribute.KeyValue) map[string]string {
	out := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		out[string(kv.Key)] = kv.Value.Emit()
	}
	return out
}

func TestDefaultTracerConfig(t *testing.T) {
	cfg := DefaultTracerConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.Equal(t, "webminifier", cfg.ServiceName)
	assert.Equal(t, 1.0, cfg.SampleRate)
	assert.True(t, cfg.Insecure)
}

func TestNewTracer_Disabled(t *testing.T) {
	tracer, err := NewTracer(context.Background(), TracerConfig{Enabled: false})
	require.NoError(t, err)

	assert.False(t, tracer.IsEnabled())
	assert.NotNil(t, tracer.Tracer())
	assert.NoError(t, tracer.Shutdown(context.Background()))

	_, span := tracer.StartDocumentSpan(context.Background(), "index.html")
	assert.False(t, span.IsRecording())
	span.End()
}

func TestTracer_Nil(t *testing.T) {
	var tracer *Tracer

	assert.False(t, tracer.IsEnabled())
	assert.Nil(t, tracer.Tracer())
	assert.NoError(t, tracer.Shutdown(context.Background()))

	assert.NotPanics(t, func() {
		_, span := tracer.StartCompressionSpan(context.Background(), "1", "esbuild")
		EndSpan(span, errors.New("boom"))
	})
}

func TestSamplerFor(t *testing.T) {
	tests := []struct {
		rate     float64
		expected string
	}{
		{rate: 1.0, expected: "AlwaysOnSampler"},
		{rate: 2.0, expected: "AlwaysOnSampler"},
		{rate: 0, expected: "AlwaysOffSampler"},
		{rate: -1, expected: "AlwaysOffSampler"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, samplerFor(tt.rate).Description())
	}
	assert.Contains(t, samplerFor(0.25).Description(), "ParentBased")
}

func TestTracer_Spans(t *testing.T) {
	tracer, sr := recordingTracer(t)
	assert.True(t, tracer.IsEnabled())

	ctx, run := tracer.StartRunSpan(context.Background(), "run-1", false)
	docCtx, doc := tracer.StartDocumentSpan(ctx, "pages/index.html")
	_, comp := tracer.StartCompressionSpan(docCtx, "vendor", "minify")
	EndSpan(comp, errors.New("syntax error"))
	EndSpan(doc, nil)
	_, pub := tracer.StartPublishSpan(ctx, "s3", "assets/1.min.js")
	EndSpan(pub, nil)
	EndSpan(run, nil)

	ended := sr.Ended()
	require.Len(t, ended, 4)

	names := make([]string, len(ended))
	for i, s := range ended {
		names[i] = s.Name()
	}
	assert.Equal(t, []string{"compress.minify", "document.process", "publish.s3", "webminifier.build"}, names)

	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, "vendor", attrMap(ended[0].Attributes())["bundle.name"])
	assert.Equal(t, "pages/index.html", attrMap(ended[1].Attributes())["document.path"])
	assert.Equal(t, "run-1", attrMap(ended[3].Attributes())["run.id"])

	// children share the run's trace
	assert.Equal(t, ended[3].SpanContext().TraceID(), ended[0].SpanContext().TraceID())
}

func TestTracer_PlanSpanName(t *testing.T) {
	tracer, sr := recordingTracer(t)

	_, span := tracer.StartRunSpan(context.Background(), "run-2", true)
	span.End()

	require.Len(t, sr.Ended(), 1)
	assert.Equal(t, "webminifier.plan", sr.Ended()[0].Name())
}

func TestSpanHelpers(t *testing.T) {
	t.Run("no span in context", func(t *testing.T) {
		ctx := context.Background()
		assert.NotPanics(t, func() {
			SetSpanAttributes(ctx, attribute.String("k", "v"))
			AddSpanEvent(ctx, "event")
		})
		assert.Empty(t, ExtractTraceID(ctx))
	})

	t.Run("noop span", func(t *testing.T) {
		ctx, span := noop.NewTracerProvider().Tracer("test").Start(context.Background(), "test")
		defer span.End()
		assert.Empty(t, ExtractTraceID(ctx))
	})

	t.Run("recording span", func(t *testing.T) {
		tracer, sr := recordingTracer(t)
		ctx, span := tracer.StartSpan(context.Background(), "op")

		SetSpanAttributes(ctx, attribute.Int("bundles", 2))
		AddSpanEvent(ctx, "bundle.reused", attribute.String("bundle.name", "1"))
		assert.NotEmpty(t, ExtractTraceID(ctx))
		EndSpan(span, errors.New("failed"))

		require.Len(t, sr.Ended(), 1)
		s := sr.Ended()[0]
		assert.Equal(t, "2", attrMap(s.Attributes())["bundles"])
		// the failure adds an exception event next to the explicit one
		assert.Len(t, s.Events(), 2)
		assert.Equal(t, codes.Error, s.Status().Code)
	})
}
