package telemetry_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace"

	"github.com/Sumatoshi-tech/piecetree/pkg/telemetry"
)

func TestTracingHandlerInjectsTraceContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, nil)
	handler := telemetry.NewTracingHandler(inner, "piecetree", "test")
	logger := slog.New(handler)

	tp := trace.NewTracerProvider()
	ctx, span := tp.Tracer("test").Start(context.Background(), "span")
	defer span.End()

	logger.InfoContext(ctx, "insert", "offset", 3)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))

	assert.Equal(t, "piecetree", decoded["service"])
	assert.Equal(t, "test", decoded["env"])
	assert.NotEmpty(t, decoded["trace_id"])
	assert.NotEmpty(t, decoded["span_id"])
}

func TestTracingHandlerWithoutSpan(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	handler := telemetry.NewTracingHandler(slog.NewJSONHandler(&buf, nil), "piecetree", "")
	logger := slog.New(handler)

	logger.Info("no span here")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))

	assert.NotContains(t, decoded, "trace_id")
	assert.NotContains(t, decoded, "env")
}
