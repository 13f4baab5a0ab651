//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package telemetry

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestSpanNames(t *testing.T) {
	assert.Equal(t, "execute_node analysis", NodeSpanName("analysis"))
	assert.Equal(t, "execute_tool create_task", ToolSpanName("create_task"))
}

func TestTraceHelpers_NoPanics(t *testing.T) {
	_, span := noop.NewTracerProvider().Tracer("t").Start(t.Context(), "s")
	defer span.End()
	TraceNode(span, "thread", "node", "function", 3)
	TraceToolCall(span, "lookup", "call_1", []byte(`{"id":1}`), "success")
}

func TestTruncate(t *testing.T) {
	short := "hello"
	assert.Equal(t, short, Truncate(short))

	long := strings.Repeat("é", maxAttrLen)
	got := Truncate(long)
	assert.True(t, strings.HasSuffix(got, "...(truncated)"))
	assert.LessOrEqual(t, len(got), maxAttrLen+len("...(truncated)"))
}

func TestNewGRPCConn(t *testing.T) {
	// gRPC dials lazily, so even unreachable targets do not error immediately.
	conn, err := NewGRPCConn("localhost:4317")
	require.NoError(t, err)
	require.NotNil(t, conn)
	_ = conn.Close()
}

func TestEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "traces:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "generic:4317")
	assert.Equal(t, "traces:4317", Endpoint("TRACES", ProtocolGRPC))
	assert.Equal(t, "generic:4317", Endpoint("METRICS", ProtocolGRPC))

	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	assert.Equal(t, "localhost:4317", Endpoint("TRACES", ProtocolGRPC))
	assert.Equal(t, "localhost:4318", Endpoint("METRICS", ProtocolHTTP))
}

func TestNewResource(t *testing.T) {
	res, err := NewResource(t.Context(), "")
	require.NoError(t, err)
	v, ok := res.Set().Value("service.name")
	require.True(t, ok)
	assert.Equal(t, ServiceName, v.AsString())
}
