//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package telemetry holds span names, attribute keys and helpers shared by
// the graph engine and its telemetry exporters.
package telemetry

import (
	"context"
	"fmt"
	"os"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// telemetry service constants.
const (
	ServiceName      = "promeet-ai"
	ServiceVersion   = "v0.1.0"
	ServiceNamespace = "promeet"
	InstrumentName   = "promeet.graph"

	SpanNameExecuteGraph      = "execute_graph"
	SpanNamePrefixExecuteNode = "execute_node"
	SpanNamePrefixExecuteTool = "execute_tool"
)

const (
	// ProtocolGRPC uses gRPC protocol for OTLP exporter.
	ProtocolGRPC string = "grpc"
	// ProtocolHTTP uses HTTP protocol for OTLP exporter.
	ProtocolHTTP string = "http"
)

// telemetry attribute keys.
const (
	KeyThreadID    = "promeet.graph.thread_id"
	KeyNodeID      = "promeet.graph.node_id"
	KeyNodeType    = "promeet.graph.node_type"
	KeyCursor      = "promeet.graph.cursor"
	KeySequence    = "promeet.graph.sequence"
	KeyStatus      = "promeet.graph.status"
	KeyToolName    = "gen_ai.tool.name"
	KeyToolCallID  = "gen_ai.tool.call.id"
	KeyToolArgs    = "promeet.tool.call_args"
	KeyToolOutcome = "promeet.tool.outcome"
)

// maxAttrLen bounds string attributes so large tool payloads do not bloat spans.
const maxAttrLen = 4096

// NodeSpanName returns the span name for executing node id.
func NodeSpanName(id string) string {
	return fmt.Sprintf("%s %s", SpanNamePrefixExecuteNode, id)
}

// ToolSpanName returns the span name for executing tool name.
func ToolSpanName(name string) string {
	return fmt.Sprintf("%s %s", SpanNamePrefixExecuteTool, name)
}

// TraceNode annotates a node span.
func TraceNode(span trace.Span, threadID, nodeID, nodeType string, seq int64) {
	span.SetAttributes(
		attribute.String(KeyThreadID, threadID),
		attribute.String(KeyNodeID, nodeID),
		attribute.String(KeyNodeType, nodeType),
		attribute.Int64(KeySequence, seq),
	)
}

// TraceToolCall annotates a tool dispatch span.
func TraceToolCall(span trace.Span, name, callID string, args []byte, outcome string) {
	span.SetAttributes(
		attribute.String("gen_ai.operation.name", "tool.execute"),
		attribute.String(KeyToolName, name),
		attribute.String(KeyToolCallID, callID),
		attribute.String(KeyToolArgs, Truncate(string(args))),
		attribute.String(KeyToolOutcome, outcome),
	)
}

// Truncate shortens s to the attribute size limit on a rune boundary.
func Truncate(s string) string {
	if len(s) <= maxAttrLen {
		return s
	}
	cut := maxAttrLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "...(truncated)"
}

// Endpoint returns the collector address for an OTLP signal ("TRACES" or
// "METRICS"), preferring the signal-specific environment variable over the
// generic one and falling back to the protocol's local default.
func Endpoint(signal, protocol string) string {
	for _, key := range []string{"OTEL_EXPORTER_OTLP_" + signal + "_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	if protocol == ProtocolHTTP {
		return "localhost:4318"
	}
	return "localhost:4317"
}

// NewResource describes the running service to exporters.
func NewResource(ctx context.Context, serviceName string) (*resource.Resource, error) {
	if serviceName == "" {
		serviceName = ServiceName
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceNamespace(ServiceNamespace),
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(ServiceVersion),
	))
	if err != nil {
		return nil, fmt.Errorf("telemetry resource: %w", err)
	}
	return res, nil
}

// NewGRPCConn creates a new gRPC connection to the OpenTelemetry Collector.
func NewGRPCConn(endpoint string) (*grpc.ClientConn, error) {
	// Collectors run beside the service; the link is plaintext.
	conn, err := grpc.NewClient(endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection to collector: %w", err)
	}
	return conn, nil
}
