//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package metric defines the graph engine instruments and exports them over
// OTLP. Meter is a no-op until Start installs a provider.
package metric

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	itelemetry "github.com/phuocNg964/ProMeet-AI/internal/telemetry"
)

// Meter backs instruments created without an explicit meter.
var Meter metric.Meter = noop.Meter{}

// Instrument names.
const (
	NameNodeDuration  = "graph.node.duration"
	NameRunOutcome    = "graph.run.outcome"
	NameToolDispatch  = "graph.tool.dispatch"
	NameCheckpointOps = "graph.checkpoint.writes"
)

// GraphInstruments groups the instruments recorded by the executor and the
// tool loop.
type GraphInstruments struct {
	NodeDuration    metric.Float64Histogram
	RunOutcomes     metric.Int64Counter
	ToolDispatches  metric.Int64Counter
	CheckpointWrite metric.Int64Counter
}

// NewGraphInstruments creates the graph instruments on m, or on Meter when
// m is nil.
func NewGraphInstruments(m metric.Meter) (*GraphInstruments, error) {
	if m == nil {
		m = Meter
	}
	var (
		g   GraphInstruments
		err error
	)
	if g.NodeDuration, err = m.Float64Histogram(NameNodeDuration,
		metric.WithDescription("Node function execution time."),
		metric.WithUnit("ms")); err != nil {
		return nil, fmt.Errorf("create %s: %w", NameNodeDuration, err)
	}
	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&g.RunOutcomes, NameRunOutcome, "Graph run outcomes by status."},
		{&g.ToolDispatches, NameToolDispatch, "Tool dispatches by tool and outcome."},
		{&g.CheckpointWrite, NameCheckpointOps, "Checkpoint writes by source."},
	}
	for _, c := range counters {
		if *c.dst, err = m.Int64Counter(c.name, metric.WithDescription(c.desc)); err != nil {
			return nil, fmt.Errorf("create %s: %w", c.name, err)
		}
	}
	return &g, nil
}

// Option configures Start.
type Option func(*options)

type options struct {
	endpoint string
	protocol string
	service  string
	interval time.Duration
}

// WithEndpoint sets the collector host:port. Empty consults
// OTEL_EXPORTER_OTLP_METRICS_ENDPOINT and OTEL_EXPORTER_OTLP_ENDPOINT.
func WithEndpoint(endpoint string) Option {
	return func(o *options) { o.endpoint = endpoint }
}

// WithProtocol selects "grpc" (default) or "http" export.
func WithProtocol(protocol string) Option {
	return func(o *options) { o.protocol = protocol }
}

// WithServiceName overrides the reported service name.
func WithServiceName(name string) Option {
	return func(o *options) { o.service = name }
}

// WithInterval sets how often metrics are pushed. Zero keeps the SDK default.
func WithInterval(d time.Duration) Option {
	return func(o *options) { o.interval = d }
}

// Start installs a periodic OTLP meter provider and points Meter at it.
// Executors created afterwards record through it.
func Start(ctx context.Context, opts ...Option) (func() error, error) {
	o := &options{protocol: itelemetry.ProtocolGRPC}
	for _, opt := range opts {
		opt(o)
	}
	if o.endpoint == "" {
		o.endpoint = itelemetry.Endpoint("METRICS", o.protocol)
	}
	res, err := itelemetry.NewResource(ctx, o.service)
	if err != nil {
		return nil, err
	}
	exporter, err := newExporter(ctx, o)
	if err != nil {
		return nil, fmt.Errorf("metric exporter: %w", err)
	}
	var readerOpts []sdkmetric.PeriodicReaderOption
	if o.interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(o.interval))
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(provider)
	Meter = provider.Meter(itelemetry.InstrumentName)

	return func() error {
		if err := provider.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown meter provider: %w", err)
		}
		return nil
	}, nil
}

func newExporter(ctx context.Context, o *options) (sdkmetric.Exporter, error) {
	if o.protocol == itelemetry.ProtocolHTTP {
		return otlpmetrichttp.New(ctx,
			otlpmetrichttp.WithEndpoint(o.endpoint),
			otlpmetrichttp.WithInsecure(),
		)
	}
	conn, err := itelemetry.NewGRPCConn(o.endpoint)
	if err != nil {
		return nil, err
	}
	return otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithGRPCConn(conn))
}
