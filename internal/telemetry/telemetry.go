// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry is the optional tracing/metrics/audit collaborator
// a host may inject via router.WithTelemetry (SPEC_FULL.md §6): a span
// helper (StartSpan), node-invocation and validation-failure counters,
// a compile-duration histogram, and an InfluxDB audit sink for
// submission outcomes. Within this module internal/eval feeds the two
// counters and internal/router feeds the audit sink; nothing starts a
// span or records a compile duration. Absent, evaluation runs against a Provider built
// from otel's no-op globals, grounded on cmd/trace/main.go's bare
// otel.Tracer("aleutian.trace") usage — span calls are always safe even
// with no exporter configured.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	stdoutmetric "go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	stdouttrace "go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const tracerName = "formengine"
const meterName = "formengine"

// Provider bundles the tracer and metric instruments the evaluator and
// router emit against. A Provider returned by NewNoop is safe to use
// and produces no exported data.
type Provider struct {
	tracer oteltrace.Tracer
	meter  metric.Meter

	nodeInvocations metric.Int64Counter
	validationFails metric.Int64Counter
	compileDuration metric.Float64Histogram

	shutdown func(context.Context) error
}

// Option configures a Provider at construction.
type Option func(*providerConfig)

type providerConfig struct {
	otlpEndpoint      string
	prometheusEnabled bool
	logger            *slog.Logger
}

// WithOTLPEndpoint exports traces via OTLP gRPC to endpoint instead of
// the stdout trace exporter used for local development. The metric
// reader is unaffected.
func WithOTLPEndpoint(endpoint string) Option {
	return func(c *providerConfig) { c.otlpEndpoint = endpoint }
}

// WithPrometheus uses a Prometheus metric reader
// (go.opentelemetry.io/otel/exporters/prometheus) in place of the
// stdout metric exporter. This module mounts no HTTP scrape endpoint
// for it.
func WithPrometheus() Option {
	return func(c *providerConfig) { c.prometheusEnabled = true }
}

// WithLogger sets the logger used for provider setup diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *providerConfig) { c.logger = logger }
}

// New constructs a Provider, wiring a stdout trace exporter (an OTLP
// gRPC one when WithOTLPEndpoint is given) and a stdout metric exporter
// (a Prometheus reader when WithPrometheus is given), and registering the form engine's three instruments: a
// node-invocation counter, a validation-failure counter, and a
// compile-duration histogram (SPEC_FULL.md §2.2).
func New(ctx context.Context, opts ...Option) (*Provider, error) {
	cfg := &providerConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	traceExporter, err := newTraceExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(traceExporter))
	otel.SetTracerProvider(tp)

	metricReader, err := newMetricReader(ctx, cfg)
	if err != nil {
		return nil, err
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(metricReader))
	otel.SetMeterProvider(mp)

	meter := mp.Meter(meterName)
	nodeInvocations, err := meter.Int64Counter("formengine.node.invocations",
		metric.WithDescription("count of thunk evaluator Invoke calls, by node kind"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: creating node invocation counter: %w", err)
	}
	validationFails, err := meter.Int64Counter("formengine.validation.failures",
		metric.WithDescription("count of VALIDATION expressions that failed on SUBMIT"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: creating validation failure counter: %w", err)
	}
	compileDuration, err := meter.Float64Histogram("formengine.compile.duration_ms",
		metric.WithDescription("time to compile a form definition into an Artefact"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: creating compile duration histogram: %w", err)
	}

	return &Provider{
		tracer:          tp.Tracer(tracerName),
		meter:           meter,
		nodeInvocations: nodeInvocations,
		validationFails: validationFails,
		compileDuration: compileDuration,
		shutdown: func(ctx context.Context) error {
			if err := tp.Shutdown(ctx); err != nil {
				return err
			}
			return mp.Shutdown(ctx)
		},
	}, nil
}

// NewNoop returns a Provider backed by otel's global no-op
// implementations: every method is safe to call and simply does
// nothing, for hosts that don't configure telemetry.
func NewNoop() *Provider {
	return &Provider{
		tracer:   noop.NewTracerProvider().Tracer(tracerName),
		meter:    nil,
		shutdown: func(context.Context) error { return nil },
	}
}

func newTraceExporter(ctx context.Context, cfg *providerConfig) (sdktrace.SpanExporter, error) {
	if cfg.otlpEndpoint != "" {
		exp, err := otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(cfg.otlpEndpoint), otlptracegrpc.WithInsecure())
		if err != nil {
			return nil, fmt.Errorf("telemetry: creating OTLP trace exporter: %w", err)
		}
		return exp, nil
	}
	exp, err := stdouttrace.New(stdouttrace.WithoutTimestamps())
	if err != nil {
		return nil, fmt.Errorf("telemetry: creating stdout trace exporter: %w", err)
	}
	return exp, nil
}

func newMetricReader(_ context.Context, cfg *providerConfig) (sdkmetric.Reader, error) {
	if cfg.prometheusEnabled {
		reader, err := prometheus.New()
		if err != nil {
			return nil, fmt.Errorf("telemetry: creating Prometheus reader: %w", err)
		}
		return reader, nil
	}
	exp, err := stdoutmetric.New()
	if err != nil {
		return nil, fmt.Errorf("telemetry: creating stdout metric exporter: %w", err)
	}
	return sdkmetric.NewPeriodicReader(exp), nil
}

// Shutdown flushes and releases the provider's exporters.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.shutdown == nil {
		return nil
	}
	return p.shutdown(ctx)
}

// StartSpan starts a span named name under the form engine's tracer.
func (p *Provider) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, oteltrace.Span) {
	return p.tracer.Start(ctx, name, oteltrace.WithAttributes(attrs...))
}

// RecordInvocation increments the node-invocation counter for kind.
func (p *Provider) RecordInvocation(ctx context.Context, kind, subtype string) {
	if p.nodeInvocations == nil {
		return
	}
	p.nodeInvocations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("subtype", subtype),
	))
}

// RecordValidationFailure increments the validation-failure counter for
// fieldCode.
func (p *Provider) RecordValidationFailure(ctx context.Context, fieldCode string) {
	if p.validationFails == nil {
		return
	}
	p.validationFails.Add(ctx, 1, metric.WithAttributes(attribute.String("field_code", fieldCode)))
}

// RecordCompileDuration records the time taken to compile a form, in
// milliseconds.
func (p *Provider) RecordCompileDuration(ctx context.Context, ms float64, formCode string) {
	if p.compileDuration == nil {
		return
	}
	p.compileDuration.Record(ctx, ms, metric.WithAttributes(attribute.String("form_code", formCode)))
}
