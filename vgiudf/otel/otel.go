// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package vgiotel provides OpenTelemetry instrumentation for vgi-udf
// dispatchers. It implements the [vgiudf.DispatchHook] interface to add
// distributed tracing and metrics to UDF dispatch.
//
// Usage:
//
//	dispatcher := vgiudf.NewDispatcher(registry)
//	vgiotel.InstrumentDispatcher(dispatcher, vgiotel.DefaultConfig())
package vgiotel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Query-farm/vgi-udf/vgiudf"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "vgi_udf"

// OtelConfig configures OpenTelemetry instrumentation for a vgi-udf
// dispatcher.
type OtelConfig struct {
	// TracerProvider supplies the tracer. Defaults to otel.GetTracerProvider().
	TracerProvider trace.TracerProvider
	// MeterProvider supplies the meter. Defaults to otel.GetMeterProvider().
	MeterProvider metric.MeterProvider
	// EnableTracing enables span creation. Default true.
	EnableTracing bool
	// EnableMetrics enables counter and histogram recording. Default true.
	EnableMetrics bool
	// RecordExceptions calls RecordError on the span for failed dispatches.
	// Default true.
	RecordExceptions bool
	// ServiceName is the udf.service attribute value.
	// Defaults to Dispatcher.HostID() or "GoUdfDispatcher".
	ServiceName string
	// CustomAttributes are added to every span.
	CustomAttributes []attribute.KeyValue
}

// DefaultConfig returns an OtelConfig with sensible defaults.
// TracerProvider and MeterProvider are resolved from the global OTel SDK
// at instrumentation time.
func DefaultConfig() OtelConfig {
	return OtelConfig{
		EnableTracing:    true,
		EnableMetrics:    true,
		RecordExceptions: true,
	}
}

// InstrumentDispatcher attaches OpenTelemetry instrumentation to a vgi-udf
// dispatcher. The hook is installed via [vgiudf.Dispatcher.SetDispatchHook].
func InstrumentDispatcher(d *vgiudf.Dispatcher, cfg OtelConfig) {
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = otel.GetTracerProvider()
	}
	if cfg.MeterProvider == nil {
		cfg.MeterProvider = otel.GetMeterProvider()
	}
	if cfg.ServiceName == "" {
		if id := d.HostID(); id != "" {
			cfg.ServiceName = id
		} else {
			cfg.ServiceName = "GoUdfDispatcher"
		}
	}

	hook := &otelHook{
		cfg:    cfg,
		tracer: cfg.TracerProvider.Tracer(instrumentationName),
	}

	if cfg.EnableMetrics {
		meter := cfg.MeterProvider.Meter(instrumentationName)
		hook.dispatchCounter, _ = meter.Int64Counter("udf.dispatch.requests",
			metric.WithUnit("{dispatch}"),
			metric.WithDescription("Number of UDF dispatches"),
		)
		hook.durationHistogram, _ = meter.Float64Histogram("udf.dispatch.duration",
			metric.WithUnit("s"),
			metric.WithDescription("Duration of UDF dispatches"),
		)
	}

	d.SetDispatchHook(hook)
}

// otelHook implements vgiudf.DispatchHook with OpenTelemetry tracing and metrics.
type otelHook struct {
	cfg               OtelConfig
	tracer            trace.Tracer
	dispatchCounter   metric.Int64Counter
	durationHistogram metric.Float64Histogram
}

// spanToken is the HookToken returned by OnDispatchStart.
type spanToken struct {
	span      trace.Span
	startTime time.Time
}

// OnDispatchStart starts a span for the dispatch.
func (h *otelHook) OnDispatchStart(ctx context.Context, info vgiudf.DispatchInfo) (context.Context, vgiudf.HookToken) {
	if !h.cfg.EnableTracing {
		return ctx, &spanToken{startTime: time.Now()}
	}

	spanName := fmt.Sprintf("vgi_udf/%s.%s", info.Collection, info.Function)

	attrs := []attribute.KeyValue{
		attribute.String("udf.system", "vgi_udf"),
		attribute.String("udf.service", h.cfg.ServiceName),
		attribute.String("udf.collection", info.Collection),
		attribute.String("udf.function", info.Function),
		attribute.String("udf.mode", info.Mode),
		attribute.String("udf.host_id", info.HostID),
		attribute.String("udf.invocation_id", info.InvocationID),
		attribute.Bool("udf.supertype_unification", info.UnifySupertypes),
	}
	attrs = append(attrs, h.cfg.CustomAttributes...)

	ctx, span := h.tracer.Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)

	return ctx, &spanToken{span: span, startTime: time.Now()}
}

// OnDispatchEnd records span attributes, metrics, and ends the span.
func (h *otelHook) OnDispatchEnd(ctx context.Context, token vgiudf.HookToken, info vgiudf.DispatchInfo, stats *vgiudf.CallStatistics, err error) {
	st, ok := token.(*spanToken)
	if !ok {
		return
	}

	duration := time.Since(st.startTime)

	status := "ok"
	if err != nil {
		status = "error"
	}

	// Record metrics
	if h.cfg.EnableMetrics {
		metricAttrs := metric.WithAttributes(
			attribute.String("udf.system", "vgi_udf"),
			attribute.String("udf.service", h.cfg.ServiceName),
			attribute.String("udf.collection", info.Collection),
			attribute.String("udf.function", info.Function),
			attribute.String("udf.mode", info.Mode),
			attribute.String("status", status),
		)
		if h.dispatchCounter != nil {
			h.dispatchCounter.Add(ctx, 1, metricAttrs)
		}
		if h.durationHistogram != nil {
			h.durationHistogram.Record(ctx, duration.Seconds(), metricAttrs)
		}
	}

	// Record span attributes and status
	if st.span != nil && st.span.IsRecording() {
		if stats != nil {
			st.span.SetAttributes(
				attribute.Int64("udf.input_columns", stats.InputColumns),
				attribute.Int64("udf.input_rows", stats.InputRows),
				attribute.Int64("udf.input_bytes", stats.InputBytes),
				attribute.Int64("udf.config_bytes", stats.ConfigBytes),
				attribute.Int64("udf.output_rows", stats.OutputRows),
				attribute.Int64("udf.output_bytes", stats.OutputBytes),
			)
		}

		if err != nil {
			st.span.SetStatus(codes.Error, err.Error())
			if h.cfg.RecordExceptions {
				st.span.RecordError(err)
			}
			// Set failure kind attribute
			errType := fmt.Sprintf("%T", err)
			var pe *vgiudf.PluginError
			if errors.As(err, &pe) {
				errType = pe.Kind.String()
			}
			st.span.SetAttributes(attribute.String("udf.failure_kind", errType))
		} else {
			st.span.SetStatus(codes.Ok, "")
		}

		st.span.End()
	}
}
