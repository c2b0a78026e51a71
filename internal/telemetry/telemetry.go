// Package telemetry exports traces and logs over OTLP/HTTP.
package telemetry

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"cookflow/internal/config"
)

// Provider owns the exporters. A zero Provider is disabled.
type Provider struct {
	traces *sdktrace.TracerProvider
	logs   *sdklog.LoggerProvider
	name   string
}

func (p *Provider) Enabled() bool { return p != nil && p.traces != nil }

// Setup installs the global tracer and logger providers. Without an endpoint it returns
// a disabled Provider and the global no-op tracer stays in place.
func Setup(ctx context.Context, cfg config.TelemetryConfig) (*Provider, error) {
	if cfg.OTLPEndpoint == "" {
		return &Provider{}, nil
	}
	res := resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))

	traceExp, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(cfg.OTLPEndpoint))
	if err != nil {
		return nil, err
	}
	logExp, err := otlploghttp.New(ctx, otlploghttp.WithEndpointURL(cfg.OTLPEndpoint))
	if err != nil {
		return nil, errors.Join(err, traceExp.Shutdown(ctx))
	}

	p := &Provider{
		traces: sdktrace.NewTracerProvider(sdktrace.WithBatcher(traceExp), sdktrace.WithResource(res)),
		logs:   sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewBatchProcessor(logExp)), sdklog.WithResource(res)),
		name:   cfg.ServiceName,
	}
	otel.SetTracerProvider(p.traces)
	global.SetLoggerProvider(p.logs)
	return p, nil
}

// LogHandler bridges slog records to the OTLP log exporter. Nil when
// disabled.
func (p *Provider) LogHandler() slog.Handler {
	if !p.Enabled() {
		return nil
	}
	return otelslog.NewHandler(p.name, otelslog.WithLoggerProvider(p.logs))
}

func (p *Provider) Shutdown(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}
	return errors.Join(p.traces.Shutdown(ctx), p.logs.Shutdown(ctx))
}
