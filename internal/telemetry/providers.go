package telemetry

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	logglobal "go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Providers wraps the configured OpenTelemetry providers and exposes a
// single Shutdown call.
type Providers struct {
	TracerProvider *sdktrace.TracerProvider
	LoggerProvider *sdklog.LoggerProvider
	MeterProvider  *sdkmetric.MeterProvider
}

// Option customizes New's defaults.
type Option func(*config)

type config struct {
	tracerProvider  *sdktrace.TracerProvider
	loggerProvider  *sdklog.LoggerProvider
	prometheusPort  bool
	extraReaders    []sdkmetric.Reader
	traceProcessors []sdktrace.SpanProcessor

	otlpTraceEndpoint string
	otlpLogEndpoint   string
	otlpInsecure      bool
}

// WithTracerProvider installs a preconfigured TracerProvider instead of
// letting New build a default one.
func WithTracerProvider(tp *sdktrace.TracerProvider) Option {
	return func(c *config) { c.tracerProvider = tp }
}

// WithLoggerProvider installs a preconfigured LoggerProvider.
func WithLoggerProvider(lp *sdklog.LoggerProvider) Option {
	return func(c *config) { c.loggerProvider = lp }
}

// WithPrometheusExporter adds a Prometheus pull-based metric reader,
// exposing queue-depth/task-throughput/push-outcome/replication-lag
// instruments in Prometheus exposition format.
func WithPrometheusExporter() Option {
	return func(c *config) { c.prometheusPort = true }
}

// WithSpanProcessor appends a SpanProcessor to the default TracerProvider.
// Ignored if WithTracerProvider was also given.
func WithSpanProcessor(sp sdktrace.SpanProcessor) Option {
	return func(c *config) { c.traceProcessors = append(c.traceProcessors, sp) }
}

// WithOTLPTraceEndpoint exports spans (executor invocation, persistence,
// push delivery, replication send — see the a2asrv call sites) to an OTLP
// HTTP collector at endpoint (host:port, no scheme) via a
// batching span processor. Ignored if WithTracerProvider was also given.
func WithOTLPTraceEndpoint(endpoint string) Option {
	return func(c *config) { c.otlpTraceEndpoint = endpoint }
}

// WithOTLPLogEndpoint exports log records to an OTLP collector at
// endpoint via a batching log processor. Ignored if WithLoggerProvider
// was also given.
func WithOTLPLogEndpoint(endpoint string) Option {
	return func(c *config) { c.otlpLogEndpoint = endpoint }
}

// WithOTLPInsecure disables TLS on the OTLP exporters configured by
// WithOTLPTraceEndpoint/WithOTLPLogEndpoint. Intended for local collectors
// only.
func WithOTLPInsecure() Option {
	return func(c *config) { c.otlpInsecure = true }
}

func configure(opts ...Option) *config {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// New initializes the core's telemetry providers. Callers must invoke
// [Providers.Shutdown] to flush and release resources, and
// [Providers.SetGlobalOtelProviders] to make them the process-wide default.
func New(ctx context.Context, opts ...Option) (*Providers, error) {
	cfg := configure(opts...)

	p := &Providers{
		TracerProvider: cfg.tracerProvider,
		LoggerProvider: cfg.loggerProvider,
	}

	if p.TracerProvider == nil {
		traceProcessors := cfg.traceProcessors
		if cfg.otlpTraceEndpoint != "" {
			traceOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.otlpTraceEndpoint)}
			if cfg.otlpInsecure {
				traceOpts = append(traceOpts, otlptracehttp.WithInsecure())
			}
			exporter, err := otlptracehttp.New(ctx, traceOpts...)
			if err != nil {
				return nil, err
			}
			traceProcessors = append(traceProcessors, sdktrace.NewBatchSpanProcessor(exporter))
		}
		tpOpts := make([]sdktrace.TracerProviderOption, 0, len(traceProcessors))
		for _, sp := range traceProcessors {
			tpOpts = append(tpOpts, sdktrace.WithSpanProcessor(sp))
		}
		p.TracerProvider = sdktrace.NewTracerProvider(tpOpts...)
	}

	if p.LoggerProvider == nil {
		var logOpts []sdklog.LoggerProviderOption
		if cfg.otlpLogEndpoint != "" {
			logExportOpts := []otlploghttp.Option{otlploghttp.WithEndpoint(cfg.otlpLogEndpoint)}
			if cfg.otlpInsecure {
				logExportOpts = append(logExportOpts, otlploghttp.WithInsecure())
			}
			exporter, err := otlploghttp.New(ctx, logExportOpts...)
			if err != nil {
				return nil, err
			}
			logOpts = append(logOpts, sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)))
		}
		p.LoggerProvider = sdklog.NewLoggerProvider(logOpts...)
	}

	var readers []sdkmetric.Option
	if cfg.prometheusPort {
		exporter, err := prometheus.New()
		if err != nil {
			return nil, err
		}
		readers = append(readers, sdkmetric.WithReader(exporter))
	}
	for _, r := range cfg.extraReaders {
		readers = append(readers, sdkmetric.WithReader(r))
	}
	p.MeterProvider = sdkmetric.NewMeterProvider(readers...)

	return p, nil
}

// Shutdown shuts down the underlying providers, joining any errors.
func (p *Providers) Shutdown(ctx context.Context) error {
	var err error
	if p.TracerProvider != nil {
		if e := p.TracerProvider.Shutdown(ctx); e != nil {
			err = errors.Join(err, e)
		}
	}
	if p.LoggerProvider != nil {
		if e := p.LoggerProvider.Shutdown(ctx); e != nil {
			err = errors.Join(err, e)
		}
	}
	if p.MeterProvider != nil {
		if e := p.MeterProvider.Shutdown(ctx); e != nil {
			err = errors.Join(err, e)
		}
	}
	return err
}

// SetGlobalOtelProviders registers p's providers as the process-wide
// global OTel providers.
func (p *Providers) SetGlobalOtelProviders() {
	if p.TracerProvider != nil {
		otel.SetTracerProvider(p.TracerProvider)
	}
	if p.LoggerProvider != nil {
		logglobal.SetLoggerProvider(p.LoggerProvider)
	}
	if p.MeterProvider != nil {
		otel.SetMeterProvider(p.MeterProvider)
	}
}
