// Package telemetry implements core.Telemetry with OpenTelemetry tracing and
// metrics, plus an instrumented HTTP transport for backend calls.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/itsneelabh/storefront/core"
)

const instrumentationName = "github.com/itsneelabh/storefront"

// Provider implements core.Telemetry with OpenTelemetry
type Provider struct {
	tracer        trace.Tracer
	meter         metric.Meter
	traceProvider *sdktrace.TracerProvider
	meterProvider *sdkmetric.MeterProvider
	reader        *sdkmetric.ManualReader

	mu       sync.Mutex
	counters map[string]metric.Float64Counter
	logger   core.Logger
}

// Options configures a Provider beyond what core.TelemetryConfig holds.
type Options struct {
	// SpanExporter overrides the exporter chosen from the config (tests).
	SpanExporter sdktrace.SpanExporter
	// StdoutWriter is where the stdout exporter writes; os.Stdout when nil.
	StdoutWriter io.Writer
	Version      string
	Logger       core.Logger
}

// New builds a provider from configuration. When telemetry is disabled it
// returns a core.NoOpTelemetry and a no-op shutdown function.
func New(ctx context.Context, cfg core.TelemetryConfig, opts Options) (core.Telemetry, func(context.Context) error, error) {
	if !cfg.Enabled {
		return &core.NoOpTelemetry{}, func(context.Context) error { return nil }, nil
	}
	p, err := NewProvider(ctx, cfg, opts)
	if err != nil {
		return nil, nil, err
	}
	return p, p.Shutdown, nil
}

// NewProvider creates a new OpenTelemetry provider
func NewProvider(ctx context.Context, cfg core.TelemetryConfig, opts Options) (*Provider, error) {
	logger := core.ComponentLogger(opts.Logger, "storefront/telemetry")

	version := opts.Version
	if version == "" {
		version = "dev"
	}
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "storefront"
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter := opts.SpanExporter
	if exporter == nil {
		exporter, err = newSpanExporter(ctx, cfg, opts.StdoutWriter)
		if err != nil {
			return nil, err
		}
	}

	sampler := sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SamplingRate))
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	logger.Info("Telemetry enabled", map[string]interface{}{
		"exporter":      cfg.Exporter,
		"endpoint":      cfg.Endpoint,
		"service_name":  serviceName,
		"sampling_rate": cfg.SamplingRate,
	})

	return &Provider{
		tracer:        tp.Tracer(instrumentationName),
		meter:         mp.Meter(instrumentationName),
		traceProvider: tp,
		meterProvider: mp,
		reader:        reader,
		counters:      make(map[string]metric.Float64Counter),
		logger:        logger,
	}, nil
}

func newSpanExporter(ctx context.Context, cfg core.TelemetryConfig, w io.Writer) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case "otlp":
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
		}
		grpcOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
		if cfg.Insecure {
			grpcOpts = append(grpcOpts, otlptracegrpc.WithInsecure())
		}
		exporter, err := otlptracegrpc.New(ctx, grpcOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create otlp exporter: %w", err)
		}
		return exporter, nil
	case "stdout", "":
		if w == nil {
			w = os.Stdout
		}
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
		return exporter, nil
	default:
		return nil, fmt.Errorf("unknown telemetry exporter %q: %w", cfg.Exporter, core.ErrInvalidConfiguration)
	}
}

// StartSpan starts a new telemetry span
func (p *Provider) StartSpan(ctx context.Context, name string) (context.Context, core.Span) {
	ctx, span := p.tracer.Start(ctx, name)
	return ctx, &otelSpan{span: span}
}

// RecordMetric adds value to the counter called name. Counters are created
// on first use and cached.
func (p *Provider) RecordMetric(name string, value float64, labels map[string]string) {
	counter, err := p.counter(name)
	if err != nil {
		p.logger.Warn("Failed to create metric instrument", map[string]interface{}{
			"metric": name,
			"error":  err.Error(),
		})
		return
	}

	attrs := make([]attribute.KeyValue, 0, len(labels))
	for k, v := range labels {
		attrs = append(attrs, attribute.String(k, v))
	}
	counter.Add(context.Background(), value, metric.WithAttributes(attrs...))
}

func (p *Provider) counter(name string) (metric.Float64Counter, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.counters[name]; ok {
		return c, nil
	}
	c, err := p.meter.Float64Counter(name)
	if err != nil {
		return nil, err
	}
	p.counters[name] = c
	return c, nil
}

// Collect returns the current metric values.
func (p *Provider) Collect(ctx context.Context) (metricdata.ResourceMetrics, error) {
	var rm metricdata.ResourceMetrics
	err := p.reader.Collect(ctx, &rm)
	return rm, err
}

// CounterTotals sums every counter data point by metric name.
func (p *Provider) CounterTotals(ctx context.Context) (map[string]float64, error) {
	rm, err := p.Collect(ctx)
	if err != nil {
		return nil, err
	}
	totals := make(map[string]float64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[float64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				totals[m.Name] += dp.Value
			}
		}
	}
	return totals, nil
}

// HTTPTransport wraps base with OpenTelemetry client instrumentation using
// this provider's tracer.
func (p *Provider) HTTPTransport(base http.RoundTripper) http.RoundTripper {
	return otelhttp.NewTransport(base, otelhttp.WithTracerProvider(p.traceProvider))
}

// Shutdown flushes pending spans and stops both providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	return errors.Join(
		p.traceProvider.Shutdown(ctx),
		p.meterProvider.Shutdown(ctx),
	)
}

// HTTPTransport wraps base with OpenTelemetry instrumentation when t is a
// Provider and returns base unchanged otherwise.
func HTTPTransport(t core.Telemetry, base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	if p, ok := t.(*Provider); ok {
		return p.HTTPTransport(base)
	}
	return base
}

// otelSpan wraps an OpenTelemetry span to implement core.Span
type otelSpan struct {
	span trace.Span
}

func (s *otelSpan) End() {
	s.span.End()
}

func (s *otelSpan) SetAttribute(key string, value interface{}) {
	switch v := value.(type) {
	case string:
		s.span.SetAttributes(attribute.String(key, v))
	case int:
		s.span.SetAttributes(attribute.Int(key, v))
	case int64:
		s.span.SetAttributes(attribute.Int64(key, v))
	case float64:
		s.span.SetAttributes(attribute.Float64(key, v))
	case bool:
		s.span.SetAttributes(attribute.Bool(key, v))
	default:
		s.span.SetAttributes(attribute.String(key, fmt.Sprintf("%v", v)))
	}
}

func (s *otelSpan) RecordError(err error) {
	s.span.RecordError(err)
}
