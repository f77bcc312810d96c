package telemetry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/claimlens/claimlens/internal/claims"
	"github.com/claimlens/claimlens/internal/config"
	"github.com/claimlens/claimlens/internal/nlp"
	"github.com/claimlens/claimlens/internal/redact"
)

const instrumentationName = "github.com/claimlens/claimlens"

// Provider wires tracer/meter providers and exposes helpers.
type Provider struct {
	Enabled bool
	tracer  trace.Tracer
	meter   metric.Meter

	analysesCounter       metric.Int64Counter
	analysisDuration      metric.Float64Histogram
	stageFailures         metric.Int64Counter
	shutdownTraceProvider func(context.Context) error
	shutdownMeterProvider func(context.Context) error
}

// NewProvider configures OTLP exporters and providers. When disabled, it
// returns no-op providers.
func NewProvider(ctx context.Context, cfg config.TelemetryConfig, version string) (*Provider, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !cfg.Enabled {
		no := &Provider{
			Enabled: false,
			tracer:  tracenoop.NewTracerProvider().Tracer(""),
			meter:   metricnoop.NewMeterProvider().Meter(""),
		}
		no.initInstruments()
		return no, nil
	}

	protocol := strings.ToLower(strings.TrimSpace(cfg.Protocol))
	redact.Logf("telemetry enabled (OpenTelemetry OTLP %s) endpoint=%s; if no collector is listening, periodic upload warnings are expected", protocol, cfg.Endpoint)

	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("service.version", version),
		),
	)
	if err != nil {
		return nil, err
	}

	var (
		spanExporter sdktrace.SpanExporter
		metricReader sdkmetric.Reader
	)
	switch protocol {
	case "", "grpc":
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
		mopts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
			mopts = append(mopts, otlpmetricgrpc.WithInsecure())
		}
		if spanExporter, err = otlptracegrpc.New(ctx, opts...); err != nil {
			return nil, err
		}
		mexp, err := otlpmetricgrpc.New(ctx, mopts...)
		if err != nil {
			return nil, err
		}
		metricReader = sdkmetric.NewPeriodicReader(mexp)
	case "http":
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
		mopts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
			mopts = append(mopts, otlpmetrichttp.WithInsecure())
		}
		if spanExporter, err = otlptracehttp.New(ctx, opts...); err != nil {
			return nil, err
		}
		mexp, err := otlpmetrichttp.New(ctx, mopts...)
		if err != nil {
			return nil, err
		}
		metricReader = sdkmetric.NewPeriodicReader(mexp)
	default:
		return nil, fmt.Errorf("unsupported telemetry protocol %q", cfg.Protocol)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(spanExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithResource(res), sdkmetric.WithReader(metricReader))
	otel.SetMeterProvider(mp)

	p := &Provider{
		Enabled:               true,
		tracer:                tp.Tracer(instrumentationName),
		meter:                 mp.Meter(instrumentationName),
		shutdownTraceProvider: tp.Shutdown,
		shutdownMeterProvider: mp.Shutdown,
	}
	p.initInstruments()
	return p, nil
}

func (p *Provider) initInstruments() {
	if p == nil {
		return
	}
	// Telemetry is best-effort; instrument errors leave nil instruments that record nothing.
	p.analysesCounter, _ = p.meter.Int64Counter("claimlens.analyses")
	p.analysisDuration, _ = p.meter.Float64Histogram("claimlens.analysis.duration", metric.WithUnit("ms"))
	p.stageFailures, _ = p.meter.Int64Counter("claimlens.stage.failures")
}

// Tracer returns the tracer.
func (p *Provider) Tracer() trace.Tracer {
	if p == nil {
		return tracenoop.NewTracerProvider().Tracer("")
	}
	return p.tracer
}

// Meter returns the meter.
func (p *Provider) Meter() metric.Meter {
	if p == nil {
		return metricnoop.NewMeterProvider().Meter("")
	}
	return p.meter
}

// Shutdown flushes providers.
func (p *Provider) Shutdown(ctx context.Context) {
	if p == nil {
		return
	}
	if p.shutdownTraceProvider != nil {
		_ = p.shutdownTraceProvider(ctx)
	}
	if p.shutdownMeterProvider != nil {
		_ = p.shutdownMeterProvider(ctx)
	}
}

// AnalysisDone emits OTLP counters/histograms with tier labels only.
func (p *Provider) AnalysisDone(res *claims.AnalysisResult, elapsed time.Duration) {
	if p == nil || res == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("claims.severity", string(res.Severity)),
		attribute.String("claims.fraud_risk", string(res.FraudRisk)),
	)
	if p.analysesCounter != nil {
		p.analysesCounter.Add(context.Background(), 1, attrs)
	}
	if p.analysisDuration != nil {
		p.analysisDuration.Record(context.Background(), float64(elapsed.Microseconds())/1000, attrs)
	}
}

// StageFailed counts a failed pipeline stage.
func (p *Provider) StageFailed(stage string, err error) {
	if p == nil || p.stageFailures == nil {
		return
	}
	p.stageFailures.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("claims.stage", stage),
		attribute.Bool("claims.model_unavailable", errors.Is(err, nlp.ErrModelUnavailable)),
	))
}
