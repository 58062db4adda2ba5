package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	allocations          metric.Int64Counter
	allocationFailures   metric.Int64Counter
	materializedCharges  metric.Int64Counter
	concurrencyConflicts metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("deployment.environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	return provider, nil
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "", "grpc":
		return otlpmetricgrpc.New(context.Background(),
			otlpmetricgrpc.WithEndpoint(endpoint),
			otlpmetricgrpc.WithInsecure(),
		)
	case "http":
		return otlpmetrichttp.New(context.Background(),
			otlpmetrichttp.WithEndpoint(endpoint),
			otlpmetrichttp.WithInsecure(),
		)
	default:
		return nil, fmt.Errorf("unsupported metrics exporter protocol %q", protocol)
	}
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "quorum"
	}
	meter := provider.Meter(name)

	allocations, err := meter.Int64Counter("quorum_ledger_allocations_total")
	if err != nil {
		return nil, err
	}
	allocationFailures, err := meter.Int64Counter("quorum_ledger_allocation_failures_total")
	if err != nil {
		return nil, err
	}
	materializedCharges, err := meter.Int64Counter("quorum_recurring_materialized_charges_total")
	if err != nil {
		return nil, err
	}
	concurrencyConflicts, err := meter.Int64Counter("quorum_ledger_concurrency_conflicts_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		allocations:          allocations,
		allocationFailures:   allocationFailures,
		materializedCharges:  materializedCharges,
		concurrencyConflicts: concurrencyConflicts,
	}, nil
}

// RecordAllocation increments successful allocation counts.
func (m *Metrics) RecordAllocation(ctx context.Context) {
	if m == nil {
		return
	}
	m.allocations.Add(ctx, 1)
}

// RecordAllocationFailure increments failed allocation counts by error kind.
func (m *Metrics) RecordAllocationFailure(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.allocationFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordMaterializedCharge increments recurring charge materialization counts.
func (m *Metrics) RecordMaterializedCharge(ctx context.Context) {
	if m == nil {
		return
	}
	m.materializedCharges.Add(ctx, 1)
}

// RecordConcurrencyConflict increments per-entity lock contention counts.
func (m *Metrics) RecordConcurrencyConflict(ctx context.Context, entity string) {
	if m == nil {
		return
	}
	m.concurrencyConflicts.Add(ctx, 1, metric.WithAttributes(attribute.String("entity", entity)))
}
