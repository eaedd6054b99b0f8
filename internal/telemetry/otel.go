package telemetry

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	constants "hostmon/config"
	"hostmon/internal/snapshot"
)

// OTelConfig configures the OTLP/HTTP metric exporter
type OTelConfig struct {
	Endpoint string
	Headers  map[string]string
	Interval time.Duration
	Hostname string
	Version  string
}

// SnapshotFunc returns the latest snapshot or nil
type SnapshotFunc func() *snapshot.Snapshot

// Exporter pushes snapshot gauges to an OTLP collector
type Exporter struct {
	provider *sdkmetric.MeterProvider
}

// StartOTel builds the exporter and starts the periodic reader. Gauges
// read whatever latest returns at collection time.
func StartOTel(ctx context.Context, cfg OTelConfig, latest SnapshotFunc) (*Exporter, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("OTLP endpoint is empty")
	}

	exporter, err := otlpmetrichttp.New(ctx,
		otlpmetrichttp.WithEndpoint(cfg.Endpoint),
		otlpmetrichttp.WithURLPath(constants.OTLP_PATH),
		otlpmetrichttp.WithHeaders(cfg.Headers),
		otlpmetrichttp.WithRetry(otlpmetrichttp.RetryConfig{
			Enabled:         true,
			InitialInterval: 5 * time.Second,
			MaxInterval:     30 * time.Second,
			MaxElapsedTime:  2 * time.Minute,
		}),
		otlpmetrichttp.WithTimeout(30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Duration(constants.DEFAULT_OTEL_INTERVAL_MS) * time.Millisecond
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(newResource(cfg)),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	)

	if err := registerGauges(provider.Meter(constants.APP_NAME), latest); err != nil {
		_ = provider.Shutdown(ctx)
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	return &Exporter{provider: provider}, nil
}

// Shutdown flushes and stops the exporter
func (e *Exporter) Shutdown(ctx context.Context) error {
	if e == nil || e.provider == nil {
		return nil
	}
	return e.provider.Shutdown(ctx)
}

func newResource(cfg OTelConfig) *resource.Resource {
	hostname := cfg.Hostname
	if hostname == "" {
		hostname, _ = os.Hostname()
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	// Not merged with resource.Default() to avoid schema URL conflicts
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(constants.APP_NAME),
		semconv.ServiceVersion(version),
		semconv.HostName(hostname),
		attribute.String("os.type", runtime.GOOS),
	)
}

func registerGauges(meter metric.Meter, latest SnapshotFunc) error {
	percent := []struct {
		name, desc string
		value      func(*snapshot.Snapshot) float64
	}{
		{"hostmon.cpu.utilization", "CPU busy percent", func(s *snapshot.Snapshot) float64 { return s.CPUUtilization }},
		{"hostmon.memory.utilization", "Memory used percent", func(s *snapshot.Snapshot) float64 { return s.MemoryUtilization }},
		{"hostmon.swap.utilization", "Swap used percent", func(s *snapshot.Snapshot) float64 { return s.SwapUtilization }},
		{"hostmon.disk.utilization", "Disk used percent", func(s *snapshot.Snapshot) float64 { return s.DiskUtilization }},
	}

	for _, g := range percent {
		_, err := meter.Float64ObservableGauge(
			g.name,
			metric.WithDescription(g.desc),
			metric.WithUnit("%"),
			metric.WithFloat64Callback(func(ctx context.Context, o metric.Float64Observer) error {
				s := latest()
				if s == nil {
					return nil
				}
				o.Observe(g.value(s))
				return nil
			}),
		)
		if err != nil {
			return err
		}
	}

	_, err := meter.Float64ObservableGauge(
		"hostmon.network.throughput",
		metric.WithDescription("Network throughput"),
		metric.WithUnit("KiBy/s"),
		metric.WithFloat64Callback(func(ctx context.Context, o metric.Float64Observer) error {
			s := latest()
			if s == nil {
				return nil
			}
			o.Observe(s.NetworkUtilization.Upload, metric.WithAttributes(attribute.String("direction", "upload")))
			o.Observe(s.NetworkUtilization.Download, metric.WithAttributes(attribute.String("direction", "download")))
			return nil
		}),
	)
	if err != nil {
		return err
	}

	_, err = meter.Int64ObservableGauge(
		"hostmon.services.running",
		metric.WithDescription("Monitored services currently running"),
		metric.WithUnit("1"),
		metric.WithInt64Callback(func(ctx context.Context, o metric.Int64Observer) error {
			s := latest()
			if s == nil {
				return nil
			}
			var up int64
			for _, running := range s.ServiceStatus {
				if running {
					up++
				}
			}
			o.Observe(up)
			return nil
		}),
	)
	return err
}
