// Package telemetry exposes the monitor's own health and the latest
// snapshot as Prometheus metrics and, optionally, OTLP gauges.
package telemetry

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hostmon/internal/snapshot"
)

const namespace = "hostmon"

// Metrics implements snapshot.Observer and keeps the last snapshot for
// exporters that poll
type Metrics struct {
	registry *prometheus.Registry

	ticks            prometheus.Counter
	tickDuration     prometheus.Histogram
	providerFailures *prometheus.CounterVec
	activeSessions   prometheus.Gauge

	// unlabeled vecs so the series can be dropped while nobody is watching
	cpu      *prometheus.GaugeVec
	memory   *prometheus.GaugeVec
	swap     *prometheus.GaugeVec
	disk     *prometheus.GaugeVec
	network  *prometheus.GaugeVec
	services *prometheus.GaugeVec

	last atomic.Pointer[snapshot.Snapshot]
}

// NewMetrics creates the collectors on a private registry, together with
// the Go runtime and process collectors
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Snapshots assembled across all sessions.",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Time to assemble one snapshot.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		providerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_failures_total",
			Help:      "Provider calls that failed or timed out.",
		}, []string{"provider"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Connected streaming clients.",
		}),
		cpu:    snapshotGauge("cpu_utilization_percent", "CPU busy percent from the last snapshot."),
		memory: snapshotGauge("memory_utilization_percent", "Memory used percent from the last snapshot."),
		swap:   snapshotGauge("swap_utilization_percent", "Swap used percent from the last snapshot."),
		disk:   snapshotGauge("disk_utilization_percent", "Disk used percent from the last snapshot."),
		network: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "network_kilobytes_per_second",
			Help:      "Network throughput from the last snapshot.",
		}, []string{"direction"}),
		services: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "service_up",
			Help:      "1 when the service was running in the last snapshot.",
		}, []string{"service"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ticks, m.tickDuration, m.providerFailures, m.activeSessions,
		m.cpu, m.memory, m.swap, m.disk, m.network, m.services,
	)
	return m
}

func snapshotGauge(name, help string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "snapshot",
		Name:      name,
		Help:      help,
	}, nil)
}

// Registry returns the registry backing Handler
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveProvider(name string, err error) {
	if err != nil {
		m.providerFailures.WithLabelValues(name).Inc()
	}
}

func (m *Metrics) ObserveTick(elapsed time.Duration, snap *snapshot.Snapshot) {
	m.ticks.Inc()
	m.tickDuration.Observe(elapsed.Seconds())
	if snap == nil {
		return
	}

	m.cpu.WithLabelValues().Set(snap.CPUUtilization)
	m.memory.WithLabelValues().Set(snap.MemoryUtilization)
	m.swap.WithLabelValues().Set(snap.SwapUtilization)
	m.disk.WithLabelValues().Set(snap.DiskUtilization)
	m.network.WithLabelValues("upload").Set(snap.NetworkUtilization.Upload)
	m.network.WithLabelValues("download").Set(snap.NetworkUtilization.Download)
	for name, up := range snap.ServiceStatus {
		v := 0.0
		if up {
			v = 1
		}
		m.services.WithLabelValues(name).Set(v)
	}

	m.last.Store(snap)
}

// SetActiveSessions records the live session count. When the last session
// leaves, the snapshot gauges are dropped and Last returns nil again, so
// exporters stop repeating a stale snapshot.
func (m *Metrics) SetActiveSessions(n int) {
	m.activeSessions.Set(float64(n))
	if n == 0 {
		m.clearSnapshot()
	}
}

func (m *Metrics) clearSnapshot() {
	m.last.Store(nil)
	for _, g := range []*prometheus.GaugeVec{m.cpu, m.memory, m.swap, m.disk, m.network, m.services} {
		g.Reset()
	}
}

// Last returns the most recent snapshot, or nil before the first tick
func (m *Metrics) Last() *snapshot.Snapshot {
	return m.last.Load()
}
