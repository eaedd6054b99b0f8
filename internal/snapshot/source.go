package snapshot

import (
	"context"
	"time"

	"hostmon/internal/metrics"
)

// Source produces the per-tick metric categories. Each method is one
// independently fallible provider.
type Source interface {
	CPU(ctx context.Context) (metrics.CPUUsage, error)
	Memory(ctx context.Context) (metrics.MemoryStats, error)
	Swap(ctx context.Context) (float64, error)
	Disk(ctx context.Context) (float64, error)
	DiskIO(ctx context.Context) (metrics.DiskIO, error)
	NetCounters(ctx context.Context) (metrics.CounterSample, error)
	BootTime(ctx context.Context) (time.Time, error)
	Load(ctx context.Context) (metrics.LoadAvg, error)
	Processes(ctx context.Context) ([]metrics.ProcessInfo, error)
	Connections(ctx context.Context) ([]metrics.Connection, error)
	Packages(ctx context.Context) ([]metrics.PackageEvent, error)
}

// FactSource reads the static host facts
type FactSource interface {
	CPUModel(ctx context.Context) (string, error)
	CPUFrequency(ctx context.Context) (string, error)
	KernelVersion(ctx context.Context) (string, error)
	OSRelease(ctx context.Context) (string, error)
	Hostname(ctx context.Context) (string, error)
	LoggedInUsers(ctx context.Context) (int, error)
}

// Platform is the provider set chosen once at startup
type Platform interface {
	// Name identifies the strategy, e.g. "generic" or "exchange"
	Name() string

	// Services maps display name to running state for the platform's
	// service list. Individual check failures map to false.
	Services(ctx context.Context) (map[string]bool, error)

	// Extension returns the extension providers, or nil when inactive
	Extension() ExtensionSource
}

// ExtensionSource is the mail-server provider set
type ExtensionSource interface {
	ServiceStatus(ctx context.Context) (map[string]bool, error)
	TransportLogs(ctx context.Context) (TransportLogs, error)
	EventLogs(ctx context.Context) ([]EventRecord, error)
	SecurityLogins(ctx context.Context) ([]LoginRecord, error)
}

// Observer receives provider outcomes and tick timings
type Observer interface {
	ObserveProvider(name string, err error)
	ObserveTick(elapsed time.Duration, snap *Snapshot)
}

type nopObserver struct{}

func (nopObserver) ObserveProvider(string, error)        {}
func (nopObserver) ObserveTick(time.Duration, *Snapshot) {}
