package metrics

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
)

// Probe reads live host metrics. It keeps the CPU and per-process baselines
// needed for delta-based percentages, so each stream session owns one.
type Probe struct {
	diskPath string
	cpu      *cpuSampler
	procs    *procCPUTracker
	packages *PackageHistory
}

// NewProbe creates a probe that reports disk usage for diskPath.
// packages may be nil when no package history is available.
func NewProbe(diskPath string, packages *PackageHistory) *Probe {
	return &Probe{
		diskPath: diskPath,
		cpu:      newCPUSampler(),
		procs:    newProcCPUTracker(),
		packages: packages,
	}
}

// CPU returns busy percentages since the previous call on this probe
func (p *Probe) CPU(ctx context.Context) (CPUUsage, error) {
	return p.cpu.Sample(ctx)
}

// Memory returns virtual memory usage
func (p *Probe) Memory(ctx context.Context) (MemoryStats, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return MemoryStats{}, fmt.Errorf("failed to get memory usage: %w", err)
	}

	return MemoryStats{
		UsedPercent: vm.UsedPercent,
		Total:       vm.Total,
		Available:   vm.Available,
		Used:        vm.Used,
	}, nil
}

// Swap returns swap usage percentage
func (p *Probe) Swap(ctx context.Context) (float64, error) {
	sw, err := mem.SwapMemoryWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get swap usage: %w", err)
	}
	return sw.UsedPercent, nil
}

// Disk returns usage percentage of the configured volume
func (p *Probe) Disk(ctx context.Context) (float64, error) {
	usage, err := disk.UsageWithContext(ctx, p.diskPath)
	if err != nil {
		return 0, fmt.Errorf("failed to get disk usage for %s: %w", p.diskPath, err)
	}
	return usage.UsedPercent, nil
}

// DiskIO returns cumulative bytes read and written across devices
func (p *Probe) DiskIO(ctx context.Context) (DiskIO, error) {
	counters, err := disk.IOCountersWithContext(ctx)
	if err != nil {
		return DiskIO{}, fmt.Errorf("failed to get IO counters: %w", err)
	}

	var io DiskIO
	for _, c := range counters {
		io.ReadBytes += c.ReadBytes
		io.WriteBytes += c.WriteBytes
	}
	return io, nil
}

// NetCounters returns the current network counters
func (p *Probe) NetCounters(ctx context.Context) (CounterSample, error) {
	return ReadCounters(ctx)
}

// BootTime returns when the host booted
func (p *Probe) BootTime(ctx context.Context) (time.Time, error) {
	boot, err := host.BootTimeWithContext(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get boot time: %w", err)
	}
	return time.Unix(int64(boot), 0), nil
}

// Load returns the load average. Windows has none.
func (p *Probe) Load(ctx context.Context) (LoadAvg, error) {
	if runtime.GOOS == "windows" {
		return LoadAvg{}, ErrUnsupported
	}

	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		return LoadAvg{}, fmt.Errorf("failed to get load average: %w", err)
	}
	return LoadAvg{Load1: avg.Load1, Load5: avg.Load5, Load15: avg.Load15}, nil
}

// Processes returns every process with CPU% relative to the previous call
func (p *Probe) Processes(ctx context.Context) ([]ProcessInfo, error) {
	return p.procs.Processes(ctx)
}

// Connections returns inet sockets
func (p *Probe) Connections(ctx context.Context) ([]Connection, error) {
	return ReadConnections(ctx)
}

// Packages returns the most recent package transactions
func (p *Probe) Packages(ctx context.Context) ([]PackageEvent, error) {
	if p.packages == nil {
		return nil, ErrNoPackageDB
	}
	return p.packages.Recent(ctx)
}
