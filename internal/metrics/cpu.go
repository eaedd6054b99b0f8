package metrics

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/shirou/gopsutil/v4/cpu"
)

// cpuSampler turns cumulative CPU times into busy percentages by keeping the
// previous reading. The first call after creation reports zeros.
type cpuSampler struct {
	mu          sync.Mutex
	lastTotal   *cpu.TimesStat
	lastPerCore []cpu.TimesStat

	// swapped in tests
	times func(ctx context.Context, perCPU bool) ([]cpu.TimesStat, error)
}

func newCPUSampler() *cpuSampler {
	return &cpuSampler{times: cpu.TimesWithContext}
}

// Sample returns total and per-core busy percentages since the previous call
func (s *cpuSampler) Sample(ctx context.Context) (CPUUsage, error) {
	total, err := s.times(ctx, false)
	if err != nil {
		return CPUUsage{}, fmt.Errorf("failed to get CPU times: %w", err)
	}
	if len(total) == 0 {
		return CPUUsage{}, fmt.Errorf("failed to get CPU times: %w", ErrNoData)
	}
	perCore, err := s.times(ctx, true)
	if err != nil {
		return CPUUsage{}, fmt.Errorf("failed to get per-core CPU times: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	usage := CPUUsage{PerCore: make([]float64, len(perCore))}
	if s.lastTotal != nil {
		usage.Total = calculateBusy(*s.lastTotal, total[0])
	}

	// Limit to the number of cores available in both samples
	length := len(perCore)
	if len(s.lastPerCore) < length {
		length = len(s.lastPerCore)
	}
	for i := 0; i < length; i++ {
		usage.PerCore[i] = calculateBusy(s.lastPerCore[i], perCore[i])
	}

	t := total[0]
	s.lastTotal = &t
	s.lastPerCore = perCore
	return usage, nil
}

// calculateBusy calculates the CPU busy percentage between two time points.
// Returns a percentage clamped between 0 and 100.
func calculateBusy(t1, t2 cpu.TimesStat) float64 {
	t1All, t1Busy := getAllBusy(t1)
	t2All, t2Busy := getAllBusy(t2)

	if t2All <= t1All || t2Busy <= t1Busy {
		return 0
	}

	return clampPercent((t2Busy - t1Busy) / (t2All - t1All) * 100)
}

// getAllBusy calculates total CPU time and busy CPU time from CPU times statistics.
// On Linux, it excludes guest and guest_nice time from total to match htop behavior.
func getAllBusy(t cpu.TimesStat) (float64, float64) {
	tot := t.User + t.System + t.Idle + t.Nice + t.Iowait + t.Irq +
		t.Softirq + t.Steal + t.Guest + t.GuestNice

	if runtime.GOOS == "linux" {
		tot -= t.Guest
		tot -= t.GuestNice
	}

	busy := tot - t.Idle - t.Iowait

	return tot, busy
}

// clampPercent ensures the percentage is between 0 and 100
func clampPercent(value float64) float64 {
	return math.Min(100, math.Max(0, value))
}
