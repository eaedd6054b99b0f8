package metrics

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

type procCPUEntry struct {
	total      float64
	sampleTime time.Time
}

// procCPUTracker computes per-process CPU% from cpu time deltas between calls.
// A process seen for the first time reports 0.
type procCPUTracker struct {
	mu    sync.Mutex
	cache map[int32]procCPUEntry
}

func newProcCPUTracker() *procCPUTracker {
	return &procCPUTracker{cache: make(map[int32]procCPUEntry)}
}

// percent records total cpu seconds for pid at now and returns the usage
// since the previous record
func (t *procCPUTracker) percent(pid int32, total float64, now time.Time) float64 {
	prev, exists := t.cache[pid]
	t.cache[pid] = procCPUEntry{total: total, sampleTime: now}
	if !exists {
		return 0
	}

	elapsed := now.Sub(prev.sampleTime).Seconds()
	if elapsed <= 0 {
		return 0
	}

	// CPU% = (cpu time delta / wall time delta) * 100
	cpuPercent := (total - prev.total) / elapsed * 100
	if cpuPercent < 0 {
		cpuPercent = 0
	}
	return cpuPercent
}

// prune drops pids that were not seen in the latest enumeration
func (t *procCPUTracker) prune(seen map[int32]struct{}) {
	for pid := range t.cache {
		if _, ok := seen[pid]; !ok {
			delete(t.cache, pid)
		}
	}
}

// Processes enumerates running processes with their CPU and memory share.
// Processes that vanish mid-enumeration are skipped.
func (t *procCPUTracker) Processes(ctx context.Context) ([]ProcessInfo, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get processes: %w", err)
	}

	now := time.Now()
	out := make([]ProcessInfo, 0, len(procs))
	seen := make(map[int32]struct{}, len(procs))

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, proc := range procs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name, err := proc.NameWithContext(ctx)
		if err != nil {
			continue
		}
		seen[proc.Pid] = struct{}{}

		var cpuPercent float64
		if times, err := proc.TimesWithContext(ctx); err == nil && times != nil {
			cpuPercent = t.percent(proc.Pid, times.User+times.System, now)
		}
		memPercent, _ := proc.MemoryPercentWithContext(ctx)

		out = append(out, ProcessInfo{
			PID:           proc.Pid,
			Name:          name,
			CPUPercent:    cpuPercent,
			MemoryPercent: float64(memPercent),
		})
	}
	t.prune(seen)

	return out, nil
}

// TopProcesses returns at most limit entries ordered by CPU% descending.
// Ties keep enumeration order. The input slice is not modified.
func TopProcesses(procs []ProcessInfo, limit int) []ProcessInfo {
	sorted := make([]ProcessInfo, len(procs))
	copy(sorted, procs)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CPUPercent > sorted[j].CPUPercent
	})

	if limit >= 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}
