package metrics

import (
	"errors"
	"time"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrNoData is returned when a source answers with an empty result
	ErrNoData = errors.New("no data available")

	// ErrUnsupported is returned when the running OS cannot provide a value
	ErrUnsupported = errors.New("not supported on this platform")

	// ErrNoPackageDB is returned when the package history database is missing
	ErrNoPackageDB = errors.New("package history database not found")
)

// =============================================================================
// Counters and Rates
// =============================================================================

// CounterSample holds cumulative network counters read at one instant.
// It is a value type; callers keep the previous one and replace it each tick.
type CounterSample struct {
	BytesSent   uint64    `json:"bytes_sent" cbor:"bytes_sent"`
	BytesRecv   uint64    `json:"bytes_recv" cbor:"bytes_recv"`
	PacketsSent uint64    `json:"packets_sent" cbor:"packets_sent"`
	PacketsRecv uint64    `json:"packets_recv" cbor:"packets_recv"`
	Taken       time.Time `json:"taken" cbor:"taken"`
}

// Rates is throughput in bytes per second
type Rates struct {
	Upload   float64
	Download float64
}

// KB converts the rates to kilobytes per second
func (r Rates) KB() Rates {
	return Rates{Upload: r.Upload / 1024, Download: r.Download / 1024}
}

// =============================================================================
// Utilization
// =============================================================================

// CPUUsage is busy percentage overall and per core, 0-100
type CPUUsage struct {
	Total   float64
	PerCore []float64
}

// MemoryStats is virtual memory usage
type MemoryStats struct {
	UsedPercent float64
	Total       uint64
	Available   uint64
	Used        uint64
}

// DiskIO is cumulative bytes read and written across all devices
type DiskIO struct {
	ReadBytes  uint64
	WriteBytes uint64
}

// LoadAvg is the 1, 5 and 15 minute load average
type LoadAvg struct {
	Load1  float64
	Load5  float64
	Load15 float64
}

// =============================================================================
// Processes and Connections
// =============================================================================

// ProcessInfo is one row of the process list
type ProcessInfo struct {
	PID           int32   `json:"pid" cbor:"pid"`
	Name          string  `json:"name" cbor:"name"`
	CPUPercent    float64 `json:"cpu_percent" cbor:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent" cbor:"memory_percent"`
}

// Connection is one socket in display form
type Connection struct {
	Type   string `json:"type" cbor:"type"`     // TCP, UDP
	Laddr  string `json:"laddr" cbor:"laddr"`   // ip:port or empty
	Raddr  string `json:"raddr" cbor:"raddr"`   // ip:port or empty
	Status string `json:"status" cbor:"status"` // ESTABLISHED, LISTEN, ...
}

// =============================================================================
// Package History
// =============================================================================

// PackageEvent is a single package transaction from the DNF history
type PackageEvent struct {
	Name      string `json:"name" cbor:"name"`
	Operation string `json:"operation" cbor:"operation"`
	Timestamp int64  `json:"timestamp" cbor:"timestamp"`
	HumanDate string `json:"human_date" cbor:"human_date"`
}

// PackageRange is the span of recorded transactions
type PackageRange struct {
	Earliest     int64  `json:"earliest"`
	Latest       int64  `json:"latest"`
	EarliestDate string `json:"earliest_date"`
	LatestDate   string `json:"latest_date"`
	RangeDays    int64  `json:"range_days"` // whole days, rounded up
}
